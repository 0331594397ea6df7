/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render composites a scene into a raster frame. The same code path
// draws the live preview and every export frame, so the two cannot diverge.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"gostorystudio/internal/assets"
	"gostorystudio/internal/domain"
	"gostorystudio/internal/textlayout"
)

// FrameOptions carries the per-frame context that is not part of the scene.
type FrameOptions struct {
	SelectedID string  // element drawn with selection chrome; "" for none
	Playing    bool    // draw the progress bar for non-video scenes
	Duration   float64 // intrinsic scene duration, drives progress and auto zoom
	AutoZoom   bool    // slow push-in when the camera is untouched
}

// Renderer draws frames. It is safe to call RenderFrame repeatedly from one
// goroutine; the caches behind Resolver handle their own locking.
type Renderer struct {
	Layout   *textlayout.WordWrapLayouter
	Resolver *assets.Resolver
}

// New returns a renderer using the embedded default fonts.
func New(res *assets.Resolver) *Renderer {
	return &Renderer{
		Layout:   textlayout.NewWordWrap(textlayout.DefaultProvider()),
		Resolver: res,
	}
}

// RenderFrame composites one frame of the scene at the given in-scene time
// into dst. Draw order is fixed: black clear, blurred backdrop, foreground
// visual under the camera transform, overlays in slice order, selection
// chrome, playback progress. A visual that is not decodable this frame is
// skipped, not fatal; the next call retries.
func (r *Renderer) RenderFrame(dst *image.RGBA, sc *domain.Scene, elapsed float64, opt FrameOptions) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()

	fillRect(dst, 0, 0, w-1, h-1, color.RGBA{A: 255})

	src := r.Resolver.ResolveAt(sc, elapsed)
	if src.Image != nil {
		visual := src.Image
		if src.Clip != nil {
			visual = ApplyFilter(visual, src.Clip.Filter)
		}
		// blurred, darkened full-bleed backdrop, independent of the camera
		vb := visual.Bounds()
		cover := image.NewRGBA(image.Rect(0, 0, w, h))
		scaleInto(cover, aspectFill(w, h, vb.Dx(), vb.Dy()), visual)
		back := boxBlur(cover, w, h, 16)
		darken(back, 0.4)
		draw.Draw(dst, b, back, image.Point{}, draw.Over)

		r.drawForeground(dst, visual, sc, elapsed, opt)
	} else if sc.Visual.IsNone() {
		r.drawPlaceholder(dst, w, h)
	}

	for i := range sc.Elements {
		el := &sc.Elements[i]
		selected := el.ID == opt.SelectedID
		active := el.ActiveAt(elapsed)
		if !active && !selected {
			continue
		}
		alpha := 1.0
		if selected && !active {
			alpha = 0.5 // ghosted editing aid
		}
		rect := r.ElementRect(el, w, h)
		switch el.Kind {
		case domain.ElementText:
			r.drawTextElement(dst, el, rect, alpha, w)
		case domain.ElementImage:
			r.drawImageElement(dst, el, rect, alpha)
		}
		if selected {
			drawSelection(dst, rect)
		}
	}

	if opt.Playing && sc.Visual.Mode() != domain.VisualVideo && opt.Duration > 0 {
		frac := elapsed / opt.Duration
		if frac > 1 {
			frac = 1
		}
		barW := int(frac * float64(w))
		fillRect(dst, 0, h-4, barW-1, h-1, color.RGBA{R: 255, G: 255, B: 255, A: 200})
	}
}

func (r *Renderer) drawForeground(dst *image.RGBA, visual image.Image, sc *domain.Scene, elapsed float64, opt FrameOptions) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	sb := visual.Bounds()
	dr := aspectContain(w, h, sb.Dx(), sb.Dy())

	t := sc.Transform
	scale := t.EffectiveScale()
	if opt.AutoZoom && t.IsIdentity() && opt.Duration > 0 {
		frac := elapsed / opt.Duration
		if frac > 1 {
			frac = 1
		}
		scale = 1 + 0.05*frac
	}

	// scale about the canvas center, then apply canvas-relative offsets
	cx, cy := float64(w)/2, float64(h)/2
	dw := float64(dr.Dx()) * scale
	dh := float64(dr.Dy()) * scale
	ox := t.X / 100 * float64(w)
	oy := t.Y / 100 * float64(h)
	x0 := cx - dw/2 + ox
	y0 := cy - dh/2 + oy
	target := image.Rect(int(x0), int(y0), int(x0+dw), int(y0+dh))
	scaleInto(dst, target, visual)
}

func (r *Renderer) drawPlaceholder(dst *image.RGBA, w, h int) {
	msg := "No Media"
	spec := textlayout.FontSpec{SizePt: 24}
	width := r.Layout.MeasureString(msg, spec)
	face, met := r.Layout.Provider.Resolve(spec)
	x := (float32(w) - width) / 2
	y := float32(h)/2 + met.Ascent/2
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{R: 120, G: 120, B: 120, A: 255}),
		Face: face,
		Dot:  fixed.P(int(x), int(y)),
	}
	d.DrawString(msg)
}

func (r *Renderer) drawTextElement(dst *image.RGBA, el *domain.OverlayElement, rect Rect, alpha float64, canvasW int) {
	spec := r.fontSpecFor(el)
	box := r.Layout.Layout(el.Content, spec, r.maxTextWidth(el, canvasW))

	textCol := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	var bgCol color.RGBA
	if el.Style != nil {
		if el.Style.Color != "" {
			textCol = ParseHexColor(el.Style.Color)
		}
		bgCol = ParseHexColor(el.Style.BackgroundColor)
	}
	if alpha < 1 {
		textCol.A = uint8(float64(textCol.A) * alpha)
		bgCol.A = uint8(float64(bgCol.A) * alpha)
	}

	if bgCol.A > 0 {
		pad := 8
		fillRoundedRect(dst,
			int(rect.X)-pad, int(rect.Y)-pad,
			int(rect.X+rect.W)+pad, int(rect.Y+rect.H)+pad,
			pad, bgCol)
	}

	face, met := r.Layout.Provider.Resolve(spec)
	src := image.NewUniform(textCol)
	y := rect.Y + float64(met.Ascent)
	for _, line := range box.Lines {
		d := &font.Drawer{Dst: dst, Src: src, Face: face, Dot: fixed.P(int(rect.X), int(y))}
		d.DrawString(line.Text)
		y += float64(met.LineHeight())
	}
}

func (r *Renderer) drawImageElement(dst *image.RGBA, el *domain.OverlayElement, rect Rect, alpha float64) {
	img, err := r.Resolver.Images.Get(el.Content)
	if err != nil {
		return // asset unavailable, skip the layer this frame
	}
	target := image.Rect(int(rect.X), int(rect.Y), int(rect.X+rect.W), int(rect.Y+rect.H))
	scaleIntoAlpha(dst, target, img, alpha)
}

func drawSelection(dst *image.RGBA, rect Rect) {
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	dashedRect(dst, int(rect.X)-2, int(rect.Y)-2, int(rect.X+rect.W)+2, int(rect.Y+rect.H)+2, white, 6)
	hr := HandleRect(rect)
	fillRect(dst, int(hr.X), int(hr.Y), int(hr.X+hr.W)-1, int(hr.Y+hr.H)-1, white)
	strokeRect(dst, int(hr.X), int(hr.Y), int(hr.X+hr.W)-1, int(hr.Y+hr.H)-1, color.RGBA{A: 255})
}
