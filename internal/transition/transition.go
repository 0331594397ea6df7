/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package transition blends the previous scene's captured last frame with the
// next scene's in-progress frame for the opening window of each scene.
package transition

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"gostorystudio/internal/domain"
)

// DefaultWindowSeconds is the transition window at the start of each scene.
const DefaultWindowSeconds = 1.0

// Progress maps in-scene elapsed time to a [0,1] blend progress.
func Progress(elapsed, window float64) float64 {
	if window <= 0 {
		window = DefaultWindowSeconds
	}
	p := elapsed / window
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Active reports whether the scene is still inside its transition window.
func Active(elapsed, window float64) bool {
	if window <= 0 {
		window = DefaultWindowSeconds
	}
	return elapsed >= 0 && elapsed < window
}

// Blend composes the final frame for a scene opening: next is the fully
// rendered frame of the incoming scene, prev the raster snapshot of the
// outgoing scene's last frame. Both must match dst's size. The result is
// written over dst entirely.
func Blend(dst *image.RGBA, prev image.Image, next image.Image, kind domain.Transition, progress float64) {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	if prev == nil || progress >= 1 {
		draw.Draw(dst, dst.Bounds(), next, dst.Bounds().Min, draw.Src)
		return
	}
	switch kind {
	case domain.TransitionSlide:
		blendSlide(dst, prev, next, progress)
	case domain.TransitionZoom:
		blendZoom(dst, prev, next, progress)
	case domain.TransitionFlip:
		blendFlip(dst, prev, next, progress)
	case domain.TransitionCurtain:
		blendCurtain(dst, prev, next, progress)
	default: // fade
		blendFade(dst, prev, next, progress)
	}
}

// fade: new scene fully composited, previous frame on top at 1-p.
func blendFade(dst *image.RGBA, prev, next image.Image, p float64) {
	b := dst.Bounds()
	draw.Draw(dst, b, next, b.Min, draw.Src)
	drawAlpha(dst, b, prev, 1-p)
}

// slide: previous frame drifts left with a small parallax while the new scene
// slides in from the right edge, landing at zero offset.
func blendSlide(dst *image.RGBA, prev, next image.Image, p float64) {
	b := dst.Bounds()
	w := b.Dx()
	clearBlack(dst)
	prevOff := -int(float64(w) * 0.2 * p)
	draw.Draw(dst, b.Add(image.Pt(prevOff, 0)), prev, b.Min, draw.Over)
	nextOff := int(float64(w) * (1 - p))
	draw.Draw(dst, b.Add(image.Pt(nextOff, 0)), next, b.Min, draw.Over)
}

// zoom: previous frame static, new scene grows about the center from nothing
// to full size with matching opacity.
func blendZoom(dst *image.RGBA, prev, next image.Image, p float64) {
	b := dst.Bounds()
	draw.Draw(dst, b, prev, b.Min, draw.Src)
	if p <= 0 {
		return
	}
	w, h := b.Dx(), b.Dy()
	nw := int(float64(w) * p)
	nh := int(float64(h) * p)
	if nw < 1 || nh < 1 {
		return
	}
	x0 := b.Min.X + (w-nw)/2
	y0 := b.Min.Y + (h-nh)/2
	target := image.Rect(x0, y0, x0+nw, y0+nh)
	scaleAlpha(dst, target, next, p)
}

// flip: two phases of a horizontal squeeze. First half collapses the previous
// frame to zero width, second half expands the new scene from zero width.
func blendFlip(dst *image.RGBA, prev, next image.Image, p float64) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	clearBlack(dst)
	if p < 0.5 {
		phase := 1 - p*2 // 1 -> 0
		nw := int(float64(w) * phase)
		if nw < 1 {
			return
		}
		x0 := b.Min.X + (w-nw)/2
		xdraw.ApproxBiLinear.Scale(dst, image.Rect(x0, b.Min.Y, x0+nw, b.Min.Y+h), prev, prev.Bounds(), xdraw.Over, nil)
		return
	}
	phase := (p - 0.5) * 2 // 0 -> 1
	nw := int(float64(w) * phase)
	if nw < 1 {
		return
	}
	x0 := b.Min.X + (w-nw)/2
	xdraw.ApproxBiLinear.Scale(dst, image.Rect(x0, b.Min.Y, x0+nw, b.Min.Y+h), next, next.Bounds(), xdraw.Over, nil)
}

// curtain: new scene already in place, previous frame slides upward off the
// canvas revealing it.
func blendCurtain(dst *image.RGBA, prev, next image.Image, p float64) {
	b := dst.Bounds()
	draw.Draw(dst, b, next, b.Min, draw.Src)
	off := -int(float64(b.Dy()) * p)
	draw.Draw(dst, b.Add(image.Pt(0, off)), prev, b.Min, draw.Over)
}

func clearBlack(dst *image.RGBA) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
}

func drawAlpha(dst *image.RGBA, r image.Rectangle, src image.Image, alpha float64) {
	if alpha <= 0 {
		return
	}
	if alpha >= 1 {
		draw.Draw(dst, r, src, r.Min, draw.Over)
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(alpha*255 + 0.5)})
	draw.DrawMask(dst, r, src, r.Min, mask, image.Point{}, draw.Over)
}

func scaleAlpha(dst *image.RGBA, target image.Rectangle, src image.Image, alpha float64) {
	tmp := image.NewRGBA(target.Sub(target.Min))
	xdraw.ApproxBiLinear.Scale(tmp, tmp.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	drawAlphaAt(dst, target, tmp, alpha)
}

func drawAlphaAt(dst *image.RGBA, target image.Rectangle, src image.Image, alpha float64) {
	if alpha >= 1 {
		draw.Draw(dst, target, src, image.Point{}, draw.Over)
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(alpha*255 + 0.5)})
	draw.DrawMask(dst, target, src, image.Point{}, mask, image.Point{}, draw.Over)
}
