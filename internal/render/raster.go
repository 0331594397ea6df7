/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// Raster helpers shared by the frame renderer and the transition blender.

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	b := img.Bounds()
	if x0 < b.Min.X {
		x0 = b.Min.X
	}
	if y0 < b.Min.Y {
		y0 = b.Min.Y
	}
	if x1 >= b.Max.X {
		x1 = b.Max.X - 1
	}
	if y1 >= b.Max.Y {
		y1 = b.Max.Y - 1
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

// blendFillRect alpha-composites col over the existing pixels.
func blendFillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if col.A == 0 {
		return
	}
	uni := image.NewUniform(col)
	rect := image.Rect(x0, y0, x1+1, y1+1).Intersect(img.Bounds())
	draw.Draw(img, rect, uni, image.Point{}, draw.Over)
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		setClipped(img, x, y0, col)
		setClipped(img, x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		setClipped(img, x0, y, col)
		setClipped(img, x1, y, col)
	}
}

// dashedRect draws a dashed 1px border with the given on/off period.
func dashedRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA, dash int) {
	if dash <= 0 {
		dash = 6
	}
	on := func(i int) bool { return (i/dash)%2 == 0 }
	for x := x0; x <= x1; x++ {
		if on(x - x0) {
			setClipped(img, x, y0, col)
			setClipped(img, x, y1, col)
		}
	}
	for y := y0; y <= y1; y++ {
		if on(y - y0) {
			setClipped(img, x0, y, col)
			setClipped(img, x1, y, col)
		}
	}
}

// fillRoundedRect approximates rounded corners by trimming a corner triangle
// per scanline; good enough for text background pills.
func fillRoundedRect(img *image.RGBA, x0, y0, x1, y1, radius int, col color.RGBA) {
	if radius <= 0 {
		blendFillRect(img, x0, y0, x1, y1, col)
		return
	}
	h := y1 - y0
	if radius*2 > h {
		radius = h / 2
	}
	for y := y0; y <= y1; y++ {
		inset := 0
		if dy := y - y0; dy < radius {
			inset = cornerInset(radius, radius-dy)
		} else if dy := y1 - y; dy < radius {
			inset = cornerInset(radius, radius-dy)
		}
		blendFillRect(img, x0+inset, y, x1-inset, y, col)
	}
}

func cornerInset(radius, dy int) int {
	// circle chord: inset = r - sqrt(r^2 - dy^2)
	r2 := radius * radius
	d := r2 - dy*dy
	if d <= 0 {
		return radius
	}
	// integer sqrt
	s := 0
	for s*s <= d {
		s++
	}
	return radius - (s - 1)
}

func setClipped(img *image.RGBA, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, col)
	}
}

// scaleInto draws src scaled into the destination rectangle with bilinear
// interpolation.
func scaleInto(dst *image.RGBA, dr image.Rectangle, src image.Image) {
	xdraw.ApproxBiLinear.Scale(dst, dr, src, src.Bounds(), xdraw.Over, nil)
}

// scaleIntoAlpha draws src scaled into dr at the given opacity.
func scaleIntoAlpha(dst *image.RGBA, dr image.Rectangle, src image.Image, alpha float64) {
	if alpha >= 1 {
		scaleInto(dst, dr, src)
		return
	}
	if alpha <= 0 {
		return
	}
	tmp := image.NewRGBA(dr.Sub(dr.Min))
	xdraw.ApproxBiLinear.Scale(tmp, tmp.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	mask := image.NewUniform(color.Alpha{A: uint8(alpha*255 + 0.5)})
	draw.DrawMask(dst, dr, tmp, image.Point{}, mask, image.Point{}, draw.Over)
}

// boxBlur approximates a heavy gaussian blur by scaling the image far down
// and back up, the standard cheap backdrop trick.
func boxBlur(src image.Image, w, h, factor int) *image.RGBA {
	if factor < 2 {
		factor = 8
	}
	smallW, smallH := w/factor, h/factor
	if smallW < 1 {
		smallW = 1
	}
	if smallH < 1 {
		smallH = 1
	}
	small := image.NewRGBA(image.Rect(0, 0, smallW, smallH))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(out, out.Bounds(), small, small.Bounds(), xdraw.Src, nil)
	return out
}

// darken multiplies all pixels by the given factor in place.
func darken(img *image.RGBA, factor float64) {
	if factor >= 1 {
		return
	}
	pix := img.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i] = uint8(float64(pix[i]) * factor)
		pix[i+1] = uint8(float64(pix[i+1]) * factor)
		pix[i+2] = uint8(float64(pix[i+2]) * factor)
	}
}

// aspectFill computes the source-covering destination rect for filling the
// whole canvas while preserving aspect ratio (center crop behavior).
func aspectFill(canvasW, canvasH, srcW, srcH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 {
		return image.Rect(0, 0, canvasW, canvasH)
	}
	scale := float64(canvasW) / float64(srcW)
	if s := float64(canvasH) / float64(srcH); s > scale {
		scale = s
	}
	w := int(float64(srcW)*scale + 0.5)
	h := int(float64(srcH)*scale + 0.5)
	x := (canvasW - w) / 2
	y := (canvasH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// aspectContain computes the letterboxed destination rect that fits the
// source fully inside the canvas while preserving aspect ratio.
func aspectContain(canvasW, canvasH, srcW, srcH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 {
		return image.Rect(0, 0, canvasW, canvasH)
	}
	scale := float64(canvasW) / float64(srcW)
	if s := float64(canvasH) / float64(srcH); s < scale {
		scale = s
	}
	w := int(float64(srcW)*scale + 0.5)
	h := int(float64(srcH)*scale + 0.5)
	x := (canvasW - w) / 2
	y := (canvasH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// ParseHexColor parses #rgb, #rrggbb and #rrggbbaa. Empty or "transparent"
// yields a zero-alpha color.
func ParseHexColor(s string) color.RGBA {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "transparent" || s == "none" {
		return color.RGBA{}
	}
	s = strings.TrimPrefix(s, "#")
	parse := func(h string) uint8 {
		v, err := strconv.ParseUint(h, 16, 8)
		if err != nil {
			return 0
		}
		return uint8(v)
	}
	switch len(s) {
	case 3:
		return color.RGBA{R: parse(s[0:1] + s[0:1]), G: parse(s[1:2] + s[1:2]), B: parse(s[2:3] + s[2:3]), A: 255}
	case 6:
		return color.RGBA{R: parse(s[0:2]), G: parse(s[2:4]), B: parse(s[4:6]), A: 255}
	case 8:
		return color.RGBA{R: parse(s[0:2]), G: parse(s[2:4]), B: parse(s[4:6]), A: parse(s[6:8])}
	}
	return color.RGBA{}
}
