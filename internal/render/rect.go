/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"gostorystudio/internal/domain"
	"gostorystudio/internal/textlayout"
)

// Rect is an element bounding box in canvas pixels.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether the point lies inside the rect expanded by pad.
func (r Rect) Contains(x, y, pad float64) bool {
	return x >= r.X-pad && x <= r.X+r.W+pad && y >= r.Y-pad && y <= r.Y+r.H+pad
}

// HandleSize is the side length in pixels of the resize handle square drawn
// at an element's bottom-right corner.
const HandleSize = 14

// HandleRect returns the resize handle square for an element rect.
func HandleRect(r Rect) Rect {
	return Rect{X: r.X + r.W - HandleSize/2, Y: r.Y + r.H - HandleSize/2, W: HandleSize, H: HandleSize}
}

// DefaultFontSize is used for text elements without an explicit style.
const DefaultFontSize = 32

// ElementRect computes an element's bounding box on a canvas of the given
// pixel size. Hit-testing and drawing both call this, with the same layouter,
// so selection boxes always match the rendered pixels.
func (r *Renderer) ElementRect(el *domain.OverlayElement, canvasW, canvasH int) Rect {
	x := el.XPercent / 100 * float64(canvasW)
	y := el.YPercent / 100 * float64(canvasH)
	if el.Kind == domain.ElementImage {
		w, h := 20.0, 20.0
		if el.Size != nil {
			w, h = el.Size.Width, el.Size.Height
		}
		return Rect{X: x, Y: y, W: w / 100 * float64(canvasW), H: h / 100 * float64(canvasH)}
	}
	spec := r.fontSpecFor(el)
	maxW := r.maxTextWidth(el, canvasW)
	box := r.Layout.Layout(el.Content, spec, maxW)
	return Rect{X: x, Y: y, W: float64(box.Width), H: float64(box.Height)}
}

// maxTextWidth derives the wrap width for a text element: an explicit size
// percentage when set, otherwise the canvas width remaining to the right of
// the element's position.
func (r *Renderer) maxTextWidth(el *domain.OverlayElement, canvasW int) float32 {
	if el.Size != nil && el.Size.Width > 0 {
		return float32(el.Size.Width / 100 * float64(canvasW))
	}
	remaining := float64(canvasW) - el.XPercent/100*float64(canvasW)
	if remaining <= 0 {
		return float32(canvasW)
	}
	return float32(remaining)
}

func (r *Renderer) fontSpecFor(el *domain.OverlayElement) textlayout.FontSpec {
	spec := textlayout.FontSpec{SizePt: DefaultFontSize}
	if el.Style != nil {
		if el.Style.FontSize > 0 {
			spec.SizePt = float32(el.Style.FontSize)
		}
		spec.Family = el.Style.FontFamily
		spec.Bold = el.Style.Bold
	}
	return spec
}
