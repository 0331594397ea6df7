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
	"image/draw"

	"gostorystudio/internal/domain"
)

// ApplyFilter returns a filtered copy of src, or src unchanged for the none
// filter. Filters run on the already-extracted clip frame so preview and
// export share the same pixel math.
func ApplyFilter(src image.Image, f domain.Filter) image.Image {
	if f == domain.FilterNone {
		return src
	}
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
	pix := out.Pix
	switch f {
	case domain.FilterGrayscale:
		for i := 0; i < len(pix); i += 4 {
			// Rec. 601 luma
			g := (299*int(pix[i]) + 587*int(pix[i+1]) + 114*int(pix[i+2])) / 1000
			pix[i], pix[i+1], pix[i+2] = uint8(g), uint8(g), uint8(g)
		}
	case domain.FilterSepia:
		for i := 0; i < len(pix); i += 4 {
			r, g, b := int(pix[i]), int(pix[i+1]), int(pix[i+2])
			nr := (393*r + 769*g + 189*b) / 1000
			ng := (349*r + 686*g + 168*b) / 1000
			nb := (272*r + 534*g + 131*b) / 1000
			pix[i], pix[i+1], pix[i+2] = clamp8(nr), clamp8(ng), clamp8(nb)
		}
	case domain.FilterVintage:
		for i := 0; i < len(pix); i += 4 {
			r, g, b := int(pix[i]), int(pix[i+1]), int(pix[i+2])
			// washed warm tint: lift shadows, boost red, pull blue
			nr := r + (255-r)/8 + 10
			ng := g + (255-g)/10
			nb := b*9/10 + 8
			pix[i], pix[i+1], pix[i+2] = clamp8(nr), clamp8(ng), clamp8(nb)
		}
	}
	return out
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
