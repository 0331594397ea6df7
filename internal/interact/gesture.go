/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package interact implements the pointer manipulation layer over the canvas:
// hit-testing, drag-move, drag-resize and snapping. It operates on the same
// element rectangles the renderer draws, so what you grab is what you see.
package interact

import (
	"gostorystudio/internal/domain"
	"gostorystudio/internal/render"
)

// HitPadding expands element rects slightly so thin elements stay grabbable.
const HitPadding = 4

// Position clamp range: elements may hang partially off the canvas.
const (
	MinPercent = -20
	MaxPercent = 120
)

// Kind discriminates an active gesture.
type Kind int

const (
	KindNone Kind = iota
	KindMove
	KindResize
)

// Gesture is the state of one pointer drag, created on pointer-down and
// discarded on pointer-up. Only one snapping mode runs for its lifetime.
type Gesture struct {
	Kind      Kind
	ElementID string

	// move: cursor offset from the element's top-left at drag start
	grabDX, grabDY float64

	// resize: geometry at drag start
	startRect     render.Rect
	startFontSize float64
	startSize     domain.SizePercent
}

// Layer binds the renderer's geometry to pointer events.
type Layer struct {
	Renderer *render.Renderer
	Snap     SnapOptions
}

// NewLayer builds an interaction layer with default snapping.
func NewLayer(r *render.Renderer) *Layer { return &Layer{Renderer: r, Snap: DefaultSnap()} }

// HitTest returns the topmost element under the cursor, iterating elements in
// reverse paint order so the frontmost wins. Coordinates are canvas pixels.
func (l *Layer) HitTest(sc *domain.Scene, x, y float64, canvasW, canvasH int) (string, bool) {
	for i := len(sc.Elements) - 1; i >= 0; i-- {
		el := &sc.Elements[i]
		r := l.Renderer.ElementRect(el, canvasW, canvasH)
		if r.Contains(x, y, HitPadding) {
			return el.ID, true
		}
	}
	return "", false
}

// Begin starts a gesture for a pointer-down. The resize handle of the current
// selection takes priority over hit-testing; a miss on everything clears the
// selection. The returned selection id is the new selection (possibly "").
func (l *Layer) Begin(sc *domain.Scene, selectedID string, x, y float64, canvasW, canvasH int) (*Gesture, string) {
	if selectedID != "" {
		if i := sc.FindElement(selectedID); i >= 0 {
			el := &sc.Elements[i]
			r := l.Renderer.ElementRect(el, canvasW, canvasH)
			if render.HandleRect(r).Contains(x, y, HitPadding) {
				g := &Gesture{Kind: KindResize, ElementID: selectedID, startRect: r}
				if el.Kind == domain.ElementText {
					g.startFontSize = render.DefaultFontSize
					if el.Style != nil && el.Style.FontSize > 0 {
						g.startFontSize = el.Style.FontSize
					}
				} else if el.Size != nil {
					g.startSize = *el.Size
				} else {
					g.startSize = domain.SizePercent{Width: 20, Height: 20}
				}
				return g, selectedID
			}
		}
	}
	id, ok := l.HitTest(sc, x, y, canvasW, canvasH)
	if !ok {
		return nil, "" // click on empty canvas deselects
	}
	el := &sc.Elements[sc.FindElement(id)]
	r := l.Renderer.ElementRect(el, canvasW, canvasH)
	return &Gesture{
		Kind:      KindMove,
		ElementID: id,
		grabDX:    x - r.X,
		grabDY:    y - r.Y,
	}, id
}

// Move applies a pointer-move to the active gesture, mutating the element in
// place. It returns guide lines for magnetic snaps, empty otherwise.
func (l *Layer) Move(g *Gesture, sc *domain.Scene, x, y float64, canvasW, canvasH int, gridHeld bool) []GuideLine {
	if g == nil || g.Kind == KindNone {
		return nil
	}
	i := sc.FindElement(g.ElementID)
	if i < 0 {
		return nil // element deleted mid-drag
	}
	el := &sc.Elements[i]
	switch g.Kind {
	case KindMove:
		return l.moveElement(g, el, x, y, canvasW, canvasH, gridHeld)
	case KindResize:
		l.resizeElement(g, el, x)
	}
	return nil
}

func (l *Layer) moveElement(g *Gesture, el *domain.OverlayElement, x, y float64, canvasW, canvasH int, gridHeld bool) []GuideLine {
	newX := (x - g.grabDX) / float64(canvasW) * 100
	newY := (y - g.grabDY) / float64(canvasH) * 100
	newX, newY, guides := SnapPosition(newX, newY, gridHeld, l.Snap)
	el.XPercent = clampPercent(newX)
	el.YPercent = clampPercent(newY)
	return guides
}

// resizeElement scales by the ratio of the dragged width to the width at drag
// start. Text resizing is a proxy for font size, image resizing scales the
// size percentages directly.
func (l *Layer) resizeElement(g *Gesture, el *domain.OverlayElement, x float64) {
	if g.startRect.W <= 0 {
		return
	}
	newW := x - g.startRect.X
	if newW < 1 {
		newW = 1
	}
	ratio := newW / g.startRect.W
	switch el.Kind {
	case domain.ElementText:
		size := g.startFontSize * ratio
		if size < 8 {
			size = 8
		}
		if size > 300 {
			size = 300
		}
		if el.Style == nil {
			el.Style = &domain.TextStyle{}
		}
		el.Style.FontSize = size
	case domain.ElementImage:
		w := g.startSize.Width * ratio
		h := g.startSize.Height * ratio
		if w < 2 {
			w = 2
		}
		if h < 2 {
			h = 2
		}
		el.Size = &domain.SizePercent{Width: w, Height: h}
	}
}

func clampPercent(v float64) float64 {
	if v < MinPercent {
		return MinPercent
	}
	if v > MaxPercent {
		return MaxPercent
	}
	return v
}

// DropPosition converts a pointer drop in canvas pixels to element percent
// coordinates, unsnapped and clamped.
func DropPosition(x, y float64, canvasW, canvasH int) (float64, float64) {
	return clampPercent(x / float64(canvasW) * 100), clampPercent(y / float64(canvasH) * 100)
}
