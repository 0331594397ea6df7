/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package interact

import (
	"math"
	"testing"

	"gostorystudio/internal/assets"
	"gostorystudio/internal/domain"
	"gostorystudio/internal/render"
)

func testLayer() *Layer {
	return NewLayer(render.New(assets.NewResolver(nil, assets.StandardDurations())))
}

func imageElement(id string, x, y, w, h float64) domain.OverlayElement {
	return domain.OverlayElement{
		ID: id, Kind: domain.ElementImage, Content: "ref",
		XPercent: x, YPercent: y,
		Size: &domain.SizePercent{Width: w, Height: h},
	}
}

func TestHitTestTopmostWins(t *testing.T) {
	l := testLayer()
	sc := domain.NewScene()
	// both cover the canvas center; the later element paints on top
	sc.Elements = []domain.OverlayElement{
		imageElement("below", 40, 40, 20, 20),
		imageElement("above", 45, 45, 20, 20),
	}
	id, ok := l.HitTest(&sc, 400, 200, 800, 400)
	if !ok || id != "above" {
		t.Fatalf("topmost element should win, got %q ok=%v", id, ok)
	}
}

func TestHitTestMissDeselects(t *testing.T) {
	l := testLayer()
	sc := domain.NewScene()
	sc.Elements = []domain.OverlayElement{imageElement("e", 0, 0, 10, 10)}
	g, sel := l.Begin(&sc, "e", 700, 380, 800, 400)
	if g != nil || sel != "" {
		t.Fatalf("empty-canvas click must clear selection, got %v %q", g, sel)
	}
}

func TestDragPixelToPercentMath(t *testing.T) {
	l := testLayer()
	sc := domain.NewScene()
	sc.Elements = []domain.OverlayElement{imageElement("e", 10, 10, 10, 10)}
	const cw, ch = 800, 400
	// grab the element at its top-left corner
	g, sel := l.Begin(&sc, "", 80, 40, cw, ch)
	if g == nil || g.Kind != KindMove || sel != "e" {
		t.Fatalf("expected move gesture on e, got %#v %q", g, sel)
	}
	// drag by (+160, +80) px = (+20%, +20%)
	l.Move(g, &sc, 240, 120, cw, ch, false)
	el := sc.Elements[0]
	if math.Abs(el.XPercent-30) > 1e-9 || math.Abs(el.YPercent-30) > 1e-9 {
		t.Fatalf("position = (%v, %v), want (30, 30)", el.XPercent, el.YPercent)
	}
}

func TestDragWithGridSnapsToMultiples(t *testing.T) {
	l := testLayer()
	sc := domain.NewScene()
	sc.Elements = []domain.OverlayElement{imageElement("e", 10, 10, 10, 10)}
	const cw, ch = 800, 400
	g, _ := l.Begin(&sc, "", 80, 40, cw, ch)
	l.Move(g, &sc, 103, 67, cw, ch, true)
	el := sc.Elements[0]
	if math.Mod(el.XPercent, 5) != 0 || math.Mod(el.YPercent, 5) != 0 {
		t.Fatalf("grid snap should give multiples of 5, got (%v, %v)", el.XPercent, el.YPercent)
	}
}

func TestMagneticSnapEmitsGuides(t *testing.T) {
	x, y, guides := SnapPosition(49.2, 71, false, DefaultSnap())
	if x != 50 {
		t.Fatalf("x should snap to 50, got %v", x)
	}
	if y != 71 {
		t.Fatalf("y should stay unsnapped, got %v", y)
	}
	if len(guides) != 1 || guides[0].Orientation != "vertical" || guides[0].Position != 50 {
		t.Fatalf("expected one vertical guide at 50, got %#v", guides)
	}
}

func TestGridTakesPriorityOverMagnetic(t *testing.T) {
	// 49.2 is within magnetic range of 50, but grid rounds to 50 as well;
	// 48 would magnetically stay but grid rounds to 50. No guides either way.
	x, _, guides := SnapPosition(48, 10, true, DefaultSnap())
	if x != 50 || guides != nil {
		t.Fatalf("grid mode: x=%v guides=%v", x, guides)
	}
}

func TestClampAllowsPartialOffscreen(t *testing.T) {
	l := testLayer()
	sc := domain.NewScene()
	sc.Elements = []domain.OverlayElement{imageElement("e", 10, 10, 10, 10)}
	const cw, ch = 800, 400
	g, _ := l.Begin(&sc, "", 80, 40, cw, ch)
	l.Move(g, &sc, -4000, 9000, cw, ch, false)
	el := sc.Elements[0]
	if el.XPercent != MinPercent || el.YPercent != MaxPercent {
		t.Fatalf("clamp failed: (%v, %v)", el.XPercent, el.YPercent)
	}
}

func TestResizeHandlePriorityOverHitTest(t *testing.T) {
	l := testLayer()
	sc := domain.NewScene()
	// two overlapping elements; the handle of the selected lower one must win
	sc.Elements = []domain.OverlayElement{
		imageElement("sel", 10, 10, 20, 20),
		imageElement("top", 10, 10, 30, 30),
	}
	const cw, ch = 800, 400
	r := l.Renderer.ElementRect(&sc.Elements[0], cw, ch)
	hr := render.HandleRect(r)
	g, sel := l.Begin(&sc, "sel", hr.X+hr.W/2, hr.Y+hr.H/2, cw, ch)
	if g == nil || g.Kind != KindResize || sel != "sel" {
		t.Fatalf("handle should start a resize on the selection, got %#v %q", g, sel)
	}
}

func TestResizeImageScalesSizePercent(t *testing.T) {
	l := testLayer()
	sc := domain.NewScene()
	sc.Elements = []domain.OverlayElement{imageElement("e", 10, 10, 10, 20)}
	const cw, ch = 800, 400
	r := l.Renderer.ElementRect(&sc.Elements[0], cw, ch) // 80px wide
	hr := render.HandleRect(r)
	g, _ := l.Begin(&sc, "e", hr.X+hr.W/2, hr.Y+hr.H/2, cw, ch)
	// drag so the width doubles
	l.Move(g, &sc, r.X+2*r.W, 0, cw, ch, false)
	el := sc.Elements[0]
	if math.Abs(el.Size.Width-20) > 0.5 || math.Abs(el.Size.Height-40) > 1 {
		t.Fatalf("resize should double size, got %#v", el.Size)
	}
}

func TestResizeTextScalesFontSize(t *testing.T) {
	l := testLayer()
	sc := domain.NewScene()
	sc.Elements = []domain.OverlayElement{{
		ID: "t", Kind: domain.ElementText, Content: "Resize me please",
		XPercent: 10, YPercent: 10,
		Style: &domain.TextStyle{FontSize: 24},
	}}
	const cw, ch = 800, 400
	r := l.Renderer.ElementRect(&sc.Elements[0], cw, ch)
	hr := render.HandleRect(r)
	g, _ := l.Begin(&sc, "t", hr.X+hr.W/2, hr.Y+hr.H/2, cw, ch)
	l.Move(g, &sc, r.X+2*r.W, 0, cw, ch, false)
	got := sc.Elements[0].Style.FontSize
	if math.Abs(got-48) > 3 {
		t.Fatalf("doubling width should roughly double font size, got %v", got)
	}
}

func TestDropPositionCenter(t *testing.T) {
	x, y := DropPosition(427, 240, 854, 480)
	if math.Abs(x-50) > 0.1 || y != 50 {
		t.Fatalf("drop at center = (%v, %v), want (50, 50)", x, y)
	}
}

func TestMoveElementDeletedMidDrag(t *testing.T) {
	l := testLayer()
	sc := domain.NewScene()
	sc.Elements = []domain.OverlayElement{imageElement("e", 10, 10, 10, 10)}
	g, _ := l.Begin(&sc, "", 80, 40, 800, 400)
	sc.Elements = nil
	if guides := l.Move(g, &sc, 100, 100, 800, 400, false); guides != nil {
		t.Fatalf("vanished element should be a no-op")
	}
}
