/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Deterministic text measurement and greedy line breaking. The same layout
// result feeds both on-canvas drawing and hit-test bounding boxes, so overlay
// selection rectangles can never drift from the visible text.

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// FontSpec describes a requested font.
type FontSpec struct {
	Family string // logical family name
	SizePt float32
	Bold   bool
}

// Metrics provides font metrics in pixels for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float32
}

// LineHeight is ascent + descent + gap.
func (m Metrics) LineHeight() float32 { return m.Ascent + m.Descent + m.LineGap }

// Line is a single laid out line with its measured width.
type Line struct {
	Text  string
	Width float32
}

// TextBox is the result of laying out text into a box width.
type TextBox struct {
	Lines   []Line
	Width   float32
	Height  float32
	Metrics Metrics
}

// Provider maps FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// BasicProvider uses x/image/basicfont Face7x13 for deterministic tests.
type BasicProvider struct{}

func (BasicProvider) Resolve(FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	m := f.Metrics()
	return f, Metrics{
		Ascent:  float32(m.Ascent.Round()),
		Descent: float32(m.Descent.Round()),
		LineGap: float32(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
	}
}

// WordWrapLayouter breaks on spaces with a greedy policy: words are appended
// to the current line while the measured width stays under the max, otherwise
// a new line starts. It does not hyphenate; a single word wider than the box
// stays on its own line.
type WordWrapLayouter struct{ Provider Provider }

func NewWordWrap(provider Provider) *WordWrapLayouter { return &WordWrapLayouter{Provider: provider} }

// Layout wraps text at maxWidth pixels using the given font. A maxWidth of
// zero or below disables wrapping except at explicit newlines.
func (l *WordWrapLayouter) Layout(text string, spec FontSpec, maxWidth float32) TextBox {
	if l.Provider == nil {
		l.Provider = BasicProvider{}
	}
	face, met := l.Provider.Resolve(spec)
	drawer := &font.Drawer{Face: face}
	box := TextBox{Metrics: met}
	addLine := func(line string) {
		w := advance(drawer, line)
		box.Lines = append(box.Lines, Line{Text: line, Width: w})
		if w > box.Width {
			box.Width = w
		}
		box.Height += met.LineHeight()
	}
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			addLine("")
			continue
		}
		cur := words[0]
		for _, word := range words[1:] {
			candidate := cur + " " + word
			if maxWidth > 0 && advance(drawer, candidate) > maxWidth {
				addLine(cur)
				cur = word
				continue
			}
			cur = candidate
		}
		addLine(cur)
	}
	if len(box.Lines) == 0 {
		addLine("")
	}
	return box
}

// MeasureString returns the width of s without any wrapping.
func (l *WordWrapLayouter) MeasureString(s string, spec FontSpec) float32 {
	if l.Provider == nil {
		l.Provider = BasicProvider{}
	}
	face, _ := l.Provider.Resolve(spec)
	return advance(&font.Drawer{Face: face}, s)
}

func advance(d *font.Drawer, s string) float32 {
	return float32(d.MeasureString(s) >> 6) // fixed.Int26_6 to px
}
