/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import "testing"

func TestWordWrapBasic(t *testing.T) {
	l := NewWordWrap(BasicProvider{})
	// Face7x13 advances 7px per glyph; "hello world" is 77px wide unwrapped.
	box := l.Layout("hello world", FontSpec{}, 60)
	if len(box.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %#v", len(box.Lines), box.Lines)
	}
	if box.Lines[0].Text != "hello" || box.Lines[1].Text != "world" {
		t.Fatalf("unexpected line content: %#v", box.Lines)
	}
}

func TestWordWrapNoLimit(t *testing.T) {
	l := NewWordWrap(BasicProvider{})
	box := l.Layout("a b c d e", FontSpec{}, 0)
	if len(box.Lines) != 1 {
		t.Fatalf("maxWidth=0 should not wrap, got %d lines", len(box.Lines))
	}
}

func TestWordWrapExplicitNewlines(t *testing.T) {
	l := NewWordWrap(BasicProvider{})
	box := l.Layout("one\ntwo three", FontSpec{}, 0)
	if len(box.Lines) != 2 || box.Lines[0].Text != "one" || box.Lines[1].Text != "two three" {
		t.Fatalf("newline handling wrong: %#v", box.Lines)
	}
}

func TestWordWrapLongWordKeptWhole(t *testing.T) {
	l := NewWordWrap(BasicProvider{})
	box := l.Layout("a incomprehensibilities b", FontSpec{}, 50)
	// the long word cannot fit but must not be split
	for _, ln := range box.Lines {
		if ln.Text == "" {
			t.Fatalf("empty line emitted: %#v", box.Lines)
		}
	}
	found := false
	for _, ln := range box.Lines {
		if ln.Text == "incomprehensibilities" {
			found = true
		}
	}
	if !found {
		t.Fatalf("long word was split: %#v", box.Lines)
	}
}

func TestWordWrapEmptyText(t *testing.T) {
	l := NewWordWrap(BasicProvider{})
	box := l.Layout("", FontSpec{}, 100)
	if len(box.Lines) != 1 || box.Height <= 0 {
		t.Fatalf("empty text should give one empty line with height: %#v", box)
	}
}

func TestHeightAccumulates(t *testing.T) {
	l := NewWordWrap(BasicProvider{})
	one := l.Layout("word", FontSpec{}, 0)
	two := l.Layout("word\nword", FontSpec{}, 0)
	if two.Height != 2*one.Height {
		t.Fatalf("two lines should be twice one line: %v vs %v", two.Height, one.Height)
	}
}

func TestOTProviderResolvesEmbedded(t *testing.T) {
	p := DefaultProvider()
	face, met := p.Resolve(FontSpec{SizePt: 24})
	if face == nil || met.Ascent <= 0 {
		t.Fatalf("embedded font did not resolve: %#v", met)
	}
	// larger size gives larger metrics
	_, big := p.Resolve(FontSpec{SizePt: 48})
	if big.Ascent <= met.Ascent {
		t.Fatalf("48pt ascent %v not larger than 24pt %v", big.Ascent, met.Ascent)
	}
}

func TestOTProviderSizeAffectsWidth(t *testing.T) {
	p := DefaultProvider()
	l := NewWordWrap(p)
	small := l.MeasureString("Story Studio", FontSpec{SizePt: 12})
	large := l.MeasureString("Story Studio", FontSpec{SizePt: 36})
	if large <= small {
		t.Fatalf("width should grow with font size: %v vs %v", small, large)
	}
}
