/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"testing"
)

func TestVisualModeInference(t *testing.T) {
	var v Visual
	if v.Mode() != VisualNone {
		t.Fatalf("zero visual should be none, got %q", v.Mode())
	}
	v = Visual{Images: []string{"a.png"}}
	if v.Mode() != VisualImages {
		t.Fatalf("untagged image list should infer imageSet, got %q", v.Mode())
	}
	v = Visual{Images: []string{"a.png"}, Clip: &VideoClip{Ref: "b.mp4"}}
	if v.Mode() != VisualVideo {
		t.Fatalf("video must win over images, got %q", v.Mode())
	}
}

func TestActiveImageClamped(t *testing.T) {
	v := ImageSetVisual([]string{"a", "b", "c"}, 7)
	if got := v.ActiveImage(); got != "c" {
		t.Fatalf("out-of-range cursor should clamp to last, got %q", got)
	}
	v.ActiveIndex = -3
	if got := v.ActiveImage(); got != "a" {
		t.Fatalf("negative cursor should clamp to first, got %q", got)
	}
}

func TestLegacySceneMigrationVideoWins(t *testing.T) {
	raw := []byte(`{
		"id": "s1",
		"text": "hello",
		"imageUrls": ["one.png", "two.png"],
		"videoUrl": "clip.mp4",
		"trimStart": 1.5,
		"trimEnd": 6.5,
		"playbackRate": 2
	}`)
	var s Scene
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Visual.Mode() != VisualVideo {
		t.Fatalf("expected migrated video visual, got %q", s.Visual.Mode())
	}
	if s.Visual.Clip.Ref != "clip.mp4" || s.Visual.Clip.TrimStart != 1.5 || s.Visual.Clip.TrimEnd != 6.5 {
		t.Fatalf("clip fields not migrated: %#v", s.Visual.Clip)
	}
	if got := s.Visual.Clip.TrimmedSeconds(); got != 2.5 {
		t.Fatalf("TrimmedSeconds = %v, want 2.5", got)
	}
}

func TestLegacySceneMigrationImages(t *testing.T) {
	raw := []byte(`{"id":"s2","imageUrls":["a.png","b.png"],"activeImageIndex":1}`)
	var s Scene
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Visual.Mode() != VisualImages || s.Visual.ActiveImage() != "b.png" {
		t.Fatalf("image migration failed: %#v", s.Visual)
	}
}

func TestTaggedVisualRoundTrip(t *testing.T) {
	s := NewScene()
	s.Visual = VideoVisual(VideoClip{Ref: "v.mp4", TrimStart: 0, TrimEnd: 4, Filter: FilterSepia})
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Scene
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Visual.Mode() != VisualVideo || back.Visual.Clip.Filter != FilterSepia {
		t.Fatalf("round trip lost visual: %#v", back.Visual)
	}
}

func TestTimeWindowContains(t *testing.T) {
	var zero TimeWindow
	if !zero.Contains(0) || !zero.Contains(999) {
		t.Fatalf("zero window should cover everything")
	}
	w := TimeWindow{Start: 1, End: 3}
	for _, tc := range []struct {
		at   float64
		want bool
	}{{0.5, false}, {1, true}, {2, true}, {3, true}, {3.01, false}} {
		if got := w.Contains(tc.at); got != tc.want {
			t.Errorf("Contains(%v) = %v, want %v", tc.at, got, tc.want)
		}
	}
	open := TimeWindow{Start: 2}
	if open.Contains(1) || !open.Contains(100) {
		t.Fatalf("open-ended window wrong")
	}
}

func TestElementActiveAt(t *testing.T) {
	hidden := false
	e := OverlayElement{ID: "e1", Kind: ElementText, Visible: &hidden}
	if e.ActiveAt(0) {
		t.Fatalf("hidden element must not be active")
	}
	e.Visible = nil
	e.TimeWindow = &TimeWindow{Start: 2, End: 4}
	if e.ActiveAt(1) || !e.ActiveAt(3) {
		t.Fatalf("time window not honored")
	}
}

func TestTransformIdentity(t *testing.T) {
	if !IdentityTransform().IsIdentity() {
		t.Fatalf("identity transform not identity")
	}
	if (VisualTransform{Scale: 1.2}).IsIdentity() {
		t.Fatalf("scaled transform reported identity")
	}
	if got := (VisualTransform{}).EffectiveScale(); got != 1 {
		t.Fatalf("zero scale should default to 1, got %v", got)
	}
}

func TestStoryValidate(t *testing.T) {
	st := Story{ID: "st1", Segments: []Scene{NewScene(), NewScene()}}
	if err := st.Validate(); err != nil {
		t.Fatalf("valid story rejected: %v", err)
	}
	dup := st
	dup.Segments = []Scene{{ID: "x"}, {ID: "x"}}
	if err := dup.Validate(); err == nil {
		t.Fatalf("duplicate segment ids accepted")
	}
	bad := Story{ID: "st2", Segments: []Scene{{ID: "a", TransitionIn: "wipe"}}}
	if err := bad.Validate(); err == nil {
		t.Fatalf("unknown transition accepted")
	}
	badEl := Story{ID: "st3", Segments: []Scene{{ID: "a", Elements: []OverlayElement{{ID: "e", Kind: "sticker"}}}}}
	if err := badEl.Validate(); err == nil {
		t.Fatalf("unknown element kind accepted")
	}
}
