/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model for story compositions: a story is an
// ordered list of scenes, each scene carries one visual source, a camera
// transform, a transition, and an ordered list of timed overlay elements.
// The model serializes to a human-readable JSON document.

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Story is the root document: a topic rendered as an ordered scene list plus
// shared audio and presentation settings.
type Story struct {
	ID              string             `json:"id"`
	Topic           string             `json:"topic,omitempty"`
	Language        string             `json:"language,omitempty"`
	Segments        []Scene            `json:"segments"`
	Characters      []Character        `json:"characters,omitempty"`
	BackgroundMusic string             `json:"backgroundMusic,omitempty"` // data URL or asset ref
	Presentation    PresentationConfig `json:"presentation,omitempty"`
	UpdatedAt       string             `json:"updatedAt,omitempty"` // RFC3339
}

// Scene is one story beat: the unit of timing, transition and visual source.
type Scene struct {
	ID             string           `json:"id"`
	Text           string           `json:"text,omitempty"`
	CustomDuration float64          `json:"customDuration,omitempty"` // explicit seconds override; 0 = derive
	Visual         Visual           `json:"visual,omitempty"`
	Transform      VisualTransform  `json:"transform,omitempty"`
	TransitionIn   Transition       `json:"transitionIn,omitempty"`
	Elements       []OverlayElement `json:"elements,omitempty"`
	Narration      *NarrationRef    `json:"narration,omitempty"`
}

// NarrationRef points at pre-rendered narration audio for a scene.
// Exactly one of URL or DataBase64 is typically set; DataBase64 survives
// export/import round trips while URL is ephemeral.
type NarrationRef struct {
	URL          string  `json:"url,omitempty"`
	DataBase64   string  `json:"dataBase64,omitempty"`
	NarratorID   string  `json:"narratorId,omitempty"`
	LengthSecond float64 `json:"lengthSeconds,omitempty"` // probed duration, 0 if unknown
}

// VideoClip describes a trimmed source video.
type VideoClip struct {
	Ref          string  `json:"ref"` // URL, path or asset id
	TrimStart    float64 `json:"trimStart"`
	TrimEnd      float64 `json:"trimEnd"`
	PlaybackRate float64 `json:"playbackRate,omitempty"` // 0 means 1.0
	Filter       Filter  `json:"filter,omitempty"`
}

// Rate returns the effective playback rate, defaulting to 1.
func (c VideoClip) Rate() float64 {
	if c.PlaybackRate <= 0 {
		return 1
	}
	return c.PlaybackRate
}

// TrimmedSeconds is the clip's trimmed play time adjusted for rate.
func (c VideoClip) TrimmedSeconds() float64 {
	d := c.TrimEnd - c.TrimStart
	if d < 0 {
		d = 0
	}
	return d / c.Rate()
}

// VisualTransform is the camera applied to the scene's visual source only,
// never to overlays. Offsets are percentages of the canvas dimensions.
// Mutation is whole-object replacement so history snapshots stay correct.
type VisualTransform struct {
	Scale float64 `json:"scale"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// IdentityTransform is the neutral camera.
func IdentityTransform() VisualTransform { return VisualTransform{Scale: 1, X: 0, Y: 0} }

// IsIdentity reports whether the transform is the neutral camera.
func (t VisualTransform) IsIdentity() bool { return (t.Scale == 1 || t.Scale == 0) && t.X == 0 && t.Y == 0 }

// EffectiveScale returns Scale defaulting to 1 for zero values.
func (t VisualTransform) EffectiveScale() float64 {
	if t.Scale <= 0 {
		return 1
	}
	return t.Scale
}

// ElementKind discriminates overlay element payloads.
type ElementKind string

const (
	ElementText  ElementKind = "text"
	ElementImage ElementKind = "image"
)

// TimeWindow bounds an element's visibility within the scene's own elapsed
// time. The zero value means "entire scene".
type TimeWindow struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Contains reports whether the window covers the given in-scene time.
// A zero-valued window covers everything.
func (w TimeWindow) Contains(elapsed float64) bool {
	if w.Start == 0 && w.End == 0 {
		return true
	}
	if elapsed < w.Start {
		return false
	}
	if w.End > 0 && elapsed > w.End {
		return false
	}
	return true
}

// TextStyle holds typography for text overlay elements.
type TextStyle struct {
	FontSize        float64 `json:"fontSize,omitempty"`
	Color           string  `json:"color,omitempty"`           // #rrggbb or #rrggbbaa
	BackgroundColor string  `json:"backgroundColor,omitempty"` // empty or "transparent" = none
	FontFamily      string  `json:"fontFamily,omitempty"`
	Bold            bool    `json:"bold,omitempty"`
}

// SizePercent is an image element's size as a percentage of the canvas.
type SizePercent struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// OverlayElement is a text or image object positioned and timed independently
// atop a scene's visual. Positions are percentages of the canvas and may run
// negative or past 100 for partially offscreen placement. Paint order is the
// slice order; the last element is topmost.
type OverlayElement struct {
	ID         string       `json:"id"`
	Kind       ElementKind  `json:"kind"`
	Content    string       `json:"content"` // literal text or image reference
	XPercent   float64      `json:"xPercent"`
	YPercent   float64      `json:"yPercent"`
	Size       *SizePercent `json:"sizePercent,omitempty"` // image kind
	Style      *TextStyle   `json:"style,omitempty"`       // text kind
	Visible    *bool        `json:"visible,omitempty"`     // nil = visible
	TimeWindow *TimeWindow  `json:"timeWindow,omitempty"`  // nil = entire scene
}

// IsVisible reports the element's visibility flag, defaulting to true.
func (e OverlayElement) IsVisible() bool { return e.Visible == nil || *e.Visible }

// ActiveAt reports whether the element should be drawn at the given in-scene
// time, ignoring the selected-ghost editing aid.
func (e OverlayElement) ActiveAt(elapsed float64) bool {
	if !e.IsVisible() {
		return false
	}
	if e.TimeWindow == nil {
		return true
	}
	return e.TimeWindow.Contains(elapsed)
}

// Character is a named narrator voice with a speed multiplier.
type Character struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	VoiceName  string  `json:"voiceName,omitempty"`
	VoiceSpeed float64 `json:"voiceSpeed,omitempty"` // 0 means 1.0
}

// Speed returns the effective narration rate, defaulting to 1.
func (c Character) Speed() float64 {
	if c.VoiceSpeed <= 0 {
		return 1
	}
	return c.VoiceSpeed
}

// PresentationConfig holds slideshow presentation settings.
type PresentationConfig struct {
	FontFamily     string  `json:"fontFamily,omitempty"`
	FontSize       float64 `json:"fontSize,omitempty"`
	AnimationSpeed float64 `json:"animationSpeed,omitempty"`
	Loop           bool    `json:"loop,omitempty"`
}

// Transition names the blend used at a scene's start against the previous
// scene's last frame.
type Transition string

const (
	TransitionFade    Transition = "fade"
	TransitionSlide   Transition = "slide"
	TransitionZoom    Transition = "zoom"
	TransitionFlip    Transition = "flip"
	TransitionCurtain Transition = "curtain"
)

// Transitions lists all valid transition names in display order.
func Transitions() []Transition {
	return []Transition{TransitionFade, TransitionSlide, TransitionZoom, TransitionFlip, TransitionCurtain}
}

// Valid reports whether t names a known transition. Empty is valid and means
// fade.
func (t Transition) Valid() bool {
	switch t {
	case "", TransitionFade, TransitionSlide, TransitionZoom, TransitionFlip, TransitionCurtain:
		return true
	}
	return false
}

// Filter names a pixel filter applied to a video clip.
type Filter string

const (
	FilterNone      Filter = ""
	FilterGrayscale Filter = "grayscale"
	FilterSepia     Filter = "sepia"
	FilterVintage   Filter = "vintage"
)

// Valid reports whether f names a known filter.
func (f Filter) Valid() bool {
	switch f {
	case FilterNone, FilterGrayscale, FilterSepia, FilterVintage:
		return true
	}
	return false
}

// NewID returns a fresh opaque identifier.
func NewID() string { return uuid.NewString() }

// NewScene returns an empty scene with a fresh id and identity transform.
func NewScene() Scene {
	return Scene{ID: NewID(), Transform: IdentityTransform(), TransitionIn: TransitionFade}
}

// FindScene returns the index of the scene with the given id, or -1.
func FindScene(scenes []Scene, id string) int {
	for i := range scenes {
		if scenes[i].ID == id {
			return i
		}
	}
	return -1
}

// FindElement returns the index of the element with the given id, or -1.
func (s *Scene) FindElement(id string) int {
	for i := range s.Elements {
		if s.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

// Validate checks structural invariants of the story. It does not touch the
// filesystem or network; asset references are validated lazily at render time.
func (st *Story) Validate() error {
	if strings.TrimSpace(st.ID) == "" {
		return fmt.Errorf("story: missing id")
	}
	seen := make(map[string]struct{}, len(st.Segments))
	for i := range st.Segments {
		sc := &st.Segments[i]
		if strings.TrimSpace(sc.ID) == "" {
			return fmt.Errorf("story: segment %d missing id", i)
		}
		if _, dup := seen[sc.ID]; dup {
			return fmt.Errorf("story: duplicate segment id %q", sc.ID)
		}
		seen[sc.ID] = struct{}{}
		if !sc.TransitionIn.Valid() {
			return fmt.Errorf("segment %q: unknown transition %q", sc.ID, sc.TransitionIn)
		}
		if err := sc.Visual.validate(); err != nil {
			return fmt.Errorf("segment %q: %w", sc.ID, err)
		}
		if sc.CustomDuration < 0 {
			return fmt.Errorf("segment %q: negative duration", sc.ID)
		}
		for j := range sc.Elements {
			el := &sc.Elements[j]
			if el.Kind != ElementText && el.Kind != ElementImage {
				return fmt.Errorf("segment %q element %d: unknown kind %q", sc.ID, j, el.Kind)
			}
			if el.TimeWindow != nil && el.TimeWindow.End > 0 && el.TimeWindow.End < el.TimeWindow.Start {
				return fmt.Errorf("segment %q element %q: time window end before start", sc.ID, el.ID)
			}
		}
	}
	return nil
}
