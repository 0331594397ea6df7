/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package assets turns scene references into concrete drawable sources and
// owns the duration derivation rules shared by playback and export.
package assets

import (
	"image"
	"log/slog"
	"math"

	"gostorystudio/internal/domain"
	applog "gostorystudio/internal/log"
)

// DurationDefaults are the knobs of the duration derivation chain.
type DurationDefaults struct {
	ImageDwell    float64 // seconds each image in a set is held
	NarrationTail float64 // padding appended after narration audio
	MinScene      float64 // floor for trim-derived durations
	Fallback      float64 // used when nothing else applies
}

// StandardDurations mirrors the application defaults.
func StandardDurations() DurationDefaults {
	return DurationDefaults{ImageDwell: 4, NarrationTail: 1.5, MinScene: 2, Fallback: 5}
}

// Source is the concrete visual to draw for one frame.
type Source struct {
	Image image.Image       // nil when nothing is drawable this frame
	Clip  *domain.VideoClip // set for video scenes
}

// Resolver loads and caches scene media and computes intrinsic durations.
type Resolver struct {
	Images    *ImageCache
	Frames    FrameExtractor // video frame access, nil disables video drawing
	Durations DurationDefaults

	narratorSpeed func(narratorID string) float64
	log           *slog.Logger
}

// FrameExtractor yields a decoded frame of a video at a clip-relative time.
// Implementations may be approximate; the renderer only needs "close enough"
// for preview, while export asks frame by frame.
type FrameExtractor interface {
	FrameAt(ref string, seconds float64) (image.Image, error)
}

// NewResolver returns a resolver with a fresh image cache.
func NewResolver(frames FrameExtractor, d DurationDefaults) *Resolver {
	if d == (DurationDefaults{}) {
		d = StandardDurations()
	}
	return &Resolver{
		Images:    NewImageCache(),
		Frames:    frames,
		Durations: d,
		log:       applog.WithComponent("assets"),
	}
}

// IntrinsicDuration derives a scene's play time in seconds. Exactly one
// branch fires, in priority order: explicit override, narration length plus
// tail, trimmed video length floored at the minimum, image count times dwell,
// fixed fallback. Non-finite results collapse to the fallback.
func (r *Resolver) IntrinsicDuration(sc *domain.Scene) float64 {
	d := r.durationOf(sc)
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return r.Durations.Fallback
	}
	return d
}

func (r *Resolver) durationOf(sc *domain.Scene) float64 {
	if sc.CustomDuration > 0 {
		return sc.CustomDuration
	}
	if sc.Narration != nil && sc.Narration.LengthSecond > 0 {
		rate := 1.0
		// narrator speed stretches or shrinks the audio playback time
		if sc.Narration.NarratorID != "" && r.narratorSpeed != nil {
			if s := r.narratorSpeed(sc.Narration.NarratorID); s > 0 {
				rate = s
			}
		}
		return sc.Narration.LengthSecond/rate + r.Durations.NarrationTail
	}
	if sc.Visual.Mode() == domain.VisualVideo && sc.Visual.Clip != nil {
		d := sc.Visual.Clip.TrimmedSeconds()
		if d < r.Durations.MinScene {
			d = r.Durations.MinScene
		}
		return d
	}
	if sc.Visual.Mode() == domain.VisualImages {
		return float64(len(sc.Visual.Images)) * r.Durations.ImageDwell
	}
	return r.Durations.Fallback
}

// SetNarratorSpeed wires an optional lookup so duration math can honor
// per-character voice speed without the resolver owning the cast list.
func (r *Resolver) SetNarratorSpeed(fn func(narratorID string) float64) { r.narratorSpeed = fn }

// ResolveAt returns the drawable source for a scene at the given in-scene
// time. Image sets cycle on the dwell interval; a missing or undecodable
// asset yields an empty source rather than an error so the render loop can
// skip the layer and retry next tick.
func (r *Resolver) ResolveAt(sc *domain.Scene, elapsed float64) Source {
	switch sc.Visual.Mode() {
	case domain.VisualVideo:
		clip := sc.Visual.Clip
		src := Source{Clip: clip}
		if r.Frames == nil {
			return src
		}
		t := clip.TrimStart + elapsed*clip.Rate()
		if clip.TrimEnd > clip.TrimStart && t > clip.TrimEnd {
			t = clip.TrimEnd
		}
		img, err := r.Frames.FrameAt(clip.Ref, t)
		if err != nil {
			r.log.Debug("video frame unavailable", slog.String("ref", clip.Ref), slog.Any("err", err))
			return src
		}
		src.Image = img
		return src
	case domain.VisualImages:
		ref := r.imageAt(sc, elapsed)
		if ref == "" {
			return Source{}
		}
		img, err := r.Images.Get(ref)
		if err != nil {
			r.log.Debug("image unavailable", slog.String("ref", ref), slog.Any("err", err))
			return Source{}
		}
		return Source{Image: img}
	}
	return Source{}
}

// imageAt picks the image for the elapsed time. The cycle starts at the
// author's cursor and steps every dwell interval, so a parked set shows the
// chosen image at rest and playback resumes from it.
func (r *Resolver) imageAt(sc *domain.Scene, elapsed float64) string {
	imgs := sc.Visual.Images
	if len(imgs) == 0 {
		return ""
	}
	if len(imgs) == 1 {
		return imgs[0]
	}
	start := sc.Visual.ActiveIndex
	if start < 0 {
		start = 0
	}
	if start >= len(imgs) {
		start = len(imgs) - 1
	}
	dwell := r.Durations.ImageDwell
	if dwell <= 0 {
		dwell = 4
	}
	idx := (start + int(math.Floor(elapsed/dwell))) % len(imgs)
	if idx < 0 {
		idx = 0
	}
	return imgs[idx]
}
