/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package playback advances the scene cursor and per-scene elapsed time for
// the live preview. Image scenes run on a wall clock, video scenes can
// delegate to the media's own clock. Export never uses this package; it walks
// the frame grid directly.
package playback

import (
	"log/slog"
	"sync"
	"time"

	"gostorystudio/internal/assets"
	"gostorystudio/internal/domain"
	applog "gostorystudio/internal/log"
)

// TrimEpsilon is the slack before a video's trim end at which the scene
// counts as complete, absorbing media-clock jitter.
const TrimEpsilon = 0.05

// Clock abstracts time.Now for tests.
type Clock interface{ Now() time.Time }

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// MediaClock reports a video element's current position in source seconds.
// The second result is false while the media is not ready, in which case the
// controller falls back to the wall clock.
type MediaClock interface {
	CurrentTime() (float64, bool)
}

// MediaSeeker is implemented by media clocks that can reposition the player.
// The loop-within-trim branch rewinds the media through it; a MediaClock
// without Seek loops the wall clock only and the video runs on.
type MediaSeeker interface {
	Seek(seconds float64)
}

// Status is a snapshot of the controller for one render tick.
type Status struct {
	Index    int
	Elapsed  float64
	Duration float64
	Playing  bool
	Advanced bool // true on the tick that moved to a new scene
}

// Controller is the playback state machine. The scene list is read through an
// accessor on every tick, never captured, so edits during playback (reorder,
// delete) take effect immediately and auto-advance cannot act on stale data.
type Controller struct {
	mu sync.Mutex

	scenes   func() []domain.Scene
	resolver *assets.Resolver
	clock    Clock
	media    MediaClock

	idx         int
	playing     bool
	startedAt   time.Time
	pausedTotal time.Duration
	pausedAt    time.Time
	duration    float64
	loopInTrim  bool // slideshow mode: loop inside the trim instead of advancing

	log *slog.Logger
}

// NewController builds a controller over a live scene list accessor.
func NewController(scenes func() []domain.Scene, resolver *assets.Resolver) *Controller {
	return &Controller{
		scenes:   scenes,
		resolver: resolver,
		clock:    wallClock{},
		log:      applog.WithComponent("playback"),
	}
}

// SetClock replaces the wall clock, for tests.
func (c *Controller) SetClock(clk Clock) {
	c.mu.Lock()
	c.clock = clk
	c.mu.Unlock()
}

// SetMediaClock wires the current video element's clock; pass nil when the
// selected scene has no video.
func (c *Controller) SetMediaClock(m MediaClock) {
	c.mu.Lock()
	c.media = m
	c.mu.Unlock()
}

// SetLoopWithinTrim switches between the editor's single-pass advance and the
// slideshow's loop-inside-trim behavior.
func (c *Controller) SetLoopWithinTrim(loop bool) {
	c.mu.Lock()
	c.loopInTrim = loop
	c.mu.Unlock()
}

// Select jumps to the scene at index i. Playback always stops first so two
// clocks never drive the same canvas.
func (c *Controller) Select(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	list := c.scenes()
	if i < 0 {
		i = 0
	}
	if i >= len(list) {
		i = len(list) - 1
	}
	if i < 0 {
		i = 0
	}
	c.idx = i
	c.recomputeDurationLocked(list)
}

// Next advances to the following scene, stopping playback.
func (c *Controller) Next() { c.Select(c.Index() + 1) }

// Prev moves to the preceding scene, stopping playback.
func (c *Controller) Prev() { c.Select(c.Index() - 1) }

// Play starts or resumes playback of the current scene.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	now := c.clock.Now()
	if !c.pausedAt.IsZero() {
		c.pausedTotal += now.Sub(c.pausedAt)
		c.pausedAt = time.Time{}
	} else {
		c.startedAt = now
		c.pausedTotal = 0
	}
	c.recomputeDurationLocked(c.scenes())
	c.playing = true
}

// Pause freezes the clock without losing position.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.playing = false
	c.pausedAt = c.clock.Now()
}

// Stop halts playback and rewinds the current scene.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
}

func (c *Controller) stopLocked() {
	c.playing = false
	c.startedAt = time.Time{}
	c.pausedAt = time.Time{}
	c.pausedTotal = 0
}

// Index returns the current scene index.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx
}

// IsPlaying reports whether the clock is running.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Status reports the current position without advancing anything. Use it
// when redrawing outside the tick loop.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.scenes()
	if len(list) == 0 {
		return Status{}
	}
	if c.idx >= len(list) {
		c.idx = len(list) - 1
		c.recomputeDurationLocked(list)
	}
	st := Status{Index: c.idx, Duration: c.duration, Playing: c.playing}
	if c.playing || !c.pausedAt.IsZero() {
		st.Elapsed = c.elapsedLocked(&list[c.idx])
	}
	return st
}

// Tick computes the controller state for this frame and performs
// scene-complete handling: advance to the next scene, loop within the trim,
// or stop and hold on the last frame. Call once per render tick.
func (c *Controller) Tick() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.scenes()
	if len(list) == 0 {
		c.stopLocked()
		return Status{}
	}
	if c.idx >= len(list) {
		// scene deleted under us
		c.idx = len(list) - 1
		c.recomputeDurationLocked(list)
	}

	st := Status{Index: c.idx, Duration: c.duration, Playing: c.playing}
	if !c.playing {
		return st
	}

	sc := &list[c.idx]
	elapsed := c.elapsedLocked(sc)
	st.Elapsed = elapsed

	if c.sceneCompleteLocked(sc, elapsed) {
		if c.loopInTrim {
			// slideshow loop: rewind inside the trim, keep playing
			c.startedAt = c.clock.Now()
			c.pausedTotal = 0
			if sc.Visual.Mode() == domain.VisualVideo && sc.Visual.Clip != nil {
				if s, ok := c.media.(MediaSeeker); ok {
					s.Seek(sc.Visual.Clip.TrimStart)
				}
			}
			st.Elapsed = 0
			return st
		}
		if c.idx+1 < len(list) {
			c.idx++
			c.log.Debug("auto advance", slog.Int("scene", c.idx))
			c.startedAt = c.clock.Now()
			c.pausedTotal = 0
			c.recomputeDurationLocked(list)
			st.Index = c.idx
			st.Elapsed = 0
			st.Duration = c.duration
			st.Advanced = true
			return st
		}
		// end of story: stop and hold the last frame
		c.playing = false
		st.Playing = false
		st.Elapsed = c.duration
	}
	return st
}

func (c *Controller) elapsedLocked(sc *domain.Scene) float64 {
	if sc.Visual.Mode() == domain.VisualVideo && c.media != nil {
		if cur, ok := c.media.CurrentTime(); ok {
			clip := sc.Visual.Clip
			e := (cur - clip.TrimStart) / clip.Rate()
			if e < 0 {
				e = 0
			}
			return e
		}
	}
	if c.startedAt.IsZero() {
		return 0
	}
	// A paused clock reads against the freeze point, not now.
	ref := c.clock.Now()
	if !c.playing && !c.pausedAt.IsZero() {
		ref = c.pausedAt
	}
	return ref.Sub(c.startedAt).Seconds() - c.pausedTotal.Seconds()
}

func (c *Controller) sceneCompleteLocked(sc *domain.Scene, elapsed float64) bool {
	if sc.Visual.Mode() == domain.VisualVideo && sc.Visual.Clip != nil && c.media != nil {
		if cur, ok := c.media.CurrentTime(); ok {
			return cur >= sc.Visual.Clip.TrimEnd-TrimEpsilon
		}
	}
	return elapsed >= c.duration
}

func (c *Controller) recomputeDurationLocked(list []domain.Scene) {
	if c.idx >= 0 && c.idx < len(list) {
		c.duration = c.resolver.IntrinsicDuration(&list[c.idx])
		return
	}
	c.duration = 0
}
