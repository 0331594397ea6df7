/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps per-scene history of camera transform edits. Scope is
// deliberately limited to the transform: overlay and structural edits are not
// tracked. Snapshots are whole transform values captured immediately before
// the first change of a gesture.
package undo

import (
	"sync"
	"time"

	"gostorystudio/internal/domain"
)

// Entry is one recorded transform state.
type Entry struct {
	Transform domain.VisualTransform
	TS        time.Time
}

// Config controls depth caps and coalescing behavior.
type Config struct {
	// MaxPerScene limits snapshots per scene (0 means unlimited).
	MaxPerScene int
	// MinInterval drops pushes arriving within the interval of the previous
	// push for the same scene, so a dense slider burst records one snapshot.
	MinInterval time.Duration
}

// Manager provides an in-memory undo/redo stack per scene.
// It is safe for concurrent use.
type Manager struct {
	cfg    Config
	mu     sync.Mutex
	past   map[string][]Entry
	future map[string][]Entry
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxPerScene <= 0 {
		cfg.MaxPerScene = 100
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &Manager{cfg: cfg, past: make(map[string][]Entry), future: make(map[string][]Entry)}
}

// Push records the scene's transform as it was before an edit. Any new edit
// invalidates the redo stack for that scene. A push within MinInterval of the
// previous one is dropped, keeping the pre-burst state as the undo target.
func (m *Manager) Push(sceneID string, t domain.VisualTransform) {
	m.Stamp(sceneID, t, time.Now())
}

// Stamp is Push with an explicit timestamp, for tests.
func (m *Manager) Stamp(sceneID string, t domain.VisualTransform, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.past[sceneID]
	if n := len(stack); n > 0 && ts.Sub(stack[n-1].TS) < m.cfg.MinInterval {
		m.future[sceneID] = nil
		return
	}
	stack = append(stack, Entry{Transform: t, TS: ts})
	if m.cfg.MaxPerScene > 0 && len(stack) > m.cfg.MaxPerScene {
		stack = append([]Entry{}, stack[len(stack)-m.cfg.MaxPerScene:]...)
	}
	m.past[sceneID] = stack
	m.future[sceneID] = nil
}

// Undo pops the most recent snapshot for the scene and parks the current
// transform on the redo stack. The returned transform is what the scene
// should be set to.
func (m *Manager) Undo(sceneID string, current domain.VisualTransform) (domain.VisualTransform, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.past[sceneID]
	if len(stack) == 0 {
		return domain.VisualTransform{}, false
	}
	e := stack[len(stack)-1]
	m.past[sceneID] = stack[:len(stack)-1]
	m.future[sceneID] = append(m.future[sceneID], Entry{Transform: current, TS: time.Now()})
	return e.Transform, true
}

// Redo re-applies the most recently undone transform, parking the current one
// back on the undo stack without clearing redo history.
func (m *Manager) Redo(sceneID string, current domain.VisualTransform) (domain.VisualTransform, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.future[sceneID]
	if len(r) == 0 {
		return domain.VisualTransform{}, false
	}
	e := r[len(r)-1]
	m.future[sceneID] = r[:len(r)-1]
	m.past[sceneID] = append(m.past[sceneID], Entry{Transform: current, TS: time.Now()})
	return e.Transform, true
}

// CanUndo reports whether the scene has undoable history.
func (m *Manager) CanUndo(sceneID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.past[sceneID]) > 0
}

// CanRedo reports whether the scene has redoable history.
func (m *Manager) CanRedo(sceneID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.future[sceneID]) > 0
}

// ClearScene drops all history for a scene, e.g. when it is deleted.
func (m *Manager) ClearScene(sceneID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.past, sceneID)
	delete(m.future, sceneID)
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (scenes, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	scenes = len(m.past)
	for _, v := range m.past {
		totalSnapshots += len(v)
	}
	return scenes, totalSnapshots
}
