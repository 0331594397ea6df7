/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"

	"gostorystudio/internal/domain"
)

func TestUndoThenRedoRestoresExactTransform(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Nanosecond})
	before := domain.VisualTransform{Scale: 1, X: 0, Y: 0}
	after := domain.VisualTransform{Scale: 1.8, X: -12.5, Y: 3.25}

	m.Push("s1", before) // snapshot taken just before the edit
	// scene now holds `after`

	got, ok := m.Undo("s1", after)
	if !ok || got != before {
		t.Fatalf("undo = %v ok=%v, want %v", got, ok, before)
	}
	got, ok = m.Redo("s1", got)
	if !ok || got != after {
		t.Fatalf("redo = %v ok=%v, want %v", got, ok, after)
	}
}

func TestNewEditClearsFuture(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Nanosecond})
	a := domain.VisualTransform{Scale: 1}
	b := domain.VisualTransform{Scale: 2}
	m.Stamp("s1", a, time.Unix(0, 0))
	if _, ok := m.Undo("s1", b); !ok {
		t.Fatal("undo failed")
	}
	if !m.CanRedo("s1") {
		t.Fatal("redo should be available after undo")
	}
	m.Stamp("s1", a, time.Unix(10, 0)) // new edit
	if m.CanRedo("s1") {
		t.Fatal("new edit must clear the redo stack")
	}
}

func TestUndoEmptyStack(t *testing.T) {
	m := NewManager(Config{})
	if _, ok := m.Undo("nope", domain.IdentityTransform()); ok {
		t.Fatal("undo on empty stack should report false")
	}
	if _, ok := m.Redo("nope", domain.IdentityTransform()); ok {
		t.Fatal("redo on empty stack should report false")
	}
}

func TestStacksArePerScene(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Nanosecond})
	m.Stamp("a", domain.VisualTransform{Scale: 1}, time.Unix(0, 0))
	if m.CanUndo("b") {
		t.Fatal("history must not leak across scenes")
	}
	if !m.CanUndo("a") {
		t.Fatal("scene a should have history")
	}
}

func TestCoalesceKeepsFirstOfBurst(t *testing.T) {
	m := NewManager(Config{MinInterval: 250 * time.Millisecond})
	base := time.Unix(100, 0)
	first := domain.VisualTransform{Scale: 1}
	m.Stamp("s1", first, base)
	// rapid slider burst: these pushes land inside the interval and are dropped
	m.Stamp("s1", domain.VisualTransform{Scale: 1.1}, base.Add(50*time.Millisecond))
	m.Stamp("s1", domain.VisualTransform{Scale: 1.2}, base.Add(100*time.Millisecond))
	_, n := m.Stats()
	if n != 1 {
		t.Fatalf("burst should coalesce to one snapshot, have %d", n)
	}
	got, ok := m.Undo("s1", domain.VisualTransform{Scale: 1.3})
	if !ok || got != first {
		t.Fatalf("undo should return the pre-burst state, got %v", got)
	}
}

func TestMaxPerSceneCapDropsOldest(t *testing.T) {
	m := NewManager(Config{MaxPerScene: 3, MinInterval: time.Nanosecond})
	base := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		m.Stamp("s1", domain.VisualTransform{Scale: float64(i + 1)}, base.Add(time.Duration(i)*time.Second))
	}
	_, n := m.Stats()
	if n != 3 {
		t.Fatalf("cap not enforced: %d snapshots", n)
	}
	// undo three times lands on the third-newest, not the first
	cur := domain.VisualTransform{Scale: 99}
	var got domain.VisualTransform
	for i := 0; i < 3; i++ {
		var ok bool
		got, ok = m.Undo("s1", cur)
		if !ok {
			t.Fatalf("undo %d failed", i)
		}
		cur = got
	}
	if got.Scale != 3 {
		t.Fatalf("oldest surviving snapshot should be scale=3, got %v", got.Scale)
	}
	if m.CanUndo("s1") {
		t.Fatal("stack should be exhausted")
	}
}

func TestClearScene(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Nanosecond})
	m.Stamp("s1", domain.IdentityTransform(), time.Unix(0, 0))
	m.ClearScene("s1")
	if m.CanUndo("s1") {
		t.Fatal("cleared scene still has history")
	}
	scenes, _ := m.Stats()
	if scenes != 0 {
		t.Fatalf("stats should be empty, scenes=%d", scenes)
	}
}
