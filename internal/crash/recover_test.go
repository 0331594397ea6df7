/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gostorystudio/internal/domain"
	"gostorystudio/internal/storage"
)

// TestRecover_PanicWritesReportAndDraft ensures Recover handles a panic,
// writes a report, autosaves the open story, and does not terminate the
// test process thanks to the injected exitFn.
func TestRecover_PanicWritesReportAndDraft(t *testing.T) {
	// Capture stderr temporarily to avoid noisy test logs
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(os.Stderr, r) // drain pipe
	}()

	// Override exitFn to avoid os.Exit during test and to assert it was called
	called := 0
	oldExit := exitFn
	exitFn = func(code int) { called = code }
	defer func() { exitFn = oldExit }()

	lib, err := storage.OpenLibrary(t.TempDir())
	if err != nil {
		t.Fatalf("open library: %v", err)
	}
	story := &domain.Story{
		ID:       "wip",
		Topic:    "Volcanoes",
		Segments: []domain.Scene{{ID: "s1", Text: "Magma rises."}},
	}

	func() {
		defer Recover(lib, story)
		panic("boom")
	}()

	// Allow time for filesystem writes
	time.Sleep(50 * time.Millisecond)

	var found string
	bdir := filepath.Join(lib.Root, storage.BackupsDirName)
	files, _ := os.ReadDir(bdir)
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log") {
			found = filepath.Join(bdir, f.Name())
			break
		}
	}
	if found == "" {
		t.Fatalf("expected crash report file under backups dir")
	}
	b, err := os.ReadFile(found)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(b, []byte("Panic: boom")) {
		t.Fatalf("report does not contain panic: %s", string(b))
	}

	draft, err := lib.LoadDraft()
	if err != nil {
		t.Fatalf("draft must exist after crash: %v", err)
	}
	if draft.Topic != "Volcanoes" {
		t.Fatalf("draft topic = %q", draft.Topic)
	}

	if called != 2 {
		t.Fatalf("expected exit code 2, got %d", called)
	}
}

func TestRecoverWithoutPanicIsNoOp(t *testing.T) {
	oldExit := exitFn
	exited := false
	exitFn = func(int) { exited = true }
	defer func() { exitFn = oldExit }()

	func() {
		defer Recover(nil, nil)
	}()
	if exited {
		t.Fatal("Recover must do nothing when no panic occurred")
	}
}
