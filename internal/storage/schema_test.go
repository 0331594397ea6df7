/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"testing"
)

func TestExportedStoryConformsToSchema(t *testing.T) {
	data, err := ExportStory(testStory("story-1"))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := ValidateStoryJSON(data); err != nil {
		t.Fatalf("exported story must validate: %v", err)
	}
}

func TestImportRoundTrip(t *testing.T) {
	data, err := ExportStory(testStory("story-1"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := ImportStory(data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if got.ID != "story-1" || len(got.Segments) != 2 {
		t.Errorf("imported story = %+v", got)
	}
}

func TestImportRejectsMissingSegments(t *testing.T) {
	_, err := ImportStory([]byte(`{"id": "s1", "topic": "No scenes"}`))
	if !errors.Is(err, ErrInvalidImport) {
		t.Fatalf("err = %v, want ErrInvalidImport", err)
	}
}

func TestImportRejectsMissingID(t *testing.T) {
	_, err := ImportStory([]byte(`{"segments": []}`))
	if !errors.Is(err, ErrInvalidImport) {
		t.Fatalf("err = %v, want ErrInvalidImport", err)
	}
}

func TestImportRejectsMalformedJSON(t *testing.T) {
	_, err := ImportStory([]byte(`{"id": "s1", "segments": [`))
	if !errors.Is(err, ErrInvalidImport) {
		t.Fatalf("err = %v, want ErrInvalidImport", err)
	}
}

func TestImportRejectsUnknownTransition(t *testing.T) {
	doc := `{"id": "s1", "segments": [{"id": "a", "transitionIn": "teleport"}]}`
	_, err := ImportStory([]byte(doc))
	if !errors.Is(err, ErrInvalidImport) {
		t.Fatalf("err = %v, want ErrInvalidImport", err)
	}
}

func TestImportMigratesLegacyVideoFields(t *testing.T) {
	doc := `{
		"id": "s1",
		"segments": [{
			"id": "a",
			"videoUrl": "clip.mp4",
			"trimStart": 1.0,
			"trimEnd": 6.0,
			"playbackRate": 2.0
		}]
	}`
	got, err := ImportStory([]byte(doc))
	if err != nil {
		t.Fatalf("import legacy: %v", err)
	}
	sc := got.Segments[0]
	if sc.Visual.Clip == nil || sc.Visual.Clip.Ref != "clip.mp4" {
		t.Fatalf("legacy video not migrated: %+v", sc.Visual)
	}
	if sec := sc.Visual.Clip.TrimmedSeconds(); sec != 2.5 {
		t.Errorf("trimmed seconds = %v, want 2.5", sec)
	}
}
