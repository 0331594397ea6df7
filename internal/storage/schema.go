/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"gostorystudio/internal/domain"
)

//go:embed story.schema.json
var storySchema []byte

// ErrInvalidImport marks input rejected before any state was touched.
var ErrInvalidImport = errors.New("invalid story document")

// ValidateStoryJSON checks raw bytes against the interchange schema. It is
// the gate every import passes before anything is mutated or written.
func ValidateStoryJSON(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(storySchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidImport, strings.Join(msgs, "; "))
	}
	return nil
}

// ImportStory parses an interchange document into a story. Validation runs
// first, so a malformed document (missing id or segments) is rejected with
// ErrInvalidImport and no partial story is ever produced. Legacy flat video
// fields are migrated during unmarshal.
func ImportStory(data []byte) (*domain.Story, error) {
	if err := ValidateStoryJSON(data); err != nil {
		return nil, err
	}
	var s domain.Story
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return &s, nil
}

// ExportStory renders a story as an indented interchange document.
func ExportStory(story *domain.Story) ([]byte, error) {
	if story == nil {
		return nil, errors.New("nil story")
	}
	data, err := json.MarshalIndent(story, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal story: %w", err)
	}
	return append(data, '\n'), nil
}
