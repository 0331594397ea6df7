/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage persists stories as JSON files in a library directory,
// with timestamped backups, an embedded SQLite summary index and a single
// autosaved draft slot.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gostorystudio/internal/domain"
)

const (
	// DraftID is the reserved story id for the single autosave slot.
	DraftID = "current_draft"

	BackupsDirName = "backups"
	storyExt       = ".json"

	// keepBackups bounds how many timestamped backups survive per story.
	keepBackups = 10
)

// Library is a directory of story files plus its backups and index.
type Library struct {
	Root string
}

// OpenLibrary ensures the library directory structure exists.
func OpenLibrary(root string) (*Library, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("library root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create library root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(root, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create backups dir: %w", err)
	}
	return &Library{Root: root}, nil
}

// StoryPath returns the file a story id is stored under.
func (l *Library) StoryPath(id string) string {
	return filepath.Join(l.Root, id+storyExt)
}

// Save validates the story, stamps UpdatedAt, backs up any previous version
// and replaces the file transactionally (temp file plus rename).
func (l *Library) Save(story *domain.Story) error {
	if story == nil {
		return errors.New("nil story")
	}
	if err := story.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid story: %w", err)
	}
	story.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(stripEphemeral(story), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal story: %w", err)
	}
	data = append(data, '\n')

	target := l.StoryPath(story.ID)
	if _, statErr := os.Stat(target); statErr == nil {
		if berr := l.backup(story.ID, target); berr != nil {
			return fmt.Errorf("backup previous version: %w", berr)
		}
	}

	temp := filepath.Join(l.Root, fmt.Sprintf(".%s.tmp-%d-%d", story.ID, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp story: %w", werr)
	}
	// Windows cannot rename over an existing file.
	if _, err := os.Stat(target); err == nil {
		_ = os.Remove(target)
	}
	if rerr := os.Rename(temp, target); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace story file: %w", rerr)
	}
	return nil
}

// Load reads a story by id. A corrupt or missing file falls back to the
// newest backup so a crashed save never loses the whole story.
func (l *Library) Load(id string) (*domain.Story, error) {
	path := l.StoryPath(id)
	b, err := os.ReadFile(path)
	if err != nil {
		story, berr := l.loadLatestBackup(id)
		if berr != nil {
			return nil, fmt.Errorf("read story: %w; backup attempt: %v", err, berr)
		}
		return story, nil
	}
	var s domain.Story
	if uerr := json.Unmarshal(b, &s); uerr != nil {
		story, berr := l.loadLatestBackup(id)
		if berr != nil {
			return nil, fmt.Errorf("parse story: %w; backup attempt: %v", uerr, berr)
		}
		return story, nil
	}
	return &s, nil
}

// stripEphemeral returns a copy for serialization with short-lived narration
// URLs dropped wherever an embedded audio copy exists. The caller's story is
// left untouched so in-session playback keeps using the URL.
func stripEphemeral(story *domain.Story) *domain.Story {
	out := *story
	out.Segments = make([]domain.Scene, len(story.Segments))
	copy(out.Segments, story.Segments)
	for i := range out.Segments {
		n := out.Segments[i].Narration
		if n != nil && n.URL != "" && n.DataBase64 != "" {
			nn := *n
			nn.URL = ""
			out.Segments[i].Narration = &nn
		}
	}
	return &out
}

// Delete removes a story file. Backups are kept.
func (l *Library) Delete(id string) error {
	if err := os.Remove(l.StoryPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete story: %w", err)
	}
	return nil
}

// SaveDraft stores the story in the reserved autosave slot without touching
// its identity. The slot holds exactly one story.
func (l *Library) SaveDraft(story *domain.Story) error {
	if story == nil {
		return errors.New("nil story")
	}
	clone := *story
	clone.ID = DraftID
	return l.Save(&clone)
}

// LoadDraft returns the autosaved draft, or os.ErrNotExist when the slot
// is empty.
func (l *Library) LoadDraft() (*domain.Story, error) {
	if _, err := os.Stat(l.StoryPath(DraftID)); err != nil {
		return nil, err
	}
	return l.Load(DraftID)
}

// ClearDraft empties the autosave slot.
func (l *Library) ClearDraft() error {
	return l.Delete(DraftID)
}

func (l *Library) backup(id, path string) error {
	bdir := filepath.Join(l.Root, BackupsDirName)
	stamp := time.Now().Format("20060102-150405")
	bpath := filepath.Join(bdir, fmt.Sprintf("%s%s.%s.bak", id, storyExt, stamp))
	if err := copyFile(path, bpath); err != nil {
		return err
	}
	l.pruneBackups(id)
	return nil
}

// pruneBackups drops the oldest backups beyond keepBackups. Best effort.
func (l *Library) pruneBackups(id string) {
	names := l.backupFiles(id)
	for len(names) > keepBackups {
		_ = os.Remove(names[0])
		names = names[1:]
	}
}

// backupFiles lists a story's backups sorted oldest first. The timestamp in
// the name makes lexicographic order chronological.
func (l *Library) backupFiles(id string) []string {
	bdir := filepath.Join(l.Root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil
	}
	prefix := id + storyExt + "."
	var names []string
	for _, e := range ents {
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".bak") {
			names = append(names, filepath.Join(bdir, e.Name()))
		}
	}
	sort.Strings(names)
	return names
}

func (l *Library) loadLatestBackup(id string) (*domain.Story, error) {
	names := l.backupFiles(id)
	if len(names) == 0 {
		return nil, errors.New("no backups found")
	}
	b, err := os.ReadFile(names[len(names)-1])
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	var s domain.Story
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse latest backup: %w", err)
	}
	return &s, nil
}

// StoryIDs scans the library directory for stored story ids, excluding the
// draft slot. This is the index-free fallback listing.
func (l *Library) StoryIDs() ([]string, error) {
	ents, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, fmt.Errorf("read library dir: %w", err)
	}
	var ids []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, storyExt) || strings.HasPrefix(name, ".") {
			continue
		}
		id := strings.TrimSuffix(name, storyExt)
		if id == DraftID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// writeFileSync writes data and flushes it to disk before returning.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
