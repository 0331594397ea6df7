/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gostorystudio/internal/domain"
	applog "gostorystudio/internal/log"
	"gostorystudio/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName keeps per-library ephemeral data out of the story files.
	IndexDirName  = ".storystudio"
	IndexFileName = "index.sqlite"

	schemaVersion = 1
)

// Summary is the index row shown in library listings without loading the
// full story file.
type Summary struct {
	ID        string
	Topic     string
	Language  string
	Scenes    int
	UpdatedAt string
}

// IndexPath returns the library's embedded index database file.
func IndexPath(libraryRoot string) string {
	return filepath.Join(libraryRoot, IndexDirName, IndexFileName)
}

// OpenIndex opens (creating if needed) the library's SQLite index, enables
// WAL mode and ensures the schema exists.
func OpenIndex(libraryRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_open").With(
		slog.String("root", libraryRoot),
	)
	if libraryRoot == "" {
		return nil, errors.New("library root is required")
	}
	if err := os.MkdirAll(filepath.Join(libraryRoot, IndexDirName), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(IndexPath(libraryRoot)))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	return db, nil
}

func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id         INTEGER PRIMARY KEY CHECK(id=1),
			schema     INTEGER NOT NULL,
			app        TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS stories (
			id         TEXT PRIMARY KEY,
			topic      TEXT,
			language   TEXT,
			scenes     INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_stories_updated ON stories(updated_at);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// UpdateIndex upserts one story's summary row. The draft slot never shows
// up in listings.
func UpdateIndex(ctx context.Context, db *sql.DB, story *domain.Story) error {
	if story == nil || story.ID == DraftID {
		return nil
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO stories (id, topic, language, scenes, updated_at) VALUES (?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET topic=excluded.topic, language=excluded.language,
			scenes=excluded.scenes, updated_at=excluded.updated_at`,
		story.ID, story.Topic, story.Language, len(story.Segments), story.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// RemoveFromIndex drops a story's summary row.
func RemoveFromIndex(ctx context.Context, db *sql.DB, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM stories WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete summary: %w", err)
	}
	return nil
}

// ListSummaries returns all indexed stories, newest first.
func ListSummaries(ctx context.Context, db *sql.DB) ([]Summary, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, topic, language, scenes, updated_at FROM stories ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Topic, &s.Language, &s.Scenes, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RebuildIndex repopulates the summary table from the story files on disk.
// The index is derived data, so a corrupt index is never fatal.
func RebuildIndex(ctx context.Context, db *sql.DB, lib *Library) error {
	ids, err := lib.StoryIDs()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM stories`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear summaries: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO stories (id, topic, language, scenes, updated_at) VALUES (?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, id := range ids {
		story, err := lib.Load(id)
		if err != nil {
			continue // unreadable story files are skipped, not fatal
		}
		if _, err := ins.ExecContext(ctx, story.ID, story.Topic, story.Language, len(story.Segments), story.UpdatedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert summary: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
