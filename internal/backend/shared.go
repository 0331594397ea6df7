/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gostorystudio/internal/domain"
)

// SharedLibrary publishes finished stories to a team Postgres database.
// It is optional; the desktop app works fully offline without it.
type SharedLibrary struct {
	db *sql.DB
}

// SharedEntry is one published story in listings.
type SharedEntry struct {
	ID          string
	Topic       string
	Language    string
	Scenes      int
	PublishedAt time.Time
}

// OpenShared connects to the shared library and ensures its schema exists.
func OpenShared(ctx context.Context, dsn string) (*SharedLibrary, error) {
	if dsn == "" {
		return nil, errors.New("shared library DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open shared db: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping shared db: %w", err)
	}
	ddl := `CREATE TABLE IF NOT EXISTS shared_stories (
		id           TEXT PRIMARY KEY,
		topic        TEXT NOT NULL DEFAULT '',
		language     TEXT NOT NULL DEFAULT '',
		scenes       INTEGER NOT NULL DEFAULT 0,
		document     JSONB NOT NULL,
		published_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure shared schema: %w", err)
	}
	return &SharedLibrary{db: db}, nil
}

// Close releases the database connection.
func (s *SharedLibrary) Close() error { return s.db.Close() }

// Publish upserts a story into the shared library.
func (s *SharedLibrary) Publish(ctx context.Context, story *domain.Story) error {
	if story == nil {
		return errors.New("nil story")
	}
	if err := story.Validate(); err != nil {
		return fmt.Errorf("refusing to publish invalid story: %w", err)
	}
	doc, err := json.Marshal(story)
	if err != nil {
		return fmt.Errorf("marshal story: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shared_stories (id, topic, language, scenes, document, published_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET topic=EXCLUDED.topic, language=EXCLUDED.language,
			scenes=EXCLUDED.scenes, document=EXCLUDED.document, published_at=now()`,
		story.ID, story.Topic, story.Language, len(story.Segments), doc)
	if err != nil {
		return fmt.Errorf("publish story: %w", err)
	}
	return nil
}

// List returns published stories, newest first.
func (s *SharedLibrary) List(ctx context.Context) ([]SharedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, language, scenes, published_at
		FROM shared_stories ORDER BY published_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list shared stories: %w", err)
	}
	defer rows.Close()
	var out []SharedEntry
	for rows.Next() {
		var e SharedEntry
		if err := rows.Scan(&e.ID, &e.Topic, &e.Language, &e.Scenes, &e.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan shared story: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Fetch downloads one published story document.
func (s *SharedLibrary) Fetch(ctx context.Context, id string) (*domain.Story, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM shared_stories WHERE id=$1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shared story %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch shared story: %w", err)
	}
	var story domain.Story
	if err := json.Unmarshal(doc, &story); err != nil {
		return nil, fmt.Errorf("parse shared story: %w", err)
	}
	return &story, nil
}
