/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"xlabel/internal/domain"
)

// ErrNotFound is returned when no document matches the lookup.
var ErrNotFound = errors.New("document not found")

// Summary is a listing row without the document body.
type Summary struct {
	ID         string
	ImagePath  string
	ShapeCount int
	UpdatedAt  time.Time
}

// DocumentStore is implemented by the SQLite DB and the Postgres backend.
type DocumentStore interface {
	Put(ctx context.Context, doc *domain.Document) error
	Get(ctx context.Context, id string) (domain.Document, error)
	GetByImage(ctx context.Context, imagePath string) (domain.Document, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

var _ DocumentStore = (*DB)(nil)

// language=SQL
// dialect=SQLite
const upsertDocumentSQL = `INSERT INTO documents(id, image_path, shape_count, body, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET image_path=excluded.image_path, shape_count=excluded.shape_count,
		body=excluded.body, updated_at=excluded.updated_at`

// Put inserts or replaces doc. A document without ID reuses the ID stored for
// the same image, or gets a fresh UUID; the ID and UpdatedAt are written back.
func (db *DB) Put(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	if doc.Image.Path == "" {
		return fmt.Errorf("%w: image path is required", domain.ErrInvalidDocument)
	}
	if doc.ID == "" {
		var existing string
		err := db.sql.QueryRowContext(ctx, `SELECT id FROM documents WHERE image_path=?`, doc.Image.Path).Scan(&existing)
		switch {
		case err == nil:
			doc.ID = existing
		case errors.Is(err, sql.ErrNoRows):
			doc.ID = uuid.NewString()
		default:
			return fmt.Errorf("lookup document: %w", err)
		}
	}
	doc.UpdatedAt = time.Now().UTC()
	body, err := domain.Marshal(*doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	ts := doc.UpdatedAt.Format(tsLayout)
	if _, err := db.sql.ExecContext(ctx, upsertDocumentSQL, doc.ID, doc.Image.Path, len(doc.Shapes), string(body), ts, ts); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	db.log.Debug("document saved", slog.String("id", doc.ID), slog.Int("shapes", len(doc.Shapes)))
	return nil
}

func (db *DB) Get(ctx context.Context, id string) (domain.Document, error) {
	return db.getWhere(ctx, `SELECT body FROM documents WHERE id=?`, id)
}

// GetByImage returns the document stored for imagePath.
func (db *DB) GetByImage(ctx context.Context, imagePath string) (domain.Document, error) {
	return db.getWhere(ctx, `SELECT body FROM documents WHERE image_path=?`, imagePath)
}

func (db *DB) getWhere(ctx context.Context, q string, arg string) (domain.Document, error) {
	var body string
	err := db.sql.QueryRowContext(ctx, q, arg).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, ErrNotFound
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("query document: %w", err)
	}
	return domain.Unmarshal([]byte(body))
}

// List returns all documents, most recently updated first.
func (db *DB) List(ctx context.Context) ([]Summary, error) {
	rows, err := db.sql.QueryContext(ctx, `SELECT id, image_path, shape_count, updated_at FROM documents ORDER BY updated_at DESC, image_path`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Summary
	for rows.Next() {
		var s Summary
		var ts string
		if err := rows.Scan(&s.ID, &s.ImagePath, &s.ShapeCount, &ts); err != nil {
			return nil, err
		}
		s.UpdatedAt, _ = time.Parse(tsLayout, ts)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a document together with its snapshots and previews.
func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `DELETE FROM documents WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
