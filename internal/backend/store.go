/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend stores annotation documents in PostgreSQL for shared use.
// It mirrors the storage.DocumentStore contract of the local SQLite store.
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"xlabel/internal/domain"
	applog "xlabel/internal/log"
	"xlabel/internal/storage"
)

// Config describes how to reach the database. Password is kept separate from
// the DSN so it can come from the keyring.
type Config struct {
	DSN      string
	User     string
	Password string
	Timeout  time.Duration
}

// PGStore is a storage.DocumentStore backed by PostgreSQL.
type PGStore struct {
	db      *sql.DB
	timeout time.Duration
	log     *slog.Logger
}

var _ storage.DocumentStore = (*PGStore)(nil)

// Open connects, pings and migrates the database.
func Open(ctx context.Context, cfg Config) (*PGStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres DSN is required")
	}
	pc, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.User != "" {
		pc.User = cfg.User
	}
	if cfg.Password != "" {
		pc.Password = cfg.Password
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	pc.ConnectTimeout = cfg.Timeout
	db := stdlib.OpenDB(*pc)
	l := applog.WithComponent("backend").With(slog.String("host", pc.Host), slog.String("db", pc.Database))

	pctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(pctx, db, l); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	l.Debug("backend ready")
	return &PGStore{db: db, timeout: cfg.Timeout, log: l}, nil
}

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Put upserts doc keyed by ID, reusing the ID already stored for its image.
func (s *PGStore) Put(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	if doc.Image.Path == "" {
		return fmt.Errorf("%w: image path is required", domain.ErrInvalidDocument)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if doc.ID == "" {
		var existing string
		err := tx.QueryRowContext(ctx, `SELECT id::text FROM documents WHERE image_path=$1`, doc.Image.Path).Scan(&existing)
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
		return err
	}
	// dialect=PostgreSQL
	if _, err := tx.ExecContext(ctx, `INSERT INTO documents(id, image_path, shape_count, body, updated_at)
		VALUES($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (id) DO UPDATE SET image_path=EXCLUDED.image_path, shape_count=EXCLUDED.shape_count,
			body=EXCLUDED.body, updated_at=EXCLUDED.updated_at`,
		doc.ID, doc.Image.Path, len(doc.Shapes), string(body), doc.UpdatedAt); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_labels WHERE doc_id=$1`, doc.ID); err != nil {
		return fmt.Errorf("clear labels: %w", err)
	}
	for _, label := range doc.Labels() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO document_labels(doc_id, label) VALUES($1, $2)`, doc.ID, label); err != nil {
			return fmt.Errorf("insert label: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("document saved", slog.String("id", doc.ID), slog.Int("shapes", len(doc.Shapes)))
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (domain.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Document{}, storage.ErrNotFound
	}
	return s.getWhere(ctx, `SELECT body::text FROM documents WHERE id=$1`, id)
}

func (s *PGStore) GetByImage(ctx context.Context, imagePath string) (domain.Document, error) {
	return s.getWhere(ctx, `SELECT body::text FROM documents WHERE image_path=$1`, imagePath)
}

func (s *PGStore) getWhere(ctx context.Context, q, arg string) (domain.Document, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var body string
	err := s.db.QueryRowContext(ctx, q, arg).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("query document: %w", err)
	}
	return domain.Unmarshal([]byte(body))
}

func (s *PGStore) List(ctx context.Context) ([]storage.Summary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT id::text, image_path, shape_count, updated_at FROM documents ORDER BY updated_at DESC, image_path`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.Summary
	for rows.Next() {
		var sm storage.Summary
		if err := rows.Scan(&sm.ID, &sm.ImagePath, &sm.ShapeCount, &sm.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// ImagesWithLabel returns image paths of documents that use label.
func (s *PGStore) ImagesWithLabel(ctx context.Context, label string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT d.image_path FROM documents d
		JOIN document_labels l ON l.doc_id = d.id WHERE l.label=$1 ORDER BY d.image_path`, label)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return storage.ErrNotFound
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
