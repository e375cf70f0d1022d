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
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// EnvPreviewsMaxBytes caps the total size of cached thumbnails.
const EnvPreviewsMaxBytes = "XLABEL_PREVIEWS_MAX_BYTES"

const defaultPreviewsMaxBytes = 64 * 1024 * 1024

// Thumbnail scales img to fit w×h (keeping the aspect ratio) and encodes it as PNG.
func Thumbnail(img image.Image, w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid thumbnail size %dx%d", w, h)
	}
	t := imaging.Fit(img, w, h, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, t, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// GetPreview returns the cached preview for docID at w×h, or nil when absent.
// A hit refreshes the LRU access time.
func (db *DB) GetPreview(ctx context.Context, docID string, w, h int) ([]byte, error) {
	var blob []byte
	err := db.sql.QueryRowContext(ctx, `SELECT blob FROM previews WHERE doc_id=? AND w=? AND h=?`, docID, w, h).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preview: %w", err)
	}
	now := time.Now().UTC().Format(tsLayout)
	_, _ = db.sql.ExecContext(ctx, `UPDATE previews SET last_access=? WHERE doc_id=? AND w=? AND h=?`, now, docID, w, h)
	return blob, nil
}

// PutPreview upserts a preview and evicts least recently used rows beyond the size cap.
func (db *DB) PutPreview(ctx context.Context, docID string, w, h int, blob []byte) error {
	now := time.Now().UTC().Format(tsLayout)
	_, err := db.sql.ExecContext(ctx, `INSERT INTO previews(doc_id, w, h, blob, size, updated_at, last_access)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(doc_id, w, h) DO UPDATE SET blob=excluded.blob, size=excluded.size,
			updated_at=excluded.updated_at, last_access=excluded.last_access`,
		docID, w, h, blob, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert preview: %w", err)
	}
	return db.EvictPreviewsToFit(ctx, MaxPreviewsBytesFromEnv())
}

// GetOrCreatePreview returns the cached preview or generates, stores and returns a new one.
func (db *DB) GetOrCreatePreview(ctx context.Context, docID string, w, h int, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := db.GetPreview(ctx, docID, w, h); err != nil || b != nil {
		return b, err
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil || data == nil {
		return nil, err
	}
	if err := db.PutPreview(ctx, docID, w, h, data); err != nil {
		return nil, err
	}
	return data, nil
}

// EvictPreviewsToFit deletes least recently used rows until the total size is at most capBytes.
func (db *DB) EvictPreviewsToFit(ctx context.Context, capBytes int64) error {
	if capBytes <= 0 {
		return nil
	}
	var total int64
	if err := db.sql.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return fmt.Errorf("sum previews size: %w", err)
	}
	if total <= capBytes {
		return nil
	}
	rows, err := db.sql.QueryContext(ctx, `SELECT id, size FROM previews ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END, last_access, id`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []any
	cur := total
	for rows.Next() && cur > capBytes {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, id)
		cur -= sz
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// the single connection must be free before writing
	if err := rows.Close(); err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	q := `DELETE FROM previews WHERE id IN (` + strings.TrimSuffix(strings.Repeat("?,", len(victims)), ",") + `)`
	if _, err := db.sql.ExecContext(ctx, q, victims...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// TotalPreviewBytes returns the bytes tracked by the preview cache.
func (db *DB) TotalPreviewBytes(ctx context.Context) (int64, error) {
	var total int64
	err := db.sql.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total)
	return total, err
}

// MaxPreviewsBytesFromEnv reads XLABEL_PREVIEWS_MAX_BYTES, defaulting to 64MB.
func MaxPreviewsBytesFromEnv() int64 {
	n, err := strconv.ParseInt(os.Getenv(EnvPreviewsMaxBytes), 10, 64)
	if err != nil || n <= 0 {
		return defaultPreviewsMaxBytes
	}
	return n
}
