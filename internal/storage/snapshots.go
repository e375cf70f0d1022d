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
	"time"

	"xlabel/internal/domain"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(doc_id, ts, body) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT ts, body FROM snapshots WHERE doc_id = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT ts, body FROM snapshots WHERE doc_id = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE doc_id = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE doc_id = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// Snapshot is one historical version of a document.
type Snapshot struct {
	TS  time.Time
	Doc domain.Document
}

// SaveSnapshot stores doc as a history entry of its document. The document must already exist.
func (db *DB) SaveSnapshot(ctx context.Context, doc domain.Document, ts time.Time) error {
	if doc.ID == "" {
		return errors.New("snapshot needs a stored document")
	}
	body, err := domain.Marshal(doc)
	if err != nil {
		return err
	}
	if _, err := db.sql.ExecContext(ctx, insertSnapshotSQL, doc.ID, ts.UTC().Format(tsLayout), body); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot for docID or ErrNotFound.
func (db *DB) LatestSnapshot(ctx context.Context, docID string) (Snapshot, error) {
	var ts string
	var body []byte
	err := db.sql.QueryRowContext(ctx, selectLatestSnapshotSQL, docID).Scan(&ts, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	return decodeSnapshot(ts, body)
}

// ListSnapshots returns up to limit snapshots, newest first.
func (db *DB) ListSnapshots(ctx context.Context, docID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.sql.QueryContext(ctx, listSnapshotsSQL, docID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var ts string
		var body []byte
		if err := rows.Scan(&ts, &body); err != nil {
			return nil, err
		}
		s, err := decodeSnapshot(ts, body)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps the newest keepLast snapshots of docID and deletes the rest.
func (db *DB) PruneSnapshots(ctx context.Context, docID string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := db.sql.ExecContext(ctx, pruneOldSnapshotsSQL, docID, docID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func decodeSnapshot(ts string, body []byte) (Snapshot, error) {
	doc, err := domain.Unmarshal(body)
	if err != nil {
		return Snapshot{}, err
	}
	t, _ := time.Parse(tsLayout, ts)
	return Snapshot{TS: t, Doc: doc}, nil
}
