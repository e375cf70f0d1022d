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

	"xlabel/internal/domain"
	"xlabel/internal/geom"
	"xlabel/internal/shape"
	"xlabel/internal/storage"
)

func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	t.Cleanup(func() {
		_ = w.Close()
		os.Stderr = old
		_, _ = io.Copy(io.Discard, r)
	})
}

func TestWriteReportDefaultsToTemp(t *testing.T) {
	path, err := writeReport(Handler{}, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "xlabel Crash Report") || !strings.Contains(s, "Panic: boom") {
		t.Fatalf("unexpected report: %s", s)
	}
}

func TestRecoverWritesReportAndAutosaves(t *testing.T) {
	silenceStderr(t)
	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	defer func() { exitFn = oldExit }()

	dir := t.TempDir()
	doc := domain.Document{
		Version: domain.DocumentVersion,
		Image:   domain.Image{Path: "/data/cat.jpg", Width: 10, Height: 10},
		Shapes: []domain.ShapeDoc{{
			Key: "#112233", Type: shape.Point, Points: []geom.Point{geom.Pt(1, 2)}, Closed: true, Visible: true,
		}},
	}
	h := Handler{Dir: dir, Image: doc.Image.Path, Autosave: DocumentAutosave(dir, func() domain.Document { return doc })}

	func() {
		defer Recover(h)
		panic("boom")
	}()

	if code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	reports, _ := filepath.Glob(filepath.Join(dir, "crash-*.log"))
	if len(reports) != 1 {
		t.Fatalf("expected one crash report, got %v", reports)
	}
	b, _ := os.ReadFile(reports[0])
	if !bytes.Contains(b, []byte("Panic: boom")) || !bytes.Contains(b, []byte("Image: /data/cat.jpg")) {
		t.Fatalf("report content: %s", b)
	}
	saves, _ := filepath.Glob(filepath.Join(dir, "cat.jpg.autosave-*.json"))
	if len(saves) != 1 {
		t.Fatalf("expected one autosave, got %v", saves)
	}
	got, fromBackup, err := storage.OpenFile(saves[0])
	if err != nil || fromBackup || len(got.Shapes) != 1 {
		t.Fatalf("autosave unreadable: %+v %v", got, err)
	}
}

func TestRecoverWithoutPanicDoesNothing(t *testing.T) {
	called := false
	oldExit := exitFn
	exitFn = func(int) { called = true }
	defer func() { exitFn = oldExit }()
	func() {
		defer Recover(Handler{Dir: t.TempDir()})
	}()
	if called {
		t.Fatalf("exit called without panic")
	}
}
