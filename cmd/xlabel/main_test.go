/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/zalando/go-keyring"

	"xlabel/internal/domain"
	"xlabel/internal/geom"
	applog "xlabel/internal/log"
	"xlabel/internal/shape"
	"xlabel/internal/storage"
)

func TestMain(m *testing.M) {
	keyring.MockInit()
	os.Exit(m.Run())
}

// isolate points config, database and logs at a fresh temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XLABEL_CONFIG", filepath.Join(dir, "config.yaml"))
	t.Setenv("XLABEL_DB", filepath.Join(dir, "xlabel.db"))
	t.Setenv("XLABEL_PG_DSN", "")
	t.Cleanup(func() { _ = applog.Close() })
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := imaging.Save(imaging.New(w, h, color.NRGBA{R: 30, G: 30, B: 30, A: 255}), p); err != nil {
		t.Fatal(err)
	}
	return p
}

// writeDoc stores a one-rectangle document next to an image called a.png.
func writeDoc(t *testing.T, dir string) string {
	t.Helper()
	writePNG(t, dir, "a.png", 120, 80)
	doc := domain.Document{
		Version: domain.DocumentVersion,
		Image:   domain.Image{Path: "a.png", Width: 120, Height: 80},
		Shapes: []domain.ShapeDoc{{
			Key:     "#ff0000",
			Type:    shape.Rectangle,
			Points:  []geom.Point{geom.Pt(10, 10), geom.Pt(60, 40)},
			Closed:  true,
			Visible: true,
			Label:   shape.LabelInfo{LabelName: "car"},
		}},
	}
	p := filepath.Join(dir, "a.json")
	if err := storage.SaveFile(p, doc); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, err := execute(t, "version")
	if err != nil || !strings.HasPrefix(out, "xlabel ") {
		t.Fatalf("version = %q, %v", out, err)
	}
}

func TestInfoOnImageAndDocument(t *testing.T) {
	dir := isolate(t)
	img := writePNG(t, dir, "photo.png", 64, 32)
	out, err := execute(t, "info", img)
	if err != nil || !strings.Contains(out, "64x32") {
		t.Fatalf("info image = %q, %v", out, err)
	}

	doc := writeDoc(t, dir)
	out, err = execute(t, "info", "--json", doc)
	if err != nil {
		t.Fatalf("info doc: %v", err)
	}
	var info fileInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if info.Shapes != 1 || info.ByType["rectangle"] != 1 || len(info.Labels) != 1 || info.Labels[0] != "car" {
		t.Fatalf("info = %+v", info)
	}
	if _, err := execute(t, "info", filepath.Join(dir, "nope.png")); err == nil {
		t.Fatalf("missing file must fail")
	}
}

const replayScript = `image: missing.png
size: [200, 100]
steps:
  - label: car
  - down: [20, 20]
  - up: [20, 20]
  - move: [80, 60]
  - down: [80, 60]
  - up: [80, 60]
  - key: ctrl+q
`

func TestReplayWritesDocument(t *testing.T) {
	dir := isolate(t)
	sc := filepath.Join(dir, "s.yaml")
	if err := os.WriteFile(sc, []byte(replayScript), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "replay", sc)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	doc, err := domain.Unmarshal([]byte(out))
	if err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(doc.Shapes) != 1 || doc.Shapes[0].Type != shape.Rectangle || doc.Shapes[0].Label.LabelName != "car" {
		t.Fatalf("replayed shapes = %+v", doc.Shapes)
	}

	png := filepath.Join(dir, "out.png")
	js := filepath.Join(dir, "out.json")
	if _, err := execute(t, "replay", sc, "-o", js, "--png", png); err != nil {
		t.Fatalf("replay to files: %v", err)
	}
	for _, p := range []string{png, js} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing %s", p)
		}
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("steps:\n  - jump\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "replay", bad); err == nil || !strings.Contains(err.Error(), "bad.yaml:2:") {
		t.Fatalf("parse errors should carry file and line, got %v", err)
	}
}

func TestExportCommand(t *testing.T) {
	dir := isolate(t)
	doc := writeDoc(t, dir)
	outDir := filepath.Join(dir, "out")
	out, err := execute(t, "export", doc, "--format", "png,svg", "--out", outDir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, f := range []string{"png", "svg"} {
		p := filepath.Join(outDir, f, "a."+f)
		if !strings.Contains(out, p) {
			t.Fatalf("output does not list %s: %q", p, out)
		}
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing %s", p)
		}
	}
	if _, err := execute(t, "export", doc, "--preset", "poster"); err == nil {
		t.Fatalf("unknown preset must fail")
	}
}

func TestStorePutListGet(t *testing.T) {
	dir := isolate(t)
	doc := writeDoc(t, dir)
	out, err := execute(t, "store", "put", doc)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	id, _, _ := strings.Cut(strings.TrimSpace(out), "\t")
	if id == "" {
		t.Fatalf("put printed no id: %q", out)
	}

	out, err = execute(t, "store", "list")
	if err != nil || !strings.Contains(out, id) || !strings.Contains(out, "a.png") {
		t.Fatalf("list = %q, %v", out, err)
	}

	out, err = execute(t, "store", "get", filepath.Join(dir, "a.png"))
	if err != nil {
		t.Fatalf("get by image: %v", err)
	}
	got, err := domain.Unmarshal([]byte(out))
	if err != nil || got.ID != id || len(got.Shapes) != 1 {
		t.Fatalf("get = %+v, %v", got, err)
	}

	thumb := filepath.Join(dir, "thumb.png")
	if _, err := execute(t, "store", "thumb", id, "-o", thumb, "--size", "32"); err != nil {
		t.Fatalf("thumb: %v", err)
	}
	img, err := imaging.Open(thumb)
	if err != nil || img.Bounds().Dx() != 32 || img.Bounds().Dy() > 32 {
		t.Fatalf("thumbnail = %v, %v", img.Bounds(), err)
	}

	if _, err := execute(t, "store", "labels", "car"); err == nil {
		t.Fatalf("label lookup needs the postgres backend")
	}
	if _, err := execute(t, "store", "delete", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := execute(t, "store", "get", id); err == nil {
		t.Fatalf("deleted document still found")
	}
}

func TestConfigShowAndInit(t *testing.T) {
	dir := isolate(t)
	out, err := execute(t, "config", "show")
	if err != nil || !strings.Contains(out, "rectangle") {
		t.Fatalf("show = %q, %v", out, err)
	}
	if _, err := execute(t, "config", "init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if _, err := execute(t, "config", "init"); err == nil {
		t.Fatalf("init must not overwrite without --force")
	}
	if _, err := execute(t, "config", "set-password"); err == nil {
		t.Fatalf("empty password must be rejected")
	}
}
