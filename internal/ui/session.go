/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ui hosts the editor. Session ties the engine to its collaborators
// and persistence without depending on a GUI toolkit; the Fyne window in
// app_fyne.go is a thin shell over it.
package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"xlabel/internal/backend"
	"xlabel/internal/config"
	"xlabel/internal/crash"
	"xlabel/internal/domain"
	"xlabel/internal/engine"
	"xlabel/internal/export"
	"xlabel/internal/imagesource"
	"xlabel/internal/keymap"
	applog "xlabel/internal/log"
	"xlabel/internal/shape"
	"xlabel/internal/storage"
)

var (
	ErrNoStore = errors.New("no document store configured")
	ErrNoImage = errors.New("no image loaded")
)

// imageExts are the extensions picked up by OpenDir.
var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// snapshotter is implemented by the SQLite store.
type snapshotter interface {
	SaveSnapshot(ctx context.Context, doc domain.Document, ts time.Time) error
	PruneSnapshots(ctx context.Context, docID string, keepLast int) (int64, error)
}

// OpenStore opens the Postgres backend when a DSN is configured and the local
// SQLite database otherwise. The returned func closes it.
func OpenStore(ctx context.Context, cfg config.AppConfig, password string) (storage.DocumentStore, func() error, error) {
	if cfg.Backend.DSN != "" {
		pg, err := backend.Open(ctx, backend.Config{
			DSN:      cfg.Backend.DSN,
			User:     cfg.Backend.User,
			Password: password,
			Timeout:  cfg.Backend.Timeout(),
		})
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	path, err := cfg.Storage.DatabasePath()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	db, rebuilt, err := storage.OpenOrRebuild(path)
	if err != nil {
		return nil, nil, err
	}
	if rebuilt {
		applog.WithComponent("ui").Warn("database was damaged and has been rebuilt", slog.String("path", path))
	}
	return db, db.Close, nil
}

// Session is one editor window worth of state.
type Session struct {
	Engine *engine.Engine
	Raster *export.Raster
	Images *imagesource.FileSource
	Keys   *keymap.Map

	// OnRedraw runs after the raster changed. OnStatus receives short user
	// facing messages. OnChange mirrors the engine notifications. All may be
	// called from any goroutine; set them before Open.
	OnRedraw func()
	OnStatus func(string)
	OnChange func(engine.ChangeType)

	store     storage.DocumentStore
	maxSnaps  int
	style     engine.Style
	autosaves string
	log       *slog.Logger

	mu       sync.Mutex
	playlist []string
	idx      int
	dirty    bool
}

// redrawRenderer forwards to the raster and tells the session.
type redrawRenderer struct {
	r *export.Raster
	s *Session
}

func (rr redrawRenderer) Draw(sh *shape.Shape, v engine.View) {
	rr.r.Draw(sh, v)
	rr.s.redraw()
}

func (rr redrawRenderer) RemoveVisual(key string) {
	rr.r.RemoveVisual(key)
	rr.s.redraw()
}

func (rr redrawRenderer) ReRender(shapes []*shape.Shape, v engine.View, all bool) {
	rr.r.ReRender(shapes, v, all)
	rr.s.redraw()
}

// NewSession builds an engine sized w×h from cfg. store may be nil. Invalid
// editor settings or shortcuts are logged and skipped.
func NewSession(cfg config.AppConfig, store storage.DocumentStore, w, h int) *Session {
	l := applog.WithComponent("ui")
	opts, err := cfg.EngineOptions()
	if err != nil {
		l.Warn("editor config", slog.Any("err", err))
	}
	keys := keymap.Default()
	if err := keys.Apply(cfg.Shortcuts); err != nil {
		l.Warn("shortcuts", slog.Any("err", err))
	}
	s := &Session{
		Images:   imagesource.New(),
		Keys:     keys,
		store:    store,
		maxSnaps: cfg.Storage.MaxSnapshots,
		style:    opts.Style,
		log:      l,
		idx:      -1,
	}
	if dir, err := config.Dir(); err == nil {
		s.autosaves = filepath.Join(dir, "autosave")
	} else {
		s.autosaves = filepath.Join(os.TempDir(), "xlabel-autosave")
	}
	opts.OnChange = s.changed
	opts.OnError = s.status
	opts.Logger = applog.WithComponent("engine")
	s.Raster = export.NewRaster(w, h, export.Options{Style: opts.Style, Labels: true})
	s.Engine = engine.New(opts, redrawRenderer{r: s.Raster, s: s}, s.Images)
	s.Engine.SetSurface(engine.Surface{Width: float64(w), Height: float64(h)})
	return s
}

func (s *Session) redraw() {
	if f := s.OnRedraw; f != nil {
		f()
	}
}

func (s *Session) status(msg string) {
	if f := s.OnStatus; f != nil {
		f(msg)
	}
}

func (s *Session) changed(t engine.ChangeType) {
	switch t {
	case engine.ChangeShapes, engine.ChangeEditActive:
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
	}
	if f := s.OnChange; f != nil {
		f(t)
	}
}

// Dirty reports unsaved shape changes since the last load or save.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Session) setDirty(v bool) {
	s.mu.Lock()
	s.dirty = v
	s.mu.Unlock()
}

// Open switches to the image at path. Once its size is known the background is
// installed and, with a store, the saved annotations are loaded. done may be nil
// and may run on another goroutine.
func (s *Session) Open(path string, done func(error)) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	s.Raster.SetBackground(nil)
	s.Engine.SetImg(path, func(err error) {
		if err == nil {
			err = s.afterLoad(path)
		}
		if err != nil {
			s.status(err.Error())
		} else {
			s.status("opened " + filepath.Base(path))
		}
		if done != nil {
			done(err)
		}
	})
}

func (s *Session) afterLoad(path string) error {
	img, err := s.Images.Image(path)
	if err != nil {
		return err
	}
	s.Raster.SetBackground(img)
	defer s.setDirty(false)
	if s.store == nil {
		s.redraw()
		return nil
	}
	doc, err := s.store.GetByImage(context.Background(), path)
	if errors.Is(err, storage.ErrNotFound) {
		s.redraw()
		return nil
	}
	if err != nil {
		return fmt.Errorf("load annotations: %w", err)
	}
	s.Engine.SetData(fitDocument(doc, s.Engine.View().PixmapWidth))
	s.log.Debug("annotations loaded", slog.String("image", path), slog.Int("shapes", len(doc.Shapes)))
	return nil
}

// fitDocument rescales doc's points from its recorded pixmap to pixW.
func fitDocument(doc domain.Document, pixW float64) engine.Data {
	d := doc.Data()
	if doc.Pixmap == nil || doc.Pixmap.Width <= 0 || pixW <= 0 || doc.Pixmap.Width == pixW {
		return d
	}
	k := pixW / doc.Pixmap.Width
	for _, sh := range d.Shapes {
		for i, p := range sh.Points {
			sh.Points[i] = p.Scale(k)
		}
	}
	return d
}

// Document returns the current engine state as a document.
func (s *Session) Document() domain.Document {
	return domain.FromData(s.Engine.GetData())
}

// Save writes the current document to the store. The SQLite store also keeps a
// history snapshot, pruned to the configured count.
func (s *Session) Save(ctx context.Context) error {
	if s.store == nil {
		return ErrNoStore
	}
	doc := s.Document()
	if doc.Image.Path == "" {
		return ErrNoImage
	}
	if err := s.store.Put(ctx, &doc); err != nil {
		return err
	}
	if snap, ok := s.store.(snapshotter); ok {
		if err := snap.SaveSnapshot(ctx, doc, doc.UpdatedAt); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		if s.maxSnaps > 0 {
			if _, err := snap.PruneSnapshots(ctx, doc.ID, s.maxSnaps); err != nil {
				s.log.Warn("prune snapshots", slog.Any("err", err))
			}
		}
	}
	s.setDirty(false)
	s.status(fmt.Sprintf("saved %d shapes", len(doc.Shapes)))
	return nil
}

// SaveAs writes the current document to a JSON file.
func (s *Session) SaveAs(path string) error {
	doc := s.Document()
	if doc.Image.Path == "" {
		return ErrNoImage
	}
	if err := storage.SaveFile(path, doc); err != nil {
		return err
	}
	s.status("written " + filepath.Base(path))
	return nil
}

// Import loads shapes from a JSON document file into the open image.
func (s *Session) Import(path string) error {
	if s.Engine.GetData().ImagePath == "" {
		return ErrNoImage
	}
	doc, fromBackup, err := storage.OpenFile(path)
	if err != nil {
		return err
	}
	s.Engine.SetData(fitDocument(doc, s.Engine.View().PixmapWidth))
	if fromBackup {
		s.status("file was damaged, loaded latest backup")
	}
	return nil
}

func (s *Session) exportOptions() export.Options {
	return export.Options{Style: s.style, Labels: true}
}

// ExportPNG renders the current document at image resolution.
func (s *Session) ExportPNG(w io.Writer) error {
	doc := s.Document()
	if doc.Image.Path == "" {
		return ErrNoImage
	}
	bg, err := s.Images.Image(doc.Image.Path)
	if err != nil {
		return err
	}
	return export.WritePNG(w, doc, bg, s.exportOptions())
}

// Export writes the current document into dir using a preset.
func (s *Session) Export(dir string, preset export.PresetName) ([]string, error) {
	doc := s.Document()
	if doc.Image.Path == "" {
		return nil, ErrNoImage
	}
	return export.Batch([]domain.Document{doc}, export.BatchOptions{
		Preset:  preset,
		OutDir:  dir,
		Options: s.exportOptions(),
		Images:  s.Images.Image,
	})
}

// OpenDir sets the playlist to the images in dir, sorted by name, and opens
// the first one.
func (s *Session) OpenDir(dir string, done func(error)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var list []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(imageExts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		list = append(list, filepath.Join(dir, e.Name()))
	}
	if len(list) == 0 {
		return fmt.Errorf("no images in %s", dir)
	}
	slices.Sort(list)
	s.mu.Lock()
	s.playlist, s.idx = list, 0
	s.mu.Unlock()
	s.Open(list[0], done)
	return nil
}

// Playlist returns the images of the last OpenDir and the current index.
func (s *Session) Playlist() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.playlist), s.idx
}

// Next opens the following playlist image, saving unsaved work first when a
// store is configured. It reports false at the end of the list.
func (s *Session) Next(done func(error)) bool { return s.step(1, done) }

func (s *Session) Prev(done func(error)) bool { return s.step(-1, done) }

func (s *Session) step(d int, done func(error)) bool {
	s.mu.Lock()
	i := s.idx + d
	if i < 0 || i >= len(s.playlist) {
		s.mu.Unlock()
		return false
	}
	s.idx = i
	path := s.playlist[i]
	s.mu.Unlock()
	if s.store != nil && s.Dirty() {
		if err := s.Save(context.Background()); err != nil && !errors.Is(err, ErrNoImage) {
			s.log.Warn("save before switching", slog.Any("err", err))
		}
	}
	s.Open(path, done)
	return true
}

// Resize changes the drawing surface.
func (s *Session) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	s.Raster.Resize(w, h)
	s.Engine.SetSurface(engine.Surface{Width: float64(w), Height: float64(h)})
}

// Key dispatches a chord such as "ctrl+z" and reports whether it was bound.
func (s *Session) Key(chord string) bool {
	c, err := keymap.ParseChord(chord)
	if err != nil {
		return false
	}
	return s.Keys.Handle(s.Engine, c)
}

// action returns a button/menu handler running a through the dispatcher, so
// read-only sessions refuse edits the same way keyboard shortcuts do.
func (s *Session) action(a keymap.Action) func() {
	return func() {
		if !keymap.Dispatch(s.Engine, a) && a.Edits() {
			s.status("read-only: " + string(a) + " is disabled")
		}
	}
}

// Pointer helpers attach the raster hit test to host events.

func (s *Session) event(x, y float64, b engine.Button, m engine.Modifiers) engine.PointerEvent {
	return engine.PointerEvent{ClientX: x, ClientY: y, Button: b, Mods: m, Hit: s.Raster.HitAt(x, y)}
}

func (s *Session) Down(x, y float64, b engine.Button, m engine.Modifiers) {
	s.Engine.PointerDown(s.event(x, y, b, m))
}

func (s *Session) Move(x, y float64, m engine.Modifiers) {
	s.Engine.PointerMove(s.event(x, y, engine.ButtonLeft, m))
}

func (s *Session) Up(x, y float64, b engine.Button, m engine.Modifiers) {
	s.Engine.PointerUp(s.event(x, y, b, m))
}

func (s *Session) DoubleClick(x, y float64, m engine.Modifiers) {
	s.Engine.DoubleClick(s.event(x, y, engine.ButtonLeft, m))
}

func (s *Session) Wheel(x, y, dy float64, m engine.Modifiers) {
	s.Engine.Wheel(engine.WheelEvent{ClientX: x, ClientY: y, DeltaY: dy, Mods: m})
}

// Frame returns the current raster frame.
func (s *Session) Frame() image.Image { return s.Raster.Image() }

// CrashHandler autosaves the open document into the autosave directory.
func (s *Session) CrashHandler() crash.Handler {
	dir := filepath.Dir(s.autosaves)
	return crash.Handler{
		Dir:      dir,
		Autosave: crash.DocumentAutosave(s.autosaves, s.Document),
		Image:    s.Engine.GetData().ImagePath,
	}
}

// Status is a one-line summary for the status bar.
func (s *Session) Status() string {
	d := s.Engine.GetData()
	name := "no image"
	if d.ImagePath != "" {
		name = filepath.Base(d.ImagePath)
	}
	mark := ""
	if s.Dirty() {
		mark = " *"
	}
	return fmt.Sprintf("%s%s | %s %s | %d shapes | %.0f%%",
		name, mark, s.Engine.Mode(), s.Engine.CreateMode(), len(d.Shapes), d.Scale*100)
}
