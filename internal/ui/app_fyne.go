//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"xlabel/internal/config"
	"xlabel/internal/crash"
	"xlabel/internal/engine"
	"xlabel/internal/export"
	"xlabel/internal/keymap"
	applog "xlabel/internal/log"
	"xlabel/internal/shape"
	"xlabel/internal/version"
)

// Run opens the editor window. target may be an image file or a directory of
// images; empty starts without an image.
func Run(target string) error {
	l := applog.WithComponent("ui")
	cfg, password, err := config.Load()
	if err != nil {
		l.Warn("config", slog.Any("err", err))
	}
	store, closeStore, err := OpenStore(context.Background(), cfg, password)
	if err != nil {
		l.Error("document store unavailable", slog.Any("err", err))
		store, closeStore = nil, func() error { return nil }
	}
	defer func() { _ = closeStore() }()

	fyneApp := app.NewWithID("xlabel")
	w := fyneApp.NewWindow("xlabel " + version.String())
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 1200), 800)
	winH := max(prefs.IntWithFallback("window.height", 800), 600)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	s := NewSession(cfg, store, winW, winH)
	defer crash.Recover(s.CrashHandler())

	status := widget.NewLabel("Ready")
	info := widget.NewLabel("")
	ac := NewAnnotationCanvas(s)

	modeSelect := widget.NewSelect(typeNames(), nil)
	modeSelect.SetSelected(string(s.Engine.CreateMode()))
	modeSelect.OnChanged = func(v string) {
		if t := shape.Type(v); t != s.Engine.CreateMode() {
			s.Engine.SetCreateMode(t)
		}
	}
	continuous := widget.NewCheck("Continuous", nil)
	continuous.SetChecked(s.Engine.Continuous())
	continuous.OnChanged = func(on bool) {
		if on != s.Engine.Continuous() {
			s.Engine.SetContinuousMode(on)
		}
	}
	labelEntry := widget.NewEntry()
	labelEntry.SetPlaceHolder("label")
	labelEntry.OnSubmitted = func(v string) {
		s.Engine.SetLabelInfo(shape.LabelInfo{LabelName: strings.TrimSpace(v)})
		w.Canvas().Focus(nil)
	}
	applyLabel := func() {
		lbl := shape.LabelInfo{LabelName: strings.TrimSpace(labelEntry.Text)}
		s.Engine.SetLabelInfo(lbl)
		if keys := s.Engine.ActiveKeys(); len(keys) > 0 {
			s.Engine.ChangeShapeData(keys, lbl)
		}
	}

	refreshInfo := func() { info.SetText(s.Status()) }
	s.OnRedraw = func() {
		fyne.Do(func() {
			ac.Refresh()
			refreshInfo()
		})
	}
	s.OnStatus = func(msg string) { fyne.Do(func() { status.SetText(msg) }) }
	s.OnChange = func(t engine.ChangeType) {
		fyne.Do(func() {
			switch t {
			case engine.ChangeCreateMode:
				modeSelect.SetSelected(string(s.Engine.CreateMode()))
			case engine.ChangeContinuousMode:
				continuous.SetChecked(s.Engine.Continuous())
			}
			refreshInfo()
		})
	}

	save := func() {
		if err := s.Save(context.Background()); err != nil {
			dialog.ShowError(err, w)
		}
	}
	openDone := func(err error) {
		if err != nil {
			l.Error("open image", slog.Any("err", err))
		}
	}
	openTarget := func(path string) {
		st, err := os.Stat(path)
		switch {
		case err != nil:
			dialog.ShowError(err, w)
		case st.IsDir():
			if err := s.OpenDir(path, openDone); err != nil {
				dialog.ShowError(err, w)
			}
		default:
			s.Open(path, openDone)
		}
	}

	toolbar := container.NewHBox(
		modeSelect,
		continuous,
		container.NewGridWrap(fyne.NewSize(160, labelEntry.MinSize().Height), labelEntry),
		widget.NewButton("Apply label", applyLabel),
		widget.NewSeparator(),
		widget.NewButton("Finish", s.action(keymap.Finish)),
		widget.NewButton("Undo", s.action(keymap.Undo)),
		widget.NewButton("Delete", s.action(keymap.DeleteActive)),
		widget.NewSeparator(),
		widget.NewButton("Zoom +", func() { s.Engine.Zoom(-1) }),
		widget.NewButton("Zoom -", func() { s.Engine.Zoom(1) }),
		widget.NewSeparator(),
		widget.NewButton("Prev", func() { s.Prev(openDone) }),
		widget.NewButton("Next", func() { s.Next(openDone) }),
		widget.NewButton("Save", save),
	)
	statusBar := container.NewBorder(nil, nil, status, info)
	w.SetContent(container.NewBorder(toolbar, statusBar, nil, nil, ac))

	bindShortcuts(w.Canvas(), s)

	imageFilter := fstorage.NewExtensionFileFilter(imageExts)
	jsonFilter := fstorage.NewExtensionFileFilter([]string{".json"})

	openItem := fyne.NewMenuItem("Open Image…", func() {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if rc == nil {
				return
			}
			_ = rc.Close()
			openTarget(rc.URI().Path())
		}, w)
		fd.SetFilter(imageFilter)
		fd.Show()
	})
	openItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierControl}
	openDirItem := fyne.NewMenuItem("Open Folder…", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uri != nil {
				openTarget(uri.Path())
			}
		}, w)
	})
	saveItem := fyne.NewMenuItem("Save", save)
	saveItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierControl}
	saveAsItem := fyne.NewMenuItem("Save As JSON…", func() {
		fd := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uc == nil {
				return
			}
			path := uc.URI().Path()
			_ = uc.Close()
			if err := s.SaveAs(path); err != nil {
				dialog.ShowError(err, w)
			}
		}, w)
		fd.SetFilter(jsonFilter)
		fd.SetFileName(strings.TrimSuffix(filepath.Base(s.Document().Image.Path), filepath.Ext(s.Document().Image.Path)) + ".json")
		fd.Show()
	})
	importItem := fyne.NewMenuItem("Import JSON…", func() {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if rc == nil {
				return
			}
			_ = rc.Close()
			if err := s.Import(rc.URI().Path()); err != nil {
				dialog.ShowError(err, w)
			}
		}, w)
		fd.SetFilter(jsonFilter)
		fd.Show()
	})
	exportPNGItem := fyne.NewMenuItem("Export PNG…", func() {
		fd := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uc == nil {
				return
			}
			defer func() { _ = uc.Close() }()
			if err := s.ExportPNG(uc); err != nil {
				dialog.ShowError(err, w)
				return
			}
			status.SetText("exported " + uc.URI().Name())
		}, w)
		fd.SetFileName("annotated.png")
		fd.Show()
	})
	exportPreset := func(p export.PresetName) func() {
		return func() {
			dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				if uri == nil {
					return
				}
				written, err := s.Export(uri.Path(), p)
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				dialog.ShowInformation("Export", fmt.Sprintf("Wrote %d files to %s", len(written), uri.Path()), w)
			}, w)
		}
	}
	fileMenu := fyne.NewMenu("File",
		openItem, openDirItem, fyne.NewMenuItemSeparator(),
		saveItem, saveAsItem, importItem, fyne.NewMenuItemSeparator(),
		exportPNGItem,
		fyne.NewMenuItem("Export for Web…", exportPreset(export.PresetWeb)),
		fyne.NewMenuItem("Export for Print…", exportPreset(export.PresetPrint)),
	)
	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", s.action(keymap.Undo)),
		fyne.NewMenuItem("Delete Selected", s.action(keymap.DeleteActive)),
		fyne.NewMenuItem("Finish Shape", s.action(keymap.Finish)),
		fyne.NewMenuItem("Abort Shape", s.Engine.Abort),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Select All", func() { s.Engine.SetActiveShapes(allKeys(s)) }),
		fyne.NewMenuItem("Select None", func() { s.Engine.SetActiveShapes(nil) }),
	)
	aboutMenu := fyne.NewMenu("About",
		fyne.NewMenuItem("Shortcuts", func() { dialog.ShowInformation("Shortcuts", shortcutHelp(s.Keys), w) }),
		fyne.NewMenuItem("Version", func() { dialog.ShowInformation("xlabel", version.String(), w) }),
	)
	w.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, aboutMenu))

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		if store != nil && s.Dirty() {
			if err := s.Save(context.Background()); err != nil {
				l.Error("save on close", slog.Any("err", err))
			}
		}
		w.Close()
	})

	if target != "" {
		openTarget(target)
	}
	refreshInfo()
	l.Info("starting UI")
	w.ShowAndRun()
	return nil
}

func typeNames() []string {
	out := make([]string, 0, len(shape.Types))
	for _, t := range shape.Types {
		out = append(out, string(t))
	}
	return out
}

func allKeys(s *Session) []string {
	d := s.Engine.GetData()
	keys := make([]string, 0, len(d.Shapes))
	for _, sh := range d.Shapes {
		keys = append(keys, sh.ColorKey)
	}
	return keys
}

// bindShortcuts registers modifier chords as canvas shortcuts and routes plain
// keys through the typed-key handler.
func bindShortcuts(c fyne.Canvas, s *Session) {
	for chord, action := range s.Keys.Bindings() {
		ch, err := keymap.ParseChord(chord)
		if err != nil || ch.Mods == 0 {
			continue
		}
		sc := &desktop.CustomShortcut{KeyName: fyneKey(ch.Key), Modifier: fyneMods(ch.Mods)}
		c.AddShortcut(sc, func(fyne.Shortcut) { s.action(action)() })
	}
	c.SetOnTypedKey(func(ev *fyne.KeyEvent) {
		s.Key(string(ev.Name))
	})
}

var namedKeys = map[string]fyne.KeyName{
	"delete":    fyne.KeyDelete,
	"backspace": fyne.KeyBackspace,
	"escape":    fyne.KeyEscape,
	"enter":     fyne.KeyReturn,
	"tab":       fyne.KeyTab,
	"space":     fyne.KeySpace,
	"=":         fyne.KeyEqual,
	"-":         fyne.KeyMinus,
}

func fyneKey(k string) fyne.KeyName {
	if n, ok := namedKeys[k]; ok {
		return n
	}
	return fyne.KeyName(strings.ToUpper(k))
}

func fyneMods(m engine.Modifiers) fyne.KeyModifier {
	var out fyne.KeyModifier
	if m.Has(engine.ModShift) {
		out |= fyne.KeyModifierShift
	}
	if m.Has(engine.ModCtrl) {
		out |= fyne.KeyModifierControl
	}
	if m.Has(engine.ModAlt) {
		out |= fyne.KeyModifierAlt
	}
	if m.Has(engine.ModMeta) {
		out |= fyne.KeyModifierSuper
	}
	return out
}

func engineMods(m fyne.KeyModifier) engine.Modifiers {
	var out engine.Modifiers
	if m&fyne.KeyModifierShift != 0 {
		out |= engine.ModShift
	}
	if m&fyne.KeyModifierControl != 0 {
		out |= engine.ModCtrl
	}
	if m&fyne.KeyModifierAlt != 0 {
		out |= engine.ModAlt
	}
	if m&fyne.KeyModifierSuper != 0 {
		out |= engine.ModMeta
	}
	return out
}

func engineButton(b desktop.MouseButton) engine.Button {
	switch b {
	case desktop.MouseButtonSecondary:
		return engine.ButtonRight
	case desktop.MouseButtonTertiary:
		return engine.ButtonMiddle
	}
	return engine.ButtonLeft
}

func shortcutHelp(m *keymap.Map) string {
	var b strings.Builder
	for chord, a := range m.Bindings() {
		fmt.Fprintf(&b, "%-14s %s\n", chord, a)
	}
	return b.String()
}

// AnnotationCanvas shows the session raster and feeds pointer input to the
// engine. Widget coordinates are used as client coordinates.
type AnnotationCanvas struct {
	widget.BaseWidget
	s *Session

	mods    engine.Modifiers
	pressed bool
}

var (
	_ desktop.Mouseable   = (*AnnotationCanvas)(nil)
	_ desktop.Hoverable   = (*AnnotationCanvas)(nil)
	_ fyne.Draggable      = (*AnnotationCanvas)(nil)
	_ fyne.DoubleTappable = (*AnnotationCanvas)(nil)
	_ fyne.Scrollable     = (*AnnotationCanvas)(nil)
)

func NewAnnotationCanvas(s *Session) *AnnotationCanvas {
	c := &AnnotationCanvas{s: s}
	c.ExtendBaseWidget(c)
	return c
}

func (c *AnnotationCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.NRGBA{R: 30, G: 30, B: 34, A: 255})
	img := canvas.NewImageFromImage(c.s.Frame())
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScaleFastest
	return &annotationRenderer{c: c, bg: bg, img: img, objects: []fyne.CanvasObject{bg, img}}
}

func (c *AnnotationCanvas) MinSize() fyne.Size { return fyne.NewSize(640, 480) }

func (c *AnnotationCanvas) MouseDown(e *desktop.MouseEvent) {
	c.mods = engineMods(e.Modifier)
	c.pressed = true
	c.s.Down(float64(e.Position.X), float64(e.Position.Y), engineButton(e.Button), c.mods)
}

func (c *AnnotationCanvas) MouseUp(e *desktop.MouseEvent) {
	c.mods = engineMods(e.Modifier)
	c.pressed = false
	c.s.Up(float64(e.Position.X), float64(e.Position.Y), engineButton(e.Button), c.mods)
}

func (c *AnnotationCanvas) MouseIn(e *desktop.MouseEvent) { c.mods = engineMods(e.Modifier) }

func (c *AnnotationCanvas) MouseMoved(e *desktop.MouseEvent) {
	c.mods = engineMods(e.Modifier)
	if !c.pressed {
		c.s.Move(float64(e.Position.X), float64(e.Position.Y), c.mods)
	}
}

func (c *AnnotationCanvas) MouseOut() {}

// Dragged covers moves while a button is held.
func (c *AnnotationCanvas) Dragged(e *fyne.DragEvent) {
	c.s.Move(float64(e.Position.X), float64(e.Position.Y), c.mods)
}

func (c *AnnotationCanvas) DragEnd() {}

func (c *AnnotationCanvas) DoubleTapped(e *fyne.PointEvent) {
	c.s.DoubleClick(float64(e.Position.X), float64(e.Position.Y), c.mods)
}

func (c *AnnotationCanvas) Scrolled(e *fyne.ScrollEvent) {
	// Fyne reports scroll up as positive DY; the engine expects wheel deltas.
	c.s.Wheel(float64(e.Position.X), float64(e.Position.Y), -float64(e.Scrolled.DY), c.mods)
}

type annotationRenderer struct {
	c       *AnnotationCanvas
	bg      *canvas.Rectangle
	img     *canvas.Image
	objects []fyne.CanvasObject
}

func (r *annotationRenderer) Destroy()                     {}
func (r *annotationRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *annotationRenderer) MinSize() fyne.Size           { return r.c.MinSize() }

func (r *annotationRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.img.Resize(size)
	r.c.s.Resize(int(size.Width), int(size.Height))
}

func (r *annotationRenderer) Refresh() {
	r.img.Image = r.c.s.Frame()
	r.img.Refresh()
	r.bg.Refresh()
}
