/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package engine implements the annotation interaction state machine: it turns
// pointer and wheel input into shape construction, editing, moving, selection,
// pan/zoom changes and undo records.
//
// All state lives behind one mutex. Renderer calls and OnChange/OnError
// notifications are queued while the lock is held and delivered after it is
// released, so collaborators may call back into the engine.
package engine

import (
	"log/slog"
	"sync"

	"xlabel/internal/geom"
	applog "xlabel/internal/log"
	"xlabel/internal/shape"
	"xlabel/internal/store"
	"xlabel/internal/undo"
)

// Engine is the interaction core. Create it with New.
type Engine struct {
	mu       sync.Mutex
	opts     Options
	log      *slog.Logger
	renderer Renderer
	images   ImageSource
	keys     *shape.KeyGen
	shapes   *store.Store
	history  *undo.Log

	mode       Mode
	createMode shape.Type
	continuous bool
	label      shape.LabelInfo

	// current is the shape under construction or being edited. It is always a
	// private copy; the store is only updated by finalize.
	current *shape.Shape
	// origin is the stored shape as it was when an edit, move or select gesture began.
	origin   *shape.Shape
	preview  *shape.Shape
	selected HitTest

	pressed     bool
	pressClient geom.Point
	prevClient  geom.Point
	prevMove    geom.Point

	surface Surface
	scale   float64
	pan     geom.Point
	center  geom.Point

	imagePath string
	imgW      int
	imgH      int
	pixW      float64
	pixH      float64
	loadGen   int

	queue []func()
}

// New builds an engine. renderer and images may be nil.
func New(opts Options, renderer Renderer, images ImageSource) *Engine {
	opts = opts.normalized()
	if renderer == nil {
		renderer = nopRenderer{}
	}
	lg := opts.Logger
	if lg == nil {
		lg = applog.WithComponent("engine")
	}
	return &Engine{
		opts:       opts,
		log:        lg,
		renderer:   renderer,
		images:     images,
		keys:       shape.NewKeyGen(),
		shapes:     store.New(),
		history:    undo.NewLog(undo.Config{MaxEntries: opts.MaxUndo}),
		createMode: opts.CreateMode,
		continuous: opts.ContinuousMode,
		scale:      1,
	}
}

// locked runs fn under the engine lock and then flushes queued callbacks.
func (e *Engine) locked(fn func()) {
	e.mu.Lock()
	fn()
	q := e.queue
	e.queue = nil
	e.mu.Unlock()
	for _, f := range q {
		f()
	}
}

func (e *Engine) enqueue(f func()) { e.queue = append(e.queue, f) }

func (e *Engine) changedLocked(t ChangeType) {
	if cb := e.opts.OnChange; cb != nil {
		e.enqueue(func() { cb(t) })
	}
}

func (e *Engine) failLocked(msg string) {
	e.log.Warn("engine error", slog.String("msg", msg))
	if cb := e.opts.OnError; cb != nil {
		e.enqueue(func() { cb(msg) })
	}
	e.changedLocked(ChangeError)
}

func (e *Engine) viewLocked() View {
	return View{
		Viewport: geom.Viewport{
			OffsetLeft: e.surface.OffsetLeft,
			OffsetTop:  e.surface.OffsetTop,
			ScrollX:    e.surface.ScrollX,
			ScrollY:    e.surface.ScrollY,
			Origin:     e.pan,
			Scale:      e.scale,
		},
		PixmapWidth:  e.pixW,
		PixmapHeight: e.pixH,
		ImagePath:    e.imagePath,
		Style:        e.opts.Style,
	}
}

func (e *Engine) drawLocked(s *shape.Shape) {
	if s == nil {
		return
	}
	c, v, r := s.Clone(), e.viewLocked(), e.renderer
	e.enqueue(func() { r.Draw(c, v) })
}

func (e *Engine) removeVisualLocked(key string) {
	r := e.renderer
	e.enqueue(func() { r.RemoveVisual(key) })
}

// reRenderLocked redraws every shape when keys is nil, else only those keys.
func (e *Engine) reRenderLocked(keys []string) {
	var shapes []*shape.Shape
	all := keys == nil
	if all {
		e.shapes.Each(func(_ int, s *shape.Shape) bool {
			shapes = append(shapes, s.Clone())
			return true
		})
	} else {
		for _, k := range keys {
			if s, ok := e.shapes.Get(k); ok {
				shapes = append(shapes, s.Clone())
			}
		}
	}
	v, r := e.viewLocked(), e.renderer
	e.enqueue(func() { r.ReRender(shapes, v, all) })
}

// ready reports whether image dimensions are known; pointer handling is a
// no-op until then.
func (e *Engine) readyLocked() bool {
	return e.imagePath != "" && e.imgW > 0 && e.imgH > 0 && e.pixW > 0 && e.pixH > 0
}

func (e *Engine) transformLocked(clientX, clientY float64) geom.Point {
	return e.viewLocked().ToImage(clientX, clientY)
}

func (e *Engine) outOfPixmapLocked(p geom.Point) bool {
	return p.X < 1 || p.X > e.pixW-1 || p.Y < 1 || p.Y > e.pixH-1
}

func (e *Engine) clampLocked(p geom.Point) geom.Point {
	return geom.Pt(geom.Clamp(p.X, 1, e.pixW-1), geom.Clamp(p.Y, 1, e.pixH-1))
}

func (e *Engine) setModeLocked(m Mode) {
	if e.mode != m {
		e.log.Debug("mode", slog.String("from", e.mode.String()), slog.String("to", m.String()))
	}
	e.mode = m
}

// SetSurface updates the host surface geometry. A width change rescales the
// pixmap of a loaded image.
func (e *Engine) SetSurface(s Surface) {
	e.locked(func() {
		widthChanged := s.Width != e.surface.Width
		e.surface = s
		if widthChanged && e.imgW > 0 && e.imgH > 0 {
			e.layoutPixmapLocked()
		}
		e.reRenderLocked(nil)
	})
}

func (e *Engine) layoutPixmapLocked() {
	w := e.surface.Width
	if w <= 0 {
		w = float64(e.imgW)
	}
	e.pixW = w
	e.pixH = w / float64(e.imgW) * float64(e.imgH)
	e.center = geom.Pt(e.pixW, e.pixH).Scale(0.5)
}

// SetImg switches to a new image. The document and history are reset. Pointer
// input is ignored until the ImageSource reports dimensions; onReady (optional)
// runs once they are known or loading failed.
func (e *Engine) SetImg(path string, onReady func(error)) {
	var gen int
	var src ImageSource
	e.locked(func() {
		e.resetDocumentLocked()
		e.imagePath = path
		e.imgW, e.imgH, e.pixW, e.pixH = 0, 0, 0, 0
		e.loadGen++
		gen = e.loadGen
		src = e.images
		e.changedLocked(ChangeLoading)
		e.log.Debug("image loading", slog.String("path", path))
	})
	if src == nil {
		e.imageLoaded(gen, path, 0, 0, errNoImageSource, onReady)
		return
	}
	src.Load(path, func(w, h int, err error) { e.imageLoaded(gen, path, w, h, err, onReady) })
}

func (e *Engine) imageLoaded(gen int, path string, w, h int, err error, onReady func(error)) {
	stale := false
	e.locked(func() {
		if gen != e.loadGen {
			stale = true
			return
		}
		if err == nil && (w <= 0 || h <= 0) {
			err = errEmptyImage
		}
		if err != nil {
			e.failLocked("load image " + path + ": " + err.Error())
			return
		}
		e.imgW, e.imgH = w, h
		e.layoutPixmapLocked()
		e.log.Debug("image ready", slog.String("path", path), slog.Int("w", w), slog.Int("h", h))
		e.reRenderLocked(nil)
		e.changedLocked(ChangeLoaded)
	})
	if !stale && onReady != nil {
		onReady(err)
	}
}

func (e *Engine) resetDocumentLocked() {
	if e.current != nil || e.preview != nil {
		e.abortLocked()
	}
	for _, k := range e.shapes.Keys() {
		e.removeVisualLocked(k)
	}
	e.shapes.Clear()
	e.history.Clear()
	e.keys.Reset()
	e.setModeLocked(ModeCreate)
	e.selected = HitTest{}
	e.pressed = false
	e.scale = 1
	e.pan = geom.Point{}
}

// Clean resets everything, including the image.
func (e *Engine) Clean() {
	e.locked(func() {
		e.resetDocumentLocked()
		e.imagePath = ""
		e.imgW, e.imgH, e.pixW, e.pixH = 0, 0, 0, 0
		e.loadGen++
		e.reRenderLocked(nil)
		e.changedLocked(ChangeShapes)
	})
}

func (e *Engine) SetCreateMode(t shape.Type) {
	e.locked(func() {
		if e.mode == ModeCreate && e.current != nil {
			e.abortLocked()
		}
		e.createMode = t
		e.changedLocked(ChangeCreateMode)
	})
}

func (e *Engine) SetContinuousMode(on bool) {
	e.locked(func() {
		e.continuous = on
		e.changedLocked(ChangeContinuousMode)
	})
}

// SetLabelInfo sets the label metadata copied into newly created shapes.
func (e *Engine) SetLabelInfo(l shape.LabelInfo) {
	e.locked(func() { e.label = l.Clone() })
}

// Zoom steps the scale by 0.1: in for direction < 0, out for direction > 0,
// within [ZoomMin, ZoomMax]. The pan origin keeps the pixmap centre fixed.
func (e *Engine) Zoom(direction float64) {
	e.locked(func() { e.zoomLocked(direction) })
}

func (e *Engine) zoomLocked(direction float64) {
	switch {
	case direction < 0:
		if e.scale >= e.opts.ZoomMax {
			return
		}
		e.scale = min(geom.FloatRound(e.scale+zoomStep, zoomDecimals), e.opts.ZoomMax)
	case direction > 0:
		if e.scale <= e.opts.ZoomMin {
			return
		}
		e.scale = max(geom.FloatRound(e.scale-zoomStep, zoomDecimals), e.opts.ZoomMin)
	default:
		return
	}
	e.pan = e.center.Scale(1 - e.scale)
	e.reRenderLocked(nil)
}

// Wheel zooms when the zoom modifier is held.
func (e *Engine) Wheel(ev WheelEvent) {
	e.locked(func() {
		if !ev.Mods.Has(e.opts.ZoomModifier) {
			return
		}
		e.zoomLocked(ev.DeltaY)
	})
}

func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *Engine) CreateMode() shape.Type {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createMode
}

// Editable reports whether gestures and editing commands may change shapes.
func (e *Engine) Editable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.Editable
}

func (e *Engine) Continuous() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.continuous
}

func (e *Engine) Scale() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scale
}

// Origin returns the pan offset in image-local units.
func (e *Engine) Origin() geom.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pan
}

// View returns the current rendering context.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// Current returns a copy of the shape under construction or edit, or nil.
func (e *Engine) Current() *shape.Shape {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Clone()
}

// Preview returns a copy of the live construction preview, or nil.
func (e *Engine) Preview() *shape.Shape {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preview.Clone()
}

// Shape returns a copy of the stored shape with key.
func (e *Engine) Shape(key string) (*shape.Shape, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.shapes.Get(key)
	return s.Clone(), ok
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shapes.Len()
}

// ActiveKeys lists selected shapes in store order.
func (e *Engine) ActiveKeys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	e.shapes.Each(func(_ int, s *shape.Shape) bool {
		if s.Active {
			out = append(out, s.ColorKey)
		}
		return true
	})
	return out
}

// HitTestAt resolves what lies under a client position, top-most shape first.
// Hosts without their own reverse mapping use it to fill PointerEvent.Hit.
func (e *Engine) HitTestAt(clientX, clientY float64) HitTest {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.readyLocked() {
		return HitTest{}
	}
	p := e.transformLocked(clientX, clientY)
	radius := e.opts.VertexSize / 2 / e.scale
	tol := max(e.opts.LineWidth, e.opts.VertexSize/2) / e.scale
	for i := e.shapes.Len() - 1; i >= 0; i-- {
		s := e.shapes.At(i)
		if !s.Visible {
			continue
		}
		if idx := s.VertexAt(p, radius); idx >= 0 {
			return HitTest{Key: s.ColorKey, Kind: HitVertex, VertexIndex: idx}
		}
		if s.Contains(p, tol) {
			return HitTest{Key: s.ColorKey, Kind: HitBody}
		}
	}
	return HitTest{}
}
