/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package engine

import (
	"errors"
	"log/slog"

	"xlabel/internal/geom"
	"xlabel/internal/shape"
	"xlabel/internal/undo"
)

var (
	errNoImageSource = errors.New("no image source configured")
	errEmptyImage    = errors.New("image has no size")
)

// PointerDown resolves a press in this order: out of bounds, middle button,
// right button (abort), hit on a shape (edit, select or copy), pan modifier
// (drag), construction in CREATE mode, otherwise abandon and return to CREATE.
func (e *Engine) PointerDown(ev PointerEvent) {
	e.locked(func() { e.pointerDownLocked(ev) })
}

func (e *Engine) pointerDownLocked(ev PointerEvent) {
	if !e.readyLocked() {
		return
	}
	pos := e.transformLocked(ev.ClientX, ev.ClientY)
	if e.outOfPixmapLocked(pos) {
		// a rectangle drag that leaves the image still commits its preview
		if e.mode == ModeCreate && e.current != nil && e.createMode == shape.Rectangle &&
			e.preview != nil && len(e.preview.Points) == 2 {
			e.secondPointLocked(e.preview.Points[1])
		}
		return
	}
	switch ev.Button {
	case ButtonMiddle:
		return
	case ButtonRight:
		e.abortLocked()
		return
	}

	client := geom.Pt(ev.ClientX, ev.ClientY)
	e.pressed = true
	e.pressClient = client
	e.prevClient = client
	e.prevMove = pos

	if e.current == nil && ev.Hit.Hit() {
		if stored, ok := e.shapes.Get(ev.Hit.Key); ok {
			e.beginHitLocked(ev, stored)
			return
		}
	}
	if ev.Mods.Has(e.opts.PanModifier) && !ev.Hit.Hit() {
		e.setModeLocked(ModeDrag)
		return
	}
	if e.mode == ModeCreate {
		if !e.opts.Editable {
			return
		}
		e.constructLocked(pos)
		return
	}
	e.abortLocked()
}

func (e *Engine) beginHitLocked(ev PointerEvent, stored *shape.Shape) {
	e.selected = ev.Hit
	switch {
	case !e.opts.Editable:
		e.setModeLocked(ModeSelect)
		e.current = stored.Clone()
		e.origin = stored.Clone()
	case ev.Hit.Kind == HitVertex && ev.Hit.VertexIndex >= 0 && ev.Hit.VertexIndex < len(stored.Points):
		e.setModeLocked(ModeEdit)
		e.current = stored.Clone()
		e.origin = stored.Clone()
	case ev.Hit.Kind == HitBody && ev.Mods.Has(e.opts.CopyModifier):
		e.setModeLocked(ModeCopy)
		e.current = stored.Duplicate(e.keys.Next(e.shapes.Has))
		e.origin = nil
		e.drawLocked(e.current)
	default:
		e.setModeLocked(ModeSelect)
		e.current = stored.Clone()
		e.origin = stored.Clone()
	}
}

// PointerMove updates the preview, moves or edits the current shape, or pans.
func (e *Engine) PointerMove(ev PointerEvent) {
	e.locked(func() { e.pointerMoveLocked(ev) })
}

func (e *Engine) pointerMoveLocked(ev PointerEvent) {
	if !e.readyLocked() {
		return
	}
	pos := e.transformLocked(ev.ClientX, ev.ClientY)
	switch e.mode {
	case ModeCreate:
		e.updatePreviewLocked(pos)
	case ModeSelect, ModeCopy:
		if e.pressed && e.current != nil && e.opts.Editable {
			e.moveLocked(pos)
		}
	case ModeEdit:
		if e.pressed && e.current != nil {
			e.editLocked(pos)
		}
	case ModeDrag:
		if e.pressed {
			client := geom.Pt(ev.ClientX, ev.ClientY)
			e.pan = e.pan.Add(client.Sub(e.prevClient))
			e.prevClient = client
			e.reRenderLocked(nil)
		}
	}
}

func (e *Engine) updatePreviewLocked(pos geom.Point) {
	if e.current == nil || e.preview == nil || e.outOfPixmapLocked(pos) {
		return
	}
	switch {
	case e.createMode.MultiPoint():
		last, _ := e.current.Last()
		e.preview.Points = []geom.Point{last, pos}
		e.drawLocked(e.current)
	case e.createMode.TwoPoint():
		e.preview.Points = []geom.Point{e.current.Points[0], pos}
	default:
		return
	}
	e.drawLocked(e.preview)
}

// moveLocked translates current by the pointer delta. If the pointer or any
// translated vertex leaves the image the update is dropped and the gesture ends.
func (e *Engine) moveLocked(pos geom.Point) {
	d := pos.Sub(e.prevMove)
	moved := make([]geom.Point, len(e.current.Points))
	inside := !e.outOfPixmapLocked(pos)
	for i, p := range e.current.Points {
		moved[i] = p.Add(d)
		if e.outOfPixmapLocked(moved[i]) {
			inside = false
		}
	}
	if !inside {
		e.log.Debug("move left image, finishing", slog.String("key", e.current.ColorKey))
		e.finalizeLocked()
		e.setModeLocked(ModeCreate)
		e.selected = HitTest{}
		e.pressed = false
		return
	}
	e.current.Points = moved
	e.prevMove = pos
	e.drawLocked(e.current)
}

func (e *Engine) editLocked(pos geom.Point) {
	i := e.selected.VertexIndex
	if i < 0 || i >= len(e.current.Points) {
		return
	}
	e.current.Points[i] = e.clampLocked(pos)
	e.drawLocked(e.current)
}

// PointerUp completes copy, click-select, move, edit and drag gestures.
func (e *Engine) PointerUp(ev PointerEvent) {
	e.locked(func() { e.pointerUpLocked(ev) })
}

func (e *Engine) pointerUpLocked(ev PointerEvent) {
	if !e.pressed {
		return
	}
	e.pressed = false
	click := geom.Pt(ev.ClientX, ev.ClientY).Eq(e.pressClient)
	switch e.mode {
	case ModeCopy:
		e.finalizeLocked()
	case ModeSelect:
		if click {
			e.toggleSelectedLocked()
		} else {
			e.finalizeLocked()
		}
	case ModeEdit:
		e.finalizeLocked()
	case ModeDrag:
		// panning leaves any construction in progress untouched
	default:
		return
	}
	e.setModeLocked(ModeCreate)
	e.selected = HitTest{}
}

// toggleSelectedLocked flips the active flag of the clicked shape without
// applying any geometry from the gesture.
func (e *Engine) toggleSelectedLocked() {
	key := e.selected.Key
	e.current, e.origin = nil, nil
	s, ok := e.shapes.Get(key)
	if !ok {
		return
	}
	before := s.Clone()
	s.Active = !s.Active
	if s.Active {
		e.history.Push(undo.OpSelect, []*shape.Shape{before}, nil)
	} else {
		e.history.Push(undo.OpUnselect, []*shape.Shape{before}, nil)
	}
	e.reRenderLocked([]string{key})
	e.changedLocked(ChangeEditActive)
}

// DoubleClick finishes a polygon under construction. When more than four
// vertices exist the last two are dropped first (they come from the clicks
// that make up the double-click); at least three must remain.
func (e *Engine) DoubleClick(ev PointerEvent) {
	e.locked(func() {
		if !e.readyLocked() || e.mode != ModeCreate || e.current == nil || e.createMode != shape.Polygon {
			return
		}
		if n := len(e.current.Points); n > 4 {
			e.current.Points = e.current.Points[:n-2]
		}
		if len(e.current.Points) >= 3 {
			e.current.Close()
			e.finalizeLocked()
		}
	})
}

// FinishShape finalizes an open polygon (three or more vertices) or linestrip
// (two or more vertices). Other states are left alone.
func (e *Engine) FinishShape() {
	e.locked(func() {
		if e.mode != ModeCreate || e.current == nil {
			return
		}
		n := len(e.current.Points)
		switch e.current.Type {
		case shape.Polygon:
			if n >= 3 {
				e.finalizeLocked()
			}
		case shape.Linestrip:
			if n >= 2 {
				e.finalizeLocked()
			}
		}
	})
}

// Abort discards any construction or gesture in progress.
func (e *Engine) Abort() {
	e.locked(e.abortLocked)
}

func (e *Engine) abortLocked() {
	if e.current != nil {
		if stored, ok := e.shapes.Get(e.current.ColorKey); ok {
			e.drawLocked(stored)
		} else {
			e.removeVisualLocked(e.current.ColorKey)
		}
	}
	if e.preview != nil {
		e.removeVisualLocked(PreviewKey)
	}
	e.current, e.origin, e.preview = nil, nil, nil
	e.selected = HitTest{}
	e.pressed = false
	e.setModeLocked(ModeCreate)
}

// constructLocked advances shape construction for a press at pos.
func (e *Engine) constructLocked(pos geom.Point) {
	if e.current == nil {
		e.startShapeLocked(pos)
		return
	}
	p0 := e.current.Points[0]
	switch {
	case e.createMode == shape.Polygon:
		e.polygonClickLocked(pos, p0)
	case e.createMode.TwoPoint():
		e.secondPointLocked(pos)
	case e.createMode == shape.Linestrip:
		if last, _ := e.current.Last(); last.Eq(pos) {
			return
		}
		e.current.Points = append(e.current.Points, pos)
		e.preview.Points = []geom.Point{pos, pos}
		e.drawLocked(e.current)
		e.drawLocked(e.preview)
	}
}

func (e *Engine) polygonClickLocked(pos, p0 geom.Point) {
	n := len(e.current.Points)
	last, _ := e.current.Last()
	switch {
	case n == 1 && geom.CloseEnough(pos, p0, e.opts.CancelThreshold):
		e.abortLocked()
	case n < 3 && last.Eq(pos):
		// repeated vertex
	case n >= 3 && geom.CloseEnough(pos, p0, e.opts.CloseThreshold):
		e.current.Close()
		e.finalizeLocked()
	default:
		e.current.Points = append(e.current.Points, pos)
		e.preview.Points = []geom.Point{pos, pos}
		e.drawLocked(e.current)
		e.drawLocked(e.preview)
	}
}

func (e *Engine) startShapeLocked(pos geom.Point) {
	if e.opts.RequireLabel && e.label.LabelID == "" && e.label.LabelName == "" {
		e.failLocked("select a label before drawing")
		return
	}
	s := shape.New(e.keys.Next(e.shapes.Has), e.createMode, e.label)
	s.Points = []geom.Point{pos}
	e.current = s
	e.origin = nil
	if e.createMode == shape.Point {
		e.finalizeLocked()
		return
	}
	e.preview = shape.New(PreviewKey, e.createMode, shape.LabelInfo{})
	e.preview.Points = []geom.Point{pos, pos}
	if e.createMode.MultiPoint() {
		e.drawLocked(e.current)
	}
	e.drawLocked(e.preview)
}

// secondPointLocked cancels when end is within CancelThreshold of the first
// vertex and commits otherwise.
func (e *Engine) secondPointLocked(end geom.Point) {
	if geom.CloseEnough(end, e.current.Points[0], e.opts.CancelThreshold) {
		e.abortLocked()
		return
	}
	e.commitTwoPointLocked(end)
}

// commitTwoPointLocked finishes a rectangle, circle or line at end. In
// continuous mode a rectangle restarts at the same point, once per call.
func (e *Engine) commitTwoPointLocked(end geom.Point) {
	e.current.Points = []geom.Point{e.current.Points[0], end}
	e.finalizeLocked()
	if e.createMode == shape.Rectangle && e.continuous {
		e.startShapeLocked(end)
	}
}
