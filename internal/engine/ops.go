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
	"log/slog"

	"xlabel/internal/shape"
	"xlabel/internal/undo"
)

// finalizeLocked commits current into the store. New keys are logged as ADD,
// changed existing shapes as EDIT with the pre-gesture snapshot. The preview is
// cleared and current reset in every case.
func (e *Engine) finalizeLocked() {
	if c := e.current; c != nil {
		c.Close()
		c.Visible = true
		prev, existed := e.shapes.Get(c.ColorKey)
		switch {
		case !existed:
			e.history.Push(undo.OpAdd, []*shape.Shape{c}, nil)
			e.changedLocked(ChangeShapes)
		default:
			// the gesture only owns geometry; flags set meanwhile win
			c.Active, c.Label = prev.Active, prev.Label.Clone()
			before := e.origin
			if before == nil {
				before = prev
			} else {
				before.Active, before.Label = prev.Active, prev.Label.Clone()
			}
			if !c.Equal(before) {
				e.history.Push(undo.OpEdit, []*shape.Shape{before}, nil)
				e.changedLocked(ChangeShapes)
			}
		}
		e.shapes.Put(c)
		e.drawLocked(c)
		e.log.Debug("finalize", slog.String("key", c.ColorKey), slog.String("type", string(c.Type)), slog.Int("points", len(c.Points)))
	}
	if e.preview != nil {
		e.removeVisualLocked(PreviewKey)
	}
	e.current, e.origin, e.preview = nil, nil, nil
}

// AddShapes inserts copies of shapes as one ADD step. Missing or taken keys are
// replaced with fresh ones. The keys actually used are returned in order.
func (e *Engine) AddShapes(shapes []*shape.Shape) []string {
	var keys []string
	e.locked(func() {
		var added []*shape.Shape
		for _, in := range shapes {
			if in == nil {
				continue
			}
			s := in.Clone()
			if s.ColorKey == "" || s.ColorKey == PreviewKey || e.shapes.Has(s.ColorKey) {
				s.ColorKey = e.keys.Next(e.shapes.Has)
			}
			s.Close()
			e.shapes.Put(s)
			e.drawLocked(s)
			added = append(added, s)
			keys = append(keys, s.ColorKey)
		}
		if e.history.Push(undo.OpAdd, added, nil) {
			e.changedLocked(ChangeShapes)
		}
	})
	return keys
}

// RemoveShapes deletes the given keys as one REMOVE step. Store positions are
// recorded so undo restores the original order.
func (e *Engine) RemoveShapes(keys []string) {
	e.locked(func() { e.removeShapesLocked(keys) })
}

func (e *Engine) removeShapesLocked(keys []string) {
	var removed []*shape.Shape
	var idx []int
	for _, k := range keys {
		s, ok := e.shapes.Get(k)
		if !ok {
			continue
		}
		if e.current != nil && e.current.ColorKey == k {
			e.abortLocked()
		}
		idx = append(idx, e.shapes.IndexOf(k))
		removed = append(removed, s.Clone())
		e.shapes.Delete(k)
		e.removeVisualLocked(k)
	}
	if e.history.Push(undo.OpRemove, removed, idx) {
		e.changedLocked(ChangeShapes)
	}
}

// RemoveActive deletes every selected shape.
func (e *Engine) RemoveActive() {
	e.locked(func() {
		var keys []string
		e.shapes.Each(func(_ int, s *shape.Shape) bool {
			if s.Active {
				keys = append(keys, s.ColorKey)
			}
			return true
		})
		e.removeShapesLocked(keys)
	})
}

// SetActiveShapes selects exactly keys and deselects everything else. Only
// shapes whose flag changes are logged, as one SETSELECT step.
func (e *Engine) SetActiveShapes(keys []string) {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	e.locked(func() {
		var before []*shape.Shape
		var changed []string
		e.shapes.Each(func(_ int, s *shape.Shape) bool {
			if s.Active != want[s.ColorKey] {
				before = append(before, s.Clone())
				s.Active = want[s.ColorKey]
				changed = append(changed, s.ColorKey)
			}
			return true
		})
		e.history.Push(undo.OpSetSelect, before, nil)
		if len(changed) > 0 {
			e.reRenderLocked(changed)
			e.changedLocked(ChangeEditActive)
		}
	})
}

// ActiveShapes selects keys (logged as SELECT).
func (e *Engine) ActiveShapes(keys []string) { e.setActive(keys, true, undo.OpSelect) }

// UnactiveShapes deselects keys (logged as UNSELECT).
func (e *Engine) UnactiveShapes(keys []string) { e.setActive(keys, false, undo.OpUnselect) }

func (e *Engine) setActive(keys []string, active bool, op undo.Op) {
	e.locked(func() {
		var before []*shape.Shape
		var changed []string
		for _, k := range keys {
			s, ok := e.shapes.Get(k)
			if !ok || s.Active == active {
				continue
			}
			before = append(before, s.Clone())
			s.Active = active
			changed = append(changed, k)
		}
		e.history.Push(op, before, nil)
		if len(changed) > 0 {
			e.reRenderLocked(changed)
			e.changedLocked(ChangeEditActive)
		}
	})
}

// ChangeShapeData replaces the label metadata of keys and deselects them, as
// one EDIT step.
func (e *Engine) ChangeShapeData(keys []string, label shape.LabelInfo) {
	e.locked(func() {
		var before []*shape.Shape
		var changed []string
		for _, k := range keys {
			s, ok := e.shapes.Get(k)
			if !ok {
				continue
			}
			before = append(before, s.Clone())
			s.Label = label.Clone()
			s.Active = false
			changed = append(changed, k)
		}
		if e.history.Push(undo.OpEdit, before, nil) {
			e.reRenderLocked(changed)
			e.changedLocked(ChangeShapes)
		}
	})
}

// Undo reverts the most recent log entry. An empty log is a no-op. Anything
// under construction is discarded first.
func (e *Engine) Undo() {
	e.locked(func() {
		entry, ok := e.history.Pop()
		if !ok {
			return
		}
		if e.current != nil || e.preview != nil {
			e.abortLocked()
		}
		e.history.SetEnabled(false)
		defer e.history.SetEnabled(true)
		e.log.Debug("undo", slog.String("op", entry.Op.String()), slog.Int("shapes", len(entry.Shapes)))
		e.replayInverseLocked(entry)
	})
}

func (e *Engine) replayInverseLocked(entry undo.Entry) {
	var touched []string
	switch entry.Op {
	case undo.OpAdd:
		for _, s := range entry.Shapes {
			if e.shapes.Delete(s.ColorKey) {
				e.removeVisualLocked(s.ColorKey)
			}
		}
		e.changedLocked(ChangeShapes)
		return
	case undo.OpRemove:
		for i := len(entry.Shapes) - 1; i >= 0; i-- {
			s := entry.Shapes[i].Clone()
			at := e.shapes.Len()
			if i < len(entry.Indexes) {
				at = entry.Indexes[i]
			}
			e.shapes.InsertAt(at, s)
			e.drawLocked(s)
		}
		e.changedLocked(ChangeShapes)
		return
	case undo.OpEdit:
		for _, s := range entry.Shapes {
			e.shapes.Put(s.Clone())
			touched = append(touched, s.ColorKey)
		}
		e.reRenderLocked(touched)
		e.changedLocked(ChangeShapes)
		return
	case undo.OpSelect, undo.OpUnselect:
		active := entry.Op == undo.OpUnselect
		for _, snap := range entry.Shapes {
			if s, ok := e.shapes.Get(snap.ColorKey); ok {
				s.Active = active
				touched = append(touched, s.ColorKey)
			}
		}
	case undo.OpSetSelect:
		for _, snap := range entry.Shapes {
			if s, ok := e.shapes.Get(snap.ColorKey); ok {
				s.Active = snap.Active
				touched = append(touched, s.ColorKey)
			}
		}
	}
	e.reRenderLocked(touched)
	e.changedLocked(ChangeEditActive)
}

// GetData returns a deep snapshot of the document.
func (e *Engine) GetData() Data {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := Data{
		ImagePath:    e.imagePath,
		ImageWidth:   e.imgW,
		ImageHeight:  e.imgH,
		PixmapWidth:  e.pixW,
		PixmapHeight: e.pixH,
		Scale:        e.scale,
		Shapes:       make([]*shape.Shape, 0, e.shapes.Len()),
	}
	e.shapes.Each(func(_ int, s *shape.Shape) bool {
		d.Shapes = append(d.Shapes, s.Clone())
		return true
	})
	return d
}

// SetData replaces the shapes with copies of d.Shapes and clears the history.
// Image fields of d are ignored; use SetImg for the image.
func (e *Engine) SetData(d Data) {
	e.locked(func() {
		if e.current != nil || e.preview != nil {
			e.abortLocked()
		}
		for _, k := range e.shapes.Keys() {
			e.removeVisualLocked(k)
		}
		e.shapes.Clear()
		e.history.Clear()
		for _, in := range d.Shapes {
			if in == nil {
				continue
			}
			s := in.Clone()
			if s.ColorKey == "" || s.ColorKey == PreviewKey || e.shapes.Has(s.ColorKey) {
				s.ColorKey = e.keys.Next(e.shapes.Has)
			}
			s.Close()
			e.shapes.Put(s)
		}
		e.reRenderLocked(nil)
		e.changedLocked(ChangeShapes)
	})
}

// GetLog returns the structural history (ADD, REMOVE, EDIT), oldest first.
func (e *Engine) GetLog() []undo.Entry {
	return e.history.Entries(undo.OpAdd, undo.OpRemove, undo.OpEdit)
}

// History returns every log entry including selection changes.
func (e *Engine) History() []undo.Entry {
	return e.history.Entries()
}
