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
	"slices"
	"testing"

	"xlabel/internal/geom"
	"xlabel/internal/shape"
	"xlabel/internal/undo"
)

func seed(t *testing.T, e *Engine, n int) []string {
	t.Helper()
	var in []*shape.Shape
	for i := 0; i < n; i++ {
		s := shape.New("", shape.Rectangle, shape.LabelInfo{LabelID: "l", LabelName: "box", Extra: map[string]string{"i": string(rune('a' + i))}})
		f := float64(10 + i*20)
		s.Points = []geom.Point{geom.Pt(f, f), geom.Pt(f+10, f+10)}
		in = append(in, s)
	}
	keys := e.AddShapes(in)
	if len(keys) != n {
		t.Fatalf("expected %d keys, got %v", n, keys)
	}
	return keys
}

func TestAddShapesAssignsKeysAndUndoes(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	keys := seed(t, e, 3)
	if len(slices.Compact(slices.Sorted(slices.Values(keys)))) != 3 {
		t.Fatalf("keys must be unique: %v", keys)
	}
	dup := shape.New(keys[0], shape.Point, shape.LabelInfo{})
	dup.Points = []geom.Point{geom.Pt(5, 5)}
	more := e.AddShapes([]*shape.Shape{dup})
	if more[0] == keys[0] {
		t.Fatalf("taken key should be replaced")
	}
	log := e.GetLog()
	if len(log) != 2 || log[0].Op != undo.OpAdd || len(log[0].Shapes) != 3 {
		t.Fatalf("AddShapes should log one ADD per call: %+v", log)
	}
	e.Undo()
	e.Undo()
	if e.Len() != 0 {
		t.Fatalf("undo should remove added shapes, len=%d", e.Len())
	}
	e.Undo()
	if e.Len() != 0 {
		t.Fatalf("undo on empty log must be a no-op")
	}
}

func TestRemoveAndUndoRestoresExactShapeAndOrder(t *testing.T) {
	e, r := newTestEngine(t, nil)
	keys := seed(t, e, 4)
	before := e.GetData().Shapes
	e.RemoveShapes([]string{keys[1], keys[3], "missing"})
	if e.Len() != 2 || r.has(keys[1]) {
		t.Fatalf("remove failed, len=%d", e.Len())
	}
	log := e.GetLog()
	if last := log[len(log)-1]; last.Op != undo.OpRemove || len(last.Shapes) != 2 {
		t.Fatalf("expected REMOVE with two shapes: %+v", last)
	}
	e.Undo()
	after := e.GetData().Shapes
	if len(after) != len(before) {
		t.Fatalf("undo should restore all shapes")
	}
	for i := range before {
		if !after[i].Equal(before[i]) {
			t.Fatalf("shape %d differs after undo: %v vs %v", i, after[i], before[i])
		}
	}
	if !r.has(keys[1]) || !r.has(keys[3]) {
		t.Fatalf("restored shapes should be drawn")
	}
}

func TestRemoveActive(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	keys := seed(t, e, 3)
	e.ActiveShapes([]string{keys[0], keys[2]})
	e.RemoveActive()
	d := e.GetData()
	if len(d.Shapes) != 1 || d.Shapes[0].ColorKey != keys[1] {
		t.Fatalf("only unselected shape should remain")
	}
}

func TestSetActiveShapesUndoRestoresAllFlags(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	keys := seed(t, e, 3)
	e.ActiveShapes([]string{keys[1], keys[2]})
	e.SetActiveShapes([]string{keys[0]})
	if got := e.ActiveKeys(); !slices.Equal(got, []string{keys[0]}) {
		t.Fatalf("expected only k0 active, got %v", got)
	}
	hist := e.History()
	last := hist[len(hist)-1]
	if last.Op != undo.OpSetSelect || len(last.Shapes) != 3 {
		t.Fatalf("expected SETSELECT with the three changed shapes: %+v", last)
	}
	e.Undo()
	if got := e.ActiveKeys(); !slices.Equal(got, []string{keys[1], keys[2]}) {
		t.Fatalf("undo should restore previous selection, got %v", got)
	}
	n := len(e.History())
	e.SetActiveShapes([]string{keys[1], keys[2]})
	if len(e.History()) != n {
		t.Fatalf("no-op SETSELECT must not log")
	}
}

func TestActiveAndUnactiveLogOnlyChanges(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	keys := seed(t, e, 3)
	e.ActiveShapes([]string{keys[0]})
	e.ActiveShapes([]string{keys[0], keys[1]})
	hist := e.History()
	last := hist[len(hist)-1]
	if last.Op != undo.OpSelect || len(last.Shapes) != 1 || last.Shapes[0].ColorKey != keys[1] {
		t.Fatalf("second SELECT should only record k1: %+v", last)
	}
	e.UnactiveShapes([]string{keys[0]})
	if got := e.ActiveKeys(); !slices.Equal(got, []string{keys[1]}) {
		t.Fatalf("unexpected selection %v", got)
	}
	e.Undo()
	e.Undo()
	if got := e.ActiveKeys(); !slices.Equal(got, []string{keys[0]}) {
		t.Fatalf("undo chain wrong, got %v", got)
	}
}

func TestChangeShapeDataAndUndo(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	keys := seed(t, e, 2)
	e.ActiveShapes(keys)
	orig, _ := e.Shape(keys[0])
	e.ChangeShapeData([]string{keys[0]}, shape.LabelInfo{LabelID: "9", LabelName: "dog"})
	s, _ := e.Shape(keys[0])
	if s.Label.LabelName != "dog" || s.Active {
		t.Fatalf("label should be replaced and shape deselected: %+v", s)
	}
	if s2, _ := e.Shape(keys[1]); !s2.Active {
		t.Fatalf("other shapes must keep their selection")
	}
	log := e.GetLog()
	if log[len(log)-1].Op != undo.OpEdit {
		t.Fatalf("expected EDIT")
	}
	e.Undo()
	if s, _ := e.Shape(keys[0]); !s.Equal(orig) {
		t.Fatalf("undo should restore label and flag: %+v", s)
	}
}

func TestUndoDuringConstructionDiscardsIt(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	drawRect(t, e, geom.Pt(20, 20), geom.Pt(60, 60))
	down(e, 100, 100)
	e.Undo()
	if e.Current() != nil || e.Len() != 0 {
		t.Fatalf("undo should abort construction and remove the rectangle")
	}
	if !e.history.Enabled() {
		t.Fatalf("logging must be re-enabled after undo")
	}
}

func TestSetDataAndClean(t *testing.T) {
	e, r := newTestEngine(t, nil)
	keys := seed(t, e, 2)
	d := e.GetData()
	d.Shapes[0].Points[0] = geom.Pt(1, 1)
	if s, _ := e.Shape(keys[0]); s.Points[0].Eq(geom.Pt(1, 1)) {
		t.Fatalf("GetData must return copies")
	}
	other, _ := newTestEngine(t, nil)
	other.SetData(d)
	if other.Len() != 2 || len(other.GetLog()) != 0 {
		t.Fatalf("SetData should load shapes without history")
	}
	if s, _ := other.Shape(keys[0]); !s.Closed() {
		t.Fatalf("loaded shapes are finalized")
	}
	e.Clean()
	if e.Len() != 0 || len(e.GetLog()) != 0 || e.GetData().ImagePath != "" {
		t.Fatalf("clean should reset everything")
	}
	if r.has(keys[0]) {
		t.Fatalf("clean should drop visuals")
	}
	down(e, 20, 20)
	if e.Current() != nil {
		t.Fatalf("engine without image must ignore input")
	}
}

func TestSetImgResetsDocument(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	seed(t, e, 2)
	e.Zoom(-1)
	e.SetImg("next.png", nil)
	d := e.GetData()
	if len(d.Shapes) != 0 || d.Scale != 1 || d.ImagePath != "next.png" {
		t.Fatalf("new image should reset document: %+v", d)
	}
}
