/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"

	"xlabel/internal/geom"
	"xlabel/internal/shape"
)

func sh(key string) *shape.Shape {
	s := shape.New(key, shape.Rectangle, shape.LabelInfo{LabelID: "1"})
	s.Points = []geom.Point{geom.Pt(1, 1), geom.Pt(4, 4)}
	return s
}

func TestPushPopLIFO(t *testing.T) {
	l := NewLog(Config{})
	l.Push(OpAdd, []*shape.Shape{sh("a")}, nil)
	l.Push(OpRemove, []*shape.Shape{sh("b")}, []int{3})
	e, ok := l.Pop()
	if !ok || e.Op != OpRemove || e.Shapes[0].ColorKey != "b" || e.Indexes[0] != 3 {
		t.Fatalf("unexpected entry: ok=%v %+v", ok, e)
	}
	e, ok = l.Pop()
	if !ok || e.Op != OpAdd {
		t.Fatalf("expected ADD, got ok=%v %v", ok, e.Op)
	}
	if _, ok := l.Pop(); ok {
		t.Fatalf("empty log pop should report false")
	}
}

func TestPushSnapshotsAreIndependent(t *testing.T) {
	l := NewLog(Config{})
	s := sh("a")
	l.Push(OpEdit, []*shape.Shape{s}, nil)
	s.Points[0] = geom.Pt(50, 50)
	s.Active = true
	e, _ := l.Pop()
	if e.Shapes[0].Points[0] != geom.Pt(1, 1) || e.Shapes[0].Active {
		t.Fatalf("snapshot was mutated through caller reference")
	}
}

func TestDisabledAndEmptyPushesAreIgnored(t *testing.T) {
	l := NewLog(Config{})
	if l.Push(OpSetSelect, nil, nil) {
		t.Fatalf("empty push must be ignored")
	}
	l.SetEnabled(false)
	if l.Enabled() || l.Push(OpAdd, []*shape.Shape{sh("a")}, nil) {
		t.Fatalf("disabled log must not record")
	}
	l.SetEnabled(true)
	if !l.Push(OpAdd, []*shape.Shape{sh("a")}, nil) || l.Len() != 1 {
		t.Fatalf("re-enabled log should record")
	}
}

func TestEntriesFilter(t *testing.T) {
	l := NewLog(Config{})
	l.Push(OpAdd, []*shape.Shape{sh("a")}, nil)
	l.Push(OpSelect, []*shape.Shape{sh("a")}, nil)
	l.Push(OpEdit, []*shape.Shape{sh("a")}, nil)
	l.Push(OpSetSelect, []*shape.Shape{sh("a"), sh("b")}, nil)
	got := l.Entries(OpAdd, OpRemove, OpEdit)
	if len(got) != 2 || got[0].Op != OpAdd || got[1].Op != OpEdit {
		t.Fatalf("unexpected filtered entries: %+v", got)
	}
	if all := l.Entries(); len(all) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(all))
	}
	got[0].Shapes[0].ColorKey = "mutated"
	if l.Entries()[0].Shapes[0].ColorKey != "a" {
		t.Fatalf("Entries must return copies")
	}
	if n, shapes, _ := l.Stats(); n != 4 || shapes != 5 {
		t.Fatalf("unexpected stats n=%d shapes=%d", n, shapes)
	}
}

func TestCapsDropOldest(t *testing.T) {
	l := NewLog(Config{MaxEntries: 2})
	for _, k := range []string{"a", "b", "c"} {
		l.Push(OpAdd, []*shape.Shape{sh(k)}, nil)
	}
	n, _, dropped := l.Stats()
	if n != 2 || dropped != 1 {
		t.Fatalf("expected 2 kept and 1 dropped, got %d/%d", n, dropped)
	}
	e, _ := l.Pop()
	e2, _ := l.Pop()
	if e.Shapes[0].ColorKey != "c" || e2.Shapes[0].ColorKey != "b" {
		t.Fatalf("oldest should be dropped first")
	}
	l.Push(OpAdd, []*shape.Shape{sh("d")}, nil)
	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("clear failed")
	}
}

func TestOpString(t *testing.T) {
	want := map[Op]string{OpAdd: "ADD", OpRemove: "REMOVE", OpEdit: "EDIT", OpSelect: "SELECT", OpUnselect: "UNSELECT", OpSetSelect: "SETSELECT", Op(42): "UNKNOWN"}
	for op, s := range want {
		if op.String() != s {
			t.Fatalf("%d: got %s want %s", op, op.String(), s)
		}
	}
	if !OpEdit.Structural() || OpSelect.Structural() {
		t.Fatalf("structural classification wrong")
	}
}
