/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package shape

import (
	"strings"
	"testing"

	"github.com/lucasb-eyer/go-colorful"

	"xlabel/internal/geom"
)

func TestAddPointSnapCloses(t *testing.T) {
	s := New("#000001", Polygon, LabelInfo{})
	s.AddPoint(geom.Pt(0, 0))
	s.AddPoint(geom.Pt(10, 0))
	s.AddPoint(geom.Pt(10, 10))
	if s.Closed() {
		t.Fatalf("should still be open")
	}
	s.AddPoint(geom.Pt(2, 2))
	if !s.Closed() || len(s.Points) != 3 {
		t.Fatalf("expected closed with 3 points, got closed=%v n=%d", s.Closed(), len(s.Points))
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := New("#000002", Rectangle, LabelInfo{LabelID: "1", Extra: map[string]string{"a": "b"}})
	s.Points = []geom.Point{geom.Pt(1, 1), geom.Pt(5, 5)}
	s.Close()
	c := s.Clone()
	if !c.Equal(s) {
		t.Fatalf("clone should equal original")
	}
	c.Points[0] = geom.Pt(9, 9)
	c.Label.Extra["a"] = "z"
	if s.Points[0] != geom.Pt(1, 1) || s.Label.Extra["a"] != "b" {
		t.Fatalf("clone aliases original: %v %v", s.Points, s.Label.Extra)
	}
}

func TestDuplicateClearsIdentity(t *testing.T) {
	s := New("#000003", Circle, LabelInfo{LabelID: "7", ShapeID: "sku-1", Extra: map[string]string{"skuId": "sku-1", "k": "v"}})
	s.Points = []geom.Point{geom.Pt(3, 3), geom.Pt(6, 3)}
	s.Active = true
	s.Close()
	d := s.Duplicate("#000004")
	if d.ColorKey != "#000004" || d.Active || d.Closed() || d.Label.ShapeID != "" {
		t.Fatalf("unexpected duplicate state: %+v", d)
	}
	if _, ok := d.Label.Extra["skuId"]; ok {
		t.Fatalf("skuId should be dropped from extra")
	}
	if d.Label.LabelID != "7" || d.Label.Extra["k"] != "v" {
		t.Fatalf("label metadata should be carried: %+v", d.Label)
	}
	for i := range s.Points {
		if d.Points[i] != s.Points[i] {
			t.Fatalf("duplicate must not offset vertices")
		}
	}
	if s.Label.ShapeID != "sku-1" || !s.Active {
		t.Fatalf("original must be untouched")
	}
}

func TestParseType(t *testing.T) {
	for _, in := range []string{"rectangle", " Polygon ", "LINE"} {
		if _, err := ParseType(in); err != nil {
			t.Fatalf("ParseType(%q): %v", in, err)
		}
	}
	if _, err := ParseType("ellipse"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if !Rectangle.TwoPoint() || Polygon.TwoPoint() || !Linestrip.MultiPoint() || Point.MultiPoint() {
		t.Fatalf("type classification wrong")
	}
}

func TestContains(t *testing.T) {
	rect := New("r", Rectangle, LabelInfo{})
	rect.Points = []geom.Point{geom.Pt(10, 10), geom.Pt(0, 0)}
	if !rect.Contains(geom.Pt(5, 5), 0) || rect.Contains(geom.Pt(11, 5), 0) {
		t.Fatalf("rectangle hit wrong")
	}
	circ := New("c", Circle, LabelInfo{})
	circ.Points = []geom.Point{geom.Pt(0, 0), geom.Pt(5, 0)}
	if !circ.Contains(geom.Pt(3, 4), 0) || circ.Contains(geom.Pt(4, 4), 0) {
		t.Fatalf("circle hit wrong")
	}
	poly := New("p", Polygon, LabelInfo{})
	poly.Points = []geom.Point{geom.Pt(0, 0), geom.Pt(10, 0), geom.Pt(10, 10)}
	if poly.Contains(geom.Pt(8, 2), 0) {
		t.Fatalf("open polygon interior should not hit")
	}
	poly.Close()
	if !poly.Contains(geom.Pt(8, 2), 0) {
		t.Fatalf("closed polygon interior should hit")
	}
	ln := New("l", Line, LabelInfo{})
	ln.Points = []geom.Point{geom.Pt(0, 0), geom.Pt(10, 0)}
	if !ln.Contains(geom.Pt(5, 2), 3) || ln.Contains(geom.Pt(5, 4), 3) {
		t.Fatalf("line hit wrong")
	}
	ln.Visible = false
	if ln.Contains(geom.Pt(5, 0), 3) {
		t.Fatalf("hidden shape must not hit")
	}
	if idx := poly.VertexAt(geom.Pt(9, 9), 2); idx != 2 {
		t.Fatalf("expected vertex 2, got %d", idx)
	}
	if b := circ.Bounds(); b.X != -5 || b.W != 10 {
		t.Fatalf("circle bounds wrong: %+v", b)
	}
}

func TestKeyGenUnique(t *testing.T) {
	g := NewKeyGen()
	seen := map[string]bool{Palette[1]: true}
	exists := func(k string) bool { return seen[k] }
	first := g.Next(exists)
	if first != Palette[0] {
		t.Fatalf("expected first palette entry, got %s", first)
	}
	seen[first] = true
	if k := g.Next(exists); k != Palette[2] {
		t.Fatalf("taken palette entry must be skipped, got %s", k)
	}
	for i := 0; i < 100; i++ {
		k := g.Next(exists)
		if seen[k] {
			t.Fatalf("duplicate key %s", k)
		}
		if !strings.HasPrefix(k, "#") {
			t.Fatalf("key must start with #: %s", k)
		}
		seen[k] = true
	}
}

func TestKeyGenFallback(t *testing.T) {
	g := &KeyGen{next: len(Palette), random: func() colorful.Color { return colorful.Color{R: 1} }}
	taken := map[string]bool{"#ff0000": true}
	k := g.Next(func(s string) bool { return taken[s] })
	if k != "#ff0000-1" {
		t.Fatalf("expected suffixed fallback, got %s", k)
	}
}

func TestRGB(t *testing.T) {
	r, g, b := RGB("#a8071a")
	if r != 0xa8 || g != 0x07 || b != 0x1a {
		t.Fatalf("unexpected rgb %d %d %d", r, g, b)
	}
	if _, ok := ParseColor("nope"); ok {
		t.Fatalf("expected parse failure")
	}
	r, g, b = RGB("nope")
	if r != 255 || g != 255 || b != 255 {
		t.Fatalf("bad hex should fall back to white")
	}
}
