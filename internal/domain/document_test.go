/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"slices"
	"testing"

	"xlabel/internal/engine"
	"xlabel/internal/geom"
	"xlabel/internal/shape"
)

func sampleData() engine.Data {
	rect := shape.New("#ff0000", shape.Rectangle, shape.LabelInfo{LabelID: "1", LabelName: "car"})
	rect.Points = []geom.Point{geom.Pt(10, 10), geom.Pt(50, 40)}
	rect.Close()
	rect.Active = true
	poly := shape.New("#00ff00", shape.Polygon, shape.LabelInfo{LabelID: "2", LabelName: "road", Extra: map[string]string{"lane": "2"}})
	poly.Points = []geom.Point{geom.Pt(0, 0), geom.Pt(30, 0), geom.Pt(15, 20)}
	poly.Close()
	return engine.Data{ImagePath: "street.jpg", ImageWidth: 640, ImageHeight: 480, Scale: 1.5, Shapes: []*shape.Shape{rect, poly}}
}

func TestDocumentPreservesEngineSnapshot(t *testing.T) {
	in := sampleData()
	raw, err := Marshal(FromData(in))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	doc, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	out := doc.Data()
	if out.ImagePath != "street.jpg" || out.ImageWidth != 640 || out.Scale != 1.5 {
		t.Fatalf("image fields lost: %+v", out)
	}
	if len(out.Shapes) != 2 {
		t.Fatalf("expected 2 shapes, got %d", len(out.Shapes))
	}
	for i := range in.Shapes {
		if !out.Shapes[i].Equal(in.Shapes[i]) {
			t.Fatalf("shape %d changed: %v vs %v", i, out.Shapes[i], in.Shapes[i])
		}
	}
	if got := doc.Labels(); !slices.Equal(got, []string{"car", "road"}) {
		t.Fatalf("labels = %v", got)
	}
}

func TestValidateRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"missing image": `{"version":1,"shapes":[]}`,
		"bad type":      `{"version":1,"image":{"path":"a","width":1,"height":1},"shapes":[{"key":"k","type":"hexagon","points":[]}]}`,
		"empty key":     `{"version":1,"image":{"path":"a","width":1,"height":1},"shapes":[{"key":"","type":"point","points":[{"x":1,"y":1}]}]}`,
		"point no y":    `{"version":1,"image":{"path":"a","width":1,"height":1},"shapes":[{"key":"k","type":"point","points":[{"x":1}]}]}`,
	}
	for name, raw := range cases {
		if _, err := Unmarshal([]byte(raw)); !errors.Is(err, ErrInvalidDocument) {
			t.Fatalf("%s: expected ErrInvalidDocument, got %v", name, err)
		}
	}
}

func TestEmptyDocumentIsValid(t *testing.T) {
	raw, err := Marshal(Document{Image: Image{Path: "x.png"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := Validate(raw); err != nil {
		t.Fatalf("empty document should validate: %v", err)
	}
}

func TestShapeDocCopiesPoints(t *testing.T) {
	s := shape.New("k", shape.Line, shape.LabelInfo{})
	s.Points = []geom.Point{geom.Pt(1, 1), geom.Pt(2, 2)}
	sd := FromShape(s)
	s.Points[0] = geom.Pt(9, 9)
	if sd.Points[0] != geom.Pt(1, 1) {
		t.Fatalf("FromShape must copy points")
	}
	back := sd.Shape()
	if back.Closed() || !back.Visible {
		t.Fatalf("open visible line expected, got %v", back)
	}
}
