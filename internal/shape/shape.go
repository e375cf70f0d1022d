/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package shape defines the annotation shape entity: its type, vertex list,
// label metadata and the open/closed construction lifecycle.
package shape

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"xlabel/internal/geom"
)

// Type is the geometry kind of a shape.
type Type string

const (
	Rectangle Type = "rectangle"
	Circle    Type = "circle"
	Polygon   Type = "polygon"
	Linestrip Type = "linestrip"
	Line      Type = "line"
	Point     Type = "point"
)

// Types lists every supported type in a stable order.
var Types = []Type{Rectangle, Circle, Polygon, Linestrip, Line, Point}

// ParseType accepts a type name case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Types, t) {
		return t, nil
	}
	return "", fmt.Errorf("unknown shape type %q", s)
}

// TwoPoint reports types that are defined by exactly two points.
func (t Type) TwoPoint() bool { return t == Rectangle || t == Circle || t == Line }

// MultiPoint reports types that accumulate an open-ended vertex list.
func (t Type) MultiPoint() bool { return t == Polygon || t == Linestrip }

// SnapThreshold is the distance under which AddPoint treats a new vertex as
// landing on vertex 0 and closes the shape instead.
const SnapThreshold = 5

// LabelInfo is caller-owned label metadata carried verbatim by a shape.
// ShapeID is an optional persisted identity; duplicates clear it.
type LabelInfo struct {
	LabelID   string            `json:"labelId,omitempty" yaml:"label_id,omitempty"`
	LabelName string            `json:"labelName,omitempty" yaml:"label_name,omitempty"`
	ShapeID   string            `json:"shapeId,omitempty" yaml:"shape_id,omitempty"`
	Extra     map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Clone returns a deep copy.
func (l LabelInfo) Clone() LabelInfo {
	out := l
	if l.Extra != nil {
		out.Extra = maps.Clone(l.Extra)
	}
	return out
}

func (l LabelInfo) Equal(o LabelInfo) bool {
	return l.LabelID == o.LabelID && l.LabelName == o.LabelName && l.ShapeID == o.ShapeID && maps.Equal(l.Extra, o.Extra)
}

// Shape is a labeled geometric annotation. ColorKey is its unique identity.
type Shape struct {
	ColorKey string
	Type     Type
	Points   []geom.Point
	Label    LabelInfo
	Visible  bool
	Active   bool
	closed   bool
}

// New returns an open, visible, unselected shape with no vertices.
func New(key string, t Type, label LabelInfo) *Shape {
	return &Shape{ColorKey: key, Type: t, Label: label.Clone(), Visible: true}
}

// AddPoint appends p, unless p lands within SnapThreshold of the first vertex,
// in which case the shape is closed and p is dropped.
func (s *Shape) AddPoint(p geom.Point) {
	if len(s.Points) > 0 && geom.CloseEnough(s.Points[0], p, SnapThreshold) {
		s.closed = true
		return
	}
	s.Points = append(s.Points, p)
}

func (s *Shape) Close()       { s.closed = true }
func (s *Shape) SetOpen()     { s.closed = false }
func (s *Shape) Closed() bool { return s.closed }

// Last returns the last vertex; ok is false for an empty shape.
func (s *Shape) Last() (geom.Point, bool) {
	if len(s.Points) == 0 {
		return geom.Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Clone is a deep structural copy that keeps the key and every flag.
func (s *Shape) Clone() *Shape {
	if s == nil {
		return nil
	}
	out := *s
	out.Points = slices.Clone(s.Points)
	out.Label = s.Label.Clone()
	return &out
}

// Duplicate copies s under a new key with identical vertices. The copy is
// deselected, open (not yet persisted) and carries no ShapeID.
func (s *Shape) Duplicate(key string) *Shape {
	out := s.Clone()
	out.ColorKey = key
	out.Active = false
	out.closed = false
	out.Label.ShapeID = ""
	if out.Label.Extra != nil {
		delete(out.Label.Extra, "skuId")
	}
	return out
}

// Translate moves every vertex by d.
func (s *Shape) Translate(d geom.Point) {
	for i, p := range s.Points {
		s.Points[i] = p.Add(d)
	}
}

// Equal compares every field including the closed flag.
func (s *Shape) Equal(o *Shape) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.ColorKey == o.ColorKey && s.Type == o.Type && s.Visible == o.Visible &&
		s.Active == o.Active && s.closed == o.closed &&
		slices.Equal(s.Points, o.Points) && s.Label.Equal(o.Label)
}

// Bounds returns the axis-aligned extent the shape covers. Circles use
// Points[0] as centre and the distance to Points[1] as radius.
func (s *Shape) Bounds() geom.Rect {
	if s.Type == Circle && len(s.Points) >= 2 {
		r := geom.Distance(s.Points[0], s.Points[1])
		c := s.Points[0]
		return geom.R(c.X-r, c.Y-r, 2*r, 2*r)
	}
	return geom.Bounds(s.Points)
}

func (s *Shape) String() string {
	return fmt.Sprintf("%s[%s %d pts closed=%v active=%v]", s.Type, s.ColorKey, len(s.Points), s.closed, s.Active)
}
