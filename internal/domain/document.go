/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package domain holds the serialisable annotation document. It is the
// on-disk and on-wire form of an engine snapshot.
package domain

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"xlabel/internal/engine"
	"xlabel/internal/geom"
	"xlabel/internal/shape"
)

// DocumentVersion is written into every new document.
const DocumentVersion = 1

// ErrInvalidDocument wraps every schema or decoding failure.
var ErrInvalidDocument = errors.New("invalid annotation document")

//go:embed document.schema.json
var schemaJSON []byte

// Document is one image with its annotations.
type Document struct {
	Version   int        `json:"version"`
	ID        string     `json:"id,omitempty"`
	Image     Image      `json:"image"`
	Pixmap    *Pixmap    `json:"pixmap,omitempty"`
	Scale     float64    `json:"scale,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt,omitzero"`
	Shapes    []ShapeDoc `json:"shapes"`
}

type Image struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Pixmap is the drawing area the points were recorded in. Points scale to the
// natural image by Image.Width / Pixmap.Width.
type Pixmap struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ToImage returns the factor mapping pixmap coordinates to image pixels.
func (d Document) ToImage() float64 {
	if d.Pixmap == nil || d.Pixmap.Width <= 0 || d.Image.Width <= 0 {
		return 1
	}
	return float64(d.Image.Width) / d.Pixmap.Width
}

// ShapeDoc is the persisted form of a shape. Points are pixmap coordinates.
type ShapeDoc struct {
	Key     string          `json:"key"`
	Type    shape.Type      `json:"type"`
	Points  []geom.Point    `json:"points"`
	Closed  bool            `json:"closed,omitempty"`
	Visible bool            `json:"visible"`
	Active  bool            `json:"active,omitempty"`
	Label   shape.LabelInfo `json:"label"`
}

// FromData builds a document from an engine snapshot.
func FromData(d engine.Data) Document {
	doc := Document{
		Version: DocumentVersion,
		Image:   Image{Path: d.ImagePath, Width: d.ImageWidth, Height: d.ImageHeight},
		Scale:   d.Scale,
		Shapes:  make([]ShapeDoc, 0, len(d.Shapes)),
	}
	if d.PixmapWidth > 0 && d.PixmapHeight > 0 {
		doc.Pixmap = &Pixmap{Width: d.PixmapWidth, Height: d.PixmapHeight}
	}
	for _, s := range d.Shapes {
		doc.Shapes = append(doc.Shapes, FromShape(s))
	}
	return doc
}

func FromShape(s *shape.Shape) ShapeDoc {
	pts := make([]geom.Point, len(s.Points))
	copy(pts, s.Points)
	return ShapeDoc{
		Key:     s.ColorKey,
		Type:    s.Type,
		Points:  pts,
		Closed:  s.Closed(),
		Visible: s.Visible,
		Active:  s.Active,
		Label:   s.Label.Clone(),
	}
}

// Shape converts back into an engine shape.
func (sd ShapeDoc) Shape() *shape.Shape {
	s := shape.New(sd.Key, sd.Type, sd.Label.Clone())
	s.Points = append([]geom.Point(nil), sd.Points...)
	s.Visible = sd.Visible
	s.Active = sd.Active
	if sd.Closed {
		s.Close()
	}
	return s
}

// ShapeList converts all shapes, preserving order.
func (d Document) ShapeList() []*shape.Shape {
	out := make([]*shape.Shape, 0, len(d.Shapes))
	for _, sd := range d.Shapes {
		out = append(out, sd.Shape())
	}
	return out
}

// Data converts the document into an engine snapshot for SetData.
func (d Document) Data() engine.Data {
	data := engine.Data{
		ImagePath:   d.Image.Path,
		ImageWidth:  d.Image.Width,
		ImageHeight: d.Image.Height,
		Scale:       d.Scale,
		Shapes:      d.ShapeList(),
	}
	if d.Pixmap != nil {
		data.PixmapWidth, data.PixmapHeight = d.Pixmap.Width, d.Pixmap.Height
	}
	return data
}

// Labels returns the distinct label names in first-seen order.
func (d Document) Labels() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range d.Shapes {
		if n := s.Label.LabelName; n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Validate checks raw JSON against the embedded document schema.
func Validate(data []byte) error {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}
	return nil
}

// Marshal encodes the document as indented JSON.
func Marshal(d Document) ([]byte, error) {
	if d.Version == 0 {
		d.Version = DocumentVersion
	}
	if d.Shapes == nil {
		d.Shapes = []ShapeDoc{}
	}
	return json.MarshalIndent(d, "", "  ")
}

// Unmarshal validates and decodes a document.
func Unmarshal(data []byte) (Document, error) {
	if err := Validate(data); err != nil {
		return Document{}, err
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return d, nil
}
