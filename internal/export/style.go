/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export draws annotation documents. It provides a raster
// implementation of engine.Renderer and writers for PNG, SVG and PDF output.
package export

import (
	"fmt"
	"image/color"
	"math"

	"xlabel/internal/engine"
	"xlabel/internal/geom"
	"xlabel/internal/shape"
)

// Options controls how shapes are drawn. A zero Style uses the engine defaults.
type Options struct {
	Style engine.Style
	// Labels draws each shape's label name next to its first vertex.
	Labels bool
	// Hidden includes shapes whose Visible flag is off.
	Hidden bool
}

type palette struct {
	line, active         color.NRGBA
	fill, activeFill     color.NRGBA
	lineWidth, vertexBox float64
}

func (o Options) palette() palette {
	st := o.Style
	if st == (engine.Style{}) {
		st = engine.DefaultOptions().Style
	}
	alpha := uint8(math.Round(geom.Clamp(st.FillOpacity, 0, 1) * 255))
	p := palette{
		line:       hexColor(st.LineColor, color.NRGBA{G: 255, A: 255}),
		active:     hexColor(st.ActiveColor, color.NRGBA{R: 168, G: 7, B: 26, A: 255}),
		fill:       color.NRGBA{R: st.FillColor[0], G: st.FillColor[1], B: st.FillColor[2], A: alpha},
		activeFill: color.NRGBA{R: st.ActiveFillColor[0], G: st.ActiveFillColor[1], B: st.ActiveFillColor[2], A: alpha},
		lineWidth:  st.LineWidth,
		vertexBox:  st.VertexSize,
	}
	if p.lineWidth <= 0 {
		p.lineWidth = 1
	}
	return p
}

func (p palette) forShape(s *shape.Shape) (stroke, fill color.NRGBA) {
	if s.Active {
		return p.active, p.activeFill
	}
	return p.line, p.fill
}

func hexColor(hex string, fallback color.NRGBA) color.NRGBA {
	c, ok := shape.ParseColor(hex)
	if !ok {
		return fallback
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func cssColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// circleSegments is the number of edges used to approximate a circle.
const circleSegments = 64

// outline returns the path of s in target space (tf maps pixmap points) and
// whether the path is closed and filled.
func outline(s *shape.Shape, tf func(geom.Point) geom.Point) (pts []geom.Point, closed bool) {
	switch s.Type {
	case shape.Rectangle:
		if len(s.Points) < 2 {
			break
		}
		r := geom.RectFromCorners(s.Points[0], s.Points[1])
		return []geom.Point{tf(r.Min()), tf(geom.Pt(r.X+r.W, r.Y)), tf(r.Max()), tf(geom.Pt(r.X, r.Y+r.H))}, true
	case shape.Circle:
		if len(s.Points) < 2 {
			break
		}
		c := s.Points[0]
		rad := geom.Distance(c, s.Points[1])
		pts = make([]geom.Point, circleSegments)
		for i := range pts {
			a := 2 * math.Pi * float64(i) / circleSegments
			pts[i] = tf(geom.Pt(c.X+rad*math.Cos(a), c.Y+rad*math.Sin(a)))
		}
		return pts, true
	}
	pts = make([]geom.Point, len(s.Points))
	for i, p := range s.Points {
		pts[i] = tf(p)
	}
	return pts, s.Type == shape.Polygon && s.Closed()
}

func scaleBy(k float64) func(geom.Point) geom.Point {
	return func(p geom.Point) geom.Point { return geom.Pt(p.X*k, p.Y*k) }
}
