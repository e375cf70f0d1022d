/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"xlabel/internal/geom"
	"xlabel/internal/shape"
)

// canvas wraps an RGBA target with a reusable rasterizer.
type canvas struct {
	dst *image.NRGBA
	ras *vector.Rasterizer
}

func newCanvas(dst *image.NRGBA) *canvas {
	b := dst.Bounds()
	return &canvas{dst: dst, ras: vector.NewRasterizer(b.Dx(), b.Dy())}
}

func (c *canvas) begin() {
	b := c.dst.Bounds()
	c.ras.Reset(b.Dx(), b.Dy())
}

func (c *canvas) flush(col color.Color) {
	c.ras.Draw(c.dst, c.dst.Bounds(), image.NewUniform(col), image.Point{})
}

func (c *canvas) fillPolygon(pts []geom.Point, col color.NRGBA) {
	if len(pts) < 3 || col.A == 0 {
		return
	}
	c.begin()
	c.ras.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		c.ras.LineTo(float32(p.X), float32(p.Y))
	}
	c.ras.ClosePath()
	c.flush(col)
}

// strokePath draws each segment as a quad of the given width. All quads wind
// the same way so overlaps do not cancel.
func (c *canvas) strokePath(pts []geom.Point, closed bool, width float64, col color.NRGBA) {
	if len(pts) < 2 {
		return
	}
	c.begin()
	hw := width / 2
	seg := func(a, b geom.Point) {
		d := b.Sub(a)
		l := math.Hypot(d.X, d.Y)
		if l == 0 {
			return
		}
		n := geom.Pt(-d.Y/l*hw, d.X/l*hw)
		// extend by hw so joints overlap
		e := geom.Pt(d.X/l*hw, d.Y/l*hw)
		a, b = a.Sub(e), b.Add(e)
		c.ras.MoveTo(float32(a.X+n.X), float32(a.Y+n.Y))
		c.ras.LineTo(float32(b.X+n.X), float32(b.Y+n.Y))
		c.ras.LineTo(float32(b.X-n.X), float32(b.Y-n.Y))
		c.ras.LineTo(float32(a.X-n.X), float32(a.Y-n.Y))
		c.ras.ClosePath()
	}
	for i := 1; i < len(pts); i++ {
		seg(pts[i-1], pts[i])
	}
	if closed && len(pts) > 2 {
		seg(pts[len(pts)-1], pts[0])
	}
	c.flush(col)
}

func (c *canvas) box(center geom.Point, size float64, col color.NRGBA) {
	h := size / 2
	c.fillPolygon([]geom.Point{
		geom.Pt(center.X-h, center.Y-h), geom.Pt(center.X+h, center.Y-h),
		geom.Pt(center.X+h, center.Y+h), geom.Pt(center.X-h, center.Y+h),
	}, col)
}

func (c *canvas) text(at geom.Point, s string, col color.NRGBA) {
	d := font.Drawer{
		Dst:  c.dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(math.Round(at.X)), int(math.Round(at.Y))),
	}
	d.DrawString(s)
}

// drawShape renders s with tf mapping pixmap points into canvas pixels.
func (c *canvas) drawShape(s *shape.Shape, tf func(geom.Point) geom.Point, pal palette, labels bool) {
	stroke, fill := pal.forShape(s)
	pts, closed := outline(s, tf)
	if closed {
		c.fillPolygon(pts, fill)
	}
	if s.Type != shape.Point {
		c.strokePath(pts, closed, pal.lineWidth, stroke)
	}
	vs := pal.vertexBox
	if s.Type == shape.Point && vs <= 0 {
		vs = 4
	}
	if vs > 0 {
		for _, p := range s.Points {
			c.box(tf(p), vs, stroke)
		}
	}
	if labels && s.Label.LabelName != "" && len(s.Points) > 0 {
		at := tf(s.Points[0])
		c.text(geom.Pt(at.X+vs, at.Y-vs), s.Label.LabelName, stroke)
	}
}
