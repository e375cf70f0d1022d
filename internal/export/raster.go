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
	"image/draw"
	"slices"
	"sync"

	"github.com/disintegration/imaging"

	"xlabel/internal/engine"
	"xlabel/internal/geom"
	"xlabel/internal/shape"
)

// Raster is an engine.Renderer that keeps an offscreen surface. Next to the
// visible frame it maintains a hit canvas where every shape is filled with its
// color key, so a surface pixel maps straight back to the shape under it.
type Raster struct {
	mu      sync.Mutex
	w, h    int
	opts    Options
	bg      image.Image
	order   []string
	shapes  map[string]*shape.Shape
	view    engine.View
	frame   *image.NRGBA
	hit     *image.NRGBA
	dirty   bool
	redraws int
}

var _ engine.Renderer = (*Raster)(nil)

// NewRaster returns a renderer for a surface of w×h pixels.
func NewRaster(w, h int, opts Options) *Raster {
	return &Raster{w: w, h: h, opts: opts, shapes: make(map[string]*shape.Shape), dirty: true}
}

// Resize changes the surface size in pixels.
func (r *Raster) Resize(w, h int) {
	r.mu.Lock()
	if w != r.w || h != r.h {
		r.w, r.h = w, h
		r.dirty = true
	}
	r.mu.Unlock()
}

// SetBackground sets the image drawn under the shapes. It is stretched over
// the pixmap area of the current view.
func (r *Raster) SetBackground(img image.Image) {
	r.mu.Lock()
	r.bg = img
	r.dirty = true
	r.mu.Unlock()
}

func (r *Raster) Draw(s *shape.Shape, v engine.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = v
	if _, ok := r.shapes[s.ColorKey]; !ok {
		r.order = append(r.order, s.ColorKey)
	}
	r.shapes[s.ColorKey] = s
	r.dirty = true
}

func (r *Raster) RemoveVisual(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shapes[key]; !ok {
		return
	}
	delete(r.shapes, key)
	r.order = slices.DeleteFunc(r.order, func(k string) bool { return k == key })
	r.dirty = true
}

func (r *Raster) ReRender(shapes []*shape.Shape, v engine.View, all bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = v
	if all {
		// keep the live preview, it is owned by the construction in progress
		prev, hasPrev := r.shapes[engine.PreviewKey]
		r.order = r.order[:0]
		clear(r.shapes)
		if hasPrev {
			r.order = append(r.order, engine.PreviewKey)
			r.shapes[engine.PreviewKey] = prev
		}
	}
	for _, s := range shapes {
		if _, ok := r.shapes[s.ColorKey]; !ok {
			r.order = append(r.order, s.ColorKey)
		}
		r.shapes[s.ColorKey] = s
	}
	r.dirty = true
	r.redraws++
}

// Keys returns the keys of the drawn shapes in paint order.
func (r *Raster) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Shape returns the last copy drawn for key.
func (r *Raster) Shape(key string) (*shape.Shape, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shapes[key]
	return s, ok
}

// ReRenders counts ReRender calls.
func (r *Raster) ReRenders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redraws
}

// Image returns the current frame. The result must not be modified.
func (r *Raster) Image() *image.NRGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paintLocked()
	return r.frame
}

// HitAt resolves a surface pixel to the shape under it. Vertices win over
// bodies; the topmost shape wins among bodies.
func (r *Raster) HitAt(x, y float64) engine.HitTest {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paintLocked()
	tf := r.view.ToSurface
	radius := r.view.Style.VertexSize / 2
	for i := len(r.order) - 1; i >= 0; i-- {
		s := r.shapes[r.order[i]]
		if s.ColorKey == engine.PreviewKey || !s.Visible {
			continue
		}
		for vi, p := range s.Points {
			q := tf(p)
			if geom.Distance(q, geom.Pt(x, y)) <= radius {
				return engine.HitTest{Key: s.ColorKey, Kind: engine.HitVertex, VertexIndex: vi}
			}
		}
	}
	px, py := int(x), int(y)
	if !image.Pt(px, py).In(r.hit.Bounds()) {
		return engine.HitTest{}
	}
	c := r.hit.NRGBAAt(px, py)
	if c.A != 255 {
		return engine.HitTest{}
	}
	for _, k := range r.order {
		if k != engine.PreviewKey && sameColor(k, c) {
			return engine.HitTest{Key: k, Kind: engine.HitBody}
		}
	}
	return engine.HitTest{}
}

func sameColor(key string, c color.NRGBA) bool {
	r, g, b := shape.RGB(key)
	return r == c.R && g == c.G && b == c.B
}

func (r *Raster) paintLocked() {
	if !r.dirty && r.frame != nil {
		return
	}
	bounds := image.Rect(0, 0, r.w, r.h)
	r.frame = image.NewNRGBA(bounds)
	r.hit = image.NewNRGBA(bounds)
	v := r.view
	if r.bg != nil && v.PixmapWidth > 0 && v.PixmapHeight > 0 {
		lo := v.ToSurface(geom.Pt(0, 0))
		hi := v.ToSurface(geom.Pt(v.PixmapWidth, v.PixmapHeight))
		w, h := int(hi.X-lo.X), int(hi.Y-lo.Y)
		if w > 0 && h > 0 {
			scaled := imaging.Resize(r.bg, w, h, imaging.Linear)
			at := image.Pt(int(lo.X), int(lo.Y))
			draw.Draw(r.frame, scaled.Bounds().Add(at), scaled, image.Point{}, draw.Over)
		}
	}
	opts := r.opts
	if opts.Style == (engine.Style{}) {
		opts.Style = v.Style
	}
	pal := opts.palette()
	fc := newCanvas(r.frame)
	// Edge pixels blend and match no key; interiors carry the exact key color.
	hc := newCanvas(r.hit)
	for _, k := range r.order {
		s := r.shapes[k]
		if !s.Visible && !opts.Hidden {
			continue
		}
		fc.drawShape(s, v.ToSurface, pal, opts.Labels)
		if k == engine.PreviewKey {
			continue
		}
		kr, kg, kb := shape.RGB(s.ColorKey)
		key := color.NRGBA{R: kr, G: kg, B: kb, A: 255}
		pts, closed := outline(s, v.ToSurface)
		if closed {
			hc.fillPolygon(pts, key)
		}
		hc.strokePath(pts, closed, max(pal.lineWidth, pal.vertexBox/2)*2, key)
	}
	r.dirty = false
}
