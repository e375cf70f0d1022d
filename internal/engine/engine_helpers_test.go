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
	"sync"
	"testing"

	"xlabel/internal/geom"
	applog "xlabel/internal/log"
	"xlabel/internal/shape"
)

type recRenderer struct {
	mu        sync.Mutex
	drawn     map[string]*shape.Shape
	removed   []string
	rerenders int
	fulls     int
}

func newRecRenderer() *recRenderer { return &recRenderer{drawn: map[string]*shape.Shape{}} }

func (r *recRenderer) Draw(s *shape.Shape, _ View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drawn[s.ColorKey] = s
}

func (r *recRenderer) RemoveVisual(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drawn, key)
	r.removed = append(r.removed, key)
}

func (r *recRenderer) ReRender(shapes []*shape.Shape, _ View, all bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rerenders++
	if all {
		r.fulls++
	}
	for _, s := range shapes {
		r.drawn[s.ColorKey] = s
	}
}

func (r *recRenderer) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.drawn[key]
	return ok
}

type syncImages struct {
	w, h int
	err  error
}

func (s syncImages) Load(_ string, done func(int, int, error)) { done(s.w, s.h, s.err) }

type pendingImages struct {
	mu    sync.Mutex
	dones []func(int, int, error)
}

func (p *pendingImages) Load(_ string, done func(int, int, error)) {
	p.mu.Lock()
	p.dones = append(p.dones, done)
	p.mu.Unlock()
}

const testSize = 200

func newTestEngine(t *testing.T, mutate func(*Options)) (*Engine, *recRenderer) {
	t.Helper()
	opts := DefaultOptions()
	opts.Logger = applog.Discard()
	if mutate != nil {
		mutate(&opts)
	}
	r := newRecRenderer()
	e := New(opts, r, syncImages{w: testSize, h: testSize})
	e.SetSurface(Surface{Width: testSize, Height: testSize})
	var loadErr error
	e.SetImg("img.png", func(err error) { loadErr = err })
	if loadErr != nil {
		t.Fatalf("image load failed: %v", loadErr)
	}
	return e, r
}

func down(e *Engine, x, y float64) { e.PointerDown(PointerEvent{ClientX: x, ClientY: y}) }
func move(e *Engine, x, y float64) { e.PointerMove(PointerEvent{ClientX: x, ClientY: y}) }
func up(e *Engine, x, y float64)   { e.PointerUp(PointerEvent{ClientX: x, ClientY: y}) }

func downHit(e *Engine, x, y float64, hit HitTest, mods Modifiers) {
	e.PointerDown(PointerEvent{ClientX: x, ClientY: y, Hit: hit, Mods: mods})
}

// drawRect creates a rectangle through pointer gestures and returns its key.
func drawRect(t *testing.T, e *Engine, a, b geom.Point) string {
	t.Helper()
	n := e.Len()
	down(e, a.X, a.Y)
	up(e, a.X, a.Y)
	move(e, b.X, b.Y)
	down(e, b.X, b.Y)
	up(e, b.X, b.Y)
	if e.Len() != n+1 {
		t.Fatalf("rectangle not committed: len=%d", e.Len())
	}
	return e.GetData().Shapes[n].ColorKey
}

func assertPoints(t *testing.T, s *shape.Shape, want ...geom.Point) {
	t.Helper()
	if len(s.Points) != len(want) {
		t.Fatalf("%s: got %d points %v, want %v", s.ColorKey, len(s.Points), s.Points, want)
	}
	for i := range want {
		if !s.Points[i].Eq(want[i]) {
			t.Fatalf("%s: point %d = %v, want %v", s.ColorKey, i, s.Points[i], want[i])
		}
	}
}
