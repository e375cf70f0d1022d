/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package geom

import "math"

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// CloseEnough reports whether a and b are strictly closer than threshold.
func CloseEnough(a, b Point, threshold float64) bool {
	return Distance(a, b) < threshold
}

// AngleAt returns the angle in whole degrees at vertex a between the rays a->b and a->c.
// Degenerate input (b or c coinciding with a) yields 0.
func AngleAt(a, b, c Point) float64 {
	ab := Distance(a, b)
	ac := Distance(a, c)
	bc := Distance(b, c)
	if ab == 0 || ac == 0 {
		return 0
	}
	cos := (ab*ab + ac*ac - bc*bc) / (2 * ab * ac)
	cos = Clamp(cos, -1, 1)
	return math.Round(math.Acos(cos) * 180 / math.Pi)
}

// PointInPolygon runs a horizontal ray-crossing test towards +X.
// Horizontal edges are skipped. An edge counts when p.Y lies in the half-open
// span (minY, maxY] of the edge and its x-intercept is at or beyond p.X, so a
// vertex shared by two edges is counted once.
func PointInPolygon(p Point, vertices []Point) bool {
	n := len(vertices)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := vertices[j], vertices[i]
		if a.Y == b.Y {
			continue
		}
		lo, hi := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
		if p.Y <= lo || p.Y > hi {
			continue
		}
		x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
		if x >= p.X {
			inside = !inside
		}
	}
	return inside
}

// DistanceToSegment returns the shortest distance from p to the segment a-b.
func DistanceToSegment(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return Distance(p, a)
	}
	t := Clamp(((p.X-a.X)*dx+(p.Y-a.Y)*dy)/l2, 0, 1)
	return Distance(p, Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// Rect is an axis-aligned rectangle defined by min corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Min() Point { return Point{r.X, r.Y} }
func (r Rect) Max() Point { return Point{r.X + r.W, r.Y + r.H} }

func (r Rect) Center() Point { return Point{r.X + r.W/2, r.Y + r.H/2} }

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.W, o.X+o.W)
	maxY := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// RectFromCorners normalises two opposite corners into a Rect.
func RectFromCorners(a, b Point) Rect {
	x0, x1 := math.Min(a.X, b.X), math.Max(a.X, b.X)
	y0, y1 := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Bounds returns the bounding box of pts; empty input yields the zero Rect.
func Bounds(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{X: pts[0].X, Y: pts[0].Y}
	for _, p := range pts[1:] {
		r = r.Union(Rect{X: p.X, Y: p.Y})
	}
	return r
}
