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

// Viewport maps between host client coordinates and image-local space.
//
// The surface sits at (OffsetLeft, OffsetTop) in page coordinates and the page is
// scrolled by (ScrollX, ScrollY). Origin is the pan offset in image-local units
// and Scale the zoom factor.
type Viewport struct {
	OffsetLeft, OffsetTop float64
	ScrollX, ScrollY      float64
	Origin                Point
	Scale                 float64
}

func (v Viewport) scale() float64 {
	if v.Scale <= 0 {
		return 1
	}
	return v.Scale
}

// ToImage converts client coordinates into image-local space.
func (v Viewport) ToImage(clientX, clientY float64) Point {
	s := v.scale()
	x := (clientX - (v.OffsetLeft - v.ScrollX)) / s
	y := (clientY - (v.OffsetTop - v.ScrollY)) / s
	return Point{X: x, Y: y}.Sub(v.Origin)
}

// ToClient is the inverse of ToImage.
func (v Viewport) ToClient(p Point) (float64, float64) {
	s := v.scale()
	q := p.Add(v.Origin)
	return q.X*s + (v.OffsetLeft - v.ScrollX), q.Y*s + (v.OffsetTop - v.ScrollY)
}

// ToSurface maps an image-local point to surface pixels (no page offset), which is
// what a renderer drawing into the surface needs.
func (v Viewport) ToSurface(p Point) Point {
	s := v.scale()
	q := p.Add(v.Origin)
	return Point{X: q.X * s, Y: q.Y * s}
}
