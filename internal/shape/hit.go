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

import "xlabel/internal/geom"

// VertexAt returns the index of the first vertex within radius of p, or -1.
func (s *Shape) VertexAt(p geom.Point, radius float64) int {
	for i, v := range s.Points {
		if geom.Distance(v, p) <= radius {
			return i
		}
	}
	return -1
}

// Contains reports whether p hits the body of the shape. tol widens thin
// geometry (lines, strips, points) so they remain clickable.
func (s *Shape) Contains(p geom.Point, tol float64) bool {
	if !s.Visible || len(s.Points) == 0 {
		return false
	}
	switch s.Type {
	case Rectangle:
		if len(s.Points) < 2 {
			return false
		}
		return geom.RectFromCorners(s.Points[0], s.Points[1]).Contains(p)
	case Circle:
		if len(s.Points) < 2 {
			return false
		}
		return geom.Distance(s.Points[0], p) <= geom.Distance(s.Points[0], s.Points[1])
	case Polygon:
		if s.closed && geom.PointInPolygon(p, s.Points) {
			return true
		}
		return s.nearPath(p, tol, s.closed)
	case Line, Linestrip:
		return s.nearPath(p, tol, false)
	case Point:
		return geom.Distance(s.Points[0], p) <= tol
	}
	return false
}

func (s *Shape) nearPath(p geom.Point, tol float64, closed bool) bool {
	n := len(s.Points)
	if n == 1 {
		return geom.Distance(s.Points[0], p) <= tol
	}
	for i := 1; i < n; i++ {
		if geom.DistanceToSegment(p, s.Points[i-1], s.Points[i]) <= tol {
			return true
		}
	}
	if closed && n > 2 {
		return geom.DistanceToSegment(p, s.Points[n-1], s.Points[0]) <= tol
	}
	return false
}
