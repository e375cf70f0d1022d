/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package geom holds the 2D value types and pure geometry helpers used for
// annotation shapes. Coordinates are float64 in image-local (pixmap) space.
package geom

import (
	"math"
	"strconv"
)

// ScalePlaces is the number of decimals kept by Scale and Unscale.
const ScalePlaces = 2

// Point is a 2D position. It is a value type; all operations return new points.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Scale multiplies both coordinates by f and rounds to ScalePlaces decimals.
func (p Point) Scale(f float64) Point {
	return Point{X: FloatRound(p.X*f, ScalePlaces), Y: FloatRound(p.Y*f, ScalePlaces)}
}

// Unscale divides both coordinates by f. A zero factor returns p unchanged.
func (p Point) Unscale(f float64) Point {
	if f == 0 {
		return p
	}
	return Point{X: FloatRound(p.X/f, ScalePlaces), Y: FloatRound(p.Y/f, ScalePlaces)}
}

func (p Point) Eq(q Point) bool { return p.X == q.X && p.Y == q.Y }

func (p Point) String() string {
	return "(" + strconv.FormatFloat(p.X, 'f', -1, 64) + "," + strconv.FormatFloat(p.Y, 'f', -1, 64) + ")"
}

// FloatRound rounds v to n decimal places deterministically.
func FloatRound(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
