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
	"log/slog"

	"xlabel/internal/shape"
)

// Style is passed through to the Renderer unchanged.
type Style struct {
	LineColor       string
	LineWidth       float64
	VertexSize      float64
	FillColor       [3]uint8
	FillOpacity     float64
	ActiveColor     string
	ActiveFillColor [3]uint8
}

// Options is the flat engine configuration. Start from DefaultOptions and
// override fields; zero numeric fields are filled from the defaults.
type Options struct {
	ZoomMin float64
	ZoomMax float64
	Style
	// Editable=false suppresses create, edit, move and copy gestures. Pan, zoom
	// and click selection keep working.
	Editable bool
	// RequireLabel reports an error instead of starting a shape while no label is set.
	RequireLabel bool

	CreateMode     shape.Type
	ContinuousMode bool

	PanModifier  Modifiers
	CopyModifier Modifiers
	ZoomModifier Modifiers

	// CancelThreshold is the distance under which a second click cancels a
	// rectangle, circle or line.
	CancelThreshold float64
	// CloseThreshold is the distance under which a polygon click snaps to vertex 0.
	CloseThreshold float64
	MaxUndo        int

	OnChange func(ChangeType)
	OnError  func(string)
	Logger   *slog.Logger
}

const (
	zoomStep     = 0.1
	zoomDecimals = 1
)

// PreviewKey is the key under which the live construction preview is drawn.
const PreviewKey = "__preview__"

func DefaultOptions() Options {
	return Options{
		ZoomMin: 0.5,
		ZoomMax: 10,
		Style: Style{
			LineColor:       "#00FF00",
			LineWidth:       1,
			VertexSize:      8,
			FillColor:       [3]uint8{0, 255, 0},
			FillOpacity:     0.1,
			ActiveColor:     "#a8071a",
			ActiveFillColor: [3]uint8{245, 34, 45},
		},
		Editable:        true,
		CreateMode:      shape.Rectangle,
		PanModifier:     ModCtrl,
		CopyModifier:    ModCtrl,
		ZoomModifier:    ModCtrl,
		CancelThreshold: 10,
		CloseThreshold:  shape.SnapThreshold,
		MaxUndo:         1000,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.ZoomMin <= 0 {
		o.ZoomMin = d.ZoomMin
	}
	if o.ZoomMax <= 0 {
		o.ZoomMax = d.ZoomMax
	}
	if o.ZoomMax < o.ZoomMin {
		o.ZoomMin, o.ZoomMax = o.ZoomMax, o.ZoomMin
	}
	if o.LineColor == "" {
		o.LineColor = d.LineColor
	}
	if o.LineWidth <= 0 {
		o.LineWidth = d.LineWidth
	}
	if o.VertexSize <= 0 {
		o.VertexSize = d.VertexSize
	}
	if o.ActiveColor == "" {
		o.ActiveColor = d.ActiveColor
	}
	if o.CreateMode == "" {
		o.CreateMode = d.CreateMode
	}
	if o.CancelThreshold <= 0 {
		o.CancelThreshold = d.CancelThreshold
	}
	if o.CloseThreshold <= 0 {
		o.CloseThreshold = d.CloseThreshold
	}
	if o.MaxUndo <= 0 {
		o.MaxUndo = d.MaxUndo
	}
	return o
}
