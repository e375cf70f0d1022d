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
	"strings"

	"xlabel/internal/shape"
)

// Mode is the interaction state of the engine.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
	ModeSelect
	ModeDrag
	ModeCopy
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "CREATE"
	case ModeEdit:
		return "EDIT"
	case ModeSelect:
		return "SELECT"
	case ModeDrag:
		return "DRAG"
	case ModeCopy:
		return "COPY"
	}
	return "UNKNOWN"
}

type Button int

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)

// Modifiers is a bit set of held keyboard modifiers.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
)

// Has reports whether every bit of o is held. An empty o is never held.
func (m Modifiers) Has(o Modifiers) bool { return o != 0 && m&o == o }

// ParseModifier maps "ctrl", "shift", "alt" or "meta" (also "cmd", "super") to a bit.
func ParseModifier(s string) (Modifiers, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shift":
		return ModShift, true
	case "ctrl", "control":
		return ModCtrl, true
	case "alt", "option":
		return ModAlt, true
	case "meta", "cmd", "super":
		return ModMeta, true
	}
	return 0, false
}

// HitKind says what part of a shape lies under the pointer.
type HitKind int

const (
	HitNone HitKind = iota
	HitBody
	HitVertex
)

// HitTest identifies the shape (and vertex) under the pointer. The host or the
// renderer computes it and passes it with every pointer event.
type HitTest struct {
	Key         string
	Kind        HitKind
	VertexIndex int
}

func (h HitTest) Hit() bool { return h.Key != "" && h.Kind != HitNone }

// PointerEvent carries raw client coordinates.
type PointerEvent struct {
	ClientX, ClientY float64
	Button           Button
	Mods             Modifiers
	Hit              HitTest
}

type WheelEvent struct {
	ClientX, ClientY float64
	DeltaY           float64
	Mods             Modifiers
}

// Surface describes the host drawing area in page coordinates.
type Surface struct {
	Width, Height         float64
	OffsetLeft, OffsetTop float64
	ScrollX, ScrollY      float64
}

// ChangeType is delivered through Options.OnChange.
type ChangeType string

const (
	ChangeShapes         ChangeType = "shapes"
	ChangeCreateMode     ChangeType = "createMode"
	ChangeContinuousMode ChangeType = "continuousMode"
	ChangeLoading        ChangeType = "loading"
	ChangeError          ChangeType = "error"
	ChangeEditActive     ChangeType = "editActive"
	ChangeLoaded         ChangeType = "loaded"
)

// Data is a snapshot of the engine's document. Shapes are deep copies.
type Data struct {
	ImagePath    string
	ImageWidth   int
	ImageHeight  int
	PixmapWidth  float64
	PixmapHeight float64
	Scale        float64
	Shapes       []*shape.Shape
}
