/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package keymap turns keyboard chords such as "ctrl+r" into editor actions.
package keymap

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"xlabel/internal/engine"
	applog "xlabel/internal/log"
	"xlabel/internal/shape"
)

type Action string

const (
	CreateRectangle  Action = "create.rectangle"
	CreateCircle     Action = "create.circle"
	CreatePolygon    Action = "create.polygon"
	CreateLinestrip  Action = "create.linestrip"
	CreateLine       Action = "create.line"
	CreatePoint      Action = "create.point"
	Undo             Action = "undo"
	DeleteActive     Action = "delete"
	Abort            Action = "abort"
	Finish           Action = "finish"
	ToggleContinuous Action = "continuous.toggle"
	ZoomIn           Action = "zoom.in"
	ZoomOut          Action = "zoom.out"
)

// Edits reports whether a changes stored shapes. Read-only targets refuse it.
func (a Action) Edits() bool { return a == Undo || a == DeleteActive || a == Finish }

var actions = map[Action]bool{
	CreateRectangle: true, CreateCircle: true, CreatePolygon: true, CreateLinestrip: true,
	CreateLine: true, CreatePoint: true, Undo: true, DeleteActive: true, Abort: true,
	Finish: true, ToggleContinuous: true, ZoomIn: true, ZoomOut: true,
}

var ErrUnknownAction = errors.New("unknown action")

// Chord is a key with held modifiers. Key is lower case ("r", "escape").
type Chord struct {
	Mods engine.Modifiers
	Key  string
}

var keyAliases = map[string]string{
	"esc":    "escape",
	"del":    "delete",
	"return": "enter",
	"plus":   "+",
	"minus":  "-",
	"equal":  "=",
}

// ParseChord parses "ctrl+shift+z" style strings. Order and case do not matter.
func ParseChord(s string) (Chord, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Chord{}, errors.New("empty chord")
	}
	var key string
	if strings.HasSuffix(s, "++") || s == "+" {
		key = "+"
		s = strings.TrimSuffix(strings.TrimSuffix(s, "+"), "+")
	}
	var c Chord
	for part := range strings.SplitSeq(s, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if m, ok := engine.ParseModifier(part); ok {
			c.Mods |= m
			continue
		}
		if key != "" {
			return Chord{}, fmt.Errorf("chord %q names more than one key", s)
		}
		if a, ok := keyAliases[part]; ok {
			part = a
		}
		key = part
	}
	if key == "" {
		return Chord{}, fmt.Errorf("chord %q has no key", s)
	}
	c.Key = key
	return c, nil
}

// String returns the canonical form, modifiers first in a fixed order.
func (c Chord) String() string {
	var parts []string
	for _, m := range []struct {
		bit  engine.Modifiers
		name string
	}{{engine.ModCtrl, "ctrl"}, {engine.ModAlt, "alt"}, {engine.ModShift, "shift"}, {engine.ModMeta, "meta"}} {
		if c.Mods.Has(m.bit) {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(append(parts, c.Key), "+")
}

// Target is the part of the engine the dispatcher drives.
type Target interface {
	SetCreateMode(shape.Type)
	SetContinuousMode(bool)
	Continuous() bool
	Editable() bool
	Undo()
	RemoveActive()
	Abort()
	FinishShape()
	Zoom(direction float64)
}

var _ Target = (*engine.Engine)(nil)

// Map binds chords to actions. The zero value is empty; use Default.
type Map struct {
	bindings map[Chord]Action
	log      *slog.Logger
}

// Default returns the built-in bindings.
func Default() *Map {
	m := &Map{bindings: make(map[Chord]Action), log: applog.WithComponent("keymap")}
	for chord, a := range map[string]Action{
		"ctrl+r":    CreateRectangle,
		"ctrl+c":    CreateCircle,
		"ctrl+p":    CreatePolygon,
		"ctrl+z":    Undo,
		"delete":    DeleteActive,
		"backspace": DeleteActive,
		"escape":    Abort,
		"enter":     Finish,
		"ctrl+=":    ZoomIn,
		"ctrl+-":    ZoomOut,
	} {
		c, _ := ParseChord(chord)
		m.bindings[c] = a
	}
	return m
}

func (m *Map) Bind(chord string, a Action) error {
	c, err := ParseChord(chord)
	if err != nil {
		return err
	}
	if !actions[a] {
		return fmt.Errorf("%w: %s", ErrUnknownAction, a)
	}
	if m.bindings == nil {
		m.bindings = make(map[Chord]Action)
	}
	m.bindings[c] = a
	return nil
}

func (m *Map) Unbind(chord string) error {
	c, err := ParseChord(chord)
	if err != nil {
		return err
	}
	delete(m.bindings, c)
	return nil
}

// Apply merges user shortcuts (chord → action). An empty action or "none"
// removes the binding. All entries are tried; errors are joined.
func (m *Map) Apply(shortcuts map[string]string) error {
	chords := make([]string, 0, len(shortcuts))
	for k := range shortcuts {
		chords = append(chords, k)
	}
	sort.Strings(chords)
	var errs []error
	for _, chord := range chords {
		a := strings.ToLower(strings.TrimSpace(shortcuts[chord]))
		var err error
		if a == "" || a == "none" {
			err = m.Unbind(chord)
		} else {
			err = m.Bind(chord, Action(a))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("shortcut %q: %w", chord, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Map) Lookup(c Chord) (Action, bool) {
	a, ok := m.bindings[c]
	return a, ok
}

// Bindings returns canonical chord → action pairs.
func (m *Map) Bindings() map[string]Action {
	out := make(map[string]Action, len(m.bindings))
	for c, a := range m.bindings {
		out[c.String()] = a
	}
	return out
}

// Handle runs the action bound to c and reports whether one was bound.
func (m *Map) Handle(t Target, c Chord) bool {
	a, ok := m.Lookup(c)
	if !ok {
		return false
	}
	if m.log != nil {
		m.log.Debug("shortcut", slog.String("chord", c.String()), slog.String("action", string(a)))
	}
	if a.Edits() && !t.Editable() {
		return true
	}
	return Dispatch(t, a)
}

// Dispatch runs a on t. It reports false for unknown actions and for edits
// on a read-only target.
func Dispatch(t Target, a Action) bool {
	if a.Edits() && !t.Editable() {
		return false
	}
	switch a {
	case CreateRectangle:
		t.SetCreateMode(shape.Rectangle)
	case CreateCircle:
		t.SetCreateMode(shape.Circle)
	case CreatePolygon:
		t.SetCreateMode(shape.Polygon)
	case CreateLinestrip:
		t.SetCreateMode(shape.Linestrip)
	case CreateLine:
		t.SetCreateMode(shape.Line)
	case CreatePoint:
		t.SetCreateMode(shape.Point)
	case Undo:
		t.Undo()
	case DeleteActive:
		t.RemoveActive()
	case Abort:
		t.Abort()
	case Finish:
		t.FinishShape()
	case ToggleContinuous:
		t.SetContinuousMode(!t.Continuous())
	case ZoomIn:
		t.Zoom(-1)
	case ZoomOut:
		t.Zoom(1)
	default:
		return false
	}
	return true
}
