/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"sync"
	"time"

	"xlabel/internal/shape"
)

// Op identifies the kind of change an Entry records.
type Op int

const (
	OpAdd Op = iota
	OpRemove
	OpEdit
	OpSelect
	OpUnselect
	OpSetSelect
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "ADD"
	case OpRemove:
		return "REMOVE"
	case OpEdit:
		return "EDIT"
	case OpSelect:
		return "SELECT"
	case OpUnselect:
		return "UNSELECT"
	case OpSetSelect:
		return "SETSELECT"
	}
	return "UNKNOWN"
}

// Structural reports ops that change geometry or membership rather than selection.
func (o Op) Structural() bool { return o == OpAdd || o == OpRemove || o == OpEdit }

// Entry is one undoable step. Shapes are value copies taken before the
// mutation (EDIT and the select family) or the affected set (ADD, REMOVE).
// Indexes holds store positions for REMOVE so undo can restore order.
type Entry struct {
	Op      Op
	Shapes  []*shape.Shape
	Indexes []int
	TS      time.Time
}

func (e Entry) clone() Entry {
	out := e
	out.Shapes = cloneShapes(e.Shapes)
	out.Indexes = append([]int(nil), e.Indexes...)
	return out
}

func cloneShapes(in []*shape.Shape) []*shape.Shape {
	out := make([]*shape.Shape, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// Config controls depth caps.
type Config struct {
	// MaxEntries limits the number of retained entries; the oldest are dropped first.
	MaxEntries int
}

// Log is an append-only stack of undo entries. It is safe for concurrent use.
type Log struct {
	cfg      Config
	mu       sync.Mutex
	entries  []Entry
	disabled bool
	dropped  int
}

func NewLog(cfg Config) *Log {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	return &Log{cfg: cfg}
}

// Push records op for shapes. Shapes are cloned, so callers may keep mutating
// their own values. Nothing is recorded while the log is disabled or when
// shapes is empty; the return value reports whether an entry was added.
func (l *Log) Push(op Op, shapes []*shape.Shape, indexes []int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disabled || len(shapes) == 0 {
		return false
	}
	l.entries = append(l.entries, Entry{
		Op:      op,
		Shapes:  cloneShapes(shapes),
		Indexes: append([]int(nil), indexes...),
		TS:      time.Now(),
	})
	l.enforceCapsLocked()
	return true
}

// Pop removes and returns the most recent entry.
func (l *Log) Pop() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.entries)
	if n == 0 {
		return Entry{}, false
	}
	e := l.entries[n-1]
	l.entries[n-1] = Entry{}
	l.entries = l.entries[:n-1]
	return e, true
}

// Entries returns copies of the recorded entries, oldest first. When ops is
// non-empty only entries with one of those ops are returned.
func (l *Log) Entries(ops ...Op) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if len(ops) > 0 && !containsOp(ops, e.Op) {
			continue
		}
		out = append(out, e.clone())
	}
	return out
}

func containsOp(ops []Op, o Op) bool {
	for _, x := range ops {
		if x == o {
			return true
		}
	}
	return false
}

// SetEnabled toggles recording. Undo replay runs with recording disabled.
func (l *Log) SetEnabled(on bool) {
	l.mu.Lock()
	l.disabled = !on
	l.mu.Unlock()
}

func (l *Log) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.disabled
}

// Clear drops every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.dropped = 0
	l.mu.Unlock()
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stats returns current sizes for diagnostics.
func (l *Log) Stats() (entries int, shapes int, dropped int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		shapes += len(e.Shapes)
	}
	return len(l.entries), shapes, l.dropped
}

func (l *Log) enforceCapsLocked() {
	if extra := len(l.entries) - l.cfg.MaxEntries; extra > 0 {
		l.entries = append([]Entry(nil), l.entries[extra:]...)
		l.dropped += extra
	}
}
