/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package store provides the ordered, keyed collection of finalized shapes.
//
// A Store is not safe for concurrent use; the engine serializes all access.
package store

import (
	"slices"

	"xlabel/internal/shape"
)

// Store maps color keys to shapes and keeps insertion order.
// Every entry is stored under its own ColorKey.
type Store struct {
	items []*shape.Shape
	index map[string]int
}

func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Put inserts s at the end, or replaces the entry with the same key in place.
func (st *Store) Put(s *shape.Shape) {
	if i, ok := st.index[s.ColorKey]; ok {
		st.items[i] = s
		return
	}
	st.index[s.ColorKey] = len(st.items)
	st.items = append(st.items, s)
}

// InsertAt places s at position i (clamped to [0, Len]). An existing entry with
// the same key is removed first.
func (st *Store) InsertAt(i int, s *shape.Shape) {
	if _, ok := st.index[s.ColorKey]; ok {
		st.Delete(s.ColorKey)
	}
	i = max(0, min(i, len(st.items)))
	st.items = slices.Insert(st.items, i, s)
	st.reindex(i)
}

// Delete removes key and compacts the order. It reports whether key was present.
func (st *Store) Delete(key string) bool {
	i, ok := st.index[key]
	if !ok {
		return false
	}
	st.items = slices.Delete(st.items, i, i+1)
	delete(st.index, key)
	st.reindex(i)
	return true
}

func (st *Store) reindex(from int) {
	for j := from; j < len(st.items); j++ {
		st.index[st.items[j].ColorKey] = j
	}
}

func (st *Store) Get(key string) (*shape.Shape, bool) {
	i, ok := st.index[key]
	if !ok {
		return nil, false
	}
	return st.items[i], true
}

func (st *Store) Has(key string) bool {
	_, ok := st.index[key]
	return ok
}

// IndexOf returns the position of key, or -1.
func (st *Store) IndexOf(key string) int {
	if i, ok := st.index[key]; ok {
		return i
	}
	return -1
}

func (st *Store) At(i int) *shape.Shape {
	if i < 0 || i >= len(st.items) {
		return nil
	}
	return st.items[i]
}

func (st *Store) Len() int { return len(st.items) }

// All returns the shapes in order. The slice is a copy; the shapes are not.
func (st *Store) All() []*shape.Shape { return slices.Clone(st.items) }

// Keys returns the keys in order.
func (st *Store) Keys() []string {
	out := make([]string, len(st.items))
	for i, s := range st.items {
		out[i] = s.ColorKey
	}
	return out
}

// Each visits shapes in order until fn returns false.
func (st *Store) Each(fn func(i int, s *shape.Shape) bool) {
	for i, s := range st.items {
		if !fn(i, s) {
			return
		}
	}
}

func (st *Store) Clear() {
	st.items = nil
	st.index = make(map[string]int)
}
