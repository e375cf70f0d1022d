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
	"xlabel/internal/geom"
	"xlabel/internal/shape"
)

// View is the rendering context handed to the Renderer with every call.
type View struct {
	geom.Viewport
	PixmapWidth  float64
	PixmapHeight float64
	ImagePath    string
	Style        Style
}

// Renderer reflects engine state on a display surface. Shapes passed in are
// copies owned by the renderer. Calls are made without the engine lock held.
type Renderer interface {
	// Draw renders or updates one shape, honouring Active and Visible.
	Draw(s *shape.Shape, v View)
	// RemoveVisual drops any visual tied to key.
	RemoveVisual(key string)
	// ReRender redraws shapes. With all set, shapes is the full document and the
	// image or viewport changed; otherwise only the given shapes changed.
	ReRender(shapes []*shape.Shape, v View, all bool)
}

// ImageSource reports natural image dimensions. done may run synchronously
// (cached result) or later on another goroutine.
type ImageSource interface {
	Load(path string, done func(width, height int, err error))
}

type nopRenderer struct{}

func (nopRenderer) Draw(*shape.Shape, View)              {}
func (nopRenderer) RemoveVisual(string)                  {}
func (nopRenderer) ReRender([]*shape.Shape, View, bool) {}
