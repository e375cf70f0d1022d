/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package script reads gesture scripts: YAML files that drive the editor
// engine without a display. They back "xlabel replay" and reproducible bug
// reports.
package script

import (
	"fmt"

	"xlabel/internal/engine"
)

// Script is a parsed gesture script.
//
//	image: street.jpg
//	size: [1280, 720]
//	surface: {width: 800, height: 600}
//	steps:
//	  - mode: rectangle
//	  - label: car
//	  - down: [20, 20]
//	  - move: [80, 60]
//	  - down: [80, 60]
//	  - key: ctrl+z
//	  - undo
type Script struct {
	// Image is the annotated image, relative to the script file.
	Image string
	// Width and Height stand in for the image size when the file is not read.
	Width, Height int
	Surface       engine.Surface
	Steps         []Step
}

// Op names a step.
type Op string

const (
	OpDown        Op = "down"
	OpUp          Op = "up"
	OpMove        Op = "move"
	OpDoubleClick Op = "dblclick"
	OpWheel       Op = "wheel"
	OpKey         Op = "key"
	OpMode        Op = "mode"
	OpLabel       Op = "label"
	OpContinuous  Op = "continuous"
	OpZoom        Op = "zoom"
	OpUndo        Op = "undo"
	OpFinish      Op = "finish"
	OpAbort       Op = "abort"
	OpDelete      Op = "delete"
)

// bare ops may be written as a plain string.
var bareOps = map[Op]bool{OpUndo: true, OpFinish: true, OpAbort: true, OpDelete: true}

// pointOps take an [x, y] client position.
var pointOps = map[Op]bool{OpDown: true, OpUp: true, OpMove: true, OpDoubleClick: true, OpWheel: true}

// Step is one scripted input. Only the fields its Op uses are set.
type Step struct {
	Op     Op
	X, Y   float64
	Button engine.Button
	Mods   engine.Modifiers
	// Text is the chord, create mode or label name.
	Text string
	// Value is the wheel delta or zoom direction.
	Value float64
	On    bool
	Line  int // 1-based line in the source
}

// Error represents a parse error with position context.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string { return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message) }
