/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package script

import (
	"strings"
	"testing"

	"xlabel/internal/engine"
	"xlabel/internal/imagesource"
	"xlabel/internal/keymap"
	applog "xlabel/internal/log"
)

const sample = `image: street.jpg
size: [200, 200]
surface: {width: 200, height: 200}
steps:
  - label: car
  - down: [20, 20]
  - up: [20, 20]
  - move: [80, 60]
  - down: [80, 60]
  - up: [80, 60]
  - mode: polygon
  - down: [100, 100]
    mods: shift
  - wheel: [10, 10]
    dy: -100
    mods: ctrl
  - down: [5, 5]
    button: right
  - key: ctrl+z
  - finish
`

func TestParseSample(t *testing.T) {
	s, errs := Parse([]byte(sample))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if s.Image != "street.jpg" || s.Width != 200 || s.Height != 200 || s.Surface.Width != 200 {
		t.Fatalf("header = %+v", s)
	}
	if len(s.Steps) != 12 {
		t.Fatalf("expected 12 steps, got %d", len(s.Steps))
	}
	if st := s.Steps[1]; st.Op != OpDown || st.X != 20 || st.Y != 20 || st.Line != 6 {
		t.Fatalf("down step = %+v", st)
	}
	if st := s.Steps[7]; st.Mods != engine.ModShift {
		t.Fatalf("mods not parsed: %+v", st)
	}
	if st := s.Steps[8]; st.Op != OpWheel || st.Value != -100 || st.Mods != engine.ModCtrl {
		t.Fatalf("wheel step = %+v", st)
	}
	if st := s.Steps[9]; st.Button != engine.ButtonRight {
		t.Fatalf("button not parsed: %+v", st)
	}
	if st := s.Steps[11]; st.Op != OpFinish {
		t.Fatalf("bare step = %+v", st)
	}
}

func TestParseReportsBadStepsWithPosition(t *testing.T) {
	input := `steps:
  - down: [1]
  - jump
  - mode: hexagon
  - key: ctrl+z
    colour: red
  - {down: [1, 1], up: [1, 1]}
  - wheel: [1, 1]
  - undo
`
	s, errs := Parse([]byte(input))
	if len(errs) != 6 {
		t.Fatalf("expected 6 errors, got %d: %+v", len(errs), errs)
	}
	if errs[0].Line != 2 || !strings.Contains(errs[0].Message, "[x, y]") {
		t.Fatalf("first error = %+v", errs[0])
	}
	if errs[1].Line != 3 || !strings.Contains(errs[1].Error(), "unknown step") {
		t.Fatalf("second error = %+v", errs[1])
	}
	if len(s.Steps) != 1 || s.Steps[0].Op != OpUndo {
		t.Fatalf("valid steps should survive: %+v", s.Steps)
	}
}

func TestParseRejectsBrokenYAML(t *testing.T) {
	if _, errs := Parse([]byte("steps: [")); len(errs) != 1 {
		t.Fatalf("expected one syntax error, got %+v", errs)
	}
	if _, errs := Parse(nil); len(errs) != 1 {
		t.Fatalf("empty input must be reported")
	}
	if _, errs := Parse([]byte("steps: {a: 1}")); len(errs) != 1 {
		t.Fatalf("non-list steps must be reported")
	}
}

func TestPlayDrivesEngine(t *testing.T) {
	s, errs := Parse([]byte(sample))
	if len(errs) != 0 {
		t.Fatal(errs)
	}
	opts := engine.DefaultOptions()
	opts.Logger = applog.Discard()
	e := engine.New(opts, nil, imagesource.Fixed{Width: s.Width, Height: s.Height})
	e.SetSurface(s.Surface)
	e.SetImg(s.Image, nil)

	// ctrl+z near the end undoes the rectangle; check it first
	if err := Play(e, keymap.Default(), nil, s.Steps[:6]); err != nil {
		t.Fatalf("Play: %v", err)
	}
	d := e.GetData()
	if len(d.Shapes) != 1 || d.Shapes[0].Label.LabelName != "car" {
		t.Fatalf("expected one labelled rectangle, got %+v", d.Shapes)
	}
	if err := Play(e, keymap.Default(), nil, s.Steps[6:]); err != nil {
		t.Fatalf("Play rest: %v", err)
	}
	if e.Len() != 0 || e.CreateMode() != "polygon" || e.Scale() <= 1 {
		t.Fatalf("len=%d mode=%s scale=%v", e.Len(), e.CreateMode(), e.Scale())
	}
}

func TestPlayReportsUnboundKeys(t *testing.T) {
	e := engine.New(engine.DefaultOptions(), nil, imagesource.Fixed{Width: 10, Height: 10})
	err := Play(e, keymap.Default(), nil, []Step{{Op: OpKey, Text: "ctrl+q", Line: 4}})
	if err == nil || !strings.Contains(err.Error(), "line 4") {
		t.Fatalf("expected unbound chord error, got %v", err)
	}
}
