//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// These tests exercise the Fyne canvas widget. They are gated behind the
// "fyne" build tag so headless CI does not need Fyne or a display:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"

	"xlabel/internal/engine"
)

func press(c *AnnotationCanvas, x, y float32) {
	ev := &desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}, Button: desktop.MouseButtonPrimary}
	c.MouseDown(ev)
	c.MouseUp(ev)
}

func TestAnnotationCanvasDrawsRectangle(t *testing.T) {
	test.NewTempApp(t)
	dir := writeImages(t, "w.png")
	s := newTestSession(t, nil, 200, 150)
	openAndWait(t, s, filepath.Join(dir, "w.png"))

	c := NewAnnotationCanvas(s)
	test.WidgetRenderer(c).Layout(fyne.NewSize(200, 150))
	press(c, 20, 20)
	c.MouseMoved(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(80, 60)}})
	press(c, 80, 60)
	if s.Engine.Len() != 1 {
		t.Fatalf("expected one rectangle, got %d", s.Engine.Len())
	}
	if b := s.Frame().Bounds(); b.Dx() != 200 || b.Dy() != 150 {
		t.Fatalf("frame follows the widget size, got %v", b)
	}
}

func TestAnnotationCanvasLayoutResizesSurface(t *testing.T) {
	test.NewTempApp(t)
	s := newTestSession(t, nil, 200, 150)
	c := NewAnnotationCanvas(s)
	test.WidgetRenderer(c).Layout(fyne.NewSize(320, 240))
	if b := s.Frame().Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Fatalf("frame = %v", b)
	}
	if c.MinSize() != fyne.NewSize(640, 480) {
		t.Fatalf("unexpected MinSize: %v", c.MinSize())
	}
}

func TestModifierAndKeyMapping(t *testing.T) {
	m := engine.ModCtrl | engine.ModShift
	if got := engineMods(fyneMods(m)); got != m {
		t.Fatalf("modifiers = %v, want %v", got, m)
	}
	if fyneKey("z") != fyne.KeyZ || fyneKey("delete") != fyne.KeyDelete || fyneKey("=") != fyne.KeyEqual {
		t.Fatalf("unexpected key mapping")
	}
	if engineButton(desktop.MouseButtonSecondary) != engine.ButtonRight {
		t.Fatalf("secondary button should map to right")
	}
}
