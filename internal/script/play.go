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
	"errors"
	"fmt"

	"xlabel/internal/engine"
	"xlabel/internal/keymap"
	"xlabel/internal/shape"
)

// HitFunc resolves a client position to the shape under it, as a renderer
// would. Nil means nothing is ever hit.
type HitFunc func(x, y float64) engine.HitTest

// Play feeds steps to e in order. Key steps go through keys; an unbound chord
// is reported but does not stop the replay.
func Play(e *engine.Engine, keys *keymap.Map, hit HitFunc, steps []Step) error {
	if hit == nil {
		hit = func(float64, float64) engine.HitTest { return engine.HitTest{} }
	}
	var errs []error
	for _, st := range steps {
		ev := engine.PointerEvent{ClientX: st.X, ClientY: st.Y, Button: st.Button, Mods: st.Mods}
		switch st.Op {
		case OpDown:
			ev.Hit = hit(st.X, st.Y)
			e.PointerDown(ev)
		case OpUp:
			ev.Hit = hit(st.X, st.Y)
			e.PointerUp(ev)
		case OpMove:
			ev.Hit = hit(st.X, st.Y)
			e.PointerMove(ev)
		case OpDoubleClick:
			ev.Hit = hit(st.X, st.Y)
			e.DoubleClick(ev)
		case OpWheel:
			e.Wheel(engine.WheelEvent{ClientX: st.X, ClientY: st.Y, DeltaY: st.Value, Mods: st.Mods})
		case OpKey:
			c, err := keymap.ParseChord(st.Text)
			if err == nil && !keys.Handle(e, c) {
				err = fmt.Errorf("%s is not bound", c)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("line %d: %w", st.Line, err))
			}
		case OpMode:
			e.SetCreateMode(shape.Type(st.Text))
		case OpLabel:
			e.SetLabelInfo(shape.LabelInfo{LabelName: st.Text})
		case OpContinuous:
			e.SetContinuousMode(st.On)
		case OpZoom:
			e.Zoom(st.Value)
		case OpUndo:
			keymap.Dispatch(e, keymap.Undo)
		case OpFinish:
			keymap.Dispatch(e, keymap.Finish)
		case OpAbort:
			e.Abort()
		case OpDelete:
			keymap.Dispatch(e, keymap.DeleteActive)
		default:
			errs = append(errs, fmt.Errorf("line %d: unknown step %q", st.Line, st.Op))
		}
	}
	return errors.Join(errs...)
}
