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
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"xlabel/internal/engine"
	"xlabel/internal/keymap"
	"xlabel/internal/shape"
)

type rawScript struct {
	Image   string `yaml:"image"`
	Size    []int  `yaml:"size"`
	Surface struct {
		Width  float64 `yaml:"width"`
		Height float64 `yaml:"height"`
	} `yaml:"surface"`
	Steps yaml.Node `yaml:"steps"`
}

// Parse reads a gesture script. Every malformed step is reported; the steps
// that parsed are still returned.
func Parse(input []byte) (Script, []Error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(input, &doc); err != nil {
		return Script{}, []Error{{Line: 1, Column: 1, Message: err.Error()}}
	}
	if len(doc.Content) == 0 {
		return Script{}, []Error{{Line: 1, Column: 1, Message: "empty script"}}
	}
	var raw rawScript
	if err := doc.Content[0].Decode(&raw); err != nil {
		return Script{}, []Error{{Line: doc.Content[0].Line, Column: doc.Content[0].Column, Message: err.Error()}}
	}
	s := Script{
		Image:   raw.Image,
		Surface: engine.Surface{Width: raw.Surface.Width, Height: raw.Surface.Height},
	}
	var errs []Error
	switch len(raw.Size) {
	case 0:
	case 2:
		s.Width, s.Height = raw.Size[0], raw.Size[1]
	default:
		errs = append(errs, Error{Line: 1, Column: 1, Message: "size must be [width, height]"})
	}
	if raw.Steps.Kind == 0 {
		return s, errs
	}
	if raw.Steps.Kind != yaml.SequenceNode {
		return s, append(errs, nodeErr(&raw.Steps, "steps must be a list"))
	}
	for _, item := range raw.Steps.Content {
		st, err := parseStep(item)
		if err != nil {
			errs = append(errs, *err)
			continue
		}
		s.Steps = append(s.Steps, st)
	}
	return s, errs
}

func nodeErr(n *yaml.Node, format string, args ...any) Error {
	return Error{Line: n.Line, Column: n.Column, Message: fmt.Sprintf(format, args...)}
}

func parseStep(n *yaml.Node) (Step, *Error) {
	st := Step{Line: n.Line}
	fail := func(format string, args ...any) (Step, *Error) {
		e := nodeErr(n, format, args...)
		return Step{}, &e
	}
	switch n.Kind {
	case yaml.ScalarNode:
		op := Op(strings.ToLower(n.Value))
		if !bareOps[op] {
			return fail("unknown step %q", n.Value)
		}
		st.Op = op
		return st, nil
	case yaml.MappingNode:
	default:
		return fail("step must be a name or a mapping")
	}

	attrs := map[string]*yaml.Node{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := strings.ToLower(n.Content[i].Value)
		if _, dup := attrs[key]; dup {
			return fail("duplicate key %q", key)
		}
		attrs[key] = n.Content[i+1]
	}
	for key, v := range attrs {
		op := Op(key)
		if !pointOps[op] && !bareOps[op] && op != OpKey && op != OpMode && op != OpLabel && op != OpContinuous && op != OpZoom {
			continue
		}
		if st.Op != "" {
			return fail("step names both %s and %s", st.Op, op)
		}
		st.Op = op
		if err := st.decodeValue(v); err != nil {
			return fail("%s: %v", op, err)
		}
	}
	if st.Op == "" {
		return fail("step has no action")
	}
	for key, v := range attrs {
		var err error
		switch key {
		case string(st.Op):
		case "button":
			st.Button, err = parseButton(v.Value)
		case "mods":
			st.Mods, err = parseMods(v.Value)
		case "dy":
			err = v.Decode(&st.Value)
		default:
			err = fmt.Errorf("unknown attribute %q", key)
		}
		if err != nil {
			return fail("%v", err)
		}
	}
	if st.Op == OpWheel && st.Value == 0 {
		return fail("wheel needs dy")
	}
	return st, nil
}

func (st *Step) decodeValue(v *yaml.Node) error {
	switch {
	case pointOps[st.Op]:
		var pt []float64
		if err := v.Decode(&pt); err != nil || len(pt) != 2 {
			return fmt.Errorf("expected [x, y]")
		}
		st.X, st.Y = pt[0], pt[1]
	case st.Op == OpKey:
		if _, err := keymap.ParseChord(v.Value); err != nil {
			return err
		}
		st.Text = v.Value
	case st.Op == OpMode:
		t, err := shape.ParseType(v.Value)
		if err != nil {
			return err
		}
		st.Text = string(t)
	case st.Op == OpLabel:
		st.Text = v.Value
	case st.Op == OpContinuous:
		return v.Decode(&st.On)
	case st.Op == OpZoom:
		if err := v.Decode(&st.Value); err != nil || st.Value == 0 {
			return fmt.Errorf("expected a non-zero direction")
		}
	}
	return nil
}

func parseButton(s string) (engine.Button, error) {
	switch strings.ToLower(s) {
	case "left", "":
		return engine.ButtonLeft, nil
	case "middle":
		return engine.ButtonMiddle, nil
	case "right":
		return engine.ButtonRight, nil
	}
	return 0, fmt.Errorf("unknown button %q", s)
}

func parseMods(s string) (engine.Modifiers, error) {
	var m engine.Modifiers
	for part := range strings.SplitSeq(s, "+") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		b, ok := engine.ParseModifier(part)
		if !ok {
			return 0, fmt.Errorf("unknown modifier %q", part)
		}
		m |= b
	}
	return m, nil
}
