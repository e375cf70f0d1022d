/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package shape

import (
	"fmt"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette holds the first keys handed out by a KeyGen, in order.
var Palette = []string{
	"#ff008c", "#8e83ff", "#ca00d2", "#7b3cd5", "#2fb7ff",
	"#ff4747", "#ff8e3b", "#dbd821", "#1fd121", "#29f33f",
	"#00c993", "#4c7dff", "#3c49e6", "#ba62ff", "#ff4082",
	"#f64b21", "#ff7700", "#bfdb17", "#21e855", "#0fcbe0",
}

// maxRandomTries bounds the random phase before falling back to a suffixed key.
const maxRandomTries = 4096

// KeyGen allocates unique color keys of the form "#rrggbb". Palette entries are
// used first, then random well-saturated colors. It is safe for concurrent use.
type KeyGen struct {
	mu     sync.Mutex
	next   int
	seq    int
	random func() colorful.Color
}

func NewKeyGen() *KeyGen {
	return &KeyGen{random: colorful.FastHappyColor}
}

// Next returns a key for which exists reports false. exists may be nil.
func (g *KeyGen) Next(exists func(string) bool) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	taken := func(k string) bool { return exists != nil && exists(k) }
	for g.next < len(Palette) {
		k := Palette[g.next]
		g.next++
		if !taken(k) {
			return k
		}
	}
	for range maxRandomTries {
		k := g.random().Hex()
		if !taken(k) {
			return k
		}
	}
	for {
		g.seq++
		k := fmt.Sprintf("%s-%d", g.random().Hex(), g.seq)
		if !taken(k) {
			return k
		}
	}
}

// Reset restarts the palette sequence.
func (g *KeyGen) Reset() {
	g.mu.Lock()
	g.next = 0
	g.mu.Unlock()
}

// ParseColor parses "#rgb" or "#rrggbb". Malformed input yields white and false.
func ParseColor(hex string) (colorful.Color, bool) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{R: 1, G: 1, B: 1}, false
	}
	return c, true
}

// RGB returns the 8-bit channels of a color key.
func RGB(hex string) (r, g, b uint8) {
	c, _ := ParseColor(hex)
	return c.RGB255()
}
