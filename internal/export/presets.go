/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"strings"
)

// PresetName names a page geometry preset.
type PresetName string

const (
	PresetTrade  PresetName = "trade"  // 6 x 9 in
	PresetA5     PresetName = "a5"     // 148 x 210 mm
	PresetLetter PresetName = "letter" // 8.5 x 11 in
)

// PageSpec is a page size with mirrored margins. Units are points (pt).
// Inner is the gutter side: left on recto (odd) pages, right on verso pages.
type PageSpec struct {
	Name          PresetName
	Width, Height float64
	Inner, Outer  float64
	Top, Bottom   float64
}

var presets = map[PresetName]PageSpec{
	PresetTrade:  {Name: PresetTrade, Width: 432, Height: 648, Inner: 54, Outer: 36, Top: 54, Bottom: 54},
	PresetA5:     {Name: PresetA5, Width: 419.53, Height: 595.28, Inner: 51, Outer: 34, Top: 48, Bottom: 52},
	PresetLetter: {Name: PresetLetter, Width: 612, Height: 792, Inner: 72, Outer: 54, Top: 72, Bottom: 72},
}

// LookupPreset resolves a preset by name; empty selects PresetTrade.
func LookupPreset(name string) (PageSpec, error) {
	n := PresetName(strings.ToLower(strings.TrimSpace(name)))
	if n == "" {
		n = PresetTrade
	}
	spec, ok := presets[n]
	if !ok {
		return PageSpec{}, fmt.Errorf("unknown page size: %s", name)
	}
	return spec, nil
}

// left is the left margin of page n (1-based).
func (s PageSpec) left(n int) float64 {
	if n%2 == 1 {
		return s.Inner
	}
	return s.Outer
}

// ContentWidth is the text block width.
func (s PageSpec) ContentWidth() float64 { return s.Width - s.Inner - s.Outer }
