/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import "testing"

func TestLookupPreset(t *testing.T) {
	spec, err := LookupPreset("")
	if err != nil || spec.Name != PresetTrade || spec.Width != 432 || spec.Height != 648 {
		t.Fatalf("default preset = %+v, %v", spec, err)
	}
	if spec, err := LookupPreset(" Letter "); err != nil || spec.Name != PresetLetter {
		t.Fatalf("letter preset = %+v, %v", spec, err)
	}
	if _, err := LookupPreset("tabloid"); err == nil {
		t.Fatalf("expected error for unknown preset")
	}
}

func TestPresetMirroredMargins(t *testing.T) {
	spec, _ := LookupPreset("trade")
	if spec.left(1) != spec.Inner || spec.left(2) != spec.Outer || spec.left(3) != spec.Inner {
		t.Fatalf("gutter must alternate: %v %v %v", spec.left(1), spec.left(2), spec.left(3))
	}
	if w := spec.ContentWidth(); w != 432-54-36 {
		t.Fatalf("content width = %v", w)
	}
}
