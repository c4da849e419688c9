/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"fmt"

	"goplaytranslator/internal/domain"
)

// Decision explains what Reconcile did.
type Decision struct {
	Adopted bool
	Reason  string
	// Progress of the adopted checkpoint, or of the fresh tree otherwise.
	Progress domain.Progress
}

// Reconcile chooses between a freshly parsed tree and a loaded checkpoint.
// The checkpoint is adopted only when its element-identity structure (act,
// scene and element counts, element ids, kinds and original text) matches
// the fresh parse exactly; otherwise the fresh tree wins and Reason names the
// first divergence. Callers log a non-adopted checkpoint as a warning.
func Reconcile(fresh, saved *domain.Play) (*domain.Play, Decision) {
	if saved == nil {
		return fresh, Decision{Reason: "no checkpoint", Progress: fresh.Progress()}
	}
	if reason := structureDiff(fresh, saved); reason != "" {
		return fresh, Decision{Reason: reason, Progress: fresh.Progress()}
	}
	// the source may differ in whitespace or front matter without changing structure
	saved.SourceDigest = fresh.SourceDigest
	if saved.Title == "" {
		saved.Title = fresh.Title
	}
	if saved.Author == "" {
		saved.Author = fresh.Author
	}
	pr := saved.Progress()
	return saved, Decision{
		Adopted:  true,
		Reason:   fmt.Sprintf("resuming: %d of %d translated", pr.Translated, pr.Translatable),
		Progress: pr,
	}
}

func structureDiff(fresh, saved *domain.Play) string {
	if len(fresh.Acts) != len(saved.Acts) {
		return fmt.Sprintf("act count differs: source has %d, checkpoint has %d", len(fresh.Acts), len(saved.Acts))
	}
	for ai := range fresh.Acts {
		fa, sa := fresh.Acts[ai], saved.Acts[ai]
		if len(fa.Scenes) != len(sa.Scenes) {
			return fmt.Sprintf("act %d: scene count differs: source has %d, checkpoint has %d", ai+1, len(fa.Scenes), len(sa.Scenes))
		}
		for si := range fa.Scenes {
			fs, ss := fa.Scenes[si], sa.Scenes[si]
			if len(fs.Elements) != len(ss.Elements) {
				return fmt.Sprintf("act %d scene %d: element count differs: source has %d, checkpoint has %d",
					ai+1, si+1, len(fs.Elements), len(ss.Elements))
			}
			for ei := range fs.Elements {
				fe, se := fs.Elements[ei], ss.Elements[ei]
				switch {
				case fe.ID != se.ID:
					return fmt.Sprintf("element %s: checkpoint id is %s", fe.ID, se.ID)
				case fe.Kind != se.Kind:
					return fmt.Sprintf("element %s: kind differs: source %s, checkpoint %s", fe.ID, fe.Kind, se.Kind)
				case fe.Text != se.Text:
					return fmt.Sprintf("element %s: original text differs (source line %d)", fe.ID, fe.Line)
				}
			}
		}
	}
	return ""
}
