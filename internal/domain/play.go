/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNotTranslatable is returned when a heading or speaker cue is marked.
	ErrNotTranslatable = errors.New("element kind is not translatable")
	// ErrAlreadyTranslated guards the untranslated -> translated transition.
	ErrAlreadyTranslated = errors.New("element already translated")
)

// Translatable reports whether the element is sent to the translator.
func (e *Element) Translatable() bool { return e.Kind.Translatable() }

// Pending reports whether the element still needs a translation: untranslated,
// or failed on an earlier run.
func (e *Element) Pending() bool {
	return e.Translatable() && e.Status != StatusTranslated
}

// MarkTranslated records a successful translation. A translated element is
// never overwritten; ResetTranslations is the only way back.
func (e *Element) MarkTranslated(text string) error {
	if !e.Translatable() {
		return fmt.Errorf("%s %s: %w", e.Kind, e.ID, ErrNotTranslatable)
	}
	if e.Status == StatusTranslated {
		return fmt.Errorf("%s: %w", e.ID, ErrAlreadyTranslated)
	}
	e.Translation = text
	e.Status = StatusTranslated
	e.Failure = ""
	e.Attempts++
	return nil
}

// MarkFailed records a failed attempt with its reason.
func (e *Element) MarkFailed(reason string) error {
	if !e.Translatable() {
		return fmt.Errorf("%s %s: %w", e.Kind, e.ID, ErrNotTranslatable)
	}
	if e.Status == StatusTranslated {
		return fmt.Errorf("%s: %w", e.ID, ErrAlreadyTranslated)
	}
	e.Translation = ""
	e.Status = StatusFailed
	e.Failure = reason
	e.Attempts++
	return nil
}

// Walk visits every element in document order. Returning false stops the walk.
// The pointer refers into the tree, so callers may update translation state.
func (p *Play) Walk(fn func(act *Act, scene *Scene, el *Element) bool) {
	for ai := range p.Acts {
		act := &p.Acts[ai]
		for si := range act.Scenes {
			sc := &act.Scenes[si]
			for ei := range sc.Elements {
				if !fn(act, sc, &sc.Elements[ei]) {
					return
				}
			}
		}
	}
}

// Element returns the element with the given id, or nil.
func (p *Play) Element(id ElementID) *Element {
	if id.Act < 1 || id.Act > len(p.Acts) {
		return nil
	}
	act := &p.Acts[id.Act-1]
	if id.Scene < 1 || id.Scene > len(act.Scenes) {
		return nil
	}
	sc := &act.Scenes[id.Scene-1]
	if id.Index < 0 || id.Index >= len(sc.Elements) {
		return nil
	}
	return &sc.Elements[id.Index]
}

// Len returns the number of elements in the tree.
func (p *Play) Len() int {
	n := 0
	for _, a := range p.Acts {
		for _, s := range a.Scenes {
			n += len(s.Elements)
		}
	}
	return n
}

// Progress summarizes translation state across the tree.
type Progress struct {
	Elements     int `json:"elements"`
	Translatable int `json:"translatable"`
	Translated   int `json:"translated"`
	Failed       int `json:"failed"`
	Untranslated int `json:"untranslated"`
}

// Done reports whether every translatable element has a translation.
func (pr Progress) Done() bool { return pr.Translated == pr.Translatable }

// Progress counts elements per status.
func (p *Play) Progress() Progress {
	var pr Progress
	p.Walk(func(_ *Act, _ *Scene, el *Element) bool {
		pr.Elements++
		if !el.Translatable() {
			return true
		}
		pr.Translatable++
		switch el.Status {
		case StatusTranslated:
			pr.Translated++
		case StatusFailed:
			pr.Failed++
		case StatusUntranslated:
			pr.Untranslated++
		}
		return true
	})
	return pr
}

// ResetTranslations clears every translation, returning the tree to its
// freshly parsed state. Used for an explicit full re-run.
func (p *Play) ResetTranslations() {
	p.Walk(func(_ *Act, _ *Scene, el *Element) bool {
		el.Translation = ""
		el.Status = StatusUntranslated
		el.Failure = ""
		el.Attempts = 0
		return true
	})
}

// Fingerprint hashes the element-identity structure of the tree: every
// element's id, kind and original text in document order, plus the act and
// scene counts. Translation state does not participate.
func (p *Play) Fingerprint() string {
	h := sha256.New()
	write := func(parts ...string) {
		for _, s := range parts {
			h.Write([]byte(strconv.Itoa(len(s))))
			h.Write([]byte{':'})
			h.Write([]byte(s))
		}
	}
	write("acts", strconv.Itoa(len(p.Acts)))
	for _, a := range p.Acts {
		write("scenes", strconv.Itoa(len(a.Scenes)))
		for _, s := range a.Scenes {
			write("elements", strconv.Itoa(len(s.Elements)))
			for _, el := range s.Elements {
				write(el.ID.String(), el.Kind.String(), el.Text)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Validate checks the structural invariants the rest of the pipeline relies
// on: positional ids, known kinds and statuses, dialogue bound to a speaker
// cue earlier in the same scene, and no translation on non-translatable
// elements.
func (p *Play) Validate() error {
	for ai, a := range p.Acts {
		if a.Number != ai+1 {
			return fmt.Errorf("act %d: number %d out of sequence", ai+1, a.Number)
		}
		for si, s := range a.Scenes {
			if s.Number != si+1 {
				return fmt.Errorf("act %d scene %d: number %d out of sequence", ai+1, si+1, s.Number)
			}
			seenCue := false
			for ei, el := range s.Elements {
				want := ElementID{Act: ai + 1, Scene: si + 1, Index: ei}
				if el.ID != want {
					return fmt.Errorf("element %s: expected id %s", el.ID, want)
				}
				if !el.Kind.Valid() {
					return fmt.Errorf("element %s: unknown kind %d", el.ID, el.Kind)
				}
				if _, ok := statusNames[el.Status]; !ok {
					return fmt.Errorf("element %s: unknown status %d", el.ID, el.Status)
				}
				switch el.Kind {
				case KindSpeakerCue:
					seenCue = true
				case KindDialogue:
					if !seenCue {
						return fmt.Errorf("element %s: dialogue without a preceding speaker cue", el.ID)
					}
				case KindHeading, KindDirection:
				}
				if !el.Translatable() && el.Status != StatusUntranslated {
					return fmt.Errorf("element %s: %s cannot carry a translation", el.ID, el.Kind)
				}
			}
		}
	}
	return nil
}
