/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the document tree produced by the script parser and
// persisted by the checkpoint store: a play made of acts, scenes and the
// ordered elements inside each scene.

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Play is the root of the document tree.
type Play struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	SourceDigest string `json:"sourceDigest,omitempty"` // sha256 of the source text
	Acts         []Act  `json:"acts"`
}

// Act groups scenes. Number is 1-based and positional; Label is the numeral
// as written ("I", "2"). Implicit acts are created for material that appears
// before the first act marker (a prologue, for example).
type Act struct {
	Number   int     `json:"number"`
	Label    string  `json:"label,omitempty"`
	Heading  string  `json:"heading,omitempty"` // the marker line as written
	Implicit bool    `json:"implicit,omitempty"`
	Scenes   []Scene `json:"scenes"`
}

// Scene owns an ordered run of elements.
type Scene struct {
	Number   int       `json:"number"`
	Label    string    `json:"label,omitempty"`
	Heading  string    `json:"heading,omitempty"`
	Setting  string    `json:"setting,omitempty"`
	Implicit bool      `json:"implicit,omitempty"`
	Elements []Element `json:"elements"`
}

// Element is the atomic unit of translation and alignment.
// Text is immutable once parsed; only Translation, Status, Failure and
// Attempts change afterwards.
type Element struct {
	ID          ElementID `json:"id"`
	Kind        Kind      `json:"kind"`
	Text        string    `json:"text"`
	Speaker     string    `json:"speaker,omitempty"` // dialogue only: nearest preceding cue
	Line        int       `json:"line"`              // 1-based source line of the first line
	Translation string    `json:"translation,omitempty"`
	Status      Status    `json:"status"`
	Failure     string    `json:"failure,omitempty"`
	Attempts    int       `json:"attempts,omitempty"`
}

// Kind is the closed set of element kinds.
type Kind uint8

const (
	KindHeading Kind = iota + 1
	KindSpeakerCue
	KindDialogue
	KindDirection
)

var kindNames = map[Kind]string{
	KindHeading:    "heading",
	KindSpeakerCue: "speaker",
	KindDialogue:   "dialogue",
	KindDirection:  "direction",
}

// Kinds lists every valid kind in declaration order.
func Kinds() []Kind { return []Kind{KindHeading, KindSpeakerCue, KindDialogue, KindDirection} }

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Translatable reports whether elements of this kind are sent to the
// translator. Unknown kinds are never translated.
func (k Kind) Translatable() bool {
	switch k {
	case KindDialogue, KindDirection:
		return true
	default:
		return false
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	s, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("domain: cannot marshal unknown element kind %d", k)
	}
	return json.Marshal(s)
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for kk, name := range kindNames {
		if name == s {
			*k = kk
			return nil
		}
	}
	return fmt.Errorf("domain: unknown element kind %q", s)
}

// Status tracks an element's translation lifecycle.
type Status uint8

const (
	StatusUntranslated Status = iota
	StatusTranslated
	StatusFailed
)

var statusNames = map[Status]string{
	StatusUntranslated: "untranslated",
	StatusTranslated:   "translated",
	StatusFailed:       "failed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

func (s Status) MarshalJSON() ([]byte, error) {
	n, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("domain: cannot marshal unknown status %d", s)
	}
	return json.Marshal(n)
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var n string
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	for st, name := range statusNames {
		if name == n {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("domain: unknown status %q", n)
}

// ElementID is the positional identity of an element: 1-based act and scene
// numbers and the 0-based index within the scene. Content never participates,
// so re-parsing unchanged input yields identical ids.
type ElementID struct {
	Act   int
	Scene int
	Index int
}

func (id ElementID) String() string {
	return strconv.Itoa(id.Act) + "." + strconv.Itoa(id.Scene) + "." + strconv.Itoa(id.Index)
}

// ParseElementID parses the "act.scene.index" form produced by String.
func ParseElementID(s string) (ElementID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return ElementID{}, fmt.Errorf("domain: malformed element id %q", s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return ElementID{}, fmt.Errorf("domain: malformed element id %q", s)
		}
		n[i] = v
	}
	return ElementID{Act: n[0], Scene: n[1], Index: n[2]}, nil
}

func (id ElementID) MarshalJSON() ([]byte, error) { return json.Marshal(id.String()) }

func (id *ElementID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseElementID(s)
	if err != nil {
		return err
	}
	*id = v
	return nil
}
