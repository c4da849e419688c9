/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "fmt"

// LineKind is the lexical category assigned to a single source line.
type LineKind int

const (
	LineBlank LineKind = iota
	LineActMarker
	LineSceneMarker
	LineHeading
	LineSpeakerCue
	LineDirection
	LineText
)

func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LineActMarker:
		return "act"
	case LineSceneMarker:
		return "scene"
	case LineHeading:
		return "heading"
	case LineSpeakerCue:
		return "speaker"
	case LineDirection:
		return "direction"
	case LineText:
		return "text"
	default:
		return fmt.Sprintf("LineKind(%d)", int(k))
	}
}

// boundary reports whether a line of this kind ends a block, so that a short
// name-like line after it may be read as a speaker cue.
func (k LineKind) boundary() bool {
	switch k {
	case LineBlank, LineActMarker, LineSceneMarker, LineHeading, LineDirection:
		return true
	case LineSpeakerCue, LineText:
		return false
	default:
		return false
	}
}

// Classified is one line after classification.
// For markers, Label holds the numeral and Rest the trailing title or setting.
// For cues, Speaker holds the normalized name.
type Classified struct {
	Kind    LineKind
	Text    string
	Label   string
	Rest    string
	Speaker string
}

// ParseError reports a structural problem at a source position. Parsing stops
// at the first one and no partial tree is returned.
type ParseError struct {
	Line    int
	Column  int
	Message string
	Text    string // offending line, trimmed
}

func (e *ParseError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Message, e.Text)
}
