/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	reAct    = regexp.MustCompile(`^(?:ACT|Act)\s+([IVXLCDM]+|\d+)\b\.?\s*(.*)$`)
	reScene  = regexp.MustCompile(`^(?:SCENE|Scene)\s+([IVXLCDM]+|\d+)\b\.?\s*(.*)$`)
	reNamed  = regexp.MustCompile(`^(?:THE\s+)?(?:PROLOGUE|EPILOGUE|INDUCTION|CHORUS TO ACT \S+)\.?$`)
	reRoman  = regexp.MustCompile(`^[IVXLCDM]+$`)
	reKeyDir = regexp.MustCompile(`^(?:Enter|Exit|Exeunt|Re-enter|Re-Enter|Manet|Flourish|Alarum|Alarums|Sennet)\b`)
	// all-caps name: up to four words of upper-case letters, apostrophes or hyphens
	reCapsName = regexp.MustCompile(`^(\p{Lu}[\p{Lu}'’\-]+(?:\s+\p{Lu}[\p{Lu}'’\-]*){0,3})(\.?)$`)
	// title-case candidate: up to four letter words followed by a period
	reTitleName = regexp.MustCompile(`^(\p{Lu}[\p{L}'’\-]*(?:\s+\p{Lu}[\p{L}'’\-]*){0,3})\.$`)
)

const maxNameRunes = 40

var titleCaser = cases.Title(language.English)

// Gazetteer is the set of speaker names seen as unambiguous cues in a
// document. Names are stored upper-cased with single spaces.
type Gazetteer map[string]struct{}

func (g Gazetteer) Add(name string) { g[normalizeName(name)] = struct{}{} }

func (g Gazetteer) Has(name string) bool {
	_, ok := g[normalizeName(name)]
	return ok
}

// LearnSpeakers builds the gazetteer from a first pass over the document:
// every line that is an all-caps name terminated by a period counts.
func LearnSpeakers(lines []string) Gazetteer {
	g := Gazetteer{}
	for _, raw := range lines {
		line := normalizeLine(raw)
		if name, ok := strongCue(line); ok {
			g.Add(name)
		}
	}
	return g
}

// Classifier assigns a LineKind to each line using only the line itself, the
// kind of the preceding line and the document's speaker gazetteer.
type Classifier struct {
	speakers Gazetteer
}

func NewClassifier(speakers Gazetteer) *Classifier {
	if speakers == nil {
		speakers = Gazetteer{}
	}
	return &Classifier{speakers: speakers}
}

// Classify categorizes one raw source line. prev is the kind of the previous
// line; use LineBlank at the start of the document.
func (c *Classifier) Classify(raw string, prev LineKind) Classified {
	line := normalizeLine(raw)
	if line == "" {
		return Classified{Kind: LineBlank}
	}
	if m := reAct.FindStringSubmatch(line); m != nil {
		return Classified{Kind: LineActMarker, Text: line, Label: m[1], Rest: strings.TrimSpace(m[2])}
	}
	if m := reScene.FindStringSubmatch(line); m != nil {
		return Classified{Kind: LineSceneMarker, Text: line, Label: m[1], Rest: strings.TrimSpace(m[2])}
	}
	if reNamed.MatchString(line) {
		return Classified{Kind: LineHeading, Text: line}
	}
	if isWrappedDirection(line) {
		return Classified{Kind: LineDirection, Text: line}
	}
	if name, ok := strongCue(line); ok {
		return Classified{Kind: LineSpeakerCue, Text: line, Speaker: name}
	}
	if reKeyDir.MatchString(line) {
		return Classified{Kind: LineDirection, Text: line}
	}

	// Ambiguous forms: a bare all-caps name, or a title-case name with a
	// period. They are cues only for known speakers at a block start.
	// Inside a running block any of them is just more text.
	if !prev.boundary() {
		return Classified{Kind: LineText, Text: line}
	}
	if m := reCapsName.FindStringSubmatch(line); m != nil && !reRoman.MatchString(m[1]) && utf8.RuneCountInString(m[1]) <= maxNameRunes {
		if c.speakers.Has(m[1]) {
			return Classified{Kind: LineSpeakerCue, Text: line, Speaker: normalizeName(m[1])}
		}
		return Classified{Kind: LineHeading, Text: line}
	}
	if m := reTitleName.FindStringSubmatch(line); m != nil && isTitleCase(m[1]) && c.speakers.Has(m[1]) {
		return Classified{Kind: LineSpeakerCue, Text: line, Speaker: normalizeName(m[1])}
	}
	if isAllCaps(line) && !strings.ContainsAny(line, "!?") {
		return Classified{Kind: LineHeading, Text: line}
	}
	return Classified{Kind: LineText, Text: line}
}

// strongCue matches NAME. where NAME is an all-caps name that is not a bare
// roman numeral.
func strongCue(line string) (string, bool) {
	m := reCapsName.FindStringSubmatch(line)
	if m == nil || m[2] != "." {
		return "", false
	}
	if reRoman.MatchString(m[1]) || utf8.RuneCountInString(m[1]) > maxNameRunes {
		return "", false
	}
	if reAct.MatchString(line) || reScene.MatchString(line) || reNamed.MatchString(line) {
		return "", false
	}
	return normalizeName(m[1]), true
}

func isWrappedDirection(line string) bool {
	switch line[0] {
	case '[', '(':
		return true
	case '_':
		return len(line) > 1
	}
	return false
}

func isTitleCase(name string) bool {
	return titleCaser.String(strings.ToLower(name)) == name
}

// isAllCaps reports whether the line has at least two letters and none of
// them are lower case.
func isAllCaps(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 2
}

func normalizeLine(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}

func normalizeName(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}
