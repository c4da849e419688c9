/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script turns the plain text of a stage play into the document tree
// in package domain. Parsing is two-pass: the first pass learns the speaker
// gazetteer, the second classifies each line and feeds a small state machine.
//
// Recognized layout:
//   - "ACT I" / "SCENE II. A street." marker lines open acts and scenes.
//   - All-caps headings ("THE PROLOGUE") open an implicit scene when none is open.
//   - "NAME." on its own line is a speaker cue; the lines that follow up to the
//     next blank line are one dialogue element.
//   - Bracketed, parenthesized or underscored lines and lines starting with
//     Enter/Exit/Exeunt are stage directions.
//
// Text and headings before the first act, scene, prologue or stage direction
// are front matter: the first heading becomes the title and a "by NAME" line
// the author. Everything else there is skipped.
package script

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"goplaytranslator/internal/domain"
)

type state int

const (
	stateOutsideAct state = iota
	stateInAct
	stateInScene
	stateInSpeech
	stateInDirection
)

var reByLine = regexp.MustCompile(`(?i)^by\s+(.+)$`)

const maxLineBytes = 1 << 20

// ParseFile reads and parses the play at path. The returned tree records the
// SHA-256 of the source bytes.
func ParseFile(path string) (*domain.Play, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses an in-memory play. A leading UTF-8 BOM is ignored.
func ParseBytes(data []byte) (*domain.Play, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	p, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	p.SourceDigest = hex.EncodeToString(sum[:])
	return p, nil
}

// Parse reads a play from r. It fails on the first structural error with a
// *ParseError carrying the line number; no partial tree is returned.
func Parse(r io.Reader) (*domain.Play, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	skip := skippedLines(lines)
	body := make([]string, 0, len(lines))
	for i, l := range lines {
		if !skip[i] {
			body = append(body, l)
		}
	}
	ps := &parser{
		play:     &domain.Play{Acts: []domain.Act{}},
		cls:      NewClassifier(LearnSpeakers(body)),
		runIndex: -1,
	}
	prev := LineBlank
	for i, raw := range lines {
		c := Classified{Kind: LineBlank}
		if !skip[i] {
			c = ps.cls.Classify(raw, prev)
		}
		if err := ps.feed(i+1, c); err != nil {
			return nil, err
		}
		prev = c.Kind
	}
	if err := ps.play.Validate(); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return ps.play, nil
}

func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Line: len(lines) + 1, Column: 1, Message: err.Error()}
	}
	return lines, nil
}

type parser struct {
	play  *domain.Play
	cls   *Classifier
	state state

	speaker  string // nearest preceding cue in the current scene
	runIndex int    // index of the open dialogue/direction element, -1 if none
	dirOpen  bool   // the open direction accepts continuation lines
	depth    int    // unbalanced '[' / '(' inside the open direction
}

func (ps *parser) act() *domain.Act {
	if len(ps.play.Acts) == 0 {
		return nil
	}
	return &ps.play.Acts[len(ps.play.Acts)-1]
}

func (ps *parser) scene() *domain.Scene {
	a := ps.act()
	if a == nil || len(a.Scenes) == 0 || ps.state == stateOutsideAct || ps.state == stateInAct {
		return nil
	}
	return &a.Scenes[len(a.Scenes)-1]
}

func (ps *parser) closeRun() {
	ps.runIndex = -1
	ps.dirOpen = false
	ps.depth = 0
}

func (ps *parser) openAct(label, heading string, implicit bool) {
	ps.closeRun()
	ps.play.Acts = append(ps.play.Acts, domain.Act{
		Number:   len(ps.play.Acts) + 1,
		Label:    label,
		Heading:  heading,
		Implicit: implicit,
		Scenes:   []domain.Scene{},
	})
	ps.speaker = ""
	ps.state = stateInAct
}

func (ps *parser) openScene(label, heading, setting string, implicit bool) {
	ps.closeRun()
	if ps.act() == nil {
		ps.openAct("", "", true)
	}
	a := ps.act()
	a.Scenes = append(a.Scenes, domain.Scene{
		Number:   len(a.Scenes) + 1,
		Label:    label,
		Heading:  heading,
		Setting:  setting,
		Implicit: implicit,
		Elements: []domain.Element{},
	})
	ps.speaker = ""
	ps.state = stateInScene
}

// ensureScene opens an implicit scene for material that needs one.
func (ps *parser) ensureScene() *domain.Scene {
	if sc := ps.scene(); sc != nil {
		return sc
	}
	ps.openScene("", "", "", true)
	return ps.scene()
}

func (ps *parser) appendElement(kind domain.Kind, text string, line int) int {
	a := ps.act()
	sc := ps.scene()
	idx := len(sc.Elements)
	el := domain.Element{
		ID:     domain.ElementID{Act: a.Number, Scene: sc.Number, Index: idx},
		Kind:   kind,
		Text:   text,
		Line:   line,
		Status: domain.StatusUntranslated,
	}
	if kind == domain.KindDialogue {
		el.Speaker = ps.speaker
	}
	sc.Elements = append(sc.Elements, el)
	return idx
}

func (ps *parser) extendRun(text string) {
	sc := ps.scene()
	el := &sc.Elements[ps.runIndex]
	el.Text += "\n" + text
}

func (ps *parser) feed(lineNo int, c Classified) error {
	switch c.Kind {
	case LineBlank:
		if ps.state == stateInDirection && ps.depth > 0 {
			return nil
		}
		ps.closeRun()
		if ps.state == stateInSpeech || ps.state == stateInDirection {
			ps.state = stateInScene
		}
		return nil

	case LineActMarker:
		ps.openAct(c.Label, c.Text, false)
		return nil

	case LineSceneMarker:
		ps.openScene(c.Label, c.Text, c.Rest, false)
		return nil

	case LineHeading:
		if ps.act() == nil && !reNamed.MatchString(c.Text) {
			if ps.play.Title == "" {
				ps.play.Title = c.Text
			}
			return nil
		}
		if ps.scene() == nil {
			ps.openScene("", c.Text, "", true)
		} else {
			ps.closeRun()
			ps.speaker = ""
			ps.state = stateInScene
		}
		ps.appendElement(domain.KindHeading, c.Text, lineNo)
		return nil

	case LineSpeakerCue:
		ps.closeRun()
		ps.ensureScene()
		ps.appendElement(domain.KindSpeakerCue, cueName(c.Text), lineNo)
		ps.speaker = c.Speaker
		ps.state = stateInSpeech
		return nil

	case LineDirection:
		if ps.state == stateInDirection && ps.runIndex >= 0 {
			ps.extendRun(c.Text)
			ps.trackDirection(c.Text)
			return nil
		}
		ps.closeRun()
		ps.ensureScene()
		ps.runIndex = ps.appendElement(domain.KindDirection, c.Text, lineNo)
		ps.state = stateInDirection
		ps.trackDirection(c.Text)
		return nil

	case LineText:
		return ps.feedText(lineNo, c)

	default:
		return &ParseError{Line: lineNo, Column: 1, Message: "unclassified line", Text: c.Text}
	}
}

func (ps *parser) feedText(lineNo int, c Classified) error {
	switch ps.state {
	case stateOutsideAct:
		if ps.act() == nil {
			if m := reByLine.FindStringSubmatch(c.Text); m != nil && ps.play.Author == "" {
				ps.play.Author = strings.TrimSpace(m[1])
			}
			return nil
		}
		return &ParseError{Line: lineNo, Column: 1, Message: "text outside any scene", Text: c.Text}

	case stateInAct:
		return &ParseError{Line: lineNo, Column: 1, Message: "text outside any scene", Text: c.Text}

	case stateInDirection:
		if ps.dirOpen && ps.runIndex >= 0 {
			ps.extendRun(c.Text)
			ps.trackDirection(c.Text)
			return nil
		}
		ps.closeRun()
		return ps.startDialogue(lineNo, c)

	case stateInSpeech:
		if ps.runIndex >= 0 {
			ps.extendRun(c.Text)
			return nil
		}
		return ps.startDialogue(lineNo, c)

	case stateInScene:
		return ps.startDialogue(lineNo, c)

	default:
		return &ParseError{Line: lineNo, Column: 1, Message: fmt.Sprintf("invalid parser state %d", ps.state), Text: c.Text}
	}
}

func (ps *parser) startDialogue(lineNo int, c Classified) error {
	if ps.speaker == "" {
		return &ParseError{Line: lineNo, Column: 1, Message: "dialogue without a preceding speaker cue", Text: c.Text}
	}
	ps.runIndex = ps.appendElement(domain.KindDialogue, c.Text, lineNo)
	ps.state = stateInSpeech
	return nil
}

// trackDirection updates bracket depth for the open direction. Unwrapped
// directions ("Enter Romeo and") keep accepting continuation lines; a
// wrapped one closes when its brackets balance.
func (ps *parser) trackDirection(text string) {
	ps.depth += strings.Count(text, "[") + strings.Count(text, "(")
	ps.depth -= strings.Count(text, "]") + strings.Count(text, ")")
	if ps.depth < 0 {
		ps.depth = 0
	}
	wrapped := isWrappedDirection(text)
	switch {
	case ps.depth > 0:
		ps.dirOpen = true
	case wrapped:
		ps.dirOpen = false
	default:
		// the run started unwrapped, or a continuation just closed the brackets
		start := ps.scene().Elements[ps.runIndex].Text
		ps.dirOpen = !isWrappedDirection(start)
	}
}

// cueName is the speaker name as written, without its terminating period.
func cueName(line string) string {
	return strings.TrimSpace(strings.TrimSuffix(line, "."))
}
