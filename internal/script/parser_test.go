/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"errors"
	"strings"
	"testing"

	"goplaytranslator/internal/domain"
)

func mustParse(t *testing.T, src string) *domain.Play {
	t.Helper()
	p, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return p
}

func elements(p *domain.Play, act, scene int) []domain.Element {
	return p.Acts[act-1].Scenes[scene-1].Elements
}

func TestParseActSceneSpeech(t *testing.T) {
	src := "ACT I\nSCENE I. Verona. A public place.\nSAMPSON.\nGregory, on my word, we'll not carry coals.\n"
	p := mustParse(t, src)
	if len(p.Acts) != 1 || p.Acts[0].Label != "I" || len(p.Acts[0].Scenes) != 1 {
		t.Fatalf("unexpected structure: %+v", p.Acts)
	}
	sc := p.Acts[0].Scenes[0]
	if sc.Label != "I" || sc.Setting != "Verona. A public place." {
		t.Fatalf("scene = %+v", sc)
	}
	els := sc.Elements
	if len(els) != 2 {
		t.Fatalf("want 2 elements, got %d: %+v", len(els), els)
	}
	if els[0].Kind != domain.KindSpeakerCue || els[0].Text != "SAMPSON" {
		t.Fatalf("cue = %+v", els[0])
	}
	if els[1].Kind != domain.KindDialogue || els[1].Speaker != "SAMPSON" || els[1].Line != 4 {
		t.Fatalf("dialogue = %+v", els[1])
	}
	if els[1].ID != (domain.ElementID{Act: 1, Scene: 1, Index: 1}) {
		t.Fatalf("id = %v", els[1].ID)
	}
}

func TestParseMergesDialogueRun(t *testing.T) {
	src := `ACT I
SCENE II. A street.

ROMEO.
But soft, what light through yonder window breaks?
It is the east, and Juliet is the sun.

Arise, fair sun, and kill the envious moon.
`
	p := mustParse(t, src)
	els := elements(p, 1, 1)
	if len(els) != 3 {
		t.Fatalf("want cue + 2 dialogue elements, got %d: %+v", len(els), els)
	}
	if got := els[1].Text; got != "But soft, what light through yonder window breaks?\nIt is the east, and Juliet is the sun." {
		t.Fatalf("merged text = %q", got)
	}
	if els[2].Kind != domain.KindDialogue || els[2].Speaker != "ROMEO" {
		t.Fatalf("text after a blank line should stay bound to ROMEO: %+v", els[2])
	}
}

func TestParseStageDirections(t *testing.T) {
	src := `ACT I
SCENE I. Verona.
Enter Sampson and Gregory, of the house of Capulet, armed with swords
and bucklers.

SAMPSON.
[_Aside._] Gregory,
on my word.
[_Exit._]
`
	p := mustParse(t, src)
	els := elements(p, 1, 1)
	kinds := []domain.Kind{domain.KindDirection, domain.KindSpeakerCue, domain.KindDirection, domain.KindDialogue, domain.KindDirection}
	if len(els) != len(kinds) {
		t.Fatalf("want %d elements, got %d: %+v", len(kinds), len(els), els)
	}
	for i, k := range kinds {
		if els[i].Kind != k {
			t.Fatalf("element %d kind = %s, want %s", i, els[i].Kind, k)
		}
	}
	if !strings.HasSuffix(els[0].Text, "\nand bucklers.") {
		t.Fatalf("unwrapped direction should take its continuation line: %q", els[0].Text)
	}
	if els[3].Speaker != "SAMPSON" || els[3].Text != "on my word." {
		t.Fatalf("dialogue after a closed direction = %+v", els[3])
	}
}

func TestParseUnterminatedBracketDirection(t *testing.T) {
	src := `ACT I
SCENE I. Verona.
[_Enter Sampson and Gregory, armed with swords
and bucklers._]
SAMPSON.
Gregory.
`
	p := mustParse(t, src)
	els := elements(p, 1, 1)
	if len(els) != 3 || els[0].Kind != domain.KindDirection || !strings.Contains(els[0].Text, "bucklers._]") {
		t.Fatalf("unexpected elements: %+v", els)
	}
	if els[2].Kind != domain.KindDialogue || els[2].Text != "Gregory." {
		t.Fatalf("dialogue = %+v", els[2])
	}
}

func TestParseFrontMatterAndPrologue(t *testing.T) {
	src := `THE TRAGEDY OF ROMEO AND JULIET

by William Shakespeare

DRAMATIS PERSONAE

ESCALUS, Prince of Verona.

THE PROLOGUE

Enter Chorus.

CHORUS.
Two households, both alike in dignity,
In fair Verona, where we lay our scene.

ACT I

SCENE I. A public place.

SAMPSON.
Gregory, on my word.
`
	p := mustParse(t, src)
	if p.Title != "THE TRAGEDY OF ROMEO AND JULIET" || p.Author != "William Shakespeare" {
		t.Fatalf("front matter = %q / %q", p.Title, p.Author)
	}
	if len(p.Acts) != 2 {
		t.Fatalf("want implicit prologue act + ACT I, got %d", len(p.Acts))
	}
	pro := p.Acts[0]
	if !pro.Implicit || len(pro.Scenes) != 1 || !pro.Scenes[0].Implicit || pro.Scenes[0].Heading != "THE PROLOGUE" {
		t.Fatalf("prologue act = %+v", pro)
	}
	els := pro.Scenes[0].Elements
	if len(els) != 4 || els[0].Kind != domain.KindHeading || els[1].Kind != domain.KindDirection || els[3].Speaker != "CHORUS" {
		t.Fatalf("prologue elements = %+v", els)
	}
	if p.Acts[1].Label != "I" || p.Acts[1].Number != 2 {
		t.Fatalf("act I = %+v", p.Acts[1])
	}
}

func TestParseEbookWithContentsAndPersons(t *testing.T) {
	src := `The Project Gutenberg eBook of Romeo and Juliet

This ebook is for the use of anyone anywhere.

*** START OF THE PROJECT GUTENBERG EBOOK ROMEO AND JULIET ***

THE TRAGEDY OF ROMEO AND JULIET

by William Shakespeare


Contents

THE PROLOGUE.

ACT I
Scene I. A public place.
Scene II. A Street.

ACT II
CHORUS.
Scene I. An open place adjoining Capulet’s Garden.


Dramatis Personæ

ESCALUS, Prince of Verona.
MERCUTIO, kinsman to the Prince, and friend to Romeo.
CHORUS.

SCENE. During the greater part of the Play in Verona.


THE PROLOGUE

 Enter Chorus.

CHORUS.
Two households, both alike in dignity,
In fair Verona, where we lay our scene,

 [_Exit._]


ACT I

SCENE I. A public place.

 Enter Sampson and Gregory armed with swords and bucklers.

SAMPSON.
Gregory, on my word, we’ll not carry coals.

*** END OF THE PROJECT GUTENBERG EBOOK ROMEO AND JULIET ***

Updated editions will replace the previous one.
`
	p := mustParse(t, src)
	if p.Title != "THE TRAGEDY OF ROMEO AND JULIET" || p.Author != "William Shakespeare" {
		t.Fatalf("front matter = %q / %q", p.Title, p.Author)
	}
	if len(p.Acts) != 2 {
		t.Fatalf("want prologue act + ACT I, got %d: %+v", len(p.Acts), p.Acts)
	}
	pro := elements(p, 1, 1)
	if len(pro) != 5 || pro[0].Text != "THE PROLOGUE" || pro[2].Text != "CHORUS" || pro[4].Kind != domain.KindDirection {
		t.Fatalf("prologue elements = %+v", pro)
	}
	act := p.Acts[1]
	if act.Label != "I" || len(act.Scenes) != 1 || act.Scenes[0].Setting != "A public place." {
		t.Fatalf("act I = %+v", act)
	}
	els := elements(p, 2, 1)
	if len(els) != 3 || els[1].Text != "SAMPSON" {
		t.Fatalf("scene elements = %+v", els)
	}
	if els[2].Text != "Gregory, on my word, we’ll not carry coals." || els[2].Line != 52 {
		t.Fatalf("last dialogue = %+v", els[2])
	}
}

func TestParseContentsFollowedByPlay(t *testing.T) {
	src := `Contents

ACT I
Scene I. A street.

ACT I

SCENE I. A street.

ROMEO.
Hello there.
`
	p := mustParse(t, src)
	if len(p.Acts) != 1 || len(p.Acts[0].Scenes) != 1 {
		t.Fatalf("structure = %+v", p.Acts)
	}
	els := elements(p, 1, 1)
	if len(els) != 2 || els[1].Text != "Hello there." || els[1].Line != 11 {
		t.Fatalf("elements = %+v", els)
	}
}

func TestParseExclamationKeepsSpeaker(t *testing.T) {
	src := "ACT I\nSCENE I. A street.\nROMEO.\nWhat say you?\n\nO HO!\n\nThen I am gone.\n"
	els := elements(mustParse(t, src), 1, 1)
	if len(els) != 4 {
		t.Fatalf("want cue + 3 dialogue, got %+v", els)
	}
	for _, el := range els[1:] {
		if el.Kind != domain.KindDialogue || el.Speaker != "ROMEO" {
			t.Fatalf("element = %+v", el)
		}
	}
	if els[2].Text != "O HO!" {
		t.Fatalf("exclamation = %+v", els[2])
	}
}

func TestParseGazetteerResolvesTitleCaseCue(t *testing.T) {
	src := `ACT I
SCENE I. A street.

ROMEO.
I dreamt a dream tonight.

MERCUTIO.
And so did I.

Romeo.
Well, what was yours?
Farewell.

Farewell.
`
	p := mustParse(t, src)
	els := elements(p, 1, 1)
	if len(els) != 7 {
		t.Fatalf("want 7 elements, got %d: %+v", len(els), els)
	}
	if els[4].Kind != domain.KindSpeakerCue || els[4].Text != "Romeo" {
		t.Fatalf("title-case known speaker should be a cue: %+v", els[4])
	}
	if els[5].Text != "Well, what was yours?\nFarewell." || els[5].Speaker != "ROMEO" {
		t.Fatalf("dialogue = %+v", els[5])
	}
	if els[6].Kind != domain.KindDialogue || els[6].Speaker != "ROMEO" {
		t.Fatalf("unknown title-case word should stay dialogue: %+v", els[6])
	}
}

func TestParseSceneWithoutActOpensImplicitAct(t *testing.T) {
	p := mustParse(t, "SCENE 1. A room.\nHAMLET.\nWords, words, words.\n")
	if len(p.Acts) != 1 || !p.Acts[0].Implicit || p.Acts[0].Scenes[0].Label != "1" {
		t.Fatalf("unexpected structure: %+v", p.Acts)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		line int
	}{
		{"dialogue without cue", "ACT I\nSCENE I. A street.\nWho goes there?\n", 3},
		{"text outside scene", "ACT I\nSomething here.\n", 2},
		{"dialogue after heading resets speaker", "ACT I\nSCENE I. A street.\nROMEO.\nHello.\n\nTHE END\n\nGoodbye.\n", 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse(strings.NewReader(tc.src))
			if p != nil {
				t.Fatalf("no partial tree expected on error")
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("want *ParseError, got %v", err)
			}
			if perr.Line != tc.line {
				t.Fatalf("error line = %d, want %d (%v)", perr.Line, tc.line, perr)
			}
		})
	}
}

func TestParseIsDeterministic(t *testing.T) {
	src := "\xef\xbb\xbfACT I\r\nSCENE I. Verona.\r\nSAMPSON.\r\nGregory, on my word.\r\n"
	a, err := ParseBytes([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseBytes([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() != b.Fingerprint() || a.SourceDigest != b.SourceDigest || a.SourceDigest == "" {
		t.Fatalf("parsing the same input twice must yield identical identities")
	}
	if got := elements(a, 1, 1)[1].Text; got != "Gregory, on my word." {
		t.Fatalf("CRLF not stripped: %q", got)
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier(LearnSpeakers([]string{"ROMEO.", "LADY CAPULET."}))
	cases := []struct {
		line string
		prev LineKind
		want LineKind
	}{
		{"", LineText, LineBlank},
		{"ACT IV", LineBlank, LineActMarker},
		{"SCENE II. Capulet's orchard.", LineBlank, LineSceneMarker},
		{"THE PROLOGUE", LineBlank, LineHeading},
		{"[_Exit._]", LineText, LineDirection},
		{"(Aside)", LineText, LineDirection},
		{"Exeunt.", LineText, LineDirection},
		{"NURSE.", LineText, LineSpeakerCue},
		{"ROMEO", LineBlank, LineSpeakerCue},
		{"ROMEO", LineText, LineText},
		{"Lady Capulet.", LineBlank, LineSpeakerCue},
		{"Lady Capulet.", LineSpeakerCue, LineText},
		{"Farewell.", LineBlank, LineText},
		{"DRAMATIS PERSONAE", LineBlank, LineHeading},
		{"II.", LineBlank, LineHeading},
		{"O Romeo, Romeo, wherefore art thou Romeo?", LineBlank, LineText},
		{"O HO!", LineBlank, LineText},
		{"Scene I. A public place.", LineBlank, LineSceneMarker},
		{"Scene did change.", LineBlank, LineText},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.line, tc.prev).Kind; got != tc.want {
			t.Fatalf("Classify(%q, %s) = %s, want %s", tc.line, tc.prev, got, tc.want)
		}
	}
	if got := c.Classify("LADY  CAPULET.", LineBlank).Speaker; got != "LADY CAPULET" {
		t.Fatalf("speaker name not normalized: %q", got)
	}
}
