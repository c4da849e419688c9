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
	"html/template"
	"io"
	"strings"

	"goplaytranslator/internal/align"
	"goplaytranslator/internal/domain"
)

var htmlTemplate = template.Must(template.New("play").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Front.Title}}</title>
<style>
body { font-family: Georgia, "Times New Roman", serif; margin: 2em auto; max-width: 60em; line-height: 1.4; }
.front { text-align: center; page-break-after: always; margin-bottom: 4em; }
.front h1 { font-size: 2.2em; margin-bottom: .2em; }
.front .subtitle { font-style: italic; }
.copyright { font-size: .8em; page-break-after: always; margin-bottom: 4em; }
h2, h3, .heading { text-align: center; }
.act { page-break-before: always; }
table.scene { width: 100%; border-collapse: collapse; table-layout: fixed; }
table.scene td { vertical-align: top; padding: .1em .6em; white-space: pre-wrap; }
tr.speaker td { font-weight: bold; padding-top: .6em; }
tr.direction td { font-style: italic; }
td.missing { color: #be1414; font-style: italic; }
</style>
</head>
<body>
<section class="front">
<h1>{{.Front.Title}}</h1>
{{- with .Front.Subtitle}}<p class="subtitle">{{.}}</p>{{end}}
{{- with .Front.Author}}<p>by {{.}}</p>{{end}}
{{- with .Front.Adapter}}<p><em>Translated by {{.}}</em></p>{{end}}
</section>
<section class="copyright">
{{- with .Copyright}}<p>{{.}}</p>{{end}}
{{- with .Front.Author}}<p>Original text by {{.}}, in the public domain.</p>{{end}}
{{- .Note}}
</section>
{{- range .Blocks}}
{{- if .ActHeading}}<h2 class="act">{{.ActHeading}}</h2>{{end}}
{{- if .SceneHeading}}<h3>{{.SceneHeading}}</h3>{{end}}
<table class="scene">
{{- range .Rows}}
{{- if .Heading}}
<tr class="heading"><td colspan="2" class="heading">{{.Original}}</td></tr>
{{- else}}
<tr class="{{.Class}}" id="el-{{.ID}}"><td>{{.Original}}</td><td{{if .Missing}} class="missing"{{end}}>{{.Translation}}</td></tr>
{{- end}}
{{- end}}
</table>
{{- end}}
</body>
</html>
`))

type htmlRow struct {
	ID          string
	Class       string
	Heading     bool
	Original    string
	Translation string
	Missing     bool
}

type htmlBlock struct {
	ActHeading   string
	SceneHeading string
	Rows         []htmlRow
}

type htmlPage struct {
	Front     FrontMatter
	Copyright string
	Note      template.HTML
	Blocks    []htmlBlock
}

// WriteHTML renders the units as a single side-by-side HTML document with
// the same front matter as the PDF.
func WriteHTML(w io.Writer, units []align.Unit, fm FrontMatter) error {
	page := htmlPage{Front: fm, Copyright: fm.copyrightLine()}
	if note := strings.TrimSpace(fm.Note); note != "" {
		rendered, err := renderMarkdown(note)
		if err != nil {
			return fmt.Errorf("render note: %w", err)
		}
		page.Note = template.HTML(rendered) //nolint:gosec // goldmark escapes raw HTML by default
	}
	for _, sb := range align.GroupByScene(units) {
		var blk htmlBlock
		first := sb.Units[0]
		if first.ActStart {
			blk.ActHeading = first.ActHeading
		}
		if !first.SceneImplicit {
			blk.SceneHeading = first.SceneHeading
		}
		for _, u := range sb.Units {
			row := htmlRow{ID: u.ElementID.String(), Original: u.Original, Translation: u.Translation, Missing: u.Placeholder}
			switch u.Kind {
			case domain.KindHeading:
				row.Heading = true
			case domain.KindSpeakerCue:
				row.Class = "speaker"
			case domain.KindDialogue:
				row.Class = "dialogue"
			case domain.KindDirection:
				row.Class = "direction"
				row.Original = stripUnderscores(row.Original)
				row.Translation = stripUnderscores(row.Translation)
			}
			blk.Rows = append(blk.Rows, row)
		}
		page.Blocks = append(page.Blocks, blk)
	}
	if err := htmlTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}
