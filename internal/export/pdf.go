/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"goplaytranslator/internal/align"
	"goplaytranslator/internal/domain"
)

// PDFOptions controls PDF export behavior.
// Units are points (pt) unless otherwise noted. Built-in Times keeps the
// output free of embedded fonts; text outside cp1252 is dropped.
type PDFOptions struct {
	Page     PageSpec // zero uses the trade preset
	FontSize float64  // body size; zero uses 10
	// Created fixes the document creation date (reproducible output).
	Created time.Time
}

const (
	columnGap  = 14.0
	lineFactor = 1.3
	footerSize = 8.0
)

// placeholder colour for missing translations
var placeholderRGB = [3]int{190, 20, 20}

type pdfWriter struct {
	pdf       *gofpdf.Fpdf
	tr        func(string) string
	spec      PageSpec
	size      float64
	lineH     float64
	bodyStart int // first arabic-numbered page; 0 while in front matter
}

// WritePDF renders the units as a two-column side-by-side book: front
// matter numbered in lower-case roman, then the play body numbered from 1.
func WritePDF(w io.Writer, units []align.Unit, fm FrontMatter, opt PDFOptions) error {
	if w == nil {
		return errors.New("nil writer")
	}
	pw, err := renderPDF(units, fm, opt)
	if err != nil {
		return err
	}
	if err := pw.pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func renderPDF(units []align.Unit, fm FrontMatter, opt PDFOptions) (*pdfWriter, error) {
	spec := opt.Page
	if spec.Width == 0 {
		spec = presets[PresetTrade]
	}
	size := opt.FontSize
	if size <= 0 {
		size = 10
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: spec.Width, Ht: spec.Height},
	})
	pw := &pdfWriter{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		spec:  spec,
		size:  size,
		lineH: size * lineFactor,
	}
	pdf.SetTitle(fm.Title, true)
	if fm.Author != "" {
		pdf.SetAuthor(fm.Author, true)
	}
	pdf.SetCreator("goplaytranslator", false)
	if !opt.Created.IsZero() {
		pdf.SetCreationDate(opt.Created)
		pdf.SetModificationDate(opt.Created)
	}
	pdf.SetMargins(spec.Inner, spec.Top, spec.Outer)
	pdf.SetAutoPageBreak(false, spec.Bottom)
	pdf.SetFooterFunc(pw.footer)

	pw.titlePage(fm)
	pw.copyrightPage(fm)

	pw.bodyStart = pdf.PageNo() + 1
	pw.addPage()
	for i, u := range units {
		pw.unit(i, u)
		if pdf.Err() {
			break
		}
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pw, nil
}

func (pw *pdfWriter) addPage() {
	pw.pdf.AddPage()
	n := pw.pdf.PageNo()
	left := pw.spec.left(n)
	pw.pdf.SetLeftMargin(left)
	pw.pdf.SetRightMargin(pw.spec.Width - left - pw.spec.ContentWidth())
	pw.pdf.SetXY(left, pw.spec.Top)
}

// pageLabel is the printed number of physical page n; the title page has none.
func (pw *pdfWriter) pageLabel(n int) (string, bool) {
	if pw.bodyStart > 0 && n >= pw.bodyStart {
		return strconv.Itoa(n - pw.bodyStart + 1), true
	}
	if n == 1 {
		return "", false
	}
	return romanLower(n), true
}

func (pw *pdfWriter) footer() {
	n := pw.pdf.PageNo()
	label, ok := pw.pageLabel(n)
	if !ok {
		return
	}
	pw.pdf.SetFont("Times", "", footerSize)
	pw.pdf.SetTextColor(0, 0, 0)
	pw.pdf.SetXY(pw.spec.left(n), pw.spec.Height-pw.spec.Bottom/2)
	pw.pdf.CellFormat(pw.spec.ContentWidth(), footerSize, label, "", 0, "C", false, 0, "")
}

func (pw *pdfWriter) titlePage(fm FrontMatter) {
	pw.addPage()
	cw := pw.spec.ContentWidth()
	pw.pdf.SetY(pw.spec.Height * 0.28)
	pw.pdf.SetFont("Times", "B", 22)
	pw.pdf.MultiCell(cw, 26, pw.tr(fm.Title), "", "C", false)
	if fm.Subtitle != "" {
		pw.pdf.Ln(6)
		pw.pdf.SetFont("Times", "I", 13)
		pw.pdf.MultiCell(cw, 16, pw.tr(fm.Subtitle), "", "C", false)
	}
	if fm.Author != "" {
		pw.pdf.Ln(28)
		pw.pdf.SetFont("Times", "", 12)
		pw.pdf.MultiCell(cw, 15, pw.tr("by "+fm.Author), "", "C", false)
	}
	if fm.Adapter != "" {
		pw.pdf.Ln(8)
		pw.pdf.SetFont("Times", "I", 11)
		pw.pdf.MultiCell(cw, 14, pw.tr("Translated by "+fm.Adapter), "", "C", false)
	}
}

func (pw *pdfWriter) copyrightPage(fm FrontMatter) {
	pw.addPage()
	cw := pw.spec.ContentWidth()
	pw.pdf.SetY(pw.spec.Height * 0.55)
	pw.pdf.SetFont("Times", "", 9)
	if line := fm.copyrightLine(); line != "" {
		pw.pdf.MultiCell(cw, 12, pw.tr(line), "", "L", false)
		pw.pdf.Ln(6)
	}
	if fm.Author != "" {
		pw.pdf.MultiCell(cw, 12, pw.tr("Original text by "+fm.Author+", in the public domain."), "", "L", false)
		pw.pdf.Ln(6)
	}
	if note := strings.TrimSpace(fm.Note); note != "" {
		pw.pdf.MultiCell(cw, 12, pw.tr(plainMarkdown(note)), "", "L", false)
	}
}

func (pw *pdfWriter) bottom() float64 { return pw.spec.Height - pw.spec.Bottom }

func (pw *pdfWriter) pageFresh() bool { return pw.pdf.GetY() <= pw.spec.Top+0.5 }

// ensure starts a new page when h does not fit below the cursor.
func (pw *pdfWriter) ensure(h float64) {
	if pw.pdf.GetY()+h > pw.bottom() && !pw.pageFresh() {
		pw.addPage()
	}
}

func (pw *pdfWriter) unit(i int, u align.Unit) {
	if u.ActStart {
		if i > 0 && !pw.pageFresh() {
			pw.addPage()
		}
		if u.ActHeading != "" {
			pw.heading(u.ActHeading, 15)
		}
	}
	if u.SceneStart && !u.SceneImplicit && u.SceneHeading != "" {
		pw.heading(u.SceneHeading, 12)
	}
	switch u.Kind {
	case domain.KindHeading:
		pw.heading(u.Original, 12)
	case domain.KindSpeakerCue:
		pw.ensure(pw.lineH * 2)
		pw.pdf.Ln(pw.lineH * 0.4)
		pw.columns(u.Original, u.Translation, "B", false)
	case domain.KindDialogue:
		pw.columns(u.Original, u.Translation, "", u.Placeholder)
	case domain.KindDirection:
		pw.pdf.Ln(pw.lineH * 0.3)
		pw.columns(stripUnderscores(u.Original), stripUnderscores(u.Translation), "I", u.Placeholder)
		pw.pdf.Ln(pw.lineH * 0.3)
	}
}

func (pw *pdfWriter) heading(text string, size float64) {
	h := size * lineFactor
	pw.ensure(h * 3)
	if !pw.pageFresh() {
		pw.pdf.Ln(h * 0.6)
	}
	pw.pdf.SetFont("Times", "B", size)
	pw.pdf.SetTextColor(0, 0, 0)
	pw.pdf.SetX(pw.spec.left(pw.pdf.PageNo()))
	pw.pdf.MultiCell(pw.spec.ContentWidth(), h, pw.tr(text), "", "C", false)
	pw.pdf.Ln(h * 0.4)
}

// columns lays left and right out line by line so both sides stay aligned,
// breaking pages between lines when needed.
func (pw *pdfWriter) columns(left, right, style string, placeholder bool) {
	colW := (pw.spec.ContentWidth() - columnGap) / 2
	pw.pdf.SetFont("Times", style, pw.size)
	ll := pw.pdf.SplitLines([]byte(pw.tr(left)), colW)
	rightStyle := style
	if placeholder {
		rightStyle = "I"
	}
	pw.pdf.SetFont("Times", rightStyle, pw.size)
	rl := pw.pdf.SplitLines([]byte(pw.tr(right)), colW)

	n := max(len(ll), len(rl))
	for i := 0; i < n; i++ {
		if pw.pdf.GetY()+pw.lineH > pw.bottom() {
			pw.addPage()
		}
		x := pw.spec.left(pw.pdf.PageNo())
		y := pw.pdf.GetY()
		if i < len(ll) {
			pw.pdf.SetFont("Times", style, pw.size)
			pw.pdf.SetTextColor(0, 0, 0)
			pw.pdf.SetXY(x, y)
			pw.pdf.CellFormat(colW, pw.lineH, string(ll[i]), "", 0, "L", false, 0, "")
		}
		if i < len(rl) {
			pw.pdf.SetFont("Times", rightStyle, pw.size)
			if placeholder {
				pw.pdf.SetTextColor(placeholderRGB[0], placeholderRGB[1], placeholderRGB[2])
			} else {
				pw.pdf.SetTextColor(0, 0, 0)
			}
			pw.pdf.SetXY(x+colW+columnGap, y)
			pw.pdf.CellFormat(colW, pw.lineH, string(rl[i]), "", 0, "L", false, 0, "")
		}
		pw.pdf.SetXY(x, y+pw.lineH)
	}
	pw.pdf.SetTextColor(0, 0, 0)
}

func stripUnderscores(s string) string { return strings.ReplaceAll(s, "_", "") }

// romanLower formats n (1..3999) as a lower-case roman numeral.
func romanLower(n int) string {
	if n <= 0 || n >= 4000 {
		return strconv.Itoa(n)
	}
	vals := []int{1000, 900, 500, 400, 100, 90, 50, 40, 10, 9, 5, 4, 1}
	syms := []string{"m", "cm", "d", "cd", "c", "xc", "l", "xl", "x", "ix", "v", "iv", "i"}
	var b strings.Builder
	for i, v := range vals {
		for n >= v {
			b.WriteString(syms[i])
			n -= v
		}
	}
	return b.String()
}
