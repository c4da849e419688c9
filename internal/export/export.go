/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders aligned render units into reader-facing documents:
// a paginated two-column PDF and a single-file HTML page.
package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"goplaytranslator/internal/align"
)

// Format selects the renderer.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// ParseFormat accepts "pdf" or "html" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format: %s", s)
	}
}

// Ext is the conventional file extension, with the dot.
func (f Format) Ext() string { return "." + string(f) }

// FrontMatter feeds the title and copyright pages.
type FrontMatter struct {
	Title           string
	Subtitle        string
	Author          string
	Adapter         string
	CopyrightHolder string
	Year            int
	Note            string // markdown
}

func (fm FrontMatter) copyrightLine() string {
	holder := strings.TrimSpace(fm.CopyrightHolder)
	if holder == "" {
		holder = strings.TrimSpace(fm.Adapter)
	}
	if holder == "" {
		return ""
	}
	if fm.Year > 0 {
		return "Copyright © " + strconv.Itoa(fm.Year) + " " + holder
	}
	return "Copyright © " + holder
}

// Options bundles renderer settings for WriteFile.
type Options struct {
	Format Format
	PDF    PDFOptions
}

// WriteFile renders units to path, replacing any previous file atomically.
func WriteFile(path string, units []align.Unit, fm FrontMatter, opt Options) (err error) {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("output path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	bw := bufio.NewWriter(tmp)
	switch opt.Format {
	case FormatHTML:
		err = WriteHTML(bw, units, fm)
	case FormatPDF, "":
		err = WritePDF(bw, units, fm, opt.PDF)
	default:
		err = fmt.Errorf("unknown export format: %s", opt.Format)
	}
	if err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync output: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace output: %w", err)
	}
	return nil
}
