/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"goplaytranslator/internal/align"
	"goplaytranslator/internal/config"
	"goplaytranslator/internal/domain"
	"goplaytranslator/internal/export"
	applog "goplaytranslator/internal/log"
	"goplaytranslator/internal/storage"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the checkpoint without calling the translator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg = opts.apply(cfg)
			play, err := storage.NewStore(cfg.Paths.Checkpoint, cfg.Paths.Backups).Load(cmd.Context())
			if err != nil {
				if errors.Is(err, storage.ErrNoCheckpoint) {
					err = fmt.Errorf("%s: %w; run `goplaytranslator run` first", cfg.Paths.Checkpoint, err)
				}
				return stageErr("checkpoint", exitCheckpoint, err)
			}
			path, err := exportPlay(play, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.checkpoint, "checkpoint", "", "Checkpoint file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Rendered output file")
	cmd.Flags().StringVar(&opts.format, "format", "", "Output format (pdf, html)")
	return cmd
}

// exportPlay renders play with the configured renderer and returns the path
// written.
func exportPlay(play *domain.Play, cfg config.AppConfig) (string, error) {
	format, err := export.ParseFormat(cfg.Render.Format)
	if err != nil {
		return "", stageErr("export", exitRender, err)
	}
	page, err := export.LookupPreset(cfg.Render.PageSize)
	if err != nil {
		return "", stageErr("export", exitRender, err)
	}
	units, err := align.Export(play)
	if err != nil {
		return "", stageErr("export", exitRender, err)
	}
	now := time.Now()
	path := outputPath(cfg.Paths.Output, format)
	err = export.WriteFile(path, units, frontMatter(cfg.Render, play, now), export.Options{
		Format: format,
		PDF:    export.PDFOptions{Page: page, Created: now},
	})
	if err != nil {
		return "", stageErr("export", exitRender, fmt.Errorf("%s: %w", path, err))
	}
	st := align.Summary(units)
	applog.WithOperation(applog.WithComponent("cli"), "export").Info("rendered",
		slog.String("path", path),
		slog.String("format", string(format)),
		slog.Int("units", st.Units),
		slog.Int("untranslated", st.Untranslated),
		slog.Int("failed", st.Failed))
	return path, nil
}

// outputPath swaps a known renderer extension for the one format writes.
func outputPath(path string, f export.Format) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case export.FormatPDF.Ext(), export.FormatHTML.Ext(), ".htm":
		if ext != f.Ext() {
			return strings.TrimSuffix(path, filepath.Ext(path)) + f.Ext()
		}
		return path
	case "":
		return path + f.Ext()
	default:
		return path
	}
}

// frontMatter fills the title and copyright pages from the render settings,
// falling back to what the parser found in the script.
func frontMatter(r config.RenderConfig, p *domain.Play, now time.Time) export.FrontMatter {
	fm := export.FrontMatter{
		Title:           r.Title,
		Subtitle:        r.Subtitle,
		Author:          r.Author,
		Adapter:         r.Adapter,
		CopyrightHolder: r.CopyrightHolder,
		Year:            r.Year,
		Note:            r.Note,
	}
	if fm.Title == "" {
		fm.Title = p.Title
	}
	if fm.Title == "" {
		fm.Title = "Untitled"
	}
	if fm.Author == "" {
		fm.Author = p.Author
	}
	if fm.Year == 0 {
		fm.Year = now.Year()
	}
	return fm
}
