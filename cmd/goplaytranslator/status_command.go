/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"goplaytranslator/internal/domain"
	"goplaytranslator/internal/storage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkpoint string
	var runs, failures int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint progress and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if checkpoint != "" {
				cfg.Paths.Checkpoint = checkpoint
			}
			out := cmd.OutOrStdout()
			play, err := storage.NewStore(cfg.Paths.Checkpoint, cfg.Paths.Backups).Load(cmd.Context())
			if err != nil {
				return stageErr("checkpoint", exitCheckpoint, fmt.Errorf("%s: %w", cfg.Paths.Checkpoint, err))
			}
			printProgress(out, cfg.Paths.Checkpoint, play, failures)

			dsn := cfg.Paths.JournalDSN()
			if runs <= 0 || !journalExists(dsn) {
				return nil
			}
			j, err := storage.OpenJournal(cmd.Context(), dsn)
			if err != nil {
				return stageErr("checkpoint", exitCheckpoint, err)
			}
			defer j.Close()
			recent, err := j.RecentRuns(cmd.Context(), runs)
			if err != nil {
				return stageErr("checkpoint", exitCheckpoint, err)
			}
			printRuns(out, recent)
			return nil
		},
	}
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "Checkpoint file")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of recent runs to list (0 hides them)")
	cmd.Flags().IntVar(&failures, "failures", 10, "Number of failed elements to list")
	return cmd
}

func printProgress(w io.Writer, path string, p *domain.Play, maxFailures int) {
	pr := p.Progress()
	pct := 100.0
	if pr.Translatable > 0 {
		pct = float64(pr.Translated) * 100 / float64(pr.Translatable)
	}
	fmt.Fprintf(w, "Checkpoint: %s\n", path)
	fmt.Fprintln(w, renderTable(
		[]string{"Translatable", "Translated", "Failed", "Untranslated", "Done"},
		[][]string{{
			strconv.Itoa(pr.Translatable),
			strconv.Itoa(pr.Translated),
			strconv.Itoa(pr.Failed),
			strconv.Itoa(pr.Untranslated),
			strconv.FormatFloat(pct, 'f', 1, 64) + "%",
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	if pr.Failed == 0 || maxFailures <= 0 {
		return
	}
	var rows [][]string
	p.Walk(func(_ *domain.Act, _ *domain.Scene, el *domain.Element) bool {
		if el.Status == domain.StatusFailed {
			rows = append(rows, []string{el.ID.String(), strconv.Itoa(el.Line), truncate(el.Failure, 60)})
		}
		return len(rows) < maxFailures
	})
	fmt.Fprintln(w, renderTable([]string{"Element", "Line", "Failure"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
}

func printRuns(w io.Writer, runs []storage.RunRecord) {
	if len(runs) == 0 {
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "-"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Outcome,
			finished,
			strconv.Itoa(r.Translated),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Saves),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Started", "Outcome", "Took", "Translated", "Failed", "Saves"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
}
