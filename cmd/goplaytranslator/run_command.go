/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"goplaytranslator/internal/config"
	"goplaytranslator/internal/crash"
	"goplaytranslator/internal/domain"
	applog "goplaytranslator/internal/log"
	"goplaytranslator/internal/orchestrator"
	"goplaytranslator/internal/script"
	"goplaytranslator/internal/storage"
)

type runOptions struct {
	source      string
	checkpoint  string
	output      string
	format      string
	retranslate bool
	noExport    bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Parse, translate (resuming from the checkpoint) and export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTranslation(sigCtx, ctx, opts.apply(cfg), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.source, "source", "", "Play script to translate")
	cmd.Flags().StringVar(&opts.checkpoint, "checkpoint", "", "Checkpoint file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Rendered output file")
	cmd.Flags().StringVar(&opts.format, "format", "", "Output format (pdf, html)")
	cmd.Flags().BoolVar(&opts.retranslate, "retranslate", false, "Discard saved translations and start over")
	cmd.Flags().BoolVar(&opts.noExport, "no-export", false, "Skip rendering after translation")
	return cmd
}

// apply overlays non-empty flags on the configuration.
func (o runOptions) apply(cfg config.AppConfig) config.AppConfig {
	if o.source != "" {
		cfg.Paths.Source = o.source
	}
	if o.checkpoint != "" {
		cfg.Paths.Checkpoint = o.checkpoint
	}
	if o.output != "" {
		cfg.Paths.Output = o.output
	}
	if o.format != "" {
		cfg.Render.Format = o.format
	}
	return cfg
}

func runTranslation(ctx context.Context, cc *commandContext, cfg config.AppConfig, opts runOptions, out io.Writer) error {
	l := applog.WithOperation(applog.WithComponent("cli"), "run")

	fresh, err := script.ParseFile(cfg.Paths.Source)
	if err != nil {
		return stageErr("parse", exitParse, fmt.Errorf("%s: %w", cfg.Paths.Source, err))
	}
	pr := fresh.Progress()
	l.Info("parsed source",
		slog.String("path", cfg.Paths.Source),
		slog.Int("acts", len(fresh.Acts)),
		slog.Int("elements", pr.Elements),
		slog.Int("translatable", pr.Translatable))

	if err := os.MkdirAll(filepath.Dir(cfg.Paths.Checkpoint), 0o755); err != nil {
		return stageErr("checkpoint", exitCheckpoint, err)
	}
	lock, err := storage.LockCheckpoint(cfg.Paths.Checkpoint)
	if err != nil {
		return stageErr("checkpoint", exitCheckpoint, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			l.Warn("release checkpoint lock", slog.Any("err", err))
		}
	}()

	store := storage.NewStore(cfg.Paths.Checkpoint, cfg.Paths.Backups)
	saved, err := store.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNoCheckpoint):
		saved = nil
	case errors.Is(err, storage.ErrInvalidCheckpoint):
		l.Warn("checkpoint invalid, starting from a fresh parse",
			slog.String("path", cfg.Paths.Checkpoint),
			slog.String("reason", err.Error()))
		if _, qerr := store.Quarantine(); qerr != nil {
			return stageErr("checkpoint", exitCheckpoint, qerr)
		}
		saved = nil
	case err != nil:
		return stageErr("checkpoint", exitCheckpoint, fmt.Errorf("%s: %w", cfg.Paths.Checkpoint, err))
	}

	play, dec := storage.Reconcile(fresh, saved)
	switch {
	case dec.Adopted:
		l.Info("checkpoint adopted", slog.String("reason", dec.Reason))
	case saved != nil:
		l.Warn("checkpoint does not match the source, starting over", slog.String("reason", dec.Reason))
	}
	if opts.retranslate {
		play.ResetTranslations()
	}
	if !dec.Adopted || opts.retranslate {
		if err := store.Save(ctx, play); err != nil {
			return stageErr("checkpoint", exitCheckpoint, err)
		}
	}

	defer crash.Recover(filepath.Dir(cfg.Paths.Checkpoint), func() error {
		return store.Save(context.Background(), play)
	})

	key, err := cc.apiKey(cfg.Translation.Provider)
	if err != nil {
		return stageErr("translate", exitTranslator, err)
	}
	tr, err := cc.newTranslator(ctx, cfg.Translation, key)
	if err != nil {
		return stageErr("translate", exitTranslator, err)
	}

	rj := openRunJournal(ctx, cfg.Paths.JournalDSN(), play.SourceDigest, cfg.Paths.Checkpoint, l)
	defer rj.close()

	before := play.Progress()
	stats, runErr := orchestrator.Run(ctx, play, tr, store.Save, orchestrator.Options{
		Delay:           pacing(cfg.Translation),
		CheckpointEvery: cfg.Translation.CheckpointEvery,
		Style:           cfg.Translation.Style,
		Logger:          applog.WithRun(applog.WithComponent("orchestrator"), rj.runID()),
		OnFailure:       rj.failure,
		OnSave:          rj.saved,
	})
	outcome := storage.OutcomeCompleted
	switch {
	case errors.Is(runErr, context.Canceled):
		outcome = storage.OutcomeCancelled
	case runErr != nil:
		outcome = storage.OutcomeAborted
	}
	rj.finish(outcome, stats)
	printSummary(out, cfg.Paths.Checkpoint, before, play.Progress(), stats)

	if runErr != nil {
		switch {
		case errors.Is(runErr, context.Canceled):
			return runErr
		case errors.Is(runErr, orchestrator.ErrSaveFailed):
			return stageErr("checkpoint", exitCheckpoint, runErr)
		default:
			return stageErr("translate", exitGeneric, runErr)
		}
	}
	if opts.noExport {
		return nil
	}
	path, err := exportPlay(play, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}

// pacing maps the configured delay onto orchestrator semantics, where zero
// means the default and a negative delay disables pacing.
func pacing(t config.TranslationConfig) time.Duration {
	if t.DelayMs <= 0 {
		return -1
	}
	return t.Delay()
}

func printSummary(w io.Writer, checkpoint string, before, after domain.Progress, st orchestrator.Stats) {
	fmt.Fprintf(w, "Translated this session: %d\n", after.Translated-before.Translated)
	fmt.Fprintf(w, "Total translated: %d of %d\n", after.Translated, after.Translatable)
	if st.Failed > 0 {
		fmt.Fprintf(w, "Errors: %d (%d transient, %d permanent); rerun to retry them\n", st.Failed, st.Transient, st.Permanent)
	}
	fmt.Fprintf(w, "Checkpoint: %s (%d saves, %s)\n", checkpoint, st.Saves, st.Duration.Round(time.Millisecond))
}
