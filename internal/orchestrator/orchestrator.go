/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package orchestrator walks a play in document order and sends every
// pending dialogue and stage direction to the translator, one call at a
// time, checkpointing progress as it goes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"goplaytranslator/internal/domain"
	applog "goplaytranslator/internal/log"
	"goplaytranslator/internal/translate"
)

// Defaults applied to zero Options fields.
const (
	DefaultDelay           = 2 * time.Second
	DefaultCheckpointEvery = 20
)

// ErrSaveFailed marks a checkpoint write failure, which aborts the run.
var ErrSaveFailed = errors.New("checkpoint save failed")

// SaveFunc persists the whole tree.
type SaveFunc func(ctx context.Context, p *domain.Play) error

// Failure describes one failed translation attempt.
type Failure struct {
	Element domain.ElementID
	Kind    translate.ErrorKind
	Err     error
}

// Options controls pacing, checkpoint cadence and the style instruction.
type Options struct {
	// Delay is the minimum gap between the end of one translation call and
	// the start of the next. Negative disables pacing; zero uses DefaultDelay.
	Delay time.Duration
	// CheckpointEvery saves after this many successful translations.
	CheckpointEvery int
	// Style is the register passed to the translator; per-element context
	// (speaker, stage direction) is appended to it.
	Style  string
	Logger *slog.Logger
	// OnFailure is called after an element is marked failed.
	OnFailure func(Failure)
	// OnSave is called after every successful checkpoint save.
	OnSave func()

	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Stats summarizes one run.
type Stats struct {
	Eligible   int // translatable elements pending at start
	Attempted  int // translator calls made
	Translated int
	Failed     int
	Transient  int
	Permanent  int
	Skipped    int // translatable elements already translated
	Saves      int
	Duration   time.Duration
}

func (o Options) withDefaults() Options {
	if o.Delay == 0 {
		o.Delay = DefaultDelay
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	if o.CheckpointEvery <= 0 {
		o.CheckpointEvery = DefaultCheckpointEvery
	}
	if o.Logger == nil {
		o.Logger = applog.WithComponent("orchestrator")
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// run holds the mutable state of one walk. The play is owned by the walk
// until Run returns.
type run struct {
	p     *domain.Play
	tr    translate.Translator
	save  SaveFunc
	opts  Options
	log   *slog.Logger
	stats Stats

	unsaved  int  // successes since the last save
	dirty    bool // any status change since the last save
	called   bool
	lastCall time.Time
}

// Run translates every pending element of p in document order. An element's
// status changes only after its own call returns, so cancelling ctx between
// or during calls never corrupts the tree. On cancellation pending progress
// is saved once more and ctx.Err() is returned. A failed save aborts the run
// with an error wrapping ErrSaveFailed.
func Run(ctx context.Context, p *domain.Play, tr translate.Translator, save SaveFunc, opts Options) (Stats, error) {
	if p == nil || tr == nil || save == nil {
		return Stats{}, errors.New("orchestrator: play, translator and save func are required")
	}
	r := &run{p: p, tr: tr, save: save, opts: opts.withDefaults()}
	r.log = r.opts.Logger
	start := r.opts.Now()
	pr := p.Progress()
	r.stats.Eligible = pr.Translatable - pr.Translated

	err := r.walk(ctx)
	r.stats.Duration = r.opts.Now().Sub(start)
	return r.stats, err
}

func (r *run) walk(ctx context.Context) error {
	for ai := range r.p.Acts {
		act := &r.p.Acts[ai]
		for si := range act.Scenes {
			scene := &act.Scenes[si]
			for ei := range scene.Elements {
				el := &scene.Elements[ei]
				switch el.Kind {
				case domain.KindHeading, domain.KindSpeakerCue:
					continue
				case domain.KindDialogue, domain.KindDirection:
				default:
					return fmt.Errorf("orchestrator: element %s has unknown kind %d", el.ID, el.Kind)
				}
				if el.Status == domain.StatusTranslated {
					r.stats.Skipped++
					continue
				}
				if err := r.pace(ctx); err != nil {
					return r.interrupted(ctx)
				}
				if err := r.translate(ctx, el); err != nil {
					return err
				}
			}
		}
	}
	if r.dirty {
		if err := r.checkpoint(ctx); err != nil {
			return err
		}
	}
	return nil
}

// pace waits out the remainder of the delay since the previous call.
func (r *run) pace(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.called || r.opts.Delay <= 0 {
		return nil
	}
	wait := r.opts.Delay - r.opts.Now().Sub(r.lastCall)
	if wait <= 0 {
		return nil
	}
	return r.opts.Sleep(ctx, wait)
}

func (r *run) translate(ctx context.Context, el *domain.Element) error {
	out, err := r.tr.Translate(ctx, el.Text, StyleFor(r.opts.Style, el))
	r.called = true
	r.lastCall = r.opts.Now()

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// the call was abandoned, not answered: leave the element untouched
		return r.interrupted(ctx)
	}
	r.stats.Attempted++
	if err == nil && strings.TrimSpace(out) == "" {
		err = translate.Transient(translate.ErrEmptyResponse)
	}
	if err != nil {
		r.fail(el, err)
		return nil
	}
	if err := el.MarkTranslated(out); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	r.stats.Translated++
	r.unsaved++
	r.dirty = true
	r.log.Info("element translated",
		slog.String("element", el.ID.String()),
		slog.String("kind", el.Kind.String()),
		slog.Int("done", r.stats.Translated+r.stats.Failed),
		slog.Int("eligible", r.stats.Eligible))
	if r.unsaved >= r.opts.CheckpointEvery {
		return r.checkpoint(ctx)
	}
	return nil
}

func (r *run) fail(el *domain.Element, err error) {
	kind := translate.Classify(err)
	_ = el.MarkFailed(err.Error())
	r.stats.Failed++
	r.dirty = true
	attrs := []any{
		slog.String("element", el.ID.String()),
		slog.String("kind", el.Kind.String()),
		slog.Int("line", el.Line),
		slog.Any("err", err),
	}
	switch kind {
	case translate.KindPermanent:
		r.stats.Permanent++
		r.log.Warn("translation rejected", attrs...)
	default:
		r.stats.Transient++
		r.log.Warn("translation failed, will retry next run", attrs...)
	}
	if r.opts.OnFailure != nil {
		r.opts.OnFailure(Failure{Element: el.ID, Kind: kind, Err: err})
	}
}

func (r *run) checkpoint(ctx context.Context) error {
	if err := r.save(ctx, r.p); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	r.stats.Saves++
	r.unsaved = 0
	r.dirty = false
	if r.opts.OnSave != nil {
		r.opts.OnSave()
	}
	r.log.Debug("checkpoint saved", slog.Int("translated", r.stats.Translated))
	return nil
}

// interrupted saves pending progress after cancellation and reports why the
// walk stopped.
func (r *run) interrupted(ctx context.Context) error {
	cause := ctx.Err()
	if cause == nil {
		cause = context.Canceled
	}
	r.log.Info("translation interrupted",
		slog.Int("translated", r.stats.Translated),
		slog.Int("failed", r.stats.Failed))
	if !r.dirty {
		return cause
	}
	if err := r.checkpoint(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// StyleFor appends per-element context to the base style instruction.
func StyleFor(base string, el *domain.Element) string {
	base = strings.TrimRight(strings.TrimSpace(base), ".")
	switch el.Kind {
	case domain.KindDialogue:
		if el.Speaker != "" {
			return base + ". The speaker is " + el.Speaker
		}
	case domain.KindDirection:
		return base + ". This is a stage direction"
	case domain.KindHeading, domain.KindSpeakerCue:
	}
	return base
}
