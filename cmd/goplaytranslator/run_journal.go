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
	"log/slog"

	"goplaytranslator/internal/orchestrator"
	"goplaytranslator/internal/storage"
)

// keepRuns bounds the journal history kept after each run.
const keepRuns = 200

// runJournal records one run in the journal. The journal is bookkeeping: when
// it cannot be opened the run proceeds without it, and a nil *runJournal is a
// valid no-op.
type runJournal struct {
	j   *storage.Journal
	id  string
	log *slog.Logger
	// journal writes must land even after the run context is cancelled
	ctx context.Context
}

func openRunJournal(ctx context.Context, dsn, digest, checkpoint string, l *slog.Logger) *runJournal {
	j, err := storage.OpenJournal(ctx, dsn)
	if err != nil {
		l.Warn("run journal unavailable", slog.String("dsn", redactDSN(dsn)), slog.Any("err", err))
		return nil
	}
	id, err := j.BeginRun(ctx, digest, checkpoint)
	if err != nil {
		l.Warn("begin journal run", slog.Any("err", err))
		_ = j.Close()
		return nil
	}
	return &runJournal{j: j, id: id, log: l, ctx: context.WithoutCancel(ctx)}
}

func (rj *runJournal) runID() string {
	if rj == nil {
		return ""
	}
	return rj.id
}

func (rj *runJournal) failure(f orchestrator.Failure) {
	if rj == nil {
		return
	}
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	if err := rj.j.RecordFailure(rj.ctx, rj.id, f.Element.String(), f.Kind.String(), msg); err != nil {
		rj.log.Warn("journal failure", slog.Any("err", err))
	}
}

func (rj *runJournal) saved() {
	if rj == nil {
		return
	}
	if err := rj.j.RecordSave(rj.ctx, rj.id); err != nil {
		rj.log.Warn("journal save", slog.Any("err", err))
	}
}

func (rj *runJournal) finish(outcome string, st orchestrator.Stats) {
	if rj == nil {
		return
	}
	err := rj.j.FinishRun(rj.ctx, rj.id, outcome, storage.RunCounts{
		Eligible:   st.Eligible,
		Translated: st.Translated,
		Failed:     st.Failed,
		Transient:  st.Transient,
		Permanent:  st.Permanent,
		Saves:      st.Saves,
	})
	if err != nil {
		rj.log.Warn("finish journal run", slog.Any("err", err))
		return
	}
	if err := rj.j.Prune(rj.ctx, keepRuns); err != nil {
		rj.log.Warn("prune journal", slog.Any("err", err))
	}
}

func (rj *runJournal) close() {
	if rj == nil {
		return
	}
	if err := rj.j.Close(); err != nil {
		rj.log.Warn("close journal", slog.Any("err", err))
	}
}
