/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	applog "goplaytranslator/internal/log"
	"goplaytranslator/internal/version"

	"github.com/google/uuid"
	// Postgres driver registered as "pgx" for shared journals
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// journalSchemaVersion tracks the journal schema. Bump it and add a step to
// runJournalMigrations for every schema change.
const journalSchemaVersion = 2

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Run outcomes recorded by FinishRun.
const (
	OutcomeRunning   = "running"
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeAborted   = "aborted"
)

// Journal records translation runs and per-element failures.
type Journal struct {
	db      *sql.DB
	dialect dialect
	log     *slog.Logger
}

// RunCounts are the totals stored for a finished run.
type RunCounts struct {
	Eligible   int
	Translated int
	Failed     int
	Transient  int
	Permanent  int
	Saves      int
}

// RunRecord is one row of the run history.
type RunRecord struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time // zero while running
	SourceDigest string
	Checkpoint   string
	Outcome      string
	RunCounts
}

// FailureRecord is one failed translation attempt.
type FailureRecord struct {
	RunID     string
	ElementID string
	Kind      string // "transient" | "permanent"
	Message   string
	At        time.Time
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// OpenJournal opens (creating if needed) the journal at dsn: a postgres://
// URL selects Postgres, anything else is a SQLite file path.
func OpenJournal(ctx context.Context, dsn string) (*Journal, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "journal_open")
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("journal location is required")
	}
	j := &Journal{log: l}
	var err error
	if isPostgresDSN(dsn) {
		j.dialect = dialectPostgres
		j.db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
	} else {
		j.dialect = dialectSQLite
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
		uri := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(dsn))
		j.db, err = sql.Open("sqlite", uri)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		j.db.SetMaxOpenConns(1)
		j.db.SetMaxIdleConns(1)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := j.db.PingContext(ctx); err != nil {
		_ = j.db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}
	if j.dialect == dialectSQLite {
		if _, err := j.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			_ = j.db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
		if _, err := j.db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
			l.Warn("enable foreign_keys failed", slog.Any("err", err))
		}
	}
	if err := j.ensureSchema(ctx); err != nil {
		_ = j.db.Close()
		return nil, err
	}
	if err := j.runMigrations(ctx); err != nil {
		_ = j.db.Close()
		return nil, err
	}
	l.Debug("journal ready", slog.String("backend", j.backendName()))
	return j, nil
}

func (j *Journal) backendName() string {
	if j.dialect == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (j *Journal) rebind(q string) string {
	if j.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (j *Journal) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return j.db.ExecContext(ctx, j.rebind(q), args...)
}

func (j *Journal) ensureSchema(ctx context.Context) error {
	failuresID := "id INTEGER PRIMARY KEY"
	if j.dialect == dialectPostgres {
		failuresID = "id BIGSERIAL PRIMARY KEY"
	}
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id            TEXT PRIMARY KEY,
			started_at    TEXT NOT NULL,
			finished_at   TEXT,
			source_digest TEXT,
			checkpoint    TEXT,
			outcome       TEXT NOT NULL,
			eligible      INTEGER NOT NULL DEFAULT 0,
			translated    INTEGER NOT NULL DEFAULT 0,
			failed        INTEGER NOT NULL DEFAULT 0,
			transient     INTEGER NOT NULL DEFAULT 0,
			permanent     INTEGER NOT NULL DEFAULT 0,
			saves         INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS failures (
			` + failuresID + `,
			run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			element_id TEXT NOT NULL,
			kind       TEXT NOT NULL,
			message    TEXT NOT NULL,
			ts         TEXT NOT NULL
		)`,
	}
	for _, q := range ddl {
		if _, err := j.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create journal table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var cur int
	err := j.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := j.exec(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, 1, version.String(), now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := j.exec(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to journalSchemaVersion.
func (j *Journal) runMigrations(ctx context.Context) error {
	var cur int
	if err := j.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > journalSchemaVersion {
		j.log.Warn("journal schema is newer than this binary", slog.Int("schema", cur))
		return nil
	}
	for cur < journalSchemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id)`,
				`CREATE INDEX IF NOT EXISTS idx_failures_element ON failures(element_id)`,
				`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
			}
		}
		tx, err := j.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, j.rebind(`UPDATE version SET schema=?, updated_at=? WHERE id=1`), next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// language=SQL
const insertRunSQL = `INSERT INTO runs(id, started_at, source_digest, checkpoint, outcome) VALUES (?, ?, ?, ?, ?)`

// language=SQL
const finishRunSQL = `UPDATE runs SET finished_at = ?, outcome = ?, eligible = ?, translated = ?, failed = ?,
	transient = ?, permanent = ?, saves = ? WHERE id = ?`

// language=SQL
const incrementSavesSQL = `UPDATE runs SET saves = saves + 1 WHERE id = ?`

// language=SQL
const insertFailureSQL = `INSERT INTO failures(run_id, element_id, kind, message, ts) VALUES (?, ?, ?, ?, ?)`

// language=SQL
const recentRunsSQL = `SELECT id, started_at, COALESCE(finished_at, ''), COALESCE(source_digest, ''), COALESCE(checkpoint, ''),
	outcome, eligible, translated, failed, transient, permanent, saves
	FROM runs ORDER BY started_at DESC LIMIT ?`

// language=SQL
const failuresForRunSQL = `SELECT run_id, element_id, kind, message, ts FROM failures WHERE run_id = ? ORDER BY id LIMIT ?`

// language=SQL
const failureSummarySQL = `SELECT kind, COUNT(*) FROM failures WHERE run_id = ? GROUP BY kind`

// language=SQL
const pruneFailuresSQL = `DELETE FROM failures WHERE run_id NOT IN (
	SELECT id FROM runs ORDER BY started_at DESC LIMIT ?
)`

// language=SQL
const pruneRunsSQL = `DELETE FROM runs WHERE id NOT IN (
	SELECT id FROM (SELECT id FROM runs ORDER BY started_at DESC LIMIT ?) AS keep
)`

// BeginRun records the start of a run and returns its id.
func (j *Journal) BeginRun(ctx context.Context, sourceDigest, checkpoint string) (string, error) {
	id := uuid.NewString()
	if _, err := j.exec(ctx, insertRunSQL, id, stamp(time.Now()), sourceDigest, checkpoint, OutcomeRunning); err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// RecordFailure appends a failed attempt for an element.
func (j *Journal) RecordFailure(ctx context.Context, runID, elementID, kind, message string) error {
	if _, err := j.exec(ctx, insertFailureSQL, runID, elementID, kind, message, stamp(time.Now())); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// RecordSave counts a checkpoint save against the run.
func (j *Journal) RecordSave(ctx context.Context, runID string) error {
	if _, err := j.exec(ctx, incrementSavesSQL, runID); err != nil {
		return fmt.Errorf("record save: %w", err)
	}
	return nil
}

// FinishRun stores the outcome and totals of a run.
func (j *Journal) FinishRun(ctx context.Context, runID, outcome string, c RunCounts) error {
	_, err := j.exec(ctx, finishRunSQL, stamp(time.Now()), outcome,
		c.Eligible, c.Translated, c.Failed, c.Transient, c.Permanent, c.Saves, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := j.db.QueryContext(ctx, j.rebind(recentRunsSQL), limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.SourceDigest, &r.Checkpoint, &r.Outcome,
			&r.Eligible, &r.Translated, &r.Failed, &r.Transient, &r.Permanent, &r.Saves); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = parseStamp(started)
		r.FinishedAt = parseStamp(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Failures returns up to limit failures recorded for a run, oldest first.
func (j *Journal) Failures(ctx context.Context, runID string, limit int) ([]FailureRecord, error) {
	rows, err := j.db.QueryContext(ctx, j.rebind(failuresForRunSQL), runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()
	var out []FailureRecord
	for rows.Next() {
		var f FailureRecord
		var ts string
		if err := rows.Scan(&f.RunID, &f.ElementID, &f.Kind, &f.Message, &ts); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.At = parseStamp(ts)
		out = append(out, f)
	}
	return out, rows.Err()
}

// FailureSummary counts a run's recorded failures by kind.
func (j *Journal) FailureSummary(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, j.rebind(failureSummarySQL), runID)
	if err != nil {
		return nil, fmt.Errorf("query failure summary: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan failure summary: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// Prune keeps the newest keep runs and their failures.
func (j *Journal) Prune(ctx context.Context, keep int) error {
	if keep < 1 {
		return errors.New("keep must be at least 1")
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, j.rebind(pruneFailuresSQL), keep); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prune failures: %w", err)
	}
	if _, err := tx.ExecContext(ctx, j.rebind(pruneRunsSQL), keep); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prune runs: %w", err)
	}
	return tx.Commit()
}

// stampLayout is fixed width so stored timestamps sort lexically.
const stampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func stamp(t time.Time) string { return t.UTC().Format(stampLayout) }

func parseStamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
