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
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"goplaytranslator/internal/domain"
	applog "goplaytranslator/internal/log"
	"goplaytranslator/internal/version"

	"github.com/xeipuuv/gojsonschema"
)

const (
	CheckpointSchema  = "goplaytranslator.checkpoint"
	CheckpointVersion = 1
	BackupsDirName    = "backups"
	DefaultBackups    = 3

	backupStamp = "20060102-150405.000000000"
)

var (
	// ErrNoCheckpoint means no checkpoint file exists: start fresh.
	ErrNoCheckpoint = errors.New("no checkpoint")
	// ErrInvalidCheckpoint means a checkpoint exists but cannot be trusted.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
)

// InvalidCheckpointError describes why a checkpoint (and every backup) was rejected.
type InvalidCheckpointError struct {
	Path    string
	Reasons []string
}

func (e *InvalidCheckpointError) Error() string {
	return fmt.Sprintf("invalid checkpoint %s: %s", e.Path, strings.Join(e.Reasons, "; "))
}

func (e *InvalidCheckpointError) Unwrap() error { return ErrInvalidCheckpoint }

//go:embed schema/checkpoint.schema.json
var checkpointSchemaJSON string

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(checkpointSchemaJSON))
})

// envelope is the on-disk checkpoint format.
type envelope struct {
	Schema      string          `json:"schema"`
	Version     int             `json:"version"`
	SavedAt     time.Time       `json:"savedAt"`
	App         string          `json:"app,omitempty"`
	Fingerprint string          `json:"fingerprint"`
	Progress    domain.Progress `json:"progress"`
	Play        *domain.Play    `json:"play"`
}

// Store is the single checkpoint file of one translation job. Only one
// process may write it at a time; see LockCheckpoint.
type Store struct {
	Path    string
	Backups int // timestamped backups kept next to the checkpoint; 0 disables them

	now func() time.Time
	log *slog.Logger
}

// NewStore returns a store for the checkpoint at path.
func NewStore(path string, backups int) *Store {
	if backups < 0 {
		backups = DefaultBackups
	}
	return &Store{
		Path:    path,
		Backups: backups,
		now:     time.Now,
		log:     applog.WithComponent("storage"),
	}
}

// BackupDir is where previous checkpoints are kept.
func (s *Store) BackupDir() string {
	return filepath.Join(filepath.Dir(s.Path), BackupsDirName)
}

// Save atomically replaces the checkpoint with the full tree. Readers observe
// either the previous complete snapshot or the new one, never a partial file.
func (s *Store) Save(ctx context.Context, p *domain.Play) error {
	if p == nil {
		return errors.New("nil play")
	}
	if strings.TrimSpace(s.Path) == "" {
		return errors.New("checkpoint path is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	env := envelope{
		Schema:      CheckpointSchema,
		Version:     CheckpointVersion,
		SavedAt:     s.now().UTC(),
		App:         "goplaytranslator/" + version.String(),
		Fingerprint: p.Fingerprint(),
		Progress:    p.Progress(),
		Play:        p,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure checkpoint dir: %w", err)
	}
	if s.Backups > 0 {
		if err := s.backupCurrent(); err != nil {
			return err
		}
	}

	base := filepath.Base(s.Path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", base, os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if runtime.GOOS == "windows" {
		if _, err := os.Stat(s.Path); err == nil {
			_ = os.Remove(s.Path)
		}
	}
	if err := os.Rename(temp, s.Path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	syncDir(dir)

	s.log.Debug("checkpoint saved",
		slog.String("path", s.Path),
		slog.Int("translated", env.Progress.Translated),
		slog.Int("translatable", env.Progress.Translatable))
	return nil
}

func (s *Store) backupCurrent() error {
	if _, err := os.Stat(s.Path); err != nil {
		return nil
	}
	bdir := s.BackupDir()
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	name := fmt.Sprintf("%s.%s.bak", filepath.Base(s.Path), s.now().UTC().Format(backupStamp))
	if err := copyFile(s.Path, filepath.Join(bdir, name)); err != nil {
		return fmt.Errorf("backup current checkpoint: %w", err)
	}
	return s.pruneBackups()
}

// backupFiles lists backups oldest first; the timestamp in the name sorts lexicographically.
func (s *Store) backupFiles() ([]string, error) {
	ents, err := os.ReadDir(s.BackupDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	prefix := filepath.Base(s.Path) + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(s.BackupDir(), name))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) pruneBackups() error {
	files, err := s.backupFiles()
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	for len(files) > s.Backups {
		if err := os.Remove(files[0]); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("prune backup: %w", err)
		}
		files = files[1:]
	}
	return nil
}

// Load returns the most recent valid checkpoint. It returns ErrNoCheckpoint
// when none exists and an *InvalidCheckpointError when the checkpoint and all
// backups fail validation. Any other error is an I/O failure the caller
// should treat as fatal.
func (s *Store) Load(ctx context.Context) (*domain.Play, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	p, derr := decodeCheckpoint(data)
	if derr == nil {
		return p, nil
	}
	invalid := &InvalidCheckpointError{Path: s.Path, Reasons: []string{derr.Error()}}

	backups, err := s.backupFiles()
	if err != nil {
		invalid.Reasons = append(invalid.Reasons, "list backups: "+err.Error())
		return nil, invalid
	}
	for i := len(backups) - 1; i >= 0; i-- {
		b, err := os.ReadFile(backups[i])
		if err != nil {
			invalid.Reasons = append(invalid.Reasons, fmt.Sprintf("%s: %v", filepath.Base(backups[i]), err))
			continue
		}
		bp, err := decodeCheckpoint(b)
		if err != nil {
			invalid.Reasons = append(invalid.Reasons, fmt.Sprintf("%s: %v", filepath.Base(backups[i]), err))
			continue
		}
		s.log.Warn("checkpoint invalid, recovered from backup",
			slog.String("path", s.Path),
			slog.String("backup", backups[i]),
			slog.String("reason", derr.Error()))
		return bp, nil
	}
	return nil, invalid
}

// Quarantine moves an untrusted checkpoint aside so the next Save starts a
// fresh file. It returns the new path of the quarantined file.
func (s *Store) Quarantine() (string, error) {
	dst := fmt.Sprintf("%s.invalid-%s", s.Path, s.now().UTC().Format(backupStamp))
	if err := os.Rename(s.Path, dst); err != nil {
		return "", fmt.Errorf("quarantine checkpoint: %w", err)
	}
	syncDir(filepath.Dir(s.Path))
	s.log.Warn("checkpoint quarantined",
		slog.String("path", s.Path),
		slog.String("moved_to", dst))
	return dst, nil
}

// ValidateCheckpoint reports whether data is a checkpoint this version can resume from.
func ValidateCheckpoint(data []byte) error {
	_, err := decodeCheckpoint(data)
	return err
}

func decodeCheckpoint(data []byte) (*domain.Play, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile checkpoint schema: %w", err)
	}
	if !json.Valid(data) {
		return nil, errors.New("not valid JSON")
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("schema: %s", strings.Join(msgs, ", "))
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if env.Schema != CheckpointSchema || env.Version != CheckpointVersion {
		return nil, fmt.Errorf("unsupported checkpoint %s v%d", env.Schema, env.Version)
	}
	if env.Play == nil {
		return nil, errors.New("checkpoint has no play")
	}
	if err := env.Play.Validate(); err != nil {
		return nil, err
	}
	if got := env.Play.Fingerprint(); got != env.Fingerprint {
		return nil, errors.New("fingerprint mismatch: tree was modified or truncated")
	}
	return env.Play, nil
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// syncDir flushes the directory entry after a rename. Not every platform
// supports it, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
