/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/zalando/go-keyring"

	"goplaytranslator/internal/config"
	"goplaytranslator/internal/domain"
	"goplaytranslator/internal/storage"
	"goplaytranslator/internal/translate"
)

const testScript = `ACT I
SCENE I. Verona. A public place.
Enter Sampson and Gregory.

SAMPSON.
Gregory, on my word, we'll not carry coals.

GREGORY.
No, for then we should be colliers.
`

type cliTestEnv struct {
	dir        string
	configPath string
	source     string
	checkpoint string
	output     string

	mu    sync.Mutex
	calls []string
	reply func(ctx context.Context, text string) (string, error)
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	dir := t.TempDir()
	env := &cliTestEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		source:     filepath.Join(dir, "play.txt"),
		checkpoint: filepath.Join(dir, "work", "checkpoint.json"),
		output:     filepath.Join(dir, "out", "play.html"),
	}
	if err := os.WriteFile(env.source, []byte(testScript), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	t.Setenv(config.EnvDelayMs, "0")
	t.Setenv(config.EnvJournal, "")
	t.Setenv(config.EnvProvider, "")
	return env
}

func (e *cliTestEnv) context() *commandContext {
	cc := newCommandContext()
	cc.logOutput = io.Discard
	cc.stdin = strings.NewReader("")
	cc.apiKey = func(string) (string, error) { return "test-key", nil }
	cc.newTranslator = func(context.Context, config.TranslationConfig, string) (translate.Translator, error) {
		return translate.Func(func(ctx context.Context, text, style string) (string, error) {
			e.mu.Lock()
			e.calls = append(e.calls, text)
			e.mu.Unlock()
			if e.reply != nil {
				return e.reply(ctx, text)
			}
			return "T:" + text, nil
		}), nil
	}
	return cc
}

func (e *cliTestEnv) run(t *testing.T, ctx context.Context, cc *commandContext, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(cc)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.ExecuteContext(ctx)
	return stdout.String(), err
}

func (e *cliTestEnv) runArgs() []string {
	return []string{"run", "--source", e.source, "--checkpoint", e.checkpoint, "--output", e.output, "--format", "html"}
}

func (e *cliTestEnv) loadCheckpoint(t *testing.T) *domain.Play {
	t.Helper()
	p, err := storage.NewStore(e.checkpoint, 0).Load(context.Background())
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	return p
}

func requireContains(t *testing.T, s, want string) {
	t.Helper()
	if !strings.Contains(s, want) {
		t.Fatalf("output %q does not contain %q", s, want)
	}
}

func TestRunTranslatesAndExports(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, context.Background(), env.context(), env.runArgs()...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Translated this session: 3")
	requireContains(t, out, "Total translated: 3 of 3")
	requireContains(t, out, "Wrote "+env.output)

	if len(env.calls) != 3 || env.calls[0] != "Enter Sampson and Gregory." {
		t.Fatalf("translator calls = %q", env.calls)
	}
	pr := env.loadCheckpoint(t).Progress()
	if pr.Translated != 3 || pr.Translatable != 3 {
		t.Fatalf("checkpoint progress = %+v", pr)
	}
	html, err := os.ReadFile(env.output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	requireContains(t, string(html), "T:No, for then we should be colliers.")

	status, err := env.run(t, context.Background(), env.context(), "status", "--checkpoint", env.checkpoint)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, status, "100.0%")
	requireContains(t, status, storage.OutcomeCompleted)
}

func TestRunResumesWithoutRetranslating(t *testing.T) {
	env := setupCLITestEnv(t)
	env.reply = func(_ context.Context, text string) (string, error) {
		if strings.Contains(text, "colliers") {
			return "", translate.Permanent(errors.New("blocked by safety filter"))
		}
		return "T:" + text, nil
	}
	out, err := env.run(t, context.Background(), env.context(), append(env.runArgs(), "--no-export")...)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	requireContains(t, out, "Total translated: 2 of 3")
	requireContains(t, out, "Errors: 1 (0 transient, 1 permanent)")
	if _, err := os.Stat(env.output); !os.IsNotExist(err) {
		t.Fatalf("--no-export must not render")
	}

	status, err := env.run(t, context.Background(), env.context(), "status", "--checkpoint", env.checkpoint)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, status, "blocked by safety filter")

	env.calls = nil
	env.reply = nil
	out, err = env.run(t, context.Background(), env.context(), env.runArgs()...)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(env.calls) != 1 || !strings.Contains(env.calls[0], "colliers") {
		t.Fatalf("only the failed element should be retried, calls = %q", env.calls)
	}
	requireContains(t, out, "Total translated: 3 of 3")
}

func TestRunRetranslateStartsOver(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, context.Background(), env.context(), append(env.runArgs(), "--no-export")...); err != nil {
		t.Fatalf("first run: %v", err)
	}
	env.calls = nil
	if _, err := env.run(t, context.Background(), env.context(), append(env.runArgs(), "--no-export", "--retranslate")...); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(env.calls) != 3 {
		t.Fatalf("--retranslate should call the translator for every element, got %d", len(env.calls))
	}
}

func TestRunInterruptedKeepsProgress(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.reply = func(ctx context.Context, text string) (string, error) {
		if strings.HasPrefix(text, "Gregory") {
			cancel()
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "T:" + text, nil
	}
	_, err := env.run(t, ctx, env.context(), env.runArgs()...)
	if code := exitCodeFor(err); code != exitInterrupted {
		t.Fatalf("exit code = %d (err %v)", code, err)
	}
	pr := env.loadCheckpoint(t).Progress()
	if pr.Translated != 1 || pr.Failed != 0 {
		t.Fatalf("checkpoint after interrupt = %+v", pr)
	}
	if _, err := os.Stat(env.output); !os.IsNotExist(err) {
		t.Fatalf("an interrupted run must not export")
	}
}

func TestRunParseFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.source, []byte("ACT I\nSCENE I. A street.\nWho goes there?\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := env.run(t, context.Background(), env.context(), env.runArgs()...)
	if code := exitCodeFor(err); code != exitParse {
		t.Fatalf("exit code = %d (err %v)", code, err)
	}
	requireContains(t, err.Error(), "line 3")
	if _, statErr := os.Stat(env.checkpoint); !os.IsNotExist(statErr) {
		t.Fatalf("no checkpoint should be written for an unparseable script")
	}
}

func TestRunMissingAPIKey(t *testing.T) {
	env := setupCLITestEnv(t)
	cc := env.context()
	cc.apiKey = func(p string) (string, error) { return "", config.ErrNoAPIKey }
	_, err := env.run(t, context.Background(), cc, env.runArgs()...)
	if code := exitCodeFor(err); code != exitTranslator {
		t.Fatalf("exit code = %d (err %v)", code, err)
	}
}

func TestRunCorruptCheckpointStartsFresh(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(filepath.Dir(env.checkpoint), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(env.checkpoint, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	cc := env.context()
	cc.logOutput = &logs
	if _, err := env.run(t, context.Background(), cc, append(env.runArgs(), "--log-format", "json")...); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(env.calls) != 3 {
		t.Fatalf("want 3 translator calls after a fresh parse, got %d", len(env.calls))
	}
	if pr := env.loadCheckpoint(t).Progress(); !pr.Done() {
		t.Fatalf("progress = %+v", pr)
	}
	moved, err := filepath.Glob(env.checkpoint + ".invalid-*")
	if err != nil || len(moved) != 1 {
		t.Fatalf("quarantined files = %v (%v)", moved, err)
	}
	if data, err := os.ReadFile(moved[0]); err != nil || string(data) != "{not json" {
		t.Fatalf("quarantined content = %q, %v", data, err)
	}
	requireContains(t, logs.String(), `"level":"WARN"`)
	requireContains(t, logs.String(), "checkpoint invalid, starting from a fresh parse")
}

func TestRunSourceChangeStartsOver(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, context.Background(), env.context(), append(env.runArgs(), "--no-export")...); err != nil {
		t.Fatalf("first run: %v", err)
	}
	changed := strings.Replace(testScript, "colliers.", "colliers, sir.", 1)
	if err := os.WriteFile(env.source, []byte(changed), 0o644); err != nil {
		t.Fatal(err)
	}
	env.calls = nil

	var logs bytes.Buffer
	cc := env.context()
	cc.logOutput = &logs
	if _, err := env.run(t, context.Background(), cc, append(env.runArgs(), "--no-export", "--log-format", "json")...); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(env.calls) != 3 {
		t.Fatalf("want every element retranslated, got %d calls: %v", len(env.calls), env.calls)
	}
	var last domain.Element
	for _, el := range env.loadCheckpoint(t).Acts[0].Scenes[0].Elements {
		if el.Kind == domain.KindDialogue {
			last = el
		}
	}
	if last.Text != "No, for then we should be colliers, sir." || last.Translation != "T:"+last.Text {
		t.Fatalf("last dialogue = %+v", last)
	}
	requireContains(t, logs.String(), `"level":"WARN"`)
	requireContains(t, logs.String(), "checkpoint does not match the source")
}

func TestParseCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, context.Background(), env.context(), "parse", env.source)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	requireContains(t, out, "Verona. A public place.")
	requireContains(t, out, "1 acts, 5 elements, 3 translatable (2 dialogue, 1 directions)")
}

func TestExportCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, context.Background(), env.context(), "export", "--checkpoint", env.checkpoint, "--output", env.output)
	if code := exitCodeFor(err); code != exitCheckpoint {
		t.Fatalf("export without checkpoint: exit code = %d (err %v)", code, err)
	}

	if _, err := env.run(t, context.Background(), env.context(), append(env.runArgs(), "--no-export")...); err != nil {
		t.Fatalf("run: %v", err)
	}
	pdfPath := filepath.Join(env.dir, "out", "play.pdf")
	out, err := env.run(t, context.Background(), env.context(), "export", "--checkpoint", env.checkpoint, "--output", pdfPath, "--format", "pdf")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	requireContains(t, out, "Wrote "+pdfPath)
	data, err := os.ReadFile(pdfPath)
	if err != nil || !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("expected a PDF at %s: %v", pdfPath, err)
	}
}

func TestAuthCommands(t *testing.T) {
	keyring.MockInit()
	env := setupCLITestEnv(t)
	cc := env.context()
	cc.stdin = strings.NewReader("sk-test\n")
	out, err := env.run(t, context.Background(), cc, "auth", "set-key", "openai")
	if err != nil {
		t.Fatalf("set-key: %v", err)
	}
	requireContains(t, out, "Stored API key for openai")
	t.Setenv("OPENAI_API_KEY", "")
	if key, err := config.APIKey("openai"); err != nil || key != "sk-test" {
		t.Fatalf("APIKey = %q, %v", key, err)
	}
	if _, err := env.run(t, context.Background(), env.context(), "auth", "delete-key", "openai"); err != nil {
		t.Fatalf("delete-key: %v", err)
	}
	if _, err := config.APIKey("openai"); !errors.Is(err, config.ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey after delete, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, context.Background(), env.context(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, out, "goplaytranslator ")
}
