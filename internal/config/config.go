/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the translator configuration from a user-scoped YAML
// file, an optional .env file in the working directory and PLAYTR_*
// environment overrides. API keys never live in the YAML file: they come from
// the environment or from the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is written to config_version on Save.
const CurrentVersion = 1

// DefaultStyle is the register the translator writes in unless configured otherwise.
const DefaultStyle = "British 'Chav' style, but prioritize character voice over heavy caricature"

type PathsConfig struct {
	Source     string `yaml:"source"`
	Checkpoint string `yaml:"checkpoint"`
	Output     string `yaml:"output"`
	// Journal is a SQLite file path or a postgres:// DSN. Empty means a
	// journal.sqlite next to the checkpoint.
	Journal string `yaml:"journal"`
	Backups int    `yaml:"backups"`
}

type TranslationConfig struct {
	Provider          string  `yaml:"provider"` // "gemini" | "openai"
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	Style             string  `yaml:"style"`
	Temperature       float32 `yaml:"temperature"`
	DelayMs           int     `yaml:"delay_ms"`
	CheckpointEvery   int     `yaml:"checkpoint_every"`
	TimeoutMs         int     `yaml:"timeout_ms"`
	BreakerFailures   int     `yaml:"breaker_failures"`
	BreakerCooldownMs int     `yaml:"breaker_cooldown_ms"`
}

type RenderConfig struct {
	Format          string `yaml:"format"`    // "pdf" | "html"
	PageSize        string `yaml:"page_size"` // "trade" | "a5" | "letter"
	Title           string `yaml:"title"`
	Subtitle        string `yaml:"subtitle"`
	Author          string `yaml:"author"`
	Adapter         string `yaml:"adapter"`
	CopyrightHolder string `yaml:"copyright_holder"`
	Year            int    `yaml:"year"`
	Note            string `yaml:"note"` // markdown
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the user-editable configuration persisted to YAML.
// config_version is bumped when the structure changes incompatibly.
type AppConfig struct {
	ConfigVersion int               `yaml:"config_version"`
	Paths         PathsConfig       `yaml:"paths"`
	Translation   TranslationConfig `yaml:"translation"`
	Render        RenderConfig      `yaml:"render"`
	Logging       LoggingConfig     `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: CurrentVersion,
		Paths: PathsConfig{
			Source:     "play.txt",
			Checkpoint: "translation_checkpoint.json",
			Output:     "translation.pdf",
			Backups:    3,
		},
		Translation: TranslationConfig{
			Provider:          "gemini",
			Style:             DefaultStyle,
			Temperature:       0.7,
			DelayMs:           2000,
			CheckpointEvery:   20,
			TimeoutMs:         60000,
			BreakerFailures:   5,
			BreakerCooldownMs: 30000,
		},
		Render: RenderConfig{
			Format:   "pdf",
			PageSize: "trade",
			Author:   "William Shakespeare",
		},
		Logging: LoggingConfig{Level: "info", Format: "auto"},
	}
}

// Env var names used as overrides.
const (
	EnvSource          = "PLAYTR_SOURCE"
	EnvCheckpoint      = "PLAYTR_CHECKPOINT"
	EnvOutput          = "PLAYTR_OUTPUT"
	EnvJournal         = "PLAYTR_JOURNAL"
	EnvProvider        = "PLAYTR_PROVIDER"
	EnvModel           = "PLAYTR_MODEL"
	EnvBaseURL         = "PLAYTR_BASE_URL"
	EnvStyle           = "PLAYTR_STYLE"
	EnvDelayMs         = "PLAYTR_DELAY_MS"
	EnvCheckpointEvery = "PLAYTR_CHECKPOINT_EVERY"
	EnvRenderFormat    = "PLAYTR_RENDER_FORMAT"
	EnvLogLevel        = "PLAYTR_LOG_LEVEL"
	EnvLogFormat       = "PLAYTR_LOG_FORMAT"
	EnvLogSource       = "PLAYTR_LOG_SOURCE"
	EnvLogFile         = "PLAYTR_LOG_FILE"
)

// DotEnvFile is read (if present) before environment overrides are applied.
// Variables already set in the process environment win.
var DotEnvFile = ".env"

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoPlayTranslator")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoPlayTranslator")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "goplaytranslator")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "goplaytranslator")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the config file at path (or ConfigPath when empty), applies
// defaults, the .env file and environment overrides. A missing file is not an
// error; a malformed one is.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := loadDotEnv(); err != nil {
		return cfg, err
	}
	applyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

func loadDotEnv() error {
	if DotEnvFile == "" {
		return nil
	}
	if _, err := os.Stat(DotEnvFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(DotEnvFile); err != nil {
		return fmt.Errorf("load %s: %w", DotEnvFile, err)
	}
	return nil
}

// Save writes cfg as YAML to path (or ConfigPath when empty).
func Save(path string, cfg AppConfig) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	cfg.ConfigVersion = CurrentVersion
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate rejects settings the pipeline cannot run with.
func (c AppConfig) Validate() error {
	var errs []error
	switch c.Translation.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("translation.provider: unknown provider %q", c.Translation.Provider))
	}
	if c.Translation.DelayMs < 0 {
		errs = append(errs, errors.New("translation.delay_ms must not be negative"))
	}
	if c.Translation.CheckpointEvery < 1 {
		errs = append(errs, errors.New("translation.checkpoint_every must be at least 1"))
	}
	switch c.Render.Format {
	case "pdf", "html":
	default:
		errs = append(errs, fmt.Errorf("render.format: unknown format %q", c.Render.Format))
	}
	switch c.Render.PageSize {
	case "trade", "a5", "letter":
	default:
		errs = append(errs, fmt.Errorf("render.page_size: unknown page size %q", c.Render.PageSize))
	}
	if strings.TrimSpace(c.Paths.Checkpoint) == "" {
		errs = append(errs, errors.New("paths.checkpoint is required"))
	}
	return errors.Join(errs...)
}

// Default models per provider, used when translation.model is empty.
const (
	DefaultGeminiModel = "gemma-3-27b-it"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// ModelName is the configured model or the provider's default.
func (t TranslationConfig) ModelName() string {
	if t.Model != "" {
		return t.Model
	}
	if t.Provider == "openai" {
		return DefaultOpenAIModel
	}
	return DefaultGeminiModel
}

// Delay is the pause between consecutive translation calls.
func (t TranslationConfig) Delay() time.Duration {
	return time.Duration(t.DelayMs) * time.Millisecond
}

// Timeout bounds a single translation call.
func (t TranslationConfig) Timeout() time.Duration {
	if t.TimeoutMs <= 0 {
		return time.Duration(Defaults().Translation.TimeoutMs) * time.Millisecond
	}
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// BreakerCooldown is how long an open circuit stays open.
func (t TranslationConfig) BreakerCooldown() time.Duration {
	return time.Duration(t.BreakerCooldownMs) * time.Millisecond
}

// JournalDSN resolves the journal location, defaulting to a SQLite file in
// the checkpoint directory.
func (p PathsConfig) JournalDSN() string {
	if strings.TrimSpace(p.Journal) != "" {
		return strings.TrimSpace(p.Journal)
	}
	return filepath.Join(filepath.Dir(p.Checkpoint), "journal.sqlite")
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	setStr(&dst.Paths.Source, src.Paths.Source)
	setStr(&dst.Paths.Checkpoint, src.Paths.Checkpoint)
	setStr(&dst.Paths.Output, src.Paths.Output)
	setStr(&dst.Paths.Journal, src.Paths.Journal)
	if src.Paths.Backups != 0 {
		dst.Paths.Backups = src.Paths.Backups
	}

	if v := strings.ToLower(strings.TrimSpace(src.Translation.Provider)); v != "" {
		dst.Translation.Provider = v
	}
	setStr(&dst.Translation.Model, src.Translation.Model)
	setStr(&dst.Translation.BaseURL, src.Translation.BaseURL)
	setStr(&dst.Translation.Style, src.Translation.Style)
	if src.Translation.Temperature != 0 {
		dst.Translation.Temperature = src.Translation.Temperature
	}
	// zero in the file reads as unset; PLAYTR_DELAY_MS=0 disables pacing
	if src.Translation.DelayMs > 0 {
		dst.Translation.DelayMs = src.Translation.DelayMs
	}
	setInt(&dst.Translation.CheckpointEvery, src.Translation.CheckpointEvery)
	setInt(&dst.Translation.TimeoutMs, src.Translation.TimeoutMs)
	setInt(&dst.Translation.BreakerFailures, src.Translation.BreakerFailures)
	setInt(&dst.Translation.BreakerCooldownMs, src.Translation.BreakerCooldownMs)

	if v := strings.ToLower(strings.TrimSpace(src.Render.Format)); v != "" {
		dst.Render.Format = v
	}
	if v := strings.ToLower(strings.TrimSpace(src.Render.PageSize)); v != "" {
		dst.Render.PageSize = v
	}
	setStr(&dst.Render.Title, src.Render.Title)
	setStr(&dst.Render.Subtitle, src.Render.Subtitle)
	setStr(&dst.Render.Author, src.Render.Author)
	setStr(&dst.Render.Adapter, src.Render.Adapter)
	setStr(&dst.Render.CopyrightHolder, src.Render.CopyrightHolder)
	setInt(&dst.Render.Year, src.Render.Year)
	setStr(&dst.Render.Note, src.Render.Note)

	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	setStr(&dst.Logging.File, src.Logging.File)
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	strOverrides := []struct {
		env string
		dst *string
	}{
		{EnvSource, &cfg.Paths.Source},
		{EnvCheckpoint, &cfg.Paths.Checkpoint},
		{EnvOutput, &cfg.Paths.Output},
		{EnvJournal, &cfg.Paths.Journal},
		{EnvModel, &cfg.Translation.Model},
		{EnvBaseURL, &cfg.Translation.BaseURL},
		{EnvStyle, &cfg.Translation.Style},
		{EnvLogFile, &cfg.Logging.File},
	}
	for _, o := range strOverrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.dst = v
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvProvider)); v != "" {
		cfg.Translation.Provider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvRenderFormat)); v != "" {
		cfg.Render.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvDelayMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Translation.DelayMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCheckpointEvery)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Translation.CheckpointEvery = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
}

var overrideKeys = map[string]string{
	"paths.source":                 EnvSource,
	"paths.checkpoint":             EnvCheckpoint,
	"paths.output":                 EnvOutput,
	"paths.journal":                EnvJournal,
	"translation.provider":         EnvProvider,
	"translation.model":            EnvModel,
	"translation.base_url":         EnvBaseURL,
	"translation.style":            EnvStyle,
	"translation.delay_ms":         EnvDelayMs,
	"translation.checkpoint_every": EnvCheckpointEvery,
	"render.format":                EnvRenderFormat,
	"logging.level":                EnvLogLevel,
	"logging.format":               EnvLogFormat,
	"logging.source":               EnvLogSource,
	"logging.file":                 EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}
