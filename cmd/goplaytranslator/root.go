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
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"goplaytranslator/internal/config"
	applog "goplaytranslator/internal/log"
	"goplaytranslator/internal/translate"
)

type commandContext struct {
	configFlag string
	logLevel   string
	logFormat  string
	logFile    string

	configOnce sync.Once
	cfg        config.AppConfig
	configErr  error

	stdin io.Reader

	// seams for tests
	apiKey        func(provider string) (string, error)
	newTranslator func(ctx context.Context, cfg config.TranslationConfig, apiKey string) (translate.Translator, error)
	logOutput     io.Writer
}

func newCommandContext() *commandContext {
	return &commandContext{
		stdin:         os.Stdin,
		apiKey:        config.APIKey,
		newTranslator: translate.New,
	}
}

// ensureConfig loads the configuration once and initializes logging from it.
// Log flags win over the config file and environment.
func (c *commandContext) ensureConfig() (config.AppConfig, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevel != "" {
			cfg.Logging.Level = c.logLevel
		}
		if c.logFormat != "" {
			cfg.Logging.Format = c.logFormat
		}
		if c.logFile != "" {
			cfg.Logging.File = c.logFile
		}
		applog.Init(applog.Options{
			Level:     cfg.Logging.Level,
			Format:    cfg.Logging.Format,
			AddSource: cfg.Logging.Source,
			File:      cfg.Logging.File,
			Output:    c.logOutput,
		})
		c.cfg = cfg
	})
	return c.cfg, c.configErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "goplaytranslator",
		Short:         "Translate a play script and render a side-by-side edition",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&ctx.logFormat, "log-format", "", "Log format (console, json, auto)")
	rootCmd.PersistentFlags().StringVar(&ctx.logFile, "log-file", "", "Also write JSON logs to this file, rotated")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newParseCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newAuthCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
