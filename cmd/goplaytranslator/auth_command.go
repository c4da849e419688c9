/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"goplaytranslator/internal/config"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:         "auth",
		Short:       "Manage translator API keys in the OS keyring",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	authCmd.AddCommand(&cobra.Command{
		Use:   "set-key <provider>",
		Short: "Store the API key for a provider (read from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f, ok := ctx.stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
				fmt.Fprintf(cmd.ErrOrStderr(), "API key for %s: ", args[0])
			}
			key, err := readKey(ctx.stdin)
			if err != nil {
				return err
			}
			if err := config.StoreAPIKey(args[0], key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored API key for %s\n", args[0])
			return nil
		},
	})

	authCmd.AddCommand(&cobra.Command{
		Use:   "delete-key <provider>",
		Short: "Remove the stored API key for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeleteAPIKey(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed API key for %s\n", args[0])
			return nil
		},
	})

	return authCmd
}

func readKey(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", errors.New("no API key given on stdin")
	}
	return key, nil
}
