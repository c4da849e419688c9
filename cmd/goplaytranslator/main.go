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
	"os"

	"goplaytranslator/internal/config"
	"goplaytranslator/internal/orchestrator"
	"goplaytranslator/internal/script"
	"goplaytranslator/internal/storage"
)

// Process exit codes.
const (
	exitOK          = 0
	exitGeneric     = 1
	exitCrash       = 2 // see crash.ExitCode
	exitParse       = 3
	exitCheckpoint  = 4
	exitTranslator  = 5
	exitRender      = 6
	exitInterrupted = 130
)

func main() {
	os.Exit(execute(newRootCommand(newCommandContext()), os.Stderr))
}

func execute(root interface{ Execute() error }, stderr io.Writer) int {
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	code := exitCodeFor(err)
	if code == exitInterrupted {
		fmt.Fprintln(stderr, "interrupted; progress up to the last checkpoint is saved")
		return code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return code
}

// stageError attaches the failing pipeline stage and its exit code to err.
type stageError struct {
	stage string
	code  int
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func stageErr(stage string, code int, err error) error {
	if err == nil {
		return nil
	}
	return &stageError{stage: stage, code: code, err: err}
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	var se *stageError
	if errors.As(err, &se) {
		return se.code
	}
	var pe *script.ParseError
	switch {
	case errors.As(err, &pe):
		return exitParse
	case errors.Is(err, storage.ErrInvalidCheckpoint),
		errors.Is(err, storage.ErrLocked),
		errors.Is(err, orchestrator.ErrSaveFailed):
		return exitCheckpoint
	case errors.Is(err, config.ErrNoAPIKey):
		return exitTranslator
	}
	return exitGeneric
}
