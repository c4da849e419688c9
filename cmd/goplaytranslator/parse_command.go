/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"goplaytranslator/internal/domain"
	"goplaytranslator/internal/script"
)

func newParseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a script and print its structure",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.Paths.Source
			if len(args) == 1 {
				path = args[0]
			}
			play, err := script.ParseFile(path)
			if err != nil {
				return stageErr("parse", exitParse, fmt.Errorf("%s: %w", path, err))
			}
			printStructure(cmd.OutOrStdout(), play)
			return nil
		},
	}
}

func printStructure(w io.Writer, p *domain.Play) {
	if p.Title != "" {
		fmt.Fprintf(w, "Title:  %s\n", p.Title)
	}
	if p.Author != "" {
		fmt.Fprintf(w, "Author: %s\n", p.Author)
	}
	headers := []string{"Act", "Scene", "Heading", "Cues", "Dialogue", "Directions", "Headings"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight}
	var rows [][]string
	total := map[domain.Kind]int{}
	for _, act := range p.Acts {
		for _, sc := range act.Scenes {
			counts := map[domain.Kind]int{}
			for _, el := range sc.Elements {
				counts[el.Kind]++
				total[el.Kind]++
			}
			heading := sc.Heading
			if sc.Implicit {
				heading = "(implicit)"
			}
			rows = append(rows, []string{
				label(act.Label, act.Number),
				label(sc.Label, sc.Number),
				truncate(heading, 48),
				strconv.Itoa(counts[domain.KindSpeakerCue]),
				strconv.Itoa(counts[domain.KindDialogue]),
				strconv.Itoa(counts[domain.KindDirection]),
				strconv.Itoa(counts[domain.KindHeading]),
			})
		}
	}
	fmt.Fprintln(w, renderTable(headers, rows, aligns))
	pr := p.Progress()
	fmt.Fprintf(w, "%d acts, %d elements, %d translatable (%d dialogue, %d directions)\n",
		len(p.Acts), pr.Elements, pr.Translatable, total[domain.KindDialogue], total[domain.KindDirection])
}

func label(l string, n int) string {
	if l != "" {
		return l
	}
	return strconv.Itoa(n)
}
