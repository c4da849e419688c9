/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package translate

import (
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when the service answers without any text.
var ErrEmptyResponse = errors.New("empty response")

// BuildPrompt renders the single-turn instruction sent for one passage.
// style is the register plus any per-passage context ("... The speaker is
// ROMEO").
func BuildPrompt(text, style string) string {
	style = strings.TrimRight(strings.TrimSpace(style), ".")
	var b strings.Builder
	b.WriteString("Directly translate the following Shakespearean text into ")
	b.WriteString(style)
	b.WriteString(".\n")
	b.WriteString("Do not provide commentary, explanations, or multiple options. ")
	b.WriteString("Only provide the single best translation in the requested style.\n")
	b.WriteString(`Original: "`)
	b.WriteString(text)
	b.WriteString("\"\nTranslation:")
	return b.String()
}

// cleanResponse strips the framing models tend to echo back: an answer label
// and one pair of enclosing quotes around an otherwise unquoted answer.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	for _, label := range []string{"Translation:", "translation:"} {
		if rest, ok := strings.CutPrefix(s, label); ok {
			s = strings.TrimSpace(rest)
			break
		}
	}
	for _, q := range [][2]string{{`"`, `"`}, {"\u201c", "\u201d"}} {
		if !strings.HasPrefix(s, q[0]) || !strings.HasSuffix(s, q[1]) || len(s) < len(q[0])+len(q[1]) {
			continue
		}
		inner := s[len(q[0]) : len(s)-len(q[1])]
		if !strings.Contains(inner, q[0]) && !strings.Contains(inner, q[1]) && strings.TrimSpace(inner) != "" {
			s = strings.TrimSpace(inner)
		}
		break
	}
	return s
}
