/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "regexp"

var (
	reContents = regexp.MustCompile(`(?i)^(?:table\s+of\s+)?contents\.?:?$`)
	rePersonae = regexp.MustCompile(`(?i)^(?:dramatis\s+person(?:ae|æ)|persons\s+represented|characters\s+of\s+the\s+play)\.?:?$`)
	reBookOpen = regexp.MustCompile(`^\*\*\*\s*START OF`)
	reBookEnd  = regexp.MustCompile(`^\*\*\*\s*END OF`)
)

// skippedLines marks the lines that carry no play content: an ebook
// wrapper around the text, plus a table of contents and a list of persons
// ahead of the first speech or stage direction.
func skippedLines(lines []string) []bool {
	norm := make([]string, len(lines))
	for i, raw := range lines {
		norm[i] = normalizeLine(raw)
	}
	skip := make([]bool, len(lines))
	markBookWrapper(norm, skip)

	for i := 0; i < len(norm); {
		l := norm[i]
		switch {
		case skip[i] || l == "":
			i++
		case reContents.MatchString(l):
			i = skipContents(norm, skip, i)
		case rePersonae.MatchString(l):
			i = skipPersonae(norm, skip, i)
		case opensBody(l):
			return skip
		default:
			i++
		}
	}
	return skip
}

func markBookWrapper(norm []string, skip []bool) {
	for i, l := range norm {
		if reBookOpen.MatchString(l) {
			for j := 0; j <= i; j++ {
				skip[j] = true
			}
			break
		}
	}
	for i, l := range norm {
		if reBookEnd.MatchString(l) {
			for j := i; j < len(norm); j++ {
				skip[j] = true
			}
			break
		}
	}
}

// opensBody reports lines that only appear once the play itself has begun.
func opensBody(l string) bool {
	if _, ok := strongCue(l); ok {
		return true
	}
	return reKeyDir.MatchString(l) || isWrappedDirection(l)
}

// skipContents hides a table of contents starting at start and returns the
// index of the first line after it. When the play follows the table
// directly, the trailing markers that open the body are kept.
func skipContents(norm []string, skip []bool, start int) int {
	skip[start] = true
	last := -1
	for i := start + 1; i < len(norm); i++ {
		l := norm[i]
		switch {
		case l == "":
			skip[i] = true
		case markerRank(l) > 0:
			skip[i] = true
			last = i
		default:
			if last >= 0 && !rePersonae.MatchString(l) {
				for j := bodyStart(norm, last); j < i; j++ {
					skip[j] = false
				}
			}
			return i
		}
	}
	return len(norm)
}

// bodyStart walks back from the last marker of a table of contents to the
// highest-ranking marker directly above it.
func bodyStart(norm []string, last int) int {
	start := last
	for {
		p := start - 1
		for p >= 0 && norm[p] == "" {
			p--
		}
		if p < 0 || markerRank(norm[p]) <= markerRank(norm[start]) {
			return start
		}
		start = p
	}
}

// skipPersonae hides a list of persons up to the next act, scene or named
// heading. A list that is never followed by one is left alone.
func skipPersonae(norm []string, skip []bool, start int) int {
	for i := start + 1; i < len(norm); i++ {
		if markerRank(norm[i]) > 1 {
			for j := start; j < i; j++ {
				skip[j] = true
			}
			return i
		}
	}
	return start + 1
}

func markerRank(l string) int {
	switch {
	case reAct.MatchString(l):
		return 3
	case reScene.MatchString(l), reNamed.MatchString(l):
		return 2
	}
	if _, ok := strongCue(l); ok {
		return 1
	}
	return 0
}
