/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage persists translation progress.
// The checkpoint is a single JSON snapshot of the whole document tree written
// with temp-file + fsync + rename semantics and timestamped backups of the
// previous snapshot. Loads validate the snapshot against an embedded JSON
// schema and fall back to the newest valid backup.
// A run journal (SQLite by default, Postgres when configured) keeps the
// history of runs and per-element failures; it is advisory and never needed
// to resume.
package storage
