/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package translate wraps the external translation services behind one small
// interface and classifies their failures as transient or permanent.
package translate

import "context"

// Translator turns one passage into the requested style. Implementations
// return an *Error so callers can tell retryable failures from rejections.
type Translator interface {
	Translate(ctx context.Context, text, style string) (string, error)
}

// Func adapts a plain function to Translator.
type Func func(ctx context.Context, text, style string) (string, error)

func (f Func) Translate(ctx context.Context, text, style string) (string, error) {
	return f(ctx, text, style)
}
