/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package translate

import (
	"context"
	"fmt"

	"goplaytranslator/internal/config"
)

// New builds the configured provider, wrapped in a circuit breaker unless
// breaker_failures is zero.
func New(ctx context.Context, cfg config.TranslationConfig, apiKey string) (Translator, error) {
	var tr Translator
	switch cfg.Provider {
	case "", "gemini":
		g, err := NewGemini(ctx, GeminiOptions{
			APIKey:      apiKey,
			Model:       cfg.ModelName(),
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout(),
		})
		if err != nil {
			return nil, err
		}
		tr = g
	case "openai":
		o, err := NewOpenAI(OpenAIOptions{
			APIKey:      apiKey,
			Model:       cfg.ModelName(),
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout(),
		})
		if err != nil {
			return nil, err
		}
		tr = o
	default:
		return nil, fmt.Errorf("unknown translation provider %q", cfg.Provider)
	}
	if cfg.BreakerFailures <= 0 {
		return tr, nil
	}
	return NewBreaker(tr, BreakerSettings{
		Failures: uint32(cfg.BreakerFailures),
		Cooldown: cfg.BreakerCooldown(),
	}), nil
}
