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
	"errors"
	"log/slog"
	"time"

	applog "goplaytranslator/internal/log"

	"github.com/sony/gobreaker"
)

// BreakerSettings tunes the circuit breaker around a translator.
type BreakerSettings struct {
	// Failures is the number of consecutive transient failures that opens
	// the breaker.
	Failures uint32
	// Cooldown is how long the breaker stays open before a probe call.
	Cooldown time.Duration
}

// Breaker stops hammering a service that keeps failing. While open it fails
// fast with transient errors, so the affected passages are retried on the
// next run.
type Breaker struct {
	next Translator
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps tr. Permanent failures and caller cancellation do not
// count towards tripping.
func NewBreaker(tr Translator, s BreakerSettings) *Breaker {
	if s.Failures == 0 {
		s.Failures = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	l := applog.WithComponent("translate")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "translator",
		MaxRequests: 1,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.Failures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var te *Error
			if errors.As(err, &te) {
				return te.Kind == KindPermanent
			}
			// the caller gave up; says nothing about the service
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return &Breaker{next: tr, cb: cb}
}

// Translate calls the wrapped translator unless the breaker is open.
func (b *Breaker) Translate(ctx context.Context, text, style string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Translate(ctx, text, style)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", Transient(err)
		}
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state ("closed", "half-open", "open").
func (b *Breaker) State() string { return b.cb.State().String() }
