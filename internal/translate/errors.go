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
	"fmt"
	"net/http"
)

// ErrorKind separates failures worth retrying on the next run from ones the
// service will keep refusing.
type ErrorKind uint8

const (
	KindTransient ErrorKind = iota + 1 // rate limit, timeout, network, empty answer
	KindPermanent                      // rejected content, bad request
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error is a classified translation failure.
type Error struct {
	Kind   ErrorKind
	Status int // HTTP status when the service answered, else 0
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s translation error (HTTP %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s translation error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure.
func Transient(err error) *Error { return &Error{Kind: KindTransient, Err: err} }

// Permanent wraps err as a failure the service will not accept on retry.
func Permanent(err error) *Error { return &Error{Kind: KindPermanent, Err: err} }

// Classify returns the kind of err. Unclassified errors count as transient.
func Classify(err error) ErrorKind {
	if err == nil {
		return 0
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindTransient
}

// IsPermanent reports whether err was classified as permanent.
func IsPermanent(err error) bool { return Classify(err) == KindPermanent }

// fromStatus maps an HTTP status to a kind: throttling, timeouts and server
// errors are transient, other client errors are permanent. A zero status
// means the request never got an answer and is transient.
func fromStatus(code int, err error) *Error {
	kind := KindPermanent
	switch {
	case code == 0, code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
		kind = KindTransient
	}
	return &Error{Kind: kind, Status: code, Err: err}
}

// callError converts a failed service call. Cancellation of the caller's
// context is returned untouched so it is not mistaken for a service failure;
// an expired per-call timeout is transient.
func callError(ctx context.Context, code int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fromStatus(code, err)
}
