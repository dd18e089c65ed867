/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package model defines the per-request state carried through the
// streaming pipeline (§3, §4.12), following the teacher's own
// context-carried-value pattern (internal/util/context accessors in
// the teacher's middleware) generalized from a single *config.PathConfig
// to the full RequestContext the spec's data model describes.
package model

import (
	"context"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/comcast/originshield/internal/config"
)

// State is the streaming pipeline's per-request state machine (§4.12).
type State int

// Pipeline states, in transition order.
const (
	StateAccepted State = iota
	StateRouted
	StateAuthorized
	StateRateChecked
	StateDecided
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateRouted:
		return "routed"
	case StateAuthorized:
		return "authorized"
	case StateRateChecked:
		return "rate_checked"
	case StateDecided:
		return "decided"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RequestContext is the per-request state described in §3: allocated
// at accept time, dropped on completion, never shared across requests.
type RequestContext struct {
	Method       string
	Path         string
	ClientAddr   string
	RequestID    ulid.ULID
	StartInstant time.Time

	Bucket    *config.BucketConfig
	ObjectKey string

	Token     string
	Principal string

	CacheKey string
	Range    string
	IfNoneMatch, IfModifiedSince string

	State State
}

// New allocates a RequestContext for an inbound request, assigning a
// fresh request ID (§3, oklog/ulid/v2).
func New(r *http.Request) *RequestContext {
	return &RequestContext{
		Method:          r.Method,
		Path:            r.URL.Path,
		ClientAddr:      clientAddr(r),
		RequestID:       ulid.Make(),
		StartInstant:    time.Now(),
		Range:           r.Header.Get("Range"),
		IfNoneMatch:     r.Header.Get("If-None-Match"),
		IfModifiedSince: r.Header.Get("If-Modified-Since"),
		State:           StateAccepted,
	}
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

type contextKey int

const requestContextKey contextKey = iota

// WithContext returns a context carrying rc, retrievable by FromContext.
func WithContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// FromContext retrieves the RequestContext stored by WithContext, if any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey).(*RequestContext)
	return rc, ok
}
