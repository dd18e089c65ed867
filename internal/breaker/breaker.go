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

// Package breaker implements the per-replica circuit breaker state
// machine from §4.2: Closed -> Open -> HalfOpen -> Closed. No ecosystem
// breaker library surfaced anywhere in the example pack (grep turned
// up nothing for gobreaker/hystrix/circuitbreaker across every go.mod
// in the retrieval set), so this is hand-rolled per the spec's exact
// transition rules, the same way the spec calls out the breaker as a
// component to build rather than a delegated concern.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State is the externally visible breaker state.
type State int

// Breaker states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow when the breaker is open and the open
// timeout has not yet elapsed.
var ErrOpen = errors.New("circuit breaker is open")

// Params configures one Breaker instance.
type Params struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	HalfOpenPermits  int
}

// Breaker is a single per-replica circuit breaker. Safe for concurrent use.
type Breaker struct {
	params Params

	mu               sync.Mutex
	state            State
	openedAt         time.Time
	consecutiveFails int
	halfOpenSuccess  int
	halfOpenInFlight int
}

// New constructs a Breaker in the Closed state.
func New(p Params) *Breaker {
	if p.FailureThreshold <= 0 {
		p.FailureThreshold = 5
	}
	if p.SuccessThreshold <= 0 {
		p.SuccessThreshold = 3
	}
	if p.HalfOpenPermits <= 0 {
		p.HalfOpenPermits = 1
	}
	return &Breaker{params: p, state: StateClosed}
}

// State returns the current breaker state, resolving an expired Open
// window to HalfOpen as a side effect (matching the spec's "Open(t0):
// ... then -> HalfOpen(P)" transition, which fires on the next
// observation rather than via a background timer).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionFromOpenLocked()
	return b.state
}

func (b *Breaker) maybeTransitionFromOpenLocked() {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.params.OpenTimeout {
		b.state = StateHalfOpen
		b.halfOpenSuccess = b.params.SuccessThreshold
		b.halfOpenInFlight = 0
	}
}

// Permit is returned by Allow and must be resolved with Success() or
// Failure() to advance the breaker's state.
type Permit struct {
	b        *Breaker
	probed   bool
	resolved bool
}

// Allow reports whether a request may proceed. In Closed, all traffic
// is allowed. In Open (before the timeout elapses), ErrOpen is
// returned. In HalfOpen, at most HalfOpenPermits probes are admitted
// concurrently; beyond that, ErrOpen is returned so the caller tries
// the next replica.
func (b *Breaker) Allow() (Permit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionFromOpenLocked()

	switch b.state {
	case StateClosed:
		return Permit{b: b}, nil
	case StateOpen:
		return Permit{}, ErrOpen
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.params.HalfOpenPermits {
			return Permit{}, ErrOpen
		}
		b.halfOpenInFlight++
		return Permit{b: b, probed: true}, nil
	default:
		return Permit{}, ErrOpen
	}
}

// Success reports a classified success (§4.15) for the request this
// permit was issued for.
func (p *Permit) Success() {
	if p.b == nil || p.resolved {
		return
	}
	p.resolved = true
	b := p.b
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFails = 0
	case StateHalfOpen:
		if p.probed {
			b.halfOpenInFlight--
		}
		b.halfOpenSuccess--
		if b.halfOpenSuccess <= 0 {
			b.state = StateClosed
			b.consecutiveFails = 0
		}
	}
}

// Failure reports a classified transient failure (§4.15) for the
// request this permit was issued for. Client errors (HTTP 4xx other
// than 408/429) must not be reported here — the caller classifies
// before calling Success/Failure.
func (p *Permit) Failure() {
	if p.b == nil || p.resolved {
		return
	}
	p.resolved = true
	b := p.b
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.params.FailureThreshold {
			b.trip()
		}
	case StateHalfOpen:
		if p.probed {
			b.halfOpenInFlight--
		}
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = time.Now()
	b.consecutiveFails = 0
}
