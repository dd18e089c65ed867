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

// Package origin implements replica selection (§4.5) and the signed
// HTTP client that talks to the selected replica (§4.6).
package origin

import (
	"errors"
	"sort"
	"sync/atomic"

	"github.com/comcast/originshield/internal/breaker"
	"github.com/comcast/originshield/internal/config"
)

// ErrAllReplicasUnavailable is returned when every replica for a
// bucket is breaker-open; callers map this to an HTTP 503.
var ErrAllReplicasUnavailable = errors.New("origin: all replicas unavailable")

// replicaState pairs a configured replica with its circuit breaker.
type replicaState struct {
	cfg *config.ReplicaConfig
	br  *breaker.Breaker
}

// Selector picks a replica to serve a request from, ordered by
// priority then round-robined among equal-priority replicas, skipping
// open breakers and trying half-open replicas last, as probes.
type Selector struct {
	replicas []*replicaState
	rrCursor uint64
}

// NewSelector builds a Selector over the bucket's configured replicas
// and circuit breaker parameters.
func NewSelector(replicas []*config.ReplicaConfig, cbParams config.CircuitBreakerParams) *Selector {
	states := make([]*replicaState, len(replicas))
	for i, r := range replicas {
		states[i] = &replicaState{
			cfg: r,
			br: breaker.New(breaker.Params{
				FailureThreshold: cbParams.FailureThreshold,
				SuccessThreshold: cbParams.SuccessThreshold,
				OpenTimeout:      cbParams.OpenTimeout,
				HalfOpenPermits:  cbParams.HalfOpenPermits,
			}),
		}
	}
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].cfg.Priority < states[j].cfg.Priority
	})
	return &Selector{replicas: states}
}

// Selection is one replica chosen to serve a request, with the breaker
// permit the caller must resolve via Success/Failure once the request
// completes.
type Selection struct {
	Replica *config.ReplicaConfig
	Permit  breaker.Permit
}

// Select picks the next replica to try. Replicas are grouped by
// priority, and every tier, best priority first, is searched round-robin
// for a closed replica before any half-open replica is offered. A
// half-open replica is returned only when no closed replica in any tier
// is available, and then from the best priority tier that has one.
func (s *Selector) Select() (Selection, error) {
	if len(s.replicas) == 0 {
		return Selection{}, ErrAllReplicasUnavailable
	}

	tiers := groupByPriority(s.replicas)
	for _, tier := range tiers {
		if sel, ok := s.selectFromTier(tier, breaker.StateClosed); ok {
			return sel, nil
		}
	}
	for _, tier := range tiers {
		if sel, ok := s.selectFromTier(tier, breaker.StateHalfOpen); ok {
			return sel, nil
		}
	}
	return Selection{}, ErrAllReplicasUnavailable
}

func (s *Selector) selectFromTier(tier []*replicaState, wantState breaker.State) (Selection, bool) {
	n := len(tier)
	if n == 0 {
		return Selection{}, false
	}
	start := int(atomic.AddUint64(&s.rrCursor, 1)) % n
	for i := 0; i < n; i++ {
		rs := tier[(start+i)%n]
		if rs.br.State() != wantState {
			continue
		}
		permit, err := rs.br.Allow()
		if err != nil {
			continue
		}
		return Selection{Replica: rs.cfg, Permit: permit}, true
	}
	return Selection{}, false
}

// Healthy reports whether at least one replica's circuit breaker is
// not open, the readiness condition a bucket must meet for /ready (§6).
func (s *Selector) Healthy() bool {
	for _, rs := range s.replicas {
		if rs.br.State() != breaker.StateOpen {
			return true
		}
	}
	return false
}

func groupByPriority(states []*replicaState) [][]*replicaState {
	var tiers [][]*replicaState
	var current []*replicaState
	var currentPriority uint32
	first := true
	for _, rs := range states {
		if first || rs.cfg.Priority != currentPriority {
			if len(current) > 0 {
				tiers = append(tiers, current)
			}
			current = nil
			currentPriority = rs.cfg.Priority
			first = false
		}
		current = append(current, rs)
	}
	if len(current) > 0 {
		tiers = append(tiers, current)
	}
	return tiers
}
