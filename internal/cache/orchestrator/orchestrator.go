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

// Package orchestrator implements the tiered cache walk (§4.11):
// memory -> distributed -> disk, promoting hits upward and coalescing
// concurrent misses for the same key through a single-flight Inflight
// Registry.
package orchestrator

import (
	"time"

	"github.com/comcast/originshield/internal/cache"
	"github.com/comcast/originshield/internal/util/log"
	"github.com/comcast/originshield/internal/util/metrics"
)

// Result is one cached object's raw bytes plus the TTL it should be
// (re)written with on promotion.
type Result struct {
	Data []byte
	TTL  time.Duration
}

type writebackJob struct {
	tier  cache.Tier
	key   string
	value []byte
	ttl   time.Duration
}

// Orchestrator walks an ordered list of tiers (fastest first) on Get,
// promoting a lower-tier hit into every faster tier above it.
type Orchestrator struct {
	tiers     []cache.Tier
	inflight  *inflightRegistry
	writeback chan writebackJob
	done      chan struct{}
}

// New constructs an Orchestrator over tiers, ordered fastest-to-slowest
// (memory, distributed, disk). A bounded write-back channel drops
// promotion jobs under backpressure rather than blocking the request
// path, matching the teacher's Progressive Collapsed Forwarder's
// "don't let a slow consumer stall the fast path" posture.
func New(tiers []cache.Tier) *Orchestrator {
	o := &Orchestrator{
		tiers:     tiers,
		inflight:  newInflightRegistry(),
		writeback: make(chan writebackJob, 256),
		done:      make(chan struct{}),
	}
	go o.writebackLoop()
	return o
}

// Get walks the configured tiers in order. On a hit, it promotes the
// value into every tier above the one it was found in (asynchronously
// for all but the fastest, memory tier) and returns it. On a miss
// across every tier, fetch is invoked — coalesced across concurrent
// callers for the same key via the Inflight Registry — and its result
// is written down into every tier.
func (o *Orchestrator) Get(key string, fetch func() (*Result, error)) (*Result, bool, error) {
	for i, t := range o.tiers {
		data, err := t.Get(key)
		if err == nil {
			metrics.CacheLookups.WithLabelValues(t.Name(), "hit").Inc()
			result := &Result{Data: data}
			o.promote(key, result, i)
			return result, true, nil
		}
		metrics.CacheLookups.WithLabelValues(t.Name(), "miss").Inc()
	}

	result, err, shared := o.inflight.Do(key, fetch)
	if err != nil {
		return nil, false, err
	}
	if !shared {
		o.writeDown(key, result, len(o.tiers))
	}
	return result, false, nil
}

// promote writes result into every tier faster than foundAt (index
// foundAt in o.tiers). Memory promotion happens synchronously so a
// hot key is immediately faster on the very next request; distributed
// and disk promotion happen on the bounded write-back channel.
func (o *Orchestrator) promote(key string, result *Result, foundAt int) {
	for i := 0; i < foundAt; i++ {
		if i == 0 {
			o.tiers[i].Set(key, result.Data, result.TTL)
			continue
		}
		o.enqueueWriteback(o.tiers[i], key, result.Data, result.TTL)
	}
}

// writeDown writes a freshly fetched result into every configured
// tier: memory synchronously, distributed and disk asynchronously.
func (o *Orchestrator) writeDown(key string, result *Result, tierCount int) {
	for i := 0; i < tierCount; i++ {
		if i == 0 {
			o.tiers[i].Set(key, result.Data, result.TTL)
			continue
		}
		o.enqueueWriteback(o.tiers[i], key, result.Data, result.TTL)
	}
}

func (o *Orchestrator) enqueueWriteback(t cache.Tier, key string, value []byte, ttl time.Duration) {
	select {
	case o.writeback <- writebackJob{tier: t, key: key, value: value, ttl: ttl}:
	default:
		log.Warn("cache write-back channel full, dropping promotion", log.Pairs{
			"tier": t.Name(), "key": key,
		})
	}
}

func (o *Orchestrator) writebackLoop() {
	for {
		select {
		case job := <-o.writeback:
			if err := job.tier.Set(job.key, job.value, job.ttl); err != nil {
				log.Warn("cache write-back failed", log.Pairs{
					"tier": job.tier.Name(), "key": job.key, "error": err.Error(),
				})
			}
		case <-o.done:
			return
		}
	}
}

// Invalidate removes key from every tier.
func (o *Orchestrator) Invalidate(key string) {
	for _, t := range o.tiers {
		if err := t.Delete(key); err != nil {
			log.Warn("cache invalidate failed", log.Pairs{"tier": t.Name(), "key": key, "error": err.Error()})
		}
	}
}

// InFlightCount reports the number of keys currently being fetched
// from origin, for the InflightOrigin gauge.
func (o *Orchestrator) InFlightCount() int {
	return o.inflight.InFlightCount()
}

// Close stops the write-back loop and closes every tier.
func (o *Orchestrator) Close() error {
	close(o.done)
	var firstErr error
	for _, t := range o.tiers {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
