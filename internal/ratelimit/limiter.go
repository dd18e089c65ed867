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

// Package ratelimit implements the per (client_ip, bucket_name) token
// bucket limiter described at §4.14, built on golang.org/x/time/rate
// the same way the rest of the ecosystem in the example pack reaches
// for x/time/rate instead of hand-rolling a token bucket.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// trackedLimiter pairs a rate.Limiter with the last time it was
// touched, so the idle-eviction sweep can reclaim entries for clients
// that stopped sending traffic.
type trackedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter tracks one rate.Limiter per (client IP, bucket name) pair and
// periodically evicts entries idle longer than IdleTTL, bounding memory
// use under a churning population of client IPs.
type Limiter struct {
	mu       sync.Mutex
	entries  map[string]*trackedLimiter
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
	maxEntries int

	stopSweep chan struct{}
}

// New constructs a Limiter allowing ratePerSec requests per second with
// the given burst, per (client IP, bucket) pair. Entries idle longer
// than idleTTL are evicted by a background sweep; maxTrackedClients
// bounds the table size, evicting the oldest entries first when
// exceeded (0 means unbounded).
func New(ratePerSec float64, burst int, idleTTL time.Duration, maxTrackedClients int) *Limiter {
	l := &Limiter{
		entries:    make(map[string]*trackedLimiter),
		rps:        rate.Limit(ratePerSec),
		burst:      burst,
		idleTTL:    idleTTL,
		maxEntries: maxTrackedClients,
		stopSweep:  make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow reports whether a request from clientIP against bucketName may
// proceed under the token bucket for that pair, creating the bucket's
// limiter lazily on first use.
func (l *Limiter) Allow(clientIP, bucketName string) bool {
	key := clientIP + "|" + bucketName

	l.mu.Lock()
	defer l.mu.Unlock()

	tl, ok := l.entries[key]
	if !ok {
		if l.maxEntries > 0 && len(l.entries) >= l.maxEntries {
			l.evictOldestLocked()
		}
		tl = &trackedLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[key] = tl
	}
	tl.lastAccess = time.Now()
	return tl.limiter.Allow()
}

// evictOldestLocked removes the least-recently-accessed entry. Called
// with mu held.
func (l *Limiter) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, tl := range l.entries {
		if first || tl.lastAccess.Before(oldestAt) {
			oldestKey = k
			oldestAt = tl.lastAccess
			first = false
		}
	}
	if oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}

// sweepLoop periodically removes entries idle past idleTTL. It runs
// until Close is called.
func (l *Limiter) sweepLoop() {
	if l.idleTTL <= 0 {
		return
	}
	interval := l.idleTTL / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.reapIdle()
		case <-l.stopSweep:
			return
		}
	}
}

func (l *Limiter) reapIdle() {
	cutoff := time.Now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, tl := range l.entries {
		if tl.lastAccess.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

// TrackedCount returns the number of (client IP, bucket) pairs
// currently tracked, for metrics/tests.
func (l *Limiter) TrackedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Close stops the background idle-eviction sweep.
func (l *Limiter) Close() {
	close(l.stopSweep)
}
