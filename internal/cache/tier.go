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

// Package cache defines the shared Tier interface every cache backend
// (memory, distributed, disk) implements, generalizing the teacher's
// single pluggable cache.Cache (Retrieve/Store/Remove/Configuration)
// into one of three tiers an orchestrator walks in order (§4.11).
package cache

import (
	"errors"
	"time"

	"github.com/comcast/originshield/internal/config"
)

// ErrKeyNotFound is returned by Get when a tier has no entry for the key.
var ErrKeyNotFound = errors.New("cache: key not found")

// Tier is the interface every cache backend satisfies: memory
// (ristretto), distributed (redis), and disk (bbolt/badger-backed).
type Tier interface {
	// Name identifies this tier instance for logging/metrics.
	Name() string

	// Get retrieves the raw bytes stored under key. Returns
	// ErrKeyNotFound on a miss. Implementations must never return an
	// error for a benign miss.
	Get(key string) ([]byte, error)

	// Set stores raw bytes under key with the given TTL.
	Set(key string, value []byte, ttl time.Duration) error

	// Delete removes key, if present. Deleting an absent key is not an error.
	Delete(key string) error

	// Close releases any resources (file handles, connections) held by
	// this tier.
	Close() error

	// Configuration returns the CachingConfig this tier was built from.
	Configuration() *config.CachingConfig
}
