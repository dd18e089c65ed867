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

// Package memory is the first cache.Tier in the orchestrator's walk
// (§4.8): a thin adapter over dgraph-io/ristretto, whose TinyLFU
// admission policy is the "memory cache" the spec asks for, the same
// way the teacher delegates storage mechanics to a backend-specific
// library behind its shared cache.Cache interface.
package memory

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/comcast/originshield/internal/cache"
	"github.com/comcast/originshield/internal/config"
	"github.com/comcast/originshield/internal/util/log"
)

// Cache is a cache.Tier backed by ristretto.
type Cache struct {
	name string
	rc   *ristretto.Cache
	cfg  *config.CachingConfig
}

// New constructs a memory Cache sized per cfg.Memory.
func New(name string, cfg *config.CachingConfig) (*Cache, error) {
	numCounters := cfg.Memory.NumCounters
	if numCounters <= 0 {
		numCounters = 1e7
	}
	maxCost := cfg.Memory.MaxSizeBytes
	if maxCost <= 0 {
		maxCost = 256 * 1024 * 1024
	}

	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Cache{name: name, rc: rc, cfg: cfg}, nil
}

// Name identifies this tier for logging and metrics.
func (c *Cache) Name() string {
	return c.name
}

// Get returns the bytes stored under key, or cache.ErrKeyNotFound on a miss.
func (c *Cache) Get(key string) ([]byte, error) {
	v, ok := c.rc.Get(key)
	if !ok {
		return nil, cache.ErrKeyNotFound
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, cache.ErrKeyNotFound
	}
	return b, nil
}

// Set admits value under key with the given TTL, subject to ristretto's
// TinyLFU admission policy: a Set may be silently rejected if the
// policy decides the item isn't worth the eviction it would cause.
// Items larger than MaxItemBytes are never admitted.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	if c.cfg.Memory.MaxItemBytes > 0 && int64(len(value)) > c.cfg.Memory.MaxItemBytes {
		log.Debug("memory cache item exceeds max item size, skipping", log.Pairs{
			"cache": c.name, "key": key, "size": len(value),
		})
		return nil
	}
	cost := int64(len(value))
	if ttl > 0 {
		c.rc.SetWithTTL(key, value, cost, ttl)
	} else {
		c.rc.Set(key, value, cost)
	}
	return nil
}

// Delete removes key from the memory cache, if present.
func (c *Cache) Delete(key string) error {
	c.rc.Del(key)
	return nil
}

// Close releases ristretto's background goroutines.
func (c *Cache) Close() error {
	c.rc.Close()
	return nil
}

// Configuration returns the CachingConfig this tier was built from.
func (c *Cache) Configuration() *config.CachingConfig {
	return c.cfg
}
