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

// Package distributed is the Redis-backed cache.Tier (§4.10): a
// go-redis/redis v6 client pool, with every call wrapped so connect/
// timeout/protocol errors degrade to a cache miss rather than
// propagating to the orchestrator, and an internal breaker.Breaker
// that trips the adapter into a fast-miss mode under repeated failure
// to avoid stalling the request path on a dead Redis.
package distributed

import (
	"time"

	"github.com/go-redis/redis"

	"github.com/comcast/originshield/internal/breaker"
	"github.com/comcast/originshield/internal/cache"
	"github.com/comcast/originshield/internal/config"
	"github.com/comcast/originshield/internal/util/log"
)

// Cache is a cache.Tier backed by a Redis client.
type Cache struct {
	name string
	cfg  *config.CachingConfig
	rdb  *redis.Client
	br   *breaker.Breaker
}

// New constructs a Cache against cfg.Redis.
func New(name string, cfg *config.CachingConfig) (*Cache, error) {
	opts := &redis.Options{
		Addr:         cfg.Redis.Endpoint,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  msToDuration(cfg.Redis.DialTimeoutMS, 5*time.Second),
		ReadTimeout:  msToDuration(cfg.Redis.ReadTimeoutMS, 3*time.Second),
		WriteTimeout: msToDuration(cfg.Redis.WriteTimeoutMS, 3*time.Second),
	}
	rdb := redis.NewClient(opts)

	threshold := cfg.Redis.BreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	br := breaker.New(breaker.Params{
		FailureThreshold: threshold,
		SuccessThreshold: 2,
		OpenTimeout:      10 * time.Second,
		HalfOpenPermits:  1,
	})

	return &Cache{name: name, cfg: cfg, rdb: rdb, br: br}, nil
}

// newWithClient is used by tests to inject a client pointed at miniredis.
func newWithClient(name string, cfg *config.CachingConfig, rdb *redis.Client) *Cache {
	return &Cache{
		name: name,
		cfg:  cfg,
		rdb:  rdb,
		br: breaker.New(breaker.Params{
			FailureThreshold: 5, SuccessThreshold: 2,
			OpenTimeout: 10 * time.Second, HalfOpenPermits: 1,
		}),
	}
}

func msToDuration(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// Name identifies this tier.
func (c *Cache) Name() string {
	return c.name
}

// Get returns the bytes stored under key. Any Redis-side failure
// (timeout, connection refused, breaker-open) degrades to
// cache.ErrKeyNotFound rather than an error, per §4.10's graceful
// degradation requirement.
func (c *Cache) Get(key string) ([]byte, error) {
	permit, err := c.br.Allow()
	if err != nil {
		return nil, cache.ErrKeyNotFound
	}

	v, err := c.rdb.Get(key).Bytes()
	if err == redis.Nil {
		permit.Success()
		return nil, cache.ErrKeyNotFound
	}
	if err != nil {
		permit.Failure()
		log.Warn("distributed cache get failed, degrading to miss", log.Pairs{
			"cache": c.name, "key": key, "error": err.Error(),
		})
		return nil, cache.ErrKeyNotFound
	}
	permit.Success()
	return v, nil
}

// Set stores value under key. Failures are logged and swallowed —
// a write that doesn't happen is still a correct tiered cache, just a
// colder one.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	permit, err := c.br.Allow()
	if err != nil {
		return nil
	}
	if err := c.rdb.Set(key, value, ttl).Err(); err != nil {
		permit.Failure()
		log.Warn("distributed cache set failed, degrading silently", log.Pairs{
			"cache": c.name, "key": key, "error": err.Error(),
		})
		return nil
	}
	permit.Success()
	return nil
}

// Delete removes key. Failures are logged and swallowed.
func (c *Cache) Delete(key string) error {
	permit, err := c.br.Allow()
	if err != nil {
		return nil
	}
	if err := c.rdb.Del(key).Err(); err != nil {
		permit.Failure()
		log.Warn("distributed cache delete failed", log.Pairs{
			"cache": c.name, "key": key, "error": err.Error(),
		})
		return nil
	}
	permit.Success()
	return nil
}

// Close closes the underlying Redis client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Configuration returns the CachingConfig this tier was built from.
func (c *Cache) Configuration() *config.CachingConfig {
	return c.cfg
}
