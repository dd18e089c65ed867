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

// Package diskbadger is the alternate disk cache.Tier backend: an
// embedded-LSM key/value store (dgraph-io/badger) selected via
// CachingConfig.CacheType == "badger", the same way the teacher
// chooses among filesystem/bbolt/badger disk backends per bucket.
package diskbadger

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger"

	"github.com/comcast/originshield/internal/cache"
	"github.com/comcast/originshield/internal/config"
)

// Cache is a cache.Tier backed by a badger.DB.
type Cache struct {
	name string
	db   *badger.DB
	cfg  *config.CachingConfig
}

// New opens a badger-backed Cache at cfg.Badger.Directory.
func New(name string, cfg *config.CachingConfig) (*Cache, error) {
	dir := cfg.Badger.Directory
	if dir == "" {
		return nil, fmt.Errorf("diskbadger: directory not configured for cache %q", name)
	}
	valueDir := cfg.Badger.ValueDirectory
	if valueDir == "" {
		valueDir = dir
	}

	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = valueDir

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("diskbadger: opening %s: %w", dir, err)
	}
	return &Cache{name: name, db: db, cfg: cfg}, nil
}

// Name identifies this tier.
func (c *Cache) Name() string {
	return c.name
}

// Get returns the bytes stored under key, or cache.ErrKeyNotFound.
func (c *Cache) Get(key string) ([]byte, error) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, cache.ErrKeyNotFound
	}
	return value, nil
}

// Set stores value under key with the given TTL (badger evicts expired
// keys on its own compaction cycle).
func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete removes key, if present.
func (c *Cache) Delete(key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Close closes the underlying badger.DB.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Configuration returns the CachingConfig this tier was built from.
func (c *Cache) Configuration() *config.CachingConfig {
	return c.cfg
}
