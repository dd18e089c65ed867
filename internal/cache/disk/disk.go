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

// Package disk is the filesystem-backed cache.Tier (§4.9, persisted
// layout in §6): bodies live at ".data/<2 hex nibbles>/<key>.bin",
// written atomically (temp file + fsync + rename), with a bbolt
// database under ".index/index.db" as the crash-safe metadata index.
package disk

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coreos/bbolt"

	"github.com/comcast/originshield/internal/cache"
	"github.com/comcast/originshield/internal/cache/cachekey"
	"github.com/comcast/originshield/internal/config"
	"github.com/comcast/originshield/internal/util/log"
)

// Cache is a cache.Tier backed by the local filesystem plus a bbolt index.
type Cache struct {
	name     string
	cfg      *config.CachingConfig
	basePath string
	db       *bbolt.DB

	mu          sync.Mutex
	currentSize int64
	maxSize     int64
}

// New opens (and if necessary recovers) a disk Cache rooted at
// cfg.Filesystem.CachePath.
func New(name string, cfg *config.CachingConfig) (*Cache, error) {
	base := cfg.Filesystem.CachePath
	if base == "" {
		base = filepath.Join(os.TempDir(), "originshield-cache", name)
	}
	dataDir := filepath.Join(base, ".data")
	indexDir := filepath.Join(base, ".index")
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("disk cache: creating data dir: %w", err)
	}
	if err := os.MkdirAll(indexDir, 0700); err != nil {
		return nil, fmt.Errorf("disk cache: creating index dir: %w", err)
	}

	db, err := openIndex(filepath.Join(indexDir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("disk cache: opening index: %w", err)
	}

	maxSize := cfg.Index.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = 1024 * 1024 * 1024
	}

	c := &Cache{name: name, cfg: cfg, basePath: base, db: db, maxSize: maxSize}
	if err := c.recover(); err != nil {
		db.Close()
		return nil, fmt.Errorf("disk cache: recovery: %w", err)
	}
	return c, nil
}

// Name identifies this tier.
func (c *Cache) Name() string {
	return c.name
}

func (c *Cache) bodyPath(key string) string {
	shard, filename := cachekey.Key(key).ShardPath()
	return filepath.Join(c.basePath, ".data", shard, filename)
}

// Get reads the body for key, returning cache.ErrKeyNotFound when the
// index has no entry, the entry has expired, or the body file is
// missing (treated as a miss, never surfaced as an error).
func (c *Cache) Get(key string) ([]byte, error) {
	rec, found, err := getIndexRecord(c.db, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, cache.ErrKeyNotFound
	}
	if rec.ExpireAt > 0 && time.Now().Unix() >= rec.ExpireAt {
		c.Delete(key)
		return nil, cache.ErrKeyNotFound
	}

	body, err := ioutil.ReadFile(rec.Path)
	if err != nil {
		if os.IsNotExist(err) {
			deleteIndexRecord(c.db, key)
			return nil, cache.ErrKeyNotFound
		}
		return nil, err
	}
	return body, nil
}

// Set atomically writes value's bytes to the key's shard file
// (temp-write, fsync, rename) and records the metadata in the bbolt
// index, evicting the least-recently-stored entries first if the
// write would exceed the configured max size.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	path := c.bodyPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	if err := c.evictIfNeeded(int64(len(value))); err != nil {
		log.Warn("disk cache eviction pass failed", log.Pairs{"cache": c.name, "error": err.Error()})
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(value); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	var expireAt int64
	if ttl > 0 {
		expireAt = time.Now().Add(ttl).Unix()
	}
	rec := indexRecord{
		Path:      path,
		SizeBytes: int64(len(value)),
		StoredAt:  time.Now().Unix(),
		ExpireAt:  expireAt,
	}
	if err := putIndexRecord(c.db, key, rec); err != nil {
		return err
	}

	c.mu.Lock()
	c.currentSize += rec.SizeBytes
	c.mu.Unlock()
	return nil
}

// Delete removes key's body file and index entry, if present.
func (c *Cache) Delete(key string) error {
	rec, found, err := getIndexRecord(c.db, key)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if err := deleteIndexRecord(c.db, key); err != nil {
		return err
	}
	os.Remove(rec.Path)
	c.mu.Lock()
	c.currentSize -= rec.SizeBytes
	if c.currentSize < 0 {
		c.currentSize = 0
	}
	c.mu.Unlock()
	return nil
}

// Clear deletes every shard file and empties the bbolt bucket in one
// pass, rather than the "mark orphan, sweep later" lazy eviction an
// earlier design left as an open question — see DESIGN.md.
func (c *Cache) Clear() error {
	if err := clearIndex(c.db); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(c.basePath, ".data")); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(c.basePath, ".data"), 0700); err != nil {
		return err
	}
	c.mu.Lock()
	c.currentSize = 0
	c.mu.Unlock()
	return nil
}

// Close closes the bbolt index.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Configuration returns the CachingConfig this tier was built from.
func (c *Cache) Configuration() *config.CachingConfig {
	return c.cfg
}

// recover reconciles the bbolt index against the filesystem on
// startup: drop index entries whose body file is missing, and delete
// orphaned .bin/.tmp files that have no index entry (§4.9).
func (c *Cache) recover() error {
	indexed := map[string]bool{}
	var totalSize int64
	var staleKeys []string

	err := forEachIndexRecord(c.db, func(key string, rec indexRecord) error {
		if _, err := os.Stat(rec.Path); err != nil {
			staleKeys = append(staleKeys, key)
			return nil
		}
		indexed[rec.Path] = true
		totalSize += rec.SizeBytes
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range staleKeys {
		deleteIndexRecord(c.db, k)
	}

	dataDir := filepath.Join(c.basePath, ".data")
	err = filepath.Walk(dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".tmp" {
			os.Remove(path)
			return nil
		}
		if filepath.Ext(path) == ".bin" && !indexed[path] {
			os.Remove(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.currentSize = totalSize
	c.mu.Unlock()
	return nil
}

// evictIfNeeded evicts the least-recently-stored entries when an
// additional incomingSize bytes would exceed maxSize, freeing enough to
// bring the total (new bytes included) down to the low-water mark of
// maxSize minus Index.MaxSizeBackoffBytes, floored at zero.
func (c *Cache) evictIfNeeded(incomingSize int64) error {
	c.mu.Lock()
	needsEviction := c.currentSize+incomingSize > c.maxSize
	c.mu.Unlock()
	if !needsEviction {
		return nil
	}

	type candidate struct {
		key      string
		storedAt int64
		size     int64
	}
	var candidates []candidate
	err := forEachIndexRecord(c.db, func(key string, rec indexRecord) error {
		candidates = append(candidates, candidate{key: key, storedAt: rec.StoredAt, size: rec.SizeBytes})
		return nil
	})
	if err != nil {
		return err
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].storedAt < candidates[j].storedAt
	})

	c.mu.Lock()
	lowWater := c.maxSize - c.cfg.Index.MaxSizeBackoffBytes
	if lowWater < 0 {
		lowWater = 0
	}
	target := c.currentSize + incomingSize - lowWater
	c.mu.Unlock()

	var freed int64
	for _, cd := range candidates {
		if freed >= target {
			break
		}
		if err := c.Delete(cd.key); err == nil {
			freed += cd.size
		}
	}
	return nil
}
