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

package orchestrator

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/comcast/originshield/internal/cache"
	"github.com/comcast/originshield/internal/config"
)

// fakeTier is an in-memory cache.Tier test double.
type fakeTier struct {
	name string
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeTier(name string) *fakeTier {
	return &fakeTier{name: name, data: make(map[string][]byte)}
}

func (f *fakeTier) Name() string { return f.name }

func (f *fakeTier) Get(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, cache.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeTier) Set(key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeTier) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeTier) Close() error { return nil }

func (f *fakeTier) Configuration() *config.CachingConfig { return config.NewCacheConfig() }

func (f *fakeTier) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func TestGetMissFetchesAndWritesDown(t *testing.T) {
	memory := newFakeTier("memory")
	disk := newFakeTier("disk")
	o := New([]cache.Tier{memory, disk})
	defer o.Close()

	fetchCalls := 0
	result, fromCache, err := o.Get("k1", func() (*Result, error) {
		fetchCalls++
		return &Result{Data: []byte("origin-data"), TTL: time.Minute}, nil
	})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fromCache {
		t.Fatal("expected a miss to report fromCache=false")
	}
	if string(result.Data) != "origin-data" {
		t.Fatalf("got %q, want %q", result.Data, "origin-data")
	}
	if fetchCalls != 1 {
		t.Fatalf("expected exactly 1 fetch, got %d", fetchCalls)
	}
	if !memory.has("k1") {
		t.Fatal("expected memory tier to be populated synchronously")
	}
}

func TestGetHitPromotesToFasterTiers(t *testing.T) {
	memory := newFakeTier("memory")
	disk := newFakeTier("disk")
	disk.Set("k1", []byte("disk-data"), time.Minute)

	o := New([]cache.Tier{memory, disk})
	defer o.Close()

	result, fromCache, err := o.Get("k1", func() (*Result, error) {
		t.Fatal("fetch should not be called on a disk hit")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !fromCache {
		t.Fatal("expected fromCache=true on a tier hit")
	}
	if string(result.Data) != "disk-data" {
		t.Fatalf("got %q, want %q", result.Data, "disk-data")
	}
	if !memory.has("k1") {
		t.Fatal("expected memory tier to be promoted synchronously on a disk hit")
	}
}

func TestConcurrentMissesCoalesceIntoOneFetch(t *testing.T) {
	memory := newFakeTier("memory")
	o := New([]cache.Tier{memory})
	defer o.Close()

	var fetchCalls int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Get("shared-key", func() (*Result, error) {
				mu.Lock()
				fetchCalls++
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				return &Result{Data: []byte("v")}, nil
			})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if fetchCalls != 1 {
		t.Fatalf("expected exactly 1 origin fetch for 20 concurrent misses, got %d", fetchCalls)
	}
}

func TestGetPropagatesFetchError(t *testing.T) {
	memory := newFakeTier("memory")
	o := New([]cache.Tier{memory})
	defer o.Close()

	wantErr := fmt.Errorf("origin unreachable")
	_, _, err := o.Get("k1", func() (*Result, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("expected fetch error to propagate, got %v", err)
	}
}

func TestInvalidateRemovesFromAllTiers(t *testing.T) {
	memory := newFakeTier("memory")
	disk := newFakeTier("disk")
	memory.Set("k1", []byte("v"), time.Minute)
	disk.Set("k1", []byte("v"), time.Minute)

	o := New([]cache.Tier{memory, disk})
	defer o.Close()

	o.Invalidate("k1")

	if memory.has("k1") || disk.has("k1") {
		t.Fatal("expected key removed from every tier")
	}
}
