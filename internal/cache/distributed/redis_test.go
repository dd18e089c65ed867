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

package distributed

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"

	"github.com/comcast/originshield/internal/cache"
	"github.com/comcast/originshield/internal/config"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := newWithClient("test", config.NewCacheConfig(), rdb)
	return c, mr
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	defer c.Close()

	if err := c.Set("k1", []byte("hello"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := c.Get("k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestGetMissReturnsErrKeyNotFound(t *testing.T) {
	c, _ := newTestCache(t)
	defer c.Close()

	if _, err := c.Get("missing"); err != cache.ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestGetDegradesToMissWhenServerDown(t *testing.T) {
	c, mr := newTestCache(t)
	defer c.Close()

	c.Set("k1", []byte("hello"), time.Minute)
	mr.Close()

	if _, err := c.Get("k1"); err != cache.ErrKeyNotFound {
		t.Fatalf("expected a downed Redis to degrade to ErrKeyNotFound, got %v", err)
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	c, _ := newTestCache(t)
	defer c.Close()

	c.Set("k1", []byte("v1"), time.Minute)
	if err := c.Delete("k1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get("k1"); err != cache.ErrKeyNotFound {
		t.Fatal("expected key gone after Delete")
	}
}

func TestBreakerTripsAfterRepeatedFailures(t *testing.T) {
	c, mr := newTestCache(t)
	defer c.Close()
	mr.Close()

	for i := 0; i < 10; i++ {
		c.Get("k1")
	}

	if c.br.State().String() != "open" {
		t.Fatalf("expected breaker to trip open after repeated failures, got %s", c.br.State())
	}
}
