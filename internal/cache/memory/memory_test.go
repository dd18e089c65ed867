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

package memory

import (
	"testing"
	"time"

	"github.com/comcast/originshield/internal/cache"
	"github.com/comcast/originshield/internal/config"
)

func testConfig() *config.CachingConfig {
	c := config.NewCacheConfig()
	c.Memory.MaxSizeBytes = 16 * 1024 * 1024
	c.Memory.MaxItemBytes = 1024
	c.Memory.NumCounters = 1000
	return c
}

func TestSetGetRoundTrip(t *testing.T) {
	c, err := New("test", testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if err := c.Set("k1", []byte("hello"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	c.rc.Wait()

	got, err := c.Get("k1")
	if err != nil {
		t.Fatalf("expected hit, got error: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestGetMissReturnsErrKeyNotFound(t *testing.T) {
	c, err := New("test", testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	_, err = c.Get("missing")
	if err != cache.ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSetRejectsOversizedItem(t *testing.T) {
	cfg := testConfig()
	cfg.Memory.MaxItemBytes = 4
	c, err := New("test", cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if err := c.Set("big", []byte("this is too big"), time.Minute); err != nil {
		t.Fatalf("Set should not error, got %v", err)
	}
	c.rc.Wait()

	if _, err := c.Get("big"); err != cache.ErrKeyNotFound {
		t.Fatal("expected oversized item to be rejected rather than cached")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	c, err := New("test", testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	c.Set("k1", []byte("v1"), time.Minute)
	c.rc.Wait()

	if err := c.Delete("k1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	c.rc.Wait()

	if _, err := c.Get("k1"); err != cache.ErrKeyNotFound {
		t.Fatal("expected key to be gone after Delete")
	}
}
