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

package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(1, 3, time.Minute, 0)
	defer l.Close()

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1", "images") {
			t.Fatalf("expected request %d within burst to be allowed", i)
		}
	}
	if l.Allow("10.0.0.1", "images") {
		t.Fatal("expected request beyond burst to be denied")
	}
}

func TestAllowIsolatesByClientAndBucket(t *testing.T) {
	l := New(1, 1, time.Minute, 0)
	defer l.Close()

	if !l.Allow("10.0.0.1", "images") {
		t.Fatal("expected first request for client A allowed")
	}
	if !l.Allow("10.0.0.2", "images") {
		t.Fatal("expected a different client IP to have its own bucket")
	}
	if !l.Allow("10.0.0.1", "docs") {
		t.Fatal("expected a different bucket for the same client to have its own bucket")
	}
	if l.Allow("10.0.0.1", "images") {
		t.Fatal("expected the original (client, bucket) pair to still be limited")
	}
}

func TestIdleEvictionReclaimsEntries(t *testing.T) {
	l := New(100, 1, 10*time.Millisecond, 0)
	defer l.Close()

	l.Allow("10.0.0.1", "images")
	if l.TrackedCount() != 1 {
		t.Fatalf("expected 1 tracked entry, got %d", l.TrackedCount())
	}

	time.Sleep(60 * time.Millisecond)

	if l.TrackedCount() != 0 {
		t.Fatalf("expected idle entry to be reaped, got %d tracked", l.TrackedCount())
	}
}

func TestMaxTrackedClientsEvictsOldest(t *testing.T) {
	l := New(100, 1, time.Minute, 2)
	defer l.Close()

	l.Allow("10.0.0.1", "images")
	time.Sleep(time.Millisecond)
	l.Allow("10.0.0.2", "images")
	time.Sleep(time.Millisecond)
	l.Allow("10.0.0.3", "images")

	if l.TrackedCount() > 2 {
		t.Fatalf("expected table bounded to 2 entries, got %d", l.TrackedCount())
	}
}
