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

package freshness

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseCacheControlBasicDirectives(t *testing.T) {
	d := ParseCacheControl(`max-age=3600, must-revalidate, no-cache`)
	if !d.HasMaxAge || d.MaxAgeSecs != 3600 {
		t.Fatalf("expected max-age=3600, got %+v", d)
	}
	if !d.MustRevalidate {
		t.Fatal("expected must-revalidate to be set")
	}
	if !d.NoCache {
		t.Fatal("expected no-cache to be set")
	}
}

func TestParseCacheControlNoStore(t *testing.T) {
	d := ParseCacheControl("no-store")
	if !d.NoStore {
		t.Fatal("expected no-store to be set")
	}
}

func TestParseCacheControlIgnoresMalformedValue(t *testing.T) {
	d := ParseCacheControl("max-age=not-a-number")
	if d.HasMaxAge {
		t.Fatal("expected malformed max-age to be ignored")
	}
}

func TestFreshnessNoStoreWins(t *testing.T) {
	d := Directives{NoStore: true}
	lifetime, mustRevalidate, noStore := Freshness(d, true, time.Hour, time.Hour*24)
	if !noStore {
		t.Fatal("expected noStore=true")
	}
	if lifetime != 0 || mustRevalidate {
		t.Fatalf("expected zero lifetime and no revalidate flag on no-store, got %v %v", lifetime, mustRevalidate)
	}
}

func TestFreshnessHonorsSMaxAgeOverMaxAge(t *testing.T) {
	d := Directives{HasMaxAge: true, MaxAgeSecs: 60, HasSMaxAge: true, SMaxAgeSecs: 120}
	lifetime, _, _ := Freshness(d, true, time.Minute, time.Hour)
	if lifetime != 120*time.Second {
		t.Fatalf("expected s-maxage (120s) to take precedence, got %v", lifetime)
	}
}

func TestFreshnessClampsToMaxTTL(t *testing.T) {
	d := Directives{HasMaxAge: true, MaxAgeSecs: 999999}
	lifetime, _, _ := Freshness(d, true, time.Minute, 10*time.Second)
	if lifetime != 10*time.Second {
		t.Fatalf("expected lifetime clamped to maxTTL 10s, got %v", lifetime)
	}
}

func TestFreshnessIgnoresOriginWhenNotHonored(t *testing.T) {
	d := Directives{HasMaxAge: true, MaxAgeSecs: 5}
	lifetime, _, _ := Freshness(d, false, time.Hour, 24*time.Hour)
	if lifetime != time.Hour {
		t.Fatalf("expected bucket default (1h) when origin cache-control isn't honored, got %v", lifetime)
	}
}

func TestSatisfied304WithMatchingETag(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/img/cat.png", nil)
	r.Header.Set("If-None-Match", `"abc123"`)

	if !Satisfied304(r, Validators{ETag: `"abc123"`}) {
		t.Fatal("expected matching ETag to satisfy conditional request")
	}
}

func TestSatisfied304WithWildcard(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/img/cat.png", nil)
	r.Header.Set("If-None-Match", "*")

	if !Satisfied304(r, Validators{ETag: `"anything"`}) {
		t.Fatal("expected wildcard If-None-Match to satisfy any ETag")
	}
}

func TestSatisfied304WithNonMatchingETag(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/img/cat.png", nil)
	r.Header.Set("If-None-Match", `"different"`)

	if Satisfied304(r, Validators{ETag: `"abc123"`}) {
		t.Fatal("expected non-matching ETag to not satisfy conditional request")
	}
}

func TestSatisfied304WithIfModifiedSince(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/img/cat.png", nil)
	r.Header.Set("If-Modified-Since", "Wed, 21 Oct 2015 07:28:00 GMT")

	if !Satisfied304(r, Validators{LastModified: "Wed, 21 Oct 2015 07:28:00 GMT"}) {
		t.Fatal("expected equal Last-Modified/If-Modified-Since to satisfy conditional request")
	}
}

func TestSatisfied304WithNewerLastModified(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/img/cat.png", nil)
	r.Header.Set("If-Modified-Since", "Wed, 21 Oct 2015 07:28:00 GMT")

	if Satisfied304(r, Validators{LastModified: "Thu, 22 Oct 2015 07:28:00 GMT"}) {
		t.Fatal("expected newer Last-Modified to not satisfy conditional request")
	}
}

func TestStaleWhileRevalidateWindowClampedToBucketCap(t *testing.T) {
	d := Directives{StaleWhileRevalidateSecs: 600}
	window := StaleWhileRevalidateWindow(d, 60*time.Second)
	if window != 60*time.Second {
		t.Fatalf("expected window clamped to bucket cap 60s, got %v", window)
	}
}
