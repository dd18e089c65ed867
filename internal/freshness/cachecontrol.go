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

// Package freshness implements RFC 7234-shaped cache-control parsing
// and freshness-lifetime computation (§4.13), replacing the teacher's
// hardcoded-TTL shortcut (flagged as an Open Question in spec §9) with
// full directive parsing.
package freshness

import (
	"strconv"
	"strings"
	"time"
)

// Directives holds the subset of Cache-Control directives the proxy
// honors from an origin response.
type Directives struct {
	NoStore         bool
	NoCache         bool
	Private         bool
	MustRevalidate  bool
	MaxAgeSecs      int64
	HasMaxAge       bool
	SMaxAgeSecs     int64
	HasSMaxAge      bool
	StaleWhileRevalidateSecs int64
}

// ParseCacheControl parses a Cache-Control header value into Directives.
// Unknown directives and malformed values are ignored rather than
// treated as parse errors — an origin sending a slightly malformed
// header should degrade gracefully, not break caching entirely.
func ParseCacheControl(header string) Directives {
	var d Directives
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value := part, ""
		if idx := strings.Index(part, "="); idx >= 0 {
			name = strings.TrimSpace(part[:idx])
			value = strings.Trim(strings.TrimSpace(part[idx+1:]), `"`)
		}
		switch strings.ToLower(name) {
		case "no-store":
			d.NoStore = true
		case "no-cache":
			d.NoCache = true
		case "private":
			d.Private = true
		case "must-revalidate", "proxy-revalidate":
			d.MustRevalidate = true
		case "max-age":
			if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
				d.MaxAgeSecs = secs
				d.HasMaxAge = true
			}
		case "s-maxage":
			if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
				d.SMaxAgeSecs = secs
				d.HasSMaxAge = true
			}
		case "stale-while-revalidate":
			if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
				d.StaleWhileRevalidateSecs = secs
			}
		}
	}
	return d
}

// Freshness computes the cacheable lifetime for a response given its
// parsed Cache-Control directives and the bucket's configured
// defaults. When honorOriginCacheControl is false, the bucket's
// default/max TTLs alone govern lifetime and origin directives are
// consulted only for no-store and private (which always win, since
// violating either risks this shared cache storing data the origin
// forbade it to store). A private response is reported as noStore.
func Freshness(d Directives, honorOriginCacheControl bool, defaultTTL, maxTTL time.Duration) (lifetime time.Duration, mustRevalidate, noStore bool) {
	if d.NoStore || d.Private {
		return 0, false, true
	}

	if !honorOriginCacheControl {
		return clamp(defaultTTL, maxTTL), false, false
	}

	if d.NoCache {
		return 0, true, false
	}

	lifetime = defaultTTL
	if d.HasSMaxAge {
		lifetime = time.Duration(d.SMaxAgeSecs) * time.Second
	} else if d.HasMaxAge {
		lifetime = time.Duration(d.MaxAgeSecs) * time.Second
	}

	return clamp(lifetime, maxTTL), d.MustRevalidate, false
}

func clamp(lifetime, maxTTL time.Duration) time.Duration {
	if lifetime < 0 {
		lifetime = 0
	}
	if maxTTL > 0 && lifetime > maxTTL {
		return maxTTL
	}
	return lifetime
}

// StaleWhileRevalidateWindow returns how long past expiry a response
// may still be served stale while a background revalidation runs, the
// smaller of the directive's own value and the bucket's configured cap.
func StaleWhileRevalidateWindow(d Directives, bucketCap time.Duration) time.Duration {
	window := time.Duration(d.StaleWhileRevalidateSecs) * time.Second
	if bucketCap > 0 && (window == 0 || window > bucketCap) {
		window = bucketCap
	}
	return window
}
