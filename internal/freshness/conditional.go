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
	"strings"
	"time"
)

// Validators is the subset of a cached entry's metadata needed to
// answer a conditional request.
type Validators struct {
	ETag         string
	LastModified string
}

// Satisfied304 reports whether r's conditional headers (If-None-Match,
// If-Modified-Since) are satisfied by entry, meaning the proxy may
// respond 304 Not Modified using the cached validators without
// re-fetching the body.
func Satisfied304(r *http.Request, entry Validators) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		return etagMatches(inm, entry.ETag)
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" && entry.LastModified != "" {
		return notModifiedSince(ims, entry.LastModified)
	}
	return false
}

// etagMatches implements the weak-comparison rules of RFC 7232 §2.3.2
// against an If-None-Match list, which may be "*" or a comma-separated
// list of (possibly weak, W/-prefixed) entity tags.
func etagMatches(ifNoneMatch, entryETag string) bool {
	if entryETag == "" {
		return false
	}
	if strings.TrimSpace(ifNoneMatch) == "*" {
		return true
	}
	target := strings.TrimPrefix(strings.TrimSpace(entryETag), "W/")
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == target {
			return true
		}
	}
	return false
}

func notModifiedSince(ifModifiedSince, lastModified string) bool {
	ims, err1 := http.ParseTime(ifModifiedSince)
	lm, err2 := http.ParseTime(lastModified)
	if err1 != nil || err2 != nil {
		return false
	}
	return !lm.After(ims.Truncate(time.Second))
}
