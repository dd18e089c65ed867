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

// Package routing implements longest-prefix bucket routing (§4.1) and
// wires the resolved buckets into the gorilla/mux front door used by
// the main HTTP listener.
package routing

import (
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"github.com/comcast/originshield/internal/config"
)

// Router is the main gorilla/mux router for the proxy's front end.
var Router = mux.NewRouter()

// NewRouter constructs a fresh, empty mux.Router, used to replace
// Router wholesale on a configuration reload since gorilla/mux has no
// API to un-register routes from an existing one.
func NewRouter() *mux.Router {
	return mux.NewRouter()
}

// BucketRouter performs O(n) longest-prefix matching over a small,
// sorted-by-length set of configured buckets. Linear scan is
// acceptable for the expected n (a few hundred buckets at most); the
// buckets slice is pre-sorted so the first match found scanning from
// the front is always the longest.
type BucketRouter struct {
	buckets []*config.BucketConfig
}

// NewBucketRouter builds a BucketRouter from the given configuration
// snapshot's buckets, sorted by descending path prefix length so the
// longest (most specific) prefix is always tried first.
func NewBucketRouter(buckets map[string]*config.BucketConfig) *BucketRouter {
	list := make([]*config.BucketConfig, 0, len(buckets))
	for _, b := range buckets {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool {
		return len(list[i].PathPrefix) > len(list[j].PathPrefix)
	})
	return &BucketRouter{buckets: list}
}

// Route resolves a request path to its configured bucket and the
// object key within that bucket (§4.1). Returns ok=false (NoRoute) when
// no configured path_prefix is a prefix of path.
func (br *BucketRouter) Route(path string) (bucket *config.BucketConfig, objectKey string, ok bool) {
	for _, b := range br.buckets {
		if isPathPrefix(path, b.PathPrefix) {
			key := strings.TrimPrefix(path, b.PathPrefix)
			key = strings.TrimPrefix(key, "/")
			return b, key, true
		}
	}
	return nil, "", false
}

// isPathPrefix reports whether prefix is a proper path-segment prefix
// of path: prefix itself, or prefix followed by "/".
func isPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	return path[len(prefix)] == '/'
}
