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

package engines

import (
	"net/http"
	"time"

	"github.com/golang/snappy"

	"github.com/comcast/originshield/internal/cache"
	"github.com/comcast/originshield/internal/cache/orchestrator"
	"github.com/comcast/originshield/internal/proxy/headers"
	"github.com/comcast/originshield/internal/util/log"
)

// EntryFromResponse builds a cache.Entry from an origin response and
// its already-read body, stripping the Date header the same way the
// teacher's WriteCache dropped it - a cached Date would otherwise read
// as stale the instant it's served back out of a lower tier.
func EntryFromResponse(resp *http.Response, body []byte, replicaName string, ttl time.Duration) *cache.Entry {
	h := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		if k == headers.NameDate {
			continue
		}
		h[k] = resp.Header.Get(k)
	}
	return &cache.Entry{
		StatusCode:    resp.StatusCode,
		Headers:       h,
		Body:          body,
		StoredAt:      time.Now().Unix(),
		FreshnessTTL:  int64(ttl.Seconds()),
		ETag:          resp.Header.Get(headers.NameETag),
		LastModified:  resp.Header.Get(headers.NameLastModified),
		ReplicaOrigin: replicaName,
		SizeBytes:     int64(len(body)),
	}
}

// QueryCache asks the orchestrator's Get for cacheKey, decompressing
// and deserializing a hit into a cache.Entry, and driving fetch on a
// total miss the same way the teacher's engines drove an origin fetch
// on a cache miss.
func QueryCache(o *orchestrator.Orchestrator, cacheKey string, compressed bool, fetch func() (*orchestrator.Result, error)) (*cache.Entry, bool, error) {
	result, hit, err := o.Get(cacheKey, fetch)
	if err != nil {
		return nil, false, err
	}

	raw := result.Data
	if compressed {
		b, err := snappy.Decode(nil, raw)
		if err != nil {
			log.Warn("cache entry failed snappy decode, discarding", log.Pairs{"cacheKey": cacheKey, "error": err.Error()})
			return nil, false, cache.ErrKeyNotFound
		}
		raw = b
	}

	e := &cache.Entry{}
	if _, err := e.UnmarshalMsg(raw); err != nil {
		return nil, false, err
	}
	return e, hit, nil
}

// EncodeEntry serializes e for storage, snappy-compressing when
// compressed is set, the same on-disk shape the teacher stored its
// model.HTTPDocument in.
func EncodeEntry(e *cache.Entry, compressed bool) ([]byte, error) {
	b, err := e.MarshalMsg(nil)
	if err != nil {
		return nil, err
	}
	if compressed {
		log.Debug("compressing cache entry", log.Pairs{"sizeBytes": len(b)})
		return snappy.Encode(nil, b), nil
	}
	return b, nil
}
