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

// Package cachekey derives the cache key used to address every tier
// (memory, distributed, disk): sha256(bucket || 0x00 || objectKey ||
// 0x00 || variant), per §4.7. The hex-encoded digest is also what the
// disk cache's shard path and the distributed cache's Redis key are
// built from (§4.9).
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Variant captures the request dimensions a bucket has declared it
// varies cached responses on (Vary headers, image-transform params).
type Variant struct {
	// ContentEncoding is the negotiated encoding bucket: "identity",
	// "gzip", or "br" — collapsed from the raw Accept-Encoding header
	// so near-infinite quality-value combinations don't fragment the
	// cache.
	ContentEncoding string
	// VaryValues holds one entry per bucket-configured Vary header
	// name, in the same order as the bucket's VaryHeaders list.
	VaryValues []string
	// ImageTransform carries a canonicalized query string of
	// image-transform parameters when the bucket enables that
	// pipeline; empty otherwise.
	ImageTransform string
}

// Bytes serializes the variant deterministically for hashing.
func (v Variant) Bytes() []byte {
	var b strings.Builder
	b.WriteString(v.ContentEncoding)
	b.WriteByte(0x00)
	for _, vv := range v.VaryValues {
		b.WriteString(vv)
		b.WriteByte(0x00)
	}
	b.WriteString(v.ImageTransform)
	return []byte(b.String())
}

// NegotiateContentEncoding collapses an Accept-Encoding header value
// into one of "identity", "gzip", "br" — the only encodings the cache
// distinguishes between, in preference order br > gzip > identity.
func NegotiateContentEncoding(acceptEncoding string) string {
	lower := strings.ToLower(acceptEncoding)
	if strings.Contains(lower, "br") {
		return "br"
	}
	if strings.Contains(lower, "gzip") {
		return "gzip"
	}
	return "identity"
}

// CanonicalQuery sorts query parameter pairs ("k=v") so semantically
// identical image-transform queries hash identically regardless of
// param order.
func CanonicalQuery(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Key is the hex-encoded sha256 digest addressing one cached object
// variant.
type Key string

// Derive computes the cache key for (bucket, objectKey, variant).
func Derive(bucket, objectKey string, variant Variant) Key {
	h := sha256.New()
	h.Write([]byte(bucket))
	h.Write([]byte{0x00})
	h.Write([]byte(objectKey))
	h.Write([]byte{0x00})
	h.Write(variant.Bytes())
	return Key(hex.EncodeToString(h.Sum(nil)))
}

// ShardPath returns the two-hex-nibble shard directory name and the
// ".bin" filename the disk cache stores this key's body under (§4.9,
// §6): ".data/<nibbles>/<key>.bin".
func (k Key) ShardPath() (shard, filename string) {
	s := string(k)
	if len(s) < 2 {
		return "00", s + ".bin"
	}
	return s[:2], s + ".bin"
}
