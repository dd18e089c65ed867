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

// Package headers collects the HTTP header name constants and small
// header-mutation helpers the proxy engines share, the same role the
// teacher's internal/proxy/headers package plays for its own engines.
package headers

import (
	"net/http"
	"strings"

	"github.com/comcast/originshield/internal/freshness"
)

// Header names the pipeline reads or sets.
const (
	NameDate            = "Date"
	NameContentLength   = "Content-Length"
	NameContentEncoding = "Content-Encoding"
	NameCacheControl    = "Cache-Control"
	NameETag            = "ETag"
	NameLastModified    = "Last-Modified"
	NameRange           = "Range"
	NameIfNoneMatch     = "If-None-Match"
	NameIfModifiedSince = "If-Modified-Since"
	NameXForwardedFor   = "X-Forwarded-For"
	NameResult          = "X-Originshield-Result"
	NameVary            = "Vary"
	NameXCache          = "X-Cache"
	NameXRequestID      = "X-Request-Id"
	NameAcceptRanges    = "Accept-Ranges"
	NameContentRange    = "Content-Range"
	NameRetryAfter      = "Retry-After"
	NameAllow           = "Allow"
)

// hopByHop lists the header fields that are connection-scoped and must
// never be forwarded to or cached for the client (RFC 7230 §6.1).
var hopByHop = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"TE", "Trailer", "Transfer-Encoding", "Upgrade",
}

// RemoveHopByHopHeaders strips connection-scoped headers before a
// response is cached or forwarded.
func RemoveHopByHopHeaders(h http.Header) {
	for _, n := range hopByHop {
		h.Del(n)
	}
}

// AddProxyHeaders appends the original client address to
// X-Forwarded-For, the same forwarding convention the teacher applies
// to its own outbound origin requests.
func AddProxyHeaders(remoteAddr string, h http.Header) {
	if remoteAddr == "" {
		return
	}
	if existing := h.Get(NameXForwardedFor); existing != "" {
		h.Set(NameXForwardedFor, existing+", "+remoteAddr)
		return
	}
	h.Set(NameXForwardedFor, remoteAddr)
}

// CopyHeaders copies every value of every header in src into dst.
func CopyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// SetResultsHeader annotates the response with the engine and cache
// status that produced it, mirroring the teacher's diagnostic
// X-Trickster-Result header under this project's own header name.
func SetResultsHeader(h http.Header, engine, cacheStatus, replica string) {
	parts := []string{"engine=" + engine, "status=" + cacheStatus}
	if replica != "" {
		parts = append(parts, "replica="+replica)
	}
	h.Set(NameResult, strings.Join(parts, "; "))
}

// Validators extracts the cache validators carried on a response's
// headers for use with the freshness package's conditional-request check.
func Validators(h http.Header) freshness.Validators {
	return freshness.Validators{ETag: h.Get(NameETag), LastModified: h.Get(NameLastModified)}
}

// SetCacheHeader sets the client-visible X-Cache header, distinct from
// the diagnostic X-Originshield-Result header above.
func SetCacheHeader(h http.Header, hit bool) {
	if hit {
		h.Set(NameXCache, "HIT")
		return
	}
	h.Set(NameXCache, "MISS")
}
