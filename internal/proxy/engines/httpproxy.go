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

// Package engines implements the streaming request pipeline (§4.12):
// route -> authorize -> rate-check -> decide (serve from cache or
// fetch origin) -> stream -> complete, the same handler role the
// teacher's ProxyRequest/Fetch/Respond trio played for its own
// timeseries origins, generalized here to whole-object S3 gets.
package engines

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/comcast/originshield/internal/auth"
	"github.com/comcast/originshield/internal/cache"
	"github.com/comcast/originshield/internal/cache/cachekey"
	"github.com/comcast/originshield/internal/cache/orchestrator"
	"github.com/comcast/originshield/internal/config"
	"github.com/comcast/originshield/internal/freshness"
	"github.com/comcast/originshield/internal/origin"
	"github.com/comcast/originshield/internal/proxy/headers"
	"github.com/comcast/originshield/internal/proxy/model"
	"github.com/comcast/originshield/internal/ratelimit"
	"github.com/comcast/originshield/internal/routing"
	"github.com/comcast/originshield/internal/util/log"
	"github.com/comcast/originshield/internal/util/metrics"
)

// BucketRuntime bundles one configured bucket's live components: the
// auth oracle it authorizes against, the replica selector and signed
// client it fetches from, and (when caching is enabled) the tiered
// cache it reads and writes through.
type BucketRuntime struct {
	Config          *config.BucketConfig
	AuthPolicy      *config.AuthPolicyConfig
	Oracle          auth.Oracle
	Selector        *origin.Selector
	Client          *origin.Client
	Cache           *orchestrator.Orchestrator
	CacheCompressed bool
	RateLimiter     *ratelimit.Limiter
}

// Handler is the main HTTP entry point: it resolves a bucket, runs the
// pipeline, and streams the result to the client.
type Handler struct {
	Router  *routing.BucketRouter
	Buckets map[string]*BucketRuntime
}

// NewHandler constructs a Handler over a resolved bucket router and
// per-bucket runtimes.
func NewHandler(router *routing.BucketRouter, buckets map[string]*BucketRuntime) *Handler {
	return &Handler{Router: router, Buckets: buckets}
}

// allowedMethods is the client-facing HTTP surface (§6): anything else
// is rejected with 405 before routing does any further work.
const allowedMethods = "GET, HEAD, OPTIONS"

// ServeHTTP drives one request through the pipeline state machine.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rc := model.New(r)
	w.Header().Set(headers.NameXRequestID, rc.RequestID.String())

	bucketCfg, objectKey, ok := h.Router.Route(rc.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "no bucket matches this path")
		recordResult(rc, "unknown", r.Method, "bypass", http.StatusNotFound, time.Since(start))
		return
	}
	rc.Bucket = bucketCfg
	rc.ObjectKey = objectKey
	rc.State = model.StateRouted
	applyCORS(w, r, bucketCfg)

	if !methodAllowed(r.Method) {
		w.Header().Set(headers.NameAllow, allowedMethods)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		recordResult(rc, bucketCfg.Name, r.Method, "bypass", http.StatusMethodNotAllowed, time.Since(start))
		return
	}
	if r.Method == http.MethodOptions {
		w.Header().Set(headers.NameAllow, allowedMethods)
		w.WriteHeader(http.StatusOK)
		recordResult(rc, bucketCfg.Name, r.Method, "bypass", http.StatusOK, time.Since(start))
		return
	}

	runtime, ok := h.Buckets[bucketCfg.Name]
	if !ok {
		writeError(w, http.StatusInternalServerError, "bucket runtime not wired")
		recordResult(rc, bucketCfg.Name, r.Method, "error", http.StatusInternalServerError, time.Since(start))
		return
	}

	if !h.authorize(w, r, rc, runtime) {
		recordResult(rc, bucketCfg.Name, r.Method, "denied", http.StatusForbidden, time.Since(start))
		return
	}
	rc.State = model.StateAuthorized

	clientIP := rc.ClientAddr
	if host, _, err := net.SplitHostPort(clientIP); err == nil {
		clientIP = host
	}
	if runtime.RateLimiter != nil && !runtime.RateLimiter.Allow(clientIP, bucketCfg.Name) {
		metrics.RateLimited.WithLabelValues(bucketCfg.Name).Inc()
		w.Header().Set(headers.NameRetryAfter, retryAfterSeconds(runtime.Config.RateLimit))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		recordResult(rc, bucketCfg.Name, r.Method, "rate_limited", http.StatusTooManyRequests, time.Since(start))
		return
	}
	rc.State = model.StateRateChecked

	cacheStatus, status := h.decideAndServe(w, r, rc, runtime)
	rc.State = model.StateCompleted
	recordResult(rc, bucketCfg.Name, r.Method, cacheStatus, status, time.Since(start))
}

// methodAllowed reports whether method is part of the client-facing
// HTTP surface (§6).
func methodAllowed(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// applyCORS sets Access-Control-Allow-Origin (and friends) when the
// bucket configures allowed origins and the request names one of them,
// mirroring how a single "*" entry permits any origin.
func applyCORS(w http.ResponseWriter, r *http.Request, bucketCfg *config.BucketConfig) {
	origin := r.Header.Get("Origin")
	if origin == "" || len(bucketCfg.CORSAllowOrigins) == 0 {
		return
	}
	for _, allowed := range bucketCfg.CORSAllowOrigins {
		if allowed == "*" || allowed == origin {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
			w.Header().Add(headers.NameVary, "Origin")
			return
		}
	}
}

// retryAfterSeconds computes a Retry-After value from the bucket's
// configured rate: the time to regenerate a single token.
func retryAfterSeconds(cfg config.RateLimitConfig) string {
	if cfg.RatePerSec <= 0 {
		return "1"
	}
	secs := int(math.Ceil(1 / cfg.RatePerSec))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, rc *model.RequestContext, runtime *BucketRuntime) bool {
	if runtime.Oracle == nil {
		return true
	}
	token, err := runtime.Oracle.ExtractToken(r)
	if err != nil && err != auth.ErrNoToken {
		writeError(w, http.StatusInternalServerError, "token extraction failed")
		return false
	}
	rc.Token = token

	decision, err := runtime.Oracle.Authorize(r.Context(), token, rc.Bucket.Name, rc.ObjectKey)
	if err != nil {
		if runtime.AuthPolicy != nil && runtime.AuthPolicy.FailOpen {
			log.Warn("auth oracle error, failing open", log.Pairs{"bucket": rc.Bucket.Name, "error": err.Error()})
			return true
		}
		writeError(w, http.StatusServiceUnavailable, "authorization unavailable")
		return false
	}
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, "not authorized")
		return false
	}
	rc.Principal = decision.Reason
	return true
}

// decideAndServe implements the Decided/Streaming states: it computes
// the cache key (if caching applies to this bucket and method),
// consults the cache, and on a miss fetches from origin, streaming the
// response to the client and writing the fetched body into the cache
// tiers via the orchestrator's own (bounded, non-blocking) write-back path.
func (h *Handler) decideAndServe(w http.ResponseWriter, r *http.Request, rc *model.RequestContext, runtime *BucketRuntime) (cacheStatus string, status int) {
	cacheable := runtime.Cache != nil && runtime.Config.CachePolicy.Enabled &&
		(r.Method == http.MethodGet || r.Method == http.MethodHead)

	if !cacheable {
		return h.fetchAndStream(w, r, rc, runtime, "")
	}

	variant := cachekey.Variant{
		ContentEncoding: cachekey.NegotiateContentEncoding(r.Header.Get("Accept-Encoding")),
		VaryValues:      varyValues(r, runtime.Config.CachePolicy.VaryHeaders),
	}
	cacheKey := string(cachekey.Derive(rc.Bucket.Name, rc.ObjectKey, variant))
	rc.CacheKey = cacheKey
	rc.State = model.StateDecided

	entry, hit, err := QueryCache(runtime.Cache, cacheKey, runtime.CacheCompressed, func() (*orchestrator.Result, error) {
		return h.fetchForCache(r.Context(), rc, runtime)
	})
	if err != nil {
		if err == cache.ErrKeyNotFound {
			// fetch function itself returned a non-cacheable outcome; fall
			// back to a direct, uncached stream of the same object.
			return h.fetchAndStream(w, r, rc, runtime, cacheKey)
		}
		writeError(w, http.StatusBadGateway, "origin fetch failed")
		return "error", http.StatusBadGateway
	}

	if freshness.Satisfied304(r, headers.Validators(entryHeader(entry))) {
		if entry.ETag != "" {
			w.Header().Set(headers.NameETag, entry.ETag)
		}
		if entry.LastModified != "" {
			w.Header().Set(headers.NameLastModified, entry.LastModified)
		}
		headers.SetCacheHeader(w.Header(), hit)
		headers.SetResultsHeader(w.Header(), "engines.cache", cacheResultLabel(hit), entry.ReplicaOrigin)
		w.WriteHeader(http.StatusNotModified)
		return cacheResultLabel(hit), http.StatusNotModified
	}

	body := entry.Body
	respHeader := entryHeader(entry)
	statusCode := entry.StatusCode
	contentRange := ""
	if rng := r.Header.Get(headers.NameRange); rng != "" {
		if sliced, rangeStatus, start, end, total, ok := sliceRange(body, rng); ok {
			statusCode = rangeStatus
			if rangeStatus == http.StatusRequestedRangeNotSatisfiable {
				body = nil
				contentRange = fmt.Sprintf("bytes */%d", total)
			} else {
				body = sliced
				contentRange = fmt.Sprintf("bytes %d-%d/%d", start, end, total)
			}
		}
	}
	writeResponse(w, r, statusCode, respHeader, body, contentRange, "engines.cache", cacheResultLabel(hit), entry.ReplicaOrigin)
	return cacheResultLabel(hit), statusCode
}

// fetchForCache is the Inflight-Registry-coalesced fetch function: it
// selects a replica, fetches the object, and hands back the encoded
// bytes the orchestrator writes into every tier.
func (h *Handler) fetchForCache(ctx context.Context, rc *model.RequestContext, runtime *BucketRuntime) (*orchestrator.Result, error) {
	resp, body, outcome, sel, err := doFetch(ctx, runtime, http.MethodGet, rc.ObjectKey, http.Header{})
	if err != nil {
		return nil, err
	}
	resolvePermit(sel, outcome)

	if resp.StatusCode >= 300 || int64(len(body)) > runtime.Config.CachePolicy.MaxObjectSizeBytes {
		return nil, cache.ErrKeyNotFound
	}

	directives := freshness.ParseCacheControl(resp.Header.Get(headers.NameCacheControl))
	ttl, _, noStore := freshness.Freshness(directives, runtime.Config.CachePolicy.HonorOriginCacheControl,
		runtime.Config.CachePolicy.DefaultTTL, runtime.Config.CachePolicy.MaxTTL)
	if noStore {
		return nil, cache.ErrKeyNotFound
	}

	entry := EntryFromResponse(resp, body, sel.Replica.Name, ttl)
	encoded, err := EncodeEntry(entry, runtime.CacheCompressed)
	if err != nil {
		return nil, err
	}
	return &orchestrator.Result{Data: encoded, TTL: ttl}, nil
}

// fetchAndStream handles the non-cacheable path: select a replica,
// issue the request, and copy the body straight through to the client
// using the fixed-size streaming buffer, never touching the cache.
func (h *Handler) fetchAndStream(w http.ResponseWriter, r *http.Request, rc *model.RequestContext, runtime *BucketRuntime, cacheKeyHint string) (string, int) {
	rc.State = model.StateStreaming
	resp, _, outcome, sel, err := doFetchStreaming(r.Context(), runtime, r.Method, rc.ObjectKey, r.Header)
	if err != nil {
		writeError(w, http.StatusBadGateway, "origin unavailable")
		return "bypass", http.StatusBadGateway
	}
	defer resp.Body.Close()
	resolvePermit(sel, outcome)

	headers.RemoveHopByHopHeaders(resp.Header)
	if resp.Header.Get(headers.NameAcceptRanges) == "" {
		resp.Header.Set(headers.NameAcceptRanges, "bytes")
	}
	headers.SetCacheHeader(resp.Header, false)
	headers.SetResultsHeader(resp.Header, "engines.httpproxy", "bypass", sel.Replica.Name)
	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead {
		origin.CopyBody(w, resp.Body)
	}
	return "bypass", resp.StatusCode
}

func doFetch(ctx context.Context, runtime *BucketRuntime, method, objectKey string, inbound http.Header) (*http.Response, []byte, origin.Outcome, origin.Selection, error) {
	resp, outcome, sel, err := selectAndFetch(ctx, runtime, method, objectKey, inbound)
	if err != nil {
		return nil, nil, outcome, sel, err
	}
	defer resp.Body.Close()
	body, err := readAllBounded(resp.Body, runtime.Config.CachePolicy.MaxObjectSizeBytes)
	if err != nil {
		return nil, nil, outcome, sel, err
	}
	return &http.Response{StatusCode: resp.StatusCode, Header: resp.Header}, body, outcome, sel, nil
}

func doFetchStreaming(ctx context.Context, runtime *BucketRuntime, method, objectKey string, inbound http.Header) (*origin.Response, []byte, origin.Outcome, origin.Selection, error) {
	resp, outcome, sel, err := selectAndFetch(ctx, runtime, method, objectKey, inbound)
	return resp, nil, outcome, sel, err
}

func selectAndFetch(ctx context.Context, runtime *BucketRuntime, method, objectKey string, inbound http.Header) (*origin.Response, origin.Outcome, origin.Selection, error) {
	sel, err := runtime.Selector.Select()
	if err != nil {
		return nil, origin.OutcomeTransientFailure, origin.Selection{}, err
	}
	resp, outcome, err := runtime.Client.Fetch(ctx, sel.Replica, method, objectKey, inbound)
	if err != nil {
		sel.Permit.Failure()
		return nil, outcome, sel, err
	}
	return resp, outcome, sel, nil
}

func resolvePermit(sel origin.Selection, outcome origin.Outcome) {
	if sel.Replica == nil {
		return
	}
	if outcome == origin.OutcomeTransientFailure {
		sel.Permit.Failure()
		return
	}
	sel.Permit.Success()
}

func readAllBounded(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = 256 * 1024 * 1024
	}
	limited := io.LimitReader(r, maxBytes+1)
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(limited); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func varyValues(r *http.Request, varyHeaders []string) []string {
	if len(varyHeaders) == 0 {
		return nil
	}
	values := make([]string, len(varyHeaders))
	for i, h := range varyHeaders {
		values[i] = r.Header.Get(h)
	}
	return values
}

func entryHeader(e *cache.Entry) http.Header {
	h := make(http.Header, len(e.Headers))
	for k, v := range e.Headers {
		h.Set(k, v)
	}
	return h
}

func cacheResultLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func writeResponse(w http.ResponseWriter, r *http.Request, status int, respHeader http.Header, body []byte, contentRange, engine, cacheStatus, replica string) {
	headers.RemoveHopByHopHeaders(respHeader)
	for k, vv := range respHeader {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	if contentRange != "" {
		w.Header().Set(headers.NameContentRange, contentRange)
	}
	w.Header().Set(headers.NameContentLength, strconv.Itoa(len(body)))
	w.Header().Set(headers.NameAcceptRanges, "bytes")
	headers.SetCacheHeader(w.Header(), cacheStatus == "hit")
	headers.SetResultsHeader(w.Header(), engine, cacheStatus, replica)
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		w.Write(body)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}

func recordResult(rc *model.RequestContext, bucket, method, cacheStatus string, statusCode int, elapsed time.Duration) {
	httpStatus := strconv.Itoa(statusCode)
	metrics.ProxyRequestStatus.WithLabelValues(bucket, method, cacheStatus, httpStatus).Inc()
	metrics.ProxyRequestDuration.WithLabelValues(bucket, method, cacheStatus, httpStatus).Observe(elapsed.Seconds())
}
