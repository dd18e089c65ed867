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

// Package metrics registers the Prometheus collectors emitted by the
// proxy pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ProxyRequestStatus counts requests to the proxy by bucket, cache status and resulting HTTP status
	ProxyRequestStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "originshield",
		Name:      "requests_total",
		Help:      "Count of downstream requests handled by the proxy",
	}, []string{"bucket", "method", "cacheStatus", "httpStatus"})

	// ProxyRequestDuration observes downstream request latency
	ProxyRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "originshield",
		Name:      "request_duration_seconds",
		Help:      "Time to serve a downstream request",
		Buckets:   prometheus.DefBuckets,
	}, []string{"bucket", "method", "cacheStatus", "httpStatus"})

	// CacheLookups counts lookups per tier and outcome (hit/miss/stale)
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "originshield",
		Name:      "cache_lookups_total",
		Help:      "Count of cache tier lookups",
	}, []string{"tier", "outcome"})

	// OriginRequests counts requests sent to S3 replicas
	OriginRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "originshield",
		Name:      "origin_requests_total",
		Help:      "Count of requests sent to origin replicas",
	}, []string{"bucket", "replica", "outcome"})

	// CircuitState tracks current breaker state per replica (0=closed,1=half-open,2=open)
	CircuitState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "originshield",
		Name:      "circuit_state",
		Help:      "Circuit breaker state per replica",
	}, []string{"bucket", "replica"})

	// RateLimited counts requests denied by the rate limiter
	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "originshield",
		Name:      "rate_limited_total",
		Help:      "Count of requests rejected by the rate limiter",
	}, []string{"bucket"})

	// InflightOrigin reports the number of in-progress single-flight origin fetches
	InflightOrigin = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "originshield",
		Name:      "inflight_origin_fetches",
		Help:      "Number of cache keys with an origin fetch currently in flight",
	})
)

// Register adds all collectors to the default Prometheus registry. Safe
// to call once at startup.
func Register() {
	prometheus.MustRegister(
		ProxyRequestStatus,
		ProxyRequestDuration,
		CacheLookups,
		OriginRequests,
		CircuitState,
		RateLimited,
		InflightOrigin,
	)
}

// Handler returns the HTTP handler that serves /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
