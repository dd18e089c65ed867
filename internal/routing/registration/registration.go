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

// Package registration builds the live pipeline Handler from the
// loaded configuration and wires it into the gorilla/mux front door,
// the same assembly role the teacher's own registration package played
// translating config.Origins into handled mux routes.
package registration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/comcast/originshield/internal/auth"
	"github.com/comcast/originshield/internal/cache/orchestrator"
	cacheregistration "github.com/comcast/originshield/internal/cache/registration"
	"github.com/comcast/originshield/internal/config"
	"github.com/comcast/originshield/internal/origin"
	"github.com/comcast/originshield/internal/proxy/engines"
	"github.com/comcast/originshield/internal/ratelimit"
	"github.com/comcast/originshield/internal/routing"
	"github.com/comcast/originshield/internal/runtime"
	"github.com/comcast/originshield/internal/util/log"
	"github.com/comcast/originshield/internal/util/metrics"
	"github.com/comcast/originshield/internal/util/middleware"
)

// RegisterProxyRoutes builds a BucketRuntime for every configured
// bucket, assembles the pipeline Handler, and mounts it (plus health
// and metrics endpoints) on the shared gorilla/mux Router.
func RegisterProxyRoutes() error {
	cfg := config.Get()

	buckets := make(map[string]*config.BucketConfig, len(cfg.Buckets))
	runtimes := make(map[string]*engines.BucketRuntime, len(cfg.Buckets))

	for name, b := range cfg.Buckets {
		b.Name = name
		buckets[name] = b

		rt, err := buildBucketRuntime(cfg, b)
		if err != nil {
			return fmt.Errorf("registration: bucket %q: %w", name, err)
		}
		runtimes[name] = rt
		log.Info("registered bucket", log.Pairs{"bucket": name, "pathPrefix": b.PathPrefix, "replicas": len(b.Replicas)})
	}

	bucketRouter := routing.NewBucketRouter(buckets)
	handler := engines.NewHandler(bucketRouter, runtimes)

	// Reassign rather than reuse: a SIGHUP-triggered reload calls this
	// function again, and gorilla/mux has no route-reset API short of a
	// fresh router.
	routing.Router = routing.NewRouter()
	routing.Router.Use(middleware.Trace())
	routing.Router.HandleFunc(cfg.Main.PingHandlerPath, healthHandler).Methods(http.MethodGet)
	routing.Router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	routing.Router.HandleFunc("/ready", readyHandler(runtimes)).Methods(http.MethodGet)
	routing.Router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	routing.Router.PathPrefix("/").Handler(middleware.AccessLog(handler))

	return nil
}

func buildBucketRuntime(cfg *config.RuntimeConfig, b *config.BucketConfig) (*engines.BucketRuntime, error) {
	rt := &engines.BucketRuntime{Config: b}

	authPolicy, ok := cfg.AuthPolicies[b.AuthPolicyName]
	if !ok {
		authPolicy = cfg.AuthPolicies["default"]
	}
	rt.AuthPolicy = authPolicy
	rt.Oracle = buildOracle(authPolicy)

	rt.Selector = origin.NewSelector(b.Replicas, b.CircuitBreaker)
	rt.Client = origin.NewClient(b.Replicas)

	if b.RateLimit.Enabled {
		rt.RateLimiter = ratelimit.New(b.RateLimit.RatePerSec, b.RateLimit.Burst, b.RateLimit.IdleTTL, b.RateLimit.MaxTrackedClients)
	}

	if b.CachePolicy.Enabled {
		names := cachePolicyNames(b.CachePolicy)
		tiers, err := cacheregistration.NewTiers(cfg.Caches, names)
		if err != nil {
			return nil, err
		}
		if len(tiers) > 0 {
			rt.Cache = orchestrator.New(tiers)
			rt.CacheCompressed = tiers[0].Configuration().Compression
		}
	}

	return rt, nil
}

func cachePolicyNames(cp config.CachePolicy) []string {
	var names []string
	if cp.MemoryCacheName != "" {
		names = append(names, cp.MemoryCacheName)
	}
	if cp.DistributedCacheName != "" {
		names = append(names, cp.DistributedCacheName)
	}
	if cp.DiskCacheName != "" {
		names = append(names, cp.DiskCacheName)
	}
	return names
}

func buildOracle(p *config.AuthPolicyConfig) auth.Oracle {
	if p == nil || p.OracleType == "" || p.OracleType == "noop" {
		return auth.NewNoopOracle()
	}
	return auth.NewJWTOracle(auth.JWTOracleParams{
		SigningSecret: p.JWT.SigningSecret,
		Issuer:        p.JWT.Issuer,
		Audience:      p.JWT.Audience,
		RequiredScope: p.JWT.RequiredScope,
		TokenSource:   p.TokenSource,
		TokenParam:    p.TokenParamName,
		DecisionTTL:   decisionCacheTTL(p),
	})
}

func decisionCacheTTL(p *config.AuthPolicyConfig) time.Duration {
	if p.DecisionCacheTTLSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.DecisionCacheTTLSecs) * time.Second
}

// livenessBody is the JSON body returned by /health (§6): a liveness
// probe, not a dependency check, so it always reports 200 once the
// process is serving.
type livenessBody struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(livenessBody{Status: "ok", Version: runtime.ApplicationVersion})
}

// readinessBody is the JSON body returned by /ready (§6): per-bucket
// breaker health, used by load balancers deciding whether to keep
// routing traffic to this instance.
type readinessBody struct {
	Ready   bool            `json:"ready"`
	Buckets map[string]bool `json:"buckets"`
}

// readyHandler reports 200 iff every configured bucket has at least one
// replica whose circuit breaker is not open (§6); otherwise 503.
func readyHandler(runtimes map[string]*engines.BucketRuntime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := readinessBody{Ready: true, Buckets: make(map[string]bool, len(runtimes))}
		for name, rt := range runtimes {
			healthy := rt.Selector == nil || rt.Selector.Healthy()
			body.Buckets[name] = healthy
			if !healthy {
				body.Ready = false
			}
		}

		status := http.StatusOK
		if !body.Ready {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}
