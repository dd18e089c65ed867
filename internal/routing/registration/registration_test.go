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

package registration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/comcast/originshield/internal/config"
	"github.com/comcast/originshield/internal/origin"
	"github.com/comcast/originshield/internal/proxy/engines"
)

func TestHealthHandlerReturnsLivenessJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	healthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body livenessBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response was not valid JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("status field = %q, want ok", body.Status)
	}
}

func TestReadyHandlerReportsHealthyBucket(t *testing.T) {
	replica := &config.ReplicaConfig{Name: "r1", Endpoint: "http://127.0.0.1:0", Region: "us-east-1", PoolCapacity: 1, Timeout: time.Second}
	cb := config.CircuitBreakerParams{FailureThreshold: 3, SuccessThreshold: 1, OpenTimeout: time.Minute, HalfOpenPermits: 1}
	rt := &engines.BucketRuntime{Selector: origin.NewSelector([]*config.ReplicaConfig{replica}, cb)}

	h := readyHandler(map[string]*engines.BucketRuntime{"b1": rt})
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body readinessBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response was not valid JSON: %v", err)
	}
	if !body.Ready || !body.Buckets["b1"] {
		t.Fatalf("expected ready bucket, got %+v", body)
	}
}

func TestReadyHandlerReportsUnhealthyBucketWhenAllReplicasOpen(t *testing.T) {
	replica := &config.ReplicaConfig{Name: "r1", Endpoint: "http://127.0.0.1:0", Region: "us-east-1", PoolCapacity: 1, Timeout: time.Second}
	cb := config.CircuitBreakerParams{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Hour, HalfOpenPermits: 1}
	sel := origin.NewSelector([]*config.ReplicaConfig{replica}, cb)

	// Trip the only replica's breaker open.
	selection, err := sel.Select()
	if err != nil {
		t.Fatalf("unexpected selection error: %v", err)
	}
	selection.Permit.Failure()

	rt := &engines.BucketRuntime{Selector: sel}
	h := readyHandler(map[string]*engines.BucketRuntime{"b1": rt})
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body readinessBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response was not valid JSON: %v", err)
	}
	if body.Ready || body.Buckets["b1"] {
		t.Fatalf("expected unhealthy bucket, got %+v", body)
	}
}
