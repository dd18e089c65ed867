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

package origin

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/comcast/originshield/internal/config"
)

func TestClassify(t *testing.T) {
	cases := map[int]Outcome{
		200: OutcomeSuccess,
		204: OutcomeSuccess,
		304: OutcomeSuccess,
		404: OutcomeClientError,
		403: OutcomeClientError,
		408: OutcomeTransientFailure,
		429: OutcomeTransientFailure,
		500: OutcomeTransientFailure,
		503: OutcomeTransientFailure,
	}
	for status, want := range cases {
		if got := classify(status); got != want {
			t.Errorf("classify(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestOutcomeLabel(t *testing.T) {
	if outcomeLabel(OutcomeSuccess) != "success" {
		t.Fatal("expected success label")
	}
	if outcomeLabel(OutcomeTransientFailure) != "transient_failure" {
		t.Fatal("expected transient_failure label")
	}
	if outcomeLabel(OutcomeClientError) != "client_error" {
		t.Fatal("expected client_error label")
	}
}

func TestFetchSignsAndStreamsSuccess(t *testing.T) {
	var gotAuthz string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthz = r.Header.Get("Authorization")
		if r.URL.Path != "/key/object.bin" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	replica := &config.ReplicaConfig{
		Name:               "primary",
		Endpoint:           srv.URL,
		Region:             "us-east-1",
		BucketNameOverride: "mybucket",
		AccessKey:          "AKIDEXAMPLE",
		SecretKey:          "secret",
		PoolCapacity:       4,
		Timeout:            2 * time.Second,
	}
	c := NewClient([]*config.ReplicaConfig{replica})

	resp, outcome, err := c.Fetch(context.Background(), replica, http.MethodGet, "key/object.bin", http.Header{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if outcome != OutcomeSuccess {
		t.Fatalf("expected OutcomeSuccess, got %v", outcome)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotAuthz == "" {
		t.Fatal("expected a SigV4 Authorization header to be sent")
	}

	var buf bytes.Buffer
	n, err := CopyBody(&buf, resp.Body)
	if err != nil {
		t.Fatalf("CopyBody error: %v", err)
	}
	if n != int64(len("hello world")) || buf.String() != "hello world" {
		t.Fatalf("unexpected body: %q (%d bytes)", buf.String(), n)
	}
}

func TestFetchClassifiesServerErrorAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	replica := &config.ReplicaConfig{
		Name:         "primary",
		Endpoint:     srv.URL,
		Region:       "us-east-1",
		AccessKey:    "AKIDEXAMPLE",
		SecretKey:    "secret",
		PoolCapacity: 1,
		Timeout:      2 * time.Second,
	}
	c := NewClient([]*config.ReplicaConfig{replica})

	resp, outcome, err := c.Fetch(context.Background(), replica, http.MethodGet, "obj", http.Header{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if outcome != OutcomeTransientFailure {
		t.Fatalf("expected OutcomeTransientFailure for 503, got %v", outcome)
	}
}

func TestFetchPassesThroughConditionalHeaders(t *testing.T) {
	var gotRange, gotINM string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		gotINM = r.Header.Get("If-None-Match")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	replica := &config.ReplicaConfig{
		Name:         "primary",
		Endpoint:     srv.URL,
		Region:       "us-east-1",
		AccessKey:    "AKIDEXAMPLE",
		SecretKey:    "secret",
		PoolCapacity: 1,
		Timeout:      2 * time.Second,
	}
	c := NewClient([]*config.ReplicaConfig{replica})

	inbound := http.Header{}
	inbound.Set("Range", "bytes=0-10")
	inbound.Set("If-None-Match", `"xyz"`)

	resp, _, err := c.Fetch(context.Background(), replica, http.MethodGet, "obj", inbound)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if gotRange != "bytes=0-10" {
		t.Fatalf("expected Range header forwarded, got %q", gotRange)
	}
	if gotINM != `"xyz"` {
		t.Fatalf("expected If-None-Match header forwarded, got %q", gotINM)
	}
}

func TestFetchNetworkErrorIsTransient(t *testing.T) {
	replica := &config.ReplicaConfig{
		Name:         "unreachable",
		Endpoint:     "http://127.0.0.1:1",
		Region:       "us-east-1",
		AccessKey:    "AKIDEXAMPLE",
		SecretKey:    "secret",
		PoolCapacity: 1,
		Timeout:      100 * time.Millisecond,
	}
	c := NewClient([]*config.ReplicaConfig{replica})

	_, outcome, err := c.Fetch(context.Background(), replica, http.MethodGet, "obj", http.Header{})
	if err == nil {
		t.Fatal("expected a connection error")
	}
	if outcome != OutcomeTransientFailure {
		t.Fatalf("expected OutcomeTransientFailure, got %v", outcome)
	}
}
