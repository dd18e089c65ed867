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

package model

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateAccepted:    "accepted",
		StateRouted:      "routed",
		StateAuthorized:  "authorized",
		StateRateChecked: "rate_checked",
		StateDecided:     "decided",
		StateStreaming:   "streaming",
		StateCompleted:   "completed",
		StateFailed:      "failed",
		State(99):        "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestNewPopulatesFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/some/object/key", nil)
	r.Header.Set("Range", "bytes=0-10")
	r.Header.Set("If-None-Match", `"etag"`)
	r.Header.Set("If-Modified-Since", "Mon, 02 Jan 2006 15:04:05 GMT")
	r.RemoteAddr = "10.0.0.1:4000"

	rc := New(r)

	if rc.Method != "GET" {
		t.Errorf("Method = %q, want GET", rc.Method)
	}
	if rc.Path != "/some/object/key" {
		t.Errorf("Path = %q", rc.Path)
	}
	if rc.ClientAddr != "10.0.0.1:4000" {
		t.Errorf("ClientAddr = %q, want RemoteAddr fallback", rc.ClientAddr)
	}
	if rc.Range != "bytes=0-10" {
		t.Errorf("Range = %q", rc.Range)
	}
	if rc.IfNoneMatch != `"etag"` {
		t.Errorf("IfNoneMatch = %q", rc.IfNoneMatch)
	}
	if rc.IfModifiedSince == "" {
		t.Error("expected IfModifiedSince to be populated")
	}
	if rc.State != StateAccepted {
		t.Errorf("State = %v, want StateAccepted", rc.State)
	}
	var zero ulid.ULID
	if rc.RequestID.Compare(zero) == 0 {
		t.Error("expected a non-zero ULID request ID")
	}
}

func TestNewPrefersXForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/x", nil)
	r.RemoteAddr = "10.0.0.1:4000"
	r.Header.Set("X-Forwarded-For", "203.0.113.5")

	rc := New(r)
	if rc.ClientAddr != "203.0.113.5" {
		t.Errorf("ClientAddr = %q, want X-Forwarded-For value", rc.ClientAddr)
	}
}

func TestContextRoundTrip(t *testing.T) {
	rc := &RequestContext{Path: "/a"}
	ctx := WithContext(context.Background(), rc)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected FromContext to find the stored RequestContext")
	}
	if got != rc {
		t.Fatal("expected FromContext to return the same pointer stored")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Fatal("expected ok=false for a context with no RequestContext")
	}
}
