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

package headers

import (
	"net/http"
	"testing"
)

func TestRemoveHopByHopHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Connection", "keep-alive")
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Content-Type", "text/plain")

	RemoveHopByHopHeaders(h)

	if h.Get("Connection") != "" || h.Get("Transfer-Encoding") != "" {
		t.Fatal("expected hop-by-hop headers to be removed")
	}
	if h.Get("Content-Type") != "text/plain" {
		t.Fatal("expected end-to-end headers to survive")
	}
}

func TestAddProxyHeaders(t *testing.T) {
	h := http.Header{}
	AddProxyHeaders("10.0.0.1", h)
	if h.Get(NameXForwardedFor) != "10.0.0.1" {
		t.Fatalf("got %q", h.Get(NameXForwardedFor))
	}

	AddProxyHeaders("10.0.0.2", h)
	if h.Get(NameXForwardedFor) != "10.0.0.1, 10.0.0.2" {
		t.Fatalf("expected appended chain, got %q", h.Get(NameXForwardedFor))
	}
}

func TestAddProxyHeadersNoop(t *testing.T) {
	h := http.Header{}
	AddProxyHeaders("", h)
	if h.Get(NameXForwardedFor) != "" {
		t.Fatal("expected no header set for an empty remote addr")
	}
}

func TestCopyHeaders(t *testing.T) {
	src := http.Header{}
	src.Add("X-Multi", "a")
	src.Add("X-Multi", "b")
	dst := http.Header{}

	CopyHeaders(dst, src)

	got := dst["X-Multi"]
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected both values copied, got %v", got)
	}
}

func TestSetResultsHeader(t *testing.T) {
	h := http.Header{}
	SetResultsHeader(h, "engines.cache", "hit", "primary")
	want := "engine=engines.cache; status=hit; replica=primary"
	if got := h.Get(NameResult); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSetResultsHeaderNoReplica(t *testing.T) {
	h := http.Header{}
	SetResultsHeader(h, "engines.httpproxy", "bypass", "")
	want := "engine=engines.httpproxy; status=bypass"
	if got := h.Get(NameResult); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestValidators(t *testing.T) {
	h := http.Header{}
	h.Set(NameETag, `"abc"`)
	h.Set(NameLastModified, "Mon, 02 Jan 2006 15:04:05 GMT")

	v := Validators(h)
	if v.ETag != `"abc"` {
		t.Errorf("ETag = %q", v.ETag)
	}
	if v.LastModified != "Mon, 02 Jan 2006 15:04:05 GMT" {
		t.Errorf("LastModified = %q", v.LastModified)
	}
}
