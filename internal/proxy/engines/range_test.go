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
	"testing"
)

func TestSliceRangeNormal(t *testing.T) {
	body := []byte("0123456789")
	sliced, status, start, end, total, ok := sliceRange(body, "bytes=2-5")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if status != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", status)
	}
	if string(sliced) != "2345" {
		t.Fatalf("sliced = %q, want %q", sliced, "2345")
	}
	if start != 2 || end != 5 || total != 10 {
		t.Fatalf("range = %d-%d/%d, want 2-5/10", start, end, total)
	}
}

func TestSliceRangeOpenEnded(t *testing.T) {
	body := []byte("0123456789")
	sliced, status, start, end, total, ok := sliceRange(body, "bytes=7-")
	if !ok || status != http.StatusPartialContent {
		t.Fatalf("unexpected result: %q %d %v", sliced, status, ok)
	}
	if string(sliced) != "789" {
		t.Fatalf("sliced = %q, want %q", sliced, "789")
	}
	if start != 7 || end != 9 || total != 10 {
		t.Fatalf("range = %d-%d/%d, want 7-9/10", start, end, total)
	}
}

func TestSliceRangeSuffix(t *testing.T) {
	body := []byte("0123456789")
	sliced, status, start, end, total, ok := sliceRange(body, "bytes=-3")
	if !ok || status != http.StatusPartialContent {
		t.Fatalf("unexpected result: %q %d %v", sliced, status, ok)
	}
	if string(sliced) != "789" {
		t.Fatalf("sliced = %q, want %q", sliced, "789")
	}
	if start != 7 || end != 9 || total != 10 {
		t.Fatalf("range = %d-%d/%d, want 7-9/10", start, end, total)
	}
}

func TestSliceRangeSuffixLargerThanBody(t *testing.T) {
	body := []byte("0123")
	sliced, status, start, end, total, ok := sliceRange(body, "bytes=-100")
	if !ok || status != http.StatusPartialContent {
		t.Fatalf("unexpected result: %q %d %v", sliced, status, ok)
	}
	if string(sliced) != "0123" {
		t.Fatalf("expected whole body, got %q", sliced)
	}
	if start != 0 || end != 3 || total != 4 {
		t.Fatalf("range = %d-%d/%d, want 0-3/4", start, end, total)
	}
}

func TestSliceRangeEndBeyondBody(t *testing.T) {
	body := []byte("0123456789")
	sliced, status, start, end, total, ok := sliceRange(body, "bytes=5-1000")
	if !ok || status != http.StatusPartialContent {
		t.Fatalf("unexpected result: %q %d %v", sliced, status, ok)
	}
	if string(sliced) != "56789" {
		t.Fatalf("sliced = %q, want %q", sliced, "56789")
	}
	if start != 5 || end != 9 || total != 10 {
		t.Fatalf("range = %d-%d/%d, want 5-9/10", start, end, total)
	}
}

func TestSliceRangeOutOfBounds(t *testing.T) {
	body := []byte("0123456789")
	_, status, _, _, total, ok := sliceRange(body, "bytes=50-60")
	if !ok {
		t.Fatal("expected ok=true with a 416 status")
	}
	if status != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", status)
	}
	if total != 10 {
		t.Fatalf("total = %d, want 10", total)
	}
}

func TestSliceRangeMultiRangeFallsBack(t *testing.T) {
	body := []byte("0123456789")
	sliced, status, _, _, _, ok := sliceRange(body, "bytes=0-1,3-4")
	if ok {
		t.Fatal("expected multi-range to fall back with ok=false")
	}
	if status != http.StatusOK || string(sliced) != string(body) {
		t.Fatal("expected full body with 200 status on fallback")
	}
}

func TestSliceRangeMalformedFallsBack(t *testing.T) {
	body := []byte("0123456789")
	sliced, status, _, _, _, ok := sliceRange(body, "not-a-range")
	if ok {
		t.Fatal("expected malformed header to fall back with ok=false")
	}
	if status != http.StatusOK || string(sliced) != string(body) {
		t.Fatal("expected full body with 200 status on fallback")
	}
}

func TestSliceRangeStartAfterEnd(t *testing.T) {
	body := []byte("0123456789")
	_, status, _, _, _, ok := sliceRange(body, "bytes=5-2")
	if !ok || status != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("expected 416 for start>end, got status=%d ok=%v", status, ok)
	}
}
