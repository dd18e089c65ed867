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

package tracing

import (
	"context"
	"testing"
)

func TestNewSpanRecorded(t *testing.T) {
	rec, err := InitRecorder()
	if err != nil {
		t.Fatal(err)
	}

	ctx, span := NewSpan(context.Background(), "test-span", "detail")
	span.End()

	if ctx == nil {
		t.Fatal("expected non-nil context")
	}

	if len(rec.Spans()) != 1 {
		t.Fatalf("expected 1 recorded span, got %d", len(rec.Spans()))
	}
	if rec.Spans()[0].Name != "test-span" {
		t.Fatalf("expected span name 'test-span', got %q", rec.Spans()[0].Name)
	}
}
