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

// Package middleware provides the gorilla/mux middleware chain wrapped
// around the pipeline handler: request tracing and access logging, the
// same two concerns the teacher's own middleware package wired around
// every origin's paths.
package middleware

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/comcast/originshield/internal/util/tracing"
)

// Trace opens a span named "ServeHTTP" for every inbound request, with
// the request path recorded as the span's detail attribute, the
// generalized form of the teacher's per-origin-path Trace middleware
// (which looked up a handler name per configured path); this proxy has
// no static path table to consult, so the path travels as span detail.
func Trace() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.NewSpan(r.Context(), "ServeHTTP", r.URL.Path)
			defer span.End()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessLog wraps next with gorilla/handlers' combined (Apache-style)
// access logger, writing to stdout.
func AccessLog(next http.Handler) http.Handler {
	return handlers.CombinedLoggingHandler(os.Stdout, next)
}
