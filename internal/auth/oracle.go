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

// Package auth implements the pluggable Auth Oracle (§4.3): a request
// is authorized by extracting a token from the inbound request and
// asking an Oracle implementation whether it may proceed.
package auth

import (
	"context"
	"errors"
	"net/http"
)

// ErrNoToken is returned by ExtractToken when the configured token
// source carries no token.
var ErrNoToken = errors.New("auth: no token present on request")

// Decision is the result of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Oracle decides whether a request may proceed against its bucket.
// Implementations must not block the request path on an external
// dependency that can stall indefinitely; FailOpen/FailClosed behavior
// on oracle error is the caller's responsibility (bucket's
// AuthPolicyConfig.FailOpen).
type Oracle interface {
	// ExtractToken pulls the credential/token from the inbound request
	// per the policy's configured token source (header, query param).
	ExtractToken(r *http.Request) (string, error)

	// Authorize decides whether token may access bucketName/objectKey.
	Authorize(ctx context.Context, token, bucketName, objectKey string) (Decision, error)
}

// HeaderToken extracts a bearer-style token from an arbitrary header.
func HeaderToken(r *http.Request, headerName string) (string, error) {
	v := r.Header.Get(headerName)
	if v == "" {
		return "", ErrNoToken
	}
	const prefix = "Bearer "
	if len(v) > len(prefix) && v[:len(prefix)] == prefix {
		return v[len(prefix):], nil
	}
	return v, nil
}

// QueryToken extracts a token from a query string parameter.
func QueryToken(r *http.Request, paramName string) (string, error) {
	v := r.URL.Query().Get(paramName)
	if v == "" {
		return "", ErrNoToken
	}
	return v, nil
}
