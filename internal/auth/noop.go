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

package auth

import (
	"context"
	"net/http"
)

// NoopOracle authorizes every request unconditionally. This is the
// default oracle for buckets without an auth_policy, and for tests.
type NoopOracle struct{}

// NewNoopOracle constructs a NoopOracle.
func NewNoopOracle() *NoopOracle {
	return &NoopOracle{}
}

// ExtractToken always succeeds with an empty token; NoopOracle does
// not require one.
func (o *NoopOracle) ExtractToken(r *http.Request) (string, error) {
	return "", nil
}

// Authorize always allows.
func (o *NoopOracle) Authorize(ctx context.Context, token, bucketName, objectKey string) (Decision, error) {
	return Decision{Allowed: true, Reason: "noop"}, nil
}
