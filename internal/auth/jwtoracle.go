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
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTOracle validates HS256-signed JWTs against an issuer, audience,
// and required scope, caching the allow/deny decision per raw token
// for a bounded TTL so a hot client doesn't re-parse and re-validate
// its token on every request.
type JWTOracle struct {
	signingKey    []byte
	issuer        string
	audience      string
	requiredScope string
	tokenSource   string // "bearer", "header" or "query"
	tokenParam    string
	decisionTTL   time.Duration

	mu      sync.Mutex
	cache   map[string]cachedDecision
}

type cachedDecision struct {
	decision  Decision
	expiresAt time.Time
}

// JWTOracleParams configures a JWTOracle.
type JWTOracleParams struct {
	SigningSecret string
	Issuer        string
	Audience      string
	RequiredScope string
	TokenSource   string
	TokenParam    string
	DecisionTTL   time.Duration
}

// NewJWTOracle constructs a JWTOracle from p.
func NewJWTOracle(p JWTOracleParams) *JWTOracle {
	ttl := p.DecisionTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &JWTOracle{
		signingKey:    []byte(p.SigningSecret),
		issuer:        p.Issuer,
		audience:      p.Audience,
		requiredScope: p.RequiredScope,
		tokenSource:   p.TokenSource,
		tokenParam:    p.TokenParam,
		decisionTTL:   ttl,
		cache:         make(map[string]cachedDecision),
	}
}

// ExtractToken pulls the token from the configured source: a query
// parameter when TokenSource is "query", the header named by TokenParam
// when TokenSource is "header", and otherwise the Authorization header
// (bearer).
func (o *JWTOracle) ExtractToken(r *http.Request) (string, error) {
	if o.tokenSource == "query" {
		name := o.tokenParam
		if name == "" {
			name = "token"
		}
		return QueryToken(r, name)
	}
	if o.tokenSource == "header" && o.tokenParam != "" {
		return HeaderToken(r, o.tokenParam)
	}
	return HeaderToken(r, "Authorization")
}

// Authorize validates the JWT's signature, issuer, audience, expiry,
// and required scope claim, consulting (and populating) the bounded
// decision cache keyed by raw token.
func (o *JWTOracle) Authorize(ctx context.Context, token, bucketName, objectKey string) (Decision, error) {
	if token == "" {
		return Decision{Allowed: false, Reason: "missing token"}, nil
	}

	o.mu.Lock()
	if cd, ok := o.cache[token]; ok && time.Now().Before(cd.expiresAt) {
		o.mu.Unlock()
		return cd.decision, nil
	}
	o.mu.Unlock()

	decision := o.validate(token)

	o.mu.Lock()
	o.cache[token] = cachedDecision{decision: decision, expiresAt: time.Now().Add(o.decisionTTL)}
	o.mu.Unlock()

	return decision, nil
}

func (o *JWTOracle) validate(raw string) Decision {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))

	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return o.signingKey, nil
	})
	if err != nil {
		return Decision{Allowed: false, Reason: fmt.Sprintf("invalid token: %v", err)}
	}

	if o.issuer != "" {
		iss, _ := claims.GetIssuer()
		if iss != o.issuer {
			return Decision{Allowed: false, Reason: "issuer mismatch"}
		}
	}
	if o.audience != "" {
		aud, _ := claims.GetAudience()
		if !containsString(aud, o.audience) {
			return Decision{Allowed: false, Reason: "audience mismatch"}
		}
	}
	if o.requiredScope != "" {
		scope, _ := claims["scope"].(string)
		if !containsScope(scope, o.requiredScope) {
			return Decision{Allowed: false, Reason: "missing required scope"}
		}
	}

	return Decision{Allowed: true, Reason: "jwt verified"}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsScope(scopeClaim, required string) bool {
	if scopeClaim == required {
		return true
	}
	start := 0
	for i := 0; i <= len(scopeClaim); i++ {
		if i == len(scopeClaim) || scopeClaim[i] == ' ' {
			if scopeClaim[start:i] == required {
				return true
			}
			start = i + 1
		}
	}
	return false
}
