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
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-signing-secret"

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return s
}

func TestJWTOracleAuthorizesValidToken(t *testing.T) {
	o := NewJWTOracle(JWTOracleParams{
		SigningSecret: testSecret,
		Issuer:        "originshield-test",
		Audience:      "s3-proxy",
		RequiredScope: "read",
		DecisionTTL:   time.Minute,
	})

	token := signTestToken(t, jwt.MapClaims{
		"iss":   "originshield-test",
		"aud":   "s3-proxy",
		"scope": "read write",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	d, err := o.Authorize(context.Background(), token, "images", "cat.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected token to be authorized, got reason: %s", d.Reason)
	}
}

func TestJWTOracleRejectsWrongIssuer(t *testing.T) {
	o := NewJWTOracle(JWTOracleParams{SigningSecret: testSecret, Issuer: "expected-issuer"})
	token := signTestToken(t, jwt.MapClaims{"iss": "other-issuer", "exp": time.Now().Add(time.Hour).Unix()})

	d, err := o.Authorize(context.Background(), token, "images", "cat.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected mismatched issuer to be rejected")
	}
}

func TestJWTOracleRejectsMissingScope(t *testing.T) {
	o := NewJWTOracle(JWTOracleParams{SigningSecret: testSecret, RequiredScope: "write"})
	token := signTestToken(t, jwt.MapClaims{"scope": "read", "exp": time.Now().Add(time.Hour).Unix()})

	d, err := o.Authorize(context.Background(), token, "images", "cat.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected missing required scope to be rejected")
	}
}

func TestJWTOracleRejectsExpiredToken(t *testing.T) {
	o := NewJWTOracle(JWTOracleParams{SigningSecret: testSecret})
	token := signTestToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})

	d, err := o.Authorize(context.Background(), token, "images", "cat.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestJWTOracleRejectsBadSignature(t *testing.T) {
	o := NewJWTOracle(JWTOracleParams{SigningSecret: testSecret})
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	badToken, err := tok.SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	d, err := o.Authorize(context.Background(), badToken, "images", "cat.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected bad signature to be rejected")
	}
}

func TestJWTOracleCachesDecision(t *testing.T) {
	o := NewJWTOracle(JWTOracleParams{SigningSecret: testSecret, DecisionTTL: time.Minute})
	token := signTestToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	if _, err := o.Authorize(context.Background(), token, "images", "cat.png"); err != nil {
		t.Fatal(err)
	}
	if len(o.cache) != 1 {
		t.Fatalf("expected decision to be cached, got %d entries", len(o.cache))
	}

	d, err := o.Authorize(context.Background(), token, "images", "cat.png")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Fatal("expected cached decision to still allow")
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	o := NewJWTOracle(JWTOracleParams{SigningSecret: testSecret})
	r := httptest.NewRequest(http.MethodGet, "/img/cat.png", nil)
	r.Header.Set("Authorization", "Bearer abc.def.ghi")

	tok, err := o.ExtractToken(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != "abc.def.ghi" {
		t.Fatalf("expected extracted token 'abc.def.ghi', got %q", tok)
	}
}

func TestExtractTokenFromQuery(t *testing.T) {
	o := NewJWTOracle(JWTOracleParams{SigningSecret: testSecret, TokenSource: "query", TokenParam: "access_token"})
	r := httptest.NewRequest(http.MethodGet, "/img/cat.png?access_token=xyz", nil)

	tok, err := o.ExtractToken(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != "xyz" {
		t.Fatalf("expected extracted token 'xyz', got %q", tok)
	}
}
