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
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/comcast/originshield/internal/config"
	"github.com/comcast/originshield/internal/sigv4"
	"github.com/comcast/originshield/internal/util/log"
	"github.com/comcast/originshield/internal/util/metrics"
)

// copyBufferSize matches the teacher's fixed streaming buffer size for
// origin-to-client body copies.
const copyBufferSize = 64 * 1024

// passthroughHeaders are propagated unchanged from the inbound client
// request to the signed origin request.
var passthroughHeaders = []string{"Range", "If-None-Match", "If-Modified-Since"}

// Client issues SigV4-signed requests to S3-compatible replicas, one
// *http.Transport per replica sized by the replica's configured pool
// capacity, mirroring the teacher's per-origin OriginConfig transport
// knobs.
type Client struct {
	signer     *sigv4.Signer
	transports map[string]*http.Transport
}

// NewClient constructs a Client with one pooled transport per replica.
func NewClient(replicas []*config.ReplicaConfig) *Client {
	c := &Client{signer: sigv4.New(), transports: make(map[string]*http.Transport)}
	for _, r := range replicas {
		transport := &http.Transport{
			MaxIdleConns:        r.PoolCapacity,
			MaxIdleConnsPerHost: r.PoolCapacity,
			IdleConnTimeout:     90 * time.Second,
		}
		// Most S3-compatible origins speak HTTP/2 over TLS; configuring
		// it explicitly avoids relying on the transport's own lazy
		// upgrade, the same way a long-lived connection pool to a
		// handful of replicas wants its protocol settled up front.
		if err := http2.ConfigureTransport(transport); err != nil {
			log.Warn("http2 configuration failed, falling back to http/1.1", log.Pairs{
				"replica": r.Name, "error": err.Error(),
			})
		}
		c.transports[r.Name] = transport
	}
	return c
}

// Outcome classifies how an origin request completed, for breaker and
// metrics bookkeeping (§4.15).
type Outcome int

// Outcome values.
const (
	OutcomeSuccess Outcome = iota
	OutcomeTransientFailure
	OutcomeClientError
)

// Response is the streamed result of a Fetch.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Fetch issues a signed GET/HEAD for objectKey against replica,
// propagating conditional/range headers from inbound.
func (c *Client) Fetch(ctx context.Context, replica *config.ReplicaConfig, method, objectKey string, inbound http.Header) (*Response, Outcome, error) {
	bucketName := replica.BucketNameOverride
	uri := "/" + strings.TrimPrefix(objectKey, "/")
	url := fmt.Sprintf("%s%s", strings.TrimSuffix(replica.Endpoint, "/"), uri)

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, OutcomeClientError, err
	}
	req.Header.Set("Host", req.URL.Host)
	for _, h := range passthroughHeaders {
		if v := inbound.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	authz, _, _ := c.signer.Sign(sigv4.Request{
		Method:       method,
		CanonicalURI: req.URL.Path,
		RawQuery:     req.URL.RawQuery,
		Headers:      req.Header,
		Region:       replica.Region,
		Timestamp:    time.Now(),
		Credentials: sigv4.Credentials{
			AccessKey: replica.AccessKey,
			SecretKey: replica.SecretKey,
		},
	})
	req.Header.Set("Authorization", authz)

	transport := c.transports[replica.Name]
	client := &http.Client{Transport: transport, Timeout: replica.Timeout}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		metrics.OriginRequests.WithLabelValues(bucketName, replica.Name, "transient_failure").Inc()
		log.Warn("origin request failed", log.Pairs{"replica": replica.Name, "error": err.Error()})
		return nil, OutcomeTransientFailure, err
	}

	outcome := classify(resp.StatusCode)
	metrics.OriginRequests.WithLabelValues(bucketName, replica.Name, outcomeLabel(outcome)).Inc()
	log.Debug("origin request completed", log.Pairs{
		"replica": replica.Name, "status": resp.StatusCode, "elapsedMS": time.Since(start).Milliseconds(),
	})

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, outcome, nil
}

// classify maps an HTTP status to an Outcome for breaker bookkeeping
// (§4.15): 5xx and 408/429 are transient; other 4xx are client errors
// that must not trip the breaker.
func classify(status int) Outcome {
	switch {
	case status >= 200 && status < 400:
		return OutcomeSuccess
	case status == 408 || status == 429 || status >= 500:
		return OutcomeTransientFailure
	default:
		return OutcomeClientError
	}
}

func outcomeLabel(o Outcome) string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransientFailure:
		return "transient_failure"
	default:
		return "client_error"
	}
}

// CopyBody streams src into dst using the fixed copy buffer size, the
// same streaming shape as the teacher's Respond path.
func CopyBody(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyBufferSize)
	return io.CopyBuffer(dst, src, buf)
}
