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

package cache

import (
	"time"

	"github.com/tinylib/msgp/msgp"
)

//go:generate msgp -file=$GOFILE -o=entry_gen.go

// Entry is the wire representation of one cached object: status line,
// headers, body, and the freshness bookkeeping the orchestrator and
// the freshness engine need on every hit, serialized with msgp and
// (optionally) snappy-compressed the same way the teacher's
// model.HTTPDocument is stored (engines/cache.go).
type Entry struct {
	StatusCode     int               `msg:"status_code"`
	Headers        map[string]string `msg:"headers"`
	Body           []byte            `msg:"body"`
	StoredAt       int64             `msg:"stored_at"` // unix seconds
	FreshnessTTL   int64             `msg:"freshness_ttl_secs"`
	ETag           string            `msg:"etag"`
	LastModified   string            `msg:"last_modified"`
	ReplicaOrigin  string            `msg:"replica_origin"`
	SizeBytes      int64             `msg:"size_bytes"`
}

// StoredAtTime returns StoredAt as a time.Time.
func (e *Entry) StoredAtTime() time.Time {
	return time.Unix(e.StoredAt, 0).UTC()
}

// FreshnessLifetime returns FreshnessTTL as a time.Duration.
func (e *Entry) FreshnessLifetime() time.Duration {
	return time.Duration(e.FreshnessTTL) * time.Second
}

// MarshalMsg appends the msgpack encoding of e to b and returns the
// extended slice, hand-written against tinylib/msgp's append helpers
// in the same shape `msgp -file` would generate.
func (e *Entry) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendMapHeader(b, 9)
	o = msgp.AppendString(o, "status_code")
	o = msgp.AppendInt(o, e.StatusCode)
	o = msgp.AppendString(o, "headers")
	o = msgp.AppendMapHeader(o, uint32(len(e.Headers)))
	for k, v := range e.Headers {
		o = msgp.AppendString(o, k)
		o = msgp.AppendString(o, v)
	}
	o = msgp.AppendString(o, "body")
	o = msgp.AppendBytes(o, e.Body)
	o = msgp.AppendString(o, "stored_at")
	o = msgp.AppendInt64(o, e.StoredAt)
	o = msgp.AppendString(o, "freshness_ttl_secs")
	o = msgp.AppendInt64(o, e.FreshnessTTL)
	o = msgp.AppendString(o, "etag")
	o = msgp.AppendString(o, e.ETag)
	o = msgp.AppendString(o, "last_modified")
	o = msgp.AppendString(o, e.LastModified)
	o = msgp.AppendString(o, "replica_origin")
	o = msgp.AppendString(o, e.ReplicaOrigin)
	o = msgp.AppendString(o, "size_bytes")
	o = msgp.AppendInt64(o, e.SizeBytes)
	return o, nil
}

// UnmarshalMsg decodes the msgpack encoding in bts into e, returning
// any trailing bytes.
func (e *Entry) UnmarshalMsg(bts []byte) ([]byte, error) {
	n, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < n; i++ {
		var field string
		field, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return bts, err
		}
		switch field {
		case "status_code":
			e.StatusCode, bts, err = msgp.ReadIntBytes(bts)
		case "headers":
			var hn uint32
			hn, bts, err = msgp.ReadMapHeaderBytes(bts)
			if err != nil {
				return bts, err
			}
			e.Headers = make(map[string]string, hn)
			for j := uint32(0); j < hn; j++ {
				var k, v string
				k, bts, err = msgp.ReadStringBytes(bts)
				if err != nil {
					return bts, err
				}
				v, bts, err = msgp.ReadStringBytes(bts)
				if err != nil {
					return bts, err
				}
				e.Headers[k] = v
			}
		case "body":
			e.Body, bts, err = msgp.ReadBytesBytes(bts, nil)
		case "stored_at":
			e.StoredAt, bts, err = msgp.ReadInt64Bytes(bts)
		case "freshness_ttl_secs":
			e.FreshnessTTL, bts, err = msgp.ReadInt64Bytes(bts)
		case "etag":
			e.ETag, bts, err = msgp.ReadStringBytes(bts)
		case "last_modified":
			e.LastModified, bts, err = msgp.ReadStringBytes(bts)
		case "replica_origin":
			e.ReplicaOrigin, bts, err = msgp.ReadStringBytes(bts)
		case "size_bytes":
			e.SizeBytes, bts, err = msgp.ReadInt64Bytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}
