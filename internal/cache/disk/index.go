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

package disk

import (
	"encoding/json"
	"time"

	"github.com/coreos/bbolt"
)

// indexRecord is the bbolt-persisted metadata for one shard-file body.
// bbolt's own write-ahead B+tree file gives the crash-safe "journaled
// metadata file" the spec calls for without a bespoke WAL.
type indexRecord struct {
	Path     string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	StoredAt int64  `json:"stored_at"`
	ExpireAt int64  `json:"expire_at"` // unix seconds; 0 means no TTL
}

var indexBucketName = []byte("index")

func openIndex(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexBucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func putIndexRecord(db *bbolt.DB, key string, rec indexRecord) error {
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(indexBucketName)
		buf, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), buf)
	})
}

func getIndexRecord(db *bbolt.DB, key string) (indexRecord, bool, error) {
	var rec indexRecord
	var found bool
	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(indexBucketName)
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	return rec, found, err
}

func deleteIndexRecord(db *bbolt.DB, key string) error {
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(indexBucketName).Delete([]byte(key))
	})
}

// forEachIndexRecord calls fn for every (key, record) pair in the
// index, in bbolt's natural key order. Used for startup recovery and
// LRU eviction scans.
func forEachIndexRecord(db *bbolt.DB, fn func(key string, rec indexRecord) error) error {
	return db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(indexBucketName)
		return b.ForEach(func(k, v []byte) error {
			var rec indexRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			return fn(string(k), rec)
		})
	})
}

// clearIndex empties the index bucket in one transaction.
func clearIndex(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(indexBucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(indexBucketName)
		return err
	})
}

