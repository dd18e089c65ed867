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

package orchestrator

import "sync"

// call is one in-flight origin fetch shared by every concurrent caller
// asking for the same cache key.
type call struct {
	wg    sync.WaitGroup
	value *Result
	err   error
}

// inflightRegistry coalesces concurrent Get calls for the same key into
// a single origin fetch (§4.11), in the shape of golang.org/x/sync/
// singleflight's Group but hand-rolled here. Every concurrent caller
// for a key blocks until the one in-flight fetch finishes and receives
// its shared result; no caller is served a stale entry while a refresh
// is running.
type inflightRegistry struct {
	mu    sync.Mutex
	calls map[string]*call
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{calls: make(map[string]*call)}
}

// Do executes fn for key if no fetch is already in flight, or waits
// for and returns the result of the fetch already in flight.
func (r *inflightRegistry) Do(key string, fn func() (*Result, error)) (*Result, error, bool) {
	r.mu.Lock()
	if c, ok := r.calls[key]; ok {
		r.mu.Unlock()
		c.wg.Wait()
		return c.value, c.err, true
	}

	c := new(call)
	c.wg.Add(1)
	r.calls[key] = c
	r.mu.Unlock()

	c.value, c.err = fn()
	c.wg.Done()

	r.mu.Lock()
	delete(r.calls, key)
	r.mu.Unlock()

	return c.value, c.err, false
}

// InFlightCount returns the number of keys currently being fetched,
// for metrics/tests.
func (r *inflightRegistry) InFlightCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
