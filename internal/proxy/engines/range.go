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

package engines

import (
	"net/http"
	"strconv"
	"strings"
)

// sliceRange satisfies a single-range "bytes=start-end" request (§4.12)
// out of an already-cached body. Multi-range and malformed headers fall
// back to serving the full body with its original status, the safe
// degradation a cache hit allows since the whole object is already
// in hand. start/end/total describe the satisfied (or rejected) range
// for Content-Range construction; they are only meaningful when ok is true.
func sliceRange(body []byte, rangeHeader string) (sliced []byte, status int, start, end, total int64, ok bool) {
	const prefix = "bytes="
	n := int64(len(body))
	if !strings.HasPrefix(rangeHeader, prefix) {
		return body, http.StatusOK, 0, 0, n, false
	}
	spec := strings.TrimPrefix(rangeHeader, prefix)
	if strings.Contains(spec, ",") {
		return body, http.StatusOK, 0, 0, n, false
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return body, http.StatusOK, 0, 0, n, false
	}

	var err error
	switch {
	case parts[0] == "" && parts[1] != "":
		// suffix range: last N bytes
		var suffix int64
		suffix, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil || suffix <= 0 {
			return body, http.StatusOK, 0, 0, n, false
		}
		if suffix > n {
			suffix = n
		}
		start = n - suffix
		end = n - 1
	case parts[1] == "":
		start, err = strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return body, http.StatusOK, 0, 0, n, false
		}
		end = n - 1
	default:
		start, err = strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return body, http.StatusOK, 0, 0, n, false
		}
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return body, http.StatusOK, 0, 0, n, false
		}
	}

	if start < 0 || start > end || start >= n {
		return body, http.StatusRequestedRangeNotSatisfiable, 0, 0, n, true
	}
	if end >= n {
		end = n - 1
	}
	return body[start : end+1], http.StatusPartialContent, start, end, n, true
}
