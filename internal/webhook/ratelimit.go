// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webhook

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// HeaderRateLimitRemaining carries the number of requests left in the
	// current bucket.
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	// HeaderRateLimitReset carries the epoch time at which the bucket resets.
	HeaderRateLimitReset = "X-RateLimit-Reset"
)

// RateLimit holds the pacing hints parsed from a single response.
type RateLimit struct {
	// Remaining is zero when the header is missing or malformed.
	Remaining int
	// Reset is only meaningful when HasReset is true.
	Reset    time.Time
	HasReset bool
}

// ParseRateLimit extracts the rate limit headers from h. A missing or
// malformed remaining count yields 0; a missing or malformed reset yields
// no reset. Discord sends the reset with a fractional part, which is kept
// to millisecond precision.
func ParseRateLimit(h http.Header) RateLimit {
	var rl RateLimit

	if raw := strings.TrimSpace(h.Get(HeaderRateLimitRemaining)); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			rl.Remaining = n
		}
	}

	if raw := strings.TrimSpace(h.Get(HeaderRateLimitReset)); raw != "" {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			rl.Reset = time.Unix(secs, 0)
			rl.HasReset = true
		} else if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			rl.Reset = time.UnixMilli(int64(math.Round(f * 1000)))
			rl.HasReset = true
		}
	}

	return rl
}

// Delay returns how long to wait before the next request. Nothing is waited
// while requests remain; otherwise the wait runs until the reset time, or
// fallback when the server gave none.
func (rl RateLimit) Delay(now time.Time, fallback time.Duration) time.Duration {
	if rl.Remaining > 0 {
		return 0
	}
	if !rl.HasReset {
		return fallback
	}
	if d := rl.Reset.Sub(now); d > 0 {
		return d
	}
	return 0
}
