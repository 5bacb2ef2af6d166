package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter bounds how often a key may act within a sliding window. It is
// in-memory only; per-account OTP limits are enforced against the database,
// so this layer exists to stop raw per-IP abuse.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	window time.Duration
	limit  int
}

// NewRateLimiter returns a limiter allowing at most limit hits per key
// inside window. A background sweep drops stale keys.
func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	rl := &RateLimiter{
		hits:   make(map[string][]time.Time),
		window: window,
		limit:  limit,
	}
	go rl.sweep()
	return rl
}

// Allow records a hit for key and reports whether it stays under the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	recent := rl.recentLocked(key, now)
	if len(recent) >= rl.limit {
		rl.hits[key] = recent
		return false
	}
	rl.hits[key] = append(recent, now)
	return true
}

// recentLocked returns the hits for key still inside the window at now.
// Caller holds rl.mu.
func (rl *RateLimiter) recentLocked(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	recent := rl.hits[key][:0]
	for _, t := range rl.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	return recent
}

// sweep compacts the hit map hourly so idle clients don't accumulate forever.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		rl.sweepOnce(time.Now())
	}
}

// sweepOnce drops keys with no hits inside the window at now. Surviving keys
// must get the compacted slice stored back: recentLocked rewrites the backing
// array in place, so keeping the old full-length header would duplicate
// entries and over-count on later Allow calls.
func (rl *RateLimiter) sweepOnce(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key := range rl.hits {
		recent := rl.recentLocked(key, now)
		if len(recent) == 0 {
			delete(rl.hits, key)
		} else {
			rl.hits[key] = recent
		}
	}
}

// GetIPKey derives a limiter key from the client address, preferring the
// first X-Forwarded-For entry when the server sits behind a proxy.
func GetIPKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if i := strings.IndexByte(forwarded, ','); i >= 0 {
			forwarded = forwarded[:i]
		}
		return "ip:" + strings.TrimSpace(forwarded)
	}
	return "ip:" + r.RemoteAddr
}
