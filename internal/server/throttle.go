package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle rejects requests beyond a token bucket (burst + sustained
// rate) and a daily quota, before they reach the handler. The quota
// window resets at UTC midnight.
type Throttle struct {
	limiter *rate.Limiter

	mu         sync.Mutex
	dailyQuota int
	used       int
	window     time.Time

	now func() time.Time
}

// NewThrottle creates a throttle with the given sustained rate, burst,
// and daily quota. Non-positive values disable the respective limit.
func NewThrottle(ratePerSecond float64, burst, dailyQuota int) *Throttle {
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &Throttle{
		limiter:    limiter,
		dailyQuota: dailyQuota,
		now:        time.Now,
	}
}

// Allow reports whether one more request may pass.
func (t *Throttle) Allow() bool {
	if t.limiter != nil && !t.limiter.Allow() {
		return false
	}
	if t.dailyQuota <= 0 {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	day := t.now().UTC().Truncate(24 * time.Hour)
	if !day.Equal(t.window) {
		t.window = day
		t.used = 0
	}
	if t.used >= t.dailyQuota {
		return false
	}
	t.used++
	return true
}

// Middleware rejects throttled requests with 429 before the handler runs.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{
				"error":   "too_many_requests",
				"message": "request rate limit exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
