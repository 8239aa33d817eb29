package app

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"studylab/internal/app/apiresp"
)

type rateBucket struct {
	Count      int
	WindowEnds time.Time
}

// IPRateLimiter is a fixed-window per-key limiter. It guards session creation
// so a misbehaving client cannot churn through the registry.
type IPRateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	store  map[string]rateBucket
}

func NewIPRateLimiter(max int, window time.Duration) *IPRateLimiter {
	if max <= 0 {
		max = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &IPRateLimiter{
		max:    max,
		window: window,
		store:  make(map[string]rateBucket),
	}
}

func (l *IPRateLimiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.store[key]
	if now.After(b.WindowEnds) {
		b = rateBucket{Count: 0, WindowEnds: now.Add(l.window)}
	}
	if b.Count >= l.max {
		l.store[key] = b
		return false
	}
	b.Count++
	l.store[key] = b
	return true
}

func RateLimitMiddleware(l *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := strings.TrimSpace(r.RemoteAddr)
			key := ip + "|" + r.Method + "|" + r.URL.Path
			if !l.Allow(key) {
				apiresp.WriteError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
