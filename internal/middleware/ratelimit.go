package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quizpoint/quizpoint-backend/internal/response"
)

// bucket tracks request timestamps for one client IP.
type bucket struct {
	timestamps []time.Time
}

// RateLimiter is a simple in-memory sliding-window limiter keyed by client IP.
// Suitable for the single-instance deployments this service targets.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
}

// NewRateLimiter creates a limiter allowing `limit` requests per `window`.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
	}
	go rl.cleanupLoop()
	return rl
}

// Middleware returns the Gin handler enforcing the limit.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{}
		rl.buckets[ip] = b
	}

	// Drop timestamps outside the window.
	kept := b.timestamps[:0]
	for _, t := range b.timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.timestamps = kept

	if len(b.timestamps) >= rl.limit {
		return false
	}
	b.timestamps = append(b.timestamps, now)
	return true
}

// cleanupLoop evicts idle IPs so the map does not grow unbounded.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-rl.window)
		for ip, b := range rl.buckets {
			live := false
			for _, t := range b.timestamps {
				if t.After(cutoff) {
					live = true
					break
				}
			}
			if !live {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}
