package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tillshift/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const purgeInterval = 5 * time.Minute

// window tracks hits for one key within a fixed window.
type window struct {
	count int
	end   time.Time
}

// RateLimiter is a fixed-window limiter keyed by client IP or operator.
// Expired keys are dropped by Purge / StartPurge.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*window
}

func NewRateLimiter(limit int, w time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  w,
		now:     time.Now,
		entries: make(map[string]*window),
	}
}

// Allow records a hit for key and reports whether it is within the limit,
// plus the end of the current window.
func (l *RateLimiter) Allow(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.end) {
		e = &window{end: now.Add(l.window)}
		l.entries[key] = e
	}
	e.count++
	return e.count <= l.limit, e.end
}

// ByIP limits per client IP.
func (l *RateLimiter) ByIP() gin.HandlerFunc {
	return l.middleware(func(c *gin.Context) string { return "ip:" + c.ClientIP() })
}

// ByOperator limits per authenticated operator (falls back to IP).
// Must run after JWTAuth.
func (l *RateLimiter) ByOperator() gin.HandlerFunc {
	return l.middleware(func(c *gin.Context) string {
		if v, ok := c.Get(ClaimsKey); ok {
			if claims, ok := v.(*JWTClaims); ok {
				return "op:" + claims.UserID
			}
		}
		return "ip:" + c.ClientIP()
	})
}

func (l *RateLimiter) middleware(key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, end := l.Allow(key(c))
		if !ok {
			c.Header("Retry-After", end.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("too many requests, try again shortly"))
			return
		}
		c.Next()
	}
}

// Purge drops expired windows and returns how many were removed.
func (l *RateLimiter) Purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	purged := 0
	for k, e := range l.entries {
		if now.After(e.end) {
			delete(l.entries, k)
			purged++
		}
	}
	return purged
}

// StartPurge purges expired entries every few minutes until ctx is done.
func (l *RateLimiter) StartPurge(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Purge(); n > 0 {
					log.Debug().Int("purged", n).Msg("rate limiter entries purged")
				}
			}
		}
	}()
}
