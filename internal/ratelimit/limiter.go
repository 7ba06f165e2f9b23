package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"universo_lite/internal/auth"
)

// Limiter keeps a token bucket per principal: the authenticated user ID when
// available, the client IP otherwise.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func New(rps float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
		// Lazy eviction of idle buckets keeps the map bounded without a
		// background goroutine.
		if len(l.buckets) > 10000 {
			cutoff := time.Now().Add(-10 * time.Minute)
			for k, old := range l.buckets {
				if old.lastSeen.Before(cutoff) {
					delete(l.buckets, k)
				}
			}
		}
	}
	b.lastSeen = time.Now()
	return b.lim
}

// Middleware enforces the limit and sets X-RateLimit headers on every
// response. Runs after the auth middleware so authenticated callers are
// keyed by user, not by IP.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if cl, ok := auth.ClaimsFrom(c); ok {
			key = "u:" + strconv.FormatInt(cl.UserID, 10)
		}

		lim := l.get(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.burst))
		if !lim.Allow() {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		remaining := int(lim.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}
