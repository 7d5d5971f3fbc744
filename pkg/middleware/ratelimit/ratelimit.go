package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Limiter hands out a token bucket per client IP and evicts idle entries.
type Limiter struct {
	rate  rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New constructs a limiter allowing r events per second with the given burst.
func New(r float64, burst int) *Limiter {
	if r <= 0 {
		r = 20
	}
	if burst <= 0 {
		burst = int(r) * 2
	}
	l := &Limiter{
		rate:    rate.Limit(r),
		burst:   burst,
		clients: make(map[string]*client),
	}
	go l.evictLoop()
	return l
}

// PerMinute constructs a limiter allowing n events per minute. Used for the
// stricter buckets on auth and upload routes.
func PerMinute(n float64, burst int) *Limiter {
	return New(n/60.0, burst)
}

// Middleware rejects requests exceeding the client's bucket with 429.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "too many requests",
					"status":  http.StatusTooManyRequests,
				},
			})
			return
		}
		c.Next()
	}
}

func (l *Limiter) allow(ip string) bool {
	l.mu.Lock()
	entry, ok := l.clients[ip]
	if !ok {
		entry = &client{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()
	return entry.limiter.Allow()
}

func (l *Limiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		l.mu.Lock()
		for ip, entry := range l.clients {
			if entry.lastSeen.Before(cutoff) {
				delete(l.clients, ip)
			}
		}
		l.mu.Unlock()
	}
}
