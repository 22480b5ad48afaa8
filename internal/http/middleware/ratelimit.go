package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type clientInfo struct {
	start time.Time
	count int64
}

// memoryLimiter is a fixed-window counter used when Redis is not configured.
type memoryLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	clients map[string]*clientInfo
}

func newMemoryLimiter(limit int, window time.Duration) *memoryLimiter {
	return &memoryLimiter{limit: limit, window: window, clients: make(map[string]*clientInfo)}
}

// hit counts one request for key and returns the count inside the current window.
func (l *memoryLimiter) hit(key string, now time.Time) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	ci, ok := l.clients[key]
	if !ok || now.Sub(ci.start) > l.window {
		ci = &clientInfo{start: now}
		l.clients[key] = ci
	}
	ci.count++

	// drop expired windows once the map grows
	if len(l.clients) > 10000 {
		for k, v := range l.clients {
			if now.Sub(v.start) > l.window {
				delete(l.clients, k)
			}
		}
	}
	return ci.count
}

// SimpleRateLimit blocks clients that send more than maxRequests per window
func SimpleRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	l := newMemoryLimiter(maxRequests, window)
	return func(c *gin.Context) {
		if l.hit(c.ClientIP(), time.Now()) > int64(l.limit) {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}
