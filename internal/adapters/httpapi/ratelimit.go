package httpapi

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimiters hands out one token bucket per client address.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

func newClientLimiters(r rate.Limit, b int) *clientLimiters {
	return &clientLimiters{limiters: make(map[string]*rate.Limiter), r: r, b: b}
}

func (l *clientLimiters) get(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[client]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
		l.limiters[client] = limiter
	}
	return limiter
}

func rateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiters := newClientLimiters(r, b)
	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Code: "RateLimited", Message: "too many requests"})
			return
		}
		c.Next()
	}
}
