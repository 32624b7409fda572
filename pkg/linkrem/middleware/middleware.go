// Package middleware holds the CORS and rate limiting handlers shared by the API.
package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CORS answers cross-origin requests on /api/ for the allowed origins.
// "*" allows any origin, which is what browser extensions need by default.
func CORS(allowed []string) gin.HandlerFunc {
	wildcard := false
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
		set[o] = true
	}

	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin != "" && (wildcard || set[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type limiterEntry struct {
	limiter      *rate.Limiter
	lastAccessed time.Time
}

// IPRateLimiter keeps one token bucket per client IP
type IPRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	perMinute int
	burst     int
	idle      time.Duration
}

// NewIPRateLimiter allows perMinute requests per IP with the given burst
func NewIPRateLimiter(perMinute, burst int) *IPRateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &IPRateLimiter{
		limiters:  make(map[string]*limiterEntry),
		perMinute: perMinute,
		burst:     burst,
		idle:      10 * time.Minute,
	}
}

// Allow reports whether ip may make another request now
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, ok := l.limiters[ip]
	if !ok {
		e = &limiterEntry{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.burst),
		}
		l.limiters[ip] = e
	}
	e.lastAccessed = now
	return e.limiter.AllowN(now, 1)
}

// Prune drops limiters idle for longer than the idle window
func (l *IPRateLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, e := range l.limiters {
		if time.Since(e.lastAccessed) > l.idle {
			delete(l.limiters, ip)
		}
	}
}

// Middleware rejects requests over the limit with 429
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(clientIP(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests, please try again later"})
			return
		}
		c.Next()
	}
}

// RateLimit is shorthand for NewIPRateLimiter(perMinute, burst).Middleware()
func RateLimit(perMinute, burst int) gin.HandlerFunc {
	return NewIPRateLimiter(perMinute, burst).Middleware()
}

func clientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if ip, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return ip
	}
	return c.Request.RemoteAddr
}
