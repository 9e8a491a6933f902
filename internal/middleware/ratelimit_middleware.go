package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/onhand_api/internal/utils"
)

const (
	failedLoginLimit  = 5
	failedLoginWindow = time.Minute
)

// Rate limiter ONLY for failed login attempts
type FailedLoginRateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptInfo
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

type attemptInfo struct {
	count   int
	firstAt time.Time
}

func NewFailedLoginRateLimiter() *FailedLoginRateLimiter {
	rl := &FailedLoginRateLimiter{
		attempts: make(map[string]*attemptInfo),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Blocked reports whether ip used up its failed attempts in the current window.
// Limit: 5 failures per minute
func (r *FailedLoginRateLimiter) Blocked(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.attempts[ip]
	if !ok {
		return false
	}
	if r.now().Sub(info.firstAt) > failedLoginWindow {
		delete(r.attempts, ip)
		return false
	}
	return info.count >= failedLoginLimit
}

// Fail records one failed attempt for ip.
func (r *FailedLoginRateLimiter) Fail(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	info, ok := r.attempts[ip]
	// Reset if window expired
	if !ok || now.Sub(info.firstAt) > failedLoginWindow {
		r.attempts[ip] = &attemptInfo{count: 1, firstAt: now}
		return
	}
	info.count++
}

// Handle rejects blocked IPs and counts every 401 the login handler returns.
func (r *FailedLoginRateLimiter) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if r.Blocked(ip) {
			utils.Error(c, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many failed login attempts")
			c.Abort()
			return
		}

		c.Next()

		if c.Writer.Status() == http.StatusUnauthorized {
			r.Fail(ip)
		}
	}
}

// Close stops the cleanup goroutine.
func (r *FailedLoginRateLimiter) Close() {
	r.once.Do(func() { close(r.stop) })
}

func (r *FailedLoginRateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			now := r.now()
			for ip, info := range r.attempts {
				if now.Sub(info.firstAt) > failedLoginWindow {
					delete(r.attempts, ip)
				}
			}
			r.mu.Unlock()
		}
	}
}
