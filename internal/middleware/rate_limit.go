package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// LoginRateLimiter throttles requests per client IP with a token bucket.
type LoginRateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*visitor
	swept    time.Time
	mu       sync.Mutex
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginRateLimiter allows perSecond requests per IP with the given burst.
func NewLoginRateLimiter(perSecond float64, burst int) *LoginRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &LoginRateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*visitor),
	}
}

// Allow reports whether one more request from key may proceed.
func (l *LoginRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	v, ok := l.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = v
	}
	v.lastSeen = now
	l.evictIdle(now)
	return v.limiter.AllowN(now, 1)
}

// evictIdle must be called with the lock held. It sweeps at most once a
// minute.
func (l *LoginRateLimiter) evictIdle(now time.Time) {
	const idle = 10 * time.Minute
	if now.Sub(l.swept) < time.Minute {
		return
	}
	l.swept = now
	for key, v := range l.limiters {
		if now.Sub(v.lastSeen) > idle {
			delete(l.limiters, key)
		}
	}
}

// Handler rejects requests over the limit with 429.
func (l *LoginRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow(c.IP()) {
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "Too many login attempts, try again later",
			})
		}
		return c.Next()
	}
}
