package middleware

import (
	"os"
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const (
	defaultCapturesPerMinute = 30
	defaultCaptureBurst      = 5
)

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newRateLimiter(limit rate.Limit, burst int) *rateLimiter {
	return &rateLimiter{
		clients: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

// newRateLimiterFromEnv reads RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST.
func newRateLimiterFromEnv() *rateLimiter {
	perMinute := defaultCapturesPerMinute
	if n, err := strconv.Atoi(os.Getenv("RATE_LIMIT_PER_MINUTE")); err == nil && n > 0 {
		perMinute = n
	}

	burst := defaultCaptureBurst
	if n, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST")); err == nil && n > 0 {
		burst = n
	}

	return newRateLimiter(rate.Limit(float64(perMinute)/60), burst)
}

func (r *rateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.clients[ip]
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.clients[ip] = limiter
	}
	return limiter
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()

	if !m.rateLimitter.limiterFor(clientIP).Allow() {
		m.log.WithFields(map[string]interface{}{
			"request_id": m.GetRequestID(ctx),
			"client_ip":  clientIP,
			"path":       ctx.Path(),
		}).Warn("Rate limit exceeded")
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"ok":    false,
			"error": "TooManyRequests",
		})
	}

	return ctx.Next()
}
