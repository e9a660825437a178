package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/pacigest/pacigest/internal/platform/apperr"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// Limit is the sustained rate in events per second.
	Limit rate.Limit
	Burst int
	// Name separates the buckets of independent limiters sharing an IP.
	Name string
	// IdleTTL evicts buckets not used for this long.
	IdleTTL time.Duration
}

// PerSecond builds a config allowing rps requests per second.
func PerSecond(rps float64, burst int) RateLimitConfig {
	return RateLimitConfig{Limit: rate.Limit(rps), Burst: burst, Name: "api", IdleTTL: 10 * time.Minute}
}

// PerMinute builds a config allowing n requests per minute with a burst of n.
func PerMinute(n int) RateLimitConfig {
	if n <= 0 {
		n = 1
	}
	return RateLimitConfig{Limit: rate.Every(time.Minute / time.Duration(n)), Burst: n, Name: "auth", IdleTTL: 30 * time.Minute}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds one limiter per key.
type limiterStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	config   RateLimitConfig
	now      func() time.Time
	lastGC   time.Time
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &limiterStore{
		visitors: make(map[string]*visitor),
		config:   cfg,
		now:      time.Now,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastGC) > s.config.IdleTTL {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) > s.config.IdleTTL {
				delete(s.visitors, k)
			}
		}
		s.lastGC = now
	}

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.config.Limit, s.config.Burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// RateLimit limits requests per client IP. Rejected requests get a 429
// with Retry-After.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newLimiterStore(cfg)
	limitHeader := strconv.Itoa(cfg.Burst)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			limiter := store.get(cfg.Name + ":" + c.RealIP())
			now := store.now()

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limitHeader)

			r := limiter.ReserveN(now, 1)
			if !r.OK() {
				h.Set("Retry-After", "60")
				h.Set("X-RateLimit-Remaining", "0")
				return apperr.RateLimit("too many requests, try again later")
			}
			if delay := r.DelayFrom(now); delay > 0 {
				r.CancelAt(now)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				h.Set("X-RateLimit-Remaining", "0")
				return apperr.RateLimit("too many requests, try again later")
			}

			h.Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.TokensAt(now))))
			return next(c)
		}
	}
}
