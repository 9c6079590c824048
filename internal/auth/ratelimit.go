package auth

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/bookstore/auth-service/pkg/util/errorutil"
)

const (
	defaultLoginRatePerMinute = 10
	limiterIdleAfter          = 10 * time.Minute
	limiterGCThreshold        = 1000
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginLimiter throttles credential checks per client IP with a token
// bucket that refills perMinute tokens a minute.
type LoginLimiter struct {
	perMinute int
	now       func() time.Time

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewLoginLimiter returns a limiter; perMinute <= 0 selects the default.
func NewLoginLimiter(perMinute int) *LoginLimiter {
	if perMinute <= 0 {
		perMinute = defaultLoginRatePerMinute
	}
	return &LoginLimiter{
		perMinute: perMinute,
		now:       time.Now,
		clients:   make(map[string]*clientLimiter),
	}
}

// Allow consumes one attempt for key.
func (l *LoginLimiter) Allow(key string) bool {
	now := l.now()
	return l.limiterFor(key, now).AllowN(now, 1)
}

// Handler rejects over-limit requests with 429.
func (l *LoginLimiter) Handler() fiber.Handler {
	retryAfter := strconv.Itoa(int((time.Minute / time.Duration(l.perMinute)).Seconds()) + 1)
	return func(c *fiber.Ctx) error {
		if !l.Allow(c.IP()) {
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return apperrors.NewRateLimited("too many login attempts")
		}
		return c.Next()
	}
}

func (l *LoginLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	l.gcLocked(now)
	entry := &clientLimiter{
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute),
		lastSeen: now,
	}
	l.clients[key] = entry
	return entry.limiter
}

func (l *LoginLimiter) gcLocked(now time.Time) {
	if len(l.clients) < limiterGCThreshold {
		return
	}
	cutoff := now.Add(-limiterIdleAfter)
	for key, entry := range l.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}
