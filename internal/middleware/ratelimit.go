package middleware

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// UserHeader carries the caller's participant name.
const UserHeader = "user"

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit rejects callers over their budget with 429. Callers are keyed by
// the user header, or by client IP when it is absent.
func RateLimit(l Limiter, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(UserHeader)
		if key == "" {
			key = getIP(c)
		}
		ok, err := l.Allow(c.UserContext(), key)
		if err != nil {
			log.Error("rate limiter error", zap.String("key", key), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "rate limiter error"})
		}
		if !ok {
			log.Warn("rate limit exceeded", zap.String("key", key), zap.String("path", c.Path()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}

type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisLimiter is a fixed window counter shared by every replica.
type RedisLimiter struct {
	rdb    counter
	prefix string
	limit  int64
	window time.Duration
}

func NewRedisLimiter(rdb counter, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, limit: int64(limit), window: window}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", r.prefix, key)
	count, err := r.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.rdb.Expire(ctx, redisKey, r.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= r.limit, nil
}

// LocalLimiter keeps a token bucket per key in process memory.
type LocalLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

func NewLocalLimiter(perMinute, burst int) *LocalLimiter {
	return &LocalLimiter{
		rps:     rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		idleTTL: 5 * time.Minute,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	return l.get(key).Allow(), nil
}

func (l *LocalLimiter) get(key string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := l.visitors.Load(key); ok {
		vi := v.(*visitor)
		vi.lastSeen.Store(now)
		return vi.limiter
	}
	vi := &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
	vi.lastSeen.Store(now)
	actual, _ := l.visitors.LoadOrStore(key, vi)
	return actual.(*visitor).limiter
}

// Run drops buckets not used for a while, once a minute, until ctx ends.
func (l *LocalLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(time.Now().Add(-l.idleTTL))
		}
	}
}

func (l *LocalLimiter) evict(cutoff time.Time) {
	l.visitors.Range(func(k, v any) bool {
		if v.(*visitor).lastSeen.Load() < cutoff.UnixNano() {
			l.visitors.Delete(k)
		}
		return true
	})
}

func getIP(c *fiber.Ctx) string {
	ip := c.IP()
	if ip == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}
