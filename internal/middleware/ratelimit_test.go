package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.counts[key]++
	cmd.SetVal(f.counts[key])
	return cmd
}

func (f *fakeCounter) Expire(ctx context.Context, key string, d time.Duration) *redis.BoolCmd {
	f.expires[key] = d
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func Test_RedisLimiter_FixedWindow(t *testing.T) {
	rdb := newFakeCounter()
	l := NewRedisLimiter(rdb, "test", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "maria")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := l.Allow(ctx, "maria")
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, time.Minute, rdb.expires["test:maria"])

	ok, err = l.Allow(ctx, "joao")
	require.NoError(t, err)
	require.True(t, ok)
}

func Test_RedisLimiter_Error(t *testing.T) {
	rdb := newFakeCounter()
	rdb.err = errors.New("connection refused")
	l := NewRedisLimiter(rdb, "test", 2, time.Minute)

	_, err := l.Allow(context.Background(), "maria")
	require.Error(t, err)
}

func Test_LocalLimiter_Burst(t *testing.T) {
	l := NewLocalLimiter(1, 2)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "a")
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "a")
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "a")
	require.False(t, ok)

	ok, _ = l.Allow(ctx, "b")
	require.True(t, ok)
}

func Test_LocalLimiter_EvictsIdleKeys(t *testing.T) {
	l := NewLocalLimiter(60, 1)
	_, _ = l.Allow(context.Background(), "a")

	l.evict(time.Now().Add(time.Second))

	_, found := l.visitors.Load("a")
	require.False(t, found)
}

type staticLimiter struct {
	ok  bool
	err error
	key string
}

func (s *staticLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.key = key
	return s.ok, s.err
}

func newLimitedApp(l Limiter) *fiber.App {
	app := fiber.New()
	app.Use(RateLimit(l, zap.NewNop()))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func Test_RateLimit_Handler(t *testing.T) {
	t.Run("allowed, keyed by user header", func(t *testing.T) {
		l := &staticLimiter{ok: true}
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(UserHeader, "maria")

		resp, err := newLimitedApp(l).Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		require.Equal(t, "maria", l.key)
	})

	t.Run("over the limit", func(t *testing.T) {
		resp, err := newLimitedApp(&staticLimiter{}).Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	})

	t.Run("limiter failure", func(t *testing.T) {
		resp, err := newLimitedApp(&staticLimiter{err: errors.New("down")}).Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	})
}
