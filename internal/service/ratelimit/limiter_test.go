package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"WalletScore/pkg/cache"
	"WalletScore/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestTokenBucket(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	l := NewTokenBucket(3, time.Minute)
	l.now = clk.now

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "1.1.1.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "1.1.1.1")
	assert.False(t, ok, "burst exhausted")

	ok, _ = l.Allow(ctx, "2.2.2.2")
	assert.True(t, ok, "keys have separate budgets")

	clk.t = clk.t.Add(21 * time.Second)
	ok, _ = l.Allow(ctx, "1.1.1.1")
	assert.True(t, ok, "one token refilled")
	ok, _ = l.Allow(ctx, "1.1.1.1")
	assert.False(t, ok)
}

func TestFixedWindow(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()

	clk := &clock{t: time.Unix(1_700_000_040, 0)}
	l := NewFixedWindow(mc, 2, time.Minute)
	l.now = clk.now

	for _, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, want, ok)
	}

	clk.t = clk.t.Add(time.Minute)
	ok, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "new window")
}

type stubLimiter struct {
	ok  bool
	err error
}

func (s stubLimiter) Allow(context.Context, string) (bool, error) { return s.ok, s.err }

func TestMiddleware(t *testing.T) {
	for name, tc := range map[string]struct {
		limiter Limiter
		status  int
	}{
		"allowed":       {stubLimiter{ok: true}, http.StatusOK},
		"rejected":      {stubLimiter{ok: false}, http.StatusTooManyRequests},
		"limiter error": {stubLimiter{err: errors.New("redis down")}, http.StatusOK},
	} {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, Middleware(tc.limiter, logger.NewNop()))

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}
