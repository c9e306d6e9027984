package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"WalletScore/pkg/cache"
)

// Limiter decides whether one more request for key fits the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type bucket struct {
	tokens float64
	last   time.Time
}

// TokenBucket is a per-process limiter allowing limit requests per window
// with bursts up to limit.
type TokenBucket struct {
	mu       sync.Mutex
	m        map[string]*bucket
	capacity float64
	rate     float64 // tokens per second
	now      func() time.Time
}

func NewTokenBucket(limit int, window time.Duration) *TokenBucket {
	return &TokenBucket{
		m:        make(map[string]*bucket),
		capacity: float64(limit),
		rate:     float64(limit) / window.Seconds(),
		now:      time.Now,
	}
}

func (l *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(l.capacity, b.tokens+elapsed*l.rate)
		b.last = now
	}
	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// FixedWindow counts requests per key in a shared cache so every replica
// sees the same budget.
type FixedWindow struct {
	cache  cache.Service
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewFixedWindow(c cache.Service, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{cache: c, limit: int64(limit), window: window, now: time.Now}
}

func (l *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	slot := l.now().UnixNano() / int64(l.window)
	k := cache.GenerateKeyWithParams("ratelimit", key, strconv.FormatInt(slot, 10))
	n, err := l.cache.Increment(ctx, k)
	if err != nil {
		return false, err
	}
	if n == 1 {
		if _, err := l.cache.Expire(ctx, k, l.window); err != nil {
			return false, err
		}
	}
	return n <= l.limit, nil
}

var (
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = (*FixedWindow)(nil)
)
