package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"WalletScore/internal/domain/models"
	"WalletScore/internal/usecase"
	"WalletScore/pkg/cache"
	"WalletScore/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls atomic.Int32
	err   error
	block chan struct{}
}

func (r *fakeRunner) RunOnce(ctx context.Context) (*usecase.RunResult, error) {
	r.calls.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &usecase.RunResult{Summary: models.RunSummary{ID: "run"}}, nil
}

func TestRunNow(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, logger.NewNop())
	require.NoError(t, s.RunNow())
	assert.EqualValues(t, 1, r.calls.Load())

	r.err = errors.New("source down")
	assert.ErrorContains(t, s.RunNow(), "source down")
}

func TestRunNowSkipsWhenLocked(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	r := &fakeRunner{}
	s := New(r, logger.NewNop(), WithLock(mc, time.Minute))

	ok, err := mc.TryLock(context.Background(), runLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, s.RunNow(), ErrLocked)
	assert.Zero(t, r.calls.Load())

	require.NoError(t, mc.Unlock(context.Background(), runLockKey))
	require.NoError(t, s.RunNow())
	assert.EqualValues(t, 1, r.calls.Load())

	ok, err = mc.TryLock(context.Background(), runLockKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock released after the run")
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := New(&fakeRunner{}, logger.NewNop())
	assert.Error(t, s.Register("every tuesday"))
	assert.NoError(t, s.Register("*/1 * * * * *"))
}

func TestCronTriggersRuns(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, logger.NewNop())
	require.NoError(t, s.Register("* * * * * *"))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.calls.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestStopCancelsInFlightRun(t *testing.T) {
	r := &fakeRunner{block: make(chan struct{})}
	s := New(r, logger.NewNop())
	s.Start()

	done := make(chan error, 1)
	go func() { done <- s.RunNow() }()
	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not observe cancellation")
	}
}
