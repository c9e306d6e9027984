package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"WalletScore/internal/usecase"
	"WalletScore/pkg/cache"
	"WalletScore/pkg/logger"

	"github.com/robfig/cron/v3"
)

const runLockKey = "lock:score-run"

// Runner is the piece of ScoreRunner the scheduler needs.
type Runner interface {
	RunOnce(ctx context.Context) (*usecase.RunResult, error)
}

// Option configures Scheduler.
type Option func(*Scheduler)

// WithLock skips a tick when another replica holds the run lock.
func WithLock(c cache.Service, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.lock = c
		s.lockTTL = ttl
	}
}

// WithTimeout bounds a single scheduled run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

// Scheduler triggers rescoring runs on a cron spec with seconds precision.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	logger  *logger.Logger
	lock    cache.Service
	lockTTL time.Duration
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(runner Runner, lgr *logger.Logger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		runner:  runner,
		logger:  lgr,
		lockTTL: 10 * time.Minute,
		timeout: 30 * time.Minute,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the rescoring task at spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { _ = s.RunNow() }); err != nil {
		return fmt.Errorf("register score run %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", logger.Int("entries", len(s.cron.Entries())))
}

// Stop cancels an in-flight run and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// ErrLocked is returned by RunNow when another process holds the run lock.
var ErrLocked = errors.New("score run already in progress elsewhere")

// RunNow executes one run immediately.
func (s *Scheduler) RunNow() error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	if s.lock != nil {
		ok, err := s.lock.TryLock(ctx, runLockKey, s.lockTTL)
		if err != nil {
			s.logger.Warn("run lock unavailable, running anyway", logger.Error(err))
		} else if !ok {
			s.logger.Info("scheduled run skipped, lock held")
			return ErrLocked
		} else {
			defer func() {
				if err := s.lock.Unlock(context.Background(), runLockKey); err != nil {
					s.logger.Warn("run lock release failed", logger.Error(err))
				}
			}()
		}
	}

	res, err := s.runner.RunOnce(ctx)
	if err != nil {
		s.logger.Error("scheduled run failed", logger.Error(err))
		return err
	}
	s.logger.Info("scheduled run finished",
		logger.String("run_id", res.Summary.ID),
		logger.Int("wallets", len(res.Scores)))
	return nil
}
