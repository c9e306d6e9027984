package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	domrepo "WalletScore/internal/domain/repository"
	"WalletScore/internal/scheduler"
	"WalletScore/internal/usecase"
	"WalletScore/pkg/config"
	xhttp "WalletScore/pkg/http"
	pkgkafka "WalletScore/pkg/kafka"
	"WalletScore/pkg/logger"
	"WalletScore/pkg/queue"

	"github.com/prometheus/client_golang/prometheus"
)

// App owns the long-lived components and their lifecycle. Optional
// components are nil when disabled in config.
type App struct {
	cfg       *config.Config
	logger    *logger.Logger
	runner    *usecase.ScoreRunner
	store     domrepo.ScoreStore
	handler   xhttp.Handler
	registry  *prometheus.Registry
	scheduler *scheduler.Scheduler
	queue     *queue.RedisQueue
	consumer  *pkgkafka.Consumer
	health    map[string]xhttp.HealthCheck

	httpServer *xhttp.Server
}

// Components groups what the DI layer hands to New.
type Components struct {
	Runner    *usecase.ScoreRunner
	Store     domrepo.ScoreStore
	Handler   xhttp.Handler
	Registry  *prometheus.Registry
	Scheduler *scheduler.Scheduler
	Queue     *queue.RedisQueue
	Consumer  *pkgkafka.Consumer
	Health    map[string]xhttp.HealthCheck
}

func New(cfg *config.Config, lgr *logger.Logger, c Components) *App {
	return &App{
		cfg:       cfg,
		logger:    lgr,
		runner:    c.Runner,
		store:     c.Store,
		handler:   c.Handler,
		registry:  c.Registry,
		scheduler: c.Scheduler,
		queue:     c.Queue,
		consumer:  c.Consumer,
		health:    c.Health,
	}
}

// RunOnce performs a single batch run and returns its error.
func (a *App) RunOnce(ctx context.Context) error {
	res, err := a.runner.RunOnce(ctx)
	if err != nil {
		return err
	}
	s := res.Summary.Stats
	a.logger.Info("batch run complete",
		logger.String("run_id", res.Summary.ID),
		logger.Int("records", s.TotalRecords),
		logger.Int("invalid", s.InvalidRecords),
		logger.Int("wallets", len(res.Scores)))
	return nil
}

// Serve starts the HTTP API and every enabled background component, then
// blocks until ctx is done or SIGINT/SIGTERM arrives.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.logger),
	}
	if a.cfg.Metrics.Enabled && a.registry != nil {
		opts = append(opts, xhttp.WithMetrics(a.registry, a.cfg.Metrics.Path))
	}
	for name, check := range a.health {
		opts = append(opts, xhttp.WithHealthCheck(name, check))
	}
	a.httpServer = xhttp.NewServer(a.handler, opts...)

	if a.queue != nil {
		if err := a.queue.Start(ctx); err != nil {
			return fmt.Errorf("start queue: %w", err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
	}
	if a.scheduler != nil {
		a.scheduler.Start()
		if a.cfg.Schedule.RunOnStart {
			go func() {
				if err := a.scheduler.RunNow(); err != nil && !errors.Is(err, scheduler.ErrLocked) {
					a.logger.Warn("initial run failed", logger.Error(err))
				}
			}()
		}
	}
	if err := a.httpServer.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("queue: %w", err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka consumer: %w", err))
		}
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
