package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"WalletScore/internal/domain/models"
	domrepo "WalletScore/internal/domain/repository"
	"WalletScore/pkg/logger"
)

// Reporter writes run artefacts such as the score table and distribution.
type Reporter interface {
	WriteReport(run models.RunSummary, scores []models.ScoreRecord) error
}

// RunnerOption configures ScoreRunner.
type RunnerOption func(*ScoreRunner)

// WithReporter adds a report writer invoked after each successful run.
func WithReporter(r Reporter) RunnerOption {
	return func(s *ScoreRunner) {
		if r != nil {
			s.reporters = append(s.reporters, r)
		}
	}
}

// WithPublisher publishes every successful run.
func WithPublisher(p domrepo.ScorePublisher) RunnerOption {
	return func(s *ScoreRunner) {
		s.publisher = p
	}
}

// ScoreRunner loads the full history, scores it and hands the result to sinks.
// Runs never overlap.
type ScoreRunner struct {
	mu        sync.Mutex
	source    domrepo.TransactionSource
	pipeline  *ScorePipeline
	store     domrepo.ScoreStore
	publisher domrepo.ScorePublisher
	reporters []Reporter
	metrics   domrepo.Metrics
	logger    *logger.Logger
}

func NewScoreRunner(
	source domrepo.TransactionSource,
	pipeline *ScorePipeline,
	store domrepo.ScoreStore,
	metrics domrepo.Metrics,
	lgr *logger.Logger,
	opts ...RunnerOption,
) *ScoreRunner {
	r := &ScoreRunner{
		source:   source,
		pipeline: pipeline,
		store:    store,
		metrics:  metrics,
		logger:   lgr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce performs a complete batch run. Store and report failures are terminal;
// a publish failure is logged and counted but the run still succeeds.
func (r *ScoreRunner) RunOnce(ctx context.Context) (*RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	txs, err := r.source.Load(ctx)
	r.metrics.RecordLatency("source_load", time.Since(start).Seconds())
	if err != nil {
		r.metrics.RecordError("source_load")
		return nil, fmt.Errorf("load %s: %w", r.source.Name(), err)
	}
	r.logger.Info("transactions loaded",
		logger.String("source", r.source.Name()),
		logger.Int("records", len(txs)))

	res, err := r.pipeline.Run(ctx, txs)
	if err != nil {
		return nil, err
	}
	if err := r.deliver(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Score runs the pipeline on an ad-hoc population without persisting anything.
func (r *ScoreRunner) Score(ctx context.Context, txs []models.Transaction) (*RunResult, error) {
	return r.pipeline.Run(ctx, txs)
}

func (r *ScoreRunner) deliver(ctx context.Context, res *RunResult) error {
	start := time.Now()
	if err := r.store.SaveRun(ctx, res.Summary, res.Scores); err != nil {
		r.metrics.RecordError("store_save")
		return fmt.Errorf("save run: %w", err)
	}
	r.metrics.RecordLatency("store_save", time.Since(start).Seconds())

	for _, rep := range r.reporters {
		if err := rep.WriteReport(res.Summary, res.Scores); err != nil {
			r.metrics.RecordError("report_write")
			return fmt.Errorf("write report: %w", err)
		}
	}

	if r.publisher != nil && len(res.Scores) > 0 {
		start = time.Now()
		if err := r.publisher.PublishScores(ctx, res.Summary, res.Scores); err != nil {
			r.metrics.RecordError("publish_scores")
			r.logger.Error("publish scores failed",
				logger.String("run_id", res.Summary.ID),
				logger.Error(err))
		} else {
			r.metrics.RecordLatency("publish_scores", time.Since(start).Seconds())
		}
	}
	return nil
}

// Close releases sinks owned by the runner.
func (r *ScoreRunner) Close() error {
	if r.publisher != nil {
		return r.publisher.Close()
	}
	return nil
}
