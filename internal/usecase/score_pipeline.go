package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"WalletScore/internal/domain/models"
	domrepo "WalletScore/internal/domain/repository"
	"WalletScore/internal/domain/service"
	"WalletScore/internal/services/features"
	"WalletScore/internal/services/scoring"
	"WalletScore/pkg/logger"

	"github.com/google/uuid"
)

// ErrNoValidRecords is returned when the input was not empty but nothing in it could be scored.
var ErrNoValidRecords = errors.New("no valid records in input")

// RunResult is the in-memory outcome of one pipeline pass.
type RunResult struct {
	Summary models.RunSummary
	Scores  []models.ScoreRecord // sorted by wallet address
}

// ScorePipeline runs aggregation, per-wallet scoring and population normalization.
type ScorePipeline struct {
	agg     *features.Aggregator
	scorer  service.WalletScorer
	norm    service.Normalizer
	metrics domrepo.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

func NewScorePipeline(
	agg *features.Aggregator,
	scorer service.WalletScorer,
	norm service.Normalizer,
	metrics domrepo.Metrics,
	lgr *logger.Logger,
) *ScorePipeline {
	return &ScorePipeline{
		agg:     agg,
		scorer:  scorer,
		norm:    norm,
		metrics: metrics,
		logger:  lgr,
		now:     time.Now,
	}
}

// Run scores txs as one population. Empty input gives an empty result.
func (p *ScorePipeline) Run(ctx context.Context, txs []models.Transaction) (*RunResult, error) {
	started := p.now()
	summary := models.RunSummary{
		ID:         uuid.NewString(),
		StartedAt:  started,
		Normalizer: p.norm.Name(),
	}

	profiles, stats, err := p.agg.Aggregate(ctx, txs)
	if err != nil {
		p.metrics.RecordRun("failed", time.Since(started).Seconds())
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	summary.Stats = models.RunStats{
		TotalRecords:    stats.Total,
		ValidRecords:    stats.Valid,
		InvalidRecords:  stats.Invalid,
		InvalidByReason: stats.ReasonCounts(),
		Wallets:         stats.Wallets,
	}
	p.metrics.RecordRecords("valid", stats.Valid)
	p.metrics.RecordRecords("invalid", stats.Invalid)
	for reason, n := range stats.InvalidByReason {
		p.metrics.RecordInvalid(string(reason), n)
	}

	if stats.Total > 0 && stats.Valid == 0 {
		p.metrics.RecordRun("failed", time.Since(started).Seconds())
		return nil, fmt.Errorf("%w: all %d records were rejected", ErrNoValidRecords, stats.Total)
	}

	kept := make([]models.ScoreRecord, 0, len(profiles))
	raw := make([]float64, 0, len(profiles))
	for i := range profiles {
		prof := profiles[i]
		score, parts := p.scorer.Score(prof)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			summary.Stats.ExcludedWallets++
			p.logger.Warn("wallet excluded",
				logger.String("wallet", prof.WalletAddress),
				logger.Error(scoring.ErrNonFiniteScore))
			continue
		}
		kept = append(kept, models.ScoreRecord{
			WalletAddress: prof.WalletAddress,
			RawScore:      score,
			RunID:         summary.ID,
			Profile:       &prof,
			Contributions: &parts,
		})
		raw = append(raw, score)
	}

	finals := p.norm.Normalize(raw)
	for i := range kept {
		kept[i].FinalScore = finals[i]
		p.metrics.ObserveScore(finals[i])
	}
	if summary.Stats.ExcludedWallets > 0 {
		p.metrics.RecordError("score_non_finite")
	}

	summary.FinishedAt = p.now()
	elapsed := summary.FinishedAt.Sub(started)
	p.metrics.SetWalletsScored(len(kept))
	p.metrics.RecordRun("ok", elapsed.Seconds())

	p.logger.Info("scoring run complete",
		logger.String("run_id", summary.ID),
		logger.Int("records", stats.Total),
		logger.Int("invalid", stats.Invalid),
		logger.Int("wallets", len(kept)),
		logger.Int("excluded", summary.Stats.ExcludedWallets),
		logger.String("normalizer", summary.Normalizer),
		logger.Duration("duration_ms", elapsed))

	return &RunResult{Summary: summary, Scores: kept}, nil
}
