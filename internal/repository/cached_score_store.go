package repository

import (
	"context"
	"errors"
	"time"

	"WalletScore/internal/domain/models"
	domrepo "WalletScore/internal/domain/repository"
	"WalletScore/pkg/cache"
	"WalletScore/pkg/logger"
)

const (
	cacheScorePrefix = "score"
	cacheLatestRun   = "run:latest"
)

// CachedScoreStore puts a read-through cache in front of point lookups.
// Cache failures are logged and fall back to the inner store.
type CachedScoreStore struct {
	domrepo.ScoreStore
	cache  cache.Service
	ttl    time.Duration
	logger *logger.Logger
}

func NewCachedScoreStore(inner domrepo.ScoreStore, c cache.Service, ttl time.Duration, lgr *logger.Logger) *CachedScoreStore {
	return &CachedScoreStore{ScoreStore: inner, cache: c, ttl: ttl, logger: lgr}
}

func (s *CachedScoreStore) SaveRun(ctx context.Context, run models.RunSummary, scores []models.ScoreRecord) error {
	if err := s.ScoreStore.SaveRun(ctx, run, scores); err != nil {
		return err
	}
	if err := s.cache.DeleteByPattern(ctx, cache.BuildPattern(cacheScorePrefix)); err != nil {
		s.logger.Warn("cache invalidate scores failed", logger.Error(err))
	}
	if err := s.cache.Set(ctx, cacheLatestRun, run, s.ttl); err != nil {
		s.logger.Warn("cache set latest run failed", logger.Error(err))
	}
	return nil
}

func (s *CachedScoreStore) LatestRun(ctx context.Context) (*models.RunSummary, error) {
	var run models.RunSummary
	if err := s.cache.Get(ctx, cacheLatestRun, &run); err == nil {
		return &run, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("cache get latest run failed", logger.Error(err))
	}

	got, err := s.ScoreStore.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cacheLatestRun, got, s.ttl); err != nil {
		s.logger.Warn("cache set latest run failed", logger.Error(err))
	}
	return got, nil
}

func (s *CachedScoreStore) GetScore(ctx context.Context, wallet string) (*models.ScoreRecord, error) {
	key := cache.GenerateKey(cacheScorePrefix, wallet)
	var rec models.ScoreRecord
	if err := s.cache.Get(ctx, key, &rec); err == nil {
		return &rec, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("cache get score failed", logger.String("wallet", wallet), logger.Error(err))
	}

	got, err := s.ScoreStore.GetScore(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, got, s.ttl); err != nil {
		s.logger.Warn("cache set score failed", logger.String("wallet", wallet), logger.Error(err))
	}
	return got, nil
}

var _ domrepo.ScoreStore = (*CachedScoreStore)(nil)
