package repository

import (
	"context"
	"sort"
	"sync"

	"WalletScore/internal/domain/models"
	domrepo "WalletScore/internal/domain/repository"
)

// MemoryScoreStore keeps only the latest run in process memory.
type MemoryScoreStore struct {
	mu       sync.RWMutex
	run      *models.RunSummary
	ranked   []models.ScoreRecord // final score desc, wallet asc
	byWallet map[string]int
}

func NewMemoryScoreStore() *MemoryScoreStore {
	return &MemoryScoreStore{byWallet: make(map[string]int)}
}

func (s *MemoryScoreStore) Init(context.Context) error { return nil }

func (s *MemoryScoreStore) SaveRun(_ context.Context, run models.RunSummary, scores []models.ScoreRecord) error {
	ranked := make([]models.ScoreRecord, len(scores))
	copy(ranked, scores)
	sortRanked(ranked)

	byWallet := make(map[string]int, len(ranked))
	for i := range ranked {
		ranked[i].RunID = run.ID
		byWallet[ranked[i].WalletAddress] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = &run
	s.ranked = ranked
	s.byWallet = byWallet
	return nil
}

func (s *MemoryScoreStore) LatestRun(context.Context) (*models.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.run == nil {
		return nil, domrepo.ErrNotFound
	}
	run := *s.run
	return &run, nil
}

func (s *MemoryScoreStore) GetScore(_ context.Context, wallet string) (*models.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.run == nil {
		return nil, domrepo.ErrNotFound
	}
	i, ok := s.byWallet[wallet]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	rec := s.ranked[i]
	return &rec, nil
}

func (s *MemoryScoreStore) ListScores(_ context.Context, f domrepo.ScoreFilter) ([]models.ScoreRecord, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.run == nil {
		return nil, 0, domrepo.ErrNotFound
	}

	matched := make([]models.ScoreRecord, 0, len(s.ranked))
	for _, r := range s.ranked {
		if f.MinScore != nil && r.FinalScore < *f.MinScore {
			continue
		}
		if f.MaxScore != nil && r.FinalScore > *f.MaxScore {
			continue
		}
		matched = append(matched, r)
	}
	total := int64(len(matched))
	return page(matched, f.Offset, f.Limit), total, nil
}

func (s *MemoryScoreStore) Health(context.Context) error { return nil }

func (s *MemoryScoreStore) Close() error { return nil }

func sortRanked(recs []models.ScoreRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].FinalScore != recs[j].FinalScore {
			return recs[i].FinalScore > recs[j].FinalScore
		}
		return recs[i].WalletAddress < recs[j].WalletAddress
	})
}

func page(recs []models.ScoreRecord, offset, limit int) []models.ScoreRecord {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(recs) {
		return []models.ScoreRecord{}
	}
	recs = recs[offset:]
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs
}

var _ domrepo.ScoreStore = (*MemoryScoreStore)(nil)
