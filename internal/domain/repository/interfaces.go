package repository

import (
	"context"
	"errors"

	"WalletScore/internal/domain/models"
)

// ErrNotFound is returned when a requested run or wallet score does not exist.
var ErrNotFound = errors.New("not found")

// TransactionSource yields the full transaction history for a batch run.
type TransactionSource interface {
	Name() string
	Load(ctx context.Context) ([]models.Transaction, error)
}

// TransactionStore persists raw transactions arriving from a stream.
type TransactionStore interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, txs []models.Transaction) error
	Health(ctx context.Context) error
}

// ScoreFilter narrows a listing of the latest run's scores.
// Limit <= 0 means no limit.
type ScoreFilter struct {
	Limit    int
	Offset   int
	MinScore *int
	MaxScore *int
}

// ScoreStore keeps scored runs and serves the latest one.
type ScoreStore interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run models.RunSummary, scores []models.ScoreRecord) error
	LatestRun(ctx context.Context) (*models.RunSummary, error)
	GetScore(ctx context.Context, wallet string) (*models.ScoreRecord, error)
	ListScores(ctx context.Context, f ScoreFilter) ([]models.ScoreRecord, int64, error)
	Health(ctx context.Context) error
	Close() error
}

// ScorePublisher fans a finished run out to downstream consumers.
type ScorePublisher interface {
	PublishScores(ctx context.Context, run models.RunSummary, scores []models.ScoreRecord) error
	Close() error
}

type Metrics interface {
	RecordRecords(status string, n int)
	RecordInvalid(reason string, n int)
	RecordRun(result string, seconds float64)
	ObserveScore(score int)
	SetWalletsScored(n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
