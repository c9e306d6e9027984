package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"WalletScore/internal/domain/models"
	domrepo "WalletScore/internal/domain/repository"
	"WalletScore/internal/repository"
	"WalletScore/internal/services/scoring"
	"WalletScore/pkg/logger"
	"WalletScore/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	txs []models.Transaction
	err error
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Load(context.Context) ([]models.Transaction, error) {
	return s.txs, s.err
}

type recordingReporter struct {
	runs []models.RunSummary
	err  error
}

func (r *recordingReporter) WriteReport(run models.RunSummary, _ []models.ScoreRecord) error {
	r.runs = append(r.runs, run)
	return r.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	calls  int
	err    error
	closed bool
}

func (p *recordingPublisher) PublishScores(context.Context, models.RunSummary, []models.ScoreRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func newRunner(t *testing.T, src domrepo.TransactionSource, store domrepo.ScoreStore, opts ...RunnerOption) *ScoreRunner {
	t.Helper()
	p, _ := newPipeline(t, nil, scoring.MethodMinMax)
	return NewScoreRunner(src, p, store, metrics.New(prometheus.NewRegistry()), logger.NewNop(), opts...)
}

func history() []models.Transaction {
	return []models.Transaction{
		rec("0x1", "deposit", 1000, day0),
		rec("0x2", "deposit", 10, day0),
		rec("0x2", "borrow", 9, day0),
	}
}

func TestRunnerPersistsReportsAndPublishes(t *testing.T) {
	store := repository.NewMemoryScoreStore()
	rep := &recordingReporter{}
	pub := &recordingPublisher{}
	r := newRunner(t, &staticSource{txs: history()}, store, WithReporter(rep), WithPublisher(pub))

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	latest, err := store.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Summary.ID, latest.ID)

	got, err := store.GetScore(context.Background(), "0x1")
	require.NoError(t, err)
	assert.Equal(t, 1000, got.FinalScore)

	assert.Len(t, rep.runs, 1)
	assert.Equal(t, 1, pub.calls)

	require.NoError(t, r.Close())
	assert.True(t, pub.closed)
}

func TestRunnerPublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	r := newRunner(t, &staticSource{txs: history()}, repository.NewMemoryScoreStore(), WithPublisher(pub))

	_, err := r.RunOnce(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, pub.calls)
}

func TestRunnerReportFailureIsFatal(t *testing.T) {
	rep := &recordingReporter{err: errors.New("disk full")}
	r := newRunner(t, &staticSource{txs: history()}, repository.NewMemoryScoreStore(), WithReporter(rep))

	_, err := r.RunOnce(context.Background())
	assert.ErrorContains(t, err, "disk full")
}

func TestRunnerSourceError(t *testing.T) {
	store := repository.NewMemoryScoreStore()
	r := newRunner(t, &staticSource{err: errors.New("boom")}, store)

	_, err := r.RunOnce(context.Background())
	assert.ErrorContains(t, err, "load static")

	_, err = store.LatestRun(context.Background())
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}

func TestRunnerNoValidRecordsKeepsPreviousRun(t *testing.T) {
	src := &staticSource{txs: history()}
	store := repository.NewMemoryScoreStore()
	r := newRunner(t, src, store)

	first, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	src.txs = []models.Transaction{{WalletAddress: "0x9"}}
	_, err = r.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrNoValidRecords)

	latest, err := store.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Summary.ID, latest.ID)
}

func TestRunnerScoreDoesNotPersist(t *testing.T) {
	store := repository.NewMemoryScoreStore()
	r := newRunner(t, &staticSource{}, store)

	res, err := r.Score(context.Background(), history())
	require.NoError(t, err)
	assert.Len(t, res.Scores, 2)

	_, err = store.LatestRun(context.Background())
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}

func TestScoreRunJob(t *testing.T) {
	store := repository.NewMemoryScoreStore()
	job := NewScoreRunJob(newRunner(t, &staticSource{txs: history()}, store), logger.NewNop())
	assert.Equal(t, ScoreRunJobType, job.Type())

	require.NoError(t, job.Handle(context.Background(), map[string]interface{}{"reason": "api"}))
	_, err := store.LatestRun(context.Background())
	assert.NoError(t, err)
}
