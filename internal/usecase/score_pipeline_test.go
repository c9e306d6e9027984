package usecase

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"WalletScore/internal/domain/models"
	"WalletScore/internal/domain/service"
	"WalletScore/internal/services/features"
	"WalletScore/internal/services/scoring"
	"WalletScore/pkg/logger"
	"WalletScore/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)

func rec(wallet, action string, amount float64, ts time.Time) models.Transaction {
	return models.Transaction{WalletAddress: wallet, Action: action, AmountUSD: models.Amount(amount), Timestamp: ts}
}

func newPipeline(t *testing.T, scorer service.WalletScorer, method string) (*ScorePipeline, *prometheus.Registry) {
	t.Helper()
	if scorer == nil {
		s, err := scoring.NewScorer(scoring.DefaultConfig())
		require.NoError(t, err)
		scorer = s
	}
	norm, err := scoring.NewNormalizer(method, scoring.DefaultRange())
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	return NewScorePipeline(features.NewAggregator(), scorer, norm, metrics.New(reg), logger.NewNop()), reg
}

func TestPipelineRanksLiquidatedWalletLast(t *testing.T) {
	p, _ := newPipeline(t, nil, scoring.MethodMinMax)
	res, err := p.Run(context.Background(), []models.Transaction{
		rec("X", "deposit", 1000, day0),
		rec("Y", "deposit", 1000, day0),
		rec("Y", "borrow", 900, day0.Add(time.Hour)),
		rec("Y", "liquidationcall", 0, day0.Add(2*time.Hour)),
	})
	require.NoError(t, err)
	require.Len(t, res.Scores, 2)

	x, y := res.Scores[0], res.Scores[1]
	assert.Equal(t, "X", x.WalletAddress)
	assert.Equal(t, 1000, x.FinalScore)
	assert.Equal(t, 0, y.FinalScore)
	assert.Less(t, y.Contributions.Liquidation+y.Contributions.Leverage, -(y.Contributions.Volume + y.Contributions.AccountAge))

	assert.NotEmpty(t, res.Summary.ID)
	assert.Equal(t, res.Summary.ID, x.RunID)
	assert.Equal(t, "minmax", res.Summary.Normalizer)
	assert.Equal(t, 2, res.Summary.Stats.Wallets)
	assert.False(t, res.Summary.FinishedAt.Before(res.Summary.StartedAt))
}

func TestPipelineNegativeAmountDropsOnlyThatRecord(t *testing.T) {
	p, _ := newPipeline(t, nil, scoring.MethodMinMax)
	res, err := p.Run(context.Background(), []models.Transaction{
		rec("A", "deposit", 100, day0),
		rec("A", "deposit", -50, day0.Add(time.Hour)),
		rec("B", "deposit", 10, day0),
	})
	require.NoError(t, err)
	require.Len(t, res.Scores, 2)
	assert.Equal(t, 100.0, res.Scores[0].Profile.TotalDeposited)
	assert.Equal(t, 1, res.Summary.Stats.InvalidRecords)
	assert.Equal(t, map[string]int{"negative_amount": 1}, res.Summary.Stats.InvalidByReason)
}

func TestPipelineEmptyInput(t *testing.T) {
	p, _ := newPipeline(t, nil, scoring.MethodMinMax)
	res, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Scores)
	assert.Zero(t, res.Summary.Stats.TotalRecords)
}

func TestPipelineAllInvalid(t *testing.T) {
	p, reg := newPipeline(t, nil, scoring.MethodMinMax)
	_, err := p.Run(context.Background(), []models.Transaction{
		{WalletAddress: "A", Action: "deposit"},
		{Action: "borrow", AmountUSD: models.Amount(1), Timestamp: day0},
	})
	assert.ErrorIs(t, err, ErrNoValidRecords)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestPipelineSingleWalletGetsFallback(t *testing.T) {
	p, _ := newPipeline(t, nil, scoring.MethodPercentile)
	res, err := p.Run(context.Background(), []models.Transaction{rec("A", "deposit", 5, day0)})
	require.NoError(t, err)
	require.Len(t, res.Scores, 1)
	assert.Equal(t, 500, res.Scores[0].FinalScore)
}

type nanScorer struct {
	inner service.WalletScorer
	bad   string
}

func (s nanScorer) Score(p models.WalletProfile) (float64, models.Breakdown) {
	if p.WalletAddress == s.bad {
		return math.NaN(), models.Breakdown{}
	}
	return s.inner.Score(p)
}

func TestPipelineExcludesNonFiniteScores(t *testing.T) {
	inner, err := scoring.NewScorer(scoring.DefaultConfig())
	require.NoError(t, err)
	p, reg := newPipeline(t, nanScorer{inner: inner, bad: "B"}, scoring.MethodMinMax)

	res, err := p.Run(context.Background(), []models.Transaction{
		rec("A", "deposit", 10, day0),
		rec("B", "deposit", 20, day0),
		rec("C", "deposit", 3000, day0),
	})
	require.NoError(t, err)
	require.Len(t, res.Scores, 2)
	assert.Equal(t, "A", res.Scores[0].WalletAddress)
	assert.Equal(t, "C", res.Scores[1].WalletAddress)
	assert.Equal(t, []int{0, 1000}, []int{res.Scores[0].FinalScore, res.Scores[1].FinalScore})
	assert.Equal(t, 1, res.Summary.Stats.ExcludedWallets)

	assert.Equal(t, 2.0, gaugeValue(t, reg, "walletscore_wallets_scored"))
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestPipelineIgnoresRecordOrder(t *testing.T) {
	var txs []models.Transaction
	actions := []string{"deposit", "borrow", "repay", "redeemunderlying", "deposit", "liquidationcall"}
	for w := 0; w < 12; w++ {
		wallet := fmt.Sprintf("0x%02d", w)
		for i := 0; i <= w%len(actions); i++ {
			amount := 123.45*float64(w+1) + 0.1*float64(i)
			txs = append(txs, rec(wallet, actions[i], amount, day0.Add(time.Duration(w*i)*time.Hour)))
		}
	}

	for _, method := range []string{scoring.MethodMinMax, scoring.MethodPercentile} {
		t.Run(method, func(t *testing.T) {
			p, _ := newPipeline(t, nil, method)
			scores := func(in []models.Transaction) map[string]int {
				res, err := p.Run(context.Background(), in)
				require.NoError(t, err)
				out := make(map[string]int, len(res.Scores))
				for _, s := range res.Scores {
					out[s.WalletAddress] = s.FinalScore
				}
				return out
			}

			want := scores(txs)
			require.Len(t, want, 12)

			rng := rand.New(rand.NewSource(42))
			for i := 0; i < 5; i++ {
				shuffled := append([]models.Transaction(nil), txs...)
				rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
				assert.Equal(t, want, scores(shuffled))
			}
		})
	}
}
