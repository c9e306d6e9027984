package features

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"WalletScore/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)

func tx(wallet, action string, amount *float64, ts time.Time) models.Transaction {
	return models.Transaction{WalletAddress: wallet, Action: action, AmountUSD: amount, Timestamp: ts}
}

func sampleHistory() []models.Transaction {
	return []models.Transaction{
		tx("0xa", "deposit", models.Amount(1000), t0),
		tx("0xa", "borrow", models.Amount(400), t0.Add(24*time.Hour)),
		tx("0xa", "Repay", models.Amount(400), t0.Add(48*time.Hour)),
		tx("0xa", "redeemunderlying", models.Amount(100), t0.Add(72*time.Hour)),
		tx("0xb", "deposit", models.Amount(50), t0),
		tx("0xb", "liquidationcall", models.Amount(0), t0.Add(time.Hour)),
		tx("0xb", "deposit", models.Amount(50), t0),
	}
}

func TestAggregateSumsPerWallet(t *testing.T) {
	profiles, stats, err := NewAggregator().Aggregate(context.Background(), sampleHistory())
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	a := profiles[0]
	assert.Equal(t, "0xa", a.WalletAddress)
	assert.Equal(t, 1000.0, a.TotalDeposited)
	assert.Equal(t, 400.0, a.TotalBorrowed)
	assert.Equal(t, 400.0, a.TotalRepaid)
	assert.Equal(t, 100.0, a.TotalRedeemed)
	assert.Equal(t, 4, a.TransactionCount)
	assert.InDelta(t, 3.0, a.AccountAgeDays(), 1e-9)

	b := profiles[1]
	assert.Equal(t, 100.0, b.TotalDeposited)
	assert.Equal(t, 1, b.LiquidationCount)
	assert.Equal(t, 3, b.TransactionCount)

	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 7, stats.Valid)
	assert.Equal(t, 2, stats.Wallets)
}

func TestAggregateIgnoresInputOrder(t *testing.T) {
	base := sampleHistory()
	want, _, err := NewAggregator().Aggregate(context.Background(), base)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := append([]models.Transaction(nil), base...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, _, err := NewAggregator(WithWorkers(3)).Aggregate(context.Background(), shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAggregateDropsInvalidRecords(t *testing.T) {
	txs := []models.Transaction{
		tx("", "deposit", models.Amount(1), t0),
		tx("0xa", "", models.Amount(1), t0),
		tx("0xa", "flashloan", models.Amount(1), t0),
		tx("0xa", "deposit", nil, t0),
		tx("0xa", "deposit", models.Amount(math.NaN()), t0),
		tx("0xa", "deposit", models.Amount(-5), t0),
		tx("0xa", "deposit", models.Amount(5), time.Time{}),
		tx("0xa", "deposit", models.Amount(5), t0),
	}
	profiles, stats, err := NewAggregator().Aggregate(context.Background(), txs)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, 5.0, profiles[0].TotalDeposited)

	assert.Equal(t, 7, stats.Invalid)
	assert.Equal(t, 1, stats.Valid)
	assert.Equal(t, map[string]int{
		"missing_wallet":    1,
		"missing_action":    1,
		"unknown_action":    1,
		"missing_amount":    1,
		"invalid_amount":    1,
		"negative_amount":   1,
		"missing_timestamp": 1,
	}, stats.ReasonCounts())
}

func TestAggregateLiquidationOnlyWallet(t *testing.T) {
	profiles, _, err := NewAggregator().Aggregate(context.Background(), []models.Transaction{
		tx("0xc", "liquidation", models.Amount(0), t0),
	})
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, 1, p.LiquidationCount)
	assert.Zero(t, p.AccountAgeDays())
	_, ok := p.RepaymentRatio()
	assert.False(t, ok)
	_, ok = p.LTVProxy()
	assert.False(t, ok)
}

func TestAggregateEmpty(t *testing.T) {
	profiles, stats, err := NewAggregator().Aggregate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, profiles)
	assert.Zero(t, stats.Wallets)
}

func TestAggregateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewAggregator().Aggregate(ctx, sampleHistory())
	assert.ErrorIs(t, err, context.Canceled)
}
