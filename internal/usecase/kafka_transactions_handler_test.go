package usecase

import (
	"context"
	"errors"
	"testing"

	"WalletScore/internal/domain/models"
	"WalletScore/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTxStore struct {
	stored []models.Transaction
	err    error
}

func (s *fakeTxStore) Init(context.Context) error { return nil }

func (s *fakeTxStore) StoreBatch(_ context.Context, txs []models.Transaction) error {
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, txs...)
	return nil
}

func (s *fakeTxStore) Health(context.Context) error { return nil }

func TestKafkaTransactionsHandler(t *testing.T) {
	store := &fakeTxStore{}
	h := NewKafkaTransactionsHandler("wallet-transactions", store, metrics.New(prometheus.NewRegistry()))
	assert.Equal(t, "wallet-transactions", h.Topic())

	ctx := context.Background()
	require.NoError(t, h.Handle(ctx, []byte(`{"userWallet":"0x1","action":"deposit","amountUSD":"5","timestamp":1629178166}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"action":"deposit"}`)), "events without a wallet are dropped")
	require.NoError(t, h.Handle(ctx, []byte(`not json`)), "poison messages are dropped")
	require.NoError(t, h.Handle(ctx, []byte(`{"userWallet":"0x2","action":"deposit"}`)), "incomplete events are kept")

	require.Len(t, store.stored, 2)
	assert.Equal(t, "0x1", store.stored[0].WalletAddress)
	assert.Equal(t, 5.0, *store.stored[0].AmountUSD)
	assert.Nil(t, store.stored[1].AmountUSD)

	store.err = errors.New("clickhouse down")
	assert.Error(t, h.Handle(ctx, []byte(`{"userWallet":"0x3"}`)))
}
