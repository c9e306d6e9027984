package usecase

import (
	"context"
	"time"

	"WalletScore/internal/domain/models"
	domrepo "WalletScore/internal/domain/repository"
	"WalletScore/internal/ingest"
	pkgkafka "WalletScore/pkg/kafka"
)

// KafkaTransactionsHandler consumes raw transaction events and writes them to the store
// that feeds the next batch run.
type KafkaTransactionsHandler struct {
	topic   string
	store   domrepo.TransactionStore
	metrics domrepo.Metrics
}

func NewKafkaTransactionsHandler(topic string, store domrepo.TransactionStore, metrics domrepo.Metrics) *KafkaTransactionsHandler {
	return &KafkaTransactionsHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaTransactionsHandler) Topic() string { return h.topic }

// Handle stores one event. Events without a wallet can never be scored and are
// dropped; every other field problem is kept so the batch run can count it.
func (h *KafkaTransactionsHandler) Handle(ctx context.Context, b []byte) error {
	tx, err := ingest.DecodeRecord(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return nil
	}
	if tx.WalletAddress == "" {
		h.metrics.RecordInvalid("missing_wallet", 1)
		return nil
	}

	start := time.Now()
	err = h.store.StoreBatch(ctx, []models.Transaction{tx})
	h.metrics.RecordLatency("tx_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordRecords("ingested", 1)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTransactionsHandler)(nil)
