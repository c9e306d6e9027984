package repository

import (
	"context"
	"time"

	"WalletScore/internal/domain/models"
	domrepo "WalletScore/internal/domain/repository"
	pkgkafka "WalletScore/pkg/kafka"
)

// scoreEvent is the message value published for each wallet, keyed by wallet.
type scoreEvent struct {
	RunID         string            `json:"run_id"`
	WalletAddress string            `json:"wallet_address"`
	Score         int               `json:"score"`
	RawScore      float64           `json:"raw_score"`
	ScoredAt      int64             `json:"scored_at"`
	Contributions *models.Breakdown `json:"contributions,omitempty"`
}

// KafkaScorePublisher implements ScorePublisher for Kafka.
type KafkaScorePublisher struct {
	producer  *pkgkafka.Producer
	topic     string
	batchSize int
}

// NewKafkaScorePublisher creates Kafka publisher.
func NewKafkaScorePublisher(producer *pkgkafka.Producer, topic string) *KafkaScorePublisher {
	return &KafkaScorePublisher{producer: producer, topic: topic, batchSize: 1000}
}

func (p *KafkaScorePublisher) PublishScores(ctx context.Context, run models.RunSummary, scores []models.ScoreRecord) error {
	scoredAt := run.FinishedAt.UnixMilli()
	if run.FinishedAt.IsZero() {
		scoredAt = time.Now().UnixMilli()
	}
	for start := 0; start < len(scores); start += p.batchSize {
		end := min(start+p.batchSize, len(scores))
		msgs := make([]pkgkafka.Message, 0, end-start)
		for _, r := range scores[start:end] {
			msgs = append(msgs, pkgkafka.Message{
				Key: []byte(r.WalletAddress),
				Value: scoreEvent{
					RunID:         run.ID,
					WalletAddress: r.WalletAddress,
					Score:         r.FinalScore,
					RawScore:      r.RawScore,
					ScoredAt:      scoredAt,
					Contributions: r.Contributions,
				},
			})
		}
		if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
			return err
		}
	}
	return nil
}

func (p *KafkaScorePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.ScorePublisher = (*KafkaScorePublisher)(nil)
