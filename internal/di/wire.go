//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"WalletScore/pkg/config"
	"WalletScore/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(ctx context.Context, cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideCache,
		ProvideKafkaProducer,

		// Storage
		ProvideScoreStore,
		ProvideTransactionStore,
		ProvideTransactionSource,

		// Scoring
		ProvideAggregator,
		ProvideScorer,
		ProvideNormalizer,
		ProvidePipeline,
		ProvideReporter,
		ProvideRunner,

		// Delivery
		ProvideQueue,
		ProvideLimiter,
		ProvideScoresHandler,
		ProvideScheduler,
		ProvideKafkaConsumer,
		ProvideHealthChecks,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
