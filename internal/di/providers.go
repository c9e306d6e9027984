package di

import (
	"context"
	"fmt"
	"time"

	"WalletScore/internal/domain/repository"
	"WalletScore/internal/domain/service"
	"WalletScore/internal/handler/api"
	"WalletScore/internal/ingest"
	internalrepo "WalletScore/internal/repository"
	"WalletScore/internal/reporting"
	"WalletScore/internal/scheduler"
	"WalletScore/internal/service/ratelimit"
	"WalletScore/internal/services/features"
	"WalletScore/internal/services/scoring"
	"WalletScore/internal/usecase"
	"WalletScore/pkg/cache"
	pkgch "WalletScore/pkg/clickhouse"
	"WalletScore/pkg/config"
	"WalletScore/pkg/database"
	xhttp "WalletScore/pkg/http"
	pkgkafka "WalletScore/pkg/kafka"
	"WalletScore/pkg/logger"
	"WalletScore/pkg/metrics"
	"WalletScore/pkg/queue"
	"WalletScore/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideRegistry creates the registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

func needsClickHouse(cfg *config.Config) bool {
	return cfg.Input.Source == "clickhouse" || cfg.Store.Type == "clickhouse" || cfg.Kafka.Consumer.Enabled
}

// ProvideClickHouseClient connects when any component reads or writes ClickHouse.
func ProvideClickHouseClient(ctx context.Context, cfg *config.Config) (*pkgch.Client, func(), error) {
	if !needsClickHouse(cfg) {
		return nil, func() {}, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(ch.Host, ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Queue.Enabled || cfg.Cache.Type == "redis" || cfg.Cache.Type == "layered"
}

// ProvideRedisClient connects when the queue or a Redis-backed cache is configured.
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !needsRedis(cfg) {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache picks the cache backend. A memory cache is always available
// for locks and rate limits even when score caching is off.
func ProvideCache(cfg *config.Config, rc *redis.Client) (cache.Service, func()) {
	var svc cache.Service
	switch cfg.Cache.Type {
	case "redis":
		svc = cache.NewRedisCacheFromClient(rc, cfg.Redis.Prefix)
	case "layered":
		svc = cache.NewLayeredCache(cache.NewRedisCacheFromClient(rc, cfg.Redis.Prefix),
			cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
			cache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL))
	default:
		svc = cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	}
	// the Redis client is closed by its own provider
	if cfg.Cache.Type == "memory" {
		return svc, func() { _ = svc.Close() }
	}
	return svc, func() {}
}

// ProvideScoreStore opens the configured store, creates its schema and adds
// the read-through cache when enabled.
func ProvideScoreStore(ctx context.Context, cfg *config.Config, ch *pkgch.Client, c cache.Service, lgr *logger.Logger) (repository.ScoreStore, func(), error) {
	sc := cfg.Store
	opts := []internalrepo.SQLStoreOption{
		internalrepo.WithTables(sc.RunsTable, sc.ScoresTable),
		internalrepo.WithStoreLogger(lgr),
	}

	var store repository.ScoreStore
	switch sc.Type {
	case "memory":
		store = internalrepo.NewMemoryScoreStore()
	case "sqlite":
		db, err := database.OpenSQLite(sc.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store = internalrepo.NewSQLScoreStore(db, internalrepo.DialectSQLite, opts...).OwnDB()
	case "postgres":
		db, err := database.OpenPostgres(sc.PostgresDSN, database.WithMaxConnections(sc.MaxConnections, sc.MaxConnections/2))
		if err != nil {
			return nil, nil, err
		}
		store = internalrepo.NewSQLScoreStore(db, internalrepo.DialectPostgres, opts...).OwnDB()
	case "clickhouse":
		store = internalrepo.NewSQLScoreStore(ch.DB(), internalrepo.DialectClickHouse, opts...)
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", sc.Type)
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := store.Init(initCtx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("score store: %w", err)
	}
	cleanup := func() { _ = store.Close() }

	if cfg.Cache.Enabled {
		store = internalrepo.NewCachedScoreStore(store, c, cfg.Cache.TTL, lgr)
	}
	return store, cleanup, nil
}

// ProvideTransactionStore returns the ClickHouse transaction table, or nil
// when ClickHouse is not in use.
func ProvideTransactionStore(ctx context.Context, cfg *config.Config, ch *pkgch.Client, lgr *logger.Logger) (*internalrepo.ClickHouseTransactionStore, error) {
	if ch == nil {
		return nil, nil
	}
	table := cfg.ClickHouse.Database + "." + cfg.ClickHouse.TransactionsTable
	s := internalrepo.NewClickHouseTransactionStore(ch.DB(), table, lgr)
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideTransactionSource selects where a batch run reads its history from.
func ProvideTransactionSource(cfg *config.Config, txStore *internalrepo.ClickHouseTransactionStore) (repository.TransactionSource, error) {
	switch cfg.Input.Source {
	case "file":
		return ingest.NewFileSource(cfg.Input.Path, cfg.Input.Format), nil
	case "http":
		return ingest.NewHTTPSource(cfg.Input.URL, cfg.Input.Timeout), nil
	case "clickhouse":
		if txStore == nil {
			return nil, fmt.Errorf("clickhouse source requires a clickhouse connection")
		}
		return txStore, nil
	default:
		return nil, fmt.Errorf("unknown input source %q", cfg.Input.Source)
	}
}

// ProvideAggregator creates the feature aggregator.
func ProvideAggregator(cfg *config.Config, lgr *logger.Logger) *features.Aggregator {
	return features.NewAggregator(
		features.WithWorkers(cfg.Scoring.Workers),
		features.WithLogger(lgr),
	)
}

// ScoringConfig maps the YAML scoring section onto the scorer's config.
func ScoringConfig(cfg *config.Config) scoring.Config {
	sc := cfg.Scoring
	out := scoring.Config{
		Baseline:       sc.Baseline,
		Weights:        scoring.DefaultWeights(),
		RepaymentMin:   sc.RepaymentMin,
		RepaymentMax:   sc.RepaymentMax,
		RepaymentPivot: sc.RepaymentPivot,
		LTVMax:         sc.LTVMax,
		AgeTransform:   scoring.AgeTransform(sc.AgeTransform),
	}
	if w := sc.Weights; w != nil {
		out.Weights = scoring.Weights{
			Repayment:   w.Repayment,
			AccountAge:  w.AccountAge,
			Volume:      w.Volume,
			Leverage:    w.Leverage,
			Liquidation: w.Liquidation,
		}
	}
	return out
}

// ProvideScorer creates the per-wallet scorer.
func ProvideScorer(cfg *config.Config) (service.WalletScorer, error) {
	return scoring.NewScorer(ScoringConfig(cfg))
}

// ProvideNormalizer creates the population normalizer.
func ProvideNormalizer(cfg *config.Config) (service.Normalizer, error) {
	n := cfg.Scoring.Normalizer
	return scoring.NewNormalizer(n.Method, scoring.Range{Min: n.Min, Max: n.Max, Fallback: n.Fallback})
}

// ProvidePipeline creates the scoring pipeline use case.
func ProvidePipeline(agg *features.Aggregator, scorer service.WalletScorer, norm service.Normalizer, m repository.Metrics, lgr *logger.Logger) *usecase.ScorePipeline {
	return usecase.NewScorePipeline(agg, scorer, norm, m, lgr)
}

// ProvideKafkaProducer creates a Kafka producer when score publishing is enabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Publish.Enabled {
		return nil, nil
	}
	pub := cfg.Kafka.Publish
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithMaxAttempts(pub.MaxAttempts),
		pkgkafka.WithRequiredAcks(pub.RequiredAcks),
		pkgkafka.WithBatching(pub.BatchSize, pub.BatchTimeout),
		pkgkafka.WithWriteTimeout(pub.WriteTimeout),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideReporter creates the file reporter, or nil when no output path is set.
func ProvideReporter(cfg *config.Config, lgr *logger.Logger) *reporting.FileReporter {
	out := cfg.Output
	if out.CSVPath == "" && out.HistogramPath == "" {
		return nil
	}
	n := cfg.Scoring.Normalizer
	return reporting.NewFileReporter(out.CSVPath, out.HistogramPath, out.IncludeFeatures, n.Min, n.Max, lgr)
}

// ProvideRunner creates the score runner with every configured sink.
func ProvideRunner(
	source repository.TransactionSource,
	pipeline *usecase.ScorePipeline,
	store repository.ScoreStore,
	m repository.Metrics,
	lgr *logger.Logger,
	producer *pkgkafka.Producer,
	reporter *reporting.FileReporter,
	cfg *config.Config,
) (*usecase.ScoreRunner, func()) {
	var opts []usecase.RunnerOption
	if producer != nil {
		opts = append(opts, usecase.WithPublisher(internalrepo.NewKafkaScorePublisher(producer, cfg.Kafka.Publish.Topic)))
	}
	if reporter != nil {
		opts = append(opts, usecase.WithReporter(reporter))
	}
	r := usecase.NewScoreRunner(source, pipeline, store, m, lgr, opts...)
	return r, func() { _ = r.Close() }
}

// ProvideQueue creates the Redis run-request queue when enabled.
func ProvideQueue(cfg *config.Config, rc *redis.Client, runner *usecase.ScoreRunner, lgr *logger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled {
		return nil
	}
	q := queue.NewRedisQueue(lgr, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc, queue.WithKeyPrefix(cfg.Queue.KeyPrefix))
	q.RegisterJob(usecase.NewScoreRunJob(runner, lgr))
	return q
}

// ProvideLimiter picks a shared fixed window when the cache is in Redis and
// a local token bucket otherwise.
func ProvideLimiter(cfg *config.Config, c cache.Service) ratelimit.Limiter {
	rl := cfg.Server.RateLimit
	if !rl.Enabled {
		return nil
	}
	if cfg.Cache.Type == "memory" {
		return ratelimit.NewTokenBucket(rl.Limit, rl.Window)
	}
	return ratelimit.NewFixedWindow(c, rl.Limit, rl.Window)
}

// ProvideScoresHandler creates the HTTP handler.
func ProvideScoresHandler(
	cfg *config.Config,
	lgr *logger.Logger,
	store repository.ScoreStore,
	runner *usecase.ScoreRunner,
	q *queue.RedisQueue,
	limiter ratelimit.Limiter,
) xhttp.Handler {
	n := cfg.Scoring.Normalizer
	opts := []api.HandlerOption{api.WithScoreRange(n.Min, n.Max)}
	if q != nil {
		opts = append(opts, api.WithQueue(q))
	}
	if limiter != nil {
		opts = append(opts, api.WithLimiter(limiter))
	}
	return api.NewScoresEchoHandler(lgr, store, runner, opts...)
}

// ProvideScheduler creates the cron scheduler when enabled. Runs take the
// cache lock so replicas sharing Redis do not overlap.
func ProvideScheduler(cfg *config.Config, runner *usecase.ScoreRunner, c cache.Service, lgr *logger.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Schedule.Enabled {
		return nil, nil
	}
	s := scheduler.New(runner, lgr, scheduler.WithLock(c, cfg.Schedule.LockTTL))
	if err := s.Register(cfg.Schedule.Cron); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideKafkaConsumer creates the transaction ingestion consumer when enabled.
func ProvideKafkaConsumer(
	cfg *config.Config,
	txStore *internalrepo.ClickHouseTransactionStore,
	m repository.Metrics,
	reg *prometheus.Registry,
	lgr *logger.Logger,
) (*pkgkafka.Consumer, error) {
	kc := cfg.Kafka.Consumer
	if !kc.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerWorkers(kc.Workers),
		pkgkafka.WithConsumerRetry(kc.RetryMax, kc.BackoffMin, kc.BackoffMax),
		pkgkafka.WithConsumerDLQ(kc.DLQTopic),
		pkgkafka.WithConsumerLogger(lgr),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewKafkaTransactionsHandler(kc.Topic, txStore, m))
	return consumer, nil
}

// ProvideHealthChecks collects the dependencies /healthz probes.
func ProvideHealthChecks(store repository.ScoreStore, ch *pkgch.Client, rc *redis.Client) map[string]xhttp.HealthCheck {
	checks := map[string]xhttp.HealthCheck{"store": store.Health}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}
	return checks
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	reg *prometheus.Registry,
	runner *usecase.ScoreRunner,
	store repository.ScoreStore,
	handler xhttp.Handler,
	sched *scheduler.Scheduler,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	health map[string]xhttp.HealthCheck,
) *server.App {
	return server.New(cfg, lgr, server.Components{
		Runner:    runner,
		Store:     store,
		Handler:   handler,
		Registry:  reg,
		Scheduler: sched,
		Queue:     q,
		Consumer:  consumer,
		Health:    health,
	})
}
