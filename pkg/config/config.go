package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string     `yaml:"environment" default:"development" validate:"required"`
	Log         Log        `yaml:"log"`
	Server      Server     `yaml:"server"`
	Metrics     Metrics    `yaml:"metrics"`
	Input       Input      `yaml:"input"`
	Scoring     Scoring    `yaml:"scoring"`
	Output      Output     `yaml:"output"`
	Store       Store      `yaml:"store"`
	Cache       Cache      `yaml:"cache"`
	Redis       Redis      `yaml:"redis"`
	Queue       Queue      `yaml:"queue"`
	Schedule    Schedule   `yaml:"schedule"`
	Kafka       Kafka      `yaml:"kafka"`
	ClickHouse  ClickHouse `yaml:"clickhouse"`
}

type Log struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

type Server struct {
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	RateLimit       RateLimit     `yaml:"rate_limit"`
}

// RateLimit applies to the ad-hoc scoring endpoint.
type RateLimit struct {
	Enabled bool          `yaml:"enabled" default:"true"`
	Limit   int           `yaml:"limit" default:"30" validate:"gte=1"`
	Window  time.Duration `yaml:"window" default:"1m"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type Input struct {
	Source  string        `yaml:"source" default:"file" validate:"oneof=file http clickhouse"`
	Path    string        `yaml:"path"`
	Format  string        `yaml:"format" validate:"omitempty,oneof=json csv"`
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout" default:"30s"`
}

type Scoring struct {
	Baseline       float64    `yaml:"baseline" default:"500"`
	Weights        *Weights   `yaml:"weights"`
	RepaymentMin   float64    `yaml:"repayment_min" default:"0"`
	RepaymentMax   float64    `yaml:"repayment_max" default:"2"`
	RepaymentPivot float64    `yaml:"repayment_pivot" default:"1"`
	LTVMax         float64    `yaml:"ltv_max" default:"2"`
	AgeTransform   string     `yaml:"age_transform" default:"log" validate:"oneof=log sqrt linear"`
	Workers        int        `yaml:"workers" validate:"gte=0"`
	Normalizer     Normalizer `yaml:"normalizer"`
}

// Weights is required in the file. Individual weights that are left out take
// their default; weights written as 0 stay 0.
type Weights struct {
	Repayment   float64 `yaml:"repayment" default:"100"`
	AccountAge  float64 `yaml:"account_age" default:"20"`
	Volume      float64 `yaml:"volume" default:"5"`
	Leverage    float64 `yaml:"ltv" default:"150"`
	Liquidation float64 `yaml:"liquidation" default:"250"`
}

func (w *Weights) UnmarshalYAML(node *yaml.Node) error {
	type plain Weights
	var p plain
	if err := defaults.Set(&p); err != nil {
		return err
	}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*w = Weights(p)
	return nil
}

type Normalizer struct {
	Method   string `yaml:"method" default:"minmax" validate:"oneof=minmax percentile"`
	Min      int    `yaml:"min" default:"0"`
	Max      int    `yaml:"max" default:"1000"`
	Fallback int    `yaml:"fallback" default:"500"`
}

type Output struct {
	CSVPath         string `yaml:"csv_path"`
	HistogramPath   string `yaml:"histogram_path"`
	IncludeFeatures bool   `yaml:"include_features"`
}

type Store struct {
	Type           string `yaml:"type" default:"sqlite" validate:"oneof=memory sqlite postgres clickhouse"`
	SQLitePath     string `yaml:"sqlite_path" default:"data/walletscore.db"`
	PostgresDSN    string `yaml:"postgres_dsn"`
	MaxConnections int    `yaml:"max_connections" default:"10" validate:"gte=1"`
	RunsTable      string `yaml:"runs_table" default:"score_runs"`
	ScoresTable    string `yaml:"scores_table" default:"wallet_scores"`
}

type Cache struct {
	Enabled       bool          `yaml:"enabled"`
	Type          string        `yaml:"type" default:"memory" validate:"oneof=memory redis layered"`
	TTL           time.Duration `yaml:"ttl" default:"5m"`
	MemoryMaxSize int           `yaml:"memory_max_size" default:"10000" validate:"gte=1"`
	MemoryTTL     time.Duration `yaml:"memory_ttl" default:"30s"`
}

type Redis struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"walletscore"`
}

// Queue moves run requests through Redis so only worker processes run the pipeline.
type Queue struct {
	Enabled    bool          `yaml:"enabled"`
	Workers    int           `yaml:"workers" default:"1" validate:"gte=1"`
	RetryLimit int           `yaml:"retry_limit" default:"2" validate:"gte=0"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
	KeyPrefix  string        `yaml:"key_prefix" default:"walletscore:queue"`
}

type Schedule struct {
	Enabled    bool          `yaml:"enabled"`
	Cron       string        `yaml:"cron" default:"0 0 * * * *"`
	RunOnStart bool          `yaml:"run_on_start" default:"true"`
	LockTTL    time.Duration `yaml:"lock_ttl" default:"10m"`
}

type Kafka struct {
	Brokers     []string      `yaml:"brokers"`
	Compression string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Publish     KafkaPublish  `yaml:"publish"`
	Consumer    KafkaConsumer `yaml:"consumer"`
}

type KafkaPublish struct {
	Enabled      bool          `yaml:"enabled"`
	Topic        string        `yaml:"topic" default:"wallet-scores"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
	BatchSize    int           `yaml:"batch_size" default:"100" validate:"gte=1"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

// KafkaConsumer ingests raw transaction events into ClickHouse.
type KafkaConsumer struct {
	Enabled    bool          `yaml:"enabled"`
	Topic      string        `yaml:"topic" default:"wallet-transactions"`
	GroupID    string        `yaml:"group_id" default:"walletscore-ingest"`
	Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
	RetryMax   int           `yaml:"retry_max" default:"3"`
	BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
	BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
	DLQTopic   string        `yaml:"dlq_topic"`
}

type ClickHouse struct {
	Host              string        `yaml:"host" default:"localhost"`
	Port              int           `yaml:"port" default:"9000"`
	Database          string        `yaml:"database" default:"default"`
	User              string        `yaml:"user" default:"default"`
	Password          string        `yaml:"password"`
	UseHTTP           bool          `yaml:"use_http"`
	AsyncInsert       bool          `yaml:"async_insert"`
	DialTimeout       time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout       time.Duration `yaml:"read_timeout" default:"30s"`
	TransactionsTable string        `yaml:"transactions_table" default:"wallet_transactions"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	return load(path, false)
}

// LoadWithEnv loads config from YAML and overrides with environment variables
// before validating.
func LoadWithEnv(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, env bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if env {
		c.applyEnv()
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Parse applies defaults, decodes b over them and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WALLETSCORE_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("INPUT_PATH"); v != "" {
		c.Input.Path = v
	}
	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = p
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
}

// Validate runs the struct tag rules, then the cross-field checks.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	w := c.Scoring.Weights
	if w == nil {
		return errors.New("scoring.weights is required")
	}
	for name, v := range map[string]float64{
		"repayment":   w.Repayment,
		"account_age": w.AccountAge,
		"volume":      w.Volume,
		"ltv":         w.Leverage,
		"liquidation": w.Liquidation,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("scoring.weights.%s must be a finite non-negative number", name)
		}
	}
	if w.Repayment == 0 && w.AccountAge == 0 && w.Volume == 0 && w.Leverage == 0 && w.Liquidation == 0 {
		return errors.New("scoring.weights must not all be zero")
	}

	n := c.Scoring.Normalizer
	if n.Min >= n.Max {
		return fmt.Errorf("scoring.normalizer.min (%d) must be below scoring.normalizer.max (%d)", n.Min, n.Max)
	}
	if n.Fallback < n.Min || n.Fallback > n.Max {
		return fmt.Errorf("scoring.normalizer.fallback (%d) must be within [%d, %d]", n.Fallback, n.Min, n.Max)
	}

	switch c.Input.Source {
	case "file":
		if c.Input.Path == "" {
			return errors.New("input.path is required for file source")
		}
	case "http":
		if c.Input.URL == "" {
			return errors.New("input.url is required for http source")
		}
	}
	if c.Store.Type == "postgres" && c.Store.PostgresDSN == "" {
		return errors.New("store.postgres_dsn is required for postgres store")
	}
	needsKafka := c.Kafka.Publish.Enabled || c.Kafka.Consumer.Enabled
	if needsKafka && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka publish or consumer is enabled")
	}
	return nil
}
