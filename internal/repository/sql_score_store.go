package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"WalletScore/internal/domain/models"
	domrepo "WalletScore/internal/domain/repository"
	"WalletScore/pkg/logger"
)

// Dialect selects SQL flavour differences for SQLScoreStore.
type Dialect string

const (
	DialectSQLite     Dialect = "sqlite"
	DialectPostgres   Dialect = "postgres"
	DialectClickHouse Dialect = "clickhouse"
)

const insertChunk = 500

// SQLStoreOption configures SQLScoreStore.
type SQLStoreOption func(*SQLScoreStore)

// WithTables overrides the run and score table names (may be schema-qualified).
func WithTables(runs, scores string) SQLStoreOption {
	return func(s *SQLScoreStore) {
		s.runsTable = runs
		s.scoresTable = scores
	}
}

// WithStoreLogger attaches a logger for query failures.
func WithStoreLogger(l *logger.Logger) SQLStoreOption {
	return func(s *SQLScoreStore) {
		s.logger = l
	}
}

// SQLScoreStore keeps runs in SQLite, Postgres or ClickHouse through database/sql.
type SQLScoreStore struct {
	db          *sql.DB
	dialect     Dialect
	runsTable   string
	scoresTable string
	logger      *logger.Logger
	ownsDB      bool
}

func NewSQLScoreStore(db *sql.DB, dialect Dialect, opts ...SQLStoreOption) *SQLScoreStore {
	s := &SQLScoreStore{
		db:          db,
		dialect:     dialect,
		runsTable:   "score_runs",
		scoresTable: "wallet_scores",
		logger:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OwnDB makes Close also close the underlying pool.
func (s *SQLScoreStore) OwnDB() *SQLScoreStore {
	s.ownsDB = true
	return s
}

func (s *SQLScoreStore) Init(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLScoreStore) schema() []string {
	switch s.dialect {
	case DialectClickHouse:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id String, started_at Int64, finished_at Int64, normalizer String, stats String
			) ENGINE = MergeTree ORDER BY (finished_at, id)`, s.runsTable),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				run_id String, wallet String, raw_score Float64, final_score Int32,
				profile String, contributions String
			) ENGINE = MergeTree ORDER BY (run_id, wallet)`, s.scoresTable),
		}
	case DialectPostgres:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY, started_at BIGINT NOT NULL, finished_at BIGINT NOT NULL,
				normalizer TEXT NOT NULL, stats TEXT NOT NULL
			)`, s.runsTable),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT NOT NULL, wallet TEXT NOT NULL, raw_score DOUBLE PRECISION NOT NULL,
				final_score INTEGER NOT NULL, profile TEXT NOT NULL, contributions TEXT NOT NULL,
				PRIMARY KEY (run_id, wallet)
			)`, s.scoresTable),
		}
	default:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY, started_at INTEGER NOT NULL, finished_at INTEGER NOT NULL,
				normalizer TEXT NOT NULL, stats TEXT NOT NULL
			)`, s.runsTable),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT NOT NULL, wallet TEXT NOT NULL, raw_score REAL NOT NULL,
				final_score INTEGER NOT NULL, profile TEXT NOT NULL, contributions TEXT NOT NULL,
				PRIMARY KEY (run_id, wallet)
			)`, s.scoresTable),
		}
	}
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveRun writes scores first and the run row last, so LatestRun never
// points at a partially written run.
func (s *SQLScoreStore) SaveRun(ctx context.Context, run models.RunSummary, scores []models.ScoreRecord) error {
	if s.dialect == DialectClickHouse {
		return s.saveRun(ctx, s.db, run, scores)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := s.saveRun(ctx, tx, run, scores); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLScoreStore) saveRun(ctx context.Context, ex execer, run models.RunSummary, scores []models.ScoreRecord) error {
	for start := 0; start < len(scores); start += insertChunk {
		end := min(start+insertChunk, len(scores))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*6)
		for _, r := range scores[start:end] {
			profile, err := marshalOrEmpty(r.Profile)
			if err != nil {
				return err
			}
			parts, err := marshalOrEmpty(r.Contributions)
			if err != nil {
				return err
			}
			values = append(values, s.tuple(len(args), 6))
			args = append(args, run.ID, r.WalletAddress, r.RawScore, r.FinalScore, profile, parts)
		}
		q := fmt.Sprintf("INSERT INTO %s (run_id, wallet, raw_score, final_score, profile, contributions) VALUES %s",
			s.scoresTable, strings.Join(values, ","))
		if _, err := ex.ExecContext(ctx, q, args...); err != nil {
			s.logger.Error("insert scores failed", logger.String("run_id", run.ID), logger.Error(err))
			return fmt.Errorf("insert scores: %w", err)
		}
	}

	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (id, started_at, finished_at, normalizer, stats) VALUES %s",
		s.runsTable, s.tuple(0, 5))
	if _, err := ex.ExecContext(ctx, q,
		run.ID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.Normalizer, string(stats),
	); err != nil {
		s.logger.Error("insert run failed", logger.String("run_id", run.ID), logger.Error(err))
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *SQLScoreStore) LatestRun(ctx context.Context) (*models.RunSummary, error) {
	q := fmt.Sprintf("SELECT id, started_at, finished_at, normalizer, stats FROM %s ORDER BY finished_at DESC, id DESC LIMIT 1", s.runsTable)
	var (
		run               models.RunSummary
		started, finished int64
		stats             string
	)
	err := s.db.QueryRowContext(ctx, q).Scan(&run.ID, &started, &finished, &run.Normalizer, &stats)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	run.StartedAt = time.UnixMilli(started).UTC()
	run.FinishedAt = time.UnixMilli(finished).UTC()
	if err := json.Unmarshal([]byte(stats), &run.Stats); err != nil {
		return nil, fmt.Errorf("decode run stats: %w", err)
	}
	return &run, nil
}

func (s *SQLScoreStore) GetScore(ctx context.Context, wallet string) (*models.ScoreRecord, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT run_id, wallet, raw_score, final_score, profile, contributions FROM %s WHERE run_id = %s AND wallet = %s LIMIT 1",
		s.scoresTable, s.placeholder(1), s.placeholder(2))
	rec, err := scanScore(s.db.QueryRowContext(ctx, q, run.ID, wallet))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get score: %w", err)
	}
	return rec, nil
}

func (s *SQLScoreStore) ListScores(ctx context.Context, f domrepo.ScoreFilter) ([]models.ScoreRecord, int64, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := []string{"run_id = " + s.placeholder(1)}
	args := []any{run.ID}
	if f.MinScore != nil {
		args = append(args, *f.MinScore)
		where = append(where, "final_score >= "+s.placeholder(len(args)))
	}
	if f.MaxScore != nil {
		args = append(args, *f.MaxScore)
		where = append(where, "final_score <= "+s.placeholder(len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countQ := fmt.Sprintf("SELECT %s FROM %s WHERE %s", s.countExpr(), s.scoresTable, cond)
	if err := s.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scores: %w", err)
	}

	q := fmt.Sprintf("SELECT run_id, wallet, raw_score, final_score, profile, contributions FROM %s WHERE %s ORDER BY final_score DESC, wallet ASC",
		s.scoresTable, cond)
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, max(f.Offset, 0))
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	var out []models.ScoreRecord
	for rows.Next() {
		rec, err := scanScore(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, *rec)
	}
	return out, total, rows.Err()
}

func (s *SQLScoreStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLScoreStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func (s *SQLScoreStore) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// tuple renders "(p, p, ...)" for width columns starting after offset bound args.
func (s *SQLScoreStore) tuple(offset, width int) string {
	ph := make([]string, width)
	for i := range ph {
		ph[i] = s.placeholder(offset + i + 1)
	}
	return "(" + strings.Join(ph, ", ") + ")"
}

func (s *SQLScoreStore) countExpr() string {
	if s.dialect == DialectClickHouse {
		return "toInt64(count())"
	}
	return "COUNT(*)"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*models.ScoreRecord, error) {
	var (
		rec            models.ScoreRecord
		profile, parts string
	)
	if err := row.Scan(&rec.RunID, &rec.WalletAddress, &rec.RawScore, &rec.FinalScore, &profile, &parts); err != nil {
		return nil, err
	}
	if profile != "" {
		rec.Profile = &models.WalletProfile{}
		if err := json.Unmarshal([]byte(profile), rec.Profile); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
	}
	if parts != "" {
		rec.Contributions = &models.Breakdown{}
		if err := json.Unmarshal([]byte(parts), rec.Contributions); err != nil {
			return nil, fmt.Errorf("decode contributions: %w", err)
		}
	}
	return &rec, nil
}

func marshalOrEmpty(v any) (string, error) {
	switch p := v.(type) {
	case *models.WalletProfile:
		if p == nil {
			return "", nil
		}
	case *models.Breakdown:
		if p == nil {
			return "", nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(b), nil
}

var _ domrepo.ScoreStore = (*SQLScoreStore)(nil)
