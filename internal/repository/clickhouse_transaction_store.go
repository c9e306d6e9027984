package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"WalletScore/internal/domain/models"
	domrepo "WalletScore/internal/domain/repository"
	"WalletScore/pkg/logger"
)

// ClickHouseTransactionStore is both the sink for streamed transactions and
// the batch source that reads them back for a scoring run.
type ClickHouseTransactionStore struct {
	db     *sql.DB
	table  string
	logger *logger.Logger
}

func NewClickHouseTransactionStore(db *sql.DB, table string, lgr *logger.Logger) *ClickHouseTransactionStore {
	return &ClickHouseTransactionStore{db: db, table: table, logger: lgr}
}

func (s *ClickHouseTransactionStore) Name() string { return "clickhouse:" + s.table }

func (s *ClickHouseTransactionStore) Init(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts DateTime64(3, 'UTC'),
		wallet String,
		action LowCardinality(String),
		amount_usd Nullable(Float64),
		inserted_at DateTime DEFAULT now()
	) ENGINE = MergeTree ORDER BY (wallet, ts)`, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("init %s: %w", s.table, err)
	}
	return nil
}

func (s *ClickHouseTransactionStore) StoreBatch(ctx context.Context, txs []models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(txs); start += chunkSize {
		end := min(start+chunkSize, len(txs))
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*4)
		for _, t := range txs[start:end] {
			var amount interface{}
			if t.AmountUSD != nil {
				amount = *t.AmountUSD
			}
			values = append(values, "(?, ?, ?, ?)")
			args = append(args, t.Timestamp.UTC(), t.WalletAddress, t.Action, amount)
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, wallet, action, amount_usd) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.logger.Error("clickhouse insert failed", logger.String("table", s.table), logger.Error(err))
			return err
		}
	}
	return nil
}

// Load reads the whole table. Rows whose timestamp is the epoch are returned
// with a zero time so validation rejects them.
func (s *ClickHouseTransactionStore) Load(ctx context.Context) ([]models.Transaction, error) {
	q := fmt.Sprintf("SELECT ts, wallet, action, amount_usd FROM %s ORDER BY wallet, ts", s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.logger.Error("clickhouse query failed", logger.String("table", s.table), logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var (
			tx     models.Transaction
			ts     time.Time
			amount sql.NullFloat64
		)
		if err := rows.Scan(&ts, &tx.WalletAddress, &tx.Action, &amount); err != nil {
			return nil, err
		}
		if ts.Unix() > 0 {
			tx.Timestamp = ts.UTC()
		}
		if amount.Valid {
			v := amount.Float64
			tx.AmountUSD = &v
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *ClickHouseTransactionStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var (
	_ domrepo.TransactionStore  = (*ClickHouseTransactionStore)(nil)
	_ domrepo.TransactionSource = (*ClickHouseTransactionStore)(nil)
)
