package features

import (
	"context"
	"runtime"
	"sort"

	"WalletScore/internal/domain/models"
	"WalletScore/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Stats reports how the input records of one aggregation were used.
type Stats struct {
	Total           int
	Valid           int
	Invalid         int
	InvalidByReason map[InvalidReason]int
	Wallets         int
}

// ReasonCounts returns InvalidByReason keyed by plain strings.
func (s Stats) ReasonCounts() map[string]int {
	out := make(map[string]int, len(s.InvalidByReason))
	for k, v := range s.InvalidByReason {
		out[string(k)] = v
	}
	return out
}

// Option configures Aggregator.
type Option func(*Aggregator)

// WithWorkers bounds how many wallet groups are summarised concurrently.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithLogger attaches a logger for data-quality warnings.
func WithLogger(l *logger.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// Aggregator turns raw transactions into one profile per wallet.
type Aggregator struct {
	workers int
	logger  *logger.Logger
}

func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate validates txs, groups the valid ones by wallet and builds profiles.
// Profiles come back sorted by wallet address. The only error is ctx cancellation.
func (a *Aggregator) Aggregate(ctx context.Context, txs []models.Transaction) ([]models.WalletProfile, Stats, error) {
	stats := Stats{Total: len(txs), InvalidByReason: make(map[InvalidReason]int)}
	groups := make(map[string][]record)

	for _, tx := range txs {
		rec, reason := validate(tx)
		if reason != "" {
			stats.Invalid++
			stats.InvalidByReason[reason]++
			continue
		}
		stats.Valid++
		groups[rec.wallet] = append(groups[rec.wallet], rec)
	}

	if stats.Invalid > 0 && a.logger != nil {
		a.logger.Warn("dropped invalid records",
			logger.Int("invalid", stats.Invalid),
			logger.Int("total", stats.Total),
			logger.Any("by_reason", stats.ReasonCounts()))
	}

	wallets := make([]string, 0, len(groups))
	for w := range groups {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)
	stats.Wallets = len(wallets)

	profiles := make([]models.WalletProfile, len(wallets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, w := range wallets {
		i, w := i, w
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			profiles[i] = buildProfile(w, groups[w])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	return profiles, stats, nil
}

// buildProfile sums one wallet's records in canonical order so the result
// does not depend on how the input was ordered.
func buildProfile(wallet string, recs []record) models.WalletProfile {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.ts.Equal(b.ts) {
			return a.ts.Before(b.ts)
		}
		if a.action != b.action {
			return a.action < b.action
		}
		return a.amount < b.amount
	})

	p := models.WalletProfile{
		WalletAddress:    wallet,
		FirstSeen:        recs[0].ts,
		LastSeen:         recs[len(recs)-1].ts,
		TransactionCount: len(recs),
	}
	for _, r := range recs {
		switch r.action {
		case models.ActionDeposit:
			p.TotalDeposited += r.amount
		case models.ActionBorrow:
			p.TotalBorrowed += r.amount
		case models.ActionRepay:
			p.TotalRepaid += r.amount
		case models.ActionRedeem:
			p.TotalRedeemed += r.amount
		case models.ActionLiquidation:
			p.LiquidationCount++
		}
	}
	return p
}
