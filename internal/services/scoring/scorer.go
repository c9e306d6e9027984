package scoring

import (
	"math"

	"WalletScore/internal/domain/models"
	"WalletScore/internal/domain/service"
)

// Scorer applies the weighted formula to one profile at a time.
type Scorer struct {
	cfg Config
}

// NewScorer validates cfg and returns a ready scorer.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

// Config returns the configuration the scorer was built with.
func (s *Scorer) Config() Config { return s.cfg }

// Score returns the raw score and the signed contribution of each term.
// Undefined ratios contribute zero.
func (s *Scorer) Score(p models.WalletProfile) (float64, models.Breakdown) {
	w := s.cfg.Weights
	b := models.Breakdown{Baseline: s.cfg.Baseline}

	if r, ok := p.RepaymentRatio(); ok {
		b.Repayment = w.Repayment * (clip(r, s.cfg.RepaymentMin, s.cfg.RepaymentMax) - s.cfg.RepaymentPivot)
	}

	b.AccountAge = w.AccountAge * s.ageTerm(math.Max(p.AccountAgeDays(), 0))
	b.Volume = w.Volume * math.Log1p(p.TotalDeposited+p.TotalBorrowed)

	if ltv, ok := p.LTVProxy(); ok {
		b.Leverage = -w.Leverage * clip(ltv, 0, s.cfg.LTVMax)
	}

	b.Liquidation = -w.Liquidation * float64(p.LiquidationCount)

	return b.Total(), b
}

func (s *Scorer) ageTerm(days float64) float64 {
	switch s.cfg.AgeTransform {
	case AgeSqrt:
		return math.Sqrt(days)
	case AgeLinear:
		return days
	default:
		return math.Log1p(days)
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ service.WalletScorer = (*Scorer)(nil)
