package scoring

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidConfig marks a scoring configuration that cannot produce trustworthy scores.
	ErrInvalidConfig = errors.New("invalid scoring config")
	// ErrNonFiniteScore is reported for wallets whose raw score is NaN or infinite.
	ErrNonFiniteScore = errors.New("non-finite raw score")
)

// AgeTransform selects how account age in days feeds the score.
type AgeTransform string

const (
	AgeLog    AgeTransform = "log"
	AgeSqrt   AgeTransform = "sqrt"
	AgeLinear AgeTransform = "linear"
)

// Weights are non-negative magnitudes. The sign of each term is fixed by the formula.
type Weights struct {
	Repayment   float64 `json:"repayment"`
	AccountAge  float64 `json:"account_age"`
	Volume      float64 `json:"volume"`
	Leverage    float64 `json:"ltv"`
	Liquidation float64 `json:"liquidation"`
}

func DefaultWeights() Weights {
	return Weights{
		Repayment:   100,
		AccountAge:  20,
		Volume:      5,
		Leverage:    150,
		Liquidation: 250,
	}
}

// Config is everything the per-wallet formula needs.
type Config struct {
	Baseline       float64
	Weights        Weights
	RepaymentMin   float64
	RepaymentMax   float64
	RepaymentPivot float64
	LTVMax         float64
	AgeTransform   AgeTransform
}

func DefaultConfig() Config {
	return Config{
		Baseline:       500,
		Weights:        DefaultWeights(),
		RepaymentMin:   0,
		RepaymentMax:   2,
		RepaymentPivot: 1,
		LTVMax:         2,
		AgeTransform:   AgeLog,
	}
}

// Validate reports the first problem found, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	w := c.Weights
	named := []struct {
		name string
		v    float64
	}{
		{"repayment", w.Repayment},
		{"account_age", w.AccountAge},
		{"volume", w.Volume},
		{"ltv", w.Leverage},
		{"liquidation", w.Liquidation},
	}
	allZero := true
	for _, n := range named {
		if !finite(n.v) || n.v < 0 {
			return fmt.Errorf("%w: weight %s must be a finite non-negative number, got %v", ErrInvalidConfig, n.name, n.v)
		}
		if n.v != 0 {
			allZero = false
		}
	}
	if allZero {
		return fmt.Errorf("%w: all weights are zero", ErrInvalidConfig)
	}
	if !finite(c.Baseline) {
		return fmt.Errorf("%w: baseline must be finite", ErrInvalidConfig)
	}
	if !finite(c.RepaymentMin) || !finite(c.RepaymentMax) || c.RepaymentMin > c.RepaymentMax {
		return fmt.Errorf("%w: repayment clip [%v, %v] is not a valid range", ErrInvalidConfig, c.RepaymentMin, c.RepaymentMax)
	}
	if !finite(c.RepaymentPivot) {
		return fmt.Errorf("%w: repayment pivot must be finite", ErrInvalidConfig)
	}
	if !finite(c.LTVMax) || c.LTVMax <= 0 {
		return fmt.Errorf("%w: ltv max must be positive, got %v", ErrInvalidConfig, c.LTVMax)
	}
	switch c.AgeTransform {
	case AgeLog, AgeSqrt, AgeLinear:
	default:
		return fmt.Errorf("%w: unknown age transform %q", ErrInvalidConfig, c.AgeTransform)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
