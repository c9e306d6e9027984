package models

import "time"

// Breakdown holds the signed contribution of every scoring term.
type Breakdown struct {
	Baseline    float64 `json:"baseline"`
	Repayment   float64 `json:"repayment"`
	AccountAge  float64 `json:"account_age"`
	Volume      float64 `json:"volume"`
	Leverage    float64 `json:"leverage"`
	Liquidation float64 `json:"liquidation"`
}

// Total sums all terms. It equals the raw score.
func (b Breakdown) Total() float64 {
	return b.Baseline + b.Repayment + b.AccountAge + b.Volume + b.Leverage + b.Liquidation
}

// ScoreRecord is the scored output for one wallet within a run.
type ScoreRecord struct {
	WalletAddress string         `json:"wallet_address"`
	RawScore      float64        `json:"raw_score"`
	FinalScore    int            `json:"final_score"`
	RunID         string         `json:"run_id,omitempty"`
	Profile       *WalletProfile `json:"profile,omitempty"`
	Contributions *Breakdown     `json:"contributions,omitempty"`
}

// RunStats counts what happened to the input records of a run.
type RunStats struct {
	TotalRecords    int            `json:"total_records"`
	ValidRecords    int            `json:"valid_records"`
	InvalidRecords  int            `json:"invalid_records"`
	InvalidByReason map[string]int `json:"invalid_by_reason,omitempty"`
	Wallets         int            `json:"wallets"`
	ExcludedWallets int            `json:"excluded_wallets"`
}

// RunSummary describes a finished scoring run.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Normalizer string    `json:"normalizer"`
	Stats      RunStats  `json:"stats"`
}

// Bucket is one bar of a score distribution.
type Bucket struct {
	Label string `json:"label"`
	Lower int    `json:"lower"`
	Upper int    `json:"upper"`
	Count int    `json:"count"`
}
