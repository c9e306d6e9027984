package models

import (
	"math"
	"time"
)

// WalletProfile is the behavioural summary of one wallet's valid history.
type WalletProfile struct {
	WalletAddress    string    `json:"wallet_address"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
	TotalDeposited   float64   `json:"total_deposited_usd"`
	TotalBorrowed    float64   `json:"total_borrowed_usd"`
	TotalRepaid      float64   `json:"total_repaid_usd"`
	TotalRedeemed    float64   `json:"total_redeemed_usd"`
	LiquidationCount int       `json:"liquidation_count"`
	TransactionCount int       `json:"transaction_count"`
}

// AccountAge is the span between the earliest and latest valid record.
func (p *WalletProfile) AccountAge() time.Duration {
	return p.LastSeen.Sub(p.FirstSeen)
}

// AccountAgeDays returns AccountAge in fractional days.
func (p *WalletProfile) AccountAgeDays() float64 {
	return p.AccountAge().Hours() / 24
}

// RepaymentRatio is repaid/borrowed. ok is false when nothing was borrowed.
func (p *WalletProfile) RepaymentRatio() (float64, bool) {
	return ratio(p.TotalRepaid, p.TotalBorrowed)
}

// LTVProxy is borrowed/deposited. ok is false when nothing was deposited.
func (p *WalletProfile) LTVProxy() (float64, bool) {
	return ratio(p.TotalBorrowed, p.TotalDeposited)
}

func ratio(num, den float64) (float64, bool) {
	if den <= 0 {
		return 0, false
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}
