package models

import (
	"strings"
	"time"
)

// Action is a normalized lending-protocol event label.
type Action string

const (
	ActionDeposit     Action = "deposit"
	ActionBorrow      Action = "borrow"
	ActionRepay       Action = "repay"
	ActionRedeem      Action = "redeem"
	ActionLiquidation Action = "liquidation"
)

var actionAliases = map[string]Action{
	"deposit":          ActionDeposit,
	"borrow":           ActionBorrow,
	"repay":            ActionRepay,
	"redeem":           ActionRedeem,
	"redeemunderlying": ActionRedeem,
	"withdraw":         ActionRedeem,
	"liquidation":      ActionLiquidation,
	"liquidationcall":  ActionLiquidation,
}

// ParseAction maps a raw label (any case, known aliases) to an Action.
func ParseAction(s string) (Action, bool) {
	a, ok := actionAliases[strings.ToLower(strings.TrimSpace(s))]
	return a, ok
}

// Transaction is one raw lending event attributed to a wallet.
// AmountUSD is nil when the source value was missing or unparsable;
// a zero Timestamp means the same for time.
type Transaction struct {
	WalletAddress string    `json:"userWallet"`
	Action        string    `json:"action"`
	AmountUSD     *float64  `json:"amountUSD,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Amount returns a pointer to v, handy for building records in code.
func Amount(v float64) *float64 { return &v }
