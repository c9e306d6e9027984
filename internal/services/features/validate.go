package features

import (
	"math"
	"strings"
	"time"

	"WalletScore/internal/domain/models"
)

// InvalidReason labels why a record was dropped before aggregation.
type InvalidReason string

const (
	ReasonMissingWallet    InvalidReason = "missing_wallet"
	ReasonMissingAction    InvalidReason = "missing_action"
	ReasonUnknownAction    InvalidReason = "unknown_action"
	ReasonMissingAmount    InvalidReason = "missing_amount"
	ReasonInvalidAmount    InvalidReason = "invalid_amount"
	ReasonNegativeAmount   InvalidReason = "negative_amount"
	ReasonMissingTimestamp InvalidReason = "missing_timestamp"
)

// record is a transaction that passed validation.
type record struct {
	wallet string
	action models.Action
	amount float64
	ts     time.Time
}

func validate(tx models.Transaction) (record, InvalidReason) {
	wallet := strings.TrimSpace(tx.WalletAddress)
	if wallet == "" {
		return record{}, ReasonMissingWallet
	}
	if strings.TrimSpace(tx.Action) == "" {
		return record{}, ReasonMissingAction
	}
	action, ok := models.ParseAction(tx.Action)
	if !ok {
		return record{}, ReasonUnknownAction
	}
	if tx.AmountUSD == nil {
		return record{}, ReasonMissingAmount
	}
	amount := *tx.AmountUSD
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return record{}, ReasonInvalidAmount
	}
	if amount < 0 {
		return record{}, ReasonNegativeAmount
	}
	if tx.Timestamp.IsZero() {
		return record{}, ReasonMissingTimestamp
	}
	return record{wallet: wallet, action: action, amount: amount, ts: tx.Timestamp}, ""
}
