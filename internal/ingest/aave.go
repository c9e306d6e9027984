package ingest

import (
	"encoding/json"
	"fmt"
	"io"

	"WalletScore/internal/domain/models"
)

// aaveRecord is one entry of an Aave V2 transaction export. Unknown fields are ignored.
type aaveRecord struct {
	UserWallet    string          `json:"userWallet"`
	WalletAddress string          `json:"wallet_address"`
	Action        string          `json:"action"`
	Timestamp     json.RawMessage `json:"timestamp"`
	AmountUSD     json.RawMessage `json:"amountUSD"`
	AmountUSDAlt  json.RawMessage `json:"amount_usd"`
	ActionData    struct {
		Amount        json.RawMessage `json:"amount"`
		AssetPriceUSD json.RawMessage `json:"assetPriceUSD"`
	} `json:"actionData"`
}

func (r *aaveRecord) toTransaction() models.Transaction {
	tx := models.Transaction{
		WalletAddress: r.UserWallet,
		Action:        r.Action,
	}
	if tx.WalletAddress == "" {
		tx.WalletAddress = r.WalletAddress
	}
	if ts, ok := parseTimestamp(r.Timestamp); ok {
		tx.Timestamp = ts
	}

	if usd, ok := parseDecimal(r.AmountUSD); ok {
		tx.AmountUSD = toFloat(usd)
	} else if usd, ok := parseDecimal(r.AmountUSDAlt); ok {
		tx.AmountUSD = toFloat(usd)
	} else {
		amount, okA := parseDecimal(r.ActionData.Amount)
		price, okP := parseDecimal(r.ActionData.AssetPriceUSD)
		if okA && okP {
			tx.AmountUSD = toFloat(amount.Mul(price))
		}
	}
	return tx
}

// DecodeRecord parses a single JSON object into a transaction. Field-level
// problems leave the field unset; only malformed JSON is an error.
func DecodeRecord(b []byte) (models.Transaction, error) {
	var r aaveRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return models.Transaction{}, fmt.Errorf("decode record: %w", err)
	}
	return r.toTransaction(), nil
}

// DecodeRecords streams a JSON array of records from rd.
// An element that is not an object becomes an empty (invalid) transaction.
func DecodeRecords(rd io.Reader) ([]models.Transaction, error) {
	dec := json.NewDecoder(rd)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("read json: expected array, got %v", tok)
	}

	var txs []models.Transaction
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("read json element %d: %w", len(txs), err)
		}
		var r aaveRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			txs = append(txs, models.Transaction{})
			continue
		}
		txs = append(txs, r.toTransaction())
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	return txs, nil
}
