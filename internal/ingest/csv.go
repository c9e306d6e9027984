package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"WalletScore/internal/domain/models"
)

var csvColumns = map[string][]string{
	"wallet":    {"userwallet", "wallet_address", "wallet", "useraddress"},
	"action":    {"action"},
	"amount":    {"amountusd", "amount_usd"},
	"timestamp": {"timestamp", "ts"},
}

// DecodeCSV reads a headered CSV. Header names are matched case-insensitively.
// Cells that fail to parse leave the field unset so the record is counted as invalid.
func DecodeCSV(rd io.Reader) ([]models.Transaction, error) {
	r := csv.NewReader(rd)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var txs []models.Transaction
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errLine("csv", line, err)
		}
		cell := func(col string) string {
			i := idx[col]
			if i < 0 || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		tx := models.Transaction{
			WalletAddress: cell("wallet"),
			Action:        cell("action"),
		}
		if d, ok := decimalFromString(cell("amount")); ok {
			tx.AmountUSD = toFloat(d)
		}
		if ts, ok := parseTimeString(cell("timestamp")); ok {
			tx.Timestamp = ts
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := map[string]int{"wallet": -1, "action": -1, "amount": -1, "timestamp": -1}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for col, aliases := range csvColumns {
			for _, a := range aliases {
				if name == a && idx[col] < 0 {
					idx[col] = i
				}
			}
		}
	}
	if idx["wallet"] < 0 {
		return nil, fmt.Errorf("csv header has no wallet column")
	}
	return idx, nil
}
