package reporting

import (
	"encoding/csv"
	"io"
	"strconv"

	"WalletScore/internal/domain/models"
)

var featureHeader = []string{
	"raw_score",
	"total_deposited",
	"total_borrowed",
	"total_repaid",
	"total_redeemed",
	"liquidation_count",
	"transaction_count",
	"account_age_days",
	"repayment_ratio",
	"ltv",
}

// WriteScoresCSV writes userWallet,score rows in the order given. Undefined
// ratios are left empty.
func WriteScoresCSV(w io.Writer, scores []models.ScoreRecord, features bool) error {
	cw := csv.NewWriter(w)
	header := []string{"userWallet", "score"}
	if features {
		header = append(header, featureHeader...)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, 0, len(header))
	for _, s := range scores {
		row = append(row[:0], s.WalletAddress, strconv.Itoa(s.FinalScore))
		if features {
			row = append(row, featureRow(s)...)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func featureRow(s models.ScoreRecord) []string {
	out := []string{formatFloat(s.RawScore)}
	p := s.Profile
	if p == nil {
		return append(out, make([]string, len(featureHeader)-1)...)
	}
	out = append(out,
		formatFloat(p.TotalDeposited),
		formatFloat(p.TotalBorrowed),
		formatFloat(p.TotalRepaid),
		formatFloat(p.TotalRedeemed),
		strconv.Itoa(p.LiquidationCount),
		strconv.Itoa(p.TransactionCount),
		formatFloat(p.AccountAgeDays()),
	)
	for _, f := range []func() (float64, bool){p.RepaymentRatio, p.LTVProxy} {
		if v, ok := f(); ok {
			out = append(out, formatFloat(v))
		} else {
			out = append(out, "")
		}
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
