package reporting

import (
	"fmt"
	"io"
	"strings"

	"WalletScore/internal/domain/models"
)

// Distribution counts final scores into fixed-width buckets covering
// [lo, hi]. The last bucket is closed so hi itself is counted.
func Distribution(scores []models.ScoreRecord, lo, hi, width int) []models.Bucket {
	if width <= 0 || hi < lo {
		return nil
	}
	n := (hi - lo) / width
	if (hi-lo)%width != 0 || n == 0 {
		n++
	}
	buckets := make([]models.Bucket, n)
	for i := range buckets {
		lower := lo + i*width
		upper := lower + width - 1
		if i == n-1 {
			upper = hi
		}
		buckets[i] = models.Bucket{
			Label: fmt.Sprintf("%d-%d", lower, upper),
			Lower: lower,
			Upper: upper,
		}
	}
	for _, s := range scores {
		if s.FinalScore < lo || s.FinalScore > hi {
			continue
		}
		i := min((s.FinalScore-lo)/width, n-1)
		buckets[i].Count++
	}
	return buckets
}

const barWidth = 40

// WriteHistogram renders buckets as a markdown table with a text bar per row.
func WriteHistogram(w io.Writer, run models.RunSummary, buckets []models.Bucket) error {
	total, peak := 0, 0
	for _, b := range buckets {
		total += b.Count
		peak = max(peak, b.Count)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Wallet score distribution\n\n")
	fmt.Fprintf(&sb, "Run `%s` finished %s, %d wallets, normalizer `%s`.\n\n",
		run.ID, run.FinishedAt.UTC().Format("2006-01-02 15:04:05 MST"), total, run.Normalizer)
	sb.WriteString("| Range | Wallets | Share | |\n|---|---:|---:|---|\n")
	for _, b := range buckets {
		share := 0.0
		bar := 0
		if total > 0 {
			share = 100 * float64(b.Count) / float64(total)
		}
		if peak > 0 {
			bar = b.Count * barWidth / peak
		}
		fmt.Fprintf(&sb, "| %s | %d | %.1f%% | %s |\n", b.Label, b.Count, share, strings.Repeat("#", bar))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
