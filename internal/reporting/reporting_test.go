package reporting

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"WalletScore/internal/domain/models"
	"WalletScore/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(pairs ...interface{}) []models.ScoreRecord {
	var out []models.ScoreRecord
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, models.ScoreRecord{WalletAddress: pairs[i].(string), FinalScore: pairs[i+1].(int)})
	}
	return out
}

func TestDistribution(t *testing.T) {
	buckets := Distribution(scored("a", 0, "b", 99, "c", 100, "d", 950, "e", 1000, "f", 1200), 0, 1000, BucketWidth(0, 1000))
	require.Len(t, buckets, 10)
	assert.Equal(t, "0-99", buckets[0].Label)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, 1, buckets[1].Count)
	assert.Equal(t, "900-1000", buckets[9].Label)
	assert.Equal(t, 2, buckets[9].Count)

	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	assert.Equal(t, 5, total, "out of range scores are not counted")
}

func TestDistributionUnevenRange(t *testing.T) {
	buckets := Distribution(scored("a", 850), 300, 850, BucketWidth(300, 850))
	require.Len(t, buckets, 10)
	assert.Equal(t, "300-354", buckets[0].Label)
	assert.Equal(t, "795-850", buckets[9].Label)
	assert.Equal(t, 1, buckets[9].Count)

	assert.Nil(t, Distribution(nil, 10, 0, 1))
}

func TestWriteHistogram(t *testing.T) {
	run := models.RunSummary{ID: "run-1", FinishedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Normalizer: "minmax"}
	buckets := Distribution(scored("a", 10, "b", 20, "c", 990), 0, 1000, 100)

	var buf bytes.Buffer
	require.NoError(t, WriteHistogram(&buf, run, buckets))
	out := buf.String()
	assert.Contains(t, out, "Run `run-1` finished 2024-01-02 03:04:05 UTC, 3 wallets")
	assert.Contains(t, out, "| 0-99 | 2 | 66.7% | "+strings.Repeat("#", 40)+" |")
	assert.Contains(t, out, "| 900-1000 | 1 | 33.3% | "+strings.Repeat("#", 20)+" |")
}

func TestWriteScoresCSV(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	scores := []models.ScoreRecord{
		{WalletAddress: "0xa", FinalScore: 812, RawScore: 612.25, Profile: &models.WalletProfile{
			FirstSeen: first, LastSeen: first.Add(36 * time.Hour),
			TotalDeposited: 100, TotalBorrowed: 50, TotalRepaid: 25,
			TransactionCount: 3,
		}},
		{WalletAddress: "0xb", FinalScore: 0},
	}

	var plain bytes.Buffer
	require.NoError(t, WriteScoresCSV(&plain, scores, false))
	assert.Equal(t, "userWallet,score\n0xa,812\n0xb,0\n", plain.String())

	var full bytes.Buffer
	require.NoError(t, WriteScoresCSV(&full, scores, true))
	lines := strings.Split(strings.TrimSpace(full.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "userWallet,score,"+strings.Join(featureHeader, ","), lines[0])
	assert.Equal(t, "0xa,812,612.25,100,50,25,0,0,3,1.5,0.5,0.5", lines[1])
	assert.Equal(t, "0xb,0,0,,,,,,,,,", lines[2])
}

func TestWriteScoresCSVUndefinedRatios(t *testing.T) {
	scores := []models.ScoreRecord{{WalletAddress: "0xc", FinalScore: 500, Profile: &models.WalletProfile{TransactionCount: 1}}}
	var buf bytes.Buffer
	require.NoError(t, WriteScoresCSV(&buf, scores, true))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(buf.String()), ",1,0,,"))
}

func TestFileReporter(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "scores.csv")
	mdPath := filepath.Join(dir, "out", "analysis.md")
	r := NewFileReporter(csvPath, mdPath, false, 0, 1000, logger.NewNop())

	require.NoError(t, r.WriteReport(models.RunSummary{ID: "r"}, scored("0x1", 500)))

	b, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "userWallet,score\n0x1,500\n", string(b))

	b, err = os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "| 500-599 | 1 | 100.0% |")

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files are cleaned up")
}
