package reporting

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"WalletScore/internal/domain/models"
	"WalletScore/pkg/logger"
)

// FileReporter writes the score CSV and the distribution markdown after a run.
// Empty paths are skipped.
type FileReporter struct {
	csvPath       string
	histogramPath string
	features      bool
	lo, hi        int
	logger        *logger.Logger
}

func NewFileReporter(csvPath, histogramPath string, features bool, lo, hi int, lgr *logger.Logger) *FileReporter {
	return &FileReporter{
		csvPath:       csvPath,
		histogramPath: histogramPath,
		features:      features,
		lo:            lo,
		hi:            hi,
		logger:        lgr,
	}
}

func (r *FileReporter) WriteReport(run models.RunSummary, scores []models.ScoreRecord) error {
	if r.csvPath != "" {
		var buf bytes.Buffer
		if err := WriteScoresCSV(&buf, scores, r.features); err != nil {
			return fmt.Errorf("render csv: %w", err)
		}
		if err := writeFileAtomic(r.csvPath, buf.Bytes()); err != nil {
			return err
		}
		r.logger.Info("score csv written", logger.String("path", r.csvPath), logger.Int("rows", len(scores)))
	}
	if r.histogramPath != "" {
		var buf bytes.Buffer
		buckets := Distribution(scores, r.lo, r.hi, BucketWidth(r.lo, r.hi))
		if err := WriteHistogram(&buf, run, buckets); err != nil {
			return fmt.Errorf("render histogram: %w", err)
		}
		if err := writeFileAtomic(r.histogramPath, buf.Bytes()); err != nil {
			return err
		}
		r.logger.Info("score histogram written", logger.String("path", r.histogramPath))
	}
	return nil
}

// BucketWidth splits [lo, hi] into ten buckets.
func BucketWidth(lo, hi int) int {
	return max(1, (hi-lo)/10)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
