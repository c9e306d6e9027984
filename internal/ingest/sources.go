package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"WalletScore/internal/domain/models"
	domrepo "WalletScore/internal/domain/repository"
	xhttp "WalletScore/pkg/http"
)

// FileSource loads a JSON array or a CSV file from disk.
type FileSource struct {
	path   string
	format string
}

// NewFileSource picks the format from the argument, or from the extension when empty.
func NewFileSource(path, format string) *FileSource {
	if format == "" {
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			format = "csv"
		} else {
			format = "json"
		}
	}
	return &FileSource{path: path, format: format}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Load(ctx context.Context) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	switch s.format {
	case "csv":
		return DecodeCSV(f)
	case "json":
		return DecodeRecords(f)
	default:
		return nil, fmt.Errorf("unsupported input format %q", s.format)
	}
}

// HTTPSource fetches a JSON export over HTTP.
type HTTPSource struct {
	client *xhttp.Client
	url    string
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		client: xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithHeader("Accept", "application/json")),
		url:    url,
	}
}

func (s *HTTPSource) Name() string { return "http:" + s.url }

func (s *HTTPSource) Load(ctx context.Context) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.client.Fetch(ctx, s.url, func(body io.Reader) error {
		var err error
		txs, err = DecodeRecords(body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch input: %w", err)
	}
	return txs, nil
}

var (
	_ domrepo.TransactionSource = (*FileSource)(nil)
	_ domrepo.TransactionSource = (*HTTPSource)(nil)
)
