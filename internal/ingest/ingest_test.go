package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aaveExport = `[
  {
    "userWallet": "0xabc",
    "action": "deposit",
    "timestamp": 1629178166,
    "actionData": {"amount": "2000000", "assetPriceUSD": {"$numberDecimal": "0.5"}}
  },
  {
    "userWallet": "0xabc",
    "action": "borrow",
    "timestamp": {"$date": "2021-08-18T10:00:00Z"},
    "amountUSD": {"$numberDecimal": "12.25"}
  },
  {"wallet_address": "0xdef", "action": "repay", "timestamp": "1629178166000", "amount_usd": "7"},
  {"userWallet": "0xdef", "action": "repay", "timestamp": null, "amountUSD": "not-a-number"},
  42
]`

func TestDecodeRecords(t *testing.T) {
	txs, err := DecodeRecords(strings.NewReader(aaveExport))
	require.NoError(t, err)
	require.Len(t, txs, 5)

	assert.Equal(t, "0xabc", txs[0].WalletAddress)
	require.NotNil(t, txs[0].AmountUSD)
	assert.InDelta(t, 1000000.0, *txs[0].AmountUSD, 1e-9)
	assert.Equal(t, time.Unix(1629178166, 0).UTC(), txs[0].Timestamp)

	require.NotNil(t, txs[1].AmountUSD)
	assert.InDelta(t, 12.25, *txs[1].AmountUSD, 1e-9)
	assert.Equal(t, time.Date(2021, 8, 18, 10, 0, 0, 0, time.UTC), txs[1].Timestamp)

	assert.Equal(t, "0xdef", txs[2].WalletAddress)
	assert.Equal(t, time.UnixMilli(1629178166000).UTC(), txs[2].Timestamp)
	require.NotNil(t, txs[2].AmountUSD)
	assert.Equal(t, 7.0, *txs[2].AmountUSD)

	assert.Nil(t, txs[3].AmountUSD)
	assert.True(t, txs[3].Timestamp.IsZero())

	assert.Empty(t, txs[4].WalletAddress)
}

func TestDecodeRecordsRejectsNonArray(t *testing.T) {
	_, err := DecodeRecords(strings.NewReader(`{"userWallet": "0x1"}`))
	assert.Error(t, err)

	_, err = DecodeRecords(strings.NewReader(`[{"userWallet": "0x1"}`))
	assert.Error(t, err)
}

func TestDecodeRecord(t *testing.T) {
	tx, err := DecodeRecord([]byte(`{"userWallet":"0x1","action":"deposit","amountUSD":3,"timestamp":"2021-01-02"}`))
	require.NoError(t, err)
	assert.Equal(t, "0x1", tx.WalletAddress)
	assert.Equal(t, 3.0, *tx.AmountUSD)
	assert.Equal(t, time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC), tx.Timestamp)

	_, err = DecodeRecord([]byte(`{`))
	assert.Error(t, err)
}

func TestDecodeCSV(t *testing.T) {
	in := "\ufeffUserWallet,Action,amount_usd,Timestamp\n" +
		"0x1,deposit,100.5,1629178166\n" +
		"0x2,borrow,,2021-08-17T05:29:26Z\n" +
		"0x3,repay,abc,bogus\n"
	txs, err := DecodeCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, "0x1", txs[0].WalletAddress)
	assert.Equal(t, 100.5, *txs[0].AmountUSD)
	assert.Equal(t, time.Unix(1629178166, 0).UTC(), txs[0].Timestamp)

	assert.Nil(t, txs[1].AmountUSD)
	assert.False(t, txs[1].Timestamp.IsZero())

	assert.Nil(t, txs[2].AmountUSD)
	assert.True(t, txs[2].Timestamp.IsZero())
}

func TestDecodeCSVHeaderErrors(t *testing.T) {
	txs, err := DecodeCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, txs)

	_, err = DecodeCSV(strings.NewReader("action,amount_usd\n"))
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	_, ok := ParseTimestamp("0")
	assert.False(t, ok)
	_, ok = ParseTimestamp("-5")
	assert.False(t, ok)
	ts, ok := ParseTimestamp("1629178166")
	require.True(t, ok)
	assert.Equal(t, int64(1629178166), ts.Unix())
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "txs.json")
	csvPath := filepath.Join(dir, "txs.CSV")
	require.NoError(t, os.WriteFile(jsonPath, []byte(aaveExport), 0o600))
	require.NoError(t, os.WriteFile(csvPath, []byte("wallet,action,amountUSD,ts\n0x1,deposit,1,1629178166\n"), 0o600))

	txs, err := NewFileSource(jsonPath, "").Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, txs, 5)

	src := NewFileSource(csvPath, "")
	assert.Equal(t, "file:"+csvPath, src.Name())
	txs, err = src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	_, err = NewFileSource(filepath.Join(dir, "missing.json"), "").Load(context.Background())
	assert.Error(t, err)

	_, err = NewFileSource(jsonPath, "xml").Load(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "nope", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(aaveExport))
	}))
	defer srv.Close()

	txs, err := NewHTTPSource(srv.URL+"/export", time.Second).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, txs, 5)

	_, err = NewHTTPSource(srv.URL+"/broken", time.Second).Load(context.Background())
	assert.Error(t, err)
}
