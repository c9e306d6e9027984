package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"WalletScore/pkg/util"

	"github.com/shopspring/decimal"
)

// parseDecimal accepts a JSON number, a numeric string, or a Mongo extended-JSON
// wrapper such as {"$numberDecimal": "1.5"}.
func parseDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Decimal{}, false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Decimal{}, false
		}
		return decimalFromString(s)
	case '{':
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return decimal.Decimal{}, false
		}
		for _, key := range []string{"$numberDecimal", "$numberDouble", "$numberLong", "$numberInt"} {
			if v, ok := wrapped[key]; ok {
				return parseDecimal(v)
			}
		}
		return decimal.Decimal{}, false
	default:
		return decimalFromString(string(raw))
	}
}

func decimalFromString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// parseTimestamp accepts unix seconds or milliseconds as a number or string,
// RFC3339 strings, and {"$date": ...} wrappers.
func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, false
		}
		return parseTimeString(s)
	case '{':
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return time.Time{}, false
		}
		if v, ok := wrapped["$date"]; ok {
			return parseTimestamp(v)
		}
		return time.Time{}, false
	default:
		d, ok := decimalFromString(string(raw))
		if !ok {
			return time.Time{}, false
		}
		return unixTime(d.IntPart())
	}
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if d, ok := decimalFromString(s); ok {
		return unixTime(d.IntPart())
	}
	t, ok := util.ParseTime(s)
	if !ok {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// unixTime treats values above 1e11 as milliseconds.
func unixTime(ts int64) (time.Time, bool) {
	if ts <= 0 {
		return time.Time{}, false
	}
	if ts > 1e11 {
		return time.UnixMilli(ts).UTC(), true
	}
	return time.Unix(ts, 0).UTC(), true
}

func toFloat(d decimal.Decimal) *float64 {
	f, _ := d.Float64()
	return &f
}

func errLine(source string, line int, err error) error {
	return fmt.Errorf("%s line %d: %w", source, line, err)
}

// ParseTimestamp accepts unix seconds or milliseconds, RFC3339 and plain
// dates. ok is false for anything else, including non-positive epochs.
func ParseTimestamp(s string) (time.Time, bool) {
	return parseTimeString(s)
}
