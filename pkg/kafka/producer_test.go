package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encodeValue("text")
	require.NoError(t, err)
	assert.Equal(t, "text", string(b))

	b, err = encodeValue(map[string]int{"score": 712})
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 712}`, string(b))

	_, err = encodeValue(make(chan int))
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	cases := map[string]kafka.Compression{
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
		"gzip":   kafka.Gzip,
		"":       kafka.Gzip,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseCompression(in), in)
	}
}

func TestBackoffWithJitter(t *testing.T) {
	lo, hi := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 8; attempt++ {
		d := backoffWithJitter(lo, hi, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, hi)
	}

	d := backoffWithJitter(0, 0, 1)
	assert.Greater(t, d, 25*time.Millisecond-1)
	assert.LessOrEqual(t, d, 50*time.Millisecond)
}
