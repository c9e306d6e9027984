package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"WalletScore/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type runRequest struct {
	Reason string `json:"reason"`
}

func TestParsePayload(t *testing.T) {
	want := runRequest{Reason: "api"}

	got, err := ParsePayload[runRequest](json.RawMessage(`{"reason":"api"}`))
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	got, err = ParsePayload[runRequest]([]byte(`{"reason":"api"}`))
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	got, err = ParsePayload[runRequest](map[string]interface{}{"reason": "api"})
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	got, err = ParsePayload[runRequest](want)
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	ptr := &want
	got, err = ParsePayload[runRequest](ptr)
	require.NoError(t, err)
	assert.Same(t, ptr, got)

	got, err = ParsePayload[runRequest](nil)
	require.NoError(t, err)
	assert.Equal(t, runRequest{}, *got)

	got, err = ParsePayload[runRequest](json.RawMessage("null"))
	require.NoError(t, err)
	assert.Equal(t, runRequest{}, *got)

	_, err = ParsePayload[runRequest](json.RawMessage(`{"reason":`))
	assert.Error(t, err)

	_, err = ParsePayload[runRequest](42)
	assert.Error(t, err)
}

type recordingJob struct {
	mu       sync.Mutex
	typ      string
	err      error
	payloads []runRequest
}

func (j *recordingJob) Name() string { return "recording-" + j.typ }
func (j *recordingJob) Type() string { return j.typ }

func (j *recordingJob) Handle(_ context.Context, payload interface{}) error {
	req, err := ParsePayload[runRequest](payload)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.payloads = append(j.payloads, *req)
	return j.err
}

func (j *recordingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.payloads)
}

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := ctr.Terminate(ctx); err != nil {
			t.Logf("terminate redis: %v", err)
		}
	})

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisQueueProcessesAndDeadLetters(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	q := NewRedisQueue(logger.NewNop(), Config{Workers: 2, RetryLimit: 0}, client, WithKeyPrefix("test:queue"))
	ok := &recordingJob{typ: "score.run"}
	failing := &recordingJob{typ: "always.fails", err: errors.New("nope")}
	q.RegisterJob(ok)
	q.RegisterJob(failing)

	require.NoError(t, q.Start(ctx))
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		assert.NoError(t, q.Stop(stopCtx))
	}()

	require.NoError(t, q.PublishMessage(ctx, "score.run", runRequest{Reason: "api"}))
	require.NoError(t, q.PublishMessage(ctx, "always.fails", runRequest{Reason: "x"}))
	require.NoError(t, q.PublishMessage(ctx, "unknown", runRequest{}))

	assert.Eventually(t, func() bool { return ok.count() == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "api", ok.payloads[0].Reason)

	assert.Eventually(t, func() bool {
		n, err := client.LLen(ctx, "test:queue:dlq").Result()
		return err == nil && n == 2
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, failing.count())
}
