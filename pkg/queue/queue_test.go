package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFor(t *testing.T) {
	k, err := KeyFor(JobTypeNotification)
	require.NoError(t, err)
	assert.Equal(t, QueueNotifications, k)
	k, err = KeyFor(JobTypeExport)
	require.NoError(t, err)
	assert.Equal(t, QueueExports, k)
	_, err = KeyFor("recording_upload")
	assert.Error(t, err)
}

func TestNewJob(t *testing.T) {
	ev := uuid.New()
	job, err := NewJob(JobTypeExport, ExportPayload{EventID: ev, Confirmed: "yes"})
	require.NoError(t, err)
	assert.Equal(t, 0, job.Attempt)
	assert.NotEmpty(t, job.ID)

	var p ExportPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, ev, p.EventID)
}

// Runs against a real Redis when TEST_REDIS_ADDR is set.
func TestRetryMovesToDLQ(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	defer client.Close()
	require.NoError(t, client.FlushDB(ctx).Err())

	q := NewQueue(client, nil)
	require.NoError(t, q.EnqueueNotification(ctx, NotificationPayload{Type: "invitation_approved", EventID: uuid.New()}))

	job, key, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, QueueNotifications, key)

	for i := 0; i < MaxRetries-1; i++ {
		require.NoError(t, q.Retry(ctx, job))
		job, _, err = q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, job)
	}
	require.NoError(t, q.Retry(ctx, job))
	n, err := client.LLen(ctx, QueueDLQ).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
