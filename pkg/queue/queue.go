package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueNotifications is the Redis list key for notification fan-out jobs.
	QueueNotifications = "worker:notifications"
	// QueueExports is the Redis list key for attendee export jobs.
	QueueExports = "worker:exports"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeNotification JobType = "notification"
	JobTypeExport       JobType = "export"
)

// NotificationPayload asks the worker to fan a notice out to its recipients.
// With no RecipientID the notice goes to the directors of GroupID and to admins.
type NotificationPayload struct {
	Type          string     `json:"type"`
	EventID       uuid.UUID  `json:"event_id"`
	GroupID       *uuid.UUID `json:"group_id,omitempty"`
	RecipientID   *uuid.UUID `json:"recipient_id,omitempty"`
	ExcludeUserID *uuid.UUID `json:"exclude_user_id,omitempty"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Link          string     `json:"link,omitempty"`
}

// ExportPayload asks the worker to build an attendee workbook and upload it.
// GroupID limits the rows to one inviter group.
type ExportPayload struct {
	EventID     uuid.UUID  `json:"event_id"`
	RequestedBy uuid.UUID  `json:"requested_by"`
	GroupID     *uuid.UUID `json:"group_id,omitempty"`
	Confirmed   string     `json:"confirmed,omitempty"`
	Search      string     `json:"search,omitempty"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// KeyFor returns the list a job type is pushed to.
func KeyFor(t JobType) (string, error) {
	switch t {
	case JobTypeNotification:
		return QueueNotifications, nil
	case JobTypeExport:
		return QueueExports, nil
	}
	return "", fmt.Errorf("unknown job type %q", t)
}

// NewJob wraps payload in a job envelope.
func NewJob(t JobType, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		CreatedAt: time.Now(),
	}, nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

func (q *Queue) enqueue(ctx context.Context, t JobType, payload interface{}) (*Job, error) {
	key, err := KeyFor(t)
	if err != nil {
		return nil, err
	}
	job, err := NewJob(t, payload)
	if err != nil {
		return nil, err
	}
	if err := q.push(ctx, key, job); err != nil {
		return nil, err
	}
	return job, nil
}

// EnqueueNotification enqueues a notification fan-out job.
func (q *Queue) EnqueueNotification(ctx context.Context, payload NotificationPayload) error {
	job, err := q.enqueue(ctx, JobTypeNotification, payload)
	if err != nil {
		return err
	}
	q.logger.Debug("enqueued notification job", zap.String("job_id", job.ID), zap.String("type", payload.Type))
	return nil
}

// EnqueueExport enqueues an attendee export job.
func (q *Queue) EnqueueExport(ctx context.Context, payload ExportPayload) (string, error) {
	job, err := q.enqueue(ctx, JobTypeExport, payload)
	if err != nil {
		return "", err
	}
	q.logger.Debug("enqueued export job", zap.String("job_id", job.ID), zap.String("event_id", payload.EventID.String()))
	return job.ID, nil
}

// Dequeue blocks until a job is available on any work queue or ctx is done.
// Returns the job and the list it came from; a nil job with nil error means nothing usable was read.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueNotifications, QueueExports).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, QueueDLQ, job); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt))
		return nil
	}
	key, err := KeyFor(job.Type)
	if err != nil {
		return q.push(ctx, QueueDLQ, job)
	}
	if err := q.push(ctx, key, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
