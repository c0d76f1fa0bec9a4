package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/attendance"
	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/notifications"
	"github.com/aura-events/backend/pkg/queue"
	"github.com/aura-events/backend/pkg/storage"
)

const dequeueTimeout = 5 * time.Second

// Jobs is the queue the worker consumes.
type Jobs interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EventLookup loads events.
type EventLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Files stores finished exports and hands out download links.
type Files interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64) error
	GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	ExportsBucket() string
	PresignExpire() time.Duration
}

// Processor runs notification fan-out and attendee export jobs.
type Processor struct {
	jobs    Jobs
	notes   notifications.Store
	events  EventLookup
	mgr     *lifecycle.Manager
	files   Files
	now     func() time.Time
	backoff time.Duration
	logger  *zap.Logger
}

// NewProcessor creates a job processor. files may be nil when S3 is not configured;
// export jobs then fail and end up in the DLQ.
func NewProcessor(jobs Jobs, notes notifications.Store, events EventLookup, mgr *lifecycle.Manager, files Files, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{jobs: jobs, notes: notes, events: events, mgr: mgr, files: files, now: time.Now, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeNotification:
		var payload queue.NotificationPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		n, err := notifications.FanOut(ctx, p.notes, payload)
		if err != nil {
			return err
		}
		p.logger.Debug("notification delivered", zap.String("type", payload.Type), zap.Int("recipients", n))
		return nil
	case queue.JobTypeExport:
		var payload queue.ExportPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.export(ctx, payload)
	}
	return fmt.Errorf("unknown job type: %s", job.Type)
}

func (p *Processor) export(ctx context.Context, payload queue.ExportPayload) error {
	if p.files == nil {
		return fmt.Errorf("export storage not configured")
	}
	e, err := p.events.GetByID(ctx, payload.EventID)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}
	stats, err := p.mgr.Stats(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	list, err := p.mgr.ListAttendees(ctx, e.ID, lifecycle.AttendeeFilter{
		InviterGroupID: payload.GroupID,
		Confirmed:      payload.Confirmed,
		Search:         payload.Search,
	})
	if err != nil {
		return fmt.Errorf("list attendees: %w", err)
	}

	var buf bytes.Buffer
	if err := attendance.WriteWorkbook(&buf, e, stats, list); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	at := p.now()
	key := storage.ExportKey(e.ID.String(), at)
	bucket := p.files.ExportsBucket()
	if err := p.files.Upload(ctx, bucket, key, storage.ContentTypeXLSX, bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	url, err := p.files.GeneratePresignedDownloadURL(ctx, bucket, key, p.files.PresignExpire())
	if err != nil {
		return fmt.Errorf("presign: %w", err)
	}

	note := models.Notification{
		UserID:  payload.RequestedBy,
		Type:    models.NotificationExportReady,
		Title:   "Attendee export ready",
		Message: fmt.Sprintf("%s (%d attendees) is ready to download.", attendance.ExportFilename(e, at), len(list)),
		Link:    url,
	}
	if err := p.notes.CreateMany(ctx, []models.Notification{note}); err != nil {
		return fmt.Errorf("notify requester: %w", err)
	}
	p.logger.Info("attendee export uploaded", zap.String("event_id", e.ID.String()), zap.String("s3_key", key), zap.Int("rows", len(list)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := p.jobs.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, p.backoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
