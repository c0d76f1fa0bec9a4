package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/queue"
)

// Store is what fan-out and the HTTP handler need from persistence.
type Store interface {
	CreateMany(ctx context.Context, list []models.Notification) error
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	Approvers(ctx context.Context, groupID *uuid.UUID) ([]uuid.UUID, error)
	IsActiveUser(ctx context.Context, id uuid.UUID) (bool, error)
}

// Recipients resolves who receives a notice. A direct recipient wins; otherwise
// the admins and the directors of the group. The excluded user never receives it.
func Recipients(ctx context.Context, store Store, p queue.NotificationPayload) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if p.RecipientID != nil {
		ok, err := store.IsActiveUser(ctx, *p.RecipientID)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = []uuid.UUID{*p.RecipientID}
		}
	} else {
		var err error
		if ids, err = store.Approvers(ctx, p.GroupID); err != nil {
			return nil, err
		}
	}
	out := ids[:0]
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] || (p.ExcludeUserID != nil && id == *p.ExcludeUserID) {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// FanOut stores one notification per recipient of p and returns how many were written.
func FanOut(ctx context.Context, store Store, p queue.NotificationPayload) (int, error) {
	ids, err := Recipients(ctx, store, p)
	if err != nil {
		return 0, fmt.Errorf("resolve recipients: %w", err)
	}
	list := make([]models.Notification, 0, len(ids))
	for _, id := range ids {
		list = append(list, models.Notification{UserID: id, Type: p.Type, Title: p.Title, Message: p.Message, Link: p.Link})
	}
	if err := store.CreateMany(ctx, list); err != nil {
		return 0, err
	}
	return len(list), nil
}

// Enqueuer schedules notification jobs.
type Enqueuer interface {
	EnqueueNotification(ctx context.Context, p queue.NotificationPayload) error
}

// QueueNotifier delivers lifecycle notices through the job queue.
type QueueNotifier struct {
	q      Enqueuer
	logger *zap.Logger
}

// NewQueueNotifier creates a notifier backed by the job queue.
func NewQueueNotifier(q Enqueuer, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueNotifier{q: q, logger: logger}
}

// Notify implements lifecycle.Notifier.
func (n *QueueNotifier) Notify(ctx context.Context, notice lifecycle.Notice) error {
	p := queue.NotificationPayload{
		Type:          notice.Type,
		EventID:       notice.EventID,
		GroupID:       notice.GroupID,
		RecipientID:   notice.RecipientID,
		ExcludeUserID: notice.ExcludeUserID,
		Title:         notice.Title,
		Message:       notice.Message,
		Link:          notice.Link,
	}
	if err := n.q.EnqueueNotification(ctx, p); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	n.logger.Debug("notice queued", zap.String("type", notice.Type), zap.String("event_id", notice.EventID.String()))
	return nil
}
