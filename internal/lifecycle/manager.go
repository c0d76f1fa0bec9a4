package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
)

// Notice is a notification request. When RecipientID is nil the notice goes to the
// directors of GroupID and to admins.
type Notice struct {
	Type          string     `json:"type"`
	EventID       uuid.UUID  `json:"event_id"`
	GroupID       *uuid.UUID `json:"group_id,omitempty"`
	RecipientID   *uuid.UUID `json:"recipient_id,omitempty"`
	ExcludeUserID *uuid.UUID `json:"exclude_user_id,omitempty"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Link          string     `json:"link,omitempty"`
}

// Notifier delivers notices, usually through the job queue.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Auditor records audit entries.
type Auditor interface {
	Record(ctx context.Context, entry models.AuditLog) error
}

// Publisher pushes live updates for an event to dashboard subscribers.
type Publisher interface {
	PublishEventUpdate(eventID uuid.UUID, event string, payload interface{})
}

// Live update event names.
const (
	UpdateCheckIn      = "check_in"
	UpdateUndoCheckIn  = "undo_check_in"
	UpdateStatsChanged = "stats_changed"
)

// Manager governs the invitee lifecycle of events: submission under quota, the
// approval workflow, and attendance tracking.
type Manager struct {
	store     Store
	notifier  Notifier
	auditor   Auditor
	publisher Publisher
	now       func() time.Time
	newCode   func(prefix string) (string, error)
	logger    *zap.Logger
}

// NewManager creates a lifecycle manager backed by store.
func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		now:     time.Now,
		newCode: GenerateCode,
		logger:  logger,
	}
}

// SetNotifier sets where lifecycle notices are sent.
func (m *Manager) SetNotifier(n Notifier) { m.notifier = n }

// SetAuditor sets the audit log writer.
func (m *Manager) SetAuditor(a Auditor) { m.auditor = a }

// SetPublisher sets the live dashboard publisher.
func (m *Manager) SetPublisher(p Publisher) { m.publisher = p }

// SetClock overrides the time source.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Now returns the manager's current time.
func (m *Manager) Now() time.Time { return m.now() }

func (m *Manager) notify(ctx context.Context, n Notice) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, n); err != nil {
		m.logger.Warn("notify failed", zap.Error(err), zap.String("type", n.Type), zap.String("event_id", n.EventID.String()))
	}
}

func (m *Manager) audit(ctx context.Context, actor models.Actor, action string, recordID *uuid.UUID, oldValue, newValue string) {
	if m.auditor == nil {
		return
	}
	entry := models.AuditLog{
		Action:    action,
		TableName: "event_invitees",
		RecordID:  recordID,
		OldValue:  oldValue,
		NewValue:  newValue,
		IPAddress: actor.IP,
	}
	if actor.UserID != uuid.Nil {
		uid := actor.UserID
		entry.UserID = &uid
	}
	if err := m.auditor.Record(ctx, entry); err != nil {
		m.logger.Warn("audit failed", zap.Error(err), zap.String("action", action))
	}
}

func (m *Manager) publish(eventID uuid.UUID, event string, payload interface{}) {
	if m.publisher == nil {
		return
	}
	m.publisher.PublishEventUpdate(eventID, event, payload)
}

func actorRef(actor models.Actor) *uuid.UUID {
	if actor.UserID == uuid.Nil {
		return nil
	}
	id := actor.UserID
	return &id
}
