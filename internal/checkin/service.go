package checkin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/models"
)

var (
	ErrInvalidPin    = errors.New("invalid or inactive PIN")
	ErrStaleSession  = errors.New("PIN verification required")
	ErrPinInactive   = errors.New("PIN has been deactivated")
	ErrCheckinClosed = errors.New("check-in is not available for this event")
	ErrInvalidHours  = errors.New("auto-deactivate hours must be positive")
	ErrCodeExhausted = errors.New("could not generate a unique event code")
)

const maxEventCodeTries = 100

// Store persists the check-in fields of events. Lookups return lifecycle.ErrNotFound
// when the event does not exist.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetByCode(ctx context.Context, code string) (*models.Event, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	// SavePin stores a new active PIN, bumps the PIN version and sets the event code
	// when the event has none.
	SavePin(ctx context.Context, id uuid.UUID, pin, code string) (*models.Event, error)
	SetPinActive(ctx context.Context, id uuid.UUID, active bool) (*models.Event, error)
	SetPinAutoDeactivate(ctx context.Context, id uuid.UUID, hours *int) (*models.Event, error)
	ListActivePinEvents(ctx context.Context) ([]models.Event, error)
	// DeactivatePin clears the active flag only if the PIN is still at version.
	DeactivatePin(ctx context.Context, id uuid.UUID, version int) (bool, error)
}

// PinState is the admin view of an event's check-in PIN.
type PinState struct {
	EventID             uuid.UUID `json:"event_id"`
	EventCode           string    `json:"event_code,omitempty"`
	Pin                 string    `json:"pin,omitempty"`
	HasPin              bool      `json:"has_pin"`
	Active              bool      `json:"active"`
	StoredActive        bool      `json:"stored_active"`
	AutoDeactivateHours *int      `json:"auto_deactivate_hours"`
	CheckinAllowed      bool      `json:"checkin_allowed"`
	Version             int       `json:"version"`
}

// Service manages check-in PINs and console sessions.
type Service struct {
	store   Store
	tokens  *ConsoleTokens
	auditor lifecycle.Auditor
	now     func() time.Time
	logger  *zap.Logger
}

// NewService creates a check-in service.
func NewService(store Store, tokens *ConsoleTokens, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, tokens: tokens, now: time.Now, logger: logger}
}

// SetAuditor sets the audit log writer.
func (s *Service) SetAuditor(a lifecycle.Auditor) { s.auditor = a }

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// State derives the PIN state of e at the current time.
func (s *Service) State(e *models.Event) PinState {
	now := s.now()
	st := PinState{
		EventID:             e.ID,
		HasPin:              e.CheckinPin != nil && *e.CheckinPin != "",
		Active:              PinActive(e, now),
		StoredActive:        e.CheckinPinActive,
		AutoDeactivateHours: e.CheckinPinAutoDeactivateHrs,
		CheckinAllowed:      CheckinAllowed(e, now),
		Version:             e.CheckinPinVersion,
	}
	if e.Code != nil {
		st.EventCode = *e.Code
	}
	if st.HasPin {
		st.Pin = *e.CheckinPin
	}
	return st
}

// Pin returns the PIN state of an event.
func (s *Service) Pin(ctx context.Context, eventID uuid.UUID) (PinState, error) {
	e, err := s.store.GetByID(ctx, eventID)
	if err != nil {
		return PinState{}, err
	}
	return s.State(e), nil
}

// GeneratePin issues a fresh PIN for the event. Console sessions opened with an older PIN
// stop working immediately.
func (s *Service) GeneratePin(ctx context.Context, eventID uuid.UUID, hours *int, actor models.Actor) (PinState, error) {
	if hours != nil && *hours <= 0 {
		return PinState{}, ErrInvalidHours
	}
	e, err := s.store.GetByID(ctx, eventID)
	if err != nil {
		return PinState{}, err
	}
	code := ""
	if e.Code == nil || *e.Code == "" {
		if code, err = s.uniqueEventCode(ctx, e.Name); err != nil {
			return PinState{}, err
		}
	}
	if hours != nil {
		if _, err := s.store.SetPinAutoDeactivate(ctx, eventID, hours); err != nil {
			return PinState{}, fmt.Errorf("set auto-deactivate: %w", err)
		}
	}
	pin, err := GeneratePin()
	if err != nil {
		return PinState{}, err
	}
	e, err = s.store.SavePin(ctx, eventID, pin, code)
	if err != nil {
		return PinState{}, fmt.Errorf("save pin: %w", err)
	}
	s.audit(ctx, actor, "generate_checkin_pin", e.ID, fmt.Sprintf("PIN version %d", e.CheckinPinVersion))
	s.logger.Info("check-in pin generated", zap.String("event_id", e.ID.String()), zap.Int("version", e.CheckinPinVersion))
	return s.State(e), nil
}

func (s *Service) uniqueEventCode(ctx context.Context, name string) (string, error) {
	for i := 0; i < maxEventCodeTries; i++ {
		code, err := NewEventCode(name)
		if err != nil {
			return "", err
		}
		exists, err := s.store.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// UniqueEventCode returns an event code not used by any event.
func (s *Service) UniqueEventCode(ctx context.Context, name string) (string, error) {
	return s.uniqueEventCode(ctx, name)
}

// TogglePin flips the stored active flag, or sets it to *active when given.
func (s *Service) TogglePin(ctx context.Context, eventID uuid.UUID, active *bool, actor models.Actor) (PinState, error) {
	e, err := s.store.GetByID(ctx, eventID)
	if err != nil {
		return PinState{}, err
	}
	if e.CheckinPin == nil {
		return PinState{}, ErrInvalidPin
	}
	want := !e.CheckinPinActive
	if active != nil {
		want = *active
	}
	e, err = s.store.SetPinActive(ctx, eventID, want)
	if err != nil {
		return PinState{}, fmt.Errorf("set pin active: %w", err)
	}
	action := "deactivate_checkin_pin"
	if want {
		action = "activate_checkin_pin"
	}
	s.audit(ctx, actor, action, e.ID, "")
	return s.State(e), nil
}

// UpdateSettings sets the hours after the event end at which the PIN stops working.
// Nil hours means the PIN stays active until turned off by hand.
func (s *Service) UpdateSettings(ctx context.Context, eventID uuid.UUID, hours *int, actor models.Actor) (PinState, error) {
	if hours != nil && *hours <= 0 {
		return PinState{}, ErrInvalidHours
	}
	e, err := s.store.SetPinAutoDeactivate(ctx, eventID, hours)
	if err != nil {
		return PinState{}, err
	}
	val := "manual"
	if hours != nil {
		val = fmt.Sprintf("%dh after end", *hours)
	}
	s.audit(ctx, actor, "update_checkin_settings", e.ID, "Auto-deactivate: "+val)
	return s.State(e), nil
}

// VerifyPin checks pin against the event's current PIN and returns a console token.
// Every attempt is audited with the caller's device.
func (s *Service) VerifyPin(ctx context.Context, eventCode, pin, device, ip string) (string, *models.Event, error) {
	e, err := s.store.GetByCode(ctx, eventCode)
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	actor := models.Actor{IP: ip}
	detail := fmt.Sprintf("Event: %s, Device: %s", e.Name, device)
	if !PinActive(e, now) || subtle.ConstantTimeCompare([]byte(*e.CheckinPin), []byte(pin)) != 1 {
		s.audit(ctx, actor, "checkin_portal_login_failed", e.ID, detail)
		return "", e, ErrInvalidPin
	}
	token, err := s.tokens.Issue(e.ID, e.CheckinPinVersion, now)
	if err != nil {
		return "", e, fmt.Errorf("issue console token: %w", err)
	}
	s.audit(ctx, actor, "checkin_portal_login", e.ID, detail)
	return token, e, nil
}

// Logout audits the end of a console session. Tokens are stateless, so the client
// discards its own copy.
func (s *Service) Logout(ctx context.Context, eventCode, token, device, ip string) error {
	e, err := s.store.GetByCode(ctx, eventCode)
	if err != nil {
		return err
	}
	claims, err := s.tokens.Parse(token, s.now())
	if err != nil || claims.EventID != e.ID {
		return nil
	}
	s.audit(ctx, models.Actor{IP: ip}, "checkin_portal_logout", e.ID, fmt.Sprintf("Event: %s, Device: %s", e.Name, device))
	return nil
}

// Authorize resolves the event of a console request and checks its session token.
func (s *Service) Authorize(ctx context.Context, eventCode, token string) (*models.Event, error) {
	e, err := s.store.GetByCode(ctx, eventCode)
	if err != nil {
		return nil, err
	}
	now := s.now()
	claims, err := s.tokens.Parse(token, now)
	if err != nil || claims.EventID != e.ID || claims.PinVersion != e.CheckinPinVersion {
		return e, ErrStaleSession
	}
	if !PinActive(e, now) {
		return e, ErrPinInactive
	}
	if !CheckinAllowed(e, now) {
		return e, ErrCheckinClosed
	}
	return e, nil
}

// Reconcile persists the deactivation of every PIN whose auto-deactivate window has
// passed, so stored and effective state agree. It returns how many were deactivated.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	events, err := s.store.ListActivePinEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active pins: %w", err)
	}
	now := s.now()
	n := 0
	for i := range events {
		e := &events[i]
		if !PinExpired(e, now) {
			continue
		}
		ok, err := s.store.DeactivatePin(ctx, e.ID, e.CheckinPinVersion)
		if err != nil {
			s.logger.Warn("deactivate expired pin", zap.Error(err), zap.String("event_id", e.ID.String()))
			continue
		}
		if !ok {
			continue
		}
		n++
		s.audit(ctx, models.Actor{}, "auto_deactivate_checkin_pin", e.ID,
			fmt.Sprintf("Expired %dh after event end", *e.CheckinPinAutoDeactivateHrs))
		s.logger.Info("check-in pin auto-deactivated", zap.String("event_id", e.ID.String()))
	}
	return n, nil
}

// RunReconciler calls Reconcile every interval until ctx is done.
func (s *Service) RunReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("pin reconciler started", zap.Duration("interval", interval))
	for {
		if _, err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("pin reconcile failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("pin reconciler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) audit(ctx context.Context, actor models.Actor, action string, eventID uuid.UUID, detail string) {
	if s.auditor == nil {
		return
	}
	entry := models.AuditLog{
		Action:    action,
		TableName: "events",
		RecordID:  &eventID,
		NewValue:  detail,
		IPAddress: actor.IP,
	}
	if actor.UserID != uuid.Nil {
		uid := actor.UserID
		entry.UserID = &uid
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		s.logger.Warn("audit failed", zap.Error(err), zap.String("action", action))
	}
}
