package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
)

// GenerateCodes assigns a unique attendance code to every approved association of the
// event that has none. Items that exhaust their attempts fail individually.
func (m *Manager) GenerateCodes(ctx context.Context, eventID uuid.UUID, prefix string, actor models.Actor) (*BatchResult, error) {
	var result *BatchResult
	err := m.store.WithinTx(ctx, func(tx Store) error {
		result = &BatchResult{}
		if _, err := tx.GetEvent(ctx, eventID); err != nil {
			return err
		}
		pending, err := tx.ListApprovedWithoutCode(ctx, eventID)
		if err != nil {
			return err
		}
		issued := make(map[string]bool, len(pending))
		for _, ei := range pending {
			code, err := m.uniqueCode(ctx, tx, prefix, issued)
			if err != nil {
				return err
			}
			if code == "" {
				result.fail(ei.ID, fmt.Sprintf("Failed for invitee %s: could not generate a unique code", ei.ID))
				continue
			}
			issued[code] = true
			ei.AttendanceCode = &code
			if err := tx.UpdateAssociation(ctx, ei); err != nil {
				return fmt.Errorf("store code: %w", err)
			}
			id := ei.ID
			result.add(ItemResult{ID: id, Outcome: OutcomeSuccessful, AssociationID: &id, Code: code})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	generated := result.Count(OutcomeSuccessful)
	m.audit(ctx, actor, "generate_attendance_codes", &eventID, "", fmt.Sprintf("Generated %d codes", generated))
	if generated > 0 {
		m.publish(eventID, UpdateStatsChanged, nil)
	}
	m.logger.Info("attendance codes generated", zap.String("event_id", eventID.String()), zap.Int("generated", generated))
	return result, nil
}

// uniqueCode returns "" when every attempt collided.
func (m *Manager) uniqueCode(ctx context.Context, tx Store, prefix string, issued map[string]bool) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := m.newCode(prefix)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		code = NormalizeCode(code)
		if issued[code] {
			continue
		}
		exists, err := tx.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", nil
}

// bulkUpdate loads each association under lock, lets apply mutate it, and stores it
// unless apply returned a failure reason.
func (m *Manager) bulkUpdate(ctx context.Context, ids []uuid.UUID, apply func(ei *models.EventInvitee) (warning, failure string)) (*BatchResult, error) {
	if len(ids) == 0 {
		return nil, ErrNoItems
	}
	var (
		result *BatchResult
		events map[uuid.UUID]bool
	)
	err := m.store.WithinTx(ctx, func(tx Store) error {
		result = &BatchResult{}
		events = make(map[uuid.UUID]bool)
		for _, id := range ids {
			ei, err := tx.GetAssociation(ctx, id)
			if errors.Is(err, ErrNotFound) {
				result.fail(id, fmt.Sprintf("Event invitee %s not found", id))
				continue
			}
			if err != nil {
				return err
			}
			warning, failure := apply(ei)
			if failure != "" {
				result.fail(id, failure)
				continue
			}
			ei.UpdatedAt = m.now()
			if err := tx.UpdateAssociation(ctx, ei); err != nil {
				return fmt.Errorf("update association: %w", err)
			}
			result.ok(id, warning)
			events[ei.EventID] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for eventID := range events {
		m.publish(eventID, UpdateStatsChanged, nil)
	}
	return result, nil
}

// MarkInvitationsSent records delivery of invitations. Associations without a code are
// still marked, with a warning.
func (m *Manager) MarkInvitationsSent(ctx context.Context, ids []uuid.UUID, method models.InvitationMethod, actor models.Actor) (*BatchResult, error) {
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}
	now := m.now()
	result, err := m.bulkUpdate(ctx, ids, func(ei *models.EventInvitee) (string, string) {
		if ei.Status != models.StatusApproved {
			return "", fmt.Sprintf("Event invitee %s is not approved", ei.ID)
		}
		var warning string
		if ei.AttendanceCode == nil {
			warning = fmt.Sprintf("Event invitee %s has no attendance code yet", ei.ID)
		}
		mth := method
		ei.InvitationSent = true
		ei.InvitationSentAt = &now
		ei.InvitationMethod = &mth
		return warning, ""
	})
	if err != nil {
		return nil, err
	}
	m.audit(ctx, actor, "mark_invitations_sent", nil, "", fmt.Sprintf("Marked %d invitations as sent via %s", result.Count(OutcomeSuccessful), method))
	return result, nil
}

// UndoInvitationsSent clears the sent flag and method.
func (m *Manager) UndoInvitationsSent(ctx context.Context, ids []uuid.UUID, actor models.Actor) (*BatchResult, error) {
	result, err := m.bulkUpdate(ctx, ids, func(ei *models.EventInvitee) (string, string) {
		var warning string
		if !ei.InvitationSent {
			warning = fmt.Sprintf("Event invitee %s was not marked as sent", ei.ID)
		}
		ei.InvitationSent = false
		ei.InvitationSentAt = nil
		ei.InvitationMethod = nil
		return warning, ""
	})
	if err != nil {
		return nil, err
	}
	m.audit(ctx, actor, "undo_mark_invitations_sent", nil, "", fmt.Sprintf("Unmarked %d invitations", result.Count(OutcomeSuccessful)))
	return result, nil
}

// ConfirmAttendance records whether invitees are coming. guests is clamped to the
// plus-one allowance and ignored when not coming. A checked-in guest cannot be marked
// as not coming.
func (m *Manager) ConfirmAttendance(ctx context.Context, ids []uuid.UUID, isComing bool, guests *int, actor models.Actor) (*BatchResult, error) {
	now := m.now()
	result, err := m.bulkUpdate(ctx, ids, func(ei *models.EventInvitee) (string, string) {
		if ei.Status != models.StatusApproved {
			return "", fmt.Sprintf("Event invitee %s is not approved", ei.ID)
		}
		if !isComing && ei.CheckedIn {
			return "", fmt.Sprintf("Event invitee %s is already checked in", ei.ID)
		}
		var warning string
		if !ei.InvitationSent {
			warning = fmt.Sprintf("Event invitee %s has not been marked as sent", ei.ID)
		}
		coming := isComing
		ei.AttendanceConfirmed = &coming
		ei.ConfirmedAt = &now
		ei.ConfirmedGuests = 0
		if isComing && guests != nil {
			ei.ConfirmedGuests = clampGuests(*guests, ei.PlusOne)
		}
		return warning, ""
	})
	if err != nil {
		return nil, err
	}
	m.audit(ctx, actor, "confirm_attendance", nil, "", fmt.Sprintf("Confirmed %d invitees (coming=%t)", result.Count(OutcomeSuccessful), isComing))
	return result, nil
}

// ResetConfirmation returns confirmations to pending. Resetting a checked-in guest is
// allowed but warned about.
func (m *Manager) ResetConfirmation(ctx context.Context, ids []uuid.UUID, actor models.Actor) (*BatchResult, error) {
	result, err := m.bulkUpdate(ctx, ids, func(ei *models.EventInvitee) (string, string) {
		var warning string
		if ei.CheckedIn {
			warning = fmt.Sprintf("Event invitee %s is already checked in", ei.ID)
		}
		ei.AttendanceConfirmed = nil
		ei.ConfirmedGuests = 0
		ei.ConfirmedAt = nil
		return warning, ""
	})
	if err != nil {
		return nil, err
	}
	m.audit(ctx, actor, "reset_confirmation", nil, "", fmt.Sprintf("Reset %d confirmations", result.Count(OutcomeSuccessful)))
	return result, nil
}

// CheckInRequest identifies an attendee by code or association id. EventID, when set,
// restricts the lookup to one event.
type CheckInRequest struct {
	EventID       *uuid.UUID
	Code          string
	AssociationID *uuid.UUID
	Guests        int
	Notes         string
}

// CheckIn marks an approved attendee as arrived.
func (m *Manager) CheckIn(ctx context.Context, req CheckInRequest, actor models.Actor) (*models.EventInvitee, error) {
	code := NormalizeCode(req.Code)
	if code == "" && req.AssociationID == nil {
		return nil, ErrCodeRequired
	}
	var out *models.EventInvitee
	err := m.store.WithinTx(ctx, func(tx Store) error {
		var (
			ei  *models.EventInvitee
			err error
		)
		if req.AssociationID != nil {
			ei, err = tx.GetAssociation(ctx, *req.AssociationID)
		} else {
			ei, err = tx.GetAssociationByCode(ctx, code)
		}
		if err != nil {
			return err
		}
		if req.EventID != nil && ei.EventID != *req.EventID {
			return ErrNotFound
		}
		if ei.Status != models.StatusApproved {
			return ErrNotApproved
		}
		if ei.CheckedIn {
			out = ei
			return ErrAlreadyCheckedIn
		}
		if ei.AttendanceConfirmed != nil && !*ei.AttendanceConfirmed {
			return ErrMarkedNotComing
		}
		now := m.now()
		ei.CheckedIn = true
		ei.CheckedInAt = &now
		ei.CheckedInBy = actorRef(actor)
		ei.ActualGuests = clampGuests(req.Guests, ei.PlusOne)
		ei.CheckInNotes = strings.TrimSpace(req.Notes)
		ei.UpdatedAt = now
		if err := tx.UpdateAssociation(ctx, ei); err != nil {
			return fmt.Errorf("update association: %w", err)
		}
		out = ei
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyCheckedIn) {
			return out, err
		}
		return nil, err
	}

	m.audit(ctx, actor, "check_in_attendee", &out.ID, "", fmt.Sprintf("Checked in with %d guests", out.ActualGuests))
	m.publish(out.EventID, UpdateCheckIn, map[string]interface{}{
		"event_invitee_id": out.ID,
		"guests":           out.ActualGuests,
		"checked_in_at":    out.CheckedInAt,
	})
	return out, nil
}

// UndoCheckIn clears a check-in. It has no precondition: undoing an attendee who is not
// checked in is a no-op that still succeeds. Confirmation is left untouched.
func (m *Manager) UndoCheckIn(ctx context.Context, id uuid.UUID, eventID *uuid.UUID, actor models.Actor) (*models.EventInvitee, error) {
	var out *models.EventInvitee
	err := m.store.WithinTx(ctx, func(tx Store) error {
		ei, err := tx.GetAssociation(ctx, id)
		if err != nil {
			return err
		}
		if eventID != nil && ei.EventID != *eventID {
			return ErrNotFound
		}
		ei.CheckedIn = false
		ei.CheckedInAt = nil
		ei.CheckedInBy = nil
		ei.ActualGuests = 0
		ei.CheckInNotes = ""
		ei.UpdatedAt = m.now()
		if err := tx.UpdateAssociation(ctx, ei); err != nil {
			return fmt.Errorf("update association: %w", err)
		}
		out = ei
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.audit(ctx, actor, "undo_check_in", &out.ID, "", "")
	m.publish(out.EventID, UpdateUndoCheckIn, map[string]interface{}{"event_invitee_id": out.ID})
	return out, nil
}

func clampGuests(n, plusOne int) int {
	if n < 0 {
		return 0
	}
	if n > plusOne {
		return plusOne
	}
	return n
}

// Stats returns the attendance statistics of an event.
func (m *Manager) Stats(ctx context.Context, eventID uuid.UUID) (models.AttendanceStats, error) {
	s, err := m.store.CountAttendance(ctx, eventID)
	if err != nil {
		return s, err
	}
	return FinishStats(s), nil
}

// FinishStats fills the derived totals and rates from the raw counts.
func FinishStats(s models.AttendanceStats) models.AttendanceStats {
	s.NotCheckedIn = s.TotalApproved - s.CheckedIn
	s.ExpectedTotal = s.TotalApproved + s.TotalPlusOneAllowed
	s.ActualTotal = s.CheckedIn + s.TotalActualGuests
	s.ConfirmationRate = 0
	s.AttendanceRate = 0
	if s.TotalApproved > 0 {
		s.ConfirmationRate = round1(float64(s.ConfirmedComing+s.ConfirmedNotComing) / float64(s.TotalApproved) * 100)
	}
	if s.ConfirmedComing > 0 {
		s.AttendanceRate = round1(float64(s.CheckedIn) / float64(s.ConfirmedComing) * 100)
	}
	return s
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// ListAttendees returns an event's approved attendees.
func (m *Manager) ListAttendees(ctx context.Context, eventID uuid.UUID, f AttendeeFilter) ([]models.Attendee, error) {
	approved := models.StatusApproved
	f.Status = &approved
	return m.store.ListAttendees(ctx, &eventID, f)
}

// RecentCheckIns returns the latest check-ins of an event, newest first.
func (m *Manager) RecentCheckIns(ctx context.Context, eventID uuid.UUID, limit int) ([]models.RecentCheckIn, error) {
	if limit <= 0 {
		limit = 5
	}
	return m.store.RecentCheckIns(ctx, eventID, limit)
}

// PortalAttendee is the public-safe view returned to invitees by the portal.
type PortalAttendee struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	Company             string    `json:"company,omitempty"`
	Position            string    `json:"position,omitempty"`
	PlusOne             int       `json:"plus_one"`
	EventID             uuid.UUID `json:"event_id"`
	EventName           string    `json:"event_name"`
	EventVenue          string    `json:"event_venue,omitempty"`
	EventDate           time.Time `json:"event_date"`
	EventEndDate        time.Time `json:"event_end_date"`
	AttendanceCode      string    `json:"attendance_code,omitempty"`
	AttendanceConfirmed *bool     `json:"attendance_confirmed"`
	ConfirmedGuests     int       `json:"confirmed_guests"`
	CheckedIn           bool      `json:"checked_in"`
}

// VerifyCode resolves an attendance code for the invitee portal and records the access.
func (m *Manager) VerifyCode(ctx context.Context, code string) (*PortalAttendee, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrCodeRequired
	}
	return m.portalAccess(ctx, func(tx Store) (*models.EventInvitee, error) {
		return tx.GetAssociationByCode(ctx, code)
	}, nil)
}

// VerifyPhone finds an approved invitation by the last ten digits of a phone number.
// Without eventID the nearest event that has not ended is used.
func (m *Manager) VerifyPhone(ctx context.Context, phone string, eventID *uuid.UUID) (*PortalAttendee, error) {
	digits := PhoneDigits(phone)
	if len(digits) == 0 {
		return nil, ErrCodeRequired
	}
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return m.portalAccess(ctx, func(tx Store) (*models.EventInvitee, error) {
		return tx.FindApprovedByPhone(ctx, digits, eventID, m.now())
	}, nil)
}

// PortalConfirm lets an invitee answer their own invitation by attendance code. It follows
// the ConfirmAttendance rules for a single approved association.
func (m *Manager) PortalConfirm(ctx context.Context, code string, isComing bool, guests *int) (*PortalAttendee, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrCodeRequired
	}
	var old string
	out, err := m.portalAccess(ctx, func(tx Store) (*models.EventInvitee, error) {
		return tx.GetAssociationByCode(ctx, code)
	}, func(ei *models.EventInvitee, now time.Time) error {
		if !isComing && ei.CheckedIn {
			return ErrAlreadyCheckedIn
		}
		old = confirmationState(ei.AttendanceConfirmed)
		coming := isComing
		ei.AttendanceConfirmed = &coming
		ei.ConfirmedAt = &now
		ei.ConfirmedGuests = 0
		if isComing && guests != nil {
			ei.ConfirmedGuests = clampGuests(*guests, ei.PlusOne)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.audit(ctx, models.Actor{}, "portal_confirm_attendance", &out.ID, old,
		fmt.Sprintf("coming=%t guests=%d", isComing, out.ConfirmedGuests))
	m.publish(out.EventID, UpdateStatsChanged, map[string]interface{}{"event_invitee_id": out.ID})
	return out, nil
}

func confirmationState(c *bool) string {
	if c == nil {
		return "pending"
	}
	return fmt.Sprintf("coming=%t", *c)
}

// portalAccess loads an approved association for the portal, applies change when given and
// stamps portal_accessed_at in the same transaction.
func (m *Manager) portalAccess(ctx context.Context, find func(tx Store) (*models.EventInvitee, error),
	change func(ei *models.EventInvitee, now time.Time) error) (*PortalAttendee, error) {
	var out *PortalAttendee
	err := m.store.WithinTx(ctx, func(tx Store) error {
		ei, err := find(tx)
		if err != nil {
			return err
		}
		if ei.Status != models.StatusApproved {
			return ErrNotApproved
		}
		inv, err := tx.GetInvitee(ctx, ei.InviteeID)
		if err != nil {
			return fmt.Errorf("load invitee: %w", err)
		}
		ev, err := tx.GetEvent(ctx, ei.EventID)
		if err != nil {
			return fmt.Errorf("load event: %w", err)
		}
		now := m.now()
		if change != nil {
			if err := change(ei, now); err != nil {
				return err
			}
		}
		ei.PortalAccessedAt = &now
		if err := tx.UpdateAssociation(ctx, ei); err != nil {
			return fmt.Errorf("record portal access: %w", err)
		}
		out = &PortalAttendee{
			ID:                  ei.ID,
			Name:                inv.Name,
			Company:             inv.Company,
			Position:            inv.Position,
			PlusOne:             ei.PlusOne,
			EventID:             ev.ID,
			EventName:           ev.Name,
			EventVenue:          ev.Venue,
			EventDate:           ev.StartDate,
			EventEndDate:        ev.EndDate,
			AttendanceConfirmed: ei.AttendanceConfirmed,
			ConfirmedGuests:     ei.ConfirmedGuests,
			CheckedIn:           ei.CheckedIn,
		}
		if ei.AttendanceCode != nil {
			out.AttendanceCode = *ei.AttendanceCode
		}
		return nil
	})
	return out, err
}

// PhoneDigits strips formatting from a phone number, keeping digits only.
func PhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
