package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
)

// Approve moves pending associations to approved.
func (m *Manager) Approve(ctx context.Context, ids []uuid.UUID, notes string, actor models.Actor) (*BatchResult, error) {
	return m.decide(ctx, ActionApprove, ids, notes, actor)
}

// Reject moves pending associations to rejected, releasing their quota.
func (m *Manager) Reject(ctx context.Context, ids []uuid.UUID, notes string, actor models.Actor) (*BatchResult, error) {
	return m.decide(ctx, ActionReject, ids, notes, actor)
}

// CancelApproval sends approved associations back to rejected. The reason is mandatory
// and becomes the approval notes.
func (m *Manager) CancelApproval(ctx context.Context, ids []uuid.UUID, reason string, actor models.Actor) (*BatchResult, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}
	return m.decide(ctx, ActionCancelApproval, ids, strings.TrimSpace(reason), actor)
}

type decided struct {
	ei      *models.EventInvitee
	groupID uuid.UUID
}

func (m *Manager) decide(ctx context.Context, action Action, ids []uuid.UUID, notes string, actor models.Actor) (*BatchResult, error) {
	if len(ids) == 0 {
		return nil, ErrNoItems
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleDirector {
		return nil, ErrForbidden
	}

	var (
		result *BatchResult
		done   []decided
	)
	err := m.store.WithinTx(ctx, func(tx Store) error {
		result = &BatchResult{}
		done = nil
		for _, id := range ids {
			ei, err := tx.GetAssociation(ctx, id)
			if errors.Is(err, ErrNotFound) {
				result.fail(id, fmt.Sprintf("Event invitee %s not found", id))
				continue
			}
			if err != nil {
				return err
			}
			next, err := Next(ei.Status, action)
			if err != nil {
				result.fail(id, fmt.Sprintf("Event invitee %s %s", id, transitionReason(action)))
				continue
			}
			inv, err := tx.GetInvitee(ctx, ei.InviteeID)
			if err != nil {
				return fmt.Errorf("load invitee: %w", err)
			}
			if !actor.IsAdmin() && !actor.InGroup(inv.InviterGroupID) {
				result.fail(id, fmt.Sprintf("No permission to %s invitation %s - not in your group", verb(action), id))
				continue
			}

			ei.Status = next
			ei.StatusDate = m.now()
			ei.ApprovedBy = actorRef(actor)
			ei.ApproverRole = actor.Role
			ei.ApprovalNotes = notes
			if err := tx.UpdateAssociation(ctx, ei); err != nil {
				return fmt.Errorf("update association: %w", err)
			}
			result.ok(id, "")
			done = append(done, decided{ei: ei, groupID: inv.InviterGroupID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events := make(map[uuid.UUID]bool)
	for _, d := range done {
		m.afterDecision(ctx, action, d.ei, notes, actor)
		events[d.ei.EventID] = true
	}
	for eventID := range events {
		m.publish(eventID, UpdateStatsChanged, nil)
	}
	m.logger.Info("invitations decided",
		zap.String("action", string(action)),
		zap.Int("success_count", result.Count(OutcomeSuccessful)),
		zap.Int("failed_count", result.Failures()))
	return result, nil
}

func (m *Manager) afterDecision(ctx context.Context, action Action, ei *models.EventInvitee, notes string, actor models.Actor) {
	var (
		kind, title, msg, oldValue, newValue string
	)
	switch action {
	case ActionApprove:
		kind, title = models.NotificationInvitationApproved, "Invitation Approved"
		msg = "An invitation you submitted was approved."
		newValue = "Status: approved"
	case ActionReject:
		kind, title = models.NotificationInvitationRejected, "Invitation Rejected"
		msg = "An invitation you submitted was rejected."
		newValue = "Status: rejected"
	case ActionCancelApproval:
		kind, title = models.NotificationInvitationCancelled, "Approval Cancelled"
		msg = "An approved invitation was cancelled."
		oldValue = "Status: approved"
		newValue = "Status: rejected"
	}
	if notes != "" {
		msg += " Notes: " + notes
		newValue += " - " + notes
	}
	m.audit(ctx, actor, string(action)+"_invitation", &ei.ID, oldValue, newValue)
	if ei.SubmittedBy != nil {
		m.notify(ctx, Notice{
			Type:          kind,
			EventID:       ei.EventID,
			RecipientID:   ei.SubmittedBy,
			ExcludeUserID: actorRef(actor),
			Title:         title,
			Message:       msg,
			Link:          "/invitees",
		})
	}
}

func verb(a Action) string {
	if a == ActionCancelApproval {
		return "cancel approval for"
	}
	return string(a)
}

// Resubmit sends a rejected association back for approval. The group's quota is
// re-checked because rejection released the slot.
func (m *Manager) Resubmit(ctx context.Context, id uuid.UUID, notes string, actor models.Actor) (*models.EventInvitee, error) {
	var (
		out     *models.EventInvitee
		groupID uuid.UUID
	)
	err := m.store.WithinTx(ctx, func(tx Store) error {
		ei, err := tx.GetAssociation(ctx, id)
		if err != nil {
			return err
		}
		inv, err := tx.GetInvitee(ctx, ei.InviteeID)
		if err != nil {
			return fmt.Errorf("load invitee: %w", err)
		}
		if !actor.IsAdmin() && !actor.InGroup(inv.InviterGroupID) {
			return ErrForbidden
		}
		next, err := Next(ei.Status, ActionResubmit)
		if err != nil {
			return err
		}
		dup, err := tx.FindCrossGroupDuplicate(ctx, ei.EventID, inv)
		if err != nil {
			return fmt.Errorf("cross-group check: %w", err)
		}
		if dup != nil {
			return &DuplicateError{Dup: dup}
		}
		remaining, err := lockRemaining(ctx, tx, ei.EventID, []uuid.UUID{inv.InviterGroupID})
		if err != nil {
			return err
		}
		if r := remaining[inv.InviterGroupID]; r != nil && *r <= 0 {
			return ErrQuotaExceeded
		}

		ei.Status = next
		ei.StatusDate = m.now()
		ei.Notes = strings.TrimSpace(notes)
		if ei.Notes == "" {
			ei.Notes = resubmittedAfterRejection
		}
		ei.ApprovedBy = nil
		ei.ApproverRole = ""
		ei.ApprovalNotes = ""
		ei.SubmittedBy = actorRef(actor)
		if err := tx.UpdateAssociation(ctx, ei); err != nil {
			return fmt.Errorf("update association: %w", err)
		}
		out = ei
		groupID = inv.InviterGroupID
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.audit(ctx, actor, "resubmit_invitation", &out.ID, "Status: rejected", "Status: resubmitted - "+out.Notes)
	m.notify(ctx, Notice{
		Type:          models.NotificationInvitationSubmitted,
		EventID:       out.EventID,
		GroupID:       &groupID,
		ExcludeUserID: actorRef(actor),
		Title:         "Invitation Resubmitted",
		Message:       "A rejected invitation was resubmitted: " + out.Notes,
		Link:          "/approvals",
	})
	m.publish(out.EventID, UpdateStatsChanged, nil)
	return out, nil
}

// ListPending returns associations awaiting approval. Directors only see their own group.
func (m *Manager) ListPending(ctx context.Context, eventID *uuid.UUID, actor models.Actor) ([]models.Attendee, error) {
	waiting, err := m.listByStatus(ctx, eventID, models.StatusWaitingForApproval, actor)
	if err != nil {
		return nil, err
	}
	resubmitted, err := m.listByStatus(ctx, eventID, models.StatusResubmitted, actor)
	if err != nil {
		return nil, err
	}
	return append(waiting, resubmitted...), nil
}

// ListApproved returns approved associations, scoped like ListPending.
func (m *Manager) ListApproved(ctx context.Context, eventID *uuid.UUID, actor models.Actor) ([]models.Attendee, error) {
	return m.listByStatus(ctx, eventID, models.StatusApproved, actor)
}

func (m *Manager) listByStatus(ctx context.Context, eventID *uuid.UUID, status models.InviteeStatus, actor models.Actor) ([]models.Attendee, error) {
	f := AttendeeFilter{Status: &status}
	if !actor.IsAdmin() {
		if actor.GroupID == nil {
			return []models.Attendee{}, nil
		}
		f.InviterGroupID = actor.GroupID
	}
	return m.store.ListAttendees(ctx, eventID, f)
}

// History returns every association of an invitee, newest status first.
func (m *Manager) History(ctx context.Context, inviteeID uuid.UUID) ([]models.Attendee, error) {
	return m.store.ListHistory(ctx, inviteeID)
}
