package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
)

const resubmittedAfterRejection = "Resubmitted after rejection"

// SubmitForApproval submits existing contacts to an event. Each contact lands in exactly one
// outcome bucket; only store failures abort the batch. Quotas are read and consumed under
// row locks in the same transaction as the inserts, so concurrent submitters of one group
// cannot overrun its quota.
func (m *Manager) SubmitForApproval(ctx context.Context, eventID uuid.UUID, contactIDs []uuid.UUID, notes string, actor models.Actor) (*BatchResult, error) {
	if len(contactIDs) == 0 {
		return nil, ErrNoItems
	}
	if actor.Role == models.RoleCheckInAttendant {
		return nil, ErrForbidden
	}

	var (
		result  *BatchResult
		created map[uuid.UUID]int
	)
	err := m.store.WithinTx(ctx, func(tx Store) error {
		result = &BatchResult{}
		created = make(map[uuid.UUID]int)

		ev, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !ev.CanAddInvitees(m.now()) {
			return ErrEventClosed
		}

		invitees, reasons, groupIDs, err := m.resolveContacts(ctx, tx, ev, contactIDs, actor)
		if err != nil {
			return err
		}
		remaining, err := lockRemaining(ctx, tx, eventID, groupIDs)
		if err != nil {
			return err
		}

		for i, contactID := range contactIDs {
			inv := invitees[i]
			if inv == nil {
				result.add(ItemResult{ID: contactID, Outcome: OutcomeFailed, Reason: reasons[i]})
				continue
			}
			item, err := m.submitOne(ctx, tx, ev, inv, notes, actor, remaining[inv.InviterGroupID])
			if err != nil {
				return err
			}
			if item.Outcome == OutcomeSuccessful {
				if r := remaining[inv.InviterGroupID]; r != nil {
					*r--
				}
				created[inv.InviterGroupID]++
			}
			result.add(item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for groupID, n := range created {
		gid := groupID
		m.notify(ctx, Notice{
			Type:          models.NotificationInvitationSubmitted,
			EventID:       eventID,
			GroupID:       &gid,
			ExcludeUserID: actorRef(actor),
			Title:         "Invitations Submitted",
			Message:       fmt.Sprintf("%d invitation(s) are waiting for approval.", n),
			Link:          "/approvals",
		})
	}
	for _, it := range result.Items {
		if it.Outcome == OutcomeSuccessful {
			m.audit(ctx, actor, "submit_invitation", it.AssociationID, "", "Submitted for approval")
		}
	}
	if result.Count(OutcomeSuccessful) > 0 {
		m.publish(eventID, UpdateStatsChanged, nil)
	}
	m.logger.Info("invitees submitted",
		zap.String("event_id", eventID.String()),
		zap.Int("requested", len(contactIDs)),
		zap.Int("successful", result.Count(OutcomeSuccessful)),
		zap.Int("quota_exceeded", result.Count(OutcomeQuotaExceeded)))
	return result, nil
}

// resolveContacts loads each contact and returns it, or a failure reason at the same index.
func (m *Manager) resolveContacts(ctx context.Context, tx Store, ev *models.Event, contactIDs []uuid.UUID, actor models.Actor) ([]*models.Invitee, []string, []uuid.UUID, error) {
	invitees := make([]*models.Invitee, len(contactIDs))
	reasons := make([]string, len(contactIDs))
	assigned := make(map[uuid.UUID]bool)
	var groupIDs []uuid.UUID

	for i, id := range contactIDs {
		inv, err := tx.GetInvitee(ctx, id)
		if errors.Is(err, ErrNotFound) {
			reasons[i] = "Invitee not found"
			continue
		}
		if err != nil {
			return nil, nil, nil, err
		}
		if !actor.IsAdmin() && !actor.InGroup(inv.InviterGroupID) {
			reasons[i] = fmt.Sprintf("%s is not in your group", inv.Name)
			continue
		}
		ok, seen := assigned[inv.InviterGroupID]
		if !seen {
			ok = ev.IsAllGroups
			if !ok {
				ok, err = tx.IsGroupAssigned(ctx, ev.ID, inv.InviterGroupID)
				if err != nil {
					return nil, nil, nil, err
				}
			}
			assigned[inv.InviterGroupID] = ok
			if ok {
				groupIDs = append(groupIDs, inv.InviterGroupID)
			}
		}
		if !ok {
			reasons[i] = "Event not assigned to this invitee's group"
			continue
		}
		invitees[i] = inv
	}
	return invitees, reasons, groupIDs, nil
}

// lockRemaining locks each group's quota in id order and returns the remaining
// headroom, nil for unlimited groups.
func lockRemaining(ctx context.Context, tx Store, eventID uuid.UUID, groupIDs []uuid.UUID) (map[uuid.UUID]*int, error) {
	sort.Slice(groupIDs, func(i, j int) bool { return groupIDs[i].String() < groupIDs[j].String() })
	remaining := make(map[uuid.UUID]*int, len(groupIDs))
	for _, gid := range groupIDs {
		quota, err := tx.LockGroupQuota(ctx, eventID, gid)
		if err != nil {
			return nil, fmt.Errorf("lock quota: %w", err)
		}
		if quota == nil {
			remaining[gid] = nil
			continue
		}
		used, err := tx.CountQuotaUsage(ctx, eventID, gid)
		if err != nil {
			return nil, fmt.Errorf("count quota usage: %w", err)
		}
		r := *quota - used
		remaining[gid] = &r
	}
	return remaining, nil
}

func (m *Manager) submitOne(ctx context.Context, tx Store, ev *models.Event, inv *models.Invitee, notes string, actor models.Actor, remaining *int) (ItemResult, error) {
	item := ItemResult{ID: inv.ID}

	if remaining != nil && *remaining <= 0 {
		item.Outcome = OutcomeQuotaExceeded
		item.Reason = "Inviter group quota exceeded"
		return item, nil
	}

	dup, err := tx.FindCrossGroupDuplicate(ctx, ev.ID, inv)
	if err != nil {
		return item, err
	}
	if dup != nil {
		item.Outcome = OutcomeCrossGroupDuplicate
		item.Reason = duplicateReason(dup)
		item.AssociationID = &dup.AssociationID
		return item, nil
	}

	now := m.now()
	existing, err := tx.GetAssociationFor(ctx, ev.ID, inv.ID)
	switch {
	case err == nil && existing.Status != models.StatusRejected:
		item.Outcome = OutcomeAlreadyInvited
		item.Reason = fmt.Sprintf("%s is already invited (%s)", inv.Name, existing.Status)
		item.AssociationID = &existing.ID
		return item, nil
	case err == nil:
		next, err := Next(existing.Status, ActionResubmit)
		if err != nil {
			return item, err
		}
		existing.Status = next
		existing.StatusDate = now
		existing.Notes = notes
		if existing.Notes == "" {
			existing.Notes = resubmittedAfterRejection
		}
		existing.ApprovedBy = nil
		existing.ApproverRole = ""
		existing.ApprovalNotes = ""
		existing.SubmittedBy = actorRef(actor)
		existing.PlusOne = inv.PlusOne
		if err := tx.UpdateAssociation(ctx, existing); err != nil {
			return item, fmt.Errorf("resubmit association: %w", err)
		}
		item.AssociationID = &existing.ID
	case errors.Is(err, ErrNotFound):
		ei := &models.EventInvitee{
			ID:          uuid.New(),
			EventID:     ev.ID,
			InviteeID:   inv.ID,
			InviterID:   inv.InviterID,
			SubmittedBy: actorRef(actor),
			Status:      models.StatusWaitingForApproval,
			StatusDate:  now,
			PlusOne:     inv.PlusOne,
			Notes:       notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err := tx.CreateAssociation(ctx, ei)
		if errors.Is(err, ErrAlreadyInvited) {
			// A concurrent submission inserted the same pair first.
			item.Outcome = OutcomeAlreadyInvited
			item.Reason = fmt.Sprintf("%s is already invited", inv.Name)
			return item, nil
		}
		if err != nil {
			return item, fmt.Errorf("create association: %w", err)
		}
		item.AssociationID = &ei.ID
	default:
		return item, err
	}
	item.Outcome = OutcomeSuccessful
	return item, nil
}

// CheckQuota returns a group's quota usage for an event.
func (m *Manager) CheckQuota(ctx context.Context, eventID, groupID uuid.UUID) (models.GroupQuota, error) {
	var gq models.GroupQuota
	err := m.store.WithinTx(ctx, func(tx Store) error {
		if _, err := tx.GetEvent(ctx, eventID); err != nil {
			return err
		}
		quota, err := tx.LockGroupQuota(ctx, eventID, groupID)
		if err != nil {
			return err
		}
		used, err := tx.CountQuotaUsage(ctx, eventID, groupID)
		if err != nil {
			return err
		}
		gq = models.NewGroupQuota(eventID, groupID, quota, used)
		return nil
	})
	return gq, err
}
