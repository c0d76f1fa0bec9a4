package lifecycle

import (
	"fmt"

	"github.com/aura-events/backend/internal/models"
)

// Action is a state-changing operation on an association.
type Action string

const (
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionCancelApproval Action = "cancel_approval"
	ActionResubmit       Action = "resubmit"
)

type transition struct {
	from []models.InviteeStatus
	to   models.InviteeStatus
	// reason is the per-item failure text when from does not match.
	reason string
}

var transitions = map[Action]transition{
	ActionApprove: {
		from:   []models.InviteeStatus{models.StatusWaitingForApproval, models.StatusResubmitted},
		to:     models.StatusApproved,
		reason: "is not pending approval",
	},
	ActionReject: {
		from:   []models.InviteeStatus{models.StatusWaitingForApproval, models.StatusResubmitted},
		to:     models.StatusRejected,
		reason: "is not pending approval",
	},
	ActionCancelApproval: {
		from:   []models.InviteeStatus{models.StatusApproved},
		to:     models.StatusRejected,
		reason: "is not approved",
	},
	ActionResubmit: {
		from:   []models.InviteeStatus{models.StatusRejected},
		to:     models.StatusResubmitted,
		reason: "is not rejected",
	},
}

// Next returns the status reached by applying a to from.
func Next(from models.InviteeStatus, a Action) (models.InviteeStatus, error) {
	t, ok := transitions[a]
	if !ok {
		return "", fmt.Errorf("unknown action %q: %w", a, ErrInvalidTransition)
	}
	for _, s := range t.from {
		if s == from {
			return t.to, nil
		}
	}
	return "", fmt.Errorf("%s: %w", t.reason, ErrInvalidTransition)
}

func transitionReason(a Action) string {
	return transitions[a].reason
}
