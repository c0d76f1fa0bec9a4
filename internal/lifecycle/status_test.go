package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/models"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name    string
		from    models.InviteeStatus
		action  Action
		want    models.InviteeStatus
		wantErr bool
	}{
		{"approve waiting", models.StatusWaitingForApproval, ActionApprove, models.StatusApproved, false},
		{"approve resubmitted", models.StatusResubmitted, ActionApprove, models.StatusApproved, false},
		{"approve approved", models.StatusApproved, ActionApprove, "", true},
		{"approve rejected", models.StatusRejected, ActionApprove, "", true},
		{"reject waiting", models.StatusWaitingForApproval, ActionReject, models.StatusRejected, false},
		{"reject resubmitted", models.StatusResubmitted, ActionReject, models.StatusRejected, false},
		{"reject approved", models.StatusApproved, ActionReject, "", true},
		{"cancel approved", models.StatusApproved, ActionCancelApproval, models.StatusRejected, false},
		{"cancel waiting", models.StatusWaitingForApproval, ActionCancelApproval, "", true},
		{"resubmit rejected", models.StatusRejected, ActionResubmit, models.StatusResubmitted, false},
		{"resubmit approved", models.StatusApproved, ActionResubmit, "", true},
		{"unknown action", models.StatusApproved, Action("archive"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.from, tt.action)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusQuotaMembership(t *testing.T) {
	assert.True(t, models.StatusWaitingForApproval.ConsumesQuota())
	assert.True(t, models.StatusResubmitted.ConsumesQuota())
	assert.True(t, models.StatusApproved.ConsumesQuota())
	assert.False(t, models.StatusRejected.ConsumesQuota())
	assert.True(t, models.StatusResubmitted.IsPending())
	assert.False(t, models.StatusApproved.IsPending())
}
