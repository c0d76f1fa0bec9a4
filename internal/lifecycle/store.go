package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aura-events/backend/internal/models"
)

// Duplicate describes a pending or approved submission of the same person under another group.
type Duplicate struct {
	AssociationID uuid.UUID
	InviteeName   string
	InviterName   string
	GroupName     string
}

// AttendeeFilter narrows attendee lists. Nil fields do not filter.
type AttendeeFilter struct {
	Status         *models.InviteeStatus
	InviterGroupID *uuid.UUID
	HasCode        *bool
	InvitationSent *bool
	CheckedIn      *bool
	// Confirmed is "yes", "no" or "pending".
	Confirmed string
	Search    string
	Limit     int
}

// Store is the persistence used by Manager. Lookups return ErrNotFound when nothing matches.
// Inside WithinTx, GetAssociation and GetAssociationByCode lock the row and LockGroupQuota
// serializes concurrent submitters of the same group.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	IsGroupAssigned(ctx context.Context, eventID, groupID uuid.UUID) (bool, error)
	LockGroupQuota(ctx context.Context, eventID, groupID uuid.UUID) (*int, error)
	CountQuotaUsage(ctx context.Context, eventID, groupID uuid.UUID) (int, error)

	GetInvitee(ctx context.Context, id uuid.UUID) (*models.Invitee, error)
	FindCrossGroupDuplicate(ctx context.Context, eventID uuid.UUID, inv *models.Invitee) (*Duplicate, error)

	GetAssociation(ctx context.Context, id uuid.UUID) (*models.EventInvitee, error)
	GetAssociationFor(ctx context.Context, eventID, inviteeID uuid.UUID) (*models.EventInvitee, error)
	GetAssociationByCode(ctx context.Context, code string) (*models.EventInvitee, error)
	CreateAssociation(ctx context.Context, ei *models.EventInvitee) error
	UpdateAssociation(ctx context.Context, ei *models.EventInvitee) error
	ListApprovedWithoutCode(ctx context.Context, eventID uuid.UUID) ([]*models.EventInvitee, error)
	CodeExists(ctx context.Context, code string) (bool, error)

	ListAttendees(ctx context.Context, eventID *uuid.UUID, f AttendeeFilter) ([]models.Attendee, error)
	ListHistory(ctx context.Context, inviteeID uuid.UUID) ([]models.Attendee, error)
	CountAttendance(ctx context.Context, eventID uuid.UUID) (models.AttendanceStats, error)
	RecentCheckIns(ctx context.Context, eventID uuid.UUID, limit int) ([]models.RecentCheckIn, error)
	FindApprovedByPhone(ctx context.Context, phoneSuffix string, eventID *uuid.UUID, now time.Time) (*models.EventInvitee, error)
}
