package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification types.
const (
	NotificationInvitationSubmitted = "invitation_submitted"
	NotificationInvitationApproved  = "invitation_approved"
	NotificationInvitationRejected  = "invitation_rejected"
	NotificationInvitationCancelled = "invitation_cancelled"
	NotificationExportReady         = "export_ready"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
