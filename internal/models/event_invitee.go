package models

import (
	"time"

	"github.com/google/uuid"
)

// InviteeStatus is the approval state of an event association.
type InviteeStatus string

const (
	StatusWaitingForApproval InviteeStatus = "waiting_for_approval"
	StatusResubmitted        InviteeStatus = "resubmitted"
	StatusApproved           InviteeStatus = "approved"
	StatusRejected           InviteeStatus = "rejected"
)

// IsPending reports whether the association awaits a director decision.
func (s InviteeStatus) IsPending() bool {
	return s == StatusWaitingForApproval || s == StatusResubmitted
}

// ConsumesQuota reports whether the association counts against its group's quota.
func (s InviteeStatus) ConsumesQuota() bool {
	return s.IsPending() || s == StatusApproved
}

// InvitationMethod is how an invitation was delivered.
type InvitationMethod string

const (
	MethodPhysical InvitationMethod = "physical"
	MethodEmail    InvitationMethod = "email"
	MethodWhatsApp InvitationMethod = "whatsapp"
	MethodSMS      InvitationMethod = "sms"
)

// Valid reports whether m is a known delivery method.
func (m InvitationMethod) Valid() bool {
	switch m {
	case MethodPhysical, MethodEmail, MethodWhatsApp, MethodSMS:
		return true
	}
	return false
}

// EventInvitee links one invitee to one event and carries its approval and attendance state.
type EventInvitee struct {
	ID          uuid.UUID     `json:"id"`
	EventID     uuid.UUID     `json:"event_id"`
	InviteeID   uuid.UUID     `json:"invitee_id"`
	InviterID   *uuid.UUID    `json:"inviter_id,omitempty"`
	SubmittedBy *uuid.UUID    `json:"submitted_by,omitempty"`
	Status      InviteeStatus `json:"status"`
	StatusDate  time.Time     `json:"status_date"`
	PlusOne     int           `json:"plus_one"`

	Notes         string     `json:"notes,omitempty"`
	ApprovalNotes string     `json:"approval_notes,omitempty"`
	ApprovedBy    *uuid.UUID `json:"approved_by,omitempty"`
	ApproverRole  Role       `json:"approver_role,omitempty"`

	InvitationSent   bool              `json:"invitation_sent"`
	InvitationSentAt *time.Time        `json:"invitation_sent_at,omitempty"`
	InvitationMethod *InvitationMethod `json:"invitation_method,omitempty"`

	AttendanceCode      *string    `json:"attendance_code,omitempty"`
	AttendanceConfirmed *bool      `json:"attendance_confirmed"`
	ConfirmedGuests     int        `json:"confirmed_guests"`
	ConfirmedAt         *time.Time `json:"confirmed_at,omitempty"`

	CheckedIn    bool       `json:"checked_in"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CheckedInBy  *uuid.UUID `json:"checked_in_by,omitempty"`
	ActualGuests int        `json:"actual_guests"`
	CheckInNotes string     `json:"check_in_notes,omitempty"`

	PortalAccessedAt *time.Time `json:"portal_accessed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined fields, populated by list queries.
	Invitee *Invitee `json:"invitee,omitempty"`
}

// Attendee is the flattened row used by attendance lists, exports and the check-in console.
type Attendee struct {
	EventInvitee
	InviteeName    string    `json:"invitee_name"`
	InviteeEmail   string    `json:"invitee_email,omitempty"`
	InviteePhone   string    `json:"invitee_phone,omitempty"`
	Company        string    `json:"company,omitempty"`
	Position       string    `json:"position,omitempty"`
	InviterName    string    `json:"inviter_name,omitempty"`
	GroupName      string    `json:"group_name,omitempty"`
	CategoryName   string    `json:"category_name,omitempty"`
	InviterGroupID uuid.UUID `json:"inviter_group_id"`
}

// RecentCheckIn is the public-safe shape shown on the live dashboard.
type RecentCheckIn struct {
	Name        string     `json:"name"`
	Company     string     `json:"company,omitempty"`
	Guests      int        `json:"guests"`
	CheckedInAt *time.Time `json:"checked_in_at"`
}

// AttendanceStats aggregates the attendance state of an event's approved invitees.
type AttendanceStats struct {
	TotalApproved        int     `json:"total_approved"`
	CodesGenerated       int     `json:"codes_generated"`
	InvitationsSent      int     `json:"invitations_sent"`
	ConfirmedComing      int     `json:"confirmed_coming"`
	ConfirmedNotComing   int     `json:"confirmed_not_coming"`
	NotResponded         int     `json:"not_responded"`
	CheckedIn            int     `json:"checked_in"`
	NotCheckedIn         int     `json:"not_checked_in"`
	TotalPlusOneAllowed  int     `json:"total_plus_one_allowed"`
	TotalConfirmedGuests int     `json:"total_confirmed_guests"`
	TotalActualGuests    int     `json:"total_actual_guests"`
	ExpectedTotal        int     `json:"expected_total"`
	ActualTotal          int     `json:"actual_total"`
	ConfirmationRate     float64 `json:"confirmation_rate"`
	AttendanceRate       float64 `json:"attendance_rate"`
}
