package models

import (
	"time"

	"github.com/google/uuid"
)

// InviterGroup is the organizational unit quotas are enforced against.
type InviterGroup struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Inviter is a staff member who sponsors invitees.
type Inviter struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	InviterGroupID uuid.UUID `json:"inviter_group_id"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Category tags invitees (VIP, press, ...).
type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Invitee is a contact who may be invited to events.
type Invitee struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	SecondaryPhone string     `json:"secondary_phone,omitempty"`
	Title          string     `json:"title,omitempty"`
	Company        string     `json:"company,omitempty"`
	Position       string     `json:"position,omitempty"`
	PlusOne        int        `json:"plus_one"`
	CategoryID     *uuid.UUID `json:"category_id,omitempty"`
	InviterID      *uuid.UUID `json:"inviter_id,omitempty"`
	InviterGroupID uuid.UUID  `json:"inviter_group_id"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// GroupSummary is an inviter group with its headcounts.
type GroupSummary struct {
	*InviterGroup
	Members  int `json:"members"`
	Inviters int `json:"inviters"`
	Invitees int `json:"invitees"`
}
