package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleAdmin            Role = "admin"
	RoleDirector         Role = "director"
	RoleOrganizer        Role = "organizer"
	RoleCheckInAttendant Role = "check_in_attendant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDirector, RoleOrganizer, RoleCheckInAttendant:
		return true
	}
	return false
}

// User represents a platform user. Directors and organizers belong to one inviter group.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	Password       string     `json:"-"`
	FullName       string     `json:"full_name"`
	Role           Role       `json:"role"`
	InviterGroupID *uuid.UUID `json:"inviter_group_id,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	FullName       string     `json:"full_name"`
	Role           Role       `json:"role"`
	InviterGroupID *uuid.UUID `json:"inviter_group_id,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		Role:           u.Role,
		InviterGroupID: u.InviterGroupID,
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
	}
}

// Actor is the authenticated caller of a domain operation.
type Actor struct {
	UserID  uuid.UUID
	Role    Role
	GroupID *uuid.UUID
	IP      string
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// InGroup reports whether the actor belongs to groupID.
func (a Actor) InGroup(groupID uuid.UUID) bool {
	return a.GroupID != nil && *a.GroupID == groupID
}
