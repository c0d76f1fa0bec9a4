package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle status of an event.
type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventOngoing   EventStatus = "ongoing"
	EventEnded     EventStatus = "ended"
	EventCancelled EventStatus = "cancelled"
	EventOnHold    EventStatus = "on_hold"
)

// IsManual reports whether the status can only be set by hand.
func (s EventStatus) IsManual() bool {
	return s == EventCancelled || s == EventOnHold
}

// Event is an invitation event. Status is never stored; see Status.
type Event struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	Code         *string      `json:"code,omitempty"`
	Description  string       `json:"description,omitempty"`
	Venue        string       `json:"venue,omitempty"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	ManualStatus *EventStatus `json:"manual_status,omitempty"`
	IsAllGroups  bool         `json:"is_all_groups"`
	LogoKey      string       `json:"logo_key,omitempty"`

	CheckinPin                  *string `json:"-"`
	CheckinPinActive            bool    `json:"-"`
	CheckinPinAutoDeactivateHrs *int    `json:"checkin_pin_auto_deactivate_hours,omitempty"`
	CheckinPinVersion           int     `json:"-"`

	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Status computes the event status at now. A manual status always wins.
func (e *Event) Status(now time.Time) EventStatus {
	if e.ManualStatus != nil && e.ManualStatus.IsManual() {
		return *e.ManualStatus
	}
	switch {
	case now.Before(e.StartDate):
		return EventUpcoming
	case !now.After(e.EndDate):
		return EventOngoing
	default:
		return EventEnded
	}
}

// CanAddInvitees reports whether submissions are open at now.
func (e *Event) CanAddInvitees(now time.Time) bool {
	s := e.Status(now)
	return s == EventUpcoming || s == EventOngoing
}

// EventView is the API shape of an event with its computed status.
type EventView struct {
	*Event
	Status           EventStatus `json:"status"`
	CanAddInvitees   bool        `json:"can_add_invitees"`
	CheckinPinActive bool        `json:"checkin_pin_active"`
	HasCheckinPin    bool        `json:"has_checkin_pin"`
}

// EventGroupQuota assigns a group to an event. A nil Quota means unlimited.
type EventGroupQuota struct {
	EventID        uuid.UUID `json:"event_id"`
	InviterGroupID uuid.UUID `json:"inviter_group_id"`
	Quota          *int      `json:"quota"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GroupQuota is the derived usage of a group's quota for an event.
type GroupQuota struct {
	EventID        uuid.UUID `json:"event_id"`
	InviterGroupID uuid.UUID `json:"inviter_group_id"`
	Quota          *int      `json:"quota"`
	Used           int       `json:"used"`
	Remaining      *int      `json:"remaining"`
}

// NewGroupQuota derives remaining from quota and used. Remaining is clamped at zero.
func NewGroupQuota(eventID, groupID uuid.UUID, quota *int, used int) GroupQuota {
	gq := GroupQuota{EventID: eventID, InviterGroupID: groupID, Quota: quota, Used: used}
	if quota != nil {
		r := *quota - used
		if r < 0 {
			r = 0
		}
		gq.Remaining = &r
	}
	return gq
}
