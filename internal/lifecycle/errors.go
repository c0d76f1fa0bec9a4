package lifecycle

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("insufficient permissions")
	ErrNoItems           = errors.New("no items specified")
	ErrEventClosed       = errors.New("event is not accepting invitees")
	ErrQuotaExceeded     = errors.New("inviter group quota exceeded")
	ErrReasonRequired    = errors.New("a reason is required")
	ErrInvalidMethod     = errors.New("invalid invitation method")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotApproved       = errors.New("invitation not approved")
	ErrAlreadyCheckedIn  = errors.New("already checked in")
	ErrMarkedNotComing   = errors.New("invitee confirmed as not coming")
	ErrCodeRequired      = errors.New("attendance code or attendee id required")

	ErrCrossGroupDuplicate = errors.New("invitee already invited by another group")
	ErrAlreadyInvited      = errors.New("invitee already has an invitation for this event")
)

// DuplicateError reports the association that blocks a submission under another group.
// It matches ErrCrossGroupDuplicate with errors.Is.
type DuplicateError struct {
	Dup *Duplicate
}

func (e *DuplicateError) Error() string { return duplicateReason(e.Dup) }

func (e *DuplicateError) Is(target error) bool { return target == ErrCrossGroupDuplicate }

func duplicateReason(d *Duplicate) string {
	return fmt.Sprintf("Already invited by %q from %q", d.InviterName, d.GroupName)
}

// HTTPStatus maps a lifecycle error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrCrossGroupDuplicate),
		errors.Is(err, ErrAlreadyInvited),
		errors.Is(err, ErrAlreadyCheckedIn), errors.Is(err, ErrMarkedNotComing):
		return http.StatusConflict
	case errors.Is(err, ErrNoItems), errors.Is(err, ErrEventClosed), errors.Is(err, ErrReasonRequired),
		errors.Is(err, ErrInvalidMethod), errors.Is(err, ErrNotApproved), errors.Is(err, ErrCodeRequired):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
