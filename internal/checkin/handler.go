package checkin

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/response"
)

const (
	contextEvent      = "checkin_event"
	searchLimit       = 20
	recentLimit       = 10
	minSearchQueryLen = 2
)

// Handler serves the PIN-protected check-in console and the admin PIN routes.
type Handler struct {
	svc    *Service
	mgr    *lifecycle.Manager
	logger *zap.Logger
}

// NewHandler creates a check-in handler.
func NewHandler(svc *Service, mgr *lifecycle.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, mgr: mgr, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		response.NotFound(c, "event not found")
	case errors.Is(err, ErrInvalidPin):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, ErrInvalidHours):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("check-in pin", zap.Error(err))
		response.Internal(c, "internal error")
	}
}

// ConsoleAuth guards console routes: the bearer token must match the event's current PIN
// version and the PIN must be effectively active (401), and check-in must be open (403).
func (h *Handler) ConsoleAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := middleware.BearerToken(c)
		e, err := h.svc.Authorize(c.Request.Context(), c.Param("code"), token)
		switch {
		case err == nil:
			c.Set(contextEvent, e)
			c.Next()
			return
		case errors.Is(err, lifecycle.ErrNotFound):
			response.NotFound(c, "event not found")
		case errors.Is(err, ErrStaleSession), errors.Is(err, ErrPinInactive):
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error(), "requires_pin": true})
		case errors.Is(err, ErrCheckinClosed):
			response.Forbidden(c, err.Error())
		default:
			h.logger.Error("console auth", zap.Error(err))
			response.Internal(c, "internal error")
		}
		c.Abort()
	}
}

func consoleEvent(c *gin.Context) *models.Event {
	return c.MustGet(contextEvent).(*models.Event)
}

func consoleActor(c *gin.Context) models.Actor {
	return models.Actor{Role: models.RoleCheckInAttendant, IP: c.ClientIP()}
}

// Info handles GET /checkin/:code/info (public).
func (h *Handler) Info(c *gin.Context) {
	e, err := h.svc.store.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	now := h.svc.now()
	verified := false
	if token, ok := middleware.BearerToken(c); ok {
		_, authErr := h.svc.Authorize(c.Request.Context(), c.Param("code"), token)
		verified = authErr == nil
	}
	response.OK(c, gin.H{
		"event": gin.H{
			"id":                e.ID,
			"name":              e.Name,
			"code":              e.Code,
			"venue":             e.Venue,
			"status":            e.Status(now),
			"start_date":        e.StartDate,
			"end_date":          e.EndDate,
			"checkin_available": PinActive(e, now) && CheckinAllowed(e, now),
		},
		"is_verified": verified,
	})
}

// VerifyPinRequest is the body for POST /checkin/:code/verify-pin.
type VerifyPinRequest struct {
	Pin string `json:"pin" binding:"required"`
}

// VerifyPin handles POST /checkin/:code/verify-pin.
func (h *Handler) VerifyPin(c *gin.Context) {
	var req VerifyPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "PIN is required")
		return
	}
	token, _, err := h.svc.VerifyPin(c.Request.Context(), c.Param("code"), strings.TrimSpace(req.Pin),
		DeviceInfo(c.GetHeader("User-Agent")), c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"token": token})
}

// Logout handles POST /checkin/:code/logout.
func (h *Handler) Logout(c *gin.Context) {
	token, _ := middleware.BearerToken(c)
	if err := h.svc.Logout(c.Request.Context(), c.Param("code"), token, DeviceInfo(c.GetHeader("User-Agent")), c.ClientIP()); err != nil &&
		!errors.Is(err, lifecycle.ErrNotFound) {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"logged_out": true})
}

// Stats handles GET /checkin/:code/stats.
func (h *Handler) Stats(c *gin.Context) {
	e := consoleEvent(c)
	stats, err := h.mgr.Stats(c.Request.Context(), e.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	now := h.svc.now()
	response.OK(c, gin.H{
		"event": models.EventView{Event: e, Status: e.Status(now), CanAddInvitees: e.CanAddInvitees(now),
			CheckinPinActive: PinActive(e, now), HasCheckinPin: e.CheckinPin != nil},
		"stats": stats,
	})
}

// Attendees handles GET /checkin/:code/attendees.
func (h *Handler) Attendees(c *gin.Context) {
	list, err := h.mgr.ListAttendees(c.Request.Context(), consoleEvent(c).ID, lifecycle.AttendeeFilter{})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"attendees": list, "total": len(list)})
}

// Search handles GET /checkin/:code/search?q=. Phone matches rank first, then codes.
func (h *Handler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if len([]rune(q)) < minSearchQueryLen {
		response.BadRequest(c, "search query must be at least 2 characters")
		return
	}
	list, err := h.mgr.ListAttendees(c.Request.Context(), consoleEvent(c).ID, lifecycle.AttendeeFilter{Search: q})
	if err != nil {
		h.fail(c, err)
		return
	}
	RankSearch(list, q)
	if len(list) > searchLimit {
		list = list[:searchLimit]
	}
	response.OK(c, gin.H{"results": list, "total": len(list)})
}

// RankSearch orders attendees so phone matches come first, then attendance code matches.
func RankSearch(list []models.Attendee, q string) {
	term := strings.ToLower(q)
	rank := func(a models.Attendee) int {
		switch {
		case strings.Contains(strings.ToLower(a.InviteePhone), term):
			return 1
		case a.AttendanceCode != nil && strings.Contains(strings.ToLower(*a.AttendanceCode), term):
			return 2
		}
		return 3
	}
	sort.SliceStable(list, func(i, j int) bool { return rank(list[i]) < rank(list[j]) })
}

// ConsoleCheckInRequest is the body for POST /checkin/:code/check-in.
type ConsoleCheckInRequest struct {
	EventInviteeID uuid.UUID `json:"event_invitee_id" binding:"required"`
	ActualGuests   int       `json:"actual_guests"`
	Notes          string    `json:"notes"`
}

// CheckIn handles POST /checkin/:code/check-in.
func (h *Handler) CheckIn(c *gin.Context) {
	var req ConsoleCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "event_invitee_id is required")
		return
	}
	e := consoleEvent(c)
	ei, err := h.mgr.CheckIn(c.Request.Context(), lifecycle.CheckInRequest{
		EventID:       &e.ID,
		AssociationID: &req.EventInviteeID,
		Guests:        req.ActualGuests,
		Notes:         req.Notes,
	}, consoleActor(c))
	if errors.Is(err, lifecycle.ErrAlreadyCheckedIn) {
		c.JSON(http.StatusConflict, gin.H{
			"success":            false,
			"error":              "already checked in",
			"already_checked_in": true,
			"checked_in_at":      ei.CheckedInAt,
		})
		return
	}
	if err != nil {
		response.Fail(c, lifecycle.HTTPStatus(err), err.Error())
		return
	}
	response.OK(c, ei)
}

// UndoCheckIn handles POST /checkin/:code/undo-check-in/:id.
func (h *Handler) UndoCheckIn(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attendee id")
		return
	}
	e := consoleEvent(c)
	ei, err := h.mgr.UndoCheckIn(c.Request.Context(), id, &e.ID, consoleActor(c))
	if err != nil {
		response.Fail(c, lifecycle.HTTPStatus(err), err.Error())
		return
	}
	response.OK(c, ei)
}

// Recent handles GET /checkin/:code/recent-checkins: the last ten check-ins with details.
func (h *Handler) Recent(c *gin.Context) {
	checkedIn := true
	list, err := h.mgr.ListAttendees(c.Request.Context(), consoleEvent(c).ID, lifecycle.AttendeeFilter{CheckedIn: &checkedIn})
	if err != nil {
		h.fail(c, err)
		return
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].CheckedInAt, list[j].CheckedInAt
		return a != nil && (b == nil || a.After(*b))
	})
	if len(list) > recentLimit {
		list = list[:recentLimit]
	}
	response.OK(c, gin.H{"recent_checkins": list})
}

func eventParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

// GetPin handles GET /events/:id/checkin-pin (admin).
func (h *Handler) GetPin(c *gin.Context) {
	id, ok := eventParam(c)
	if !ok {
		return
	}
	st, err := h.svc.Pin(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, st)
}

// PinSettingsRequest carries the auto-deactivate window in hours; null means manual.
type PinSettingsRequest struct {
	AutoDeactivateHours *int `json:"auto_deactivate_hours"`
}

// GeneratePin handles POST /events/:id/checkin-pin (admin).
func (h *Handler) GeneratePin(c *gin.Context) {
	id, ok := eventParam(c)
	if !ok {
		return
	}
	var req PinSettingsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Invalid(c, err)
			return
		}
	}
	st, err := h.svc.GeneratePin(c.Request.Context(), id, req.AutoDeactivateHours, middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, st)
}

// TogglePinRequest optionally forces the flag instead of flipping it.
type TogglePinRequest struct {
	Active *bool `json:"active"`
}

// TogglePin handles POST /events/:id/checkin-pin/toggle (admin).
func (h *Handler) TogglePin(c *gin.Context) {
	id, ok := eventParam(c)
	if !ok {
		return
	}
	var req TogglePinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Invalid(c, err)
			return
		}
	}
	st, err := h.svc.TogglePin(c.Request.Context(), id, req.Active, middleware.ActorFrom(c))
	if errors.Is(err, ErrInvalidPin) {
		response.BadRequest(c, "no PIN generated for this event")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, st)
}

// UpdateSettings handles PUT /events/:id/checkin-pin/settings (admin).
func (h *Handler) UpdateSettings(c *gin.Context) {
	id, ok := eventParam(c)
	if !ok {
		return
	}
	var req PinSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	st, err := h.svc.UpdateSettings(c.Request.Context(), id, req.AutoDeactivateHours, middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, st)
}
