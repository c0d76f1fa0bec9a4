package attendance

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/queue"
	"github.com/aura-events/backend/pkg/response"
)

// EventLookup loads events.
type EventLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// ExportQueue schedules background workbook exports.
type ExportQueue interface {
	EnqueueExport(ctx context.Context, p queue.ExportPayload) (string, error)
}

// IDsRequest carries the association ids of a bulk call.
type IDsRequest struct {
	IDs []uuid.UUID `json:"event_invitee_ids"`
}

// GenerateCodesRequest is the body for POST /events/:id/attendance/generate-codes.
type GenerateCodesRequest struct {
	Prefix string `json:"prefix"`
}

// MarkSentRequest is the body for POST /attendance/mark-sent.
type MarkSentRequest struct {
	IDs    []uuid.UUID             `json:"event_invitee_ids"`
	Method models.InvitationMethod `json:"method"`
}

// ConfirmRequest is the body for POST /attendance/confirm.
type ConfirmRequest struct {
	IDs      []uuid.UUID `json:"event_invitee_ids"`
	IsComing *bool       `json:"is_coming"`
	Guests   *int        `json:"guests"`
}

// CheckInRequest is the body for POST /attendance/check-in.
type CheckInRequest struct {
	Code    string     `json:"attendance_code"`
	EventID *uuid.UUID `json:"event_id"`
	Guests  int        `json:"actual_guests"`
	Notes   string     `json:"notes"`
}

// PortalCodeRequest is the body for POST /portal/verify-code.
type PortalCodeRequest struct {
	Code string `json:"attendance_code"`
}

// PortalPhoneRequest is the body for POST /portal/verify-phone.
type PortalPhoneRequest struct {
	Phone   string     `json:"phone"`
	EventID *uuid.UUID `json:"event_id"`
}

// PortalConfirmRequest is the body for POST /portal/confirm.
type PortalConfirmRequest struct {
	Code     string `json:"attendance_code"`
	IsComing *bool  `json:"is_coming"`
	Guests   *int   `json:"guests"`
}

// Handler exposes attendance tracking, the invitee portal, QR codes and exports.
type Handler struct {
	mgr     *lifecycle.Manager
	events  EventLookup
	exports ExportQueue
	baseURL string
	logger  *zap.Logger
}

// NewHandler creates an attendance handler. exports may be nil, which disables async export.
func NewHandler(mgr *lifecycle.Manager, events EventLookup, exports ExportQueue, baseURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{mgr: mgr, events: events, exports: exports, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := lifecycle.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, zap.Error(err))
		response.Internal(c, op+" failed")
		return
	}
	response.Fail(c, status, err.Error())
}

func eventParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

func boolQuery(c *gin.Context, key string) *bool {
	v, err := strconv.ParseBool(c.Query(key))
	if err != nil {
		return nil
	}
	return &v
}

// ParseFilter reads attendee filters from the query string. Directors and organizers
// are limited to their own group.
func ParseFilter(c *gin.Context, actor models.Actor) lifecycle.AttendeeFilter {
	f := lifecycle.AttendeeFilter{
		HasCode:        boolQuery(c, "has_code"),
		InvitationSent: boolQuery(c, "invitation_sent"),
		CheckedIn:      boolQuery(c, "checked_in"),
		Search:         strings.TrimSpace(c.Query("q")),
	}
	switch c.Query("confirmed") {
	case "yes", "no", "pending":
		f.Confirmed = c.Query("confirmed")
	}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		f.Limit = n
	}
	if actor.IsAdmin() || actor.Role == models.RoleCheckInAttendant {
		if g, err := uuid.Parse(c.Query("group_id")); err == nil {
			f.InviterGroupID = &g
		}
	} else if actor.GroupID != nil {
		f.InviterGroupID = actor.GroupID
	} else {
		none := uuid.Nil
		f.InviterGroupID = &none
	}
	return f
}

// batch renders a bulk attendance result. updated and success_count are the same number.
func batch(c *gin.Context, res *lifecycle.BatchResult) {
	updated := res.Count(lifecycle.OutcomeSuccessful)
	response.OK(c, gin.H{
		"items":         res.Items,
		"updated":       updated,
		"success_count": updated,
		"failed_count":  res.Failures(),
		"errors":        res.Errors(),
		"warnings":      res.Warnings(),
	})
}

// Stats handles GET /events/:id/attendance/stats.
func (h *Handler) Stats(c *gin.Context) {
	id, ok := eventParam(c)
	if !ok {
		return
	}
	s, err := h.mgr.Stats(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "stats", err)
		return
	}
	response.OK(c, s)
}

// Attendees handles GET /events/:id/attendance/attendees.
func (h *Handler) Attendees(c *gin.Context) {
	id, ok := eventParam(c)
	if !ok {
		return
	}
	list, err := h.mgr.ListAttendees(c.Request.Context(), id, ParseFilter(c, middleware.ActorFrom(c)))
	if err != nil {
		h.fail(c, "list attendees", err)
		return
	}
	response.OK(c, gin.H{"attendees": list, "total": len(list)})
}

// Recent handles GET /events/:id/attendance/recent.
func (h *Handler) Recent(c *gin.Context) {
	id, ok := eventParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	list, err := h.mgr.RecentCheckIns(c.Request.Context(), id, limit)
	if err != nil {
		h.fail(c, "recent check-ins", err)
		return
	}
	response.OK(c, list)
}

// GenerateCodes handles POST /events/:id/attendance/generate-codes.
func (h *Handler) GenerateCodes(c *gin.Context) {
	id, ok := eventParam(c)
	if !ok {
		return
	}
	var req GenerateCodesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Invalid(c, err)
			return
		}
	}
	res, err := h.mgr.GenerateCodes(c.Request.Context(), id, req.Prefix, middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, "generate codes", err)
		return
	}
	response.OK(c, gin.H{
		"generated": res.Count(lifecycle.OutcomeSuccessful),
		"items":     res.Items,
		"errors":    res.Errors(),
	})
}

// MarkSent handles POST /attendance/mark-sent.
func (h *Handler) MarkSent(c *gin.Context) {
	var req MarkSentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	res, err := h.mgr.MarkInvitationsSent(c.Request.Context(), req.IDs, req.Method, middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, "mark sent", err)
		return
	}
	batch(c, res)
}

// UndoSent handles POST /attendance/undo-sent.
func (h *Handler) UndoSent(c *gin.Context) {
	var req IDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	res, err := h.mgr.UndoInvitationsSent(c.Request.Context(), req.IDs, middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, "undo sent", err)
		return
	}
	batch(c, res)
}

// Confirm handles POST /attendance/confirm.
func (h *Handler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	if req.IsComing == nil {
		response.BadRequest(c, "is_coming is required")
		return
	}
	res, err := h.mgr.ConfirmAttendance(c.Request.Context(), req.IDs, *req.IsComing, req.Guests, middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, "confirm attendance", err)
		return
	}
	batch(c, res)
}

// ResetConfirmation handles POST /attendance/reset-confirmation.
func (h *Handler) ResetConfirmation(c *gin.Context) {
	var req IDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	res, err := h.mgr.ResetConfirmation(c.Request.Context(), req.IDs, middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, "reset confirmation", err)
		return
	}
	batch(c, res)
}

// CheckIn handles POST /attendance/check-in.
func (h *Handler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	ei, err := h.mgr.CheckIn(c.Request.Context(), lifecycle.CheckInRequest{
		EventID: req.EventID, Code: req.Code, Guests: req.Guests, Notes: req.Notes,
	}, middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, "check in", err)
		return
	}
	response.OK(c, ei)
}

// UndoCheckIn handles POST /attendance/:id/undo-check-in.
func (h *Handler) UndoCheckIn(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event invitee id")
		return
	}
	ei, err := h.mgr.UndoCheckIn(c.Request.Context(), id, nil, middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, "undo check in", err)
		return
	}
	response.OK(c, ei)
}

// VerifyCode handles POST /portal/verify-code (public).
func (h *Handler) VerifyCode(c *gin.Context) {
	var req PortalCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "attendance_code is required")
		return
	}
	a, err := h.mgr.VerifyCode(c.Request.Context(), req.Code)
	if err != nil {
		h.fail(c, "verify code", err)
		return
	}
	response.OK(c, a)
}

// VerifyPhone handles POST /portal/verify-phone (public).
func (h *Handler) VerifyPhone(c *gin.Context) {
	var req PortalPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "phone is required")
		return
	}
	a, err := h.mgr.VerifyPhone(c.Request.Context(), req.Phone, req.EventID)
	if err != nil {
		h.fail(c, "verify phone", err)
		return
	}
	response.OK(c, a)
}

// PortalConfirm handles POST /portal/confirm (public).
func (h *Handler) PortalConfirm(c *gin.Context) {
	var req PortalConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	if req.IsComing == nil {
		response.BadRequest(c, "is_coming is required")
		return
	}
	a, err := h.mgr.PortalConfirm(c.Request.Context(), req.Code, *req.IsComing, req.Guests)
	if err != nil {
		h.fail(c, "portal confirm", err)
		return
	}
	response.OK(c, a)
}

// QRCode handles GET /portal/qr/:code, a PNG that links to the invitee portal. ?size= sets the edge in pixels.
func (h *Handler) QRCode(c *gin.Context) {
	code := lifecycle.NormalizeCode(c.Param("code"))
	if code == "" {
		response.BadRequest(c, "attendance code is required")
		return
	}
	size, _ := strconv.Atoi(c.Query("size"))
	png, err := QRCodePNG(PortalURL(h.baseURL, code), size)
	if err != nil {
		h.fail(c, "qr code", err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

// Export handles GET /events/:id/attendance/export, streaming an .xlsx workbook.
func (h *Handler) Export(c *gin.Context) {
	id, ok := eventParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	e, err := h.events.GetByID(ctx, id)
	if err != nil {
		h.fail(c, "export", err)
		return
	}
	stats, err := h.mgr.Stats(ctx, id)
	if err != nil {
		h.fail(c, "export", err)
		return
	}
	list, err := h.mgr.ListAttendees(ctx, id, ParseFilter(c, middleware.ActorFrom(c)))
	if err != nil {
		h.fail(c, "export", err)
		return
	}
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, e, stats, list); err != nil {
		h.fail(c, "export", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+ExportFilename(e, h.mgr.Now())+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// ExportAsync handles POST /events/:id/attendance/export. The worker uploads the workbook
// and notifies the caller with a download link.
func (h *Handler) ExportAsync(c *gin.Context) {
	if h.exports == nil {
		response.ServiceUnavailable(c, "background exports are not configured")
		return
	}
	id, ok := eventParam(c)
	if !ok {
		return
	}
	if _, err := h.events.GetByID(c.Request.Context(), id); err != nil {
		h.fail(c, "export", err)
		return
	}
	actor := middleware.ActorFrom(c)
	f := ParseFilter(c, actor)
	jobID, err := h.exports.EnqueueExport(c.Request.Context(), queue.ExportPayload{
		EventID:     id,
		RequestedBy: actor.UserID,
		GroupID:     f.InviterGroupID,
		Confirmed:   f.Confirmed,
		Search:      f.Search,
	})
	if err != nil {
		h.logger.Error("enqueue export", zap.Error(err), zap.String("event_id", id.String()))
		response.ServiceUnavailable(c, "could not schedule export")
		return
	}
	response.Accepted(c, gin.H{"job_id": jobID})
}
