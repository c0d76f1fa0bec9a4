package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/checkin"
	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/response"
	"github.com/aura-events/backend/pkg/storage"
)

var (
	errDates  = errors.New("end_date must not be before start_date")
	errStatus = errors.New("status must be cancelled, on_hold or null")
)

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Name        string                   `json:"name" binding:"required"`
	Description string                   `json:"description"`
	Venue       string                   `json:"venue"`
	StartDate   time.Time                `json:"start_date" binding:"required"`
	EndDate     time.Time                `json:"end_date" binding:"required"`
	IsAllGroups bool                     `json:"is_all_groups"`
	Quotas      []models.EventGroupQuota `json:"quotas"`
}

// UpdateRequest is the body for PATCH /events/:id.
type UpdateRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Venue       *string    `json:"venue"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	IsAllGroups *bool      `json:"is_all_groups"`
}

// StatusRequest is the body for PATCH /events/:id/status. A null status clears the override.
type StatusRequest struct {
	Status *string `json:"status"`
}

// QuotaRequest is the body for PUT /events/:id/quotas.
type QuotaRequest struct {
	Quotas []models.EventGroupQuota `json:"quotas"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo   *Repository
	pins   *checkin.Service
	mgr    *lifecycle.Manager
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates an event handler. s3 may be nil, in which case logo upload is unavailable.
func NewHandler(repo *Repository, pins *checkin.Service, mgr *lifecycle.Manager, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, pins: pins, mgr: mgr, s3: s3, logger: logger}
}

// View renders e with its computed status at now.
func View(e *models.Event, now time.Time) models.EventView {
	return models.EventView{
		Event:            e,
		Status:           e.Status(now),
		CanAddInvitees:   e.CanAddInvitees(now),
		CheckinPinActive: checkin.PinActive(e, now),
		HasCheckinPin:    e.CheckinPin != nil,
	}
}

// ParseManualStatus validates a manual status override. Nil clears it.
func ParseManualStatus(s *string) (*models.EventStatus, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	st := models.EventStatus(*s)
	if !st.IsManual() {
		return nil, errStatus
	}
	return &st, nil
}

// ValidateQuotas rejects negative quotas and duplicate groups.
func ValidateQuotas(quotas []models.EventGroupQuota) error {
	seen := make(map[uuid.UUID]bool, len(quotas))
	for _, q := range quotas {
		if q.InviterGroupID == uuid.Nil {
			return errors.New("inviter_group_id is required")
		}
		if seen[q.InviterGroupID] {
			return fmt.Errorf("group %s listed twice", q.InviterGroupID)
		}
		seen[q.InviterGroupID] = true
		if q.Quota != nil && *q.Quota < 0 {
			return errors.New("quota must not be negative")
		}
	}
	return nil
}

func (h *Handler) now() time.Time { return h.mgr.Now() }

func (h *Handler) load(c *gin.Context) (*models.Event, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return nil, false
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, lifecycle.ErrNotFound) {
		response.NotFound(c, "event not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("load event", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to load event")
		return nil, false
	}
	return e, true
}

// Create handles POST /events (admin only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	if req.EndDate.Before(req.StartDate) {
		response.BadRequest(c, errDates.Error())
		return
	}
	if err := ValidateQuotas(req.Quotas); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	code, err := h.pins.UniqueEventCode(c.Request.Context(), req.Name)
	if err != nil {
		response.Internal(c, "failed to generate event code")
		return
	}
	actor := middleware.ActorFrom(c)
	e := &models.Event{
		Name:        req.Name,
		Code:        &code,
		Description: req.Description,
		Venue:       req.Venue,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		IsAllGroups: req.IsAllGroups,
		CreatedBy:   &actor.UserID,
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	if len(req.Quotas) > 0 {
		if err := h.repo.ReplaceQuotas(c.Request.Context(), e.ID, req.Quotas); err != nil {
			h.logger.Error("assign groups", zap.Error(err), zap.String("event_id", e.ID.String()))
			response.Internal(c, "event created but group assignment failed")
			return
		}
	}
	h.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.String("code", code))
	response.Created(c, View(e, h.now()))
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	e, ok := h.load(c)
	if !ok {
		return
	}
	if !h.visible(c, e) {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, View(e, h.now()))
}

func (h *Handler) visible(c *gin.Context, e *models.Event) bool {
	actor := middleware.ActorFrom(c)
	if actor.IsAdmin() || actor.Role == models.RoleCheckInAttendant || e.IsAllGroups {
		return true
	}
	if actor.GroupID == nil {
		return false
	}
	list, err := h.repo.ListQuotas(c.Request.Context(), e.ID)
	if err != nil {
		h.logger.Warn("list quotas", zap.Error(err), zap.String("event_id", e.ID.String()))
		return false
	}
	for _, q := range list {
		if q.InviterGroupID == *actor.GroupID {
			return true
		}
	}
	return false
}

// List handles GET /events. Directors and organizers see only events open to their group.
// Query ?status= filters on the computed status.
func (h *Handler) List(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	var groupID *uuid.UUID
	if !actor.IsAdmin() && actor.Role != models.RoleCheckInAttendant {
		if actor.GroupID == nil {
			response.OK(c, []models.EventView{})
			return
		}
		groupID = actor.GroupID
	}
	list, err := h.repo.List(c.Request.Context(), groupID)
	if err != nil {
		h.logger.Error("list events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	now := h.now()
	filter := models.EventStatus(c.Query("status"))
	views := make([]models.EventView, 0, len(list))
	for i := range list {
		v := View(&list[i], now)
		if filter != "" && v.Status != filter {
			continue
		}
		views = append(views, v)
	}
	response.OK(c, views)
}

// Update handles PATCH /events/:id (admin only).
func (h *Handler) Update(c *gin.Context) {
	e, ok := h.load(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	start, end := e.StartDate, e.EndDate
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	if end.Before(start) {
		response.BadRequest(c, errDates.Error())
		return
	}
	updated, err := h.repo.Update(c.Request.Context(), e.ID, UpdateParams{
		Name: req.Name, Description: req.Description, Venue: req.Venue,
		StartDate: req.StartDate, EndDate: req.EndDate, IsAllGroups: req.IsAllGroups,
	})
	if err != nil {
		h.logger.Error("update event", zap.Error(err), zap.String("event_id", e.ID.String()))
		response.Internal(c, "failed to update event")
		return
	}
	response.OK(c, View(updated, h.now()))
}

// SetStatus handles PATCH /events/:id/status (admin only). Only cancelled and on_hold can be
// set by hand; null returns the event to its date-derived status.
func (h *Handler) SetStatus(c *gin.Context) {
	e, ok := h.load(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	status, err := ParseManualStatus(req.Status)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	updated, err := h.repo.SetManualStatus(c.Request.Context(), e.ID, status)
	if err != nil {
		h.logger.Error("set event status", zap.Error(err), zap.String("event_id", e.ID.String()))
		response.Internal(c, "failed to update status")
		return
	}
	response.OK(c, View(updated, h.now()))
}

// Delete handles DELETE /events/:id (admin only).
func (h *Handler) Delete(c *gin.Context) {
	e, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), e.ID); err != nil {
		response.Internal(c, "failed to delete event")
		return
	}
	if e.LogoKey != "" && h.s3 != nil {
		if err := h.s3.DeleteObject(c.Request.Context(), h.s3.AssetsBucket(), e.LogoKey); err != nil {
			h.logger.Warn("delete logo", zap.Error(err), zap.String("key", e.LogoKey))
		}
	}
	response.NoContent(c)
}

// Quotas handles GET /events/:id/quotas.
func (h *Handler) Quotas(c *gin.Context) {
	e, ok := h.load(c)
	if !ok {
		return
	}
	list, err := h.repo.ListQuotas(c.Request.Context(), e.ID)
	if err != nil {
		response.Internal(c, "failed to list quotas")
		return
	}
	response.OK(c, list)
}

// GroupQuota handles GET /events/:id/quotas/:groupId.
func (h *Handler) GroupQuota(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	groupID, err := uuid.Parse(c.Param("groupId"))
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return
	}
	actor := middleware.ActorFrom(c)
	if !actor.IsAdmin() && !actor.InGroup(groupID) {
		response.Forbidden(c, "not your group")
		return
	}
	gq, err := h.mgr.CheckQuota(c.Request.Context(), eventID, groupID)
	if err != nil {
		response.Fail(c, lifecycle.HTTPStatus(err), err.Error())
		return
	}
	response.OK(c, gq)
}

// SetQuotas handles PUT /events/:id/quotas (admin only).
func (h *Handler) SetQuotas(c *gin.Context) {
	e, ok := h.load(c)
	if !ok {
		return
	}
	var req QuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	if err := ValidateQuotas(req.Quotas); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.repo.ReplaceQuotas(c.Request.Context(), e.ID, req.Quotas); err != nil {
		h.logger.Error("replace quotas", zap.Error(err), zap.String("event_id", e.ID.String()))
		response.Internal(c, "failed to save quotas")
		return
	}
	list, err := h.repo.ListQuotas(c.Request.Context(), e.ID)
	if err != nil {
		response.Internal(c, "failed to list quotas")
		return
	}
	response.OK(c, list)
}

// UploadLogo handles POST /events/:id/logo (admin only, multipart field "file").
func (h *Handler) UploadLogo(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "file storage is not configured")
		return
	}
	e, ok := h.load(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fh.Size > storage.MaxLogoFileSize {
		response.BadRequest(c, "logo must be 5MB or smaller")
		return
	}
	ct := storage.LogoContentType(fh.Filename)
	if ct == "" {
		response.BadRequest(c, "logo must be jpg, png, webp or svg")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "cannot read file")
		return
	}
	defer f.Close()

	key := storage.LogoKey(e.ID.String(), fh.Filename)
	if err := h.s3.Upload(c.Request.Context(), h.s3.AssetsBucket(), key, ct, f, fh.Size); err != nil {
		h.logger.Error("upload logo", zap.Error(err), zap.String("event_id", e.ID.String()))
		response.Internal(c, "failed to upload logo")
		return
	}
	prev, err := h.repo.SetLogo(c.Request.Context(), e.ID, key)
	if err != nil {
		response.Internal(c, "failed to save logo")
		return
	}
	if prev != "" && prev != key {
		if err := h.s3.DeleteObject(c.Request.Context(), h.s3.AssetsBucket(), prev); err != nil {
			h.logger.Warn("delete old logo", zap.Error(err), zap.String("key", prev))
		}
	}
	response.OK(c, gin.H{"logo_key": key})
}

// Logo handles GET /events/:id/logo, streaming the image from S3.
func (h *Handler) Logo(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "file storage is not configured")
		return
	}
	e, ok := h.load(c)
	if !ok {
		return
	}
	if e.LogoKey == "" {
		response.NotFound(c, "event has no logo")
		return
	}
	body, ct, err := h.s3.GetObjectStream(c.Request.Context(), h.s3.AssetsBucket(), e.LogoKey)
	if err != nil {
		response.NotFound(c, "logo not found")
		return
	}
	defer body.Close()
	c.Header("Cache-Control", "public, max-age=300")
	c.DataFromReader(200, -1, ct, body, nil)
}
