package groups

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/response"
)

// MemberLister lists the users of a group.
type MemberLister interface {
	List(ctx context.Context, groupID *uuid.UUID) ([]models.UserPublic, error)
}

// Handler handles inviter group and inviter endpoints.
type Handler struct {
	repo    *Repository
	members MemberLister
	logger  *zap.Logger
}

// NewHandler creates a groups handler.
func NewHandler(repo *Repository, members MemberLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, members: members, logger: logger}
}

// GroupRequest is the body for POST/PATCH /groups.
type GroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// InviterRequest is the body for POST/PATCH /groups/:id/inviters.
type InviterRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	IsActive *bool   `json:"is_active"`
}

// CanView reports whether actor may read group data.
func CanView(actor models.Actor, groupID uuid.UUID) bool {
	return actor.IsAdmin() || actor.InGroup(groupID)
}

// CanManage reports whether actor may edit a group's inviters. Admins anywhere, directors in their own group.
func CanManage(actor models.Actor, groupID uuid.UUID) bool {
	return actor.IsAdmin() || (actor.Role == models.RoleDirector && actor.InGroup(groupID))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isFKViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func groupParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /groups (admin only).
func (h *Handler) Create(c *gin.Context) {
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	name := trimmed(req.Name)
	if name == nil || *name == "" || len(*name) > 255 {
		response.BadRequest(c, "name must be 1-255 characters")
		return
	}
	g := &models.InviterGroup{Name: *name}
	if req.Description != nil {
		g.Description = strings.TrimSpace(*req.Description)
	}
	if err := h.repo.Create(c.Request.Context(), g); err != nil {
		if isUniqueViolation(err) {
			response.Conflict(c, "a group with this name already exists")
			return
		}
		h.logger.Error("create group", zap.Error(err))
		response.Internal(c, "failed to create group")
		return
	}
	response.Created(c, g)
}

// List handles GET /groups. Non-admins only see their own group.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list groups", zap.Error(err))
		response.Internal(c, "failed to load groups")
		return
	}
	actor := middleware.ActorFrom(c)
	out := make([]models.GroupSummary, 0, len(list))
	for _, g := range list {
		if CanView(actor, g.ID) {
			out = append(out, g)
		}
	}
	response.OK(c, out)
}

// GetByID handles GET /groups/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := groupParam(c)
	if !ok {
		return
	}
	if !CanView(middleware.ActorFrom(c), id) {
		response.Forbidden(c, "not your group")
		return
	}
	g, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, lifecycle.HTTPStatus(err), "group not found")
		return
	}
	response.OK(c, g)
}

// Update handles PATCH /groups/:id (admin only).
func (h *Handler) Update(c *gin.Context) {
	id, ok := groupParam(c)
	if !ok {
		return
	}
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	name := trimmed(req.Name)
	if name != nil && *name == "" {
		response.BadRequest(c, "name cannot be empty")
		return
	}
	g, err := h.repo.Update(c.Request.Context(), id, name, trimmed(req.Description))
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		response.NotFound(c, "group not found")
	case isUniqueViolation(err):
		response.Conflict(c, "a group with this name already exists")
	case err != nil:
		h.logger.Error("update group", zap.Error(err), zap.String("group_id", id.String()))
		response.Internal(c, "failed to update group")
	default:
		response.OK(c, g)
	}
}

// Delete handles DELETE /groups/:id (admin only).
func (h *Handler) Delete(c *gin.Context) {
	id, ok := groupParam(c)
	if !ok {
		return
	}
	err := h.repo.Delete(c.Request.Context(), id)
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		response.NotFound(c, "group not found")
	case isFKViolation(err):
		response.Conflict(c, "group still owns contacts")
	case err != nil:
		h.logger.Error("delete group", zap.Error(err), zap.String("group_id", id.String()))
		response.Internal(c, "failed to delete group")
	default:
		response.NoContent(c)
	}
}

// Members handles GET /groups/:id/members.
func (h *Handler) Members(c *gin.Context) {
	id, ok := groupParam(c)
	if !ok {
		return
	}
	if !CanView(middleware.ActorFrom(c), id) {
		response.Forbidden(c, "not your group")
		return
	}
	users, err := h.members.List(c.Request.Context(), &id)
	if err != nil {
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, users)
}

// Inviters handles GET /groups/:id/inviters. ?all=true includes inactive inviters.
func (h *Handler) Inviters(c *gin.Context) {
	id, ok := groupParam(c)
	if !ok {
		return
	}
	if !CanView(middleware.ActorFrom(c), id) {
		response.Forbidden(c, "not your group")
		return
	}
	list, err := h.repo.ListInviters(c.Request.Context(), id, c.Query("all") == "true")
	if err != nil {
		response.Internal(c, "failed to load inviters")
		return
	}
	response.OK(c, list)
}

// CreateInviter handles POST /groups/:id/inviters.
func (h *Handler) CreateInviter(c *gin.Context) {
	id, ok := groupParam(c)
	if !ok {
		return
	}
	if !CanManage(middleware.ActorFrom(c), id) {
		response.Forbidden(c, "not allowed to manage this group")
		return
	}
	var req InviterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	name := trimmed(req.Name)
	if name == nil || *name == "" {
		response.BadRequest(c, "name is required")
		return
	}
	inv := &models.Inviter{Name: *name, InviterGroupID: id}
	if e := trimmed(req.Email); e != nil {
		inv.Email = strings.ToLower(*e)
	}
	if p := trimmed(req.Phone); p != nil {
		inv.Phone = *p
	}
	if err := h.repo.CreateInviter(c.Request.Context(), inv); err != nil {
		if isFKViolation(err) {
			response.NotFound(c, "group not found")
			return
		}
		h.logger.Error("create inviter", zap.Error(err), zap.String("group_id", id.String()))
		response.Internal(c, "failed to create inviter")
		return
	}
	response.Created(c, inv)
}

func (h *Handler) loadInviter(c *gin.Context) (*models.Inviter, bool) {
	id, err := uuid.Parse(c.Param("inviterId"))
	if err != nil {
		response.BadRequest(c, "invalid inviter id")
		return nil, false
	}
	inv, err := h.repo.GetInviter(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, lifecycle.HTTPStatus(err), "inviter not found")
		return nil, false
	}
	if !CanManage(middleware.ActorFrom(c), inv.InviterGroupID) {
		response.Forbidden(c, "not allowed to manage this group")
		return nil, false
	}
	return inv, true
}

// UpdateInviter handles PATCH /inviters/:inviterId.
func (h *Handler) UpdateInviter(c *gin.Context) {
	inv, ok := h.loadInviter(c)
	if !ok {
		return
	}
	var req InviterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	name := trimmed(req.Name)
	if name != nil && *name == "" {
		response.BadRequest(c, "name cannot be empty")
		return
	}
	updated, err := h.repo.UpdateInviter(c.Request.Context(), inv.ID, InviterUpdate{
		Name: name, Email: trimmed(req.Email), Phone: trimmed(req.Phone), IsActive: req.IsActive,
	})
	if err != nil {
		h.logger.Error("update inviter", zap.Error(err), zap.String("inviter_id", inv.ID.String()))
		response.Internal(c, "failed to update inviter")
		return
	}
	response.OK(c, updated)
}

// DeleteInviter handles DELETE /inviters/:inviterId.
func (h *Handler) DeleteInviter(c *gin.Context) {
	inv, ok := h.loadInviter(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteInviter(c.Request.Context(), inv.ID); err != nil {
		response.Internal(c, "failed to delete inviter")
		return
	}
	response.NoContent(c)
}
