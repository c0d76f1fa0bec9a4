package invitees

import (
	"errors"
	"strconv"
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

// MaxImportFileSize is the largest accepted import upload (10MB).
const MaxImportFileSize = 10 << 20

// ContactRequest is the body for POST/PATCH /invitees.
type ContactRequest struct {
	Name           *string    `json:"name"`
	Email          *string    `json:"email"`
	Phone          *string    `json:"phone"`
	SecondaryPhone *string    `json:"secondary_phone"`
	Title          *string    `json:"title"`
	Company        *string    `json:"company"`
	Position       *string    `json:"position"`
	PlusOne        *int       `json:"plus_one"`
	CategoryID     *uuid.UUID `json:"category_id"`
	InviterID      *uuid.UUID `json:"inviter_id"`
	InviterGroupID *uuid.UUID `json:"inviter_group_id"`
}

// CategoryRequest is the body for POST /categories.
type CategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListResponse is the paged contact list.
type ListResponse struct {
	Items  []models.Invitee `json:"items"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// Handler handles contact, category and import endpoints.
type Handler struct {
	repo     *Repository
	importer *Importer
	logger   *zap.Logger
}

// NewHandler creates an invitees handler.
func NewHandler(repo *Repository, importer *Importer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, importer: importer, logger: logger}
}

// TargetGroup picks the group a write applies to. Non-admins always write to their own group;
// admins must name one.
func TargetGroup(actor models.Actor, requested *uuid.UUID) (uuid.UUID, error) {
	if actor.IsAdmin() {
		if requested == nil || *requested == uuid.Nil {
			return uuid.Nil, errors.New("inviter_group_id is required")
		}
		return *requested, nil
	}
	if actor.GroupID == nil {
		return uuid.Nil, lifecycle.ErrForbidden
	}
	if requested != nil && *requested != *actor.GroupID {
		return uuid.Nil, lifecycle.ErrForbidden
	}
	return *actor.GroupID, nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// applyRequest copies the set fields of req onto inv and validates the result.
func applyRequest(inv *models.Invitee, req ContactRequest) error {
	if req.Name != nil {
		inv.Name = str(req.Name)
	}
	if req.Email != nil {
		inv.Email = strings.ToLower(str(req.Email))
	}
	if req.Phone != nil {
		inv.Phone = str(req.Phone)
	}
	if req.SecondaryPhone != nil {
		inv.SecondaryPhone = str(req.SecondaryPhone)
	}
	if req.Title != nil {
		inv.Title = str(req.Title)
	}
	if req.Company != nil {
		inv.Company = str(req.Company)
	}
	if req.Position != nil {
		inv.Position = str(req.Position)
	}
	if req.PlusOne != nil {
		inv.PlusOne = *req.PlusOne
	}
	if req.CategoryID != nil {
		inv.CategoryID = req.CategoryID
	}
	if req.InviterID != nil {
		inv.InviterID = req.InviterID
	}
	switch {
	case inv.Name == "":
		return errors.New("name is required")
	case inv.Phone == "" && inv.Email == "":
		return errors.New("phone or email is required")
	case inv.PlusOne < 0:
		return errors.New("plus_one must not be negative")
	}
	return nil
}

func (h *Handler) checkInviter(c *gin.Context, inv *models.Invitee) bool {
	if inv.InviterID == nil {
		return true
	}
	g, err := h.repo.InviterGroup(c.Request.Context(), *inv.InviterID)
	if err != nil || g != inv.InviterGroupID {
		response.BadRequest(c, "inviter does not belong to the contact's group")
		return false
	}
	return true
}

func (h *Handler) load(c *gin.Context) (*models.Invitee, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid invitee id")
		return nil, false
	}
	inv, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, lifecycle.HTTPStatus(err), "invitee not found")
		return nil, false
	}
	actor := middleware.ActorFrom(c)
	if !actor.IsAdmin() && !actor.InGroup(inv.InviterGroupID) {
		response.NotFound(c, "invitee not found")
		return nil, false
	}
	return inv, true
}

// List handles GET /invitees. Query: q, category_id, inviter_id, group_id (admins), limit, offset.
func (h *Handler) List(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	f := Filter{Search: c.Query("q")}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if f.Offset < 0 {
		f.Offset = 0
	}
	if actor.IsAdmin() {
		if id, err := uuid.Parse(c.Query("group_id")); err == nil {
			f.GroupID = &id
		}
	} else {
		if actor.GroupID == nil {
			response.OK(c, ListResponse{Items: []models.Invitee{}, Limit: f.Limit})
			return
		}
		f.GroupID = actor.GroupID
	}
	if id, err := uuid.Parse(c.Query("category_id")); err == nil {
		f.CategoryID = &id
	}
	if id, err := uuid.Parse(c.Query("inviter_id")); err == nil {
		f.InviterID = &id
	}
	list, total, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list invitees", zap.Error(err))
		response.Internal(c, "failed to load invitees")
		return
	}
	response.OK(c, ListResponse{Items: list, Total: total, Limit: f.Limit, Offset: f.Offset})
}

// GetByID handles GET /invitees/:id.
func (h *Handler) GetByID(c *gin.Context) {
	inv, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, inv)
}

// Create handles POST /invitees.
func (h *Handler) Create(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	actor := middleware.ActorFrom(c)
	groupID, err := TargetGroup(actor, req.InviterGroupID)
	if errors.Is(err, lifecycle.ErrForbidden) {
		response.Forbidden(c, "contacts can only be added to your own group")
		return
	}
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	inv := &models.Invitee{InviterGroupID: groupID, CreatedBy: &actor.UserID}
	if err := applyRequest(inv, req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !h.checkInviter(c, inv) {
		return
	}
	if dup, err := h.repo.FindByPhoneInGroup(c.Request.Context(), groupID, inv.Phone); err == nil {
		response.Conflict(c, "a contact with this phone already exists in the group: "+dup.Name)
		return
	}
	if err := h.repo.Create(c.Request.Context(), inv); err != nil {
		h.logger.Error("create invitee", zap.Error(err))
		response.Internal(c, "failed to create invitee")
		return
	}
	response.Created(c, inv)
}

// Update handles PATCH /invitees/:id.
func (h *Handler) Update(c *gin.Context) {
	inv, ok := h.load(c)
	if !ok {
		return
	}
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	if err := applyRequest(inv, req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !h.checkInviter(c, inv) {
		return
	}
	if err := h.repo.Update(c.Request.Context(), inv); err != nil {
		h.logger.Error("update invitee", zap.Error(err), zap.String("invitee_id", inv.ID.String()))
		response.Internal(c, "failed to update invitee")
		return
	}
	response.OK(c, inv)
}

// Delete handles DELETE /invitees/:id. Contacts with pending or approved invitations are kept.
func (h *Handler) Delete(c *gin.Context) {
	inv, ok := h.load(c)
	if !ok {
		return
	}
	active, err := h.repo.HasActiveInvitations(c.Request.Context(), inv.ID)
	if err != nil {
		response.Internal(c, "failed to delete invitee")
		return
	}
	if active {
		response.Conflict(c, "invitee has pending or approved invitations")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), inv.ID); err != nil {
		response.Internal(c, "failed to delete invitee")
		return
	}
	response.NoContent(c)
}

// Import handles POST /invitees/import (multipart "file", optional form "inviter_group_id" for admins).
func (h *Handler) Import(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	var requested *uuid.UUID
	if v := c.PostForm("inviter_group_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid inviter_group_id")
			return
		}
		requested = &id
	}
	groupID, err := TargetGroup(actor, requested)
	if errors.Is(err, lifecycle.ErrForbidden) {
		response.Forbidden(c, "contacts can only be imported into your own group")
		return
	}
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fh.Size > MaxImportFileSize {
		response.BadRequest(c, "file must be 10MB or smaller")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "cannot read file")
		return
	}
	defer f.Close()
	rows, err := ReadRows(f, fh.Filename)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sum, err := h.importer.Import(c.Request.Context(), rows, groupID, actor)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.OK(c, sum)
}

// Categories handles GET /categories.
func (h *Handler) Categories(c *gin.Context) {
	list, err := h.repo.ListCategories(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load categories")
		return
	}
	response.OK(c, list)
}

// CreateCategory handles POST /categories (admin only).
func (h *Handler) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		response.BadRequest(c, "name is required")
		return
	}
	cat := &models.Category{Name: strings.TrimSpace(req.Name)}
	if err := h.repo.CreateCategory(c.Request.Context(), cat); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			response.Conflict(c, "category already exists")
			return
		}
		response.Internal(c, "failed to create category")
		return
	}
	response.Created(c, cat)
}

// DeleteCategory handles DELETE /categories/:id (admin only).
func (h *Handler) DeleteCategory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid category id")
		return
	}
	if err := h.repo.DeleteCategory(c.Request.Context(), id); err != nil {
		response.Fail(c, lifecycle.HTTPStatus(err), "failed to delete category")
		return
	}
	response.NoContent(c)
}
