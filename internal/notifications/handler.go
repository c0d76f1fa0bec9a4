package notifications

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/pkg/response"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Handler serves the caller's in-app notifications.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /notifications?unread=true&limit=&offset=.
func (h *Handler) List(c *gin.Context) {
	userID := middleware.ActorFrom(c).UserID
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset, _ := strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}
	list, err := h.store.List(c.Request.Context(), userID, c.Query("unread") == "true", limit, offset)
	if err != nil {
		h.logger.Error("list notifications", zap.Error(err))
		response.Internal(c, "failed to load notifications")
		return
	}
	response.OK(c, list)
}

// UnreadCount handles GET /notifications/unread-count.
func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.store.UnreadCount(c.Request.Context(), middleware.ActorFrom(c).UserID)
	if err != nil {
		h.logger.Error("count notifications", zap.Error(err))
		response.Internal(c, "failed to count notifications")
		return
	}
	response.OK(c, gin.H{"unread": n})
}

// MarkRead handles POST /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	if err := h.store.MarkRead(c.Request.Context(), id, middleware.ActorFrom(c).UserID); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"id": id, "is_read": true})
}

// ReadAll handles POST /notifications/read-all.
func (h *Handler) ReadAll(c *gin.Context) {
	n, err := h.store.MarkAllRead(c.Request.Context(), middleware.ActorFrom(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"updated": n})
}

// Delete handles DELETE /notifications/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	if err := h.store.Delete(c.Request.Context(), id, middleware.ActorFrom(c).UserID); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, lifecycle.ErrNotFound) {
		response.NotFound(c, "notification not found")
		return
	}
	h.logger.Error("notification update failed", zap.Error(err))
	response.Internal(c, "failed to update notification")
}
