package auditlog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/response"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

var errBadFilter = errors.New("invalid filter")

// Reader is the read side of the audit log.
type Reader interface {
	List(ctx context.Context, f Filter) ([]models.AuditLog, int, error)
	Actions(ctx context.Context) ([]string, error)
}

// Page is the response of GET /reports/activity-log.
type Page struct {
	Items  []models.AuditLog `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// Handler serves the admin activity log.
type Handler struct {
	reader Reader
	logger *zap.Logger
}

// NewHandler creates an activity log handler. Mount behind RequireRole(admin).
func NewHandler(reader Reader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{reader: reader, logger: logger}
}

// ParseFilter reads ?action=&user_id=&table=&from=&to=&limit=&offset=. Dates are RFC 3339 or YYYY-MM-DD;
// a bare "to" date includes that whole day.
func ParseFilter(c *gin.Context) (Filter, error) {
	f := Filter{Action: c.Query("action"), Table: c.Query("table"), Limit: defaultLimit}
	if v := c.Query("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errBadFilter
		}
		f.UserID = &id
	}
	if v := c.Query("from"); v != "" {
		t, _, err := parseTime(v)
		if err != nil {
			return f, errBadFilter
		}
		f.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, dateOnly, err := parseTime(v)
		if err != nil {
			return f, errBadFilter
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		f.To = &t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, errBadFilter
		}
		if n > maxLimit {
			n = maxLimit
		}
		f.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errBadFilter
		}
		f.Offset = n
	}
	return f, nil
}

func parseTime(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	t, err := time.Parse("2006-01-02", v)
	return t, true, err
}

// List handles GET /reports/activity-log.
func (h *Handler) List(c *gin.Context) {
	f, err := ParseFilter(c)
	if err != nil {
		response.BadRequest(c, "invalid activity log filter")
		return
	}
	items, total, err := h.reader.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list activity log", zap.Error(err))
		response.Internal(c, "failed to load activity log")
		return
	}
	response.OK(c, Page{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset})
}

// Actions handles GET /reports/activity-log/actions.
func (h *Handler) Actions(c *gin.Context) {
	list, err := h.reader.Actions(c.Request.Context())
	if err != nil {
		h.logger.Error("list audit actions", zap.Error(err))
		response.Internal(c, "failed to load actions")
		return
	}
	response.OK(c, list)
}
