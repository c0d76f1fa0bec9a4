package reports

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/response"
)

// Source runs the reporting queries.
type Source interface {
	EventGroups(ctx context.Context, eventID uuid.UUID) ([]GroupRow, error)
	GroupEvents(ctx context.Context, groupID uuid.UUID) ([]EventRow, error)
	GroupContacts(ctx context.Context, groupID uuid.UUID) (int, error)
}

// EventLookup loads events.
type EventLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// GroupLookup loads inviter groups.
type GroupLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.InviterGroup, error)
}

// EventSummary is the response of GET /reports/events/:id.
type EventSummary struct {
	EventID    uuid.UUID              `json:"event_id"`
	EventName  string                 `json:"event_name"`
	Status     models.EventStatus     `json:"status"`
	Totals     StatusCounts           `json:"totals"`
	Total      int                    `json:"total"`
	Attendance models.AttendanceStats `json:"attendance"`
	Groups     []GroupRow             `json:"groups"`
}

// GroupSummary is the response of GET /reports/groups/:id.
type GroupSummary struct {
	GroupID   uuid.UUID    `json:"inviter_group_id"`
	GroupName string       `json:"inviter_group_name"`
	Contacts  int          `json:"contacts"`
	Totals    StatusCounts `json:"totals"`
	Total     int          `json:"total"`
	Events    []EventRow   `json:"events"`
}

// Handler serves the summary reports.
type Handler struct {
	src    Source
	events EventLookup
	groups GroupLookup
	mgr    *lifecycle.Manager
	logger *zap.Logger
}

// NewHandler creates a reports handler.
func NewHandler(src Source, events EventLookup, groups GroupLookup, mgr *lifecycle.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{src: src, events: events, groups: groups, mgr: mgr, logger: logger}
}

// ScopeGroups keeps the rows the actor may see: everything for admins,
// otherwise only the actor's own group.
func ScopeGroups(actor models.Actor, rows []GroupRow) []GroupRow {
	if actor.IsAdmin() {
		return rows
	}
	out := []GroupRow{}
	for _, r := range rows {
		if actor.InGroup(r.GroupID) {
			out = append(out, r)
		}
	}
	return out
}

func (h *Handler) fail(c *gin.Context, err error, what string) {
	if errors.Is(err, lifecycle.ErrNotFound) {
		response.NotFound(c, what+" not found")
		return
	}
	h.logger.Error("report failed", zap.Error(err), zap.String("path", c.FullPath()))
	response.Internal(c, "failed to build report")
}

// Event handles GET /reports/events/:id.
func (h *Handler) Event(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	ctx := c.Request.Context()
	e, err := h.events.GetByID(ctx, id)
	if err != nil {
		h.fail(c, err, "event")
		return
	}
	rows, err := h.src.EventGroups(ctx, id)
	if err != nil {
		h.fail(c, err, "event")
		return
	}
	stats, err := h.mgr.Stats(ctx, id)
	if err != nil {
		h.fail(c, err, "event")
		return
	}
	actor := middleware.ActorFrom(c)
	rows = ScopeGroups(actor, rows)
	out := EventSummary{EventID: e.ID, EventName: e.Name, Status: e.Status(h.mgr.Now()), Attendance: stats, Groups: rows}
	for _, r := range rows {
		out.Totals.Add(r.StatusCounts)
	}
	out.Total = out.Totals.Total()
	response.OK(c, out)
}

// Group handles GET /reports/groups/:id. Admins see any group; others only their own.
func (h *Handler) Group(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return
	}
	actor := middleware.ActorFrom(c)
	if !actor.IsAdmin() && !actor.InGroup(id) {
		response.Forbidden(c, "not a member of this group")
		return
	}
	ctx := c.Request.Context()
	g, err := h.groups.GetByID(ctx, id)
	if err != nil {
		h.fail(c, err, "group")
		return
	}
	rows, err := h.src.GroupEvents(ctx, id)
	if err != nil {
		h.fail(c, err, "group")
		return
	}
	contacts, err := h.src.GroupContacts(ctx, id)
	if err != nil {
		h.fail(c, err, "group")
		return
	}
	out := GroupSummary{GroupID: g.ID, GroupName: g.Name, Contacts: contacts, Events: rows}
	for _, r := range rows {
		out.Totals.Add(r.StatusCounts)
	}
	out.Total = out.Totals.Total()
	response.OK(c, out)
}
