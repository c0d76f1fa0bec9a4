package livedashboard

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/response"
)

// RecentLimit is how many check-ins the public dashboard shows.
const RecentLimit = 5

// EventLookup resolves events by their public code.
type EventLookup interface {
	GetByCode(ctx context.Context, code string) (*models.Event, error)
}

// EventInfo is the public header of a live dashboard.
type EventInfo struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	Code      string             `json:"code"`
	Venue     string             `json:"venue,omitempty"`
	StartDate time.Time          `json:"start_date"`
	EndDate   time.Time          `json:"end_date"`
	Status    models.EventStatus `json:"status"`
	HasLogo   bool               `json:"has_logo"`
	Viewers   int                `json:"viewers"`
}

// Snapshot is sent to a viewer right after the socket opens.
type Snapshot struct {
	Stats  models.AttendanceStats `json:"stats"`
	Recent []models.RecentCheckIn `json:"recent"`
}

// Handler serves the public live dashboard.
type Handler struct {
	events EventLookup
	mgr    *lifecycle.Manager
	hub    *Hub
	logger *zap.Logger
}

// NewHandler creates a live dashboard handler.
func NewHandler(events EventLookup, mgr *lifecycle.Manager, hub *Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{events: events, mgr: mgr, hub: hub, logger: logger}
}

func (h *Handler) event(c *gin.Context) (*models.Event, bool) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		response.BadRequest(c, "event code required")
		return nil, false
	}
	e, err := h.events.GetByCode(c.Request.Context(), code)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return e, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := lifecycle.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("live dashboard request failed", zap.Error(err), zap.String("path", c.FullPath()))
		response.Internal(c, "internal error")
		return
	}
	if status == http.StatusNotFound {
		response.NotFound(c, "event not found")
		return
	}
	response.Fail(c, status, err.Error())
}

// Info handles GET /live/:code.
func (h *Handler) Info(c *gin.Context) {
	e, ok := h.event(c)
	if !ok {
		return
	}
	info := EventInfo{
		ID:        e.ID,
		Name:      e.Name,
		Venue:     e.Venue,
		StartDate: e.StartDate,
		EndDate:   e.EndDate,
		Status:    e.Status(h.mgr.Now()),
		HasLogo:   e.LogoKey != "",
		Viewers:   h.hub.ViewerCount(e.ID),
	}
	if e.Code != nil {
		info.Code = *e.Code
	}
	response.OK(c, info)
}

// Stats handles GET /live/:code/stats.
func (h *Handler) Stats(c *gin.Context) {
	e, ok := h.event(c)
	if !ok {
		return
	}
	stats, err := h.mgr.Stats(c.Request.Context(), e.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, stats)
}

// Recent handles GET /live/:code/recent.
func (h *Handler) Recent(c *gin.Context) {
	e, ok := h.event(c)
	if !ok {
		return
	}
	list, err := h.mgr.RecentCheckIns(c.Request.Context(), e.ID, RecentLimit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []models.RecentCheckIn{}
	}
	response.OK(c, list)
}

// Serve handles GET /live/:code/ws and keeps the viewer subscribed to its event.
func (h *Handler) Serve(c *gin.Context) {
	e, ok := h.event(c)
	if !ok {
		return
	}
	snap, err := h.snapshot(c.Request.Context(), e.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := newClient(h.hub, e.ID, conn, h.logger)
	h.hub.Register(client)
	if data, err := encode(snap); err == nil {
		client.send <- Message{Event: "snapshot", Data: data}
	}
	go client.writePump()
	client.readPump()
}

func (h *Handler) snapshot(ctx context.Context, eventID uuid.UUID) (Snapshot, error) {
	stats, err := h.mgr.Stats(ctx, eventID)
	if err != nil {
		return Snapshot{}, err
	}
	recent, err := h.mgr.RecentCheckIns(ctx, eventID, RecentLimit)
	if err != nil {
		return Snapshot{}, err
	}
	if recent == nil {
		recent = []models.RecentCheckIn{}
	}
	return Snapshot{Stats: stats, Recent: recent}, nil
}
