package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
)

type fakeSource struct {
	groups []GroupRow
	events []EventRow
}

func (f fakeSource) EventGroups(context.Context, uuid.UUID) ([]GroupRow, error) { return f.groups, nil }
func (f fakeSource) GroupEvents(context.Context, uuid.UUID) ([]EventRow, error) { return f.events, nil }
func (f fakeSource) GroupContacts(context.Context, uuid.UUID) (int, error) { return 42, nil }

type eventsByID map[uuid.UUID]*models.Event

func (m eventsByID) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if e, ok := m[id]; ok {
		return e, nil
	}
	return nil, lifecycle.ErrNotFound
}

type groupsByID map[uuid.UUID]*models.InviterGroup

func (m groupsByID) GetByID(_ context.Context, id uuid.UUID) (*models.InviterGroup, error) {
	if g, ok := m[id]; ok {
		return g, nil
	}
	return nil, lifecycle.ErrNotFound
}

func TestScopeGroups(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	rows := []GroupRow{{GroupID: a}, {GroupID: b}}
	assert.Len(t, ScopeGroups(models.Actor{Role: models.RoleAdmin}, rows), 2)
	mine := ScopeGroups(models.Actor{Role: models.RoleDirector, GroupID: &b}, rows)
	require.Len(t, mine, 1)
	assert.Equal(t, b, mine[0].GroupID)
	assert.Empty(t, ScopeGroups(models.Actor{Role: models.RoleOrganizer}, rows))
}

func TestStatusCounts(t *testing.T) {
	var s StatusCounts
	s.Add(StatusCounts{Waiting: 1, Approved: 3, CheckedIn: 2, Guests: 4})
	s.Add(StatusCounts{Rejected: 2, Resubmitted: 1})
	assert.Equal(t, 7, s.Total())
	assert.Equal(t, 4, s.Guests)
}

func TestReports(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	groupA, groupB := uuid.New(), uuid.New()
	event := &models.Event{ID: uuid.New(), Name: "Gala", StartDate: now.Add(24 * time.Hour), EndDate: now.Add(30 * time.Hour)}
	store := lifecycle.NewMemoryStore()
	store.AddEvent(*event)
	mgr := lifecycle.NewManager(store, nil)
	mgr.SetClock(func() time.Time { return now })

	src := fakeSource{
		groups: []GroupRow{
			{GroupID: groupA, GroupName: "A", StatusCounts: StatusCounts{Approved: 2, Waiting: 1}},
			{GroupID: groupB, GroupName: "B", StatusCounts: StatusCounts{Rejected: 5}},
		},
		events: []EventRow{{EventID: event.ID, EventName: "Gala", StatusCounts: StatusCounts{Approved: 2}}},
	}
	h := NewHandler(src, eventsByID{event.ID: event}, groupsByID{groupA: {ID: groupA, Name: "A"}}, mgr, nil)

	actor := models.Actor{UserID: uuid.New(), Role: models.RoleDirector, GroupID: &groupA}
	r := gin.New()
	api := r.Group("", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, actor.UserID)
		c.Set(middleware.ContextUserRole, actor.Role)
		c.Set(middleware.ContextUserGroup, actor.GroupID)
		c.Next()
	})
	api.GET("/reports/events/:id", h.Event)
	api.GET("/reports/groups/:id", h.Group)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/events/"+event.ID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var ev struct {
		Data EventSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ev))
	assert.Equal(t, models.EventUpcoming, ev.Data.Status)
	require.Len(t, ev.Data.Groups, 1)
	assert.Equal(t, 3, ev.Data.Total)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/groups/"+groupA.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var gr struct {
		Data GroupSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gr))
	assert.Equal(t, 42, gr.Data.Contacts)
	assert.Equal(t, 2, gr.Data.Total)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/groups/"+groupB.String(), nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/events/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
