package attendance

import (
	"bytes"
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
	"github.com/aura-events/backend/pkg/queue"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type eventsByID map[uuid.UUID]*models.Event

func (m eventsByID) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if e, ok := m[id]; ok {
		return e, nil
	}
	return nil, lifecycle.ErrNotFound
}

type exportSpy struct{ payloads []queue.ExportPayload }

func (s *exportSpy) EnqueueExport(_ context.Context, p queue.ExportPayload) (string, error) {
	s.payloads = append(s.payloads, p)
	return "job-1", nil
}

type fixture struct {
	t       *testing.T
	store   *lifecycle.MemoryStore
	router  *gin.Engine
	event   models.Event
	group   models.InviterGroup
	guest   models.EventInvitee
	exports *exportSpy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{t: t, store: lifecycle.NewMemoryStore(), exports: &exportSpy{}}
	f.group = models.InviterGroup{ID: uuid.New(), Name: "Protocol"}
	f.store.AddGroup(f.group)
	f.event = models.Event{ID: uuid.New(), Name: "Annual Gala", StartDate: now.Add(-time.Hour), EndDate: now.Add(3 * time.Hour)}
	f.store.AddEvent(f.event)
	inv := models.Invitee{ID: uuid.New(), Name: "Rania Kassem", Phone: "+962 79 123 4567", PlusOne: 2, InviterGroupID: f.group.ID}
	f.store.AddInvitee(inv)
	f.guest = models.EventInvitee{ID: uuid.New(), EventID: f.event.ID, InviteeID: inv.ID, Status: models.StatusApproved, PlusOne: 2, CreatedAt: now}
	f.store.AddAssociation(f.guest)

	mgr := lifecycle.NewManager(f.store, nil)
	mgr.SetClock(func() time.Time { return now })
	h := NewHandler(mgr, eventsByID{f.event.ID: &f.event}, f.exports, "https://events.example.com/", nil)

	admin := models.Actor{UserID: uuid.New(), Role: models.RoleAdmin}
	r := gin.New()
	r.POST("/portal/verify-code", h.VerifyCode)
	r.POST("/portal/verify-phone", h.VerifyPhone)
	r.POST("/portal/confirm", h.PortalConfirm)
	r.GET("/portal/qr/:code", h.QRCode)
	api := r.Group("", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, admin.UserID)
		c.Set(middleware.ContextUserRole, admin.Role)
		c.Next()
	})
	api.GET("/events/:id/attendance/stats", h.Stats)
	api.GET("/events/:id/attendance/attendees", h.Attendees)
	api.POST("/events/:id/attendance/generate-codes", h.GenerateCodes)
	api.GET("/events/:id/attendance/export", h.Export)
	api.POST("/events/:id/attendance/export", h.ExportAsync)
	api.POST("/attendance/mark-sent", h.MarkSent)
	api.POST("/attendance/confirm", h.Confirm)
	api.POST("/attendance/check-in", h.CheckIn)
	api.POST("/attendance/:id/undo-check-in", h.UndoCheckIn)
	f.router = r
	return f
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func data(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestAttendanceFlow(t *testing.T) {
	f := newFixture(t)
	base := "/events/" + f.event.ID.String() + "/attendance"

	w := f.do(http.MethodPost, base+"/generate-codes", GenerateCodesRequest{Prefix: "gala"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var gen struct {
		Generated int                    `json:"generated"`
		Items     []lifecycle.ItemResult `json:"items"`
	}
	data(t, w, &gen)
	require.Equal(t, 1, gen.Generated)
	code := gen.Items[0].Code
	assert.Regexp(t, `^GALA-[A-Z2-9]{4}$`, code)

	w = f.do(http.MethodPost, "/attendance/mark-sent", MarkSentRequest{IDs: []uuid.UUID{f.guest.ID}, Method: "carrier pigeon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodPost, "/attendance/mark-sent", MarkSentRequest{IDs: []uuid.UUID{f.guest.ID, uuid.New()}, Method: models.MethodWhatsApp})
	require.Equal(t, http.StatusOK, w.Code)
	var sent map[string]json.RawMessage
	data(t, w, &sent)
	assert.JSONEq(t, "1", string(sent["updated"]))
	assert.JSONEq(t, "1", string(sent["success_count"]))
	assert.JSONEq(t, "1", string(sent["failed_count"]))
	assert.JSONEq(t, "[]", string(sent["warnings"]))

	w = f.do(http.MethodPost, "/attendance/confirm", ConfirmRequest{IDs: []uuid.UUID{f.guest.ID}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	coming, guests := true, 5
	w = f.do(http.MethodPost, "/attendance/confirm", ConfirmRequest{IDs: []uuid.UUID{f.guest.ID}, IsComing: &coming, Guests: &guests})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/attendance/check-in", CheckInRequest{Code: " " + code + " ", Guests: 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ei models.EventInvitee
	data(t, w, &ei)
	assert.True(t, ei.CheckedIn)
	assert.Equal(t, 2, ei.ConfirmedGuests)

	w = f.do(http.MethodPost, "/attendance/check-in", CheckInRequest{Code: code})
	assert.Equal(t, http.StatusConflict, w.Code)

	var stats models.AttendanceStats
	data(t, f.do(http.MethodGet, base+"/stats", nil), &stats)
	assert.Equal(t, 1, stats.CheckedIn)
	assert.Equal(t, 100.0, stats.AttendanceRate)

	w = f.do(http.MethodPost, "/attendance/"+f.guest.ID.String()+"/undo-check-in", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data(t, w, &ei)
	assert.False(t, ei.CheckedIn)
	require.NotNil(t, ei.AttendanceConfirmed)
	assert.True(t, *ei.AttendanceConfirmed)

	var list struct {
		Total int `json:"total"`
	}
	data(t, f.do(http.MethodGet, base+"/attendees?checked_in=false&confirmed=yes", nil), &list)
	assert.Equal(t, 1, list.Total)
}

func TestPortal(t *testing.T) {
	f := newFixture(t)
	code := "GALA-WXYZ"
	f.guest.AttendanceCode = &code
	f.store.AddAssociation(f.guest)

	w := f.do(http.MethodPost, "/portal/verify-code", PortalCodeRequest{Code: "gala-wxyz"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var a lifecycle.PortalAttendee
	data(t, w, &a)
	assert.Equal(t, "Rania Kassem", a.Name)
	assert.Equal(t, "Annual Gala", a.EventName)

	w = f.do(http.MethodPost, "/portal/verify-phone", PortalPhoneRequest{Phone: "00962-791234567"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/portal/verify-code", PortalCodeRequest{Code: "NOPE-0000"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, "/portal/qr/"+code+"?size=200", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestPortalConfirm(t *testing.T) {
	f := newFixture(t)
	code := "GALA-WXYZ"
	f.guest.AttendanceCode = &code
	f.store.AddAssociation(f.guest)
	yes, guests := true, 5

	w := f.do(http.MethodPost, "/portal/confirm", PortalConfirmRequest{Code: "gala-wxyz", IsComing: &yes, Guests: &guests})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var a lifecycle.PortalAttendee
	data(t, w, &a)
	require.NotNil(t, a.AttendanceConfirmed)
	assert.True(t, *a.AttendanceConfirmed)
	assert.Equal(t, 2, a.ConfirmedGuests)

	w = f.do(http.MethodPost, "/portal/confirm", PortalConfirmRequest{Code: code})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/portal/confirm", PortalConfirmRequest{Code: "NOPE-0000", IsComing: &yes})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	base := "/events/" + f.event.ID.String() + "/attendance/export"

	w := f.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Annual Gala-attendees-20260310.xlsx")
	assert.Equal(t, "PK", w.Body.String()[:2])

	w = f.do(http.MethodPost, base+"?q=rania", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.exports.payloads, 1)
	assert.Equal(t, f.event.ID, f.exports.payloads[0].EventID)
	assert.Equal(t, "rania", f.exports.payloads[0].Search)

	w = f.do(http.MethodGet, "/events/"+uuid.NewString()+"/attendance/export", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
