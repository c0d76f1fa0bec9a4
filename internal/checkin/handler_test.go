package checkin

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
	"github.com/aura-events/backend/internal/models"
)

type consoleFixture struct {
	*serviceFixture
	mem    *lifecycle.MemoryStore
	router *gin.Engine
	event  *models.Event
	code   string
	pin    string
	guest  models.EventInvitee
}

func newConsoleFixture(t *testing.T) *consoleFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &consoleFixture{serviceFixture: newServiceFixture(t), mem: lifecycle.NewMemoryStore()}

	f.event = f.store.add(gala())
	st, err := f.svc.GeneratePin(context.Background(), f.event.ID, nil, f.admin)
	require.NoError(t, err)
	f.code, f.pin = st.EventCode, st.Pin

	group := models.InviterGroup{ID: uuid.New(), Name: "Protocol"}
	f.mem.AddGroup(group)
	f.mem.AddEvent(*f.event)
	inv := models.Invitee{ID: uuid.New(), Name: "Rania Kassem", Phone: "+962 79 123 4567", PlusOne: 2, InviterGroupID: group.ID}
	f.mem.AddInvitee(inv)
	code := "GALA-ABCD"
	f.guest = models.EventInvitee{ID: uuid.New(), EventID: f.event.ID, InviteeID: inv.ID, Status: models.StatusApproved,
		PlusOne: 2, AttendanceCode: &code, CreatedAt: baseTime}
	f.mem.AddAssociation(f.guest)

	mgr := lifecycle.NewManager(f.mem, nil)
	mgr.SetClock(func() time.Time { return f.now })
	h := NewHandler(f.svc, mgr, nil)

	r := gin.New()
	r.GET("/checkin/:code/info", h.Info)
	r.POST("/checkin/:code/verify-pin", h.VerifyPin)
	r.POST("/checkin/:code/logout", h.Logout)
	console := r.Group("/checkin/:code", h.ConsoleAuth())
	console.GET("/stats", h.Stats)
	console.GET("/attendees", h.Attendees)
	console.GET("/search", h.Search)
	console.POST("/check-in", h.CheckIn)
	console.POST("/undo-check-in/:id", h.UndoCheckIn)
	console.GET("/recent-checkins", h.Recent)
	f.router = r
	return f
}

func (f *consoleFixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) Mobile Safari/604.1")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
	return env
}

func (f *consoleFixture) login(t *testing.T) string {
	t.Helper()
	w := f.do(http.MethodPost, "/checkin/"+f.code+"/verify-pin", "", gin.H{"pin": f.pin})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	decode(t, w, &out)
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestConsoleLoginFlow(t *testing.T) {
	f := newConsoleFixture(t)

	w := f.do(http.MethodPost, "/checkin/"+f.code+"/verify-pin", "", gin.H{"pin": "000000x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = f.do(http.MethodPost, "/checkin/NOPE0000/verify-pin", "", gin.H{"pin": f.pin})
	assert.Equal(t, http.StatusNotFound, w.Code)

	token := f.login(t)
	assert.Equal(t, "checkin_portal_login", f.audit.entries[len(f.audit.entries)-1].Action)
	assert.Contains(t, f.audit.entries[len(f.audit.entries)-1].NewValue, "iPad - Safari (Mobile)")

	var info struct {
		IsVerified bool `json:"is_verified"`
		Event      struct {
			CheckinAvailable bool `json:"checkin_available"`
		} `json:"event"`
	}
	decode(t, f.do(http.MethodGet, "/checkin/"+f.code+"/info", token, nil), &info)
	assert.True(t, info.IsVerified)
	assert.True(t, info.Event.CheckinAvailable)

	w = f.do(http.MethodGet, "/checkin/"+f.code+"/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"requires_pin":true`)

	w = f.do(http.MethodPost, "/checkin/"+f.code+"/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "checkin_portal_logout", f.audit.entries[len(f.audit.entries)-1].Action)
}

func TestConsoleCheckIn(t *testing.T) {
	f := newConsoleFixture(t)
	token := f.login(t)

	w := f.do(http.MethodGet, "/checkin/"+f.code+"/search?q=r", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var found struct {
		Results []models.Attendee `json:"results"`
	}
	decode(t, f.do(http.MethodGet, "/checkin/"+f.code+"/search?q=4567", token, nil), &found)
	require.Len(t, found.Results, 1)
	assert.Equal(t, f.guest.ID, found.Results[0].ID)

	w = f.do(http.MethodPost, "/checkin/"+f.code+"/check-in", token, gin.H{"event_invitee_id": f.guest.ID, "actual_guests": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ei models.EventInvitee
	decode(t, w, &ei)
	assert.True(t, ei.CheckedIn)
	assert.Equal(t, 2, ei.ActualGuests, "clamped to plus one")

	w = f.do(http.MethodPost, "/checkin/"+f.code+"/check-in", token, gin.H{"event_invitee_id": f.guest.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"already_checked_in":true`)

	var recent struct {
		Recent []models.Attendee `json:"recent_checkins"`
	}
	decode(t, f.do(http.MethodGet, "/checkin/"+f.code+"/recent-checkins", token, nil), &recent)
	require.Len(t, recent.Recent, 1)

	w = f.do(http.MethodPost, "/checkin/"+f.code+"/undo-check-in/"+f.guest.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats struct {
		Stats models.AttendanceStats `json:"stats"`
	}
	decode(t, f.do(http.MethodGet, "/checkin/"+f.code+"/stats", token, nil), &stats)
	assert.Equal(t, 1, stats.Stats.TotalApproved)
	assert.Zero(t, stats.Stats.CheckedIn)
}

func TestConsoleRejectsForeignAttendee(t *testing.T) {
	f := newConsoleFixture(t)
	token := f.login(t)

	w := f.do(http.MethodPost, "/checkin/"+f.code+"/check-in", token, gin.H{"event_invitee_id": uuid.New()})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConsoleAfterWindowAndRegenerate(t *testing.T) {
	f := newConsoleFixture(t)
	token := f.login(t)

	_, err := f.svc.GeneratePin(context.Background(), f.event.ID, nil, f.admin)
	require.NoError(t, err)
	w := f.do(http.MethodGet, "/checkin/"+f.code+"/attendees", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "older PIN version")

	st, err := f.svc.Pin(context.Background(), f.event.ID)
	require.NoError(t, err)
	f.pin = st.Pin
	f.now = f.event.EndDate.Add(time.Hour)
	token = f.login(t)

	w = f.do(http.MethodGet, "/checkin/"+f.code+"/attendees", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "ended event with no window")
}
