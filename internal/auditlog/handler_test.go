package auditlog

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

	"github.com/aura-events/backend/internal/models"
)

type readerSpy struct {
	last Filter
	logs []models.AuditLog
}

func (r *readerSpy) List(_ context.Context, f Filter) ([]models.AuditLog, int, error) {
	r.last = f
	return r.logs, len(r.logs), nil
}

func (r *readerSpy) Actions(context.Context) ([]string, error) {
	return []string{"approve_invitation", "check_in_attendee"}, nil
}

func filterFor(t *testing.T, query string) (Filter, error) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/reports/activity-log?"+query, nil)
	return ParseFilter(c)
}

func TestParseFilter(t *testing.T) {
	f, err := filterFor(t, "")
	require.NoError(t, err)
	assert.Equal(t, defaultLimit, f.Limit)
	assert.Nil(t, f.UserID)

	user := uuid.New()
	f, err = filterFor(t, "action=approve_invitation&user_id="+user.String()+"&from=2026-03-01&to=2026-03-01&limit=9999&offset=20")
	require.NoError(t, err)
	assert.Equal(t, "approve_invitation", f.Action)
	assert.Equal(t, user, *f.UserID)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *f.From)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *f.To)
	assert.Equal(t, maxLimit, f.Limit)
	assert.Equal(t, 20, f.Offset)

	f, err = filterFor(t, "to=2026-03-01T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), *f.To)

	for _, q := range []string{"user_id=bob", "from=yesterday", "limit=0", "offset=-1"} {
		_, err := filterFor(t, q)
		assert.ErrorIs(t, err, errBadFilter, q)
	}
}

func TestList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	spy := &readerSpy{logs: []models.AuditLog{{ID: uuid.New(), Action: "check_in_attendee", TableName: "event_invitees"}}}
	h := NewHandler(spy, nil)
	r := gin.New()
	r.GET("/reports/activity-log", h.List)
	r.GET("/reports/activity-log/actions", h.Actions)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/activity-log?action=check_in_attendee", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data Page `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Data.Total)
	assert.Equal(t, "check_in_attendee", spy.last.Action)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/activity-log?user_id=x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/activity-log/actions", nil))
	assert.Contains(t, w.Body.String(), "approve_invitation")
}
