package events

import (
	"bytes"
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

func TestView(t *testing.T) {
	start := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	pin := "123456"
	e := &models.Event{ID: uuid.New(), Name: "Gala", StartDate: start, EndDate: start.Add(4 * time.Hour), CheckinPin: &pin, CheckinPinActive: true}

	v := View(e, start.Add(-time.Hour))
	assert.Equal(t, models.EventUpcoming, v.Status)
	assert.True(t, v.CanAddInvitees)
	assert.True(t, v.CheckinPinActive)
	assert.True(t, v.HasCheckinPin)

	v = View(e, start.Add(5*time.Hour))
	assert.Equal(t, models.EventEnded, v.Status)
	assert.False(t, v.CanAddInvitees)

	cancelled := models.EventCancelled
	e.ManualStatus = &cancelled
	v = View(e, start.Add(time.Hour))
	assert.Equal(t, models.EventCancelled, v.Status)
	assert.False(t, v.CheckinPinActive)
}

func TestParseManualStatus(t *testing.T) {
	st, err := ParseManualStatus(nil)
	require.NoError(t, err)
	assert.Nil(t, st)

	s := "on_hold"
	st, err = ParseManualStatus(&s)
	require.NoError(t, err)
	assert.Equal(t, models.EventOnHold, *st)

	s = "ongoing"
	_, err = ParseManualStatus(&s)
	assert.ErrorIs(t, err, errStatus)
}

func TestValidateQuotas(t *testing.T) {
	g := uuid.New()
	neg := -1
	ten := 10

	assert.NoError(t, ValidateQuotas(nil))
	assert.NoError(t, ValidateQuotas([]models.EventGroupQuota{{InviterGroupID: g, Quota: &ten}, {InviterGroupID: uuid.New()}}))
	assert.Error(t, ValidateQuotas([]models.EventGroupQuota{{InviterGroupID: g}, {InviterGroupID: g}}))
	assert.Error(t, ValidateQuotas([]models.EventGroupQuota{{InviterGroupID: g, Quota: &neg}}))
	assert.Error(t, ValidateQuotas([]models.EventGroupQuota{{}}))
}

func TestCreateRejectsReversedDates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, nil, nil, nil, nil)
	r := gin.New()
	r.POST("/events", h.Create)

	body := `{"name":"Gala","start_date":"2026-05-02T18:00:00Z","end_date":"2026-05-01T18:00:00Z"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), errDates.Error())
}

func TestUploadLogoWithoutStorage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, nil, nil, nil, nil)
	r := gin.New()
	r.POST("/events/:id/logo", h.UploadLogo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events/"+uuid.NewString()+"/logo", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
