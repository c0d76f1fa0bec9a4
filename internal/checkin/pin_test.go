package checkin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/models"
)

func TestPinActive(t *testing.T) {
	pin := "123456"
	cancelled := models.EventCancelled
	base := gala()
	end := base.EndDate

	tests := []struct {
		name   string
		mutate func(e *models.Event)
		now    time.Time
		want   bool
	}{
		{"no pin", func(e *models.Event) { e.CheckinPin = nil }, baseTime, false},
		{"stored inactive", func(e *models.Event) { e.CheckinPinActive = false }, baseTime, false},
		{"upcoming", nil, baseTime, true},
		{"cancelled", func(e *models.Event) { e.ManualStatus = &cancelled }, baseTime, false},
		{"manual window after end", nil, end.Add(72 * time.Hour), true},
		{"within window", func(e *models.Event) { e.CheckinPinAutoDeactivateHrs = hours(2) }, end.Add(2 * time.Hour), true},
		{"past window", func(e *models.Event) { e.CheckinPinAutoDeactivateHrs = hours(2) }, end.Add(3 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			e.CheckinPin = &pin
			e.CheckinPinActive = true
			if tt.mutate != nil {
				tt.mutate(&e)
			}
			assert.Equal(t, tt.want, PinActive(&e, tt.now))
		})
	}
}

func TestCheckinAllowed(t *testing.T) {
	e := gala()
	assert.True(t, CheckinAllowed(&e, baseTime))
	assert.True(t, CheckinAllowed(&e, e.StartDate.Add(time.Hour)))
	assert.False(t, CheckinAllowed(&e, e.EndDate.Add(time.Minute)), "ended without window")

	e.CheckinPinAutoDeactivateHrs = hours(2)
	assert.True(t, CheckinAllowed(&e, e.EndDate.Add(90*time.Minute)))
	assert.False(t, CheckinAllowed(&e, e.EndDate.Add(3*time.Hour)))

	onHold := models.EventOnHold
	e.ManualStatus = &onHold
	assert.False(t, CheckinAllowed(&e, baseTime))
}

func TestGeneratePin(t *testing.T) {
	for i := 0; i < 50; i++ {
		pin, err := GeneratePin()
		require.NoError(t, err)
		require.Len(t, pin, 6)
		for _, r := range pin {
			assert.True(t, r >= '0' && r <= '9', pin)
		}
	}
}

func TestEventCode(t *testing.T) {
	assert.Equal(t, "GALA", EventCodeBase("Gala Dinner"))
	assert.Equal(t, "AB12", EventCodeBase("a-b 1/2 3"))
	assert.Equal(t, DefaultEventCodeBase, EventCodeBase("ü!"))
	assert.Equal(t, "X1", EventCodeBase("x 1"))

	code, err := NewEventCode("Gala Dinner")
	require.NoError(t, err)
	assert.Regexp(t, `^GALA[0-9]{4}$`, code)
}

func TestDeviceInfo(t *testing.T) {
	tests := map[string]string{
		"": "Unknown Device",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1": "iPhone - Safari (Mobile)",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0":                  "Windows - Edge (Desktop)",
		"Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36":                              "Android - Chrome (Mobile)",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.1; rv:121.0) Gecko/20100101 Firefox/121.0":                                                    "Mac - Firefox (Desktop)",
	}
	for ua, want := range tests {
		assert.Equal(t, want, DeviceInfo(ua), ua)
	}
}
