package checkin

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"github.com/aura-events/backend/internal/models"
)

const (
	pinLength        = 6
	eventCodeDigits  = 4
	eventCodeMaxBase = 4
	// DefaultEventCodeBase is used when a name has fewer than two usable characters.
	DefaultEventCodeBase = "EVT"
)

// PinActive reports the effective state of the event's check-in PIN at now. The stored flag
// alone is not enough: the event must not be cancelled or on hold, and the PIN must not be
// past its auto-deactivate window.
func PinActive(e *models.Event, now time.Time) bool {
	if e.CheckinPin == nil || *e.CheckinPin == "" || !e.CheckinPinActive {
		return false
	}
	if e.Status(now).IsManual() {
		return false
	}
	return !PinExpired(e, now)
}

// PinExpired reports whether the auto-deactivate window has passed.
func PinExpired(e *models.Event, now time.Time) bool {
	if e.CheckinPinAutoDeactivateHrs == nil {
		return false
	}
	return now.After(windowEnd(e))
}

func windowEnd(e *models.Event) time.Time {
	return e.EndDate.Add(time.Duration(*e.CheckinPinAutoDeactivateHrs) * time.Hour)
}

// CheckinAllowed reports whether attendants may check guests in: the event is upcoming or
// ongoing, or it ended less than the auto-deactivate hours ago.
func CheckinAllowed(e *models.Event, now time.Time) bool {
	switch e.Status(now) {
	case models.EventUpcoming, models.EventOngoing:
		return true
	case models.EventEnded:
		return e.CheckinPinAutoDeactivateHrs != nil && !now.After(windowEnd(e))
	}
	return false
}

// GeneratePin returns a random 6-digit PIN.
func GeneratePin() (string, error) {
	return randomDigits(pinLength)
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// EventCodeBase is the first four ASCII letters or digits of name, upper-cased.
func EventCodeBase(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		if b.Len() == eventCodeMaxBase {
			break
		}
	}
	if b.Len() < 2 {
		return DefaultEventCodeBase
	}
	return b.String()
}

// NewEventCode returns EventCodeBase(name) followed by four random digits.
func NewEventCode(name string) (string, error) {
	suffix, err := randomDigits(eventCodeDigits)
	if err != nil {
		return "", err
	}
	return EventCodeBase(name) + suffix, nil
}
