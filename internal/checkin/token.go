package checkin

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidConsoleToken is returned for malformed, expired or foreign console tokens.
var ErrInvalidConsoleToken = errors.New("invalid console token")

const consoleAudience = "checkin-console"

// ConsoleClaims bind a console session to one event and one PIN version.
type ConsoleClaims struct {
	EventID    uuid.UUID `json:"event_id"`
	PinVersion int       `json:"pin_version"`
	jwt.RegisteredClaims
}

// ConsoleTokens issues and validates check-in console tokens.
type ConsoleTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewConsoleTokens creates a console token service.
func NewConsoleTokens(secret string, ttlHours int) *ConsoleTokens {
	if ttlHours <= 0 {
		ttlHours = 12
	}
	return &ConsoleTokens{secret: []byte(secret), ttl: time.Duration(ttlHours) * time.Hour}
}

// Issue signs a token for eventID at pinVersion.
func (t *ConsoleTokens) Issue(eventID uuid.UUID, pinVersion int, now time.Time) (string, error) {
	claims := ConsoleClaims{
		EventID:    eventID,
		PinVersion: pinVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{consoleAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse validates a console token and returns its claims.
func (t *ConsoleTokens) Parse(token string, now time.Time) (*ConsoleClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &ConsoleClaims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidConsoleToken
		}
		return t.secret, nil
	}, jwt.WithAudience(consoleAudience), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		return nil, ErrInvalidConsoleToken
	}
	claims, ok := parsed.Claims.(*ConsoleClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidConsoleToken
	}
	return claims, nil
}
