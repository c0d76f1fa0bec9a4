package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	group := uuid.New()
	u := &models.User{ID: uuid.New(), Email: "dir@example.com", Role: models.RoleDirector, InviterGroupID: &group}

	token, err := svc.Generate(u)
	require.NoError(t, err)

	actor, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, actor.UserID)
	assert.Equal(t, models.RoleDirector, actor.Role)
	require.NotNil(t, actor.GroupID)
	assert.Equal(t, group, *actor.GroupID)

	_, err = NewJWTService("other", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTExpired(t *testing.T) {
	svc := NewJWTService("secret", -1)
	token, err := svc.Generate(&models.User{ID: uuid.New(), Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsUnknownRole(t *testing.T) {
	svc := NewJWTService("secret", 1)
	token, err := svc.Generate(&models.User{ID: uuid.New(), Role: models.Role("host")})
	require.NoError(t, err)
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsForeignIssuer(t *testing.T) {
	claims := Claims{
		UserID: uuid.New(),
		Role:   string(models.RoleAdmin),
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{"checkin-console"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewJWTService("secret", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
