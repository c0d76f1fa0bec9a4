package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aura-events/backend/internal/models"
)

// Issuer marks user tokens so check-in console tokens signed with the same secret are not accepted here.
const Issuer = "aura-events/users"

var ErrInvalidToken = errors.New("invalid token")

// Claims holds JWT claims including user ID, role and inviter group.
type Claims struct {
	UserID  uuid.UUID  `json:"user_id"`
	Email   string     `json:"email"`
	Role    string     `json:"role"`
	GroupID *uuid.UUID `json:"inviter_group_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTService handles token generation and validation.
type JWTService struct {
	secret      []byte
	expireHours int
}

// NewJWTService creates a JWT service.
func NewJWTService(secret string, expireHours int) *JWTService {
	return &JWTService{
		secret:      []byte(secret),
		expireHours: expireHours,
	}
}

// Generate issues a session token for the user.
func (s *JWTService) Generate(u *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:  u.ID,
		Email:   u.Email,
		Role:    string(u.Role),
		GroupID: u.InviterGroupID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate checks signature, expiry and issuer and returns the claims.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(Issuer), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || !models.Role(claims.Role).Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate validates the token and returns the caller it identifies.
func (s *JWTService) Authenticate(tokenString string) (models.Actor, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{UserID: claims.UserID, Role: models.Role(claims.Role), GroupID: claims.GroupID}, nil
}
