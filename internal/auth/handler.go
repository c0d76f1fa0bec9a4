package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/response"
)

// CreateUserRequest is the body for POST /users.
type CreateUserRequest struct {
	Email          string     `json:"email" binding:"required,email"`
	Password       string     `json:"password" binding:"required,min=8"`
	FullName       string     `json:"full_name" binding:"required"`
	Role           string     `json:"role" binding:"required"`
	InviterGroupID *uuid.UUID `json:"inviter_group_id"`
}

// UpdateUserRequest is the body for PATCH /users/:id.
type UpdateUserRequest struct {
	FullName       *string    `json:"full_name"`
	Role           *string    `json:"role"`
	InviterGroupID *uuid.UUID `json:"inviter_group_id"`
	ClearGroup     bool       `json:"clear_group"`
	IsActive       *bool      `json:"is_active"`
	Password       *string    `json:"password"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth and user HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// needsGroup reports whether users with role r must belong to an inviter group.
func needsGroup(r models.Role) bool {
	return r == models.RoleDirector || r == models.RoleOrganizer
}

// Create handles POST /users (admin only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	role := models.Role(req.Role)
	if !role.Valid() {
		response.BadRequest(c, "invalid role")
		return
	}
	if needsGroup(role) && req.InviterGroupID == nil {
		response.BadRequest(c, "inviter_group_id is required for "+req.Role)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	user, err := h.repo.Create(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)), hash, req.FullName, role, req.InviterGroupID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			response.Conflict(c, "email already registered")
			return
		}
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}
	response.Created(c, user.ToPublic())
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !PasswordMatches(user.Password, req.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !user.IsActive {
		response.Forbidden(c, "account is disabled")
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	user, err := h.repo.GetByID(c.Request.Context(), actor.UserID)
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, user.ToPublic())
}

// List handles GET /users. Directors only see their own group.
func (h *Handler) List(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	var groupID *uuid.UUID
	if !actor.IsAdmin() {
		groupID = actor.GroupID
		if groupID == nil {
			response.OK(c, []models.UserPublic{})
			return
		}
	}
	list, err := h.repo.List(c.Request.Context(), groupID)
	if err != nil {
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}

// Update handles PATCH /users/:id (admin only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	p := UpdateParams{FullName: req.FullName, GroupID: req.InviterGroupID, ClearGroup: req.ClearGroup, IsActive: req.IsActive}
	if req.Role != nil {
		role := models.Role(*req.Role)
		if !role.Valid() {
			response.BadRequest(c, "invalid role")
			return
		}
		p.Role = &role
	}
	if req.Password != nil {
		hash, err := HashPassword(*req.Password)
		if errors.Is(err, ErrPasswordTooShort) {
			response.BadRequest(c, err.Error())
			return
		}
		if err != nil {
			response.Internal(c, "failed to hash password")
			return
		}
		p.PasswordHash = &hash
	}
	user, err := h.repo.Update(c.Request.Context(), id, p)
	if errors.Is(err, ErrUserNotFound) {
		response.NotFound(c, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("update user", zap.Error(err), zap.String("user_id", id.String()))
		response.Internal(c, "failed to update user")
		return
	}
	response.OK(c, user.ToPublic())
}
