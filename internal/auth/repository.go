package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-events/backend/internal/models"
)

// ErrUserNotFound is returned when no user matches.
var ErrUserNotFound = errors.New("user not found")

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, password_hash, full_name, role, inviter_group_id, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.InviterGroupID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// List returns all users, optionally limited to one inviter group.
func (r *Repository) List(ctx context.Context, groupID *uuid.UUID) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, full_name, role, inviter_group_id, is_active, created_at
		FROM users WHERE ($1::uuid IS NULL OR inviter_group_id = $1) ORDER BY full_name, email`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.UserPublic{}
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.InviterGroupID, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, role models.Role, groupID *uuid.UUID) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, full_name, role, inviter_group_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, email, passwordHash, fullName, string(role), groupID))
}

// UpdateParams holds the mutable fields of a user. Nil fields are left unchanged.
type UpdateParams struct {
	FullName     *string
	Role         *models.Role
	GroupID      *uuid.UUID
	ClearGroup   bool
	IsActive     *bool
	PasswordHash *string
}

// Update applies p to the user.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*models.User, error) {
	const q = `UPDATE users SET
		full_name = COALESCE($2, full_name),
		role = COALESCE($3, role),
		inviter_group_id = CASE WHEN $5 THEN NULL ELSE COALESCE($4, inviter_group_id) END,
		is_active = COALESCE($6, is_active),
		password_hash = COALESCE($7, password_hash),
		updated_at = NOW()
		WHERE id = $1 RETURNING ` + userColumns
	var role *string
	if p.Role != nil {
		s := string(*p.Role)
		role = &s
	}
	return scanUser(r.pool.QueryRow(ctx, q, id, p.FullName, role, p.GroupID, p.ClearGroup, p.IsActive, p.PasswordHash))
}
