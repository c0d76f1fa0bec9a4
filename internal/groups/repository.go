package groups

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/models"
)

// Repository handles inviter group and inviter persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a groups repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return lifecycle.ErrNotFound
	}
	return err
}

// Create creates an inviter group.
func (r *Repository) Create(ctx context.Context, g *models.InviterGroup) error {
	const q = `INSERT INTO inviter_groups (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, g.Name, g.Description).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
}

// GetByID returns an inviter group by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.InviterGroup, error) {
	const q = `SELECT id, name, description, created_at, updated_at FROM inviter_groups WHERE id = $1`
	var g models.InviterGroup
	if err := r.pool.QueryRow(ctx, q, id).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

// List returns every inviter group with member and contact counts.
func (r *Repository) List(ctx context.Context) ([]models.GroupSummary, error) {
	const q = `SELECT g.id, g.name, g.description, g.created_at, g.updated_at,
			(SELECT COUNT(*) FROM users u WHERE u.inviter_group_id = g.id),
			(SELECT COUNT(*) FROM inviters i WHERE i.inviter_group_id = g.id AND i.is_active),
			(SELECT COUNT(*) FROM invitees c WHERE c.inviter_group_id = g.id)
		FROM inviter_groups g
		ORDER BY g.name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.GroupSummary
	for rows.Next() {
		var s models.GroupSummary
		s.InviterGroup = &models.InviterGroup{}
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt,
			&s.Members, &s.Inviters, &s.Invitees); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Update changes name and/or description. Nil fields are left alone.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.InviterGroup, error) {
	const q = `UPDATE inviter_groups SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description, created_at, updated_at`
	var g models.InviterGroup
	if err := r.pool.QueryRow(ctx, q, id, name, description).
		Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

// Delete removes a group. Groups that still own contacts cannot be deleted (FK on invitees).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM inviter_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotFound
	}
	return nil
}

const inviterColumns = `id, name, email, phone, inviter_group_id, is_active, created_at, updated_at`

func scanInviter(row pgx.Row) (*models.Inviter, error) {
	var i models.Inviter
	if err := row.Scan(&i.ID, &i.Name, &i.Email, &i.Phone, &i.InviterGroupID, &i.IsActive, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &i, nil
}

// CreateInviter adds an inviter to a group.
func (r *Repository) CreateInviter(ctx context.Context, i *models.Inviter) error {
	const q = `INSERT INTO inviters (name, email, phone, inviter_group_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, i.Name, i.Email, i.Phone, i.InviterGroupID).
		Scan(&i.ID, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
}

// GetInviter returns an inviter by ID.
func (r *Repository) GetInviter(ctx context.Context, id uuid.UUID) (*models.Inviter, error) {
	return scanInviter(r.pool.QueryRow(ctx, `SELECT `+inviterColumns+` FROM inviters WHERE id = $1`, id))
}

// ListInviters returns the inviters of a group, active ones only unless all is set.
func (r *Repository) ListInviters(ctx context.Context, groupID uuid.UUID, all bool) ([]models.Inviter, error) {
	q := `SELECT ` + inviterColumns + ` FROM inviters WHERE inviter_group_id = $1`
	if !all {
		q += ` AND is_active`
	}
	q += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Inviter
	for rows.Next() {
		i, err := scanInviter(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *i)
	}
	return list, rows.Err()
}

// InviterUpdate holds optional inviter fields.
type InviterUpdate struct {
	Name     *string
	Email    *string
	Phone    *string
	IsActive *bool
}

// UpdateInviter applies the non-nil fields of p.
func (r *Repository) UpdateInviter(ctx context.Context, id uuid.UUID, p InviterUpdate) (*models.Inviter, error) {
	const q = `UPDATE inviters SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			phone = COALESCE($4, phone),
			is_active = COALESCE($5, is_active),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + inviterColumns
	return scanInviter(r.pool.QueryRow(ctx, q, id, p.Name, p.Email, p.Phone, p.IsActive))
}

// DeleteInviter removes an inviter. Contacts keep their row with inviter_id nulled.
func (r *Repository) DeleteInviter(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM inviters WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotFound
	}
	return nil
}
