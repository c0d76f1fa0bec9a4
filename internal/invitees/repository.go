package invitees

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/models"
)

// Repository handles contact and category persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an invitees repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const inviteeColumns = `id, name, email, phone, secondary_phone, title, company, position, plus_one,
	category_id, inviter_id, inviter_group_id, created_by, created_at, updated_at`

func scanInvitee(row pgx.Row) (*models.Invitee, error) {
	var i models.Invitee
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.Phone, &i.SecondaryPhone, &i.Title, &i.Company, &i.Position, &i.PlusOne,
		&i.CategoryID, &i.InviterID, &i.InviterGroupID, &i.CreatedBy, &i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lifecycle.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// Create inserts a contact.
func (r *Repository) Create(ctx context.Context, i *models.Invitee) error {
	const q = `INSERT INTO invitees (name, email, phone, secondary_phone, title, company, position, plus_one,
			category_id, inviter_id, inviter_group_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, i.Name, i.Email, i.Phone, i.SecondaryPhone, i.Title, i.Company, i.Position, i.PlusOne,
		i.CategoryID, i.InviterID, i.InviterGroupID, i.CreatedBy).Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt)
}

// GetByID returns a contact by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invitee, error) {
	return scanInvitee(r.pool.QueryRow(ctx, `SELECT `+inviteeColumns+` FROM invitees WHERE id = $1`, id))
}

// Filter narrows List.
type Filter struct {
	GroupID    *uuid.UUID
	CategoryID *uuid.UUID
	InviterID  *uuid.UUID
	Search     string
	Limit      int
	Offset     int
}

// List returns contacts matching f, ordered by name. Search matches name, email, company and phone digits.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.Invitee, int, error) {
	where := []string{"TRUE"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.GroupID != nil {
		where = append(where, "inviter_group_id = "+arg(*f.GroupID))
	}
	if f.CategoryID != nil {
		where = append(where, "category_id = "+arg(*f.CategoryID))
	}
	if f.InviterID != nil {
		where = append(where, "inviter_id = "+arg(*f.InviterID))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg("%" + s + "%")
		cond := "(name ILIKE " + p + " OR email ILIKE " + p + " OR company ILIKE " + p
		if d := lifecycle.PhoneDigits(s); len(d) >= 3 {
			cond += " OR regexp_replace(phone, '\\D', '', 'g') LIKE " + arg("%"+d+"%")
		}
		where = append(where, cond+")")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invitees WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT ` + inviteeColumns + ` FROM invitees WHERE ` + cond +
		` ORDER BY name, id LIMIT ` + arg(limit) + ` OFFSET ` + arg(f.Offset)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := []models.Invitee{}
	for rows.Next() {
		i, err := scanInvitee(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *i)
	}
	return list, total, rows.Err()
}

// Update writes every editable field of i.
func (r *Repository) Update(ctx context.Context, i *models.Invitee) error {
	const q = `UPDATE invitees SET name = $2, email = $3, phone = $4, secondary_phone = $5, title = $6,
			company = $7, position = $8, plus_one = $9, category_id = $10, inviter_id = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, i.ID, i.Name, i.Email, i.Phone, i.SecondaryPhone, i.Title,
		i.Company, i.Position, i.PlusOne, i.CategoryID, i.InviterID).Scan(&i.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return lifecycle.ErrNotFound
	}
	return err
}

// HasActiveInvitations reports whether the contact is pending or approved for any event.
func (r *Repository) HasActiveInvitations(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM event_invitees WHERE invitee_id = $1 AND status <> 'rejected')`
	var ok bool
	err := r.pool.QueryRow(ctx, q, id).Scan(&ok)
	return ok, err
}

// Delete removes a contact and its rejected associations.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invitees WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotFound
	}
	return nil
}

// FindByPhoneInGroup returns the group's contact whose phone has the same digits, if any.
func (r *Repository) FindByPhoneInGroup(ctx context.Context, groupID uuid.UUID, phone string) (*models.Invitee, error) {
	digits := lifecycle.PhoneDigits(phone)
	if digits == "" {
		return nil, lifecycle.ErrNotFound
	}
	const q = `SELECT ` + inviteeColumns + ` FROM invitees
		WHERE inviter_group_id = $1 AND regexp_replace(phone, '\D', '', 'g') = $2
		ORDER BY created_at LIMIT 1`
	return scanInvitee(r.pool.QueryRow(ctx, q, groupID, digits))
}

// InviterByName finds an inviter in the group by case-insensitive name, creating an active one when missing.
func (r *Repository) InviterByName(ctx context.Context, groupID uuid.UUID, name string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM inviters WHERE inviter_group_id = $1 AND lower(name) = lower($2) ORDER BY created_at LIMIT 1`,
		groupID, name).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, err
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO inviters (name, inviter_group_id) VALUES ($1, $2) RETURNING id`, name, groupID).Scan(&id)
	return id, err == nil, err
}

// InviterGroup returns the group of an inviter.
func (r *Repository) InviterGroup(ctx context.Context, inviterID uuid.UUID) (uuid.UUID, error) {
	var g uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT inviter_group_id FROM inviters WHERE id = $1`, inviterID).Scan(&g)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, lifecycle.ErrNotFound
	}
	return g, err
}

// CategoryByName resolves a category by case-insensitive name.
func (r *Repository) CategoryByName(ctx context.Context, name string) (*models.Category, error) {
	var c models.Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM categories WHERE lower(name) = lower($1)`, name).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lifecycle.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns every category by name.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, c *models.Category) error {
	return r.pool.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id, created_at`, c.Name).
		Scan(&c.ID, &c.CreatedAt)
}

// DeleteCategory removes a category. Contacts keep their row with category_id nulled.
func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotFound
	}
	return nil
}
