package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-events/backend/internal/checkin"
	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/models"
)

var _ checkin.Store = (*Repository)(nil)

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, name, code, description, venue, start_date, end_date, manual_status, is_all_groups,
	logo_key, checkin_pin, checkin_pin_active, checkin_pin_auto_deactivate_hours, checkin_pin_version,
	created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Name, &e.Code, &e.Description, &e.Venue, &e.StartDate, &e.EndDate,
		&e.ManualStatus, &e.IsAllGroups, &e.LogoKey, &e.CheckinPin, &e.CheckinPinActive,
		&e.CheckinPinAutoDeactivateHrs, &e.CheckinPinVersion, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lifecycle.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (name, code, description, venue, start_date, end_date, is_all_groups, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, checkin_pin_version, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Name, e.Code, e.Description, e.Venue, e.StartDate, e.EndDate, e.IsAllGroups, e.CreatedBy).
		Scan(&e.ID, &e.CheckinPinVersion, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// GetByCode returns an event by its public code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE code = $1`, code))
}

// CodeExists reports whether an event already uses code.
func (r *Repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE code = $1)`, code).Scan(&ok)
	return ok, err
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// List returns events, newest first. With groupID set only events assigned to that group
// (or open to all groups) are returned.
func (r *Repository) List(ctx context.Context, groupID *uuid.UUID) ([]models.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events e
		WHERE $1::uuid IS NULL OR e.is_all_groups
		OR EXISTS(SELECT 1 FROM event_inviter_groups g WHERE g.event_id = e.id AND g.inviter_group_id = $1)
		ORDER BY start_date DESC`
	return r.list(ctx, q, groupID)
}

// UpdateParams holds the editable fields of an event. Nil fields are left unchanged.
type UpdateParams struct {
	Name        *string
	Description *string
	Venue       *string
	StartDate   *time.Time
	EndDate     *time.Time
	IsAllGroups *bool
}

// Update applies p to the event.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*models.Event, error) {
	const q = `UPDATE events SET
		name = COALESCE($2, name), description = COALESCE($3, description), venue = COALESCE($4, venue),
		start_date = COALESCE($5, start_date), end_date = COALESCE($6, end_date),
		is_all_groups = COALESCE($7, is_all_groups), updated_at = NOW()
		WHERE id = $1 RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, id, p.Name, p.Description, p.Venue, p.StartDate, p.EndDate, p.IsAllGroups))
}

// SetManualStatus sets or clears (nil) the manual status override.
func (r *Repository) SetManualStatus(ctx context.Context, id uuid.UUID, status *models.EventStatus) (*models.Event, error) {
	const q = `UPDATE events SET manual_status = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + eventColumns
	var s *string
	if status != nil {
		v := string(*status)
		s = &v
	}
	return scanEvent(r.pool.QueryRow(ctx, q, id, s))
}

// SetLogo stores the S3 key of the event logo and returns the previous key.
func (r *Repository) SetLogo(ctx context.Context, id uuid.UUID, key string) (string, error) {
	const q = `UPDATE events e SET logo_key = $2, updated_at = NOW()
		FROM (SELECT logo_key FROM events WHERE id = $1 FOR UPDATE) old
		WHERE e.id = $1 RETURNING old.logo_key`
	var prev string
	err := r.pool.QueryRow(ctx, q, id, key).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", lifecycle.ErrNotFound
	}
	return prev, err
}

// Delete removes an event and, by cascade, its assignments and invitations.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotFound
	}
	return nil
}

// ListQuotas returns the groups assigned to an event with their quota usage.
func (r *Repository) ListQuotas(ctx context.Context, eventID uuid.UUID) ([]models.GroupQuota, error) {
	const q = `SELECT g.inviter_group_id, g.quota,
		(SELECT COUNT(*) FROM event_invitees ei JOIN invitees i ON i.id = ei.invitee_id
		 WHERE ei.event_id = g.event_id AND i.inviter_group_id = g.inviter_group_id
		 AND ei.status IN ('waiting_for_approval', 'resubmitted', 'approved'))
		FROM event_inviter_groups g WHERE g.event_id = $1 ORDER BY g.created_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.GroupQuota{}
	for rows.Next() {
		var (
			groupID uuid.UUID
			quota   *int
			used    int
		)
		if err := rows.Scan(&groupID, &quota, &used); err != nil {
			return nil, err
		}
		list = append(list, models.NewGroupQuota(eventID, groupID, quota, used))
	}
	return list, rows.Err()
}

// ReplaceQuotas sets the event's group assignments to exactly quotas. Groups left out are unassigned.
func (r *Repository) ReplaceQuotas(ctx context.Context, eventID uuid.UUID, quotas []models.EventGroupQuota) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	keep := make([]uuid.UUID, 0, len(quotas))
	for _, gq := range quotas {
		keep = append(keep, gq.InviterGroupID)
		const up = `INSERT INTO event_inviter_groups (event_id, inviter_group_id, quota) VALUES ($1, $2, $3)
			ON CONFLICT (event_id, inviter_group_id) DO UPDATE SET quota = EXCLUDED.quota, updated_at = NOW()`
		if _, err := tx.Exec(ctx, up, eventID, gq.InviterGroupID, gq.Quota); err != nil {
			return err
		}
	}
	const del = `DELETE FROM event_inviter_groups WHERE event_id = $1 AND NOT (inviter_group_id = ANY($2))`
	if _, err := tx.Exec(ctx, del, eventID, keep); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SavePin stores a new active PIN and bumps its version. The event code is set only when missing.
func (r *Repository) SavePin(ctx context.Context, id uuid.UUID, pin, code string) (*models.Event, error) {
	const q = `UPDATE events SET checkin_pin = $2, checkin_pin_active = TRUE,
		checkin_pin_version = checkin_pin_version + 1,
		code = COALESCE(code, NULLIF($3, '')), updated_at = NOW()
		WHERE id = $1 RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, id, pin, code))
}

// SetPinActive sets the stored PIN flag.
func (r *Repository) SetPinActive(ctx context.Context, id uuid.UUID, active bool) (*models.Event, error) {
	const q = `UPDATE events SET checkin_pin_active = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, id, active))
}

// SetPinAutoDeactivate sets the auto-deactivate hours; nil means manual.
func (r *Repository) SetPinAutoDeactivate(ctx context.Context, id uuid.UUID, hours *int) (*models.Event, error) {
	const q = `UPDATE events SET checkin_pin_auto_deactivate_hours = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, id, hours))
}

// ListActivePinEvents returns events whose stored PIN flag is on and that have an expiry window.
func (r *Repository) ListActivePinEvents(ctx context.Context) ([]models.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events
		WHERE checkin_pin_active AND checkin_pin IS NOT NULL AND checkin_pin_auto_deactivate_hours IS NOT NULL`
	return r.list(ctx, q)
}

// DeactivatePin clears the PIN flag if it is still at version.
func (r *Repository) DeactivatePin(ctx context.Context, id uuid.UUID, version int) (bool, error) {
	const q = `UPDATE events SET checkin_pin_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND checkin_pin_active AND checkin_pin_version = $2`
	tag, err := r.pool.Exec(ctx, q, id, version)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
