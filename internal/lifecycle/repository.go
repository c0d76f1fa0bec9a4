package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-events/backend/internal/models"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Store = (*Repository)(nil)

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

// NewRepository creates a lifecycle repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: pool}
}

// WithinTx runs fn in a transaction. Nested calls reuse the outer transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if r.inTx {
		return fn(r)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := fn(&Repository{pool: r.pool, q: tx, inTx: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// lockClause locks selected rows when running inside a transaction.
func (r *Repository) lockClause() string {
	if r.inTx {
		return " FOR UPDATE"
	}
	return ""
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	const q = `SELECT id, name, code, description, venue, start_date, end_date, manual_status, is_all_groups,
		logo_key, checkin_pin, checkin_pin_active, checkin_pin_auto_deactivate_hours, checkin_pin_version,
		created_by, created_at, updated_at FROM events WHERE id = $1`
	var e models.Event
	err := r.q.QueryRow(ctx, q, id).Scan(&e.ID, &e.Name, &e.Code, &e.Description, &e.Venue, &e.StartDate, &e.EndDate,
		&e.ManualStatus, &e.IsAllGroups, &e.LogoKey, &e.CheckinPin, &e.CheckinPinActive, &e.CheckinPinAutoDeactivateHrs,
		&e.CheckinPinVersion, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *Repository) IsGroupAssigned(ctx context.Context, eventID, groupID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1 AND is_all_groups)
		OR EXISTS(SELECT 1 FROM event_inviter_groups WHERE event_id = $1 AND inviter_group_id = $2)`
	var ok bool
	err := r.q.QueryRow(ctx, q, eventID, groupID).Scan(&ok)
	return ok, err
}

// LockGroupQuota locks the group's quota row. Groups with no row (all-groups events) are unlimited.
func (r *Repository) LockGroupQuota(ctx context.Context, eventID, groupID uuid.UUID) (*int, error) {
	q := `SELECT quota FROM event_inviter_groups WHERE event_id = $1 AND inviter_group_id = $2` + r.lockClause()
	var quota *int
	err := r.q.QueryRow(ctx, q, eventID, groupID).Scan(&quota)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return quota, err
}

func (r *Repository) CountQuotaUsage(ctx context.Context, eventID, groupID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM event_invitees ei JOIN invitees i ON i.id = ei.invitee_id
		WHERE ei.event_id = $1 AND i.inviter_group_id = $2
		AND ei.status IN ('waiting_for_approval', 'resubmitted', 'approved')`
	var n int
	err := r.q.QueryRow(ctx, q, eventID, groupID).Scan(&n)
	return n, err
}

func (r *Repository) GetInvitee(ctx context.Context, id uuid.UUID) (*models.Invitee, error) {
	const q = `SELECT id, name, email, phone, secondary_phone, title, company, position, plus_one, category_id,
		inviter_id, inviter_group_id, created_by, created_at, updated_at FROM invitees WHERE id = $1`
	var i models.Invitee
	err := r.q.QueryRow(ctx, q, id).Scan(&i.ID, &i.Name, &i.Email, &i.Phone, &i.SecondaryPhone, &i.Title, &i.Company,
		&i.Position, &i.PlusOne, &i.CategoryID, &i.InviterID, &i.InviterGroupID, &i.CreatedBy, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &i, nil
}

func (r *Repository) FindCrossGroupDuplicate(ctx context.Context, eventID uuid.UUID, inv *models.Invitee) (*Duplicate, error) {
	phone := PhoneDigits(inv.Phone)
	if phone == "" {
		return nil, nil
	}
	const q = `SELECT ei.id, i.name, COALESCE(iv.name, 'Unknown Inviter'), COALESCE(g.name, 'Another Group')
		FROM event_invitees ei
		JOIN invitees i ON i.id = ei.invitee_id
		LEFT JOIN inviters iv ON iv.id = ei.inviter_id
		LEFT JOIN inviter_groups g ON g.id = i.inviter_group_id
		WHERE ei.event_id = $1 AND i.inviter_group_id <> $2
		AND ei.status IN ('waiting_for_approval', 'resubmitted', 'approved')
		AND regexp_replace(i.phone, '\D', '', 'g') = $3
		ORDER BY ei.created_at LIMIT 1`
	var d Duplicate
	err := r.q.QueryRow(ctx, q, eventID, inv.InviterGroupID, phone).Scan(&d.AssociationID, &d.InviteeName, &d.InviterName, &d.GroupName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const associationColumns = `ei.id, ei.event_id, ei.invitee_id, ei.inviter_id, ei.submitted_by, ei.status, ei.status_date,
	ei.plus_one, ei.notes, ei.approval_notes, ei.approved_by, ei.approver_role, ei.invitation_sent, ei.invitation_sent_at,
	ei.invitation_method, ei.attendance_code, ei.attendance_confirmed, ei.confirmed_guests, ei.confirmed_at, ei.checked_in,
	ei.checked_in_at, ei.checked_in_by, ei.actual_guests, ei.check_in_notes, ei.portal_accessed_at, ei.created_at, ei.updated_at`

func associationDest(ei *models.EventInvitee) []any {
	return []any{&ei.ID, &ei.EventID, &ei.InviteeID, &ei.InviterID, &ei.SubmittedBy, &ei.Status, &ei.StatusDate,
		&ei.PlusOne, &ei.Notes, &ei.ApprovalNotes, &ei.ApprovedBy, &ei.ApproverRole, &ei.InvitationSent, &ei.InvitationSentAt,
		&ei.InvitationMethod, &ei.AttendanceCode, &ei.AttendanceConfirmed, &ei.ConfirmedGuests, &ei.ConfirmedAt, &ei.CheckedIn,
		&ei.CheckedInAt, &ei.CheckedInBy, &ei.ActualGuests, &ei.CheckInNotes, &ei.PortalAccessedAt, &ei.CreatedAt, &ei.UpdatedAt}
}

func (r *Repository) getAssociation(ctx context.Context, where string, arg any) (*models.EventInvitee, error) {
	q := `SELECT ` + associationColumns + ` FROM event_invitees ei WHERE ` + where + r.lockClause()
	var ei models.EventInvitee
	if err := r.q.QueryRow(ctx, q, arg).Scan(associationDest(&ei)...); err != nil {
		return nil, notFound(err)
	}
	return &ei, nil
}

func (r *Repository) GetAssociation(ctx context.Context, id uuid.UUID) (*models.EventInvitee, error) {
	return r.getAssociation(ctx, "ei.id = $1", id)
}

func (r *Repository) GetAssociationByCode(ctx context.Context, code string) (*models.EventInvitee, error) {
	return r.getAssociation(ctx, "ei.attendance_code = $1", NormalizeCode(code))
}

func (r *Repository) GetAssociationFor(ctx context.Context, eventID, inviteeID uuid.UUID) (*models.EventInvitee, error) {
	q := `SELECT ` + associationColumns + ` FROM event_invitees ei WHERE ei.event_id = $1 AND ei.invitee_id = $2` + r.lockClause()
	var ei models.EventInvitee
	if err := r.q.QueryRow(ctx, q, eventID, inviteeID).Scan(associationDest(&ei)...); err != nil {
		return nil, notFound(err)
	}
	return &ei, nil
}

func (r *Repository) CreateAssociation(ctx context.Context, ei *models.EventInvitee) error {
	const q = `INSERT INTO event_invitees (id, event_id, invitee_id, inviter_id, submitted_by, status, status_date, plus_one, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id, invitee_id) DO NOTHING
		RETURNING created_at, updated_at`
	if ei.ID == uuid.Nil {
		ei.ID = uuid.New()
	}
	err := r.q.QueryRow(ctx, q, ei.ID, ei.EventID, ei.InviteeID, ei.InviterID, ei.SubmittedBy, ei.Status, ei.StatusDate,
		ei.PlusOne, ei.Notes).Scan(&ei.CreatedAt, &ei.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAlreadyInvited
	}
	return err
}

func (r *Repository) UpdateAssociation(ctx context.Context, ei *models.EventInvitee) error {
	const q = `UPDATE event_invitees SET status = $2, status_date = $3, plus_one = $4, notes = $5, approval_notes = $6,
		approved_by = $7, approver_role = $8, submitted_by = $9, invitation_sent = $10, invitation_sent_at = $11,
		invitation_method = $12, attendance_code = $13, attendance_confirmed = $14, confirmed_guests = $15,
		confirmed_at = $16, checked_in = $17, checked_in_at = $18, checked_in_by = $19, actual_guests = $20,
		check_in_notes = $21, portal_accessed_at = $22, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.q.QueryRow(ctx, q, ei.ID, ei.Status, ei.StatusDate, ei.PlusOne, ei.Notes, ei.ApprovalNotes, ei.ApprovedBy,
		ei.ApproverRole, ei.SubmittedBy, ei.InvitationSent, ei.InvitationSentAt, ei.InvitationMethod, ei.AttendanceCode,
		ei.AttendanceConfirmed, ei.ConfirmedGuests, ei.ConfirmedAt, ei.CheckedIn, ei.CheckedInAt, ei.CheckedInBy,
		ei.ActualGuests, ei.CheckInNotes, ei.PortalAccessedAt).Scan(&ei.UpdatedAt)
	return notFound(err)
}

func (r *Repository) ListApprovedWithoutCode(ctx context.Context, eventID uuid.UUID) ([]*models.EventInvitee, error) {
	q := `SELECT ` + associationColumns + ` FROM event_invitees ei
		WHERE ei.event_id = $1 AND ei.status = 'approved' AND ei.attendance_code IS NULL
		ORDER BY ei.created_at, ei.id` + r.lockClause()
	rows, err := r.q.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EventInvitee
	for rows.Next() {
		var ei models.EventInvitee
		if err := rows.Scan(associationDest(&ei)...); err != nil {
			return nil, err
		}
		list = append(list, &ei)
	}
	return list, rows.Err()
}

func (r *Repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM event_invitees WHERE attendance_code = $1)`, code).Scan(&ok)
	return ok, err
}

const attendeeSelect = `SELECT ` + associationColumns + `, i.name, i.email, i.phone, i.company, i.position,
	COALESCE(iv.name, ''), COALESCE(g.name, ''), COALESCE(c.name, ''), i.inviter_group_id
	FROM event_invitees ei
	JOIN invitees i ON i.id = ei.invitee_id
	LEFT JOIN inviters iv ON iv.id = ei.inviter_id
	LEFT JOIN inviter_groups g ON g.id = i.inviter_group_id
	LEFT JOIN categories c ON c.id = i.category_id`

func (r *Repository) queryAttendees(ctx context.Context, q string, args ...any) ([]models.Attendee, error) {
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Attendee{}
	for rows.Next() {
		var a models.Attendee
		dest := append(associationDest(&a.EventInvitee), &a.InviteeName, &a.InviteeEmail, &a.InviteePhone, &a.Company,
			&a.Position, &a.InviterName, &a.GroupName, &a.CategoryName, &a.InviterGroupID)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (r *Repository) ListAttendees(ctx context.Context, eventID *uuid.UUID, f AttendeeFilter) ([]models.Attendee, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if eventID != nil {
		conds = append(conds, "ei.event_id = "+arg(*eventID))
	}
	if f.Status != nil {
		conds = append(conds, "ei.status = "+arg(*f.Status))
	}
	if f.InviterGroupID != nil {
		conds = append(conds, "i.inviter_group_id = "+arg(*f.InviterGroupID))
	}
	if f.HasCode != nil {
		if *f.HasCode {
			conds = append(conds, "ei.attendance_code IS NOT NULL")
		} else {
			conds = append(conds, "ei.attendance_code IS NULL")
		}
	}
	if f.InvitationSent != nil {
		conds = append(conds, "ei.invitation_sent = "+arg(*f.InvitationSent))
	}
	if f.CheckedIn != nil {
		conds = append(conds, "ei.checked_in = "+arg(*f.CheckedIn))
	}
	switch f.Confirmed {
	case "yes":
		conds = append(conds, "ei.attendance_confirmed = TRUE")
	case "no":
		conds = append(conds, "ei.attendance_confirmed = FALSE")
	case "pending":
		conds = append(conds, "ei.attendance_confirmed IS NULL")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg("%" + s + "%")
		conds = append(conds, fmt.Sprintf("(i.name ILIKE %[1]s OR i.email ILIKE %[1]s OR i.phone ILIKE %[1]s OR ei.attendance_code ILIKE %[1]s OR iv.name ILIKE %[1]s)", p))
	}

	q := attendeeSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY i.name, ei.id"
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit)
	}
	return r.queryAttendees(ctx, q, args...)
}

func (r *Repository) ListHistory(ctx context.Context, inviteeID uuid.UUID) ([]models.Attendee, error) {
	return r.queryAttendees(ctx, attendeeSelect+` WHERE ei.invitee_id = $1 ORDER BY ei.status_date DESC`, inviteeID)
}

func (r *Repository) CountAttendance(ctx context.Context, eventID uuid.UUID) (models.AttendanceStats, error) {
	const q = `SELECT COUNT(*), COUNT(attendance_code),
		COUNT(*) FILTER (WHERE invitation_sent),
		COUNT(*) FILTER (WHERE attendance_confirmed),
		COUNT(*) FILTER (WHERE attendance_confirmed = FALSE),
		COUNT(*) FILTER (WHERE attendance_confirmed IS NULL),
		COUNT(*) FILTER (WHERE checked_in),
		COALESCE(SUM(plus_one), 0), COALESCE(SUM(confirmed_guests), 0),
		COALESCE(SUM(actual_guests) FILTER (WHERE checked_in), 0)
		FROM event_invitees WHERE event_id = $1 AND status = 'approved'`
	var s models.AttendanceStats
	err := r.q.QueryRow(ctx, q, eventID).Scan(&s.TotalApproved, &s.CodesGenerated, &s.InvitationsSent, &s.ConfirmedComing,
		&s.ConfirmedNotComing, &s.NotResponded, &s.CheckedIn, &s.TotalPlusOneAllowed, &s.TotalConfirmedGuests, &s.TotalActualGuests)
	return s, err
}

func (r *Repository) RecentCheckIns(ctx context.Context, eventID uuid.UUID, limit int) ([]models.RecentCheckIn, error) {
	const q = `SELECT COALESCE(NULLIF(i.name, ''), 'Guest'), i.company, ei.actual_guests, ei.checked_in_at
		FROM event_invitees ei JOIN invitees i ON i.id = ei.invitee_id
		WHERE ei.event_id = $1 AND ei.checked_in
		ORDER BY ei.checked_in_at DESC LIMIT $2`
	rows, err := r.q.Query(ctx, q, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.RecentCheckIn{}
	for rows.Next() {
		var c models.RecentCheckIn
		if err := rows.Scan(&c.Name, &c.Company, &c.Guests, &c.CheckedInAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// FindApprovedByPhone matches the trailing digits of either phone number. Without an event it
// picks the soonest event that is still open.
func (r *Repository) FindApprovedByPhone(ctx context.Context, phoneSuffix string, eventID *uuid.UUID, now time.Time) (*models.EventInvitee, error) {
	const q = `SELECT ` + associationColumns + ` FROM event_invitees ei
		JOIN invitees i ON i.id = ei.invitee_id
		JOIN events e ON e.id = ei.event_id
		WHERE ei.status = 'approved'
		AND (regexp_replace(i.phone, '\D', '', 'g') LIKE '%' || $1
			OR regexp_replace(i.secondary_phone, '\D', '', 'g') LIKE '%' || $1)
		AND (($2::uuid IS NULL AND e.manual_status IS NULL AND e.end_date >= $3) OR ei.event_id = $2)
		ORDER BY e.start_date LIMIT 1`
	var ei models.EventInvitee
	if err := r.q.QueryRow(ctx, q, phoneSuffix, eventID, now).Scan(associationDest(&ei)...); err != nil {
		return nil, notFound(err)
	}
	return &ei, nil
}
