package auditlog

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-events/backend/internal/models"
)

// Repository appends to and reads the audit log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record appends one entry. Entries are never updated or deleted.
func (r *Repository) Record(ctx context.Context, e models.AuditLog) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO audit_logs (user_id, action, table_name, record_id, old_value, new_value, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.UserID, e.Action, e.TableName, e.RecordID, e.OldValue, e.NewValue, e.IPAddress)
	return err
}

// Filter narrows an activity log query. Zero values match everything.
type Filter struct {
	Action string
	UserID *uuid.UUID
	Table  string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// List returns matching entries newest first with the acting user's name, plus the total match count.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.AuditLog, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.Action != "" {
		add("a.action = ?", f.Action)
	}
	if f.UserID != nil {
		add("a.user_id = ?", *f.UserID)
	}
	if f.Table != "" {
		add("a.table_name = ?", f.Table)
	}
	if f.From != nil {
		add("a.created_at >= ?", *f.From)
	}
	if f.To != nil {
		add("a.created_at < ?", *f.To)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs a`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	q := `SELECT a.id, a.user_id, COALESCE(u.full_name, ''), a.action, a.table_name, a.record_id,
			a.old_value, a.new_value, a.ip_address, a.created_at
		FROM audit_logs a LEFT JOIN users u ON u.id = a.user_id` + cond +
		` ORDER BY a.created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := []models.AuditLog{}
	for rows.Next() {
		var e models.AuditLog
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.Action, &e.TableName, &e.RecordID,
			&e.OldValue, &e.NewValue, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, e)
	}
	return list, total, rows.Err()
}

// Actions returns the distinct actions seen so far, for filter dropdowns.
func (r *Repository) Actions(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT action FROM audit_logs ORDER BY action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
