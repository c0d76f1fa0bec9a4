package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatusCounts tallies associations by workflow status and attendance.
type StatusCounts struct {
	Waiting     int `json:"waiting_for_approval"`
	Resubmitted int `json:"resubmitted"`
	Approved    int `json:"approved"`
	Rejected    int `json:"rejected"`
	CheckedIn   int `json:"checked_in"`
	Guests      int `json:"actual_guests"`
}

// Total is the number of associations counted.
func (s StatusCounts) Total() int {
	return s.Waiting + s.Resubmitted + s.Approved + s.Rejected
}

// Add accumulates o into s.
func (s *StatusCounts) Add(o StatusCounts) {
	s.Waiting += o.Waiting
	s.Resubmitted += o.Resubmitted
	s.Approved += o.Approved
	s.Rejected += o.Rejected
	s.CheckedIn += o.CheckedIn
	s.Guests += o.Guests
}

// GroupRow is one inviter group's share of an event.
type GroupRow struct {
	GroupID   uuid.UUID `json:"inviter_group_id"`
	GroupName string    `json:"inviter_group_name"`
	Quota     *int      `json:"quota"`
	StatusCounts
}

// EventRow is one event's numbers for a single inviter group.
type EventRow struct {
	EventID   uuid.UUID `json:"event_id"`
	EventName string    `json:"event_name"`
	StartDate time.Time `json:"start_date"`
	Quota     *int      `json:"quota"`
	StatusCounts
}

const countColumns = `
	COUNT(*) FILTER (WHERE ei.status = 'waiting_for_approval'),
	COUNT(*) FILTER (WHERE ei.status = 'resubmitted'),
	COUNT(*) FILTER (WHERE ei.status = 'approved'),
	COUNT(*) FILTER (WHERE ei.status = 'rejected'),
	COUNT(*) FILTER (WHERE ei.checked_in),
	COALESCE(SUM(ei.actual_guests) FILTER (WHERE ei.checked_in), 0)`

// Repository runs the reporting queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a reports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EventGroups breaks an event down by the inviter group of each invitee.
// Assigned groups with no submissions are included with zero counts.
func (r *Repository) EventGroups(ctx context.Context, eventID uuid.UUID) ([]GroupRow, error) {
	q := `SELECT g.id, g.name, eig.quota,` + countColumns + `
		FROM inviter_groups g
		LEFT JOIN event_inviter_groups eig ON eig.inviter_group_id = g.id AND eig.event_id = $1
		LEFT JOIN invitees i ON i.inviter_group_id = g.id
		LEFT JOIN event_invitees ei ON ei.invitee_id = i.id AND ei.event_id = $1
		GROUP BY g.id, g.name, eig.quota, eig.event_id
		HAVING eig.event_id IS NOT NULL OR COUNT(ei.id) > 0
		ORDER BY g.name`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []GroupRow{}
	for rows.Next() {
		var g GroupRow
		s := &g.StatusCounts
		if err := rows.Scan(&g.GroupID, &g.GroupName, &g.Quota,
			&s.Waiting, &s.Resubmitted, &s.Approved, &s.Rejected, &s.CheckedIn, &s.Guests); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// GroupEvents lists every event a group is assigned to or has submitted for, newest first.
func (r *Repository) GroupEvents(ctx context.Context, groupID uuid.UUID) ([]EventRow, error) {
	q := `SELECT e.id, e.name, e.start_date, eig.quota,` + countColumns + `
		FROM events e
		LEFT JOIN event_inviter_groups eig ON eig.event_id = e.id AND eig.inviter_group_id = $1
		LEFT JOIN event_invitees ei ON ei.event_id = e.id
			AND ei.invitee_id IN (SELECT id FROM invitees WHERE inviter_group_id = $1)
		GROUP BY e.id, e.name, e.start_date, eig.quota, eig.inviter_group_id
		HAVING eig.inviter_group_id IS NOT NULL OR COUNT(ei.id) > 0
		ORDER BY e.start_date DESC`
	rows, err := r.pool.Query(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []EventRow{}
	for rows.Next() {
		var e EventRow
		s := &e.StatusCounts
		if err := rows.Scan(&e.EventID, &e.EventName, &e.StartDate, &e.Quota,
			&s.Waiting, &s.Resubmitted, &s.Approved, &s.Rejected, &s.CheckedIn, &s.Guests); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// GroupContacts returns how many contacts a group owns.
func (r *Repository) GroupContacts(ctx context.Context, groupID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invitees WHERE inviter_group_id = $1`, groupID).Scan(&n)
	return n, err
}
