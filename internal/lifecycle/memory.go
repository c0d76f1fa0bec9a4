package lifecycle

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-events/backend/internal/models"
)

type quotaKey struct {
	eventID uuid.UUID
	groupID uuid.UUID
}

type memData struct {
	events     map[uuid.UUID]models.Event
	groups     map[uuid.UUID]models.InviterGroup
	inviters   map[uuid.UUID]models.Inviter
	categories map[uuid.UUID]models.Category
	invitees   map[uuid.UUID]models.Invitee
	quotas     map[quotaKey]*int
	assocs     map[uuid.UUID]models.EventInvitee
}

func (d *memData) clone() *memData {
	c := &memData{
		events:     make(map[uuid.UUID]models.Event, len(d.events)),
		groups:     make(map[uuid.UUID]models.InviterGroup, len(d.groups)),
		inviters:   make(map[uuid.UUID]models.Inviter, len(d.inviters)),
		categories: make(map[uuid.UUID]models.Category, len(d.categories)),
		invitees:   make(map[uuid.UUID]models.Invitee, len(d.invitees)),
		quotas:     make(map[quotaKey]*int, len(d.quotas)),
		assocs:     make(map[uuid.UUID]models.EventInvitee, len(d.assocs)),
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	for k, v := range d.groups {
		c.groups[k] = v
	}
	for k, v := range d.inviters {
		c.inviters[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.invitees {
		c.invitees[k] = v
	}
	for k, v := range d.quotas {
		c.quotas[k] = v
	}
	for k, v := range d.assocs {
		c.assocs[k] = v
	}
	return c
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*memTx)(nil)
)

// MemoryStore is an in-process Store. A transaction works on a copy of the data that
// replaces the original on success, and transactions are serialized.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: (&memData{}).clone()}
}

// AddEvent stores or replaces an event.
func (s *MemoryStore) AddEvent(e models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.events[e.ID] = e
}

// AddGroup stores an inviter group.
func (s *MemoryStore) AddGroup(g models.InviterGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.groups[g.ID] = g
}

// AddInviter stores an inviter.
func (s *MemoryStore) AddInviter(i models.Inviter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.inviters[i.ID] = i
}

// AddCategory stores a category.
func (s *MemoryStore) AddCategory(c models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.categories[c.ID] = c
}

// AddInvitee stores or replaces an invitee.
func (s *MemoryStore) AddInvitee(i models.Invitee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.invitees[i.ID] = i
}

// SetQuota assigns a group to an event. A nil quota means unlimited.
func (s *MemoryStore) SetQuota(eventID, groupID uuid.UUID, quota *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.quotas[quotaKey{eventID, groupID}] = quota
}

// AddAssociation stores or replaces an association.
func (s *MemoryStore) AddAssociation(ei models.EventInvitee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.assocs[ei.ID] = ei
}

// WithinTx runs fn against a private copy of the data and keeps it if fn succeeds.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data.clone()
	if err := fn(&memTx{d: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *MemoryStore) view() *memTx {
	return &memTx{d: s.data}
}

func (s *MemoryStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetEvent(ctx, id)
}

func (s *MemoryStore) IsGroupAssigned(ctx context.Context, eventID, groupID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().IsGroupAssigned(ctx, eventID, groupID)
}

func (s *MemoryStore) LockGroupQuota(ctx context.Context, eventID, groupID uuid.UUID) (*int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().LockGroupQuota(ctx, eventID, groupID)
}

func (s *MemoryStore) CountQuotaUsage(ctx context.Context, eventID, groupID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CountQuotaUsage(ctx, eventID, groupID)
}

func (s *MemoryStore) GetInvitee(ctx context.Context, id uuid.UUID) (*models.Invitee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetInvitee(ctx, id)
}

func (s *MemoryStore) FindCrossGroupDuplicate(ctx context.Context, eventID uuid.UUID, inv *models.Invitee) (*Duplicate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().FindCrossGroupDuplicate(ctx, eventID, inv)
}

func (s *MemoryStore) GetAssociation(ctx context.Context, id uuid.UUID) (*models.EventInvitee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetAssociation(ctx, id)
}

func (s *MemoryStore) GetAssociationFor(ctx context.Context, eventID, inviteeID uuid.UUID) (*models.EventInvitee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetAssociationFor(ctx, eventID, inviteeID)
}

func (s *MemoryStore) GetAssociationByCode(ctx context.Context, code string) (*models.EventInvitee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetAssociationByCode(ctx, code)
}

func (s *MemoryStore) CreateAssociation(ctx context.Context, ei *models.EventInvitee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateAssociation(ctx, ei)
}

func (s *MemoryStore) UpdateAssociation(ctx context.Context, ei *models.EventInvitee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpdateAssociation(ctx, ei)
}

func (s *MemoryStore) ListApprovedWithoutCode(ctx context.Context, eventID uuid.UUID) ([]*models.EventInvitee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListApprovedWithoutCode(ctx, eventID)
}

func (s *MemoryStore) CodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CodeExists(ctx, code)
}

func (s *MemoryStore) ListAttendees(ctx context.Context, eventID *uuid.UUID, f AttendeeFilter) ([]models.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListAttendees(ctx, eventID, f)
}

func (s *MemoryStore) ListHistory(ctx context.Context, inviteeID uuid.UUID) ([]models.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListHistory(ctx, inviteeID)
}

func (s *MemoryStore) CountAttendance(ctx context.Context, eventID uuid.UUID) (models.AttendanceStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CountAttendance(ctx, eventID)
}

func (s *MemoryStore) RecentCheckIns(ctx context.Context, eventID uuid.UUID, limit int) ([]models.RecentCheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().RecentCheckIns(ctx, eventID, limit)
}

func (s *MemoryStore) FindApprovedByPhone(ctx context.Context, phoneSuffix string, eventID *uuid.UUID, now time.Time) (*models.EventInvitee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().FindApprovedByPhone(ctx, phoneSuffix, eventID, now)
}

// memTx is the lock-free view used inside a transaction.
type memTx struct {
	d *memData
}

func (t *memTx) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t *memTx) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := t.d.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (t *memTx) IsGroupAssigned(_ context.Context, eventID, groupID uuid.UUID) (bool, error) {
	if e, ok := t.d.events[eventID]; ok && e.IsAllGroups {
		return true, nil
	}
	_, ok := t.d.quotas[quotaKey{eventID, groupID}]
	return ok, nil
}

func (t *memTx) LockGroupQuota(_ context.Context, eventID, groupID uuid.UUID) (*int, error) {
	q := t.d.quotas[quotaKey{eventID, groupID}]
	if q == nil {
		return nil, nil
	}
	v := *q
	return &v, nil
}

func (t *memTx) CountQuotaUsage(_ context.Context, eventID, groupID uuid.UUID) (int, error) {
	n := 0
	for _, a := range t.d.assocs {
		if a.EventID != eventID || !a.Status.ConsumesQuota() {
			continue
		}
		if inv, ok := t.d.invitees[a.InviteeID]; ok && inv.InviterGroupID == groupID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) GetInvitee(_ context.Context, id uuid.UUID) (*models.Invitee, error) {
	inv, ok := t.d.invitees[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &inv, nil
}

func (t *memTx) FindCrossGroupDuplicate(_ context.Context, eventID uuid.UUID, inv *models.Invitee) (*Duplicate, error) {
	phone := PhoneDigits(inv.Phone)
	if phone == "" {
		return nil, nil
	}
	for _, a := range t.sortedAssocs() {
		if a.EventID != eventID || !a.Status.ConsumesQuota() {
			continue
		}
		other, ok := t.d.invitees[a.InviteeID]
		if !ok || other.InviterGroupID == inv.InviterGroupID || PhoneDigits(other.Phone) != phone {
			continue
		}
		dup := &Duplicate{AssociationID: a.ID, InviteeName: other.Name, InviterName: "Unknown Inviter", GroupName: "Another Group"}
		if a.InviterID != nil {
			if in, ok := t.d.inviters[*a.InviterID]; ok {
				dup.InviterName = in.Name
			}
		}
		if g, ok := t.d.groups[other.InviterGroupID]; ok {
			dup.GroupName = g.Name
		}
		return dup, nil
	}
	return nil, nil
}

func (t *memTx) GetAssociation(_ context.Context, id uuid.UUID) (*models.EventInvitee, error) {
	a, ok := t.d.assocs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (t *memTx) GetAssociationFor(_ context.Context, eventID, inviteeID uuid.UUID) (*models.EventInvitee, error) {
	for _, a := range t.d.assocs {
		if a.EventID == eventID && a.InviteeID == inviteeID {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) GetAssociationByCode(_ context.Context, code string) (*models.EventInvitee, error) {
	code = NormalizeCode(code)
	for _, a := range t.d.assocs {
		if a.AttendanceCode != nil && *a.AttendanceCode == code {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) CreateAssociation(_ context.Context, ei *models.EventInvitee) error {
	for _, a := range t.d.assocs {
		if a.EventID == ei.EventID && a.InviteeID == ei.InviteeID {
			return ErrAlreadyInvited
		}
	}
	if ei.ID == uuid.Nil {
		ei.ID = uuid.New()
	}
	t.d.assocs[ei.ID] = *ei
	return nil
}

func (t *memTx) UpdateAssociation(_ context.Context, ei *models.EventInvitee) error {
	if _, ok := t.d.assocs[ei.ID]; !ok {
		return ErrNotFound
	}
	t.d.assocs[ei.ID] = *ei
	return nil
}

func (t *memTx) ListApprovedWithoutCode(_ context.Context, eventID uuid.UUID) ([]*models.EventInvitee, error) {
	var out []*models.EventInvitee
	for _, a := range t.sortedAssocs() {
		if a.EventID == eventID && a.Status == models.StatusApproved && a.AttendanceCode == nil {
			a := a
			out = append(out, &a)
		}
	}
	return out, nil
}

func (t *memTx) CodeExists(_ context.Context, code string) (bool, error) {
	for _, a := range t.d.assocs {
		if a.AttendanceCode != nil && *a.AttendanceCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) ListAttendees(_ context.Context, eventID *uuid.UUID, f AttendeeFilter) ([]models.Attendee, error) {
	out := []models.Attendee{}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	for _, a := range t.sortedAssocs() {
		if eventID != nil && a.EventID != *eventID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.HasCode != nil && (a.AttendanceCode != nil) != *f.HasCode {
			continue
		}
		if f.InvitationSent != nil && a.InvitationSent != *f.InvitationSent {
			continue
		}
		if f.CheckedIn != nil && a.CheckedIn != *f.CheckedIn {
			continue
		}
		if !matchesConfirmed(a.AttendanceConfirmed, f.Confirmed) {
			continue
		}
		row := t.attendee(a)
		if f.InviterGroupID != nil && row.InviterGroupID != *f.InviterGroupID {
			continue
		}
		if search != "" && !matchesSearch(row, search) {
			continue
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].InviteeName < out[j].InviteeName })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchesConfirmed(v *bool, want string) bool {
	switch want {
	case "yes":
		return v != nil && *v
	case "no":
		return v != nil && !*v
	case "pending":
		return v == nil
	}
	return true
}

func matchesSearch(a models.Attendee, term string) bool {
	fields := []string{a.InviteeName, a.InviteeEmail, a.InviteePhone, a.InviterName}
	if a.AttendanceCode != nil {
		fields = append(fields, *a.AttendanceCode)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func (t *memTx) attendee(a models.EventInvitee) models.Attendee {
	row := models.Attendee{EventInvitee: a}
	if inv, ok := t.d.invitees[a.InviteeID]; ok {
		row.InviteeName = inv.Name
		row.InviteeEmail = inv.Email
		row.InviteePhone = inv.Phone
		row.Company = inv.Company
		row.Position = inv.Position
		row.InviterGroupID = inv.InviterGroupID
		if g, ok := t.d.groups[inv.InviterGroupID]; ok {
			row.GroupName = g.Name
		}
		if inv.CategoryID != nil {
			row.CategoryName = t.d.categories[*inv.CategoryID].Name
		}
	}
	if a.InviterID != nil {
		row.InviterName = t.d.inviters[*a.InviterID].Name
	}
	return row
}

func (t *memTx) ListHistory(_ context.Context, inviteeID uuid.UUID) ([]models.Attendee, error) {
	out := []models.Attendee{}
	for _, a := range t.sortedAssocs() {
		if a.InviteeID == inviteeID {
			out = append(out, t.attendee(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StatusDate.After(out[j].StatusDate) })
	return out, nil
}

func (t *memTx) CountAttendance(_ context.Context, eventID uuid.UUID) (models.AttendanceStats, error) {
	var s models.AttendanceStats
	for _, a := range t.d.assocs {
		if a.EventID != eventID || a.Status != models.StatusApproved {
			continue
		}
		s.TotalApproved++
		if a.AttendanceCode != nil {
			s.CodesGenerated++
		}
		if a.InvitationSent {
			s.InvitationsSent++
		}
		switch {
		case a.AttendanceConfirmed == nil:
			s.NotResponded++
		case *a.AttendanceConfirmed:
			s.ConfirmedComing++
		default:
			s.ConfirmedNotComing++
		}
		if a.CheckedIn {
			s.CheckedIn++
			s.TotalActualGuests += a.ActualGuests
		}
		s.TotalPlusOneAllowed += a.PlusOne
		s.TotalConfirmedGuests += a.ConfirmedGuests
	}
	return s, nil
}

func (t *memTx) RecentCheckIns(_ context.Context, eventID uuid.UUID, limit int) ([]models.RecentCheckIn, error) {
	var rows []models.EventInvitee
	for _, a := range t.d.assocs {
		if a.EventID == eventID && a.CheckedIn && a.CheckedInAt != nil {
			rows = append(rows, a)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CheckedInAt.After(*rows[j].CheckedInAt) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]models.RecentCheckIn, 0, len(rows))
	for _, a := range rows {
		inv := t.d.invitees[a.InviteeID]
		name := inv.Name
		if name == "" {
			name = "Guest"
		}
		out = append(out, models.RecentCheckIn{Name: name, Company: inv.Company, Guests: a.ActualGuests, CheckedInAt: a.CheckedInAt})
	}
	return out, nil
}

func (t *memTx) FindApprovedByPhone(_ context.Context, phoneSuffix string, eventID *uuid.UUID, now time.Time) (*models.EventInvitee, error) {
	var best *models.EventInvitee
	var bestStart time.Time
	for _, a := range t.sortedAssocs() {
		if a.Status != models.StatusApproved {
			continue
		}
		inv, ok := t.d.invitees[a.InviteeID]
		if !ok {
			continue
		}
		if !strings.HasSuffix(PhoneDigits(inv.Phone), phoneSuffix) && !strings.HasSuffix(PhoneDigits(inv.SecondaryPhone), phoneSuffix) {
			continue
		}
		ev := t.d.events[a.EventID]
		if eventID != nil {
			if a.EventID != *eventID {
				continue
			}
		} else if !ev.CanAddInvitees(now) {
			continue
		}
		if best == nil || ev.StartDate.Before(bestStart) {
			a := a
			best, bestStart = &a, ev.StartDate
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

// sortedAssocs returns associations in creation order for deterministic iteration.
func (t *memTx) sortedAssocs() []models.EventInvitee {
	out := make([]models.EventInvitee, 0, len(t.d.assocs))
	for _, a := range t.d.assocs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
