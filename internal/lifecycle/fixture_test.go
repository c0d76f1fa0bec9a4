package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
)

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type published struct {
	eventID uuid.UUID
	name    string
}

type recorder struct {
	mu       sync.Mutex
	notices  []Notice
	audits   []models.AuditLog
	updates  []published
	notifyFn func(Notice) error
}

func (r *recorder) Notify(_ context.Context, n Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	if r.notifyFn != nil {
		return r.notifyFn(n)
	}
	return nil
}

func (r *recorder) Record(_ context.Context, e models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, e)
	return nil
}

func (r *recorder) PublishEventUpdate(eventID uuid.UUID, event string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, published{eventID: eventID, name: event})
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.audits))
	for _, a := range r.audits {
		out = append(out, a.Action)
	}
	return out
}

type fixture struct {
	t      *testing.T
	store  *MemoryStore
	m      *Manager
	rec    *recorder
	now    time.Time
	event  models.Event
	groupA models.InviterGroup
	groupB models.InviterGroup
	admin  models.Actor
	dirA   models.Actor
	dirB   models.Actor
	orgA   models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		store:  NewMemoryStore(),
		rec:    &recorder{},
		now:    baseTime,
		groupA: models.InviterGroup{ID: uuid.New(), Name: "Protocol"},
		groupB: models.InviterGroup{ID: uuid.New(), Name: "Partners"},
	}
	f.m = NewManager(f.store, zap.NewNop())
	f.m.SetNotifier(f.rec)
	f.m.SetAuditor(f.rec)
	f.m.SetPublisher(f.rec)
	f.m.SetClock(func() time.Time { return f.now })

	f.admin = models.Actor{UserID: uuid.New(), Role: models.RoleAdmin}
	f.dirA = models.Actor{UserID: uuid.New(), Role: models.RoleDirector, GroupID: &f.groupA.ID}
	f.dirB = models.Actor{UserID: uuid.New(), Role: models.RoleDirector, GroupID: &f.groupB.ID}
	f.orgA = models.Actor{UserID: uuid.New(), Role: models.RoleOrganizer, GroupID: &f.groupA.ID}

	f.store.AddGroup(f.groupA)
	f.store.AddGroup(f.groupB)
	f.event = models.Event{
		ID:        uuid.New(),
		Name:      "Annual Gala",
		StartDate: baseTime.Add(48 * time.Hour),
		EndDate:   baseTime.Add(52 * time.Hour),
	}
	f.store.AddEvent(f.event)
	return f
}

func quota(n int) *int { return &n }

func (f *fixture) assign(groupID uuid.UUID, q *int) {
	f.store.SetQuota(f.event.ID, groupID, q)
}

func (f *fixture) inviter(groupID uuid.UUID, name string) uuid.UUID {
	id := uuid.New()
	f.store.AddInviter(models.Inviter{ID: id, Name: name, InviterGroupID: groupID, IsActive: true})
	return id
}

func (f *fixture) contact(groupID uuid.UUID, name, phone string, plusOne int) models.Invitee {
	inv := models.Invitee{
		ID:             uuid.New(),
		Name:           name,
		Phone:          phone,
		PlusOne:        plusOne,
		InviterGroupID: groupID,
		CreatedAt:      f.now,
	}
	f.store.AddInvitee(inv)
	return inv
}

func (f *fixture) withInviter(inv models.Invitee, inviterID uuid.UUID) models.Invitee {
	inv.InviterID = &inviterID
	f.store.AddInvitee(inv)
	return inv
}

// association stores an association directly in the given state.
func (f *fixture) association(inv models.Invitee, status models.InviteeStatus) models.EventInvitee {
	f.now = f.now.Add(time.Second)
	ei := models.EventInvitee{
		ID:         uuid.New(),
		EventID:    f.event.ID,
		InviteeID:  inv.ID,
		InviterID:  inv.InviterID,
		Status:     status,
		StatusDate: f.now,
		PlusOne:    inv.PlusOne,
		CreatedAt:  f.now,
		UpdatedAt:  f.now,
	}
	f.store.AddAssociation(ei)
	return ei
}

func (f *fixture) get(id uuid.UUID) *models.EventInvitee {
	f.t.Helper()
	ei, err := f.store.GetAssociation(context.Background(), id)
	require.NoError(f.t, err)
	return ei
}

func (f *fixture) approvedWithCode(inv models.Invitee, code string) models.EventInvitee {
	ei := f.association(inv, models.StatusApproved)
	ei.AttendanceCode = &code
	f.store.AddAssociation(ei)
	return ei
}

func ids(list ...uuid.UUID) []uuid.UUID { return list }
