package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/queue"
	"github.com/aura-events/backend/pkg/storage"
)

var now = time.Date(2026, 4, 20, 8, 0, 0, 0, time.UTC)

type noteStore struct {
	created   []models.Notification
	approvers []uuid.UUID
}

func (s *noteStore) CreateMany(_ context.Context, list []models.Notification) error {
	s.created = append(s.created, list...)
	return nil
}
func (s *noteStore) List(context.Context, uuid.UUID, bool, int, int) ([]models.Notification, error) {
	return nil, nil
}
func (s *noteStore) UnreadCount(context.Context, uuid.UUID) (int, error) { return 0, nil }
func (s *noteStore) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (s *noteStore) MarkAllRead(context.Context, uuid.UUID) (int64, error) { return 0, nil }
func (s *noteStore) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (s *noteStore) IsActiveUser(context.Context, uuid.UUID) (bool, error) { return true, nil }
func (s *noteStore) Approvers(context.Context, *uuid.UUID) ([]uuid.UUID, error) {
	return s.approvers, nil
}

type fakeFiles struct {
	bucket, key, contentType string
	size                     int
	err                      error
}

func (f *fakeFiles) Upload(_ context.Context, bucket, key, contentType string, body io.Reader, _ int64) error {
	if f.err != nil {
		return f.err
	}
	b, _ := io.ReadAll(body)
	f.bucket, f.key, f.contentType, f.size = bucket, key, contentType, len(b)
	return nil
}

func (f *fakeFiles) GeneratePresignedDownloadURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://s3.example.com/" + bucket + "/" + key + "?sig=1", nil
}
func (f *fakeFiles) ExportsBucket() string { return "exports" }
func (f *fakeFiles) PresignExpire() time.Duration { return 15 * time.Minute }

type eventsByID map[uuid.UUID]*models.Event

func (m eventsByID) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if e, ok := m[id]; ok {
		return e, nil
	}
	return nil, lifecycle.ErrNotFound
}

type fakeJobs struct {
	jobs    []*queue.Job
	retried []*queue.Job
	cancel  context.CancelFunc
}

func (f *fakeJobs) Dequeue(context.Context, time.Duration) (*queue.Job, string, error) {
	if len(f.jobs) == 0 {
		f.cancel()
		return nil, "", nil
	}
	j := f.jobs[0]
	f.jobs = f.jobs[1:]
	return j, "", nil
}

func (f *fakeJobs) Retry(_ context.Context, job *queue.Job) error {
	f.retried = append(f.retried, job)
	return nil
}

type fixture struct {
	notes *noteStore
	files *fakeFiles
	event models.Event
	p     *Processor
}

func newFixture(t *testing.T, jobs Jobs) *fixture {
	t.Helper()
	f := &fixture{notes: &noteStore{}, files: &fakeFiles{}}
	store := lifecycle.NewMemoryStore()
	f.event = models.Event{ID: uuid.New(), Name: "Board Dinner", StartDate: now, EndDate: now.Add(3 * time.Hour)}
	store.AddEvent(f.event)
	group := models.InviterGroup{ID: uuid.New(), Name: "Board"}
	store.AddGroup(group)
	inv := models.Invitee{ID: uuid.New(), Name: "Sami Odeh", Phone: "0791112222", InviterGroupID: group.ID}
	store.AddInvitee(inv)
	store.AddAssociation(models.EventInvitee{ID: uuid.New(), EventID: f.event.ID, InviteeID: inv.ID, Status: models.StatusApproved, CreatedAt: now})

	mgr := lifecycle.NewManager(store, nil)
	mgr.SetClock(func() time.Time { return now })
	f.p = NewProcessor(jobs, f.notes, eventsByID{f.event.ID: &f.event}, mgr, f.files, nil)
	f.p.now = func() time.Time { return now }
	return f
}

func TestProcess_Notification(t *testing.T) {
	f := newFixture(t, nil)
	director := uuid.New()
	f.notes.approvers = []uuid.UUID{director}
	group := uuid.New()
	job, err := queue.NewJob(queue.JobTypeNotification, queue.NotificationPayload{
		Type: models.NotificationInvitationSubmitted, EventID: f.event.ID, GroupID: &group, Title: "3 invitations submitted",
	})
	require.NoError(t, err)

	require.NoError(t, f.p.Process(context.Background(), job))
	require.Len(t, f.notes.created, 1)
	assert.Equal(t, director, f.notes.created[0].UserID)
	assert.Equal(t, "3 invitations submitted", f.notes.created[0].Title)
}

func TestProcess_Export(t *testing.T) {
	f := newFixture(t, nil)
	requester := uuid.New()
	job, err := queue.NewJob(queue.JobTypeExport, queue.ExportPayload{EventID: f.event.ID, RequestedBy: requester})
	require.NoError(t, err)

	require.NoError(t, f.p.Process(context.Background(), job))
	assert.Equal(t, "exports", f.files.bucket)
	assert.Equal(t, "exports/"+f.event.ID.String()+"/20260420T080000Z.xlsx", f.files.key)
	assert.Equal(t, storage.ContentTypeXLSX, f.files.contentType)
	assert.Positive(t, f.files.size)

	require.Len(t, f.notes.created, 1)
	n := f.notes.created[0]
	assert.Equal(t, requester, n.UserID)
	assert.Equal(t, models.NotificationExportReady, n.Type)
	assert.Contains(t, n.Link, f.files.key)
	assert.Contains(t, n.Message, "1 attendees")
}

func TestProcess_Errors(t *testing.T) {
	f := newFixture(t, nil)
	job, _ := queue.NewJob(queue.JobTypeExport, queue.ExportPayload{EventID: uuid.New()})
	assert.ErrorIs(t, f.p.Process(context.Background(), job), lifecycle.ErrNotFound)

	f.files.err = errors.New("access denied")
	job, _ = queue.NewJob(queue.JobTypeExport, queue.ExportPayload{EventID: f.event.ID})
	assert.Error(t, f.p.Process(context.Background(), job))
	assert.Empty(t, f.notes.created)

	assert.Error(t, f.p.Process(context.Background(), &queue.Job{Type: "bogus"}))
}

func TestRun_RetriesFailedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	jobs := &fakeJobs{cancel: cancel}
	f := newFixture(t, jobs)
	f.p.backoff = time.Millisecond
	good, _ := queue.NewJob(queue.JobTypeNotification, queue.NotificationPayload{Title: "hi"})
	bad := &queue.Job{ID: "bad", Type: queue.JobTypeNotification, Payload: []byte("{")}
	jobs.jobs = []*queue.Job{good, bad}

	done := make(chan struct{})
	go func() {
		f.p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	require.Len(t, jobs.retried, 1)
	assert.Equal(t, "bad", jobs.retried[0].ID)
}
