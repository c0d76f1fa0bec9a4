package checkin

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/models"
)

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*models.Event
	taken  map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: map[uuid.UUID]*models.Event{}, taken: map[string]bool{}}
}

func (s *fakeStore) add(e models.Event) *models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := e
	s.events[e.ID] = &cp
	if e.Code != nil {
		s.taken[*e.Code] = true
	}
	return &cp
}

func (s *fakeStore) get(id uuid.UUID) (*models.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, lifecycle.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *fakeStore) GetByCode(_ context.Context, code string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.events {
		if e.Code != nil && *e.Code == code {
			return s.get(id)
		}
	}
	return nil, lifecycle.ErrNotFound
}

func (s *fakeStore) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taken[code], nil
}

func (s *fakeStore) SavePin(_ context.Context, id uuid.UUID, pin, code string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, lifecycle.ErrNotFound
	}
	e.CheckinPin = &pin
	e.CheckinPinActive = true
	e.CheckinPinVersion++
	if e.Code == nil && code != "" {
		e.Code = &code
		s.taken[code] = true
	}
	return s.get(id)
}

func (s *fakeStore) SetPinActive(_ context.Context, id uuid.UUID, active bool) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, lifecycle.ErrNotFound
	}
	e.CheckinPinActive = active
	return s.get(id)
}

func (s *fakeStore) SetPinAutoDeactivate(_ context.Context, id uuid.UUID, hours *int) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, lifecycle.ErrNotFound
	}
	e.CheckinPinAutoDeactivateHrs = hours
	return s.get(id)
}

func (s *fakeStore) ListActivePinEvents(_ context.Context) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, e := range s.events {
		if e.CheckinPinActive && e.CheckinPin != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeStore) DeactivatePin(_ context.Context, id uuid.UUID, version int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok || !e.CheckinPinActive || e.CheckinPinVersion != version {
		return false, nil
	}
	e.CheckinPinActive = false
	return true, nil
}

type auditRecorder struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *auditRecorder) Record(_ context.Context, e models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *auditRecorder) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

func hours(n int) *int { return &n }

func gala() models.Event {
	return models.Event{
		ID:        uuid.New(),
		Name:      "Gala Dinner",
		StartDate: baseTime.Add(48 * time.Hour),
		EndDate:   baseTime.Add(52 * time.Hour),
	}
}
