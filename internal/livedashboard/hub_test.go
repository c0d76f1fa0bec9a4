package livedashboard

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	published []redisPayload
	handlers  map[uuid.UUID]func(event string, payload []byte)
	cancelled []uuid.UUID
	err       error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{handlers: make(map[uuid.UUID]func(string, []byte))}
}

func (f *fakeRedis) PublishEventUpdate(_ uuid.UUID, event string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, redisPayload{Event: event, Data: payload})
	return nil
}

func (f *fakeRedis) SubscribeEvent(eventID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	f.handlers[eventID] = handler
	return func() { f.cancelled = append(f.cancelled, eventID) }, nil
}

func testClient(h *Hub, eventID uuid.UUID) *Client {
	return &Client{ID: uuid.New().String(), EventID: eventID, hub: h, send: make(chan Message, 8)}
}

func TestHub_LocalBroadcast(t *testing.T) {
	h := NewHub(nil, nil, nil)
	event, other := uuid.New(), uuid.New()
	a, b := testClient(h, event), testClient(h, other)
	h.Register(a)
	h.Register(b)
	assert.Equal(t, 1, h.ViewerCount(event))
	assert.Equal(t, 2, h.TotalViewers())

	h.PublishEventUpdate(event, "check_in", map[string]int{"guests": 2})

	require.Len(t, a.send, 1)
	msg := <-a.send
	assert.Equal(t, "check_in", msg.Event)
	assert.JSONEq(t, `{"guests":2}`, string(msg.Data))
	assert.Empty(t, b.send)

	h.PublishEventUpdate(event, "stats_changed", nil)
	msg = <-a.send
	assert.Equal(t, "stats_changed", msg.Event)
	assert.Nil(t, msg.Data)
}

func TestHub_RedisFanOut(t *testing.T) {
	r := newFakeRedis()
	h := NewHub(nil, r, r)
	event := uuid.New()
	a := testClient(h, event)
	h.Register(a)
	require.Contains(t, r.handlers, event)

	h.PublishEventUpdate(event, "undo_check_in", map[string]string{"event_invitee_id": "x"})
	assert.Empty(t, a.send, "publishing must not deliver locally before the subscriber does")
	require.Len(t, r.published, 1)

	r.handlers[event](r.published[0].Event, r.published[0].Data)
	require.Len(t, a.send, 1)
	msg := <-a.send
	assert.Equal(t, "undo_check_in", msg.Event)
	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "x", body["event_invitee_id"])

	h.Unregister(a)
	assert.Equal(t, []uuid.UUID{event}, r.cancelled)
	assert.Zero(t, h.ViewerCount(event))
	_, open := <-a.send
	assert.False(t, open)
}

func TestHub_PublishFailureFallsBackToLocal(t *testing.T) {
	r := newFakeRedis()
	r.err = errors.New("connection refused")
	h := NewHub(nil, r, r)
	event := uuid.New()
	a := testClient(h, event)
	h.Register(a)

	h.PublishEventUpdate(event, "check_in", map[string]int{"guests": 0})
	require.Len(t, a.send, 1)
}

func TestHub_UnregisterTwice(t *testing.T) {
	h := NewHub(nil, nil, nil)
	a := testClient(h, uuid.New())
	h.Register(a)
	h.Unregister(a)
	assert.NotPanics(t, func() { h.Unregister(a) })
}

func TestChannel(t *testing.T) {
	id := uuid.MustParse("0b7e4f5c-8f5d-4c7e-9a51-1d2c3b4a5f60")
	assert.Equal(t, "event:0b7e4f5c-8f5d-4c7e-9a51-1d2c3b4a5f60:live", Channel(id))
}
