package livedashboard

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60

	sendBuffer = 64
)

// Message is the WebSocket message envelope.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RedisPublisher publishes dashboard updates for other instances.
type RedisPublisher interface {
	PublishEventUpdate(eventID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to an event's channel and invokes handler for incoming updates.
type RedisSubscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub keeps event_id -> set of dashboard connections.
// With Redis configured, updates go through pub/sub so every instance delivers them once.
type Hub struct {
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func()
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// NewHub creates a dashboard hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its event room. The first client of a room starts the Redis subscription.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.EventID] == nil {
		h.rooms[c.EventID] = make(map[string]*Client)
		if h.redisSub != nil {
			eventID := c.EventID
			cancel, err := h.redisSub.SubscribeEvent(eventID, func(event string, payload []byte) {
				h.Broadcast(eventID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("dashboard subscribe failed", zap.Error(err), zap.String("event_id", eventID.String()))
			} else {
				h.subs[eventID] = cancel
			}
		}
	}
	h.rooms[c.EventID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("dashboard viewer joined", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Unregister removes a client. The last client of a room cancels its Redis subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.EventID]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.rooms, c.EventID)
			if cancel, ok := h.subs[c.EventID]; ok {
				cancel()
				delete(h.subs, c.EventID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("dashboard viewer left", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Broadcast sends a message to the local clients of an event.
func (h *Hub) Broadcast(eventID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("dashboard payload encode failed", zap.Error(err), zap.String("event", event))
		return
	}
	msg := Message{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			// slow viewer; it will refetch on the next update
		}
	}
}

// PublishEventUpdate delivers an update to every dashboard of the event.
// With Redis it only publishes, and the subscriber callback broadcasts locally.
func (h *Hub) PublishEventUpdate(eventID uuid.UUID, event string, payload interface{}) {
	if h.redis == nil {
		h.Broadcast(eventID, event, payload)
		return
	}
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("dashboard payload encode failed", zap.Error(err), zap.String("event", event))
		return
	}
	if err := h.redis.PublishEventUpdate(eventID, event, data); err != nil {
		h.logger.Warn("dashboard publish failed, delivering locally", zap.Error(err), zap.String("event_id", eventID.String()))
		h.Broadcast(eventID, event, json.RawMessage(data))
	}
}

// ViewerCount returns the number of local connections watching an event.
func (h *Hub) ViewerCount(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

// TotalViewers counts local connections across all events.
func (h *Hub) TotalViewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
