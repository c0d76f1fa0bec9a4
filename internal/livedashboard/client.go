package livedashboard

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the dashboard is public and read-only
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one dashboard WebSocket connection.
type Client struct {
	ID      string
	EventID uuid.UUID
	hub     *Hub
	conn    *websocket.Conn
	send    chan Message
	logger  *zap.Logger
}

func newClient(hub *Hub, eventID uuid.UUID, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		ID:      uuid.New().String(),
		EventID: eventID,
		hub:     hub,
		conn:    conn,
		send:    make(chan Message, sendBuffer),
		logger:  logger,
	}
}

// readPump only drains control frames; viewers never send updates.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("dashboard read failed", zap.Error(err), zap.String("client_id", c.ID))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
