package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"skillswap-backend/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Outbound queue depth per connection
	sendBufferSize = 256
)

// Client is one identity-bound WebSocket connection. It implements
// presence.Conn: delivery is fire-and-forget through a buffered queue and
// a connection that cannot keep up is dropped.
type Client struct {
	gateway *Gateway
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}

	userID   uuid.UUID
	userName string

	closeOnce sync.Once
}

func newClient(gateway *Gateway, conn *websocket.Conn, userID uuid.UUID, userName string) *Client {
	return &Client{
		gateway:  gateway,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		userID:   userID,
		userName: userName,
	}
}

// Send queues an event for delivery. A closed or saturated connection
// drops the event; there is no buffering for unreachable targets.
func (c *Client) Send(event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Error("failed to marshal event payload",
			zap.String("event", event),
			zap.Error(err))
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		logger.Error("failed to marshal envelope",
			zap.String("event", event),
			zap.Error(err))
		return
	}

	select {
	case <-c.done:
	case c.send <- frame:
	default:
		// Slow consumer: drop the connection rather than block the sender
		logger.Warn("send queue full, dropping connection",
			zap.String("user_id", c.userID.String()))
		c.Close()
	}
}

// Close tears down the transport; both pumps exit and the gateway's
// disconnect handling runs exactly once via the readPump defer.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump reads frames off the connection and dispatches them. It owns
// the connection's read side and triggers disconnect cleanup on exit.
func (c *Client) readPump() {
	defer func() {
		c.gateway.handleDisconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read error",
					zap.String("user_id", c.userID.String()),
					zap.Error(err))
			}
			return
		}
		c.gateway.dispatch(c, message)
	}
}

// writePump drains the send queue onto the connection and keeps the
// transport alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
