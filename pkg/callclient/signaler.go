// Package callclient is a native client for the realtime call signaling
// protocol. It mirrors the server-side call states, drives a WebRTC peer
// connection through offer/answer/ICE exchange, and supports screen sharing
// by replacing the outgoing video track in place. Coupling to the transport
// is via the Signaler interface only.
package callclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// Envelope is the wire frame shared with the gateway: an event name and an
// event-specific data object
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Signaler is the endpoint's view of the signaling transport
type Signaler interface {
	// Send delivers one event to the gateway
	Send(event string, data interface{}) error
	// Events yields inbound envelopes; the channel closes when the
	// transport closes
	Events() <-chan Envelope
	// Close tears down the transport
	Close() error
}

// wsSignaler speaks the gateway's websocket protocol
type wsSignaler struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	events  chan Envelope

	closeOnce sync.Once
}

// Dial connects to the gateway websocket endpoint, authenticating with the
// session token as a query parameter.
func Dial(ctx context.Context, gatewayURL, token string) (Signaler, error) {
	u, err := url.Parse(gatewayURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	s := &wsSignaler{
		conn:   conn,
		events: make(chan Envelope, 32),
	}
	go s.readLoop()
	return s, nil
}

func (s *wsSignaler) Send(event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(Envelope{Event: event, Data: raw})
}

func (s *wsSignaler) Events() <-chan Envelope {
	return s.events
}

func (s *wsSignaler) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

func (s *wsSignaler) readLoop() {
	defer close(s.events)
	for {
		var env Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			return
		}
		s.events <- env
	}
}
