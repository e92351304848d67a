package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"skillswap-backend/internal/service/call"
	"skillswap-backend/internal/service/chat"
	"skillswap-backend/internal/service/presence"
	apperrors "skillswap-backend/pkg/errors"
	"skillswap-backend/pkg/jwt"
	"skillswap-backend/pkg/logger"
	"skillswap-backend/pkg/metrics"
)

// storeTimeout bounds each store round-trip made on behalf of one event
const storeTimeout = 5 * time.Second

// Gateway binds incoming WebSocket connections to verified identities and
// routes their events to the presence registry, chat relay, and call
// coordinator for the lifetime of the connection.
type Gateway struct {
	registry    *presence.Registry
	relay       *chat.Relay
	coordinator *call.Coordinator
	sessions    *jwt.SessionManager
	upgrader    websocket.Upgrader
}

// NewGateway creates a connection gateway
func NewGateway(registry *presence.Registry, relay *chat.Relay, coordinator *call.Coordinator, sessions *jwt.SessionManager, allowedOrigins []string) *Gateway {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &Gateway{
		registry:    registry,
		relay:       relay,
		coordinator: coordinator,
		sessions:    sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Non-browser clients send no Origin header
					return true
				}
				return allowed[origin]
			},
		},
	}
}

// ServeWS handles WebSocket upgrade requests. The session token rides the
// query string because browser WebSocket clients cannot set headers. A
// connection without a valid identity is closed with no error payload: it
// was never trusted.
func (g *Gateway) ServeWS(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	token := c.Query("token")
	if token == "" {
		metrics.WebSocketConnectionsRejectedTotal.Inc()
		conn.Close()
		return
	}

	claims, err := g.sessions.ValidateToken(token)
	if err != nil {
		metrics.WebSocketConnectionsRejectedTotal.Inc()
		logger.Warn("rejecting unidentified connection", zap.Error(err))
		conn.Close()
		return
	}

	client := newClient(g, conn, claims.UserID, claims.Name)

	metrics.WebSocketConnectionsActive.Inc()
	logger.Info("connection established",
		zap.String("user_id", client.userID.String()))

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	g.registry.Register(ctx, client.userID, client)
	cancel()

	go client.writePump()
	go client.readPump()
}

// handleDisconnect is the single connection-closed event: the relay drops
// the connection from all rooms and, if this was the user's registered
// connection, the coordinator force-ends their calls. A replaced connection
// closing late only cleans up after itself: the user is still online on a
// newer connection and their call sessions must survive.
func (g *Gateway) handleDisconnect(client *Client) {
	metrics.WebSocketConnectionsActive.Dec()

	g.relay.LeaveAll(client)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if !g.registry.Unregister(ctx, client.userID, client) {
		logger.Debug("stale connection closed",
			zap.String("user_id", client.userID.String()))
		return
	}

	g.coordinator.HandleDisconnect(client.userID)

	logger.Info("connection closed",
		zap.String("user_id", client.userID.String()))
}

// dispatch routes one inbound frame. Failures are reported to the sending
// connection only, as a typed error event; no other party is notified and
// no fault escapes the handler.
func (g *Gateway) dispatch(client *Client, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		client.Send(EventError, ErrorPayload{Message: "Malformed event"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	switch env.Event {
	case EventJoinRoom:
		var p JoinRoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			client.Send(EventError, ErrorPayload{Message: "Malformed event"})
			return
		}
		g.relay.JoinRoom(client, p.RequestID)

	case EventSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			client.Send(EventError, ErrorPayload{Message: "Malformed event"})
			return
		}
		err := g.relay.SendMessage(ctx, client.userID, &chat.SendMessageInput{
			RequestID:  p.RequestID,
			SenderID:   p.SenderID,
			SenderName: p.SenderName,
			Body:       p.Message,
		})
		if err != nil {
			client.Send(EventError, ErrorPayload{Message: apperrors.Message(err)})
		}

	case EventGetOnlineUsers:
		client.Send(EventOnlineUsersList, g.registry.Snapshot())

	case EventCallInitiate:
		var p CallInitiatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			client.Send(call.EventError, call.ErrorPayload{Message: "Malformed event"})
			return
		}
		g.reportCallError(client, g.coordinator.Initiate(ctx, client.userID, client.userName, p.TargetUserID, p.RequestID))

	case EventCallAccept:
		var p CallConsentPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			client.Send(call.EventError, call.ErrorPayload{Message: "Malformed event"})
			return
		}
		g.reportCallError(client, g.coordinator.Accept(client.userID, p.CallerID))

	case EventCallReject:
		var p CallConsentPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			client.Send(call.EventError, call.ErrorPayload{Message: "Malformed event"})
			return
		}
		g.reportCallError(client, g.coordinator.Reject(client.userID, p.CallerID))

	case EventCallOffer:
		var p CallOfferPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			client.Send(call.EventError, call.ErrorPayload{Message: "Malformed event"})
			return
		}
		g.reportCallError(client, g.coordinator.Offer(client.userID, p.TargetUserID, p.Offer))

	case EventCallAnswer:
		var p CallAnswerPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			client.Send(call.EventError, call.ErrorPayload{Message: "Malformed event"})
			return
		}
		g.reportCallError(client, g.coordinator.Answer(client.userID, p.TargetUserID, p.Answer))

	case EventCallCandidate:
		var p CallCandidatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			client.Send(call.EventError, call.ErrorPayload{Message: "Malformed event"})
			return
		}
		g.reportCallError(client, g.coordinator.IceCandidate(client.userID, p.TargetUserID, p.Candidate))

	case EventCallEnd:
		var p CallEndPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			client.Send(call.EventError, call.ErrorPayload{Message: "Malformed event"})
			return
		}
		g.reportCallError(client, g.coordinator.End(client.userID, p.TargetUserID))

	default:
		logger.Debug("unknown event",
			zap.String("event", env.Event),
			zap.String("user_id", client.userID.String()))
	}
}

func (g *Gateway) reportCallError(client *Client, err error) {
	if err != nil {
		client.Send(call.EventError, call.ErrorPayload{Message: apperrors.Message(err)})
	}
}
