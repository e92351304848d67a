package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap-backend/internal/domain"
	"skillswap-backend/internal/service/presence"
	apperrors "skillswap-backend/pkg/errors"
	"skillswap-backend/pkg/logger"
	"skillswap-backend/pkg/metrics"
)

// Event delivered to every connection joined to a room when a message is
// relayed
const EventNewMessage = "newMessage"

// NewMessagePayload is the newMessage payload
type NewMessagePayload struct {
	SenderID   uuid.UUID `json:"senderId"`
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RequestStore loads exchange requests from the persistence store
type RequestStore interface {
	GetByID(ctx context.Context, requestID uuid.UUID) (*domain.ExchangeRequest, error)
}

// MessageStore reads and appends chat messages in the persistence store
type MessageStore interface {
	Create(ctx context.Context, requestID, senderID uuid.UUID, body string) (*domain.ChatMessage, error)
	GetByRequestID(ctx context.Context, requestID uuid.UUID) ([]*domain.ChatMessage, error)
}

// BlockStore answers symmetric block-relation queries
type BlockStore interface {
	BlockExistsBetween(ctx context.Context, user1ID, user2ID uuid.UUID) (bool, error)
}

// Relay validates and relays chat messages for approved exchange rooms.
// A room is a server-side broadcast group keyed by request ID; joining is
// unchecked delivery grouping, authorization happens at send time.
type Relay struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[presence.Conn]bool

	requests RequestStore
	messages MessageStore
	blocks   BlockStore
}

// NewRelay creates a chat relay
func NewRelay(requests RequestStore, messages MessageStore, blocks BlockStore) *Relay {
	return &Relay{
		rooms:    make(map[uuid.UUID]map[presence.Conn]bool),
		requests: requests,
		messages: messages,
		blocks:   blocks,
	}
}

// JoinRoom adds conn to the broadcast group for requestID. Join is
// unchecked delivery grouping: a group member receives whatever is
// broadcast into the group, and authorization is enforced at send time
// only.
func (r *Relay) JoinRoom(conn presence.Conn, requestID uuid.UUID) {
	r.mu.Lock()
	if r.rooms[requestID] == nil {
		r.rooms[requestID] = make(map[presence.Conn]bool)
	}
	r.rooms[requestID][conn] = true
	metrics.ChatRoomsActive.Set(float64(len(r.rooms)))
	r.mu.Unlock()
}

// LeaveAll removes conn from every broadcast group it joined. Called once
// when the connection closes.
func (r *Relay) LeaveAll(conn presence.Conn) {
	r.mu.Lock()
	for requestID, group := range r.rooms {
		if group[conn] {
			delete(group, conn)
			if len(group) == 0 {
				delete(r.rooms, requestID)
			}
		}
	}
	metrics.ChatRoomsActive.Set(float64(len(r.rooms)))
	r.mu.Unlock()
}

// SendMessageInput carries a sendMessage request from a connection
type SendMessageInput struct {
	RequestID  uuid.UUID
	SenderID   uuid.UUID // claimed by the client payload
	SenderName string
	Body       string
}

// SendMessage validates, persists, and broadcasts one chat message.
// senderID is the connection's bound identity; the claimed sender in the
// payload must match it. The message is broadcast only after the store
// write succeeds, so every delivered message exists in the store.
func (r *Relay) SendMessage(ctx context.Context, senderID uuid.UUID, input *SendMessageInput) error {
	if err := r.authorize(ctx, senderID, input); err != nil {
		metrics.ChatMessagesRelayedTotal.WithLabelValues(string(apperrors.Code(err))).Inc()
		return err
	}

	msg, err := r.messages.Create(ctx, input.RequestID, senderID, input.Body)
	if err != nil {
		metrics.ChatMessagesRelayedTotal.WithLabelValues(string(apperrors.ErrCodeStoreFailure)).Inc()
		logger.Error("failed to persist message",
			zap.String("request_id", input.RequestID.String()),
			zap.String("sender_id", senderID.String()),
			zap.Error(err))
		return apperrors.StoreFailure("Failed to send message", err)
	}

	r.broadcast(input.RequestID, EventNewMessage, NewMessagePayload{
		SenderID:   senderID,
		SenderName: input.SenderName,
		Message:    msg.Body,
		CreatedAt:  msg.CreatedAt,
	})

	metrics.ChatMessagesRelayedTotal.WithLabelValues("delivered").Inc()
	return nil
}

// History returns a room's persisted messages for a user, applying the same
// party and block checks as sending.
func (r *Relay) History(ctx context.Context, userID, requestID uuid.UUID) ([]*domain.ChatMessage, error) {
	if err := r.authorize(ctx, userID, &SendMessageInput{RequestID: requestID, SenderID: userID}); err != nil {
		return nil, err
	}
	msgs, err := r.messages.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, apperrors.StoreFailure("Failed to load messages", err)
	}
	return msgs, nil
}

func (r *Relay) authorize(ctx context.Context, boundID uuid.UUID, input *SendMessageInput) error {
	if input.SenderID != boundID {
		return apperrors.Unauthorized()
	}

	req, err := r.requests.GetByID(ctx, input.RequestID)
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			return apperrors.RequestNotFound()
		}
		return apperrors.StoreFailure("Failed to send message", err)
	}

	if !req.HasParty(boundID) {
		return apperrors.Forbidden()
	}

	otherID := req.OtherParty(boundID)
	blocked, err := r.blocks.BlockExistsBetween(ctx, boundID, otherID)
	if err != nil {
		return apperrors.StoreFailure("Failed to send message", err)
	}
	if blocked {
		return apperrors.Blocked("Cannot send message. User blocked.")
	}

	return nil
}

func (r *Relay) broadcast(requestID uuid.UUID, event string, data interface{}) {
	r.mu.RLock()
	targets := make([]presence.Conn, 0, len(r.rooms[requestID]))
	for conn := range r.rooms[requestID] {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	for _, conn := range targets {
		conn.Send(event, data)
	}
}
