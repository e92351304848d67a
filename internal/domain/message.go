package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage represents a persisted chat message inside an exchange room.
// Messages are append-only and immutable once written.
type ChatMessage struct {
	MessageID  uuid.UUID `json:"message_id"`
	RequestID  uuid.UUID `json:"request_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"` // joined from users on read
	Body       string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
