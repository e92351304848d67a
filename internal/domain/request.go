package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRequestNotFound is returned by stores when a request lookup matches
// no row
var ErrRequestNotFound = errors.New("exchange request not found")

// Exchange request status values
const (
	RequestStatusPending   = "pending"
	RequestStatusAccepted  = "accepted"
	RequestStatusRejected  = "rejected"
	RequestStatusCompleted = "completed"
)

// ExchangeRequest represents a skill-exchange agreement between two users.
// An accepted request is the chat room and call authorization boundary:
// only its two parties may message or call each other through it.
type ExchangeRequest struct {
	RequestID    uuid.UUID `json:"request_id"`
	SenderID     uuid.UUID `json:"sender_id"`
	ReceiverID   uuid.UUID `json:"receiver_id"`
	SenderName   string    `json:"sender_name"`
	ReceiverName string    `json:"receiver_name"`
	SkillOffer   string    `json:"skill_offer"`
	SkillNeed    string    `json:"skill_need"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasParty reports whether userID is one of the two request parties
func (r *ExchangeRequest) HasParty(userID uuid.UUID) bool {
	return r.SenderID == userID || r.ReceiverID == userID
}

// OtherParty returns the counterpart of userID in this request.
// The caller must have verified membership with HasParty first.
func (r *ExchangeRequest) OtherParty(userID uuid.UUID) uuid.UUID {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}

// IsAccepted reports whether the request is in the accepted state
func (r *ExchangeRequest) IsAccepted() bool {
	return r.Status == RequestStatusAccepted
}
