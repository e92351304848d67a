package ws

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Client→server events
const (
	EventJoinRoom       = "joinRoom"
	EventSendMessage    = "sendMessage"
	EventGetOnlineUsers = "getOnlineUsers"
	EventCallInitiate   = "call:initiate"
	EventCallAccept     = "call:accept"
	EventCallReject     = "call:reject"
	EventCallOffer      = "call:offer"
	EventCallAnswer     = "call:answer"
	EventCallCandidate  = "call:ice-candidate"
	EventCallEnd        = "call:end"
)

// Server→client events (chat and presence; call events live in the call
// service package)
const (
	EventError           = "error"
	EventOnlineUsersList = "onlineUsersList"
)

// Envelope is the wire frame: every message carries an event name and an
// event-specific data object
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrorPayload is the error event payload
type ErrorPayload struct {
	Message string `json:"message"`
}

// JoinRoomPayload subscribes the connection to a room broadcast group
type JoinRoomPayload struct {
	RequestID uuid.UUID `json:"requestId"`
}

// SendMessagePayload carries an outbound chat message
type SendMessagePayload struct {
	RequestID  uuid.UUID `json:"requestId"`
	SenderID   uuid.UUID `json:"senderId"`
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
}

// CallInitiatePayload starts a call attempt
type CallInitiatePayload struct {
	TargetUserID uuid.UUID `json:"targetUserId"`
	RequestID    uuid.UUID `json:"requestId"`
}

// CallConsentPayload answers an incoming call (accept or reject)
type CallConsentPayload struct {
	CallerID uuid.UUID `json:"callerId"`
}

// CallOfferPayload carries an SDP offer; the sdp body is opaque
type CallOfferPayload struct {
	TargetUserID uuid.UUID       `json:"targetUserId"`
	Offer        json.RawMessage `json:"offer"`
}

// CallAnswerPayload carries an SDP answer; the sdp body is opaque
type CallAnswerPayload struct {
	TargetUserID uuid.UUID       `json:"targetUserId"`
	Answer       json.RawMessage `json:"answer"`
}

// CallCandidatePayload carries an ICE candidate; the candidate is opaque
type CallCandidatePayload struct {
	TargetUserID uuid.UUID       `json:"targetUserId"`
	Candidate    json.RawMessage `json:"candidate"`
}

// CallEndPayload terminates a call
type CallEndPayload struct {
	TargetUserID uuid.UUID `json:"targetUserId"`
}
