package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallState is the lifecycle state of a call attempt
type CallState string

const (
	// CallStateRinging: initiate delivered to an online callee, awaiting consent
	CallStateRinging CallState = "ringing"
	// CallStateAccepted: callee consented, caller owes the SDP offer
	CallStateAccepted CallState = "accepted"
	// CallStateNegotiating: offer relayed, awaiting answer
	CallStateNegotiating CallState = "negotiating"
	// CallStateConnected: answer relayed, media flows peer-to-peer
	CallStateConnected CallState = "connected"
	// Terminal states: the session record is destroyed on entry
	CallStateEnded    CallState = "ended"
	CallStateRejected CallState = "rejected"
	CallStateError    CallState = "error"
)

// IsTerminal reports whether the state ends the session
func (s CallState) IsTerminal() bool {
	return s == CallStateEnded || s == CallStateRejected || s == CallStateError
}

// CallSession tracks one in-flight call attempt between two users.
// Sessions live only in memory, keyed by the unordered user pair; a crash
// loses in-flight call state and the caller simply redials.
type CallSession struct {
	CallerID  uuid.UUID `json:"caller_id"`
	CalleeID  uuid.UUID `json:"callee_id"`
	RequestID uuid.UUID `json:"request_id"`
	State     CallState `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

// Involves reports whether userID is a participant of this session
func (s *CallSession) Involves(userID uuid.UUID) bool {
	return s.CallerID == userID || s.CalleeID == userID
}

// Peer returns the counterpart of userID in this session
func (s *CallSession) Peer(userID uuid.UUID) uuid.UUID {
	if s.CallerID == userID {
		return s.CalleeID
	}
	return s.CallerID
}
