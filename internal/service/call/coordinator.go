package call

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
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

// Server→client signaling events
const (
	EventIncoming  = "call:incoming"
	EventAccepted  = "call:accepted"
	EventRejected  = "call:rejected"
	EventOffer     = "call:offer"
	EventAnswer    = "call:answer"
	EventCandidate = "call:ice-candidate"
	EventEnded     = "call:ended"
	EventError     = "call:error"
)

// IncomingPayload is delivered to the callee on initiate
type IncomingPayload struct {
	CallerID   uuid.UUID `json:"callerId"`
	CallerName string    `json:"callerName"`
	RequestID  uuid.UUID `json:"requestId"`
}

// PeerPayload is delivered for accepted/rejected/ended events
type PeerPayload struct {
	UserID uuid.UUID `json:"userId"`
}

// OfferPayload relays an SDP offer verbatim to the callee
type OfferPayload struct {
	Offer    json.RawMessage `json:"offer"`
	CallerID uuid.UUID       `json:"callerId"`
}

// AnswerPayload relays an SDP answer verbatim to the caller
type AnswerPayload struct {
	Answer json.RawMessage `json:"answer"`
	UserID uuid.UUID       `json:"userId"`
}

// CandidatePayload relays an ICE candidate verbatim to the other party
type CandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
	UserID    uuid.UUID       `json:"userId"`
}

// ErrorPayload is the call:error payload
type ErrorPayload struct {
	Message string `json:"message"`
}

// RequestStore loads exchange requests from the persistence store
type RequestStore interface {
	GetByID(ctx context.Context, requestID uuid.UUID) (*domain.ExchangeRequest, error)
}

// BlockStore answers symmetric block-relation queries
type BlockStore interface {
	BlockExistsBetween(ctx context.Context, user1ID, user2ID uuid.UUID) (bool, error)
}

// pairKey identifies the unordered user pair of a call session
type pairKey struct {
	lo, hi uuid.UUID
}

func makePairKey(a, b uuid.UUID) pairKey {
	if strings.Compare(a.String(), b.String()) < 0 {
		return pairKey{lo: a, hi: b}
	}
	return pairKey{lo: b, hi: a}
}

// session is a live call state machine instance. The ring timer is armed
// while the session is Ringing and disarmed on the first transition.
type session struct {
	domain.CallSession
	ringTimer *time.Timer
}

// Coordinator owns the call signaling state machine. It relays
// initiate/accept/reject/offer/answer/candidate/end events between exactly
// two identities, applying authorization and liveness checks at each step.
// SDP and ICE payloads pass through unmodified; the coordinator is a blind
// relay for them.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[pairKey]*session

	registry *presence.Registry
	requests RequestStore
	blocks   BlockStore

	// ringTimeout bounds the Ringing state; zero disables the timer
	ringTimeout time.Duration
}

// NewCoordinator creates a call signaling coordinator
func NewCoordinator(registry *presence.Registry, requests RequestStore, blocks BlockStore, ringTimeout time.Duration) *Coordinator {
	return &Coordinator{
		sessions:    make(map[pairKey]*session),
		registry:    registry,
		requests:    requests,
		blocks:      blocks,
		ringTimeout: ringTimeout,
	}
}

// Initiate starts a call attempt from callerID to targetUserID tied to an
// accepted exchange request. On success the session enters Ringing and the
// callee receives call:incoming.
func (c *Coordinator) Initiate(ctx context.Context, callerID uuid.UUID, callerName string, targetUserID, requestID uuid.UUID) error {
	req, err := c.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			return c.fail(apperrors.NewWithStatus(apperrors.ErrCodeNotFound, "Invalid request or not accepted", 404))
		}
		return c.fail(apperrors.StoreFailure("Failed to initiate call", err))
	}
	if !req.IsAccepted() {
		return c.fail(apperrors.InvalidState("Invalid request or not accepted"))
	}

	if !req.HasParty(callerID) || req.OtherParty(callerID) != targetUserID {
		return c.fail(apperrors.NewWithStatus(apperrors.ErrCodeForbidden, "Unauthorized", 403))
	}

	blocked, err := c.blocks.BlockExistsBetween(ctx, callerID, targetUserID)
	if err != nil {
		return c.fail(apperrors.StoreFailure("Failed to initiate call", err))
	}
	if blocked {
		return c.fail(apperrors.Blocked("User is blocked"))
	}

	calleeConn, online := c.registry.Resolve(targetUserID)
	if !online {
		return c.fail(apperrors.Offline())
	}

	key := makePairKey(callerID, targetUserID)

	c.mu.Lock()
	if existing, ok := c.sessions[key]; ok && !existing.State.IsTerminal() {
		c.mu.Unlock()
		return c.fail(apperrors.InvalidState("Call already in progress"))
	}
	sess := &session{
		CallSession: domain.CallSession{
			CallerID:  callerID,
			CalleeID:  targetUserID,
			RequestID: requestID,
			State:     domain.CallStateRinging,
			StartedAt: time.Now(),
		},
	}
	if c.ringTimeout > 0 {
		sess.ringTimer = time.AfterFunc(c.ringTimeout, func() {
			c.expireRinging(key)
		})
	}
	c.sessions[key] = sess
	metrics.CallsActive.Set(float64(len(c.sessions)))
	c.mu.Unlock()

	metrics.CallsInitiatedTotal.WithLabelValues("ringing").Inc()
	logger.Info("call initiated",
		zap.String("caller_id", callerID.String()),
		zap.String("callee_id", targetUserID.String()),
		zap.String("request_id", requestID.String()))

	calleeConn.Send(EventIncoming, IncomingPayload{
		CallerID:   callerID,
		CallerName: callerName,
		RequestID:  requestID,
	})
	return nil
}

// Accept moves a Ringing session to Accepted; the caller is notified and
// now owes the SDP offer.
func (c *Coordinator) Accept(calleeID, callerID uuid.UUID) error {
	key := makePairKey(calleeID, callerID)

	c.mu.Lock()
	sess, ok := c.sessions[key]
	if !ok || sess.State != domain.CallStateRinging || sess.CalleeID != calleeID {
		c.mu.Unlock()
		return c.fail(apperrors.InvalidState("No incoming call to accept"))
	}

	callerConn, online := c.registry.Resolve(callerID)
	if !online {
		// Session left as-is; the ring timer or a disconnect cleans it up
		c.mu.Unlock()
		return c.fail(apperrors.TargetOffline())
	}

	sess.stopRingTimer()
	sess.State = domain.CallStateAccepted
	c.mu.Unlock()

	callerConn.Send(EventAccepted, PeerPayload{UserID: calleeID})
	return nil
}

// Reject terminates a Ringing session; the caller is notified
func (c *Coordinator) Reject(calleeID, callerID uuid.UUID) error {
	key := makePairKey(calleeID, callerID)

	c.mu.Lock()
	sess, ok := c.sessions[key]
	if !ok || sess.State != domain.CallStateRinging || sess.CalleeID != calleeID {
		c.mu.Unlock()
		return c.fail(apperrors.InvalidState("No incoming call to reject"))
	}
	c.destroyLocked(key, sess, domain.CallStateRejected)
	c.mu.Unlock()

	metrics.CallsEndedTotal.WithLabelValues("rejected").Inc()

	if callerConn, online := c.registry.Resolve(callerID); online {
		callerConn.Send(EventRejected, PeerPayload{UserID: calleeID})
	}
	return nil
}

// Offer relays the caller's SDP offer; valid only from Accepted
func (c *Coordinator) Offer(callerID, targetUserID uuid.UUID, offer json.RawMessage) error {
	key := makePairKey(callerID, targetUserID)

	c.mu.Lock()
	sess, ok := c.sessions[key]
	if !ok || sess.State != domain.CallStateAccepted || sess.CallerID != callerID {
		c.mu.Unlock()
		return c.fail(apperrors.InvalidState("Unexpected offer"))
	}

	calleeConn, online := c.registry.Resolve(targetUserID)
	if !online {
		c.mu.Unlock()
		return c.fail(apperrors.TargetOffline())
	}

	sess.State = domain.CallStateNegotiating
	c.mu.Unlock()

	calleeConn.Send(EventOffer, OfferPayload{Offer: offer, CallerID: callerID})
	return nil
}

// Answer relays the callee's SDP answer; valid only from Negotiating.
// On delivery the session is Connected and media flows peer-to-peer.
func (c *Coordinator) Answer(calleeID, targetUserID uuid.UUID, answer json.RawMessage) error {
	key := makePairKey(calleeID, targetUserID)

	c.mu.Lock()
	sess, ok := c.sessions[key]
	if !ok || sess.State != domain.CallStateNegotiating || sess.CalleeID != calleeID {
		c.mu.Unlock()
		return c.fail(apperrors.InvalidState("Unexpected answer"))
	}

	callerConn, online := c.registry.Resolve(targetUserID)
	if !online {
		c.mu.Unlock()
		return c.fail(apperrors.TargetOffline())
	}

	sess.State = domain.CallStateConnected
	c.mu.Unlock()

	metrics.CallsInitiatedTotal.WithLabelValues("connected").Inc()

	callerConn.Send(EventAnswer, AnswerPayload{Answer: answer, UserID: calleeID})
	return nil
}

// IceCandidate relays a trickled candidate to the other party. Candidates
// may arrive any time after acceptance; outside a live session or with an
// offline target they are dropped without error, since ICE tolerates
// partial candidate sets.
func (c *Coordinator) IceCandidate(fromID, targetUserID uuid.UUID, candidate json.RawMessage) error {
	key := makePairKey(fromID, targetUserID)

	c.mu.Lock()
	sess, ok := c.sessions[key]
	relayable := ok && sess.Involves(fromID) &&
		(sess.State == domain.CallStateAccepted ||
			sess.State == domain.CallStateNegotiating ||
			sess.State == domain.CallStateConnected)
	c.mu.Unlock()

	if !relayable {
		return nil
	}

	if peerConn, online := c.registry.Resolve(targetUserID); online {
		peerConn.Send(EventCandidate, CandidatePayload{Candidate: candidate, UserID: fromID})
	}
	return nil
}

// End terminates the session between fromID and targetUserID from any
// non-terminal state. With no live session it is a no-op: clients fire
// endCall liberally during cleanup and a late end must not surface errors.
func (c *Coordinator) End(fromID, targetUserID uuid.UUID) error {
	key := makePairKey(fromID, targetUserID)

	c.mu.Lock()
	sess, ok := c.sessions[key]
	if !ok || !sess.Involves(fromID) {
		c.mu.Unlock()
		return nil
	}
	c.destroyLocked(key, sess, domain.CallStateEnded)
	c.mu.Unlock()

	metrics.CallsEndedTotal.WithLabelValues("hangup").Inc()

	if peerConn, online := c.registry.Resolve(targetUserID); online {
		peerConn.Send(EventEnded, PeerPayload{UserID: fromID})
	}
	return nil
}

// HandleDisconnect force-ends every session involving userID, notifying
// the surviving party. Called once when the user's connection closes.
func (c *Coordinator) HandleDisconnect(userID uuid.UUID) {
	c.mu.Lock()
	peers := make([]uuid.UUID, 0, 1)
	for key, sess := range c.sessions {
		if sess.Involves(userID) {
			peers = append(peers, sess.Peer(userID))
			c.destroyLocked(key, sess, domain.CallStateEnded)
		}
	}
	c.mu.Unlock()

	for _, peerID := range peers {
		metrics.CallsEndedTotal.WithLabelValues("disconnect").Inc()
		logger.Info("call ended by disconnect",
			zap.String("user_id", userID.String()),
			zap.String("peer_id", peerID.String()))
		if peerConn, online := c.registry.Resolve(peerID); online {
			peerConn.Send(EventEnded, PeerPayload{UserID: userID})
		}
	}
}

// SessionState reports the current state for the pair, if a session exists
func (c *Coordinator) SessionState(a, b uuid.UUID) (domain.CallState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[makePairKey(a, b)]
	if !ok {
		return "", false
	}
	return sess.State, true
}

// expireRinging fires when a Ringing session outlives the ring timeout.
// The caller is told the call timed out; the callee's ringing UI is
// dismissed with call:ended.
func (c *Coordinator) expireRinging(key pairKey) {
	c.mu.Lock()
	sess, ok := c.sessions[key]
	if !ok || sess.State != domain.CallStateRinging {
		c.mu.Unlock()
		return
	}
	callerID, calleeID := sess.CallerID, sess.CalleeID
	c.destroyLocked(key, sess, domain.CallStateEnded)
	c.mu.Unlock()

	metrics.CallsEndedTotal.WithLabelValues("timeout").Inc()
	logger.Info("ringing call timed out",
		zap.String("caller_id", callerID.String()),
		zap.String("callee_id", calleeID.String()))

	if callerConn, online := c.registry.Resolve(callerID); online {
		callerConn.Send(EventError, ErrorPayload{Message: "Call timed out"})
	}
	if calleeConn, online := c.registry.Resolve(calleeID); online {
		calleeConn.Send(EventEnded, PeerPayload{UserID: callerID})
	}
}

// destroyLocked removes the session record; callers hold c.mu
func (c *Coordinator) destroyLocked(key pairKey, sess *session, terminal domain.CallState) {
	sess.stopRingTimer()
	sess.State = terminal
	delete(c.sessions, key)
	metrics.CallsActive.Set(float64(len(c.sessions)))
}

func (c *Coordinator) fail(err *apperrors.AppError) error {
	metrics.SignalingErrorsTotal.WithLabelValues(string(err.Code)).Inc()
	return err
}

func (s *session) stopRingTimer() {
	if s.ringTimer != nil {
		s.ringTimer.Stop()
		s.ringTimer = nil
	}
}
