package callclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// State is the endpoint's view of the call lifecycle. It mirrors the
// server-side session states, split by role where the wire protocol differs:
// a caller dials, a callee rings.
type State string

const (
	StateIdle State = "idle"
	// StateDialing: call:initiate sent, awaiting the callee's consent
	StateDialing State = "dialing"
	// StateRinging: call:incoming received, awaiting the local decision
	StateRinging State = "ringing"
	// StateNegotiating: consent done, SDP offer/answer in flight
	StateNegotiating State = "negotiating"
	// StateConnected: answer applied, media flows peer-to-peer
	StateConnected State = "connected"
)

// IncomingCall describes a ringing inbound call
type IncomingCall struct {
	CallerID   uuid.UUID
	CallerName string
	RequestID  uuid.UUID
}

// Wire payloads, matching the gateway's JSON vocabulary.

type initiatePayload struct {
	TargetUserID uuid.UUID `json:"targetUserId"`
	RequestID    uuid.UUID `json:"requestId"`
}

type consentPayload struct {
	CallerID uuid.UUID `json:"callerId"`
}

type offerPayload struct {
	TargetUserID uuid.UUID       `json:"targetUserId"`
	Offer        json.RawMessage `json:"offer"`
}

type answerPayload struct {
	TargetUserID uuid.UUID       `json:"targetUserId"`
	Answer       json.RawMessage `json:"answer"`
}

type candidatePayload struct {
	TargetUserID uuid.UUID       `json:"targetUserId"`
	Candidate    json.RawMessage `json:"candidate"`
}

type endPayload struct {
	TargetUserID uuid.UUID `json:"targetUserId"`
}

type incomingPayload struct {
	CallerID   uuid.UUID `json:"callerId"`
	CallerName string    `json:"callerName"`
	RequestID  uuid.UUID `json:"requestId"`
}

type peerPayload struct {
	UserID uuid.UUID `json:"userId"`
}

type remoteOfferPayload struct {
	Offer    json.RawMessage `json:"offer"`
	CallerID uuid.UUID       `json:"callerId"`
}

type remoteAnswerPayload struct {
	Answer json.RawMessage `json:"answer"`
	UserID uuid.UUID       `json:"userId"`
}

type remoteCandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
	UserID    uuid.UUID       `json:"userId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Endpoint drives one call at a time over a Signaler. All methods are safe
// for concurrent use; inbound events are handled by Run on a single
// goroutine.
type Endpoint struct {
	sig     Signaler
	media   MediaSource
	newPeer PeerFactory

	mu        sync.Mutex
	state     State
	peerID    uuid.UUID
	requestID uuid.UUID
	peer      Peer
	// candidates that arrived before the peer existed; ICE trickles
	// independently of the offer/answer exchange
	pendingCandidates []json.RawMessage
	cameraTrack       webrtc.TrackLocal
	sharing           bool

	onIncoming func(IncomingCall)
	onState    func(State)
	onError    func(message string)
}

// NewEndpoint creates a call endpoint. media may be nil for receive-only
// endpoints.
func NewEndpoint(sig Signaler, media MediaSource, newPeer PeerFactory) *Endpoint {
	return &Endpoint{
		sig:     sig,
		media:   media,
		newPeer: newPeer,
		state:   StateIdle,
	}
}

// OnIncoming registers the handler fired when a call rings in. Register
// before Run.
func (e *Endpoint) OnIncoming(fn func(IncomingCall)) { e.onIncoming = fn }

// OnStateChange registers a state transition observer. Register before Run.
func (e *Endpoint) OnStateChange(fn func(State)) { e.onState = fn }

// OnError registers the handler for call:error events. Register before Run.
func (e *Endpoint) OnError(fn func(message string)) { e.onError = fn }

// State returns the current call state
func (e *Endpoint) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Run processes inbound signaling until ctx ends or the transport closes
func (e *Endpoint) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-e.sig.Events():
			if !ok {
				return nil
			}
			e.handle(env)
		}
	}
}

// StartCall dials targetUserID over the given exchange request
func (e *Endpoint) StartCall(targetUserID, requestID uuid.UUID) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return fmt.Errorf("cannot start call in state %s", e.state)
	}
	e.state = StateDialing
	e.peerID = targetUserID
	e.requestID = requestID
	e.mu.Unlock()
	e.notifyState(StateDialing)

	if err := e.sig.Send("call:initiate", initiatePayload{
		TargetUserID: targetUserID,
		RequestID:    requestID,
	}); err != nil {
		e.reset()
		return err
	}
	return nil
}

// Accept consents to the ringing inbound call and prepares the peer
// connection for the caller's offer.
func (e *Endpoint) Accept() error {
	e.mu.Lock()
	if e.state != StateRinging {
		e.mu.Unlock()
		return fmt.Errorf("no ringing call to accept")
	}
	callerID := e.peerID

	peer, err := e.setupPeerLocked()
	if err != nil {
		e.mu.Unlock()
		e.reset()
		return err
	}
	e.peer = peer
	e.state = StateNegotiating
	e.mu.Unlock()
	e.notifyState(StateNegotiating)

	return e.sig.Send("call:accept", consentPayload{CallerID: callerID})
}

// Reject declines the ringing inbound call
func (e *Endpoint) Reject() error {
	e.mu.Lock()
	if e.state != StateRinging {
		e.mu.Unlock()
		return fmt.Errorf("no ringing call to reject")
	}
	callerID := e.peerID
	e.mu.Unlock()

	err := e.sig.Send("call:reject", consentPayload{CallerID: callerID})
	e.reset()
	return err
}

// StartScreenShare swaps the outgoing video track for a display capture.
// Legal only while connected; the swap needs no renegotiation because the
// sender keeps its negotiated parameters.
func (e *Endpoint) StartScreenShare() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateConnected {
		return fmt.Errorf("screen share requires a connected call")
	}
	if e.sharing {
		return nil
	}
	if e.media == nil {
		return fmt.Errorf("no media source")
	}

	screen, err := e.media.ScreenTrack()
	if err != nil {
		return fmt.Errorf("capture screen: %w", err)
	}
	if err := e.peer.ReplaceVideoTrack(screen); err != nil {
		return err
	}
	e.sharing = true
	return nil
}

// StopScreenShare reverts the outgoing video to the camera track
func (e *Endpoint) StopScreenShare() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.sharing {
		return nil
	}
	if err := e.peer.ReplaceVideoTrack(e.cameraTrack); err != nil {
		return err
	}
	e.sharing = false
	return nil
}

// EndCall hangs up from any state. Idempotent: ending with no call in
// flight is a no-op, matching the server's treatment of late call:end.
func (e *Endpoint) EndCall() error {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return nil
	}
	peerID := e.peerID
	e.mu.Unlock()

	err := e.sig.Send("call:end", endPayload{TargetUserID: peerID})
	e.reset()
	return err
}

// Close hangs up and closes the transport
func (e *Endpoint) Close() error {
	_ = e.EndCall()
	return e.sig.Close()
}

func (e *Endpoint) handle(env Envelope) {
	switch env.Event {
	case "call:incoming":
		e.handleIncoming(env.Data)
	case "call:accepted":
		e.handleAccepted(env.Data)
	case "call:rejected":
		e.handleRejected()
	case "call:offer":
		e.handleOffer(env.Data)
	case "call:answer":
		e.handleAnswer(env.Data)
	case "call:ice-candidate":
		e.handleCandidate(env.Data)
	case "call:ended":
		e.handleEnded()
	case "call:error":
		e.handleError(env.Data)
	}
}

func (e *Endpoint) handleIncoming(data json.RawMessage) {
	var p incomingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	e.mu.Lock()
	if e.state != StateIdle {
		// Already in a call; the server should not have let this through,
		// but a stale ring can race a hangup. Ignore it.
		e.mu.Unlock()
		return
	}
	e.state = StateRinging
	e.peerID = p.CallerID
	e.requestID = p.RequestID
	e.mu.Unlock()
	e.notifyState(StateRinging)

	if e.onIncoming != nil {
		e.onIncoming(IncomingCall{
			CallerID:   p.CallerID,
			CallerName: p.CallerName,
			RequestID:  p.RequestID,
		})
	}
}

// handleAccepted runs on the caller when the callee consents: build the
// peer, generate the offer, send it.
func (e *Endpoint) handleAccepted(data json.RawMessage) {
	var p peerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	e.mu.Lock()
	if e.state != StateDialing || e.peerID != p.UserID {
		e.mu.Unlock()
		return
	}

	peer, err := e.setupPeerLocked()
	if err != nil {
		e.mu.Unlock()
		e.failCall(err)
		return
	}
	e.peer = peer

	offer, err := peer.CreateOffer()
	if err != nil {
		e.mu.Unlock()
		e.failCall(err)
		return
	}
	e.state = StateNegotiating
	peerID := e.peerID
	e.mu.Unlock()
	e.notifyState(StateNegotiating)

	if err := e.sig.Send("call:offer", offerPayload{TargetUserID: peerID, Offer: offer}); err != nil {
		e.failCall(err)
	}
}

func (e *Endpoint) handleRejected() {
	e.mu.Lock()
	dialing := e.state == StateDialing
	e.mu.Unlock()
	if dialing {
		e.reset()
	}
}

// handleOffer runs on the callee after accepting: apply the offer, send
// the answer, the call is up.
func (e *Endpoint) handleOffer(data json.RawMessage) {
	var p remoteOfferPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	e.mu.Lock()
	if e.state != StateNegotiating || e.peer == nil || e.peerID != p.CallerID {
		e.mu.Unlock()
		return
	}
	answer, err := e.peer.AcceptOffer(p.Offer)
	if err != nil {
		e.mu.Unlock()
		e.failCall(err)
		return
	}
	e.flushCandidatesLocked()
	e.state = StateConnected
	peerID := e.peerID
	e.mu.Unlock()
	e.notifyState(StateConnected)

	if err := e.sig.Send("call:answer", answerPayload{TargetUserID: peerID, Answer: answer}); err != nil {
		e.failCall(err)
	}
}

// handleAnswer runs on the caller: apply the answer, the call is up
func (e *Endpoint) handleAnswer(data json.RawMessage) {
	var p remoteAnswerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	e.mu.Lock()
	if e.state != StateNegotiating || e.peer == nil || e.peerID != p.UserID {
		e.mu.Unlock()
		return
	}
	if err := e.peer.AcceptAnswer(p.Answer); err != nil {
		e.mu.Unlock()
		e.failCall(err)
		return
	}
	e.flushCandidatesLocked()
	e.state = StateConnected
	e.mu.Unlock()
	e.notifyState(StateConnected)
}

func (e *Endpoint) handleCandidate(data json.RawMessage) {
	var p remoteCandidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateIdle || e.peerID != p.UserID {
		return
	}
	if e.peer == nil {
		// Candidates can outrun consent; hold them for the peer
		e.pendingCandidates = append(e.pendingCandidates, p.Candidate)
		return
	}
	_ = e.peer.AddRemoteCandidate(p.Candidate)
}

func (e *Endpoint) handleEnded() {
	e.mu.Lock()
	active := e.state != StateIdle
	e.mu.Unlock()
	if active {
		e.reset()
	}
}

func (e *Endpoint) handleError(data json.RawMessage) {
	var p errorPayload
	_ = json.Unmarshal(data, &p)
	if e.onError != nil {
		e.onError(p.Message)
	}
	e.reset()
}

// setupPeerLocked builds a peer with local media attached and trickle
// forwarding wired. Caller holds e.mu.
func (e *Endpoint) setupPeerLocked() (Peer, error) {
	peer, err := e.newPeer()
	if err != nil {
		return nil, fmt.Errorf("create peer: %w", err)
	}

	if e.media != nil {
		audio, err := e.media.AudioTrack()
		if err == nil && audio != nil {
			if err := peer.AddTrack(audio); err != nil {
				_ = peer.Close()
				return nil, err
			}
		}
		video, err := e.media.VideoTrack()
		if err == nil && video != nil {
			if err := peer.AddTrack(video); err != nil {
				_ = peer.Close()
				return nil, err
			}
			e.cameraTrack = video
		}
	}

	target := e.peerID
	peer.OnLocalCandidate(func(candidate json.RawMessage) {
		_ = e.sig.Send("call:ice-candidate", candidatePayload{
			TargetUserID: target,
			Candidate:    candidate,
		})
	})

	for _, c := range e.pendingCandidates {
		_ = peer.AddRemoteCandidate(c)
	}
	e.pendingCandidates = nil

	return peer, nil
}

// flushCandidatesLocked drains candidates buffered between peer creation
// and description exchange. Caller holds e.mu.
func (e *Endpoint) flushCandidatesLocked() {
	for _, c := range e.pendingCandidates {
		_ = e.peer.AddRemoteCandidate(c)
	}
	e.pendingCandidates = nil
}

// failCall tears the call down after a local negotiation failure and tells
// the peer.
func (e *Endpoint) failCall(err error) {
	if e.onError != nil {
		e.onError(err.Error())
	}
	e.mu.Lock()
	peerID := e.peerID
	active := e.state != StateIdle
	e.mu.Unlock()
	if active {
		_ = e.sig.Send("call:end", endPayload{TargetUserID: peerID})
	}
	e.reset()
}

// reset returns the endpoint to idle, releasing the peer connection
func (e *Endpoint) reset() {
	e.mu.Lock()
	peer := e.peer
	changed := e.state != StateIdle
	e.state = StateIdle
	e.peer = nil
	e.peerID = uuid.Nil
	e.requestID = uuid.Nil
	e.pendingCandidates = nil
	e.cameraTrack = nil
	e.sharing = false
	e.mu.Unlock()

	if peer != nil {
		_ = peer.Close()
	}
	if changed {
		e.notifyState(StateIdle)
	}
}

func (e *Endpoint) notifyState(s State) {
	if e.onState != nil {
		e.onState(s)
	}
}
