package call

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"skillswap-backend/internal/domain"
	"skillswap-backend/internal/service/presence"
	apperrors "skillswap-backend/pkg/errors"
	"skillswap-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitDefault()
	os.Exit(m.Run())
}

// Mocks

type MockRequestStore struct {
	mock.Mock
}

func (m *MockRequestStore) GetByID(ctx context.Context, requestID uuid.UUID) (*domain.ExchangeRequest, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExchangeRequest), args.Error(1)
}

type MockBlockStore struct {
	mock.Mock
}

func (m *MockBlockStore) BlockExistsBetween(ctx context.Context, user1ID, user2ID uuid.UUID) (bool, error) {
	args := m.Called(ctx, user1ID, user2ID)
	return args.Bool(0), args.Error(1)
}

type recordedEvent struct {
	event string
	data  interface{}
}

type fakeConn struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (c *fakeConn) Send(event string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, recordedEvent{event, data})
}

func (c *fakeConn) Close() {}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

func (c *fakeConn) sent() []recordedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]recordedEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *fakeConn) lastEvent() (string, interface{}) {
	events := c.sent()
	if len(events) == 0 {
		return "", nil
	}
	last := events[len(events)-1]
	return last.event, last.data
}

// harness wires a coordinator with two registered parties and an accepted
// request between them
type harness struct {
	coordinator *Coordinator
	registry    *presence.Registry
	requests    *MockRequestStore
	blocks      *MockBlockStore

	callerID, calleeID, requestID uuid.UUID
	callerConn, calleeConn        *fakeConn
}

func newHarness(t *testing.T, ringTimeout time.Duration) *harness {
	t.Helper()

	h := &harness{
		registry:   presence.NewRegistry(nil, nil),
		requests:   new(MockRequestStore),
		blocks:     new(MockBlockStore),
		callerID:   uuid.New(),
		calleeID:   uuid.New(),
		requestID:  uuid.New(),
		callerConn: &fakeConn{},
		calleeConn: &fakeConn{},
	}
	h.coordinator = NewCoordinator(h.registry, h.requests, h.blocks, ringTimeout)

	h.registry.Register(context.Background(), h.callerID, h.callerConn)
	h.registry.Register(context.Background(), h.calleeID, h.calleeConn)

	// Drop the presence announcements so assertions see call traffic only.
	h.callerConn.reset()
	h.calleeConn.reset()

	h.requests.On("GetByID", mock.Anything, h.requestID).Return(&domain.ExchangeRequest{
		RequestID:  h.requestID,
		SenderID:   h.callerID,
		ReceiverID: h.calleeID,
		Status:     domain.RequestStatusAccepted,
	}, nil)
	h.blocks.On("BlockExistsBetween", mock.Anything, h.callerID, h.calleeID).Return(false, nil)

	return h
}

func (h *harness) initiate(t *testing.T) {
	t.Helper()
	require.NoError(t, h.coordinator.Initiate(context.Background(), h.callerID, "Olena", h.calleeID, h.requestID))
}

func (h *harness) accept(t *testing.T) {
	t.Helper()
	h.initiate(t)
	require.NoError(t, h.coordinator.Accept(h.calleeID, h.callerID))
}

func TestInitiateRingsCallee(t *testing.T) {
	h := newHarness(t, 0)

	h.initiate(t)

	state, ok := h.coordinator.SessionState(h.callerID, h.calleeID)
	assert.True(t, ok)
	assert.Equal(t, domain.CallStateRinging, state)

	event, data := h.calleeConn.lastEvent()
	assert.Equal(t, EventIncoming, event)
	payload := data.(IncomingPayload)
	assert.Equal(t, h.callerID, payload.CallerID)
	assert.Equal(t, "Olena", payload.CallerName)
	assert.Equal(t, h.requestID, payload.RequestID)
}

func TestInitiateToOfflineTargetLeavesNoSession(t *testing.T) {
	h := newHarness(t, 0)
	h.registry.Unregister(context.Background(), h.calleeID, h.calleeConn)

	err := h.coordinator.Initiate(context.Background(), h.callerID, "Olena", h.calleeID, h.requestID)

	assert.True(t, apperrors.Is(err, apperrors.ErrCodeOffline))
	assert.Equal(t, "User is offline", apperrors.Message(err))

	_, ok := h.coordinator.SessionState(h.callerID, h.calleeID)
	assert.False(t, ok)
}

func TestInitiateBlockedLeavesNoSession(t *testing.T) {
	h := newHarness(t, 0)
	h.blocks.ExpectedCalls = nil
	h.blocks.On("BlockExistsBetween", mock.Anything, h.callerID, h.calleeID).Return(true, nil)

	err := h.coordinator.Initiate(context.Background(), h.callerID, "Olena", h.calleeID, h.requestID)

	assert.True(t, apperrors.Is(err, apperrors.ErrCodeBlocked))
	assert.Equal(t, "User is blocked", apperrors.Message(err))

	_, ok := h.coordinator.SessionState(h.callerID, h.calleeID)
	assert.False(t, ok)
	assert.Empty(t, h.calleeConn.sent())
}

func TestInitiateRequiresAcceptedRequest(t *testing.T) {
	h := newHarness(t, 0)
	h.requests.ExpectedCalls = nil
	h.requests.On("GetByID", mock.Anything, h.requestID).Return(&domain.ExchangeRequest{
		RequestID:  h.requestID,
		SenderID:   h.callerID,
		ReceiverID: h.calleeID,
		Status:     domain.RequestStatusPending,
	}, nil)

	err := h.coordinator.Initiate(context.Background(), h.callerID, "Olena", h.calleeID, h.requestID)

	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidState))
	assert.Equal(t, "Invalid request or not accepted", apperrors.Message(err))
}

func TestInitiateWhileCallInProgress(t *testing.T) {
	h := newHarness(t, 0)
	h.initiate(t)

	err := h.coordinator.Initiate(context.Background(), h.callerID, "Olena", h.calleeID, h.requestID)

	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidState))
	assert.Equal(t, "Call already in progress", apperrors.Message(err))
}

func TestAcceptNotifiesCaller(t *testing.T) {
	h := newHarness(t, 0)
	h.accept(t)

	state, _ := h.coordinator.SessionState(h.callerID, h.calleeID)
	assert.Equal(t, domain.CallStateAccepted, state)

	event, data := h.callerConn.lastEvent()
	assert.Equal(t, EventAccepted, event)
	assert.Equal(t, h.calleeID, data.(PeerPayload).UserID)
}

func TestRejectDestroysSession(t *testing.T) {
	h := newHarness(t, 0)
	h.initiate(t)

	require.NoError(t, h.coordinator.Reject(h.calleeID, h.callerID))

	_, ok := h.coordinator.SessionState(h.callerID, h.calleeID)
	assert.False(t, ok)

	event, data := h.callerConn.lastEvent()
	assert.Equal(t, EventRejected, event)
	assert.Equal(t, h.calleeID, data.(PeerPayload).UserID)
}

func TestOfferOnlyValidFromAccepted(t *testing.T) {
	h := newHarness(t, 0)
	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	// No session at all
	err := h.coordinator.Offer(h.callerID, h.calleeID, offer)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidState))

	// Ringing is too early
	h.initiate(t)
	err = h.coordinator.Offer(h.callerID, h.calleeID, offer)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidState))

	// Accepted is the one legal state
	require.NoError(t, h.coordinator.Accept(h.calleeID, h.callerID))
	require.NoError(t, h.coordinator.Offer(h.callerID, h.calleeID, offer))

	state, _ := h.coordinator.SessionState(h.callerID, h.calleeID)
	assert.Equal(t, domain.CallStateNegotiating, state)

	event, data := h.calleeConn.lastEvent()
	assert.Equal(t, EventOffer, event)
	payload := data.(OfferPayload)
	assert.Equal(t, offer, payload.Offer)
	assert.Equal(t, h.callerID, payload.CallerID)
}

func TestOfferFromCalleeRejected(t *testing.T) {
	h := newHarness(t, 0)
	h.accept(t)

	err := h.coordinator.Offer(h.calleeID, h.callerID, json.RawMessage(`{}`))

	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidState))
}

func TestAnswerOnlyValidFromNegotiating(t *testing.T) {
	h := newHarness(t, 0)
	answer := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)

	h.accept(t)

	// Accepted but no offer yet
	err := h.coordinator.Answer(h.calleeID, h.callerID, answer)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidState))

	require.NoError(t, h.coordinator.Offer(h.callerID, h.calleeID, json.RawMessage(`{}`)))
	require.NoError(t, h.coordinator.Answer(h.calleeID, h.callerID, answer))

	state, _ := h.coordinator.SessionState(h.callerID, h.calleeID)
	assert.Equal(t, domain.CallStateConnected, state)

	event, data := h.callerConn.lastEvent()
	assert.Equal(t, EventAnswer, event)
	payload := data.(AnswerPayload)
	assert.Equal(t, answer, payload.Answer)
	assert.Equal(t, h.calleeID, payload.UserID)
}

func TestIceCandidateRelayedDuringLiveSession(t *testing.T) {
	h := newHarness(t, 0)
	h.accept(t)

	candidate := json.RawMessage(`{"candidate":"candidate:1"}`)
	require.NoError(t, h.coordinator.IceCandidate(h.callerID, h.calleeID, candidate))

	event, data := h.calleeConn.lastEvent()
	assert.Equal(t, EventCandidate, event)
	payload := data.(CandidatePayload)
	assert.Equal(t, candidate, payload.Candidate)
	assert.Equal(t, h.callerID, payload.UserID)
}

func TestIceCandidateWithoutSessionSilentlyDropped(t *testing.T) {
	h := newHarness(t, 0)

	err := h.coordinator.IceCandidate(h.callerID, h.calleeID, json.RawMessage(`{}`))

	assert.NoError(t, err)
	assert.Empty(t, h.calleeConn.sent())
}

func TestIceCandidateWhileRingingDropped(t *testing.T) {
	h := newHarness(t, 0)
	h.initiate(t)
	before := len(h.calleeConn.sent())

	err := h.coordinator.IceCandidate(h.callerID, h.calleeID, json.RawMessage(`{}`))

	assert.NoError(t, err)
	assert.Len(t, h.calleeConn.sent(), before)
}

func TestEndNotifiesPeerAndDestroysSession(t *testing.T) {
	h := newHarness(t, 0)
	h.accept(t)

	require.NoError(t, h.coordinator.End(h.callerID, h.calleeID))

	_, ok := h.coordinator.SessionState(h.callerID, h.calleeID)
	assert.False(t, ok)

	event, data := h.calleeConn.lastEvent()
	assert.Equal(t, EventEnded, event)
	assert.Equal(t, h.callerID, data.(PeerPayload).UserID)
}

func TestEndWithoutSessionIsNoOp(t *testing.T) {
	h := newHarness(t, 0)

	assert.NoError(t, h.coordinator.End(h.callerID, h.calleeID))
	assert.Empty(t, h.calleeConn.sent())
}

func TestDisconnectEndsSessionAndAllowsFreshCall(t *testing.T) {
	h := newHarness(t, 0)
	h.accept(t)
	require.NoError(t, h.coordinator.Offer(h.callerID, h.calleeID, json.RawMessage(`{}`)))

	h.coordinator.HandleDisconnect(h.callerID)

	_, ok := h.coordinator.SessionState(h.callerID, h.calleeID)
	assert.False(t, ok)

	event, data := h.calleeConn.lastEvent()
	assert.Equal(t, EventEnded, event)
	assert.Equal(t, h.callerID, data.(PeerPayload).UserID)

	// A fresh initiate for the same pair must succeed.
	assert.NoError(t, h.coordinator.Initiate(context.Background(), h.callerID, "Olena", h.calleeID, h.requestID))
}

func TestRingTimeoutTearsDownSession(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	h.initiate(t)

	assert.Eventually(t, func() bool {
		_, ok := h.coordinator.SessionState(h.callerID, h.calleeID)
		return !ok
	}, time.Second, 5*time.Millisecond)

	event, data := h.callerConn.lastEvent()
	assert.Equal(t, EventError, event)
	assert.Equal(t, "Call timed out", data.(ErrorPayload).Message)

	event, data = h.calleeConn.lastEvent()
	assert.Equal(t, EventEnded, event)
	assert.Equal(t, h.callerID, data.(PeerPayload).UserID)
}

func TestAcceptAfterTimeoutFails(t *testing.T) {
	h := newHarness(t, 10*time.Millisecond)
	h.initiate(t)

	assert.Eventually(t, func() bool {
		_, ok := h.coordinator.SessionState(h.callerID, h.calleeID)
		return !ok
	}, time.Second, 5*time.Millisecond)

	err := h.coordinator.Accept(h.calleeID, h.callerID)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidState))
}
