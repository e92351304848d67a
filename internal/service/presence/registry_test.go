package presence

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"skillswap-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitDefault()
	os.Exit(m.Run())
}

// Mocks

type fakeConn struct {
	mu     sync.Mutex
	events []string
	closed bool
}

func (c *fakeConn) Send(event string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	copy(out, c.events)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type MockFlagStore struct {
	mock.Mock
}

func (m *MockFlagStore) SetOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool) error {
	args := m.Called(ctx, userID, isOnline)
	return args.Error(0)
}

type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) SetUserOnline(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockMirror) SetUserOffline(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func TestRegisterAndResolve(t *testing.T) {
	registry := NewRegistry(nil, nil)
	userID := uuid.New()
	conn := &fakeConn{}

	registry.Register(context.Background(), userID, conn)

	resolved, ok := registry.Resolve(userID)
	assert.True(t, ok)
	assert.Same(t, conn, resolved)
	assert.Contains(t, registry.Snapshot(), userID)
}

func TestRegisterReplacesPreviousConnection(t *testing.T) {
	registry := NewRegistry(nil, nil)
	userID := uuid.New()
	first := &fakeConn{}
	second := &fakeConn{}

	registry.Register(context.Background(), userID, first)
	registry.Register(context.Background(), userID, second)

	resolved, ok := registry.Resolve(userID)
	assert.True(t, ok)
	assert.Same(t, second, resolved)
	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())
	assert.Len(t, registry.Snapshot(), 1)
}

func TestUnregisterIgnoresStaleConnection(t *testing.T) {
	registry := NewRegistry(nil, nil)
	userID := uuid.New()
	first := &fakeConn{}
	second := &fakeConn{}

	registry.Register(context.Background(), userID, first)
	registry.Register(context.Background(), userID, second)

	// The replaced connection disconnects late; the newer registration
	// must survive and the caller must learn nothing was removed.
	assert.False(t, registry.Unregister(context.Background(), userID, first))

	resolved, ok := registry.Resolve(userID)
	assert.True(t, ok)
	assert.Same(t, second, resolved)

	assert.True(t, registry.Unregister(context.Background(), userID, second))

	_, ok = registry.Resolve(userID)
	assert.False(t, ok)
	assert.Empty(t, registry.Snapshot())
}

func TestStatusUpdateBroadcastOnRegisterAndUnregister(t *testing.T) {
	registry := NewRegistry(nil, nil)
	observerID := uuid.New()
	observer := &fakeConn{}
	registry.Register(context.Background(), observerID, observer)

	userID := uuid.New()
	conn := &fakeConn{}
	registry.Register(context.Background(), userID, conn)
	registry.Unregister(context.Background(), userID, conn)

	events := observer.sent()
	// Own register, then the other user's register and unregister.
	assert.Equal(t, []string{EventUserStatusUpdate, EventUserStatusUpdate, EventUserStatusUpdate}, events)
}

func TestPersistFailuresAreSwallowed(t *testing.T) {
	mockFlags := new(MockFlagStore)
	mockMirror := new(MockMirror)
	registry := NewRegistry(mockFlags, mockMirror)

	userID := uuid.New()
	conn := &fakeConn{}
	ctx := context.Background()

	// Expectations: both best-effort writes fail.
	mockFlags.On("SetOnlineStatus", ctx, userID, true).Return(assert.AnError)
	mockMirror.On("SetUserOnline", ctx, userID).Return(assert.AnError)

	registry.Register(ctx, userID, conn)

	// The registry itself is unaffected.
	_, ok := registry.Resolve(userID)
	assert.True(t, ok)

	mockFlags.AssertExpectations(t)
	mockMirror.AssertExpectations(t)
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	registry := NewRegistry(nil, nil)
	a := &fakeConn{}
	b := &fakeConn{}
	registry.Register(context.Background(), uuid.New(), a)
	registry.Register(context.Background(), uuid.New(), b)

	registry.Broadcast("announcement", nil)

	assert.Contains(t, a.sent(), "announcement")
	assert.Contains(t, b.sent(), "announcement")
}
