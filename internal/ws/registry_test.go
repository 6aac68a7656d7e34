package ws

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guvercin/messaging-backend/internal/common"
)

// stubSession is an in-memory Session for registry tests.
type stubSession struct {
	mu     sync.Mutex
	name   string
	sent   [][]byte
	fail   bool
	closed bool
}

func (s *stubSession) Username() string { return s.name }

func (s *stubSession) SendText(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return common.ErrTransport
	}
	s.sent = append(s.sent, payload)
	return nil
}

func (s *stubSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *stubSession) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestRegisterLastConnectWins(t *testing.T) {
	registry := NewRegistry()
	first := &stubSession{name: "alice"}
	second := &stubSession{name: "alice"}

	prev := registry.Register("alice", first)
	assert.Nil(t, prev)

	prev = registry.Register("alice", second)
	assert.Same(t, first, prev)

	current, ok := registry.Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, second, current)
	assert.Equal(t, 1, registry.Count())
}

func TestUnregisterCurrentSession(t *testing.T) {
	registry := NewRegistry()
	sess := &stubSession{name: "alice"}
	registry.Register("alice", sess)

	assert.True(t, registry.Unregister("alice", sess))

	_, ok := registry.Lookup("alice")
	assert.False(t, ok)
}

func TestUnregisterStaleSessionIsNoOp(t *testing.T) {
	registry := NewRegistry()
	stale := &stubSession{name: "alice"}
	current := &stubSession{name: "alice"}

	registry.Register("alice", stale)
	registry.Register("alice", current)

	// The replaced session disconnecting late must not evict its
	// successor.
	assert.False(t, registry.Unregister("alice", stale))

	found, ok := registry.Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, current, found)
}

func TestLookupUnknownUser(t *testing.T) {
	registry := NewRegistry()

	_, ok := registry.Lookup("nobody")
	assert.False(t, ok)
}

func TestBroadcastReachesAllSessions(t *testing.T) {
	registry := NewRegistry()
	alice := &stubSession{name: "alice"}
	bob := &stubSession{name: "bob"}
	registry.Register("alice", alice)
	registry.Register("bob", bob)

	registry.Broadcast([]byte(`{"message_id":1,"seen":true}`))

	assert.Equal(t, 1, alice.sentCount())
	assert.Equal(t, 1, bob.sentCount())
}

func TestBroadcastSurvivesFailedSend(t *testing.T) {
	registry := NewRegistry()
	broken := &stubSession{name: "alice", fail: true}
	healthy := &stubSession{name: "bob"}
	registry.Register("alice", broken)
	registry.Register("bob", healthy)

	registry.Broadcast([]byte(`{"message_id":2,"seen":true}`))

	// One failed session must not stop the rest of the fan-out.
	assert.Equal(t, 1, healthy.sentCount())
}
