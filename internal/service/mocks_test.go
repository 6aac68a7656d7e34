package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/guvercin/messaging-backend/internal/domain"
	"github.com/guvercin/messaging-backend/internal/ws"
)

// MockMessageRepository mock implementation of repository.MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Insert(msg *domain.Message) (uint, error) {
	args := m.Called(msg)
	if id, ok := args.Get(0).(uint); ok && args.Error(1) == nil {
		msg.ID = id
	}
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockMessageRepository) FindByID(id uint) (*domain.Message, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) UpdateDelivered(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockMessageRepository) UpdateSeen(id uint, seen bool, at time.Time) error {
	args := m.Called(id, seen, at)
	return args.Error(0)
}

func (m *MockMessageRepository) ConversationBetween(viewer, peer string) ([]*domain.Message, error) {
	args := m.Called(viewer, peer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) SoftDelete(user string, id uint) (domain.DeleteOutcome, error) {
	args := m.Called(user, id)
	return args.Get(0).(domain.DeleteOutcome), args.Error(1)
}

func (m *MockMessageRepository) HardDelete(id uint) (*domain.Message, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) Partners(username string) ([]string, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockMessageRepository) LatestFileMessage(receiver, fileName string) (*domain.Message, error) {
	args := m.Called(receiver, fileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

// MockNotifier mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, receiver string) {
	m.Called(ctx, receiver)
}

// MockPushSender mock implementation of PushSender
type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) Send(ctx context.Context, title, token string) (string, error) {
	args := m.Called(ctx, title, token)
	return args.String(0), args.Error(1)
}

// MockTokenStore mock implementation of repository.PushTokenStore
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Token(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

// fakeSession records sent payloads for delivery assertions.
type fakeSession struct {
	mu      sync.Mutex
	name    string
	sent    [][]byte
	sendErr error
	closed  bool
}

func (s *fakeSession) Username() string { return s.name }

func (s *fakeSession) SendText(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	s.sent = append(s.sent, buf)
	return nil
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeSession) payloads() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// fakeRegistry is an in-memory SessionRegistry.
type fakeRegistry struct {
	mu        sync.Mutex
	sessions  map[string]ws.Session
	broadcast [][]byte
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{sessions: make(map[string]ws.Session)}
}

func (r *fakeRegistry) add(sess ws.Session) {
	r.mu.Lock()
	r.sessions[sess.Username()] = sess
	r.mu.Unlock()
}

func (r *fakeRegistry) Lookup(username string) (ws.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[username]
	return sess, ok
}

func (r *fakeRegistry) Broadcast(payload []byte) {
	r.mu.Lock()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	r.broadcast = append(r.broadcast, buf)
	sessions := make([]ws.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.SendText(payload)
	}
}
