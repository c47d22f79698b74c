package memory

import (
	"context"
	"sync"
	"time"

	"github.com/avvvet/octotalk/internal/models"
)

// LocalStore keeps sessions in process memory. Used when no Redis URL is
// configured, and in tests.
type LocalStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*SessionData
}

func NewLocalStore(ttl time.Duration) *LocalStore {
	return &LocalStore{
		ttl:      ttl,
		sessions: make(map[string]*SessionData),
	}
}

// get returns the live session or nil. Callers hold mu.
func (l *LocalStore) get(conversationID string) *SessionData {
	s, ok := l.sessions[conversationID]
	if !ok {
		return nil
	}
	if l.ttl > 0 && time.Since(s.Metadata.LastActivity) > l.ttl {
		delete(l.sessions, conversationID)
		return nil
	}
	return s
}

func (l *LocalStore) getOrCreate(conversationID string) *SessionData {
	if s := l.get(conversationID); s != nil {
		return s
	}
	s := newSession(conversationID, time.Now())
	l.sessions[conversationID] = s
	return s
}

func (l *LocalStore) LoadSession(_ context.Context, conversationID string) (*SessionData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.get(conversationID)
	if s == nil {
		return newSession(conversationID, time.Now()), nil
	}
	return cloneSession(s), nil
}

func (l *LocalStore) SaveSlots(_ context.Context, conversationID string, slots *models.SlotState) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.getOrCreate(conversationID)
	s.Slots = cloneSlots(slots)
	s.Metadata.LastActivity = time.Now()
	return nil
}

func (l *LocalStore) ClearSlots(_ context.Context, conversationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s := l.get(conversationID); s != nil {
		s.Slots = nil
	}
	return nil
}

func (l *LocalStore) SaveMessage(_ context.Context, conversationID, userID string, msg Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.getOrCreate(conversationID).appendMessage(userID, msg)
	return nil
}

func (l *LocalStore) GetMessages(_ context.Context, conversationID string) ([]Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.get(conversationID)
	if s == nil {
		return []Message{}, nil
	}
	return append([]Message(nil), s.Messages...), nil
}

func (l *LocalStore) ClearSession(_ context.Context, conversationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.sessions, conversationID)
	return nil
}

func (l *LocalStore) SessionExists(_ context.Context, conversationID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.get(conversationID) != nil, nil
}

func (l *LocalStore) UpdateActivity(_ context.Context, conversationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.getOrCreate(conversationID).Metadata.LastActivity = time.Now()
	return nil
}

func (l *LocalStore) Ping(context.Context) error { return nil }

func cloneSession(s *SessionData) *SessionData {
	c := *s
	c.Slots = cloneSlots(s.Slots)
	c.Messages = append([]Message(nil), s.Messages...)
	return &c
}

func cloneSlots(s *models.SlotState) *models.SlotState {
	if s == nil {
		return nil
	}
	c := *s
	if s.Amount != nil {
		amount := *s.Amount
		c.Amount = &amount
	}
	return &c
}
