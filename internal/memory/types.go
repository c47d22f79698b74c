package memory

import (
	"context"
	"time"

	"github.com/avvvet/octotalk/internal/models"
)

// maxMessages bounds the transcript kept per conversation
const maxMessages = 50

// Message represents a single message in a conversation
type Message struct {
	Role      string    `json:"role"`      // "user" or "assistant"
	Content   string    `json:"content"`   // The actual message text
	Timestamp time.Time `json:"timestamp"` // When the message was sent
}

// SessionData represents all data for a conversation
type SessionData struct {
	ConversationID string            `json:"conversation_id"`
	UserID         string            `json:"user_id"`
	Slots          *models.SlotState `json:"slots,omitempty"`
	Messages       []Message         `json:"messages"`
	Metadata       Metadata          `json:"metadata"`
}

// Metadata contains session information
type Metadata struct {
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}

// Store defines the interface for conversation storage, keyed strictly by
// conversation id.
type Store interface {
	// LoadSession loads a session, returning an empty one if none exists
	LoadSession(ctx context.Context, conversationID string) (*SessionData, error)

	// SaveSlots replaces the slot state of a conversation
	SaveSlots(ctx context.Context, conversationID string, slots *models.SlotState) error

	// ClearSlots removes the slot state, keeping the transcript
	ClearSlots(ctx context.Context, conversationID string) error

	// SaveMessage appends a message to the transcript
	SaveMessage(ctx context.Context, conversationID, userID string, msg Message) error

	// GetMessages retrieves the transcript
	GetMessages(ctx context.Context, conversationID string) ([]Message, error)

	// ClearSession removes everything stored for a conversation
	ClearSession(ctx context.Context, conversationID string) error

	// SessionExists checks if a session exists
	SessionExists(ctx context.Context, conversationID string) (bool, error)

	// UpdateActivity updates the last activity timestamp
	UpdateActivity(ctx context.Context, conversationID string) error

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
}

func newSession(conversationID string, now time.Time) *SessionData {
	return &SessionData{
		ConversationID: conversationID,
		Messages:       []Message{},
		Metadata: Metadata{
			StartedAt:    now,
			LastActivity: now,
		},
	}
}

// appendMessage adds msg and trims the transcript to maxMessages.
func (s *SessionData) appendMessage(userID string, msg Message) {
	if s.UserID == "" {
		s.UserID = userID
	}

	s.Messages = append(s.Messages, msg)
	if len(s.Messages) > maxMessages {
		s.Messages = s.Messages[len(s.Messages)-maxMessages:]
	}

	s.Metadata.LastActivity = time.Now()
	s.Metadata.MessageCount++

	if s.Metadata.MessageCount == 1 {
		s.Metadata.StartedAt = msg.Timestamp
	}
}
