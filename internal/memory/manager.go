package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/schema"
	lcmemory "github.com/tmc/langchaingo/memory"
	"go.uber.org/zap"

	"github.com/avvvet/octotalk/internal/models"
)

const maxCachedSessions = 1000

// Manager owns per-conversation state: the slot state of an unfinished flow
// and a LangChainGo transcript buffer backed by the Store.
type Manager struct {
	store   Store
	slotTTL time.Duration
	now     func() time.Time
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*lcmemory.ConversationBuffer // In-memory cache
}

// NewManager creates a new memory manager
func NewManager(store Store, slotTTL time.Duration, log *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		slotTTL:  slotTTL,
		now:      time.Now,
		log:      log,
		sessions: make(map[string]*lcmemory.ConversationBuffer),
	}
}

// LoadSlots returns the slot state of a conversation, or nil when there is
// none. Expired state is cleared and reported as absent.
func (m *Manager) LoadSlots(ctx context.Context, conversationID string) (*models.SlotState, error) {
	session, err := m.store.LoadSession(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	slots := session.Slots
	if slots == nil {
		return nil, nil
	}

	if slots.Expired(m.now(), m.slotTTL) {
		m.log.Info("Slot state expired",
			zap.String("conversation_id", conversationID),
			zap.String("flow", slots.Flow),
			zap.Time("updated_at", slots.UpdatedAt),
		)
		if err := m.store.ClearSlots(ctx, conversationID); err != nil {
			return nil, fmt.Errorf("failed to clear expired slots: %w", err)
		}
		return nil, nil
	}

	return slots, nil
}

// SaveSlots persists the slot state of a conversation
func (m *Manager) SaveSlots(ctx context.Context, conversationID string, slots *models.SlotState) error {
	if err := m.store.SaveSlots(ctx, conversationID, slots); err != nil {
		return fmt.Errorf("failed to save slots: %w", err)
	}
	return nil
}

// ClearSlots drops the slot state of a conversation
func (m *Manager) ClearSlots(ctx context.Context, conversationID string) error {
	if err := m.store.ClearSlots(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to clear slots: %w", err)
	}
	return nil
}

// GetOrCreateSession gets or creates a LangChainGo memory buffer for a
// conversation. A cached buffer whose session has expired from the store is
// dropped and rebuilt.
func (m *Manager) GetOrCreateSession(ctx context.Context, conversationID string) (*lcmemory.ConversationBuffer, error) {
	m.mu.Lock()
	mem, cached := m.sessions[conversationID]
	m.mu.Unlock()

	if cached {
		exists, err := m.store.SessionExists(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("failed to check session: %w", err)
		}
		if exists {
			return mem, nil
		}
		m.forget(conversationID, mem)
		m.log.Debug("Dropped stale transcript", zap.String("conversation_id", conversationID))
	}

	loaded, count, err := m.loadBuffer(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// another turn may have loaded it meanwhile
	if existing, ok := m.sessions[conversationID]; ok {
		return existing, nil
	}
	if len(m.sessions) >= maxCachedSessions {
		for id := range m.sessions {
			delete(m.sessions, id)
			break
		}
	}
	m.sessions[conversationID] = loaded

	m.log.Debug("Loaded conversation transcript",
		zap.String("conversation_id", conversationID),
		zap.Int("messages", count),
	)

	return loaded, nil
}

// loadBuffer builds a buffer from the stored transcript. Called without mu.
func (m *Manager) loadBuffer(ctx context.Context, conversationID string) (*lcmemory.ConversationBuffer, int, error) {
	sessionData, err := m.store.LoadSession(ctx, conversationID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load session: %w", err)
	}

	mem := lcmemory.NewConversationBuffer()
	for _, msg := range sessionData.Messages {
		var chatMsg schema.ChatMessage

		switch msg.Role {
		case "user":
			chatMsg = schema.HumanChatMessage{Content: msg.Content}
		case "assistant":
			chatMsg = schema.AIChatMessage{Content: msg.Content}
		default:
			m.log.Warn("Unknown message role, skipping", zap.String("role", msg.Role))
			continue
		}

		if err := mem.ChatHistory.AddMessage(ctx, chatMsg); err != nil {
			return nil, 0, fmt.Errorf("failed to add message to memory: %w", err)
		}
	}

	return mem, len(sessionData.Messages), nil
}

// forget drops a cached buffer unless it was already replaced.
func (m *Manager) forget(conversationID string, mem *lcmemory.ConversationBuffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[conversationID] == mem {
		delete(m.sessions, conversationID)
	}
}

// SaveUserMessage records a user message in the buffer and the store
func (m *Manager) SaveUserMessage(ctx context.Context, conversationID, userID, message string) error {
	mem, err := m.GetOrCreateSession(ctx, conversationID)
	if err != nil {
		return err
	}

	if err := mem.ChatHistory.AddUserMessage(ctx, message); err != nil {
		return fmt.Errorf("failed to add user message to memory: %w", err)
	}

	msg := Message{
		Role:      "user",
		Content:   message,
		Timestamp: m.now(),
	}
	if err := m.store.SaveMessage(ctx, conversationID, userID, msg); err != nil {
		return fmt.Errorf("failed to save user message: %w", err)
	}

	return nil
}

// SaveAssistantMessage records a bot message in the buffer and the store
func (m *Manager) SaveAssistantMessage(ctx context.Context, conversationID, message string) error {
	mem, err := m.GetOrCreateSession(ctx, conversationID)
	if err != nil {
		return err
	}

	if err := mem.ChatHistory.AddAIMessage(ctx, message); err != nil {
		return fmt.Errorf("failed to add AI message to memory: %w", err)
	}

	msg := Message{
		Role:      "assistant",
		Content:   message,
		Timestamp: m.now(),
	}
	if err := m.store.SaveMessage(ctx, conversationID, "", msg); err != nil {
		return fmt.Errorf("failed to save assistant message: %w", err)
	}

	return nil
}

// GetFormattedHistory returns the transcript as "User: ..." / "Bot: ..." lines
func (m *Manager) GetFormattedHistory(ctx context.Context, conversationID string) (string, error) {
	mem, err := m.GetOrCreateSession(ctx, conversationID)
	if err != nil {
		return "", err
	}

	messages, err := mem.ChatHistory.Messages(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get messages: %w", err)
	}

	if len(messages) == 0 {
		return "No previous conversation.", nil
	}

	var builder strings.Builder
	for _, msg := range messages {
		switch msg := msg.(type) {
		case schema.HumanChatMessage:
			builder.WriteString(fmt.Sprintf("User: %s\n", msg.Content))
		case schema.AIChatMessage:
			builder.WriteString(fmt.Sprintf("Bot: %s\n", msg.Content))
		}
	}

	return builder.String(), nil
}

// GetMessages returns raw messages from the store
func (m *Manager) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	return m.store.GetMessages(ctx, conversationID)
}

// ClearSession clears a conversation from both cache and store
func (m *Manager) ClearSession(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	delete(m.sessions, conversationID)
	m.mu.Unlock()

	if err := m.store.ClearSession(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	m.log.Info("Cleared session", zap.String("conversation_id", conversationID))
	return nil
}

// Touch marks a conversation as active, refreshing its store TTL
func (m *Manager) Touch(ctx context.Context, conversationID string) error {
	if err := m.store.UpdateActivity(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	return nil
}

// SessionExists checks if a session exists in the store
func (m *Manager) SessionExists(ctx context.Context, conversationID string) (bool, error) {
	return m.store.SessionExists(ctx, conversationID)
}

// Ping checks the store
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// GetActiveSessionCount returns the number of cached transcripts
func (m *Manager) GetActiveSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close closes the underlying store
func (m *Manager) Close() error {
	if closer, ok := m.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
