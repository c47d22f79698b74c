package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avvvet/octotalk/internal/models"
)

// RedisStore implements Store interface using Redis
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration // Session TTL (time to live)
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	// Parse Redis URL
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}, nil
}

func (r *RedisStore) sessionKey(conversationID string) string {
	return fmt.Sprintf("octotalk:session:%s", conversationID)
}

// LoadSession loads a session from Redis
func (r *RedisStore) LoadSession(ctx context.Context, conversationID string) (*SessionData, error) {
	data, err := r.client.Get(ctx, r.sessionKey(conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return newSession(conversationID, time.Now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session from Redis: %w", err)
	}

	var session SessionData
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to parse session data: %w", err)
	}

	return &session, nil
}

// SaveSlots replaces the slot state and refreshes the TTL
func (r *RedisStore) SaveSlots(ctx context.Context, conversationID string, slots *models.SlotState) error {
	session, err := r.LoadSession(ctx, conversationID)
	if err != nil {
		return err
	}

	session.Slots = slots
	session.Metadata.LastActivity = time.Now()

	return r.saveSession(ctx, session)
}

// ClearSlots drops the slot state
func (r *RedisStore) ClearSlots(ctx context.Context, conversationID string) error {
	exists, err := r.SessionExists(ctx, conversationID)
	if err != nil || !exists {
		return err
	}

	return r.SaveSlots(ctx, conversationID, nil)
}

// SaveMessage appends a message to a session
func (r *RedisStore) SaveMessage(ctx context.Context, conversationID, userID string, msg Message) error {
	session, err := r.LoadSession(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	session.appendMessage(userID, msg)

	return r.saveSession(ctx, session)
}

// saveSession saves session data to Redis
func (r *RedisStore) saveSession(ctx context.Context, session *SessionData) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.sessionKey(session.ConversationID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session to Redis: %w", err)
	}

	return nil
}

// GetMessages retrieves all messages for a session
func (r *RedisStore) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	session, err := r.LoadSession(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	return session.Messages, nil
}

// ClearSession removes a session from Redis
func (r *RedisStore) ClearSession(ctx context.Context, conversationID string) error {
	if err := r.client.Del(ctx, r.sessionKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	return nil
}

// SessionExists checks if a session exists in Redis
func (r *RedisStore) SessionExists(ctx context.Context, conversationID string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.sessionKey(conversationID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}

	return exists > 0, nil
}

// UpdateActivity updates the last activity timestamp and refreshes TTL
func (r *RedisStore) UpdateActivity(ctx context.Context, conversationID string) error {
	session, err := r.LoadSession(ctx, conversationID)
	if err != nil {
		return err
	}

	session.Metadata.LastActivity = time.Now()

	return r.saveSession(ctx, session)
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Ping verifies the Redis connection is alive
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
