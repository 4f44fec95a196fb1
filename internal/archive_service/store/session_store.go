package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	sessionKeyPrefix = "archive:chat:"
	// sessionMaxTurns bounds how much history one session carries into each
	// completion call.
	sessionMaxTurns = 20
	sessionTTL      = 24 * time.Hour
)

// RedisSessionStore keeps general assistant conversations in Redis lists,
// trimmed to the last turns and expired after a day of inactivity.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a new RedisSessionStore.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// Append pushes turns onto the session and re-arms its expiry.
func (s *RedisSessionStore) Append(ctx context.Context, sessionID string, msgs ...SessionMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode session message: %w", err)
		}
		values = append(values, data)
	}

	key := sessionKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, -sessionMaxTurns, -1)
	pipe.Expire(ctx, key, sessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// History returns the session's retained turns, oldest first.
func (s *RedisSessionStore) History(ctx context.Context, sessionID string) ([]SessionMessage, error) {
	raw, err := s.client.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]SessionMessage, 0, len(raw))
	for _, item := range raw {
		var m SessionMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to decode session message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Clear drops the session history.
func (s *RedisSessionStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}

var _ SessionStore = (*RedisSessionStore)(nil)
