package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// AnswerSlot is the per-chat in-flight marker for answering jobs. Only one
// job may hold a chat's slot at a time; the TTL bounds leakage if a worker
// dies while holding it.
type AnswerSlot struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewAnswerSlot(client *redisv9.Client, ttl time.Duration) *AnswerSlot {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &AnswerSlot{client: client, ttl: ttl}
}

// Acquire returns true when the slot was free and is now held by the caller.
func (s *AnswerSlot) Acquire(ctx context.Context, chatID uint) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(chatID), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis acquire answer slot failed: %w", err)
	}
	return ok, nil
}

func (s *AnswerSlot) Release(ctx context.Context, chatID uint) error {
	if err := s.client.Del(ctx, s.key(chatID)).Err(); err != nil {
		return fmt.Errorf("redis release answer slot failed: %w", err)
	}
	return nil
}

func (s *AnswerSlot) key(chatID uint) string {
	return fmt.Sprintf("chat:answer:inflight:%d", chatID)
}
