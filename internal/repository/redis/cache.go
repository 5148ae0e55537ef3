package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightsteps/assistant/internal/domain"
)

const (
	historyCachePrefix = "history:"
	historyCacheTTL    = 5 * time.Minute
)

// HistoryCache caches recent conversation transcripts so the prompt
// assembly path does not hit the database on every turn.
type HistoryCache struct {
	client *Client
}

// NewHistoryCache creates a new history cache
func NewHistoryCache(client *Client) *HistoryCache {
	return &HistoryCache{client: client}
}

// Get retrieves the cached transcript for a conversation
func (c *HistoryCache) Get(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	key := fmt.Sprintf("%s%s", historyCachePrefix, conversationID.String())

	data, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, nil // Cache miss
	}

	var messages []domain.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}

	return messages, nil
}

// Set caches the transcript for a conversation
func (c *HistoryCache) Set(ctx context.Context, conversationID uuid.UUID, messages []domain.Message) error {
	key := fmt.Sprintf("%s%s", historyCachePrefix, conversationID.String())

	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	return c.client.rdb.Set(ctx, key, data, historyCacheTTL).Err()
}

// Invalidate removes the cached transcript for a conversation
func (c *HistoryCache) Invalidate(ctx context.Context, conversationID uuid.UUID) error {
	key := fmt.Sprintf("%s%s", historyCachePrefix, conversationID.String())
	return c.client.rdb.Del(ctx, key).Err()
}
