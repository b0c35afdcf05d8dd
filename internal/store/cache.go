// internal/store/cache.go
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"llm-council/internal/common/logger"
	"llm-council/internal/models"
)

// HistoryCache keeps the advisor-visible history of a thread in Redis so a
// follow-up turn skips the Postgres read. It is strictly best-effort: every
// failure degrades to a cache miss and a warning, never to a request error.
type HistoryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewHistoryCache(client *redis.Client, ttl time.Duration, log logger.Logger) *HistoryCache {
	return &HistoryCache{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "history_cache"}),
	}
}

func historyKey(threadID string) string {
	return "council:history:" + threadID
}

// Get returns the cached history and whether it was found.
func (c *HistoryCache) Get(ctx context.Context, threadID string) ([]models.HistoryMessage, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, historyKey(threadID)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("history cache read failed", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
		return nil, false
	}

	var history []models.HistoryMessage
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		c.logger.Warn("history cache entry corrupt, dropping", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
		c.Invalidate(ctx, threadID)
		return nil, false
	}
	return history, true
}

func (c *HistoryCache) Put(ctx context.Context, threadID string, history []models.HistoryMessage) {
	if c == nil || c.client == nil {
		return
	}

	raw, err := json.Marshal(history)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, historyKey(threadID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("history cache write failed", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
	}
}

// Invalidate drops a thread's cached history, called on every append.
func (c *HistoryCache) Invalidate(ctx context.Context, threadID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, historyKey(threadID)).Err(); err != nil {
		c.logger.Warn("history cache invalidation failed", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
	}
}
