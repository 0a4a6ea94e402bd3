package tilemap

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"tilemap-server/internal/shared/redis"
)

// Cache keeps load summaries in Redis so map detail queries don't recount
// rows. It is strictly best-effort: a nil client or a Redis failure only
// costs the cache hit.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *Cache) key(name string) string {
	return "tilemap:summary:" + name
}

// Summary returns the cached load summary for a map, if present.
func (c *Cache) Summary(ctx context.Context, name string) (*Summary, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, c.key(name)).Bytes()
	if err != nil {
		return nil, false
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		c.logger.Warn("Discarding undecodable cached summary", "map_name", name, "error", err)
		return nil, false
	}
	return &summary, true
}

// SetSummary stores the summary of a completed load.
func (c *Cache) SetSummary(ctx context.Context, name string, summary *Summary) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(summary)
	if err != nil {
		c.logger.Warn("Failed to encode summary for cache", "map_name", name, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(name), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache summary", "map_name", name, "error", err)
	}
}

// Invalidate drops the cached summary, used when a map is deleted.
func (c *Cache) Invalidate(ctx context.Context, name string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, c.key(name)).Err(); err != nil {
		c.logger.Warn("Failed to invalidate cached summary", "map_name", name, "error", err)
	}
}
