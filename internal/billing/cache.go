package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rosterCachePrefix = "billing:roster"

// Cache keeps the latest roster report in Redis so the dashboard and
// the warmup job share one copy. Statements themselves stay derived
// values; the cache is a short-lived serving copy, never a source of
// truth, and a cold or unreachable cache just means recomputation.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables
// caching entirely.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func rosterKey(periodLabel string) string {
	return fmt.Sprintf("%s:%s", rosterCachePrefix, periodLabel)
}

// GetRoster returns the cached report for the period, or nil on miss.
func (c *Cache) GetRoster(ctx context.Context, periodLabel string) (*RosterReport, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	data, err := c.client.Get(ctx, rosterKey(periodLabel)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("billing: roster cache get: %w", err)
	}
	var report RosterReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("billing: roster cache decode: %w", err)
	}
	return &report, nil
}

// SetRoster stores the report under the period label with the cache TTL.
func (c *Cache) SetRoster(ctx context.Context, report RosterReport) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("billing: roster cache encode: %w", err)
	}
	if err := c.client.Set(ctx, rosterKey(report.Period.Label), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("billing: roster cache set: %w", err)
	}
	return nil
}

// InvalidateRoster drops the cached report for the period.
func (c *Cache) InvalidateRoster(ctx context.Context, periodLabel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, rosterKey(periodLabel)).Err(); err != nil {
		return fmt.Errorf("billing: roster cache invalidate: %w", err)
	}
	return nil
}
