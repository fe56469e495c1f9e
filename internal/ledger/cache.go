package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BalanceCache caches computed account balances in Redis behind a
// per-tenant version counter. Every accepted posting bumps the version,
// which implicitly invalidates all balance keys for that tenant without
// enumerating them.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache instantiates the cache helper.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

func (c *BalanceCache) versionKey(tenantID string) string {
	return fmt.Sprintf("cbs:balance:ver:%s", tenantID)
}

// Version returns the tenant's current cache generation, zero when unset.
func (c *BalanceCache) Version(ctx context.Context, tenantID string) int64 {
	if c == nil || c.client == nil {
		return 0
	}
	v, err := c.client.Get(ctx, c.versionKey(tenantID)).Int64()
	if err != nil {
		return 0
	}
	return v
}

// Bump advances the tenant's cache generation after a posting commits.
func (c *BalanceCache) Bump(ctx context.Context, tenantID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.versionKey(tenantID)).Err()
}

// BuildKey derives the storage key for one balance query at the current
// generation.
func (c *BalanceCache) BuildKey(ctx context.Context, tenantID string, accountID int64, asOf string) string {
	return fmt.Sprintf("cbs:balance:%s:v%d:%d:%s", tenantID, c.Version(ctx, tenantID), accountID, asOf)
}

// Load returns a cached balance when present.
func (c *BalanceCache) Load(ctx context.Context, key string) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return 0, false
	}
	var balance int64
	if err := json.Unmarshal(payload, &balance); err != nil {
		return 0, false
	}
	return balance, true
}

// Store persists a balance under the given key.
func (c *BalanceCache) Store(ctx context.Context, key string, balance int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(balance)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}
