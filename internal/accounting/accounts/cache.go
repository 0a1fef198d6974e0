package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Cache is a redis read-through cache for account lookups by number.
// A nil Cache (or nil client) degrades to direct repository reads.
type Cache struct {
	client *redis.Client
}

// NewCache wraps the redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func cacheKey(number string) string {
	return fmt.Sprintf("accounts:number:%s", number)
}

// Fetch loads a cached account or populates it via loader.
func (c *Cache) Fetch(ctx context.Context, number string, loader func(context.Context) (Account, error)) (Account, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	payload, err := c.client.Get(ctx, cacheKey(number)).Bytes()
	if err == nil {
		var account Account
		if jsonErr := json.Unmarshal(payload, &account); jsonErr == nil {
			return account, nil
		}
		// Corrupt payload falls through to a reload.
	} else if !errors.Is(err, redis.Nil) {
		return loader(ctx)
	}
	account, err := loader(ctx)
	if err != nil {
		return Account{}, err
	}
	if raw, jsonErr := json.Marshal(account); jsonErr == nil {
		_ = c.client.Set(ctx, cacheKey(number), raw, cacheTTL).Err()
	}
	return account, nil
}

// Invalidate drops the cached copy of one account.
func (c *Cache) Invalidate(ctx context.Context, number string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, cacheKey(number)).Err()
}
