package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatementCache wraps Redis based caching of customer statements with
// per-customer versioning. Bumping a customer's version orphans every
// cached statement for that customer; the stale entries age out via
// TTL.
type StatementCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatementCache instantiates the cache helper.
func NewStatementCache(client *redis.Client, ttl time.Duration) *StatementCache {
	return &StatementCache{client: client, ttl: ttl}
}

func versionKey(customerID int64) string {
	return fmt.Sprintf("ledger:statement:version:%d", customerID)
}

// Version returns the customer's cache version, initialising when
// missing.
func (c *StatementCache) Version(ctx context.Context, customerID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(customerID)).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, versionKey(customerID), 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Key composes the statement cache key with the current version.
func (c *StatementCache) Key(ctx context.Context, customerID int64) (string, error) {
	if c == nil || c.client == nil {
		return fmt.Sprintf("ledger:statement:%d", customerID), nil
	}
	ver, err := c.Version(ctx, customerID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ledger:statement:%d:%d", customerID, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *StatementCache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates the customer's cached statements by incrementing
// their version.
func (c *StatementCache) Bump(ctx context.Context, customerID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(customerID)).Err()
}
