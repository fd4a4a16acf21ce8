package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache holds short-lived feature snapshots in Redis so dashboard polling
// does not hammer the subscription and counter tables. Entries are
// invalidated whenever a metered increment lands.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func snapshotKey(messID int64, period string) string {
	return fmt.Sprintf("entitlement:snapshot:%d:%s", messID, period)
}

// Snapshot returns the cached snapshot or builds it via loader, collapsing
// concurrent builds for the same mess and period into one.
func (c *Cache) Snapshot(ctx context.Context, messID int64, period string, loader func() (map[Feature]Status, error)) (map[Feature]Status, error) {
	if c == nil || c.client == nil {
		return loader()
	}
	key := snapshotKey(messID, period)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var snapshot map[Feature]Status
		if err := json.Unmarshal(raw, &snapshot); err == nil {
			return snapshot, nil
		}
		// Corrupt entry: fall through and rebuild.
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		snapshot, err := loader()
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(snapshot)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			return nil, err
		}
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(map[Feature]Status), nil
}

// Invalidate drops the cached snapshot for (mess, period).
func (c *Cache) Invalidate(ctx context.Context, messID int64, period string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, snapshotKey(messID, period)).Err()
}
