package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Gateways retry webhooks for at most a couple of days.
const dedupeTTL = 48 * time.Hour

const keyDedup = "dedup:payment:%s:%s"

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// Cache is a fast duplicate-suppression layer in front of the durable
// payment-event ledger. Entries appear only after a transition has
// committed, so a hit can be trusted without touching the database.
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Seen(ctx context.Context, gateway, externalID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, fmt.Sprintf(keyDedup, gateway, externalID)).Result()
	return n > 0, err
}

func (c *Cache) Mark(ctx context.Context, gateway, externalID string) error {
	return c.rdb.Set(ctx, fmt.Sprintf(keyDedup, gateway, externalID), "1", dedupeTTL).Err()
}
