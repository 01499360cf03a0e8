package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/claim_ticket_seed.lua
var claimTicketSeedScript string

const (
	categoryTTL = 15 * time.Minute
	seedTTL     = time.Hour
)

type Client struct {
	rdb         *redis.Client
	claimScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:         rdb,
		claimScript: redis.NewScript(claimTicketSeedScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ClaimTicketSeed atomically claims the seed marker for an order. Returns
// false when another routing attempt already holds it. The marker expires so
// a crashed claimer cannot block routing forever; the store-level existence
// check stays authoritative either way.
func (c *Client) ClaimTicketSeed(ctx context.Context, orderID string) (bool, error) {
	key := fmt.Sprintf("ticketseed:%s", orderID)

	result, err := c.claimScript.Run(ctx, c.rdb, []string{key}, "1", int(seedTTL.Seconds())).Result()
	if err != nil {
		return false, fmt.Errorf("claim ticket seed script failed: %w", err)
	}

	claimed, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}
	return claimed == 1, nil
}

// GetCategory reads a cached item category. The second return reports a hit.
func (c *Client) GetCategory(ctx context.Context, itemID string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf("category:%s", itemID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetCategory caches an item category.
func (c *Client) SetCategory(ctx context.Context, itemID, category string) error {
	return c.rdb.Set(ctx, fmt.Sprintf("category:%s", itemID), category, categoryTTL).Err()
}

// AcquireLock acquires a staff-operation lock (merge/unmerge on one table).
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a staff-operation lock.
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
