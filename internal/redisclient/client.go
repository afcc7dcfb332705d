package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
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

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetCart loads the serialized cart for a session. A missing key yields
// (false, nil).
func (c *Client) GetCart(ctx context.Context, sessionID string, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, cartKey(sessionID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cart: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cart: %w", err)
	}
	return true, nil
}

// SaveCart stores the serialized cart for a session with a TTL
func (c *Client) SaveCart(ctx context.Context, sessionID string, cart interface{}, ttl time.Duration) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	return c.rdb.Set(ctx, cartKey(sessionID), data, ttl).Err()
}

// DeleteCart removes the cart for a session
func (c *Client) DeleteCart(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, cartKey(sessionID)).Err()
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

// AcquireLock acquires a TTL-bounded lock, used to serialize checkout per
// session
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
