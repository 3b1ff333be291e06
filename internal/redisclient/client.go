package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	idempotencyPrefix = "idempotency:order:"
	pendingMarker     = "pending"
)

// ErrInFlight reports that another request holding the same idempotency key
// has not finished yet
var ErrInFlight = errors.New("request with this idempotency key is in progress")

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks the connection
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

// Ping checks the connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// ReserveIdempotencyKey claims key for a new order. When the key already
// maps to a finished order its id is returned with reserved=false. A key
// still held by an unfinished request yields ErrInFlight.
func (c *Client) ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	redisKey := idempotencyPrefix + key

	ok, err := c.rdb.SetNX(ctx, redisKey, pendingMarker, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("reserve idempotency key failed: %w", err)
	}
	if ok {
		return "", true, nil
	}

	existing, err := c.rdb.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; the caller may retry
		return "", false, ErrInFlight
	}
	if err != nil {
		return "", false, fmt.Errorf("read idempotency key failed: %w", err)
	}
	if existing == pendingMarker {
		return "", false, ErrInFlight
	}
	return existing, false, nil
}

// CompleteIdempotencyKey binds key to the order it produced
func (c *Client) CompleteIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, idempotencyPrefix+key, orderID, ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key failed: %w", err)
	}
	return nil
}

// ReleaseIdempotencyKey drops a reservation whose request failed
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, idempotencyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key failed: %w", err)
	}
	return nil
}
