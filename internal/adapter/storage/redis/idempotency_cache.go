package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"mybank/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// inProgressMarker holds a reserved key until the transfer's response
// replaces it. It is never valid response JSON.
var inProgressMarker = []byte("\x00in-progress")

// releaseScript deletes a key only while it still holds the marker, so a
// late release cannot drop a stored response.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IdempotencyCache implements ports.IdempotencyCache using Redis. A key moves
// from absent to reserved (SET NX) to stored (SET with the response).
type IdempotencyCache struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "idempotency:",
	}
}

// Get retrieves a stored response by idempotency key. It returns nil, nil when
// the key is unknown and ports.ErrIdempotencyInProgress while it is reserved.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	case bytes.Equal(val, inProgressMarker):
		return nil, ports.ErrIdempotencyInProgress
	}
	return val, nil
}

// Reserve claims key for one request. It reports false when the key is
// already reserved or holds a stored response.
func (c *IdempotencyCache) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+key, inProgressMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis idempotency reserve: %w", err)
	}
	return ok, nil
}

// Set stores the response for key, replacing any reservation.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}

// Release drops a reservation so the key can be retried. A stored response
// is left alone.
func (c *IdempotencyCache) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, c.client, []string{c.prefix + key}, inProgressMarker).Err(); err != nil {
		return fmt.Errorf("redis idempotency release: %w", err)
	}
	return nil
}
