// Package session – Redis backend.
//
// Sessions live under "session:<conversation id>" as JSON with a native
// Redis TTL, so a crashed or restarted process never leaks state: Redis
// expires the key on its own.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces session keys in a shared Redis instance.
const keyPrefix = "session:"

// Redis stores sessions in a Redis instance via go-redis. It is the durable
// backend; wrap it in a Failover so its outages never reach callers.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an already configured go-redis client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Get fetches and decodes the session, returning (nil, nil) when the key is
// absent or already expired.
func (r *Redis) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Set encodes and stores the session with the given TTL.
func (r *Redis) Set(ctx context.Context, id string, s *Session, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+id, raw, ttl).Err()
}

// Delete removes the session key.
func (r *Redis) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, keyPrefix+id).Err()
}

// Extend resets the key's TTL. A missing key is left missing.
func (r *Redis) Extend(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return r.client.Expire(ctx, keyPrefix+id, ttl).Err()
}
