package services

import (
	"context"
	"time"

	"github.com/legit-games/oidc-core/store"
)

// ReplayCache records one-time-use assertion identifiers so a second
// presentation of the same jti fails validation.
type ReplayCache interface {
	// Exists reports whether the handle was already seen for the purpose.
	Exists(ctx context.Context, purpose, handle string) (bool, error)
	// Add records the handle until expiration.
	Add(ctx context.Context, purpose, handle string, expiration time.Time) error
}

// atomicCache is implemented by cache backends with insert-if-absent
// semantics (Valkey). When available it closes the check-then-add race.
type atomicCache interface {
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// NewReplayCache create a replay cache on the given backend.
func NewReplayCache(cache store.Cache) *DefaultReplayCache {
	return &DefaultReplayCache{cache: cache}
}

// DefaultReplayCache cache-backed replay prevention
type DefaultReplayCache struct {
	cache store.Cache
}

func replayKey(purpose, handle string) string {
	return "replay:" + purpose + ":" + handle
}

// Exists reports whether the handle is live in the cache.
func (c *DefaultReplayCache) Exists(ctx context.Context, purpose, handle string) (bool, error) {
	_, ok, err := c.cache.Get(ctx, replayKey(purpose, handle))
	return ok, err
}

// Add records the handle. With an atomic backend the add fails closed when
// a concurrent add won the race.
func (c *DefaultReplayCache) Add(ctx context.Context, purpose, handle string, expiration time.Time) error {
	ttl := time.Until(expiration)
	if ttl <= 0 {
		return nil
	}
	if ac, ok := c.cache.(atomicCache); ok {
		_, err := ac.SetIfAbsent(ctx, replayKey(purpose, handle), "1", ttl)
		return err
	}
	return c.cache.Set(ctx, replayKey(purpose, handle), "1", ttl)
}
