package services

import (
	"context"
	"time"

	"github.com/legit-games/oidc-core/store"
)

// PollingThrottleService rate-limits device and CIBA token polling against a
// shared cache. Races between concurrent polls converge via last-write-wins
// on the stored timestamp; no distributed lock is taken.
type PollingThrottleService struct {
	cache store.Cache
	now   func() time.Time
}

// NewPollingThrottleService create a throttle service on the given cache.
func NewPollingThrottleService(cache store.Cache) *PollingThrottleService {
	return &PollingThrottleService{cache: cache, now: time.Now}
}

// ShouldSlowDown reports whether a poll for the key arrived inside the
// polling interval. The observed time is recorded either way, with the
// remaining grant lifetime as the entry TTL.
func (s *PollingThrottleService) ShouldSlowDown(ctx context.Context, key string, interval, remainingLifetime time.Duration) (bool, error) {
	cacheKey := "throttle:" + key
	now := s.now()

	raw, ok, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		return false, err
	}

	if err := s.cache.Set(ctx, cacheKey, now.Format(time.RFC3339Nano), remainingLifetime); err != nil {
		return false, err
	}

	if !ok {
		return false, nil
	}
	last, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// unreadable entry, treat as first poll
		return false, nil
	}
	return now.Sub(last) < interval, nil
}
