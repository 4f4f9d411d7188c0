package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/legit-games/oidc-core/store"
)

func TestShouldSlowDown(t *testing.T) {
	ctx := context.Background()
	svc := NewPollingThrottleService(store.NewMemoryCache())

	now := time.Now()
	svc.now = func() time.Time { return now }

	interval := 5 * time.Second
	lifetime := 5 * time.Minute

	slow, err := svc.ShouldSlowDown(ctx, "device-1", interval, lifetime)
	require.NoError(t, err)
	require.False(t, slow, "first poll is never throttled")

	// second poll inside the interval
	now = now.Add(2 * time.Second)
	slow, err = svc.ShouldSlowDown(ctx, "device-1", interval, lifetime)
	require.NoError(t, err)
	require.True(t, slow)

	// poll spaced beyond the interval
	now = now.Add(6 * time.Second)
	slow, err = svc.ShouldSlowDown(ctx, "device-1", interval, lifetime)
	require.NoError(t, err)
	require.False(t, slow)
}

func TestShouldSlowDownIsPerKey(t *testing.T) {
	ctx := context.Background()
	svc := NewPollingThrottleService(store.NewMemoryCache())

	_, err := svc.ShouldSlowDown(ctx, "a", time.Minute, time.Hour)
	require.NoError(t, err)

	slow, err := svc.ShouldSlowDown(ctx, "b", time.Minute, time.Hour)
	require.NoError(t, err)
	require.False(t, slow)
}

func TestReplayCache(t *testing.T) {
	ctx := context.Background()
	cache := NewReplayCache(store.NewMemoryCache())

	seen, err := cache.Exists(ctx, "client_assertion", "jti-1")
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, cache.Add(ctx, "client_assertion", "jti-1", time.Now().Add(time.Minute)))

	seen, err = cache.Exists(ctx, "client_assertion", "jti-1")
	require.NoError(t, err)
	require.True(t, seen)

	// purposes are isolated
	seen, err = cache.Exists(ctx, "other_purpose", "jti-1")
	require.NoError(t, err)
	require.False(t, seen)
}
