package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/legit-games/oidc-core/models"
)

func TestHashedKeyDeterministic(t *testing.T) {
	handle := NewHandle()
	require.True(t, strings.HasSuffix(handle, "-1"))

	k1 := HashedKey(handle, GrantTypeAuthorizationCode)
	k2 := HashedKey(handle, GrantTypeAuthorizationCode)
	require.Equal(t, k1, k2)

	// same handle, different grant type: different store key
	k3 := HashedKey(handle, GrantTypeRefreshToken)
	require.NotEqual(t, k1, k3)
}

func TestHashedKeyLegacyFormat(t *testing.T) {
	// handles without a version suffix fall back to the old derivation,
	// which ignores the grant type
	legacy := "0123456789abcdef0123456789abcdef"
	k1 := HashedKey(legacy, GrantTypeAuthorizationCode)
	k2 := HashedKey(legacy, GrantTypeRefreshToken)
	require.Equal(t, k1, k2)

	// and differs from the current derivation of the same string
	require.NotEqual(t, k1, HashedKey(legacy+"-1", GrantTypeAuthorizationCode))
}

func TestAuthorizationCodeStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	codes := NewAuthorizationCodeStore(NewMemoryGrantStore())

	code := &models.AuthorizationCode{
		CreationTime:    time.Now(),
		Lifetime:        5 * time.Minute,
		ClientID:        "web-app",
		Subject:         &models.Subject{SubjectID: "alice", SessionID: "s1"},
		IsOpenID:        true,
		RequestedScopes: []string{"openid", "profile"},
		RedirectURI:     "https://app.example.com/cb",
		CodeChallenge:   "challenge",
	}

	handle, err := codes.StoreAuthorizationCode(ctx, code)
	require.NoError(t, err)
	require.NotEmpty(t, handle)

	got, err := codes.GetAuthorizationCode(ctx, handle)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "web-app", got.ClientID)
	require.Equal(t, "alice", got.Subject.SubjectID)
	require.Equal(t, []string{"openid", "profile"}, got.RequestedScopes)

	require.NoError(t, codes.RemoveAuthorizationCode(ctx, handle))
	got, err = codes.GetAuthorizationCode(ctx, handle)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCrossGrantTypeIsolation(t *testing.T) {
	ctx := context.Background()
	grants := NewMemoryGrantStore()
	codes := NewAuthorizationCodeStore(grants)
	refresh := NewRefreshTokenStore(grants)

	handle, err := codes.StoreAuthorizationCode(ctx, &models.AuthorizationCode{
		CreationTime: time.Now(), Lifetime: time.Minute, ClientID: "c",
	})
	require.NoError(t, err)

	// the same handle never resolves in a store of a different grant type
	rt, err := refresh.GetRefreshToken(ctx, handle)
	require.NoError(t, err)
	require.Nil(t, rt)
}

func TestExpiredGrantIsGone(t *testing.T) {
	ctx := context.Background()
	codes := NewAuthorizationCodeStore(NewMemoryGrantStore())

	handle, err := codes.StoreAuthorizationCode(ctx, &models.AuthorizationCode{
		CreationTime: time.Now().Add(-time.Hour),
		Lifetime:     time.Minute,
		ClientID:     "c",
	})
	require.NoError(t, err)

	got, err := codes.GetAuthorizationCode(ctx, handle)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDeviceFlowStoreDoubleIndex(t *testing.T) {
	ctx := context.Background()
	devices := NewDeviceFlowStore(NewMemoryGrantStore())

	userCode, err := GenerateUserCode(8)
	require.NoError(t, err)
	require.Len(t, userCode, 8)

	record := &models.DeviceCode{
		CreationTime:    time.Now(),
		Lifetime:        5 * time.Minute,
		ClientID:        "tv-app",
		UserCode:        userCode,
		RequestedScopes: []string{"api1"},
	}
	deviceCode, err := devices.StoreDeviceAuthorization(ctx, record)
	require.NoError(t, err)

	byDevice, err := devices.FindByDeviceCode(ctx, deviceCode)
	require.NoError(t, err)
	require.NotNil(t, byDevice)

	byUser, err := devices.FindByUserCode(ctx, userCode)
	require.NoError(t, err)
	require.NotNil(t, byUser)
	require.Equal(t, "tv-app", byUser.ClientID)

	// user completes the interaction
	byUser.IsAuthorized = true
	byUser.AuthorizedScopes = []string{"api1"}
	byUser.Subject = &models.Subject{SubjectID: "bob"}
	require.NoError(t, devices.UpdateByUserCode(ctx, deviceCode, byUser))

	byDevice, err = devices.FindByDeviceCode(ctx, deviceCode)
	require.NoError(t, err)
	require.True(t, byDevice.IsAuthorized)
	require.Equal(t, "bob", byDevice.Subject.SubjectID)

	require.NoError(t, devices.RemoveByDeviceCode(ctx, deviceCode))
	gone, err := devices.FindByUserCode(ctx, userCode)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestUserConsentStoreReplaces(t *testing.T) {
	ctx := context.Background()
	consents := NewUserConsentStore(NewMemoryGrantStore())

	first := &models.Consent{
		SubjectID: "alice", ClientID: "web-app",
		Scopes: []string{"openid"}, CreationTime: time.Now(),
	}
	require.NoError(t, consents.StoreUserConsent(ctx, first))

	second := &models.Consent{
		SubjectID: "alice", ClientID: "web-app",
		Scopes: []string{"openid", "api1"}, CreationTime: time.Now(),
	}
	require.NoError(t, consents.StoreUserConsent(ctx, second))

	got, err := consents.GetUserConsent(ctx, "alice", "web-app")
	require.NoError(t, err)
	require.Equal(t, []string{"openid", "api1"}, got.Scopes)

	other, err := consents.GetUserConsent(ctx, "alice", "other-client")
	require.NoError(t, err)
	require.Nil(t, other)

	require.NoError(t, consents.RemoveUserConsent(ctx, "alice", "web-app"))
	got, err = consents.GetUserConsent(ctx, "alice", "web-app")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRemoveAllByFilter(t *testing.T) {
	ctx := context.Background()
	grants := NewMemoryGrantStore()
	refresh := NewRefreshTokenStore(grants)

	mk := func(sub, client string) string {
		token := &models.RefreshToken{
			CreationTime: time.Now(),
			Lifetime:     time.Hour,
			Subject:      &models.Subject{SubjectID: sub},
			AccessToken:  &models.Token{ClientID: client},
		}
		h, err := refresh.StoreRefreshToken(ctx, token)
		require.NoError(t, err)
		return h
	}

	h1 := mk("alice", "web-app")
	h2 := mk("alice", "other")
	require.NoError(t, refresh.RemoveRefreshTokens(ctx, "alice", "web-app"))

	got, err := refresh.GetRefreshToken(ctx, h1)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = refresh.GetRefreshToken(ctx, h2)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	require.NoError(t, cache.Set(ctx, "k", "v", 50*time.Millisecond))
	v, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	time.Sleep(60 * time.Millisecond)
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
