package tokens

import (
	"context"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
	"github.com/legit-games/oidc-core/store"
)

type tokenFixture struct {
	options    *oidc.Options
	keys       *services.InMemoryKeyStore
	service    *DefaultTokenService
	references *store.ReferenceTokenStore
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()

	keys, err := services.NewGeneratedSigningCredentialStore()
	require.NoError(t, err)

	options := oidc.NewOptions()
	options.IssuerURI = "https://auth.example.com"

	references := store.NewReferenceTokenStore(store.NewMemoryGrantStore())
	claims := NewClaimsService(services.DefaultProfileService{})
	creation := NewTokenCreationService(options, keys)
	return &tokenFixture{
		options:    options,
		keys:       keys,
		service:    NewTokenService(options, claims, creation, references),
		references: references,
	}
}

func (f *tokenFixture) parse(t *testing.T, raw string) (jwt.MapClaims, map[string]interface{}) {
	t.Helper()

	keys, err := f.keys.GetValidationKeys(context.Background())
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return keys[0].Key.(*rsa.PublicKey), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	return claims, parsed.Header
}

func TestCreateIdentityToken(t *testing.T) {
	f := newTokenFixture(t)

	client := models.NewClient("web-app")
	token, err := f.service.CreateIdentityToken(context.Background(), &TokenCreationRequest{
		Subject:                 testSubject(),
		Client:                  client,
		Resources:               models.NewResources(nil, nil, nil),
		Nonce:                   "n-0S6_WzA2Mj",
		SessionID:               "sess-1",
		AccessTokenToHash:       "some-access-token",
		AuthorizationCodeToHash: "some-code",
	})
	require.NoError(t, err)

	require.Equal(t, oidc.TokenTypeIdentity, token.Type)
	require.Equal(t, []string{"web-app"}, token.Audiences)
	require.Equal(t, client.IdentityTokenLifetime, token.Lifetime)
	require.Equal(t, "n-0S6_WzA2Mj", token.ClaimValue(oidc.ClaimNonce))
	require.Equal(t, "sess-1", token.SessionID())

	atHash := token.ClaimValue(oidc.ClaimAccessTokenHash)
	require.Len(t, atHash, 22, "base64url of a 16 byte half digest")
	require.Equal(t, leftHalfHash("some-access-token"), atHash)
	require.Equal(t, leftHalfHash("some-code"), token.ClaimValue(oidc.ClaimAuthorizationCodeHash))
}

func TestCreateAccessTokenAudiences(t *testing.T) {
	f := newTokenFixture(t)
	f.options.EmitStaticAudienceClaim = true

	api := models.NewApiResource("urn:api1", "api1")
	api.AllowedAccessTokenSigningAlgorithms = []string{"RS256"}
	resources := models.NewResources(nil, []*models.ApiResource{api}, []*models.ApiScope{models.NewApiScope("api1")})

	token, err := f.service.CreateAccessToken(context.Background(), &TokenCreationRequest{
		Subject:   testSubject(),
		Client:    models.NewClient("web-app"),
		Resources: resources,
		Scopes:    []string{"openid", "api1"},
	})
	require.NoError(t, err)

	require.Equal(t, []string{"urn:api1", "https://auth.example.com/resources"}, token.Audiences)
	require.Equal(t, []string{"RS256"}, token.AllowedSigningAlgorithms)
	require.NotEmpty(t, token.ClaimValue(oidc.ClaimJwtID))
}

func TestCreateSecurityTokenSignsJwt(t *testing.T) {
	f := newTokenFixture(t)

	token, err := f.service.CreateAccessToken(context.Background(), &TokenCreationRequest{
		Subject:   testSubject(),
		Client:    models.NewClient("web-app"),
		Resources: models.NewResources(nil, []*models.ApiResource{models.NewApiResource("urn:api1", "api1")}, []*models.ApiScope{models.NewApiScope("api1")}),
		Scopes:    []string{"api1"},
	})
	require.NoError(t, err)

	raw, err := f.service.CreateSecurityToken(context.Background(), token)
	require.NoError(t, err)

	claims, header := f.parse(t, raw)
	require.Equal(t, "at+jwt", header["typ"])
	require.NotEmpty(t, header["kid"])
	require.Equal(t, "https://auth.example.com", claims["iss"])
	require.Equal(t, "urn:api1", claims["aud"])
	require.Equal(t, "alice", claims["sub"])
	require.Equal(t, []interface{}{"api1"}, claims["scope"])
}

func TestCreateSecurityTokenScopeStringOption(t *testing.T) {
	f := newTokenFixture(t)
	f.options.EmitScopesAsSpaceDelimitedString = true

	token, err := f.service.CreateAccessToken(context.Background(), &TokenCreationRequest{
		Subject:   testSubject(),
		Client:    models.NewClient("web-app"),
		Resources: models.NewResources(nil, nil, []*models.ApiScope{models.NewApiScope("api1"), models.NewApiScope("api2")}),
		Scopes:    []string{"api1", "api2"},
	})
	require.NoError(t, err)

	raw, err := f.service.CreateSecurityToken(context.Background(), token)
	require.NoError(t, err)

	claims, _ := f.parse(t, raw)
	require.Equal(t, "api1 api2", claims["scope"])
}

func TestCreateSecurityTokenReference(t *testing.T) {
	f := newTokenFixture(t)

	client := models.NewClient("web-app")
	client.AccessTokenType = oidc.AccessTokenReference

	token, err := f.service.CreateAccessToken(context.Background(), &TokenCreationRequest{
		Subject:   testSubject(),
		Client:    client,
		Resources: models.NewResources(nil, nil, []*models.ApiScope{models.NewApiScope("api1")}),
		Scopes:    []string{"api1"},
	})
	require.NoError(t, err)

	handle, err := f.service.CreateSecurityToken(context.Background(), token)
	require.NoError(t, err)
	require.NotContains(t, handle, ".", "reference handles are opaque, not JWTs")

	stored, err := f.references.GetReferenceToken(context.Background(), handle)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "web-app", stored.ClientID)
}

func TestCreateTokenConfirmationClaim(t *testing.T) {
	f := newTokenFixture(t)

	now := time.Now()
	raw, err := NewTokenCreationService(f.options, f.keys).CreateToken(context.Background(), &models.Token{
		Type:         oidc.TokenTypeAccess,
		Issuer:       f.options.IssuerURI,
		ClientID:     "web-app",
		CreationTime: now,
		Lifetime:     time.Hour,
		Confirmation: `{"x5t#S256":"bwcK0esc3ACC3DB2Y5_lESsXE8o9ltc05O89jdN-dg2"}`,
	})
	require.NoError(t, err)

	claims, _ := f.parse(t, raw)
	cnf, ok := claims["cnf"].(map[string]interface{})
	require.True(t, ok, "cnf must serialize as a JSON object")
	require.Equal(t, "bwcK0esc3ACC3DB2Y5_lESsXE8o9ltc05O89jdN-dg2", cnf["x5t#S256"])
	require.InDelta(t, float64(now.Add(time.Hour).Unix()), claims["exp"], 1)
}
