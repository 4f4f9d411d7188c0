package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
)

// staticProfileService returns a fixed claim set regardless of the request.
type staticProfileService struct {
	claims []models.Claim
	// lastRequested records the claim types of the most recent call.
	lastRequested []string
}

func (s *staticProfileService) GetProfileData(ctx context.Context, req *services.ProfileDataRequest) ([]models.Claim, error) {
	s.lastRequested = req.RequestedClaimTypes
	return s.claims, nil
}

func (s *staticProfileService) IsActive(ctx context.Context, req *services.IsActiveRequest) (bool, error) {
	return true, nil
}

func testSubject() *models.Subject {
	return &models.Subject{
		SubjectID:             "alice",
		AuthenticationTime:    time.Unix(1_700_000_000, 0),
		IdentityProvider:      "local",
		AuthenticationMethods: []string{"pwd"},
	}
}

func claimValues(claims []models.Claim, claimType string) []string {
	var out []string
	for _, c := range claims {
		if c.Type == claimType {
			out = append(out, c.Value)
		}
	}
	return out
}

func TestIdentityTokenClaimsDeferUserClaimsToUserinfo(t *testing.T) {
	profile := &staticProfileService{claims: []models.Claim{{Type: "email", Value: "alice@example.com"}}}
	svc := NewClaimsService(profile)

	client := models.NewClient("web-app")
	resources := models.NewResources([]*models.IdentityResource{models.NewIdentityResource("profile", "email")}, nil, nil)

	claims, err := svc.GetIdentityTokenClaims(context.Background(), testSubject(), client, resources, false)
	require.NoError(t, err)

	require.Equal(t, []string{"alice"}, claimValues(claims, oidc.ClaimSubject))
	require.Equal(t, []string{"local"}, claimValues(claims, oidc.ClaimIdentityProvider))
	require.Equal(t, []string{"pwd"}, claimValues(claims, oidc.ClaimAuthenticationMethod))
	require.Empty(t, claimValues(claims, "email"), "user claims belong to the userinfo endpoint by default")
}

func TestIdentityTokenClaimsIncludedWhenClientAlwaysWantsThem(t *testing.T) {
	profile := &staticProfileService{claims: []models.Claim{{Type: "email", Value: "alice@example.com"}}}
	svc := NewClaimsService(profile)

	client := models.NewClient("web-app")
	client.AlwaysIncludeUserClaimsInIdToken = true
	resources := models.NewResources([]*models.IdentityResource{models.NewIdentityResource("profile", "email", "name")}, nil, nil)

	claims, err := svc.GetIdentityTokenClaims(context.Background(), testSubject(), client, resources, false)
	require.NoError(t, err)

	require.Equal(t, []string{"alice@example.com"}, claimValues(claims, "email"))
	require.Equal(t, []string{"email", "name"}, profile.lastRequested)
}

func TestIdentityTokenClaimsFilterProtocolClaims(t *testing.T) {
	profile := &staticProfileService{claims: []models.Claim{
		{Type: oidc.ClaimSubject, Value: "mallory"},
		{Type: oidc.ClaimIssuer, Value: "https://evil.example"},
		{Type: "email", Value: "alice@example.com"},
	}}
	svc := NewClaimsService(profile)

	client := models.NewClient("web-app")
	resources := models.NewResources([]*models.IdentityResource{models.NewIdentityResource("profile", "email")}, nil, nil)

	claims, err := svc.GetIdentityTokenClaims(context.Background(), testSubject(), client, resources, true)
	require.NoError(t, err)

	require.Equal(t, []string{"alice"}, claimValues(claims, oidc.ClaimSubject), "profile service must not override sub")
	require.Empty(t, claimValues(claims, oidc.ClaimIssuer))
	require.Equal(t, []string{"alice@example.com"}, claimValues(claims, "email"))
}

func TestAccessTokenClaimsForUser(t *testing.T) {
	profile := &staticProfileService{claims: []models.Claim{{Type: "role", Value: "admin"}}}
	svc := NewClaimsService(profile)

	client := models.NewClient("web-app")
	api := models.NewApiResource("urn:api1", "api1")
	api.UserClaims = []string{"role"}
	resources := models.NewResources(nil, []*models.ApiResource{api}, []*models.ApiScope{models.NewApiScope("api1")})

	claims, err := svc.GetAccessTokenClaims(context.Background(), testSubject(), client, resources, []string{"openid", "api1", "offline_access"})
	require.NoError(t, err)

	require.Equal(t, []string{"web-app"}, claimValues(claims, oidc.ClaimClientID))
	require.Equal(t, []string{"openid", "api1"}, claimValues(claims, oidc.ClaimScope), "offline_access never appears as a scope claim")
	require.Equal(t, []string{"alice"}, claimValues(claims, oidc.ClaimSubject))
	require.Equal(t, []string{"admin"}, claimValues(claims, "role"))
}

func TestAccessTokenClaimsForClientOnly(t *testing.T) {
	svc := NewClaimsService(&staticProfileService{})

	client := models.NewClient("machine")
	client.Claims = []models.Claim{{Type: "tenant", Value: "acme"}}
	resources := models.NewResources(nil, nil, []*models.ApiScope{models.NewApiScope("api1")})

	claims, err := svc.GetAccessTokenClaims(context.Background(), nil, client, resources, []string{"api1"})
	require.NoError(t, err)

	require.Empty(t, claimValues(claims, oidc.ClaimSubject))
	require.Equal(t, []string{"acme"}, claimValues(claims, "client_tenant"), "client claims carry the configured prefix")
}

func TestAccessTokenClientClaimsRequireOptIn(t *testing.T) {
	svc := NewClaimsService(&staticProfileService{})

	client := models.NewClient("web-app")
	client.Claims = []models.Claim{{Type: "tenant", Value: "acme"}}
	resources := models.NewResources(nil, nil, nil)

	claims, err := svc.GetAccessTokenClaims(context.Background(), testSubject(), client, resources, []string{"openid"})
	require.NoError(t, err)
	require.Empty(t, claimValues(claims, "client_tenant"))

	client.AlwaysSendClientClaims = true
	claims, err = svc.GetAccessTokenClaims(context.Background(), testSubject(), client, resources, []string{"openid"})
	require.NoError(t, err)
	require.Equal(t, []string{"acme"}, claimValues(claims, "client_tenant"))
}
