package validation

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	oidc "github.com/legit-games/oidc-core"
	errs "github.com/legit-games/oidc-core/errors"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
	"github.com/legit-games/oidc-core/store"
)

func authorizeFixture(t *testing.T, clients ...*models.Client) *AuthorizeRequestValidator {
	t.Helper()
	if len(clients) == 0 {
		client := models.NewClient("web-app")
		require.NoError(t, client.SetAllowedGrantTypes(oidc.AuthorizationCode))
		client.ClientSecrets = []models.Secret{models.NewSharedSecret(HashSharedSecret("secret"))}
		client.RedirectURIs = []string{"https://app.example.com/cb"}
		client.AllowedScopes = []string{"openid", "profile", "api1"}
		clients = []*models.Client{client}
	}
	resources := NewResourceValidator(testResourceStore(), nil)
	return NewAuthorizeRequestValidator(oidc.NewOptions(), store.NewClientStore(clients...), resources, services.LogEventSink{}, nil)
}

func s256Challenge(verifier string) string {
	digest := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

func wellFormedAuthorizeRequest() url.Values {
	params := url.Values{}
	params.Set(oidc.ParamClientID, "web-app")
	params.Set(oidc.ParamResponseType, "code")
	params.Set(oidc.ParamRedirectURI, "https://app.example.com/cb")
	params.Set(oidc.ParamScope, "openid profile")
	params.Set(oidc.ParamState, "xyz")
	params.Set(oidc.ParamCodeChallenge, s256Challenge("verifier123-padded-to-minimum-length-aaaaaaa"))
	params.Set(oidc.ParamCodeChallengeMethod, "S256")
	return params
}

func TestAuthorizeRequestHappyPath(t *testing.T) {
	v := authorizeFixture(t)

	result, err := v.Validate(context.Background(), wellFormedAuthorizeRequest(), nil)
	require.NoError(t, err)
	require.False(t, result.IsError(), "unexpected error: %v (%s)", result.Error, result.ErrorDescription)

	req := result.Request
	require.Equal(t, oidc.ResponseTypeCode, req.ResponseType)
	require.Equal(t, oidc.AuthorizationCode, req.GrantType)
	require.Equal(t, oidc.ResponseModeQuery, req.ResponseMode)
	require.Equal(t, "xyz", req.State)
	require.True(t, req.IsOpenIDRequest)
	require.Equal(t, oidc.CodeChallengeS256, req.CodeChallengeMethod)
	require.Len(t, req.ValidatedResources.Resources.IdentityResources, 2)
}

func TestAuthorizeRequestUnknownClient(t *testing.T) {
	v := authorizeFixture(t)
	params := wellFormedAuthorizeRequest()
	params.Set(oidc.ParamClientID, "nobody")

	result, err := v.Validate(context.Background(), params, nil)
	require.NoError(t, err)
	require.ErrorIs(t, result.Error, errs.ErrUnauthorizedClient)
}

func TestAuthorizeRequestMissingResponseType(t *testing.T) {
	v := authorizeFixture(t)
	params := wellFormedAuthorizeRequest()
	params.Del(oidc.ParamResponseType)

	result, err := v.Validate(context.Background(), params, nil)
	require.NoError(t, err)
	require.ErrorIs(t, result.Error, errs.ErrInvalidRequest)
	require.Contains(t, result.ErrorDescription, "response_type")
}

func TestAuthorizeRequestUnsupportedResponseType(t *testing.T) {
	v := authorizeFixture(t)
	params := wellFormedAuthorizeRequest()
	params.Set(oidc.ParamResponseType, "tokens")

	result, err := v.Validate(context.Background(), params, nil)
	require.NoError(t, err)
	require.ErrorIs(t, result.Error, errs.ErrUnsupportedResponseType)
}

func TestAuthorizeRequestUnregisteredRedirectURI(t *testing.T) {
	v := authorizeFixture(t)
	params := wellFormedAuthorizeRequest()
	params.Set(oidc.ParamRedirectURI, "https://evil.example.com/cb")

	result, err := v.Validate(context.Background(), params, nil)
	require.NoError(t, err)
	require.ErrorIs(t, result.Error, errs.ErrInvalidRequest)
}

func TestAuthorizeRequestPkceRequired(t *testing.T) {
	v := authorizeFixture(t)
	params := wellFormedAuthorizeRequest()
	params.Del(oidc.ParamCodeChallenge)
	params.Del(oidc.ParamCodeChallengeMethod)

	result, err := v.Validate(context.Background(), params, nil)
	require.NoError(t, err)
	require.ErrorIs(t, result.Error, errs.ErrInvalidRequest)
	require.Contains(t, result.ErrorDescription, "code challenge")
}

func TestAuthorizeRequestPlainPkceRejectedByDefault(t *testing.T) {
	v := authorizeFixture(t)
	params := wellFormedAuthorizeRequest()
	params.Set(oidc.ParamCodeChallenge, "plain-challenge-at-least-forty-three-chars-long")
	params.Set(oidc.ParamCodeChallengeMethod, "plain")

	result, err := v.Validate(context.Background(), params, nil)
	require.NoError(t, err)
	require.ErrorIs(t, result.Error, errs.ErrInvalidRequest)
}

func TestAuthorizeRequestGrantTypeNotAllowed(t *testing.T) {
	client := models.NewClient("machine")
	require.NoError(t, client.SetAllowedGrantTypes(oidc.ClientCredentials))
	client.RedirectURIs = []string{"https://app.example.com/cb"}
	client.ClientSecrets = []models.Secret{models.NewSharedSecret(HashSharedSecret("secret"))}
	v := authorizeFixture(t, client)

	params := wellFormedAuthorizeRequest()
	params.Set(oidc.ParamClientID, "machine")

	result, err := v.Validate(context.Background(), params, nil)
	require.NoError(t, err)
	require.ErrorIs(t, result.Error, errs.ErrUnauthorizedClient)
}

func TestAuthorizeRequestNonceRequiredForIDToken(t *testing.T) {
	client := models.NewClient("spa")
	require.NoError(t, client.SetAllowedGrantTypes(oidc.Implicit))
	client.RequireClientSecret = false
	client.RedirectURIs = []string{"https://spa.example.com/cb"}
	client.AllowedScopes = []string{"openid", "profile"}
	v := authorizeFixture(t, client)

	params := url.Values{}
	params.Set(oidc.ParamClientID, "spa")
	params.Set(oidc.ParamResponseType, "id_token")
	params.Set(oidc.ParamRedirectURI, "https://spa.example.com/cb")
	params.Set(oidc.ParamScope, "openid")

	result, err := v.Validate(context.Background(), params, nil)
	require.NoError(t, err)
	require.ErrorIs(t, result.Error, errs.ErrInvalidRequest)
	require.Contains(t, result.ErrorDescription, "Nonce")

	params.Set(oidc.ParamNonce, "n-0S6_WzA2Mj")
	result, err = v.Validate(context.Background(), params, nil)
	require.NoError(t, err)
	require.False(t, result.IsError(), "unexpected error: %v (%s)", result.Error, result.ErrorDescription)
	require.Equal(t, oidc.ResponseModeFragment, result.Request.ResponseMode)
}

func TestAuthorizeRequestOpenIDScopeRequiredForIDToken(t *testing.T) {
	client := models.NewClient("spa")
	require.NoError(t, client.SetAllowedGrantTypes(oidc.Implicit))
	client.RequireClientSecret = false
	client.RedirectURIs = []string{"https://spa.example.com/cb"}
	client.AllowedScopes = []string{"openid", "profile"}
	v := authorizeFixture(t, client)

	params := url.Values{}
	params.Set(oidc.ParamClientID, "spa")
	params.Set(oidc.ParamResponseType, "id_token")
	params.Set(oidc.ParamRedirectURI, "https://spa.example.com/cb")
	params.Set(oidc.ParamScope, "profile")
	params.Set(oidc.ParamNonce, "n-0S6_WzA2Mj")

	result, err := v.Validate(context.Background(), params, nil)
	require.NoError(t, err)
	require.ErrorIs(t, result.Error, errs.ErrInvalidScope)
}

func TestAuthorizeRequestResourceIndicatorRejectedForImplicit(t *testing.T) {
	client := models.NewClient("spa")
	require.NoError(t, client.SetAllowedGrantTypes(oidc.Implicit))
	client.RequireClientSecret = false
	client.AllowAccessTokensViaBrowser = true
	client.RedirectURIs = []string{"https://spa.example.com/cb"}
	client.AllowedScopes = []string{"api1"}
	v := authorizeFixture(t, client)

	params := url.Values{}
	params.Set(oidc.ParamClientID, "spa")
	params.Set(oidc.ParamResponseType, "token")
	params.Set(oidc.ParamRedirectURI, "https://spa.example.com/cb")
	params.Set(oidc.ParamScope, "api1")
	params.Set(oidc.ParamResource, "urn:api1")

	result, err := v.Validate(context.Background(), params, nil)
	require.NoError(t, err)
	require.ErrorIs(t, result.Error, errs.ErrInvalidTarget)
}

func TestAuthorizeRequestPromptNoneMustBeExclusive(t *testing.T) {
	v := authorizeFixture(t)
	params := wellFormedAuthorizeRequest()
	params.Set(oidc.ParamPrompt, "none login")

	result, err := v.Validate(context.Background(), params, nil)
	require.NoError(t, err)
	require.ErrorIs(t, result.Error, errs.ErrInvalidRequest)
}

func TestAuthorizeRequestIdpAcrFiltering(t *testing.T) {
	client := models.NewClient("web-app")
	require.NoError(t, client.SetAllowedGrantTypes(oidc.AuthorizationCode))
	client.ClientSecrets = []models.Secret{models.NewSharedSecret(HashSharedSecret("secret"))}
	client.RedirectURIs = []string{"https://app.example.com/cb"}
	client.AllowedScopes = []string{"openid", "profile"}
	client.IdentityProviderRestrictions = []string{"google"}
	v := authorizeFixture(t, client)

	params := wellFormedAuthorizeRequest()
	params.Set(oidc.ParamAcrValues, "idp:google idp:facebook level2")

	result, err := v.Validate(context.Background(), params, nil)
	require.NoError(t, err)
	require.False(t, result.IsError())
	require.Equal(t, []string{"idp:google", "level2"}, result.Request.AcrValues)
}

func TestAuthorizeRequestSessionIDFromSubject(t *testing.T) {
	v := authorizeFixture(t)
	subject := &models.Subject{SubjectID: "alice", SessionID: "sess-1"}

	result, err := v.Validate(context.Background(), wellFormedAuthorizeRequest(), subject)
	require.NoError(t, err)
	require.False(t, result.IsError())
	require.Equal(t, "sess-1", result.Request.SessionID)
}
