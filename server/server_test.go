package server

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
	"github.com/legit-games/oidc-core/store"
	"github.com/legit-games/oidc-core/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testClientSecret = "secret"
	testRedirectURI  = "https://client.example/cb"
	testVerifier     = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

type serverFixture struct {
	server *Server
	http   *httptest.Server
	expect *httpexpect.Expect
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	options := oidc.NewOptions()
	options.IssuerURI = "https://auth.test"
	options.DeviceFlow.Interval = 0

	keys, err := services.NewGeneratedSigningCredentialStore()
	require.NoError(t, err)

	webApp := models.NewClient("web-app")
	webApp.AllowedGrantTypes = models.GrantTypes{oidc.AuthorizationCode, oidc.RefreshToken}
	webApp.ClientSecrets = []models.Secret{models.NewSharedSecret(validation.HashSharedSecret(testClientSecret))}
	webApp.RedirectURIs = []string{testRedirectURI}
	webApp.AllowedScopes = []string{"openid", "profile", "api1"}
	webApp.AllowOfflineAccess = true

	machine := models.NewClient("machine")
	machine.AllowedGrantTypes = models.GrantTypes{oidc.ClientCredentials}
	machine.ClientSecrets = []models.Secret{models.NewSharedSecret(validation.HashSharedSecret(testClientSecret))}
	machine.AllowedScopes = []string{"api1"}

	refMachine := models.NewClient("ref-machine")
	refMachine.AllowedGrantTypes = models.GrantTypes{oidc.ClientCredentials}
	refMachine.ClientSecrets = []models.Secret{models.NewSharedSecret(validation.HashSharedSecret(testClientSecret))}
	refMachine.AllowedScopes = []string{"api1"}
	refMachine.AccessTokenType = oidc.AccessTokenReference

	device := models.NewClient("tv-app")
	device.AllowedGrantTypes = models.GrantTypes{oidc.DeviceFlow}
	device.RequireClientSecret = false
	device.AllowedScopes = []string{"openid", "api1"}

	srv := NewServer(options, NewConfig(), &Backend{
		Clients: store.NewClientStore(webApp, machine, refMachine, device),
		Resources: store.NewResourceStore(
			[]*models.IdentityResource{models.NewIdentityResource("openid"), models.NewIdentityResource("profile", "name")},
			[]*models.ApiResource{models.NewApiResource("urn:api1", "api1")},
			[]*models.ApiScope{models.NewApiScope("api1")},
		),
		Keys: keys,
	})
	srv.UserAuthorizationHandler = func(c *gin.Context) (*models.Subject, error) {
		return &models.Subject{
			SubjectID:             "alice",
			SessionID:             "sess-1",
			AuthenticationTime:    time.Now(),
			IdentityProvider:      "local",
			AuthenticationMethods: []string{"pwd"},
		}, nil
	}

	ts := httptest.NewServer(NewGinEngine(srv))
	t.Cleanup(ts.Close)

	e := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  ts.URL,
		Reporter: httpexpect.NewAssertReporter(t),
		Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})

	return &serverFixture{server: srv, http: ts, expect: e}
}

func s256Of(verifier string) string {
	digest := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// authorizeCode runs the authorize request and returns the issued code.
func (f *serverFixture) authorizeCode(t *testing.T, scope string) string {
	t.Helper()

	resp := f.expect.GET("/connect/authorize").
		WithQuery("client_id", "web-app").
		WithQuery("response_type", "code").
		WithQuery("redirect_uri", testRedirectURI).
		WithQuery("scope", scope).
		WithQuery("state", "xyz").
		WithQuery("nonce", "n-1").
		WithQuery("code_challenge", s256Of(testVerifier)).
		WithQuery("code_challenge_method", "S256").
		Expect().
		Status(http.StatusFound)

	location, err := url.Parse(resp.Header("Location").Raw())
	require.NoError(t, err)
	require.Equal(t, "xyz", location.Query().Get("state"))
	require.Empty(t, location.Query().Get("error"), location.Query().Get("error_description"))
	code := location.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func TestDiscoveryDocument(t *testing.T) {
	f := newServerFixture(t)

	doc := f.expect.GET("/.well-known/openid-configuration").
		Expect().Status(http.StatusOK).JSON().Object()

	doc.HasValue("issuer", "https://auth.test")
	doc.HasValue("authorization_endpoint", "https://auth.test/connect/authorize")
	doc.HasValue("token_endpoint", "https://auth.test/connect/token")
	doc.Value("scopes_supported").Array().ContainsAll("openid", "profile", "api1")
	doc.Value("code_challenge_methods_supported").Array().ContainsAll("plain", "S256")
}

func TestJwksDocument(t *testing.T) {
	f := newServerFixture(t)

	keys := f.expect.GET("/.well-known/jwks.json").
		Expect().Status(http.StatusOK).JSON().Object().
		Value("keys").Array()

	keys.Length().IsEqual(1)
	key := keys.Value(0).Object()
	key.HasValue("kty", "RSA")
	key.HasValue("use", "sig")
	key.HasValue("alg", "RS256")
	key.Value("n").String().NotEmpty()
	key.Value("kid").String().NotEmpty()
}

func TestAuthorizationCodeFlow(t *testing.T) {
	f := newServerFixture(t)
	code := f.authorizeCode(t, "openid profile api1 offline_access")

	body := f.expect.POST("/connect/token").
		WithBasicAuth("web-app", testClientSecret).
		WithForm(map[string]string{
			"grant_type":    "authorization_code",
			"code":          code,
			"redirect_uri":  testRedirectURI,
			"code_verifier": testVerifier,
		}).
		Expect().Status(http.StatusOK).JSON().Object()

	body.HasValue("token_type", "Bearer")
	body.Value("access_token").String().NotEmpty()
	body.Value("id_token").String().NotEmpty()
	body.Value("refresh_token").String().NotEmpty()
	body.Value("scope").String().Contains("openid")
}

func TestAuthorizationCodeIsSingleUse(t *testing.T) {
	f := newServerFixture(t)
	code := f.authorizeCode(t, "openid")

	form := map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"redirect_uri":  testRedirectURI,
		"code_verifier": testVerifier,
	}
	f.expect.POST("/connect/token").
		WithBasicAuth("web-app", testClientSecret).
		WithForm(form).
		Expect().Status(http.StatusOK)

	f.expect.POST("/connect/token").
		WithBasicAuth("web-app", testClientSecret).
		WithForm(form).
		Expect().Status(http.StatusBadRequest).
		JSON().Object().HasValue("error", "invalid_grant")
}

func TestTokenRequestWrongVerifier(t *testing.T) {
	f := newServerFixture(t)
	code := f.authorizeCode(t, "openid")

	f.expect.POST("/connect/token").
		WithBasicAuth("web-app", testClientSecret).
		WithForm(map[string]string{
			"grant_type":    "authorization_code",
			"code":          code,
			"redirect_uri":  testRedirectURI,
			"code_verifier": "wrong-verifier-wrong-verifier-wrong-verifier",
		}).
		Expect().Status(http.StatusBadRequest).
		JSON().Object().HasValue("error", "invalid_grant")
}

func TestRefreshTokenFlow(t *testing.T) {
	f := newServerFixture(t)
	code := f.authorizeCode(t, "openid api1 offline_access")

	first := f.expect.POST("/connect/token").
		WithBasicAuth("web-app", testClientSecret).
		WithForm(map[string]string{
			"grant_type":    "authorization_code",
			"code":          code,
			"redirect_uri":  testRedirectURI,
			"code_verifier": testVerifier,
		}).
		Expect().Status(http.StatusOK).JSON().Object()

	refreshToken := first.Value("refresh_token").String().Raw()

	second := f.expect.POST("/connect/token").
		WithBasicAuth("web-app", testClientSecret).
		WithForm(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}).
		Expect().Status(http.StatusOK).JSON().Object()

	second.Value("access_token").String().NotEmpty()
	second.Value("refresh_token").String().NotEmpty()
	second.Value("id_token").String().NotEmpty()
}

func TestClientCredentialsFlow(t *testing.T) {
	f := newServerFixture(t)

	body := f.expect.POST("/connect/token").
		WithBasicAuth("machine", testClientSecret).
		WithForm(map[string]string{
			"grant_type": "client_credentials",
			"scope":      "api1",
		}).
		Expect().Status(http.StatusOK).JSON().Object()

	body.Value("access_token").String().NotEmpty()
	body.NotContainsKey("refresh_token")
	body.NotContainsKey("id_token")
}

func TestClientAuthenticationFailure(t *testing.T) {
	f := newServerFixture(t)

	f.expect.POST("/connect/token").
		WithBasicAuth("machine", "wrong").
		WithForm(map[string]string{"grant_type": "client_credentials"}).
		Expect().Status(http.StatusUnauthorized).
		JSON().Object().HasValue("error", "invalid_client")
}

func TestDeviceFlow(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	issued := f.expect.POST("/connect/deviceauthorization").
		WithForm(map[string]string{
			"client_id": "tv-app",
			"scope":     "openid api1",
		}).
		Expect().Status(http.StatusOK).JSON().Object()

	deviceCode := issued.Value("device_code").String().Raw()
	userCode := issued.Value("user_code").String().Raw()
	issued.Value("verification_uri").String().Contains("/device")

	pollForm := map[string]string{
		"grant_type":  "urn:ietf:params:oauth:grant-type:device_code",
		"client_id":   "tv-app",
		"device_code": deviceCode,
	}
	f.expect.POST("/connect/token").
		WithForm(pollForm).
		Expect().Status(http.StatusBadRequest).
		JSON().Object().HasValue("error", "authorization_pending")

	// the user approves on the verification page
	record, err := f.server.Devices.FindByUserCode(ctx, userCode)
	require.NoError(t, err)
	require.NotNil(t, record)
	record.IsAuthorized = true
	record.AuthorizedScopes = record.RequestedScopes
	record.Subject = &models.Subject{SubjectID: "alice", AuthenticationTime: time.Now()}
	require.NoError(t, f.server.Devices.UpdateByUserCode(ctx, deviceCode, record))

	body := f.expect.POST("/connect/token").
		WithForm(pollForm).
		Expect().Status(http.StatusOK).JSON().Object()

	body.Value("access_token").String().NotEmpty()
	body.Value("id_token").String().NotEmpty()

	// the device code is consumed
	f.expect.POST("/connect/token").
		WithForm(pollForm).
		Expect().Status(http.StatusBadRequest).
		JSON().Object().HasValue("error", "invalid_grant")
}

func TestIntrospectionAndRevocation(t *testing.T) {
	f := newServerFixture(t)

	handle := f.expect.POST("/connect/token").
		WithBasicAuth("ref-machine", testClientSecret).
		WithForm(map[string]string{
			"grant_type": "client_credentials",
			"scope":      "api1",
		}).
		Expect().Status(http.StatusOK).JSON().Object().
		Value("access_token").String().NotEmpty().Raw()

	active := f.expect.POST("/connect/introspect").
		WithBasicAuth("ref-machine", testClientSecret).
		WithForm(map[string]string{"token": handle}).
		Expect().Status(http.StatusOK).JSON().Object()

	active.HasValue("active", true)
	active.HasValue("client_id", "ref-machine")
	active.HasValue("scope", "api1")

	f.expect.POST("/connect/revocation").
		WithBasicAuth("ref-machine", testClientSecret).
		WithForm(map[string]string{"token": handle, "token_type_hint": "access_token"}).
		Expect().Status(http.StatusOK)

	f.expect.POST("/connect/introspect").
		WithBasicAuth("ref-machine", testClientSecret).
		WithForm(map[string]string{"token": handle}).
		Expect().Status(http.StatusOK).JSON().Object().
		HasValue("active", false)
}

func TestAuthorizeErrorsRedirectWithState(t *testing.T) {
	f := newServerFixture(t)

	resp := f.expect.GET("/connect/authorize").
		WithQuery("client_id", "web-app").
		WithQuery("response_type", "code").
		WithQuery("redirect_uri", testRedirectURI).
		WithQuery("scope", "openid unknown-scope").
		WithQuery("state", "xyz").
		WithQuery("code_challenge", s256Of(testVerifier)).
		WithQuery("code_challenge_method", "S256").
		Expect().Status(http.StatusFound)

	location, err := url.Parse(resp.Header("Location").Raw())
	require.NoError(t, err)
	require.Equal(t, "invalid_scope", location.Query().Get("error"))
	require.Equal(t, "xyz", location.Query().Get("state"))
}

func TestAuthorizeUnknownClientNotRedirected(t *testing.T) {
	f := newServerFixture(t)

	f.expect.GET("/connect/authorize").
		WithQuery("client_id", "nobody").
		WithQuery("response_type", "code").
		WithQuery("redirect_uri", testRedirectURI).
		WithQuery("scope", "openid").
		Expect().Status(http.StatusBadRequest).
		JSON().Object().HasValue("error", "unauthorized_client")
}
