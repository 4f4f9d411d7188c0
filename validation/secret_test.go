package validation

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
	"github.com/legit-games/oidc-core/store"
)

func basicAuthRequest(t *testing.T, clientID, secret string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/connect/token", strings.NewReader(""))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	pair := url.QueryEscape(clientID) + ":" + url.QueryEscape(secret)
	r.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(pair)))
	return r
}

func formRequest(t *testing.T, form url.Values) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/connect/token", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestBasicAuthenticationSecretParser(t *testing.T) {
	parser := &BasicAuthenticationSecretParser{Options: oidc.NewOptions()}

	secret, err := parser.Parse(basicAuthRequest(t, "client one", "p@ss:word"))
	require.NoError(t, err)
	require.NotNil(t, secret)
	require.Equal(t, "client one", secret.ID)
	require.Equal(t, "p@ss:word", secret.Credential)
	require.Equal(t, oidc.ParsedSecretSharedSecret, secret.Type)

	// id without secret yields a NoSecret credential
	secret, err = parser.Parse(basicAuthRequest(t, "public-client", ""))
	require.NoError(t, err)
	require.NotNil(t, secret)
	require.Equal(t, oidc.ParsedSecretNoSecret, secret.Type)

	// garbage header finds nothing
	r := httptest.NewRequest(http.MethodPost, "/connect/token", nil)
	r.Header.Set("Authorization", "Basic ???")
	secret, err = parser.Parse(r)
	require.NoError(t, err)
	require.Nil(t, secret)
}

func TestSecretParsersPreferCredentialedResult(t *testing.T) {
	parsers := NewSecretParsers(oidc.NewOptions())

	// basic auth carries only the id, the body carries the secret: the
	// credentialed body result wins
	form := url.Values{}
	form.Set(oidc.ParamClientID, "web-app")
	form.Set(oidc.ParamClientSecret, "secret")
	r := formRequest(t, form)
	r.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("web-app:")))

	secret, err := parsers.Parse(r)
	require.NoError(t, err)
	require.NotNil(t, secret)
	require.Equal(t, oidc.ParsedSecretSharedSecret, secret.Type)
	require.Equal(t, "secret", secret.Credential)
}

func TestHashedSharedSecretValidator(t *testing.T) {
	validator := &HashedSharedSecretValidator{}
	secrets := []models.Secret{models.NewSharedSecret(HashSharedSecret("correct horse"))}

	result, err := validator.Validate(context.Background(), secrets, &ParsedSecret{
		ID: "web-app", Credential: "correct horse", Type: oidc.ParsedSecretSharedSecret,
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	result, err = validator.Validate(context.Background(), secrets, &ParsedSecret{
		ID: "web-app", Credential: "battery staple", Type: oidc.ParsedSecretSharedSecret,
	})
	require.NoError(t, err)
	require.False(t, result.Success)

	// jwt bearer secrets are not this validator's business
	result, err = validator.Validate(context.Background(), secrets, &ParsedSecret{
		ID: "web-app", Credential: "correct horse", Type: oidc.ParsedSecretJwtBearer,
	})
	require.NoError(t, err)
	require.False(t, result.Success)
}

func TestBcryptSharedSecretValidator(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	validator := &BcryptSharedSecretValidator{}
	secrets := []models.Secret{models.NewSharedSecret(string(hash))}

	result, err := validator.Validate(context.Background(), secrets, &ParsedSecret{
		ID: "web-app", Credential: "hunter2", Type: oidc.ParsedSecretSharedSecret,
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	result, err = validator.Validate(context.Background(), secrets, &ParsedSecret{
		ID: "web-app", Credential: "hunter3", Type: oidc.ParsedSecretSharedSecret,
	})
	require.NoError(t, err)
	require.False(t, result.Success)
}

func signClientAssertion(t *testing.T, key *rsa.PrivateKey, clientID, audience, jti string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss": clientID,
		"sub": clientID,
		"aud": audience,
		"jti": jti,
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestPrivateKeyJwtSecretValidator(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString([]byte{1, 0, 1})
	jwk := `{"kty":"RSA","kid":"k1","n":"` + n + `","e":"` + e + `"}`
	secrets := []models.Secret{{Value: jwk, Type: oidc.SecretTypeJSONWebKey}}

	options := oidc.NewOptions()
	options.IssuerURI = "https://auth.example.com"
	replay := services.NewReplayCache(store.NewMemoryCache())
	validator := NewPrivateKeyJwtSecretValidator(options, replay)
	ctx := context.Background()

	assertion := signClientAssertion(t, key, "web-app", "https://auth.example.com/connect/token", uuid.NewString(), time.Now().Add(time.Minute))
	result, err := validator.Validate(ctx, secrets, &ParsedSecret{ID: "web-app", Credential: assertion, Type: oidc.ParsedSecretJwtBearer})
	require.NoError(t, err)
	require.True(t, result.Success)

	// replaying the same jti must fail
	result, err = validator.Validate(ctx, secrets, &ParsedSecret{ID: "web-app", Credential: assertion, Type: oidc.ParsedSecretJwtBearer})
	require.NoError(t, err)
	require.False(t, result.Success)

	// wrong audience
	assertion = signClientAssertion(t, key, "web-app", "https://other.example.com", uuid.NewString(), time.Now().Add(time.Minute))
	result, err = validator.Validate(ctx, secrets, &ParsedSecret{ID: "web-app", Credential: assertion, Type: oidc.ParsedSecretJwtBearer})
	require.NoError(t, err)
	require.False(t, result.Success)

	// iss must match the claimed client id
	assertion = signClientAssertion(t, key, "other-client", "https://auth.example.com", uuid.NewString(), time.Now().Add(time.Minute))
	result, err = validator.Validate(ctx, secrets, &ParsedSecret{ID: "web-app", Credential: assertion, Type: oidc.ParsedSecretJwtBearer})
	require.NoError(t, err)
	require.False(t, result.Success)

	// expired assertion beyond clock skew
	assertion = signClientAssertion(t, key, "web-app", "https://auth.example.com", uuid.NewString(), time.Now().Add(-time.Hour))
	result, err = validator.Validate(ctx, secrets, &ParsedSecret{ID: "web-app", Credential: assertion, Type: oidc.ParsedSecretJwtBearer})
	require.NoError(t, err)
	require.False(t, result.Success)
}

func TestClientSecretValidator(t *testing.T) {
	client := models.NewClient("web-app")
	require.NoError(t, client.SetAllowedGrantTypes(oidc.AuthorizationCode))
	client.ClientSecrets = []models.Secret{models.NewSharedSecret(HashSharedSecret("secret"))}
	clients := store.NewClientStore(client)

	options := oidc.NewOptions()
	replay := services.NewReplayCache(store.NewMemoryCache())
	validator := NewClientSecretValidator(clients, NewSecretParsers(options), NewSecretValidators(options, replay), services.LogEventSink{})
	ctx := context.Background()

	result, err := validator.Validate(ctx, basicAuthRequest(t, "web-app", "secret"))
	require.NoError(t, err)
	require.Equal(t, "web-app", result.Client.ClientID)

	_, err = validator.Validate(ctx, basicAuthRequest(t, "web-app", "wrong"))
	require.ErrorContains(t, err, "invalid_client")

	_, err = validator.Validate(ctx, basicAuthRequest(t, "nobody", "secret"))
	require.ErrorContains(t, err, "invalid_client")
}
