package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
)

func validConfiguredClient(t *testing.T) *models.Client {
	t.Helper()
	client := models.NewClient("web-app")
	require.NoError(t, client.SetAllowedGrantTypes(oidc.AuthorizationCode))
	client.ClientSecrets = []models.Secret{models.NewSharedSecret(HashSharedSecret("secret"))}
	client.RedirectURIs = []string{"https://app.example.com/cb"}
	return client
}

func TestClientConfigurationValid(t *testing.T) {
	v := NewClientConfigurationValidator(services.LogEventSink{})
	require.NoError(t, v.Validate(context.Background(), validConfiguredClient(t)))
}

func TestClientConfigurationRejectsEmptyGrantTypes(t *testing.T) {
	v := NewClientConfigurationValidator(services.LogEventSink{})
	client := validConfiguredClient(t)
	client.AllowedGrantTypes = nil
	require.Error(t, v.Validate(context.Background(), client))
}

func TestClientConfigurationRejectsZeroLifetime(t *testing.T) {
	v := NewClientConfigurationValidator(services.LogEventSink{})
	client := validConfiguredClient(t)
	client.AccessTokenLifetime = 0
	require.Error(t, v.Validate(context.Background(), client))
}

func TestClientConfigurationRequiresRedirectForCodeGrant(t *testing.T) {
	v := NewClientConfigurationValidator(services.LogEventSink{})
	client := validConfiguredClient(t)
	client.RedirectURIs = nil
	require.Error(t, v.Validate(context.Background(), client))
}

func TestClientConfigurationRejectsBadCORSOrigin(t *testing.T) {
	v := NewClientConfigurationValidator(services.LogEventSink{})
	client := validConfiguredClient(t)
	client.AllowedCORSOrigins = []string{"https://app.example.com/path"}
	require.Error(t, v.Validate(context.Background(), client))

	client.AllowedCORSOrigins = []string{"https://app.example.com"}
	require.NoError(t, v.Validate(context.Background(), client))
}

func TestClientConfigurationRejectsBlockedScheme(t *testing.T) {
	v := NewClientConfigurationValidator(services.LogEventSink{})
	client := validConfiguredClient(t)
	client.RedirectURIs = []string{"javascript:alert(1)"}
	require.Error(t, v.Validate(context.Background(), client))
}

func TestClientConfigurationRequiresSecret(t *testing.T) {
	v := NewClientConfigurationValidator(services.LogEventSink{})
	client := validConfiguredClient(t)
	client.ClientSecrets = nil
	require.Error(t, v.Validate(context.Background(), client))

	client.RequireClientSecret = false
	require.NoError(t, v.Validate(context.Background(), client))
}

func TestClientConfigurationSkipsNonOidcClients(t *testing.T) {
	v := NewClientConfigurationValidator(services.LogEventSink{})
	client := validConfiguredClient(t)
	client.ProtocolType = "saml2p"
	client.AllowedGrantTypes = nil
	require.NoError(t, v.Validate(context.Background(), client))
}
