package validation

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
)

// defaultBlockedURISchemes are scheme prefixes never accepted in redirect or
// post-logout URIs.
var defaultBlockedURISchemes = []string{"javascript:", "data:", "vbscript:"}

// ClientConfigurationValidator checks a client's static configuration for
// internal consistency. It runs whenever the client store returns a client
// and raises an event on failure.
type ClientConfigurationValidator struct {
	events services.EventSink
	// BlockedURISchemes scheme prefixes rejected in client URIs.
	BlockedURISchemes []string
}

// NewClientConfigurationValidator create a client configuration validator
func NewClientConfigurationValidator(events services.EventSink) *ClientConfigurationValidator {
	return &ClientConfigurationValidator{events: events, BlockedURISchemes: defaultBlockedURISchemes}
}

// Validate runs the sequential checks, stopping at the first failure. Only
// OpenID Connect protocol clients are validated.
func (v *ClientConfigurationValidator) Validate(ctx context.Context, client *models.Client) error {
	if client.ProtocolType != oidc.ProtocolTypeOIDC {
		return nil
	}

	checks := []func(*models.Client) error{
		v.validateGrantTypes,
		v.validateLifetimes,
		v.validateRedirectURIs,
		v.validateCORSOrigins,
		v.validateURISchemes,
		v.validateSecrets,
	}
	for _, check := range checks {
		if err := check(client); err != nil {
			services.Raise(ctx, v.events, &services.Event{
				Name:     services.EventInvalidClientConfiguration,
				ClientID: client.ClientID,
				Message:  err.Error(),
			})
			return err
		}
	}
	return nil
}

func (v *ClientConfigurationValidator) validateGrantTypes(client *models.Client) error {
	if len(client.AllowedGrantTypes) == 0 {
		return fmt.Errorf("client %s: no allowed grant types", client.ClientID)
	}
	return models.ValidateGrantTypes(client.AllowedGrantTypes)
}

func (v *ClientConfigurationValidator) validateLifetimes(client *models.Client) error {
	if client.AccessTokenLifetime <= 0 {
		return fmt.Errorf("client %s: access token lifetime must be greater than zero", client.ClientID)
	}
	if client.IdentityTokenLifetime <= 0 {
		return fmt.Errorf("client %s: identity token lifetime must be greater than zero", client.ClientID)
	}
	if client.AuthorizationCodeLifetime <= 0 {
		return fmt.Errorf("client %s: authorization code lifetime must be greater than zero", client.ClientID)
	}
	if client.AllowsGrantType(oidc.DeviceFlow) && client.DeviceCodeLifetime <= 0 {
		return fmt.Errorf("client %s: device code lifetime must be greater than zero", client.ClientID)
	}
	if client.AbsoluteRefreshTokenLifetime < 0 || client.SlidingRefreshTokenLifetime < 0 {
		return fmt.Errorf("client %s: refresh token lifetimes must not be negative", client.ClientID)
	}
	return nil
}

func (v *ClientConfigurationValidator) validateRedirectURIs(client *models.Client) error {
	needsRedirect := client.AllowsGrantType(oidc.AuthorizationCode) ||
		client.AllowsGrantType(oidc.Hybrid) ||
		client.AllowsGrantType(oidc.Implicit)
	if needsRedirect && len(client.RedirectURIs) == 0 {
		return fmt.Errorf("client %s: redirect URI required for the configured grant types", client.ClientID)
	}
	return nil
}

func (v *ClientConfigurationValidator) validateCORSOrigins(client *models.Client) error {
	for _, origin := range client.AllowedCORSOrigins {
		u, err := url.Parse(origin)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("client %s: invalid CORS origin %q", client.ClientID, origin)
		}
		if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
			return fmt.Errorf("client %s: CORS origin %q must not carry a path, query or fragment", client.ClientID, origin)
		}
	}
	return nil
}

func (v *ClientConfigurationValidator) validateURISchemes(client *models.Client) error {
	for _, uri := range append(append([]string{}, client.RedirectURIs...), client.PostLogoutRedirectURIs...) {
		lower := strings.ToLower(strings.TrimSpace(uri))
		for _, blocked := range v.BlockedURISchemes {
			if strings.HasPrefix(lower, blocked) {
				return fmt.Errorf("client %s: URI %q uses a blocked scheme", client.ClientID, uri)
			}
		}
	}
	return nil
}

func (v *ClientConfigurationValidator) validateSecrets(client *models.Client) error {
	if !client.RequireClientSecret || len(client.ClientSecrets) > 0 {
		return nil
	}
	for _, gt := range client.AllowedGrantTypes {
		if gt != oidc.Implicit {
			return fmt.Errorf("client %s: a client secret is required for grant type %s", client.ClientID, gt)
		}
	}
	return nil
}
