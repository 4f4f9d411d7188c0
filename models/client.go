package models

import (
	"fmt"
	"strings"
	"time"

	oidc "github.com/legit-games/oidc-core"
)

// Client client model
type Client struct {
	ClientID     string
	ProtocolType string
	Enabled      bool

	RequireClientSecret bool
	ClientSecrets       []Secret

	AllowedGrantTypes GrantTypes

	RequirePkce        bool
	AllowPlainTextPkce bool

	RequireRequestObject        bool
	AllowAccessTokensViaBrowser bool

	RedirectURIs           []string
	PostLogoutRedirectURIs []string
	AllowedCORSOrigins     []string

	AllowedScopes      []string
	AllowOfflineAccess bool

	IdentityTokenLifetime        time.Duration
	AccessTokenLifetime          time.Duration
	AuthorizationCodeLifetime    time.Duration
	AbsoluteRefreshTokenLifetime time.Duration
	SlidingRefreshTokenLifetime  time.Duration
	DeviceCodeLifetime           time.Duration

	// CibaLifetime and PollingInterval override the server defaults when set.
	CibaLifetime    time.Duration
	PollingInterval time.Duration

	RefreshTokenUsage                oidc.TokenUsage
	RefreshTokenExpiration           oidc.TokenExpiration
	UpdateAccessTokenClaimsOnRefresh bool

	AccessTokenType oidc.AccessTokenType

	AlwaysIncludeUserClaimsInIdToken bool
	AlwaysSendClientClaims           bool
	ClientClaimsPrefix               string
	Claims                           []Claim

	IdentityProviderRestrictions []string

	RequireConsent bool
	AllowRememberConsent bool
	ConsentLifetime      time.Duration

	Properties map[string]string
}

// NewClient create a client with sensible defaults
func NewClient(id string) *Client {
	return &Client{
		ClientID:                     id,
		ProtocolType:                 oidc.ProtocolTypeOIDC,
		Enabled:                      true,
		RequireClientSecret:          true,
		RequirePkce:                  true,
		AllowRememberConsent:         true,
		ClientClaimsPrefix:           "client_",
		IdentityTokenLifetime:        5 * time.Minute,
		AccessTokenLifetime:          time.Hour,
		AuthorizationCodeLifetime:    5 * time.Minute,
		AbsoluteRefreshTokenLifetime: 30 * 24 * time.Hour,
		SlidingRefreshTokenLifetime:  15 * 24 * time.Hour,
		DeviceCodeLifetime:           5 * time.Minute,
	}
}

// GetID client id
func (c *Client) GetID() string { return c.ClientID }

// IsImplicitOnly reports whether the client is configured for the implicit
// grant exclusively; such clients never authenticate with a secret.
func (c *Client) IsImplicitOnly() bool {
	return len(c.AllowedGrantTypes) == 1 && c.AllowedGrantTypes[0] == oidc.Implicit
}

// AllowsGrantType reports whether gt is in the allowed set.
func (c *Client) AllowsGrantType(gt oidc.GrantType) bool {
	for _, g := range c.AllowedGrantTypes {
		if g == gt {
			return true
		}
	}
	return false
}

// AllowsScope reports whether the scope name is in the allowed set.
func (c *Client) AllowsScope(scope string) bool {
	for _, s := range c.AllowedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// GrantTypes a validated set of grant types
type GrantTypes []oidc.GrantType

// pairs that cannot be combined on a single client
var disallowedGrantTypeCombinations = [][2]oidc.GrantType{
	{oidc.Implicit, oidc.AuthorizationCode},
	{oidc.Implicit, oidc.Hybrid},
	{oidc.AuthorizationCode, oidc.Hybrid},
}

// ValidateGrantTypes rejects grant type lists containing values with spaces,
// duplicates, or disallowed combinations. An empty list is accepted here;
// the client configuration validator reports it per request context.
func ValidateGrantTypes(grantTypes []oidc.GrantType) error {
	for _, gt := range grantTypes {
		if strings.Contains(gt.String(), " ") {
			return fmt.Errorf("grant types cannot contain spaces: %q", gt)
		}
	}

	seen := make(map[oidc.GrantType]bool, len(grantTypes))
	for _, gt := range grantTypes {
		if seen[gt] {
			return fmt.Errorf("grant types list contains duplicate value: %q", gt)
		}
		seen[gt] = true
	}

	for _, pair := range disallowedGrantTypeCombinations {
		if seen[pair[0]] && seen[pair[1]] {
			return fmt.Errorf("grant types cannot both be present: %s and %s", pair[0], pair[1])
		}
	}
	return nil
}

// SetAllowedGrantTypes validates and assigns the grant type set.
func (c *Client) SetAllowedGrantTypes(grantTypes ...oidc.GrantType) error {
	if err := ValidateGrantTypes(grantTypes); err != nil {
		return err
	}
	c.AllowedGrantTypes = grantTypes
	return nil
}

// MustGrantTypes validates and returns the set, panicking on invalid input.
// Intended for static configuration where invalid sets are programmer error.
func MustGrantTypes(grantTypes ...oidc.GrantType) GrantTypes {
	if err := ValidateGrantTypes(grantTypes); err != nil {
		panic(err)
	}
	return grantTypes
}
