package models

import (
	"time"

	oidc "github.com/legit-games/oidc-core"
)

// Token an assembled identity or access token, prior to serialization
type Token struct {
	Type oidc.TokenType `json:"type"`

	Issuer    string   `json:"issuer"`
	Audiences []string `json:"audiences,omitempty"`
	ClientID  string   `json:"client_id"`

	CreationTime time.Time     `json:"creation_time"`
	Lifetime     time.Duration `json:"lifetime"`

	Claims []Claim `json:"claims"`

	AccessTokenType oidc.AccessTokenType `json:"access_token_type"`
	// Confirmation the cnf claim value (proof-of-possession), raw JSON.
	Confirmation string `json:"confirmation,omitempty"`
	// AllowedSigningAlgorithms restriction collected from target resources.
	AllowedSigningAlgorithms []string `json:"allowed_signing_algorithms,omitempty"`
}

// SubjectID the sub claim value, or "" for client-only tokens.
func (t *Token) SubjectID() string {
	return t.ClaimValue(oidc.ClaimSubject)
}

// SessionID the sid claim value.
func (t *Token) SessionID() string {
	return t.ClaimValue(oidc.ClaimSessionID)
}

// Scopes all scope claim values.
func (t *Token) Scopes() []string {
	var out []string
	for _, c := range t.Claims {
		if c.Type == oidc.ClaimScope {
			out = append(out, c.Value)
		}
	}
	return out
}

// ClaimValue the first claim value of the given type, or "".
func (t *Token) ClaimValue(claimType string) string {
	for _, c := range t.Claims {
		if c.Type == claimType {
			return c.Value
		}
	}
	return ""
}

// Expiration absolute expiry of the token.
func (t *Token) Expiration() time.Time {
	return t.CreationTime.Add(t.Lifetime)
}
