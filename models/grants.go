package models

import (
	"time"

	oidc "github.com/legit-games/oidc-core"
)

// Subject the authenticated user carried inside persisted grants
type Subject struct {
	SubjectID             string    `json:"sub"`
	SessionID             string    `json:"sid,omitempty"`
	AuthenticationTime    time.Time `json:"auth_time"`
	IdentityProvider      string    `json:"idp,omitempty"`
	AuthenticationMethods []string  `json:"amr,omitempty"`
	Claims                []Claim   `json:"claims,omitempty"`
}

// AuthorizationCode the payload stored for an issued authorization code
type AuthorizationCode struct {
	CreationTime time.Time     `json:"creation_time"`
	Lifetime     time.Duration `json:"lifetime"`

	ClientID string   `json:"client_id"`
	Subject  *Subject `json:"subject"`

	IsOpenID        bool     `json:"is_openid"`
	RequestedScopes []string `json:"requested_scopes"`
	// RequestedResourceIndicators recorded at issuance; token requests must
	// stay within this set.
	RequestedResourceIndicators []string `json:"requested_resource_indicators,omitempty"`

	RedirectURI string `json:"redirect_uri"`
	Nonce       string `json:"nonce,omitempty"`
	StateHash   string `json:"state_hash,omitempty"`

	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`

	Description    string `json:"description,omitempty"`
	WasConsentUsed bool   `json:"was_consent_used,omitempty"`
}

// Expiration absolute expiry of the code
func (c *AuthorizationCode) Expiration() time.Time {
	return c.CreationTime.Add(c.Lifetime)
}

// RefreshToken the payload stored for an issued refresh token
type RefreshToken struct {
	CreationTime time.Time     `json:"creation_time"`
	Lifetime     time.Duration `json:"lifetime"`
	// ConsumedTime set on first use under OneTimeOnly rotation.
	ConsumedTime *time.Time `json:"consumed_time,omitempty"`

	// AccessToken the access token issued alongside; carries client, subject
	// and scope information for re-issuance.
	AccessToken *Token `json:"access_token"`

	Subject *Subject `json:"subject,omitempty"`
	// AuthorizedResourceIndicators recorded from the original authorization.
	AuthorizedResourceIndicators []string `json:"authorized_resource_indicators,omitempty"`

	Version int `json:"version"`
}

// ClientID convenience accessor from the embedded access token
func (r *RefreshToken) ClientID() string {
	if r.AccessToken == nil {
		return ""
	}
	return r.AccessToken.ClientID
}

// SubjectID the subject bound to the refresh token
func (r *RefreshToken) SubjectID() string {
	if r.Subject == nil {
		return ""
	}
	return r.Subject.SubjectID
}

// Scopes the scope claims of the embedded access token
func (r *RefreshToken) Scopes() []string {
	if r.AccessToken == nil {
		return nil
	}
	var out []string
	for _, c := range r.AccessToken.Claims {
		if c.Type == oidc.ClaimScope {
			out = append(out, c.Value)
		}
	}
	return out
}

// Expiration absolute expiry of the refresh token
func (r *RefreshToken) Expiration() time.Time {
	return r.CreationTime.Add(r.Lifetime)
}

// DeviceCode the payload stored for a device authorization
type DeviceCode struct {
	CreationTime time.Time     `json:"creation_time"`
	Lifetime     time.Duration `json:"lifetime"`

	ClientID    string `json:"client_id"`
	Description string `json:"description,omitempty"`

	// UserCode the short code the user types on the verification page.
	UserCode string `json:"user_code"`

	IsOpenID        bool     `json:"is_openid"`
	RequestedScopes []string `json:"requested_scopes"`

	// IsAuthorized set once the user completed the interaction.
	IsAuthorized     bool     `json:"is_authorized"`
	AuthorizedScopes []string `json:"authorized_scopes,omitempty"`
	Subject          *Subject `json:"subject,omitempty"`
	SessionID        string   `json:"session_id,omitempty"`
}

// Expiration absolute expiry of the device code
func (d *DeviceCode) Expiration() time.Time {
	return d.CreationTime.Add(d.Lifetime)
}

// BackChannelAuthenticationRequest the payload stored for a CIBA request
type BackChannelAuthenticationRequest struct {
	CreationTime time.Time     `json:"creation_time"`
	Lifetime     time.Duration `json:"lifetime"`

	ClientID  string `json:"client_id"`
	SubjectID string `json:"subject_id"`
	SessionID string `json:"session_id,omitempty"`

	RequestedScopes             []string `json:"requested_scopes"`
	RequestedResourceIndicators []string `json:"requested_resource_indicators,omitempty"`
	AuthorizedScopes            []string `json:"authorized_scopes,omitempty"`

	BindingMessage string `json:"binding_message,omitempty"`
	Description    string `json:"description,omitempty"`

	// IsComplete set once the user answered the authentication request.
	IsComplete bool `json:"is_complete"`
	// IsAuthorized set when the answer was an approval.
	IsAuthorized bool     `json:"is_authorized"`
	Subject      *Subject `json:"subject,omitempty"`
}

// Expiration absolute expiry of the backchannel request
func (b *BackChannelAuthenticationRequest) Expiration() time.Time {
	return b.CreationTime.Add(b.Lifetime)
}

// Consent a remembered user consent decision
type Consent struct {
	SubjectID    string    `json:"subject_id"`
	ClientID     string    `json:"client_id"`
	Scopes       []string  `json:"scopes"`
	CreationTime time.Time `json:"creation_time"`
	// Expiration nil means the consent does not expire.
	Expiration *time.Time `json:"expiration,omitempty"`
}

// IsExpired reports whether the consent has lapsed.
func (c *Consent) IsExpired(now time.Time) bool {
	return c.Expiration != nil && c.Expiration.Before(now)
}

// PersistedGrant the serialized storage row shared by all grant types
type PersistedGrant struct {
	Key          string     `json:"key"`
	Type         string     `json:"type"`
	SubjectID    string     `json:"subject_id,omitempty"`
	SessionID    string     `json:"session_id,omitempty"`
	ClientID     string     `json:"client_id"`
	Description  string     `json:"description,omitempty"`
	CreationTime time.Time  `json:"creation_time"`
	Expiration   *time.Time `json:"expiration,omitempty"`
	ConsumedTime *time.Time `json:"consumed_time,omitempty"`
	Data         string     `json:"data"`
}

// PersistedGrantFilter narrows queries against the grant store. Zero-valued
// fields are ignored; at least one must be set.
type PersistedGrantFilter struct {
	SubjectID string
	SessionID string
	ClientID  string
	Type      string
}

// Validate rejects an all-empty filter to avoid unbounded scans.
func (f PersistedGrantFilter) Validate() error {
	if f.SubjectID == "" && f.SessionID == "" && f.ClientID == "" && f.Type == "" {
		return errEmptyFilter
	}
	return nil
}

var errEmptyFilter = &filterError{"no filter values set"}

type filterError struct{ msg string }

func (e *filterError) Error() string { return e.msg }
