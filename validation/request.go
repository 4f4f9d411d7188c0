package validation

import (
	"context"
	"net/url"
	"time"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
)

// ValidatedAuthorizeRequest the accumulator built by the authorize request
// validator. Created per request and discarded once the result is returned.
type ValidatedAuthorizeRequest struct {
	Raw url.Values

	ClientID string
	Client   *models.Client
	Subject  *models.Subject

	RedirectURI  string
	ResponseType oidc.ResponseType
	GrantType    oidc.GrantType
	ResponseMode oidc.ResponseMode
	State        string
	Nonce        string

	CodeChallenge       string
	CodeChallengeMethod oidc.CodeChallengeMethod

	RequestedScopes             []string
	IsOpenIDRequest             bool
	RequestedResourceIndicators []string
	ValidatedResources          *ResourceValidationResult

	PromptModes           []string
	SuppressedPromptModes []string
	MaxAge                *time.Duration
	LoginHint             string
	UILocales             string
	DisplayMode           string
	IDTokenHint           string
	AcrValues             []string
	SessionID             string

	// RequestObject the raw JAR JWT when the request carried one.
	RequestObject string
	// RequestObjectValues the claims merged from the request object.
	RequestObjectValues map[string]string
}

// ValidatedTokenRequest the accumulator built by the token request validator.
type ValidatedTokenRequest struct {
	Raw url.Values

	Client    *models.Client
	GrantType string
	Subject   *models.Subject

	RequestedScopes    []string
	ResourceIndicator  string
	ValidatedResources *ResourceValidationResult

	AuthorizationCode       *models.AuthorizationCode
	AuthorizationCodeHandle string

	RefreshToken       *models.RefreshToken
	RefreshTokenHandle string

	DeviceCode       *models.DeviceCode
	DeviceCodeHandle string

	BackChannelRequest  *models.BackChannelAuthenticationRequest
	BackChannelRequestID string

	UserName string
	// ProofKeyUsed set when PKCE was verified for this request.
	ProofKeyUsed bool
}

// AuthorizeRequestValidationResult outcome of authorize request validation
type AuthorizeRequestValidationResult struct {
	Request          *ValidatedAuthorizeRequest
	Error            error
	ErrorDescription string
}

// IsError reports whether validation failed.
func (r *AuthorizeRequestValidationResult) IsError() bool { return r.Error != nil }

// TokenRequestValidationResult outcome of token request validation
type TokenRequestValidationResult struct {
	Request          *ValidatedTokenRequest
	Error            error
	ErrorDescription string
}

// IsError reports whether validation failed.
func (r *TokenRequestValidationResult) IsError() bool { return r.Error != nil }

// RedirectURIValidator decides whether a redirect uri is acceptable for the
// client. Deployments may relax the strict default (e.g. for loopback ports).
type RedirectURIValidator interface {
	IsRedirectURIValid(ctx context.Context, requested string, client *models.Client) (bool, error)
	IsPostLogoutRedirectURIValid(ctx context.Context, requested string, client *models.Client) (bool, error)
}

// StrictRedirectURIValidator accepts only exact matches against the client's
// registered URIs.
type StrictRedirectURIValidator struct{}

// IsRedirectURIValid exact-matches against RedirectURIs.
func (StrictRedirectURIValidator) IsRedirectURIValid(ctx context.Context, requested string, client *models.Client) (bool, error) {
	return containsString(client.RedirectURIs, requested), nil
}

// IsPostLogoutRedirectURIValid exact-matches against PostLogoutRedirectURIs.
func (StrictRedirectURIValidator) IsPostLogoutRedirectURIValid(ctx context.Context, requested string, client *models.Client) (bool, error) {
	return containsString(client.PostLogoutRedirectURIs, requested), nil
}

// RefreshTokenService validates refresh token handles on the token endpoint.
// The token service package provides the default implementation.
type RefreshTokenService interface {
	// ValidateRefreshToken returns the stored token when the handle is valid
	// for the client. Protocol failures return ErrInvalidGrant.
	ValidateRefreshToken(ctx context.Context, handle string, client *models.Client) (*models.RefreshToken, error)
}

// ResourceOwnerPasswordValidator checks resource owner credentials for the
// password grant. A nil subject with nil error means invalid credentials.
type ResourceOwnerPasswordValidator interface {
	ValidateCredentials(ctx context.Context, username, password string, request *ValidatedTokenRequest) (*models.Subject, error)
}

// ExtensionGrantValidator handles a custom grant type.
type ExtensionGrantValidator interface {
	// GrantType the grant_type value this validator serves.
	GrantType() string
	// Validate performs the grant-specific checks, returning the subject the
	// token will be issued for (nil for client-only grants).
	Validate(ctx context.Context, request *ValidatedTokenRequest) (*models.Subject, error)
}

// CustomAuthorizeRequestValidator runs after all built-in authorize stages
// and can veto an otherwise successful validation by returning a protocol
// error sentinel.
type CustomAuthorizeRequestValidator interface {
	ValidateAuthorizeRequest(ctx context.Context, request *ValidatedAuthorizeRequest) error
}

// CustomTokenRequestValidator runs after all built-in token stages and can
// veto an otherwise successful validation by returning a protocol error
// sentinel.
type CustomTokenRequestValidator interface {
	ValidateTokenRequest(ctx context.Context, request *ValidatedTokenRequest) error
}
