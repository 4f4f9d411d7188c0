// Package oidc defines the protocol vocabulary and server options shared by
// the validation, token and store packages.
package oidc

// GrantType authorization grant type
type GrantType string

// define authorization grant types
const (
	Implicit          GrantType = "implicit"
	Hybrid            GrantType = "hybrid"
	AuthorizationCode GrantType = "authorization_code"
	ClientCredentials GrantType = "client_credentials"
	Password          GrantType = "password"
	RefreshToken      GrantType = "refresh_token"
	DeviceFlow        GrantType = "urn:ietf:params:oauth:grant-type:device_code"
	Ciba              GrantType = "urn:openid:params:grant-type:ciba"
)

func (gt GrantType) String() string { return string(gt) }

// ResponseType authorization response type
type ResponseType string

// define the type of authorization response
const (
	ResponseTypeCode            ResponseType = "code"
	ResponseTypeToken           ResponseType = "token"
	ResponseTypeIDToken         ResponseType = "id_token"
	ResponseTypeIDTokenToken    ResponseType = "id_token token"
	ResponseTypeCodeIDToken     ResponseType = "code id_token"
	ResponseTypeCodeToken       ResponseType = "code token"
	ResponseTypeCodeIDTokenToken ResponseType = "code id_token token"
)

func (rt ResponseType) String() string { return string(rt) }

// ResponseMode how the authorize response is returned to the client
type ResponseMode string

// define the authorization response modes
const (
	ResponseModeQuery    ResponseMode = "query"
	ResponseModeFragment ResponseMode = "fragment"
	ResponseModeFormPost ResponseMode = "form_post"
)

func (rm ResponseMode) String() string { return string(rm) }

// CodeChallengeMethod PKCE challenge method
type CodeChallengeMethod string

// define PKCE code challenge methods
const (
	CodeChallengePlain CodeChallengeMethod = "plain"
	CodeChallengeS256  CodeChallengeMethod = "S256"
)

func (ccm CodeChallengeMethod) String() string { return string(ccm) }

// TokenType the kind of token being produced
type TokenType string

// token types
const (
	TokenTypeIdentity TokenType = "id_token"
	TokenTypeAccess   TokenType = "access_token"
)

// AccessTokenType how an access token is materialized on the wire
type AccessTokenType int

// access token styles
const (
	AccessTokenJwt AccessTokenType = iota
	AccessTokenReference
)

// TokenUsage refresh token usage policy
type TokenUsage int

// refresh token usage policies
const (
	TokenUsageReUse TokenUsage = iota
	TokenUsageOneTimeOnly
)

// TokenExpiration refresh token expiration policy
type TokenExpiration int

// refresh token expiration policies
const (
	TokenExpirationSliding TokenExpiration = iota
	TokenExpirationAbsolute
)

// ProtocolTypeOIDC is the only protocol the engine validates.
const ProtocolTypeOIDC = "oidc"

// standard scopes
const (
	ScopeOpenID        = "openid"
	ScopeOfflineAccess = "offline_access"
)

// standard claim type names used across claims assembly and validation
const (
	ClaimSubject          = "sub"
	ClaimAuthenticationTime = "auth_time"
	ClaimIdentityProvider = "idp"
	ClaimAuthenticationMethod = "amr"
	ClaimNonce            = "nonce"
	ClaimSessionID        = "sid"
	ClaimJwtID            = "jti"
	ClaimClientID         = "client_id"
	ClaimScope            = "scope"
	ClaimAudience         = "aud"
	ClaimIssuer           = "iss"
	ClaimExpiration       = "exp"
	ClaimIssuedAt         = "iat"
	ClaimNotBefore        = "nbf"
	ClaimAccessTokenHash  = "at_hash"
	ClaimAuthorizationCodeHash = "c_hash"
	ClaimStateHash        = "s_hash"
	ClaimConfirmation     = "cnf"
	ClaimName             = "name"
	ClaimEmail            = "email"
	ClaimEvents           = "events"
)

// secret types as stored on a client or api resource
const (
	SecretTypeSharedSecret       = "SharedSecret"
	SecretTypeJSONWebKey         = "JWK"
	SecretTypeX509CertificateB64 = "X509CertificateBase64"
)

// parsed secret credential types
const (
	ParsedSecretSharedSecret = "SharedSecret"
	ParsedSecretNoSecret     = "NoSecret"
	ParsedSecretJwtBearer    = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
)

// prompt modes understood by the authorize endpoint
const (
	PromptNone          = "none"
	PromptLogin         = "login"
	PromptConsent       = "consent"
	PromptSelectAccount = "select_account"
)

// SupportedPromptModes lists all prompt values the engine accepts.
var SupportedPromptModes = []string{PromptNone, PromptLogin, PromptConsent, PromptSelectAccount}

// SupportedDisplayModes lists all display values the engine accepts.
var SupportedDisplayModes = []string{"page", "popup", "touch", "wap"}

// authorize/token request parameter names
const (
	ParamClientID            = "client_id"
	ParamClientSecret        = "client_secret"
	ParamResponseType        = "response_type"
	ParamResponseMode        = "response_mode"
	ParamRedirectURI         = "redirect_uri"
	ParamScope               = "scope"
	ParamState               = "state"
	ParamNonce               = "nonce"
	ParamPrompt              = "prompt"
	ParamSuppressedPrompt    = "suppressed_prompt"
	ParamDisplay             = "display"
	ParamMaxAge              = "max_age"
	ParamUILocales           = "ui_locales"
	ParamIDTokenHint         = "id_token_hint"
	ParamLoginHint           = "login_hint"
	ParamAcrValues           = "acr_values"
	ParamCodeChallenge       = "code_challenge"
	ParamCodeChallengeMethod = "code_challenge_method"
	ParamCodeVerifier        = "code_verifier"
	ParamRequest             = "request"
	ParamRequestURI          = "request_uri"
	ParamResource            = "resource"
	ParamGrantType           = "grant_type"
	ParamCode                = "code"
	ParamUserName            = "username"
	ParamPassword            = "password"
	ParamRefreshToken        = "refresh_token"
	ParamDeviceCode          = "device_code"
	ParamAuthenticationReqID = "auth_req_id"
	ParamClientAssertion     = "client_assertion"
	ParamClientAssertionType = "client_assertion_type"
)

// AcrIdPPrefix marks an acr_values entry that selects an identity provider.
const AcrIdPPrefix = "idp:"

// JwtClaimTypesForFiltering are claims stripped from request objects before
// they are merged into the raw parameter set.
var JwtRequestClaimTypesFilter = []string{
	ClaimIssuer, ClaimExpiration, ClaimIssuedAt, ClaimNotBefore, ClaimAudience, ClaimJwtID,
}

// ScopeRequirement describes which scope families a response type demands.
type ScopeRequirement int

// scope requirements per response type
const (
	ScopeRequirementNone ScopeRequirement = iota
	ScopeRequirementIdentity
	ScopeRequirementIdentityOnly
	ScopeRequirementResourceOnly
)

// ResponseTypeToGrantType maps an authorize response_type to the grant type
// that governs it.
var ResponseTypeToGrantType = map[ResponseType]GrantType{
	ResponseTypeCode:           AuthorizationCode,
	ResponseTypeToken:          Implicit,
	ResponseTypeIDToken:        Implicit,
	ResponseTypeIDTokenToken:   Implicit,
	ResponseTypeCodeIDToken:    Hybrid,
	ResponseTypeCodeToken:      Hybrid,
	ResponseTypeCodeIDTokenToken: Hybrid,
}

// ResponseTypeToScopeRequirement maps a response_type to its scope rules.
var ResponseTypeToScopeRequirement = map[ResponseType]ScopeRequirement{
	ResponseTypeCode:           ScopeRequirementNone,
	ResponseTypeToken:          ScopeRequirementResourceOnly,
	ResponseTypeIDToken:        ScopeRequirementIdentityOnly,
	ResponseTypeIDTokenToken:   ScopeRequirementIdentity,
	ResponseTypeCodeIDToken:    ScopeRequirementIdentity,
	ResponseTypeCodeToken:      ScopeRequirementIdentity,
	ResponseTypeCodeIDTokenToken: ScopeRequirementIdentity,
}

// AllowedResponseModesForGrantType maps a grant type to the response modes
// the authorize endpoint may use for it.
var AllowedResponseModesForGrantType = map[GrantType][]ResponseMode{
	AuthorizationCode: {ResponseModeQuery, ResponseModeFragment, ResponseModeFormPost},
	Implicit:          {ResponseModeFragment, ResponseModeFormPost},
	Hybrid:            {ResponseModeFragment, ResponseModeFormPost},
}

// DefaultResponseModeForGrantType is used when the request carries none.
var DefaultResponseModeForGrantType = map[GrantType]ResponseMode{
	AuthorizationCode: ResponseModeQuery,
	Implicit:          ResponseModeFragment,
	Hybrid:            ResponseModeFragment,
}

// SupportedResponseTypes lists every response_type the authorize endpoint
// understands.
var SupportedResponseTypes = []ResponseType{
	ResponseTypeCode,
	ResponseTypeToken,
	ResponseTypeIDToken,
	ResponseTypeIDTokenToken,
	ResponseTypeCodeIDToken,
	ResponseTypeCodeToken,
	ResponseTypeCodeIDTokenToken,
}
