package oidc

import "time"

// Options configuration parameters for the protocol engine
type Options struct {
	// IssuerURI is the value used for iss claims and assertion audiences.
	IssuerURI string `koanf:"issuer_uri"`
	// AccessTokenJwtType is the JWT typ header for access tokens.
	AccessTokenJwtType string `koanf:"access_token_jwt_type"`
	// EmitStaticAudienceClaim adds issuer+"/resources" to access token audiences.
	EmitStaticAudienceClaim bool `koanf:"emit_static_audience_claim"`
	// EmitScopesAsSpaceDelimitedString collapses scope claims per RFC 9068.
	EmitScopesAsSpaceDelimitedString bool `koanf:"emit_scopes_as_string"`
	// JwtValidationClockSkew tolerated when validating assertions and request objects.
	JwtValidationClockSkew time.Duration `koanf:"jwt_validation_clock_skew"`

	InputLengthRestrictions InputLengthRestrictions `koanf:"input_length_restrictions"`
	Endpoints               EndpointOptions         `koanf:"endpoints"`
	DeviceFlow              DeviceFlowOptions       `koanf:"device_flow"`
	Ciba                    CibaOptions             `koanf:"ciba"`

	// SupportedExtensionGrantTypes lists grant_type values served by
	// registered extension grant validators.
	SupportedExtensionGrantTypes []string `koanf:"supported_extension_grant_types"`
}

// InputLengthRestrictions upper bounds for untrusted request input
type InputLengthRestrictions struct {
	ClientID            int `koanf:"client_id"`
	ClientSecret        int `koanf:"client_secret"`
	Scope               int `koanf:"scope"`
	RedirectURI         int `koanf:"redirect_uri"`
	Nonce               int `koanf:"nonce"`
	UILocale            int `koanf:"ui_locale"`
	LoginHint           int `koanf:"login_hint"`
	AcrValues           int `koanf:"acr_values"`
	GrantType           int `koanf:"grant_type"`
	UserName            int `koanf:"user_name"`
	Password            int `koanf:"password"`
	AuthorizationCode   int `koanf:"authorization_code"`
	DeviceCode          int `koanf:"device_code"`
	RefreshToken        int `koanf:"refresh_token"`
	TokenHandle         int `koanf:"token_handle"`
	Jwt                 int `koanf:"jwt"`
	CodeChallengeMin    int `koanf:"code_challenge_min"`
	CodeChallengeMax    int `koanf:"code_challenge_max"`
	CodeVerifierMin     int `koanf:"code_verifier_min"`
	CodeVerifierMax     int `koanf:"code_verifier_max"`
	ResourceIndicator   int `koanf:"resource_indicator"`
	BindingMessage      int `koanf:"binding_message"`
	IdentityProvider    int `koanf:"identity_provider"`
	AuthenticationReqID int `koanf:"authentication_request_id"`
	RequestURI          int `koanf:"request_uri"`
}

// EndpointOptions feature toggles for optional endpoint behavior
type EndpointOptions struct {
	// EnableJwtRequestURI allows request_uri on the authorize endpoint.
	EnableJwtRequestURI bool `koanf:"enable_jwt_request_uri"`
	// EnableCheckSession populates session ids on validated authorize requests.
	EnableCheckSession bool `koanf:"enable_check_session"`
}

// DeviceFlowOptions device authorization grant settings
type DeviceFlowOptions struct {
	// Interval minimum seconds between polling attempts.
	Interval time.Duration `koanf:"interval"`
	// UserCodeLength length of generated user codes.
	UserCodeLength int `koanf:"user_code_length"`
}

// CibaOptions backchannel authentication settings
type CibaOptions struct {
	// DefaultLifetime of a backchannel authentication request.
	DefaultLifetime time.Duration `koanf:"default_lifetime"`
	// PollingInterval minimum time between token endpoint polls.
	PollingInterval time.Duration `koanf:"polling_interval"`
}

// NewOptions create options with defaults
func NewOptions() *Options {
	return &Options{
		IssuerURI:              "http://localhost",
		AccessTokenJwtType:     "at+jwt",
		JwtValidationClockSkew: 5 * time.Minute,
		InputLengthRestrictions: InputLengthRestrictions{
			ClientID:            100,
			ClientSecret:        100,
			Scope:               300,
			RedirectURI:         400,
			Nonce:               300,
			UILocale:            100,
			LoginHint:           100,
			AcrValues:           300,
			GrantType:           100,
			UserName:            100,
			Password:            100,
			AuthorizationCode:   100,
			DeviceCode:          100,
			RefreshToken:        100,
			TokenHandle:         100,
			Jwt:                 51200,
			CodeChallengeMin:    43,
			CodeChallengeMax:    128,
			CodeVerifierMin:     43,
			CodeVerifierMax:     128,
			ResourceIndicator:   512,
			BindingMessage:      100,
			IdentityProvider:    100,
			AuthenticationReqID: 100,
			RequestURI:          512,
		},
		Endpoints: EndpointOptions{
			EnableJwtRequestURI: false,
			EnableCheckSession:  true,
		},
		DeviceFlow: DeviceFlowOptions{
			Interval:       5 * time.Second,
			UserCodeLength: 8,
		},
		Ciba: CibaOptions{
			DefaultLifetime: 5 * time.Minute,
			PollingInterval: 5 * time.Second,
		},
	}
}
