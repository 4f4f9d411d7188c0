// Package server exposes the protocol engine over HTTP: authorize, token,
// device authorization, introspection, revocation, discovery and JWKS
// endpoints on a gin router.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
	"github.com/legit-games/oidc-core/store"
	"github.com/legit-games/oidc-core/tokens"
	"github.com/legit-games/oidc-core/validation"
)

// KeyStore combines signing and validation key access; the in-memory key
// store satisfies both.
type KeyStore interface {
	services.SigningCredentialStore
	services.ValidationKeysStore
}

// Backend collects the pluggable pieces a deployment provides. Zero-valued
// optional fields fall back to in-memory or no-op defaults.
type Backend struct {
	Clients   store.ClientStore
	Resources store.ResourceStore
	// Grants backs every grant store (codes, refresh, reference, device,
	// backchannel, consent).
	Grants store.PersistedGrantStore
	// Cache backs throttling and replay detection.
	Cache store.Cache
	Keys  KeyStore

	Profile services.ProfileService
	Events  services.EventSink

	// Password enables the resource owner password grant when set.
	Password validation.ResourceOwnerPasswordValidator
}

// Server wires validators, services and stores into HTTP handlers.
type Server struct {
	Options *oidc.Options
	Config  *Config

	Clients   store.ClientStore
	Resources store.ResourceStore

	Codes       *store.AuthorizationCodeStore
	Devices     *store.DeviceFlowStore
	References  *store.ReferenceTokenStore
	Backchannel *store.BackChannelAuthenticationRequestStore
	Consents    *store.UserConsentStore

	ClientValidator    *validation.ClientSecretValidator
	AuthorizeValidator *validation.AuthorizeRequestValidator
	TokenValidator     *validation.TokenRequestValidator
	ResourceValidator  validation.ResourceValidator

	Tokens        *tokens.DefaultTokenService
	RefreshTokens *tokens.DefaultRefreshTokenService
	ConsentSvc    *services.ConsentService
	Keys          KeyStore
	Events        services.EventSink

	// UserAuthorizationHandler resolves the authenticated subject for the
	// authorize endpoint. Nil or a nil subject means not logged in.
	UserAuthorizationHandler func(c *gin.Context) (*models.Subject, error)
	// ConsentHandler decides a required consent interaction. Nil grants and
	// remembers consent, which suits API-driven deployments where the host
	// application gates the authorize endpoint itself.
	ConsentHandler func(c *gin.Context, req *validation.ValidatedAuthorizeRequest) (bool, error)
}

// NewServer assembles a server from the backend. Optional backend fields are
// defaulted: in-memory grants and cache, log event sink, default profile.
func NewServer(options *oidc.Options, config *Config, backend *Backend) *Server {
	if options == nil {
		options = oidc.NewOptions()
	}
	if config == nil {
		config = NewConfig()
	}
	grants := backend.Grants
	if grants == nil {
		grants = store.NewMemoryGrantStore()
	}
	cache := backend.Cache
	if cache == nil {
		cache = store.NewMemoryCache()
	}
	profile := backend.Profile
	if profile == nil {
		profile = services.DefaultProfileService{}
	}
	events := backend.Events
	if events == nil {
		events = services.LogEventSink{}
	}

	codes := store.NewAuthorizationCodeStore(grants)
	devices := store.NewDeviceFlowStore(grants)
	references := store.NewReferenceTokenStore(grants)
	refreshStore := store.NewRefreshTokenStore(grants)
	backchannel := store.NewBackChannelAuthenticationRequestStore(grants)
	consents := store.NewUserConsentStore(grants)

	throttle := services.NewPollingThrottleService(cache)
	replay := services.NewReplayCache(cache)

	resourceValidator := validation.NewResourceValidator(backend.Resources, nil)
	refreshTokens := tokens.NewRefreshTokenService(refreshStore, profile)

	claims := tokens.NewClaimsService(profile)
	creation := tokens.NewTokenCreationService(options, backend.Keys)
	tokenService := tokens.NewTokenService(options, claims, creation, references)

	tokenValidator := validation.NewTokenRequestValidator(
		options,
		codes,
		refreshTokens,
		validation.NewDeviceCodeValidator(options, devices, throttle, profile),
		validation.NewBackChannelAuthenticationRequestIdValidator(options, backchannel, throttle, profile),
		resourceValidator,
		profile,
		events,
	)
	tokenValidator.PasswordValidator = backend.Password

	httpClient := &http.Client{Timeout: 10 * time.Second}

	return &Server{
		Options:   options,
		Config:    config,
		Clients:   backend.Clients,
		Resources: backend.Resources,

		Codes:       codes,
		Devices:     devices,
		References:  references,
		Backchannel: backchannel,
		Consents:    consents,

		ClientValidator: validation.NewClientSecretValidator(
			backend.Clients,
			validation.NewSecretParsers(options),
			validation.NewSecretValidators(options, replay),
			events,
		),
		AuthorizeValidator: validation.NewAuthorizeRequestValidator(options, backend.Clients, resourceValidator, events, httpClient),
		TokenValidator:     tokenValidator,
		ResourceValidator:  resourceValidator,

		Tokens:        tokenService,
		RefreshTokens: refreshTokens,
		ConsentSvc:    services.NewConsentService(consents, events),
		Keys:          backend.Keys,
		Events:        events,
	}
}
