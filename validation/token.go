package validation

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	oidc "github.com/legit-games/oidc-core"
	errs "github.com/legit-games/oidc-core/errors"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
	"github.com/legit-games/oidc-core/store"
)

// TokenRequestValidator the token endpoint state machine. The client has
// already been authenticated by the ClientSecretValidator; validation here
// dispatches per grant type.
type TokenRequestValidator struct {
	options       *oidc.Options
	codes         *store.AuthorizationCodeStore
	refreshTokens RefreshTokenService
	devices       *DeviceCodeValidator
	backchannel   *BackChannelAuthenticationRequestIdValidator
	resources     ResourceValidator
	profile       services.ProfileService
	events        services.EventSink
	now           func() time.Time

	// PasswordValidator handles the resource owner password grant; leaving it
	// nil rejects the grant type.
	PasswordValidator ResourceOwnerPasswordValidator
	// Custom optional hook that can veto a successful validation.
	Custom CustomTokenRequestValidator

	extensionGrants map[string]ExtensionGrantValidator
}

// NewTokenRequestValidator create a token request validator
func NewTokenRequestValidator(
	options *oidc.Options,
	codes *store.AuthorizationCodeStore,
	refreshTokens RefreshTokenService,
	devices *DeviceCodeValidator,
	backchannel *BackChannelAuthenticationRequestIdValidator,
	resources ResourceValidator,
	profile services.ProfileService,
	events services.EventSink,
) *TokenRequestValidator {
	return &TokenRequestValidator{
		options:         options,
		codes:           codes,
		refreshTokens:   refreshTokens,
		devices:         devices,
		backchannel:     backchannel,
		resources:       resources,
		profile:         profile,
		events:          events,
		now:             time.Now,
		extensionGrants: make(map[string]ExtensionGrantValidator),
	}
}

// RegisterExtensionGrant registers a custom grant validator.
func (v *TokenRequestValidator) RegisterExtensionGrant(validator ExtensionGrantValidator) {
	v.extensionGrants[validator.GrantType()] = validator
}

func tokenError(req *ValidatedTokenRequest, protocolErr error, description string) *TokenRequestValidationResult {
	if description == "" {
		description = errs.Description(protocolErr)
	}
	return &TokenRequestValidationResult{Request: req, Error: protocolErr, ErrorDescription: description}
}

// protocolError reports whether err is a protocol error sentinel that should
// surface to the wire rather than an infrastructure failure.
func protocolError(err error) bool {
	for sentinel := range errs.Descriptions {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return errors.Is(err, errs.ErrConsentRequired) ||
		errors.Is(err, errs.ErrLoginRequired) ||
		errors.Is(err, errs.ErrInteractionRequired)
}

// Validate runs the token request state machine for the authenticated client.
func (v *TokenRequestValidator) Validate(ctx context.Context, parameters url.Values, client *models.Client) (*TokenRequestValidationResult, error) {
	req := &ValidatedTokenRequest{Raw: parameters, Client: client}

	if client.ProtocolType != oidc.ProtocolTypeOIDC {
		log.Printf("client %s uses unsupported protocol type %q", client.ClientID, client.ProtocolType)
		return tokenError(req, errs.ErrInvalidClient, "Invalid protocol"), nil
	}

	grantType := parameters.Get(oidc.ParamGrantType)
	if grantType == "" {
		return tokenError(req, errs.ErrInvalidRequest, "Missing grant_type"), nil
	}
	if len(grantType) > v.options.InputLengthRestrictions.GrantType {
		return tokenError(req, errs.ErrInvalidRequest, "Invalid grant_type"), nil
	}
	req.GrantType = grantType

	// the token endpoint, unlike authorize, accepts at most one indicator
	indicators := dedupeStrings(parameters[oidc.ParamResource])
	if len(indicators) > 1 {
		return tokenError(req, errs.ErrInvalidTarget, "Multiple resource indicators are not supported on the token endpoint"), nil
	}
	if len(indicators) == 1 {
		ind := indicators[0]
		if len(ind) > v.options.InputLengthRestrictions.ResourceIndicator {
			return tokenError(req, errs.ErrInvalidTarget, "Invalid resource indicator"), nil
		}
		u, err := url.Parse(ind)
		if err != nil || !u.IsAbs() || u.Fragment != "" {
			return tokenError(req, errs.ErrInvalidTarget, "Invalid resource indicator format"), nil
		}
		req.ResourceIndicator = ind
	}

	var result *TokenRequestValidationResult
	var err error
	switch oidc.GrantType(grantType) {
	case oidc.AuthorizationCode:
		result, err = v.validateAuthorizationCode(ctx, req)
	case oidc.ClientCredentials:
		result, err = v.validateClientCredentials(ctx, req)
	case oidc.Password:
		result, err = v.validatePassword(ctx, req)
	case oidc.RefreshToken:
		result, err = v.validateRefreshToken(ctx, req)
	case oidc.DeviceFlow:
		result, err = v.validateDeviceCode(ctx, req)
	case oidc.Ciba:
		result, err = v.validateCiba(ctx, req)
	default:
		result, err = v.validateExtensionGrant(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if result.IsError() {
		return result, nil
	}

	if v.Custom != nil {
		if err := v.Custom.ValidateTokenRequest(ctx, req); err != nil {
			log.Printf("custom token validator rejected request for client %s: %v", client.ClientID, err)
			return tokenError(req, err, ""), nil
		}
	}
	return result, nil
}

func (v *TokenRequestValidator) validateAuthorizationCode(ctx context.Context, req *ValidatedTokenRequest) (*TokenRequestValidationResult, error) {
	client := req.Client
	if !client.AllowsGrantType(oidc.AuthorizationCode) && !client.AllowsGrantType(oidc.Hybrid) {
		return tokenError(req, errs.ErrUnauthorizedClient, ""), nil
	}

	handle := req.Raw.Get(oidc.ParamCode)
	if handle == "" {
		return tokenError(req, errs.ErrInvalidRequest, "Missing code"), nil
	}
	if len(handle) > v.options.InputLengthRestrictions.AuthorizationCode {
		return tokenError(req, errs.ErrInvalidGrant, ""), nil
	}

	code, err := v.codes.GetAuthorizationCode(ctx, handle)
	if err != nil {
		return nil, err
	}
	if code == nil {
		log.Printf("authorization code not found for client %s", client.ClientID)
		return tokenError(req, errs.ErrInvalidGrant, ""), nil
	}
	// codes are single-use: remove before any further checks so a concurrent
	// double redemption loses the race deterministically
	if err := v.codes.RemoveAuthorizationCode(ctx, handle); err != nil {
		return nil, err
	}

	if code.ClientID != client.ClientID {
		log.Printf("authorization code issued to %s redeemed by %s", code.ClientID, client.ClientID)
		return tokenError(req, errs.ErrInvalidGrant, ""), nil
	}

	now := v.now()
	if now.After(code.Expiration()) || now.After(code.CreationTime.Add(client.AuthorizationCodeLifetime)) {
		log.Printf("authorization code expired for client %s", client.ClientID)
		return tokenError(req, errs.ErrInvalidGrant, ""), nil
	}

	if req.Raw.Get(oidc.ParamRedirectURI) != code.RedirectURI {
		log.Printf("redirect_uri mismatch on code redemption for client %s", client.ClientID)
		return tokenError(req, errs.ErrInvalidGrant, ""), nil
	}

	if len(code.RequestedScopes) == 0 {
		log.Printf("authorization code carries no scopes for client %s", client.ClientID)
		return tokenError(req, errs.ErrInvalidGrant, ""), nil
	}

	if req.ResourceIndicator != "" && !containsString(code.RequestedResourceIndicators, req.ResourceIndicator) {
		return tokenError(req, errs.ErrInvalidTarget, "Resource indicator was not requested at authorization"), nil
	}

	if client.RequirePkce || code.CodeChallenge != "" {
		if result := v.validateProofKey(req, code); result != nil {
			return result, nil
		}
		req.ProofKeyUsed = true
	}

	if code.Subject != nil {
		active, err := v.profile.IsActive(ctx, &services.IsActiveRequest{
			Subject: code.Subject,
			Client:  client,
			Caller:  "authorization_code_validation",
		})
		if err != nil {
			return nil, err
		}
		if !active {
			log.Printf("subject %s no longer active, rejecting code redemption", code.Subject.SubjectID)
			return tokenError(req, errs.ErrInvalidGrant, ""), nil
		}
	}

	if result, err := v.validateScopes(ctx, req, code.RequestedScopes, false); err != nil || result != nil {
		return result, err
	}

	req.AuthorizationCode = code
	req.AuthorizationCodeHandle = handle
	req.Subject = code.Subject
	return &TokenRequestValidationResult{Request: req}, nil
}

func (v *TokenRequestValidator) validateProofKey(req *ValidatedTokenRequest, code *models.AuthorizationCode) *TokenRequestValidationResult {
	verifier := req.Raw.Get(oidc.ParamCodeVerifier)
	if verifier == "" {
		log.Printf("missing code_verifier for client %s", req.Client.ClientID)
		return tokenError(req, errs.ErrInvalidGrant, "")
	}
	limits := v.options.InputLengthRestrictions
	if len(verifier) < limits.CodeVerifierMin || len(verifier) > limits.CodeVerifierMax {
		log.Printf("code_verifier length out of bounds for client %s", req.Client.ClientID)
		return tokenError(req, errs.ErrInvalidGrant, "")
	}
	if !VerifyCodeVerifier(code.CodeChallenge, verifier, oidc.CodeChallengeMethod(code.CodeChallengeMethod)) {
		log.Printf("code_verifier validation failed for client %s", req.Client.ClientID)
		return tokenError(req, errs.ErrInvalidGrant, "")
	}
	return nil
}

func (v *TokenRequestValidator) validateClientCredentials(ctx context.Context, req *ValidatedTokenRequest) (*TokenRequestValidationResult, error) {
	client := req.Client
	if !client.AllowsGrantType(oidc.ClientCredentials) {
		return tokenError(req, errs.ErrUnauthorizedClient, ""), nil
	}

	scopes, errResult := v.requestedScopes(req)
	if errResult != nil {
		return errResult, nil
	}

	if result, err := v.validateScopes(ctx, req, scopes, false); err != nil || result != nil {
		return result, err
	}

	resources := req.ValidatedResources.Resources
	if len(resources.IdentityResources) > 0 {
		log.Printf("client %s requested identity scopes with client_credentials", client.ClientID)
		return tokenError(req, errs.ErrInvalidScope, "Identity scopes are not allowed for client_credentials"), nil
	}
	if resources.OfflineAccess {
		log.Printf("client %s requested offline_access with client_credentials", client.ClientID)
		return tokenError(req, errs.ErrInvalidScope, "offline_access is not allowed for client_credentials"), nil
	}

	return &TokenRequestValidationResult{Request: req}, nil
}

func (v *TokenRequestValidator) validatePassword(ctx context.Context, req *ValidatedTokenRequest) (*TokenRequestValidationResult, error) {
	client := req.Client
	if !client.AllowsGrantType(oidc.Password) {
		return tokenError(req, errs.ErrUnauthorizedClient, ""), nil
	}
	if v.PasswordValidator == nil {
		log.Printf("no resource owner password validator registered")
		return tokenError(req, errs.ErrUnsupportedGrantType, ""), nil
	}

	username := req.Raw.Get(oidc.ParamUserName)
	password := req.Raw.Get(oidc.ParamPassword)
	limits := v.options.InputLengthRestrictions
	if username == "" || len(username) > limits.UserName {
		return tokenError(req, errs.ErrInvalidGrant, ""), nil
	}
	if len(password) > limits.Password {
		return tokenError(req, errs.ErrInvalidGrant, ""), nil
	}

	scopes, errResult := v.requestedScopes(req)
	if errResult != nil {
		return errResult, nil
	}
	if result, err := v.validateScopes(ctx, req, scopes, false); err != nil || result != nil {
		return result, err
	}

	subject, err := v.PasswordValidator.ValidateCredentials(ctx, username, password, req)
	if err != nil {
		if protocolError(err) {
			return tokenError(req, err, ""), nil
		}
		return nil, err
	}
	if subject == nil {
		log.Printf("resource owner password validation failed for user %q", username)
		services.Raise(ctx, v.events, &services.Event{
			Name:     services.EventUserLoginFailure,
			ClientID: client.ClientID,
			Message:  "invalid credentials",
		})
		return tokenError(req, errs.ErrInvalidGrant, ""), nil
	}

	active, err := v.profile.IsActive(ctx, &services.IsActiveRequest{
		Subject: subject,
		Client:  client,
		Caller:  "password_validation",
	})
	if err != nil {
		return nil, err
	}
	if !active {
		return tokenError(req, errs.ErrInvalidGrant, ""), nil
	}

	services.Raise(ctx, v.events, &services.Event{
		Name:      services.EventUserLoginSuccess,
		Success:   true,
		ClientID:  client.ClientID,
		SubjectID: subject.SubjectID,
	})
	req.Subject = subject
	req.UserName = username
	return &TokenRequestValidationResult{Request: req}, nil
}

func (v *TokenRequestValidator) validateRefreshToken(ctx context.Context, req *ValidatedTokenRequest) (*TokenRequestValidationResult, error) {
	handle := req.Raw.Get(oidc.ParamRefreshToken)
	if handle == "" {
		return tokenError(req, errs.ErrInvalidRequest, "Missing refresh_token"), nil
	}
	if len(handle) > v.options.InputLengthRestrictions.RefreshToken {
		return tokenError(req, errs.ErrInvalidGrant, ""), nil
	}

	token, err := v.refreshTokens.ValidateRefreshToken(ctx, handle, req.Client)
	if err != nil {
		if protocolError(err) {
			return tokenError(req, err, ""), nil
		}
		return nil, err
	}

	if req.ResourceIndicator != "" && len(token.AuthorizedResourceIndicators) > 0 &&
		!containsString(token.AuthorizedResourceIndicators, req.ResourceIndicator) {
		return tokenError(req, errs.ErrInvalidTarget, "Resource indicator was not authorized"), nil
	}

	// a refreshed access token may span isolated resources again
	if result, err := v.validateScopes(ctx, req, token.Scopes(), true); err != nil || result != nil {
		return result, err
	}

	req.RefreshToken = token
	req.RefreshTokenHandle = handle
	req.Subject = token.Subject
	return &TokenRequestValidationResult{Request: req}, nil
}

func (v *TokenRequestValidator) validateDeviceCode(ctx context.Context, req *ValidatedTokenRequest) (*TokenRequestValidationResult, error) {
	if req.ResourceIndicator != "" {
		return tokenError(req, errs.ErrInvalidTarget, "Resource indicators are not supported for the device flow"), nil
	}
	client := req.Client
	if !client.AllowsGrantType(oidc.DeviceFlow) {
		return tokenError(req, errs.ErrUnauthorizedClient, ""), nil
	}

	handle := req.Raw.Get(oidc.ParamDeviceCode)
	if handle == "" {
		return tokenError(req, errs.ErrInvalidRequest, "Missing device_code"), nil
	}
	if len(handle) > v.options.InputLengthRestrictions.DeviceCode {
		return tokenError(req, errs.ErrInvalidGrant, ""), nil
	}

	record, err := v.devices.Validate(ctx, client, handle)
	if err != nil {
		if protocolError(err) {
			return tokenError(req, err, ""), nil
		}
		return nil, err
	}

	if result, err := v.validateScopes(ctx, req, record.AuthorizedScopes, false); err != nil || result != nil {
		return result, err
	}

	req.DeviceCode = record
	req.DeviceCodeHandle = handle
	req.Subject = record.Subject
	return &TokenRequestValidationResult{Request: req}, nil
}

func (v *TokenRequestValidator) validateCiba(ctx context.Context, req *ValidatedTokenRequest) (*TokenRequestValidationResult, error) {
	client := req.Client
	if !client.AllowsGrantType(oidc.Ciba) {
		return tokenError(req, errs.ErrUnauthorizedClient, ""), nil
	}

	authReqID := req.Raw.Get(oidc.ParamAuthenticationReqID)
	if authReqID == "" {
		return tokenError(req, errs.ErrInvalidRequest, "Missing auth_req_id"), nil
	}
	if len(authReqID) > v.options.InputLengthRestrictions.AuthenticationReqID {
		return tokenError(req, errs.ErrInvalidGrant, ""), nil
	}

	record, err := v.backchannel.Validate(ctx, client, authReqID)
	if err != nil {
		if protocolError(err) {
			return tokenError(req, err, ""), nil
		}
		return nil, err
	}

	if req.ResourceIndicator != "" && !containsString(record.RequestedResourceIndicators, req.ResourceIndicator) {
		return tokenError(req, errs.ErrInvalidTarget, "Resource indicator was not requested at authentication"), nil
	}

	scopes := record.AuthorizedScopes
	if len(scopes) == 0 {
		scopes = record.RequestedScopes
	}
	if result, err := v.validateScopes(ctx, req, scopes, false); err != nil || result != nil {
		return result, err
	}

	req.BackChannelRequest = record
	req.BackChannelRequestID = authReqID
	req.Subject = record.Subject
	return &TokenRequestValidationResult{Request: req}, nil
}

func (v *TokenRequestValidator) validateExtensionGrant(ctx context.Context, req *ValidatedTokenRequest) (*TokenRequestValidationResult, error) {
	client := req.Client
	validator, registered := v.extensionGrants[req.GrantType]
	if !registered || !containsString(v.options.SupportedExtensionGrantTypes, req.GrantType) {
		log.Printf("unsupported grant type %q", req.GrantType)
		return tokenError(req, errs.ErrUnsupportedGrantType, ""), nil
	}
	if !client.AllowsGrantType(oidc.GrantType(req.GrantType)) {
		return tokenError(req, errs.ErrUnauthorizedClient, ""), nil
	}

	scopes, errResult := v.requestedScopes(req)
	if errResult != nil {
		return errResult, nil
	}
	if result, err := v.validateScopes(ctx, req, scopes, false); err != nil || result != nil {
		return result, err
	}

	subject, err := validator.Validate(ctx, req)
	if err != nil {
		if protocolError(err) {
			return tokenError(req, err, ""), nil
		}
		return nil, err
	}
	if subject != nil {
		active, err := v.profile.IsActive(ctx, &services.IsActiveRequest{
			Subject: subject,
			Client:  client,
			Caller:  "extension_grant_validation",
		})
		if err != nil {
			return nil, err
		}
		if !active {
			return tokenError(req, errs.ErrInvalidGrant, ""), nil
		}
		req.Subject = subject
	}

	return &TokenRequestValidationResult{Request: req}, nil
}

// requestedScopes reads the scope parameter, falling back to the client's
// allowed scopes when absent.
func (v *TokenRequestValidator) requestedScopes(req *ValidatedTokenRequest) ([]string, *TokenRequestValidationResult) {
	rawScope := req.Raw.Get(oidc.ParamScope)
	if len(rawScope) > v.options.InputLengthRestrictions.Scope {
		return nil, tokenError(req, errs.ErrInvalidScope, "")
	}
	if rawScope == "" {
		return append([]string{}, req.Client.AllowedScopes...), nil
	}
	return dedupeStrings(strings.Fields(rawScope)), nil
}

// validateScopes runs resource validation for the grant's effective scopes
// and fills the accumulator. A non-nil result is a terminal error.
func (v *TokenRequestValidator) validateScopes(ctx context.Context, req *ValidatedTokenRequest, scopes []string, includeNonIsolated bool) (*TokenRequestValidationResult, error) {
	var indicators []string
	if req.ResourceIndicator != "" {
		indicators = []string{req.ResourceIndicator}
	}
	result, err := v.resources.ValidateRequestedResources(ctx, &ResourceValidationRequest{
		Client:                         req.Client,
		Scopes:                         scopes,
		ResourceIndicators:             indicators,
		IncludeNonIsolatedApiResources: includeNonIsolated,
	})
	if err != nil {
		return nil, err
	}
	if len(result.InvalidResourceIndicators) > 0 {
		return tokenError(req, errs.ErrInvalidTarget, ""), nil
	}
	if len(result.InvalidScopes) > 0 {
		return tokenError(req, errs.ErrInvalidScope, ""), nil
	}
	req.RequestedScopes = scopes
	req.ValidatedResources = result
	return nil, nil
}
