package validation

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	oidc "github.com/legit-games/oidc-core"
	errs "github.com/legit-games/oidc-core/errors"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
	"github.com/legit-games/oidc-core/store"
)

// AuthorizeRequestValidator the authorization endpoint state machine. Each
// stage either advances the accumulator or returns a terminal error result.
type AuthorizeRequestValidator struct {
	options      *oidc.Options
	clients      store.ClientStore
	clientConfig *ClientConfigurationValidator
	resources    ResourceValidator
	jwtRequest   *JwtRequestValidator
	uriLoader    *JwtRequestURILoader

	// RedirectValidator pluggable redirect uri policy, strict by default.
	RedirectValidator RedirectURIValidator
	// Custom optional hook that can veto a successful validation.
	Custom CustomAuthorizeRequestValidator
}

// NewAuthorizeRequestValidator create an authorize request validator
func NewAuthorizeRequestValidator(options *oidc.Options, clients store.ClientStore, resources ResourceValidator, events services.EventSink, httpClient *http.Client) *AuthorizeRequestValidator {
	return &AuthorizeRequestValidator{
		options:           options,
		clients:           clients,
		clientConfig:      NewClientConfigurationValidator(events),
		resources:         resources,
		jwtRequest:        NewJwtRequestValidator(options),
		uriLoader:         NewJwtRequestURILoader(httpClient, options),
		RedirectValidator: StrictRedirectURIValidator{},
	}
}

func authorizeError(req *ValidatedAuthorizeRequest, protocolErr error, description string) *AuthorizeRequestValidationResult {
	if description == "" {
		description = errs.Description(protocolErr)
	}
	return &AuthorizeRequestValidationResult{Request: req, Error: protocolErr, ErrorDescription: description}
}

// Validate runs the full authorize request state machine. subject is the
// current user session, nil when anonymous. The returned error is reserved
// for infrastructure failures; protocol failures land in the result.
func (v *AuthorizeRequestValidator) Validate(ctx context.Context, parameters url.Values, subject *models.Subject) (*AuthorizeRequestValidationResult, error) {
	req := &ValidatedAuthorizeRequest{Raw: parameters, Subject: subject}

	stages := []func(context.Context, *ValidatedAuthorizeRequest) (*AuthorizeRequestValidationResult, error){
		v.loadClient,
		v.loadRequestObject,
		v.validateRequestObject,
		v.validateClient,
		v.validateCoreParameters,
		v.validateScopeAndResource,
		v.validateOptionalParameters,
	}
	for _, stage := range stages {
		result, err := stage(ctx, req)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}

	if v.Custom != nil {
		if err := v.Custom.ValidateAuthorizeRequest(ctx, req); err != nil {
			log.Printf("custom authorize validator rejected request for client %s: %v", req.ClientID, err)
			return authorizeError(req, err, ""), nil
		}
	}

	return &AuthorizeRequestValidationResult{Request: req}, nil
}

func (v *AuthorizeRequestValidator) loadClient(ctx context.Context, req *ValidatedAuthorizeRequest) (*AuthorizeRequestValidationResult, error) {
	clientID := req.Raw.Get(oidc.ParamClientID)
	if clientID == "" {
		return authorizeError(req, errs.ErrInvalidRequest, "Missing client_id"), nil
	}
	if len(clientID) > v.options.InputLengthRestrictions.ClientID {
		return authorizeError(req, errs.ErrInvalidRequest, "Invalid client_id"), nil
	}
	req.ClientID = clientID

	client, err := v.clients.FindClientByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil || !client.Enabled {
		log.Printf("unknown or disabled client %q on authorize endpoint", clientID)
		return authorizeError(req, errs.ErrUnauthorizedClient, "Unknown client or client not enabled"), nil
	}
	if err := v.clientConfig.Validate(ctx, client); err != nil {
		log.Printf("client %s configuration invalid: %v", clientID, err)
		return authorizeError(req, errs.ErrUnauthorizedClient, "Invalid client configuration"), nil
	}

	req.Client = client
	return nil, nil
}

func (v *AuthorizeRequestValidator) loadRequestObject(ctx context.Context, req *ValidatedAuthorizeRequest) (*AuthorizeRequestValidationResult, error) {
	jwtRequest := req.Raw.Get(oidc.ParamRequest)
	jwtRequestURI := req.Raw.Get(oidc.ParamRequestURI)

	if jwtRequest != "" && jwtRequestURI != "" {
		return authorizeError(req, errs.ErrInvalidRequest, "Only one request parameter is allowed"), nil
	}

	if jwtRequestURI != "" {
		if !v.options.Endpoints.EnableJwtRequestURI {
			return authorizeError(req, errs.ErrRequestURINotSupported, ""), nil
		}
		if len(jwtRequestURI) > v.options.InputLengthRestrictions.RequestURI {
			return authorizeError(req, errs.ErrInvalidRequestURI, "request_uri too long"), nil
		}
		loaded, err := v.uriLoader.Load(ctx, jwtRequestURI)
		if err != nil {
			log.Printf("failed to load request object from %s: %v", jwtRequestURI, err)
			return authorizeError(req, errs.ErrInvalidRequestURI, ""), nil
		}
		jwtRequest = loaded
		// the fetched object replaces the reference in the raw parameters
		req.Raw.Set(oidc.ParamRequest, jwtRequest)
		req.Raw.Del(oidc.ParamRequestURI)
	}

	if jwtRequest != "" && len(jwtRequest) > v.options.InputLengthRestrictions.Jwt {
		return authorizeError(req, errs.ErrInvalidRequestObject, "request value too long"), nil
	}

	req.RequestObject = jwtRequest
	return nil, nil
}

func (v *AuthorizeRequestValidator) validateRequestObject(ctx context.Context, req *ValidatedAuthorizeRequest) (*AuthorizeRequestValidationResult, error) {
	if req.RequestObject == "" {
		return nil, nil
	}

	claims, err := v.jwtRequest.Validate(ctx, req.Client, req.RequestObject)
	if err != nil {
		log.Printf("request object rejected for client %s: %v", req.ClientID, err)
		return authorizeError(req, errs.ErrInvalidRequestObject, ""), nil
	}

	if id, ok := claims[oidc.ParamClientID]; ok && id != req.ClientID {
		return authorizeError(req, errs.ErrInvalidRequestObject, "Invalid client_id in request object"), nil
	}
	if rt, ok := claims[oidc.ParamResponseType]; ok {
		if outer := req.Raw.Get(oidc.ParamResponseType); outer != "" && outer != rt {
			return authorizeError(req, errs.ErrInvalidRequestObject, "Invalid response_type in request object"), nil
		}
	}

	// request object claims win over query string duplicates
	for name, value := range claims {
		if name == oidc.ParamRequest || name == oidc.ParamRequestURI {
			continue
		}
		req.Raw.Set(name, value)
	}
	req.RequestObjectValues = claims
	return nil, nil
}

func (v *AuthorizeRequestValidator) validateClient(ctx context.Context, req *ValidatedAuthorizeRequest) (*AuthorizeRequestValidationResult, error) {
	client := req.Client

	if client.RequireRequestObject && req.RequestObject == "" {
		return authorizeError(req, errs.ErrInvalidRequest, "Client must use request object, but no request object was found"), nil
	}

	redirectURI := req.Raw.Get(oidc.ParamRedirectURI)
	if redirectURI == "" {
		return authorizeError(req, errs.ErrInvalidRequest, "Missing redirect_uri"), nil
	}
	if len(redirectURI) > v.options.InputLengthRestrictions.RedirectURI {
		return authorizeError(req, errs.ErrInvalidRequest, "Invalid redirect_uri"), nil
	}
	parsed, err := url.Parse(redirectURI)
	if err != nil || !parsed.IsAbs() || parsed.Fragment != "" {
		return authorizeError(req, errs.ErrInvalidRequest, "Invalid redirect_uri"), nil
	}

	if client.ProtocolType != oidc.ProtocolTypeOIDC {
		log.Printf("client %s uses unsupported protocol type %q", client.ClientID, client.ProtocolType)
		return authorizeError(req, errs.ErrUnauthorizedClient, "Invalid protocol"), nil
	}

	valid, err := v.RedirectValidator.IsRedirectURIValid(ctx, redirectURI, client)
	if err != nil {
		return nil, err
	}
	if !valid {
		log.Printf("redirect uri %q not registered for client %s", redirectURI, client.ClientID)
		return authorizeError(req, errs.ErrInvalidRequest, "Invalid redirect_uri"), nil
	}

	req.RedirectURI = redirectURI
	return nil, nil
}

func (v *AuthorizeRequestValidator) validateCoreParameters(ctx context.Context, req *ValidatedAuthorizeRequest) (*AuthorizeRequestValidationResult, error) {
	req.State = req.Raw.Get(oidc.ParamState)

	rawResponseType := req.Raw.Get(oidc.ParamResponseType)
	if rawResponseType == "" {
		return authorizeError(req, errs.ErrInvalidRequest, "Missing response_type"), nil
	}
	responseType, ok := matchResponseType(rawResponseType)
	if !ok {
		return authorizeError(req, errs.ErrUnsupportedResponseType, ""), nil
	}
	req.ResponseType = responseType
	req.GrantType = oidc.ResponseTypeToGrantType[responseType]

	if !req.Client.AllowsGrantType(req.GrantType) {
		log.Printf("client %s not allowed response_type %q", req.Client.ClientID, rawResponseType)
		return authorizeError(req, errs.ErrUnauthorizedClient, "Response type not allowed for client"), nil
	}

	if rawMode := req.Raw.Get(oidc.ParamResponseMode); rawMode != "" {
		mode := oidc.ResponseMode(rawMode)
		if !responseModeAllowed(mode, req.GrantType) {
			return authorizeError(req, errs.ErrInvalidRequest, "Invalid response_mode for response_type"), nil
		}
		req.ResponseMode = mode
	} else {
		req.ResponseMode = oidc.DefaultResponseModeForGrantType[req.GrantType]
	}

	if responseTypeIncludes(responseType, "token") && !req.Client.AllowAccessTokensViaBrowser {
		log.Printf("client %s may not receive access tokens via the browser", req.Client.ClientID)
		return authorizeError(req, errs.ErrInvalidRequest, "Client does not allow access tokens via browser"), nil
	}

	return v.validateProofKey(req)
}

func (v *AuthorizeRequestValidator) validateProofKey(req *ValidatedAuthorizeRequest) (*AuthorizeRequestValidationResult, error) {
	if req.GrantType != oidc.AuthorizationCode && req.GrantType != oidc.Hybrid {
		return nil, nil
	}

	challenge := req.Raw.Get(oidc.ParamCodeChallenge)
	method := req.Raw.Get(oidc.ParamCodeChallengeMethod)

	if !req.Client.RequirePkce && challenge == "" {
		return nil, nil
	}

	limits := v.options.InputLengthRestrictions
	if challenge == "" {
		return authorizeError(req, errs.ErrInvalidRequest, "code challenge required"), nil
	}
	if len(challenge) < limits.CodeChallengeMin || len(challenge) > limits.CodeChallengeMax {
		return authorizeError(req, errs.ErrInvalidRequest, "Invalid code_challenge"), nil
	}

	if method == "" {
		method = oidc.CodeChallengePlain.String()
	}
	switch oidc.CodeChallengeMethod(method) {
	case oidc.CodeChallengePlain:
		if !req.Client.AllowPlainTextPkce {
			return authorizeError(req, errs.ErrInvalidRequest, "Transform algorithm not supported"), nil
		}
	case oidc.CodeChallengeS256:
	default:
		return authorizeError(req, errs.ErrInvalidRequest, "Transform algorithm not supported"), nil
	}

	req.CodeChallenge = challenge
	req.CodeChallengeMethod = oidc.CodeChallengeMethod(method)
	return nil, nil
}

func (v *AuthorizeRequestValidator) validateScopeAndResource(ctx context.Context, req *ValidatedAuthorizeRequest) (*AuthorizeRequestValidationResult, error) {
	rawScope := req.Raw.Get(oidc.ParamScope)
	if rawScope == "" {
		return authorizeError(req, errs.ErrInvalidRequest, "Missing scope"), nil
	}
	if len(rawScope) > v.options.InputLengthRestrictions.Scope {
		return authorizeError(req, errs.ErrInvalidRequest, "Invalid scope"), nil
	}
	scopes := dedupeStrings(strings.Fields(rawScope))
	req.RequestedScopes = scopes
	req.IsOpenIDRequest = containsString(scopes, oidc.ScopeOpenID)

	requirement := oidc.ResponseTypeToScopeRequirement[req.ResponseType]
	if (requirement == oidc.ScopeRequirementIdentity || requirement == oidc.ScopeRequirementIdentityOnly) && !req.IsOpenIDRequest {
		return authorizeError(req, errs.ErrInvalidScope, "openid scope required"), nil
	}

	indicators := dedupeStrings(req.Raw[oidc.ParamResource])
	for _, ind := range indicators {
		if len(ind) > v.options.InputLengthRestrictions.ResourceIndicator {
			return authorizeError(req, errs.ErrInvalidTarget, "Invalid resource indicator"), nil
		}
		u, err := url.Parse(ind)
		if err != nil || !u.IsAbs() || u.Fragment != "" {
			return authorizeError(req, errs.ErrInvalidTarget, "Invalid resource indicator format"), nil
		}
	}
	if len(indicators) > 0 && req.GrantType == oidc.Implicit {
		return authorizeError(req, errs.ErrInvalidTarget, "Resource indicators are not supported for implicit requests"), nil
	}
	req.RequestedResourceIndicators = indicators

	result, err := v.resources.ValidateRequestedResources(ctx, &ResourceValidationRequest{
		Client:             req.Client,
		Scopes:             scopes,
		ResourceIndicators: indicators,
	})
	if err != nil {
		return nil, err
	}
	if len(result.InvalidResourceIndicators) > 0 {
		return authorizeError(req, errs.ErrInvalidTarget, ""), nil
	}
	if len(result.InvalidScopes) > 0 {
		return authorizeError(req, errs.ErrInvalidScope, ""), nil
	}

	switch requirement {
	case oidc.ScopeRequirementIdentityOnly:
		if len(result.Resources.ApiScopes) > 0 || len(result.Resources.ApiResources) > 0 {
			return authorizeError(req, errs.ErrInvalidScope, "Only identity scopes allowed for this response_type"), nil
		}
	case oidc.ScopeRequirementResourceOnly:
		if req.IsOpenIDRequest || len(result.Resources.IdentityResources) > 0 {
			return authorizeError(req, errs.ErrInvalidScope, "Only resource scopes allowed for this response_type"), nil
		}
	}

	req.ValidatedResources = result
	return nil, nil
}

func (v *AuthorizeRequestValidator) validateOptionalParameters(ctx context.Context, req *ValidatedAuthorizeRequest) (*AuthorizeRequestValidationResult, error) {
	limits := v.options.InputLengthRestrictions

	nonce := req.Raw.Get(oidc.ParamNonce)
	if len(nonce) > limits.Nonce {
		return authorizeError(req, errs.ErrInvalidRequest, "Invalid nonce"), nil
	}
	if nonce == "" && responseTypeIncludes(req.ResponseType, "id_token") {
		return authorizeError(req, errs.ErrInvalidRequest, "Nonce required for this response_type"), nil
	}
	req.Nonce = nonce

	prompt, result := parsePromptModes(req, req.Raw.Get(oidc.ParamPrompt))
	if result != nil {
		return result, nil
	}
	req.PromptModes = prompt

	suppressed, result := parsePromptModes(req, req.Raw.Get(oidc.ParamSuppressedPrompt))
	if result != nil {
		return result, nil
	}
	req.SuppressedPromptModes = suppressed

	if rawMaxAge := req.Raw.Get(oidc.ParamMaxAge); rawMaxAge != "" {
		seconds, err := strconv.Atoi(rawMaxAge)
		if err != nil || seconds < 0 {
			return authorizeError(req, errs.ErrInvalidRequest, "Invalid max_age"), nil
		}
		maxAge := time.Duration(seconds) * time.Second
		req.MaxAge = &maxAge
	}

	uiLocales := req.Raw.Get(oidc.ParamUILocales)
	if len(uiLocales) > limits.UILocale {
		return authorizeError(req, errs.ErrInvalidRequest, "Invalid ui_locales"), nil
	}
	req.UILocales = uiLocales

	loginHint := req.Raw.Get(oidc.ParamLoginHint)
	if len(loginHint) > limits.LoginHint {
		return authorizeError(req, errs.ErrInvalidRequest, "Invalid login_hint"), nil
	}
	req.LoginHint = loginHint

	idTokenHint := req.Raw.Get(oidc.ParamIDTokenHint)
	if len(idTokenHint) > limits.Jwt {
		return authorizeError(req, errs.ErrInvalidRequest, "Invalid id_token_hint"), nil
	}
	req.IDTokenHint = idTokenHint

	rawAcr := req.Raw.Get(oidc.ParamAcrValues)
	if len(rawAcr) > limits.AcrValues {
		return authorizeError(req, errs.ErrInvalidRequest, "Invalid acr_values"), nil
	}
	req.AcrValues = v.filterAcrValues(req.Client, dedupeStrings(strings.Fields(rawAcr)))

	if display := req.Raw.Get(oidc.ParamDisplay); display != "" {
		if containsString(oidc.SupportedDisplayModes, display) {
			req.DisplayMode = display
		} else {
			log.Printf("unsupported display mode %q ignored", display)
		}
	}

	if v.options.Endpoints.EnableCheckSession && req.Subject != nil {
		req.SessionID = req.Subject.SessionID
	}
	return nil, nil
}

// filterAcrValues strips idp: acr values naming providers the client is
// restricted from using.
func (v *AuthorizeRequestValidator) filterAcrValues(client *models.Client, acrValues []string) []string {
	if len(client.IdentityProviderRestrictions) == 0 {
		return acrValues
	}
	var out []string
	for _, acr := range acrValues {
		if strings.HasPrefix(acr, oidc.AcrIdPPrefix) {
			idp := strings.TrimPrefix(acr, oidc.AcrIdPPrefix)
			if !containsString(client.IdentityProviderRestrictions, idp) {
				log.Printf("idp %q filtered from acr_values for client %s", idp, client.ClientID)
				continue
			}
		}
		out = append(out, acr)
	}
	return out
}

func parsePromptModes(req *ValidatedAuthorizeRequest, raw string) ([]string, *AuthorizeRequestValidationResult) {
	if raw == "" {
		return nil, nil
	}
	var modes []string
	for _, mode := range dedupeStrings(strings.Fields(raw)) {
		if !containsString(oidc.SupportedPromptModes, mode) {
			log.Printf("unsupported prompt mode %q ignored", mode)
			continue
		}
		modes = append(modes, mode)
	}
	if containsString(modes, oidc.PromptNone) && len(modes) > 1 {
		return nil, authorizeError(req, errs.ErrInvalidRequest, "prompt=none must not be combined with other values")
	}
	return modes, nil
}

func responseModeAllowed(mode oidc.ResponseMode, grantType oidc.GrantType) bool {
	for _, allowed := range oidc.AllowedResponseModesForGrantType[grantType] {
		if allowed == mode {
			return true
		}
	}
	return false
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
