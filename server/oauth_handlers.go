package server

import (
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	oidc "github.com/legit-games/oidc-core"
	errs "github.com/legit-games/oidc-core/errors"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
	"github.com/legit-games/oidc-core/store"
	"github.com/legit-games/oidc-core/validation"
)

// HandleAuthorizeRequest serves the authorization endpoint.
func (s *Server) HandleAuthorizeRequest(c *gin.Context) {
	ctx := c.Request.Context()

	parameters := c.Request.URL.Query()
	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err == nil {
			parameters = c.Request.PostForm
		}
	}

	var subject *models.Subject
	if s.UserAuthorizationHandler != nil {
		var err error
		subject, err = s.UserAuthorizationHandler(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, errorBody(errs.ErrServerError, ""))
			return
		}
	}

	result, err := s.AuthorizeValidator.Validate(ctx, parameters, subject)
	if err != nil {
		log.Printf("authorize validation infrastructure failure: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody(errs.ErrServerError, ""))
		return
	}
	if result.IsError() {
		s.writeAuthorizeError(c, result)
		return
	}
	req := result.Request

	if subject == nil {
		s.redirectAuthorizeError(c, req, errs.ErrLoginRequired, "User is not authenticated")
		return
	}

	granted, err := s.checkConsent(c, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(errs.ErrServerError, ""))
		return
	}
	if !granted {
		s.redirectAuthorizeError(c, req, errs.ErrAccessDenied, "User denied consent")
		return
	}

	response, err := s.CreateAuthorizeResponse(ctx, req)
	if err != nil {
		log.Printf("authorize response generation failed: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody(errs.ErrServerError, ""))
		return
	}

	s.writeAuthorizeResponse(c, req, response.Params(s.Config.TokenType))
}

// checkConsent runs the consent service and, when interaction is required,
// defers to the consent handler.
func (s *Server) checkConsent(c *gin.Context, req *validation.ValidatedAuthorizeRequest) (bool, error) {
	var parsedScopes []models.ParsedScopeValue
	if req.ValidatedResources != nil {
		parsedScopes = req.ValidatedResources.ParsedScopes
	}
	required, err := s.ConsentSvc.RequiresConsent(c.Request.Context(), req.Subject, req.Client, parsedScopes)
	if err != nil {
		return false, err
	}
	if !required {
		return true, nil
	}
	// prompt=none forbids any interaction
	if contains(req.PromptModes, oidc.PromptNone) {
		return false, nil
	}
	granted := true
	if s.ConsentHandler != nil {
		granted, err = s.ConsentHandler(c, req)
		if err != nil {
			return false, err
		}
	}
	if granted {
		if err := s.ConsentSvc.UpdateConsent(c.Request.Context(), req.Subject, req.Client, parsedScopes); err != nil {
			return false, err
		}
	}
	return granted, nil
}

// writeAuthorizeError returns the validation error to the client: over the
// redirect URI when one was validated, as a direct response otherwise.
func (s *Server) writeAuthorizeError(c *gin.Context, result *validation.AuthorizeRequestValidationResult) {
	req := result.Request
	if req == nil || req.RedirectURI == "" || req.Client == nil {
		c.JSON(errs.StatusCode(result.Error), errorBody(result.Error, result.ErrorDescription))
		return
	}
	s.redirectAuthorizeError(c, req, result.Error, result.ErrorDescription)
}

func (s *Server) redirectAuthorizeError(c *gin.Context, req *validation.ValidatedAuthorizeRequest, protocolErr error, description string) {
	params := url.Values{}
	params.Set("error", protocolErr.Error())
	if description == "" {
		description = errs.Description(protocolErr)
	}
	if description != "" {
		params.Set("error_description", description)
	}
	if req.State != "" {
		params.Set("state", req.State)
	}
	s.writeAuthorizeResponse(c, req, params)
}

func (s *Server) writeAuthorizeResponse(c *gin.Context, req *validation.ValidatedAuthorizeRequest, params url.Values) {
	switch req.ResponseMode {
	case oidc.ResponseModeFormPost:
		c.Header("Cache-Control", "no-store, no-cache, max-age=0")
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(formPostPage(req.RedirectURI, params)))
	default:
		c.Redirect(http.StatusFound, redirectLocation(req.RedirectURI, params, req.ResponseMode))
	}
}

// HandleTokenRequest serves the token endpoint.
func (s *Server) HandleTokenRequest(c *gin.Context) {
	ctx := c.Request.Context()

	clientResult, err := s.ClientValidator.Validate(ctx, c.Request)
	if err != nil {
		s.writeTokenError(c, err, "")
		return
	}
	client := clientResult.Client

	if err := c.Request.ParseForm(); err != nil {
		s.writeTokenError(c, errs.ErrInvalidRequest, "Malformed request body")
		return
	}

	result, err := s.TokenValidator.Validate(ctx, c.Request.PostForm, client)
	if err != nil {
		log.Printf("token validation infrastructure failure: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody(errs.ErrServerError, ""))
		return
	}
	if result.IsError() {
		services.Raise(ctx, s.Events, &services.Event{
			Name:     services.EventTokenIssuedFailure,
			Success:  false,
			ClientID: client.ClientID,
			Message:  result.Error.Error(),
		})
		s.writeTokenError(c, result.Error, result.ErrorDescription)
		return
	}

	response, err := s.CreateTokenResponse(ctx, result.Request)
	if err != nil {
		log.Printf("token response generation failed: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody(errs.ErrServerError, ""))
		return
	}

	services.Raise(ctx, s.Events, &services.Event{
		Name:      services.EventTokenIssuedSuccess,
		Success:   true,
		ClientID:  client.ClientID,
		SubjectID: subjectID(result.Request.Subject),
		Message:   result.Request.GrantType,
	})

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, response)
}

func (s *Server) writeTokenError(c *gin.Context, protocolErr error, description string) {
	if description == "" {
		description = errs.Description(protocolErr)
	}
	if _, known := errs.Descriptions[protocolErr]; !known && protocolErr != errs.ErrLoginRequired &&
		protocolErr != errs.ErrConsentRequired && protocolErr != errs.ErrInteractionRequired {
		// never leak internal errors onto the wire
		log.Printf("token endpoint internal error: %v", protocolErr)
		protocolErr = errs.ErrInvalidRequest
		description = errs.Description(protocolErr)
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(errs.StatusCode(protocolErr), errorBody(protocolErr, description))
}

// DeviceAuthorizationResponse the device authorization endpoint payload.
type DeviceAuthorizationResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// HandleDeviceAuthorizationRequest serves the device authorization endpoint.
func (s *Server) HandleDeviceAuthorizationRequest(c *gin.Context) {
	ctx := c.Request.Context()

	clientResult, err := s.ClientValidator.Validate(ctx, c.Request)
	if err != nil {
		s.writeTokenError(c, err, "")
		return
	}
	client := clientResult.Client

	if !client.AllowsGrantType(oidc.DeviceFlow) {
		s.writeTokenError(c, errs.ErrUnauthorizedClient, "Client not authorized for device flow")
		return
	}

	if err := c.Request.ParseForm(); err != nil {
		s.writeTokenError(c, errs.ErrInvalidRequest, "Malformed request body")
		return
	}
	requestedScopes := strings.Fields(c.Request.PostForm.Get(oidc.ParamScope))
	if len(requestedScopes) == 0 {
		requestedScopes = client.AllowedScopes
	}

	validated, err := s.ResourceValidator.ValidateRequestedResources(ctx, &validation.ResourceValidationRequest{
		Client: client,
		Scopes: requestedScopes,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(errs.ErrServerError, ""))
		return
	}
	if !validated.Succeeded() {
		s.writeTokenError(c, errs.ErrInvalidScope, "")
		return
	}

	userCode, err := store.GenerateUserCode(s.Options.DeviceFlow.UserCodeLength)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(errs.ErrServerError, ""))
		return
	}

	lifetime := client.DeviceCodeLifetime
	if lifetime <= 0 {
		lifetime = s.Config.DefaultDeviceCodeLifetime
	}
	record := &models.DeviceCode{
		CreationTime:    time.Now(),
		Lifetime:        lifetime,
		ClientID:        client.ClientID,
		UserCode:        userCode,
		IsOpenID:        contains(validated.RawScopeValues(), oidc.ScopeOpenID),
		RequestedScopes: validated.RawScopeValues(),
	}
	deviceCode, err := s.Devices.StoreDeviceAuthorization(ctx, record)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(errs.ErrServerError, ""))
		return
	}

	verificationURI := s.Config.DeviceVerificationURI
	if strings.HasPrefix(verificationURI, "/") {
		verificationURI = s.Options.IssuerURI + verificationURI
	}
	interval := s.Options.DeviceFlow.Interval
	if client.PollingInterval > 0 {
		interval = client.PollingInterval
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, &DeviceAuthorizationResponse{
		DeviceCode:              deviceCode,
		UserCode:                userCode,
		VerificationURI:         verificationURI,
		VerificationURIComplete: verificationURI + "?user_code=" + url.QueryEscape(userCode),
		ExpiresIn:               int(lifetime / time.Second),
		Interval:                int(interval / time.Second),
	})
}

// HandleIntrospectionRequest serves reference-token introspection.
func (s *Server) HandleIntrospectionRequest(c *gin.Context) {
	ctx := c.Request.Context()

	if _, err := s.ClientValidator.Validate(ctx, c.Request); err != nil {
		s.writeTokenError(c, err, "")
		return
	}

	if err := c.Request.ParseForm(); err != nil {
		s.writeTokenError(c, errs.ErrInvalidRequest, "Malformed request body")
		return
	}
	handle := c.Request.PostForm.Get("token")
	if handle == "" {
		s.writeTokenError(c, errs.ErrInvalidRequest, "Missing token")
		return
	}

	token, err := s.References.GetReferenceToken(ctx, handle)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(errs.ErrServerError, ""))
		return
	}
	if token == nil || time.Now().After(token.Expiration()) {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}

	body := gin.H{
		"active":     true,
		"iss":        token.Issuer,
		"client_id":  token.ClientID,
		"token_type": s.Config.TokenType,
		"iat":        token.CreationTime.Unix(),
		"exp":        token.Expiration().Unix(),
		"scope":      strings.Join(token.Scopes(), " "),
	}
	if sub := token.SubjectID(); sub != "" {
		body["sub"] = sub
	}
	if len(token.Audiences) > 0 {
		body["aud"] = token.Audiences
	}
	c.JSON(http.StatusOK, body)
}

// HandleRevocationRequest serves token revocation for reference and refresh
// tokens. Unknown tokens succeed silently per RFC 7009.
func (s *Server) HandleRevocationRequest(c *gin.Context) {
	ctx := c.Request.Context()

	clientResult, err := s.ClientValidator.Validate(ctx, c.Request)
	if err != nil {
		s.writeTokenError(c, err, "")
		return
	}
	client := clientResult.Client

	if err := c.Request.ParseForm(); err != nil {
		s.writeTokenError(c, errs.ErrInvalidRequest, "Malformed request body")
		return
	}
	handle := c.Request.PostForm.Get("token")
	if handle == "" {
		s.writeTokenError(c, errs.ErrInvalidRequest, "Missing token")
		return
	}
	hint := c.Request.PostForm.Get("token_type_hint")

	if hint == "" || hint == "access_token" {
		token, err := s.References.GetReferenceToken(ctx, handle)
		if err == nil && token != nil && token.ClientID == client.ClientID {
			if err := s.References.RemoveReferenceToken(ctx, handle); err != nil {
				c.JSON(http.StatusInternalServerError, errorBody(errs.ErrServerError, ""))
				return
			}
			c.Status(http.StatusOK)
			return
		}
	}
	if hint == "" || hint == "refresh_token" {
		token, err := s.RefreshTokens.Store().GetRefreshToken(ctx, handle)
		if err == nil && token != nil && token.ClientID() == client.ClientID {
			if err := s.RefreshTokens.Store().RemoveRefreshToken(ctx, handle); err != nil {
				c.JSON(http.StatusInternalServerError, errorBody(errs.ErrServerError, ""))
				return
			}
		}
	}
	c.Status(http.StatusOK)
}

func errorBody(protocolErr error, description string) gin.H {
	body := gin.H{"error": protocolErr.Error()}
	if description == "" {
		description = errs.Description(protocolErr)
	}
	if description != "" {
		body["error_description"] = description
	}
	return body
}

func subjectID(subject *models.Subject) string {
	if subject == nil {
		return ""
	}
	return subject.SubjectID
}
