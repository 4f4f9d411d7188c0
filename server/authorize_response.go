package server

import (
	"context"
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/tokens"
	"github.com/legit-games/oidc-core/validation"
)

// AuthorizeResponse the artifacts issued for a successful authorize request.
type AuthorizeResponse struct {
	Request *validation.ValidatedAuthorizeRequest

	Code        string
	AccessToken string
	ExpiresIn   time.Duration
	IDToken     string
	SessionID   string
}

// Params returns the wire parameters carried back to the redirect URI.
func (r *AuthorizeResponse) Params(tokenType string) url.Values {
	values := url.Values{}
	if r.Code != "" {
		values.Set("code", r.Code)
	}
	if r.AccessToken != "" {
		values.Set("access_token", r.AccessToken)
		values.Set("token_type", tokenType)
		values.Set("expires_in", strconv.Itoa(int(r.ExpiresIn.Seconds())))
	}
	if r.IDToken != "" {
		values.Set("id_token", r.IDToken)
	}
	if r.Request.State != "" {
		values.Set("state", r.Request.State)
	}
	if len(r.Request.RequestedScopes) > 0 {
		values.Set("scope", strings.Join(r.Request.RequestedScopes, " "))
	}
	if r.SessionID != "" {
		values.Set("session_state", r.SessionID)
	}
	return values
}

// CreateAuthorizeResponse mints the code and/or tokens a validated authorize
// request asks for.
func (s *Server) CreateAuthorizeResponse(ctx context.Context, req *validation.ValidatedAuthorizeRequest) (*AuthorizeResponse, error) {
	response := &AuthorizeResponse{Request: req, SessionID: req.SessionID}
	responseTypes := strings.Fields(req.ResponseType.String())

	var resources *models.Resources
	var scopes []string
	if req.ValidatedResources != nil {
		resources = req.ValidatedResources.Resources
		scopes = req.ValidatedResources.RawScopeValues()
	}

	if contains(responseTypes, "code") {
		code := &models.AuthorizationCode{
			CreationTime:                time.Now(),
			Lifetime:                    req.Client.AuthorizationCodeLifetime,
			ClientID:                    req.Client.ClientID,
			Subject:                     req.Subject,
			IsOpenID:                    req.IsOpenIDRequest,
			RequestedScopes:             scopes,
			RequestedResourceIndicators: req.RequestedResourceIndicators,
			RedirectURI:                 req.RedirectURI,
			Nonce:                       req.Nonce,
		}
		if req.CodeChallenge != "" {
			code.CodeChallenge = validation.HashCodeChallenge(req.CodeChallenge)
			code.CodeChallengeMethod = req.CodeChallengeMethod.String()
		}
		if req.IsOpenIDRequest && req.State != "" {
			code.StateHash = tokens.HashState(req.State)
		}
		handle, err := s.Codes.StoreAuthorizationCode(ctx, code)
		if err != nil {
			return nil, err
		}
		response.Code = handle
	}

	if contains(responseTypes, "token") {
		accessToken, err := s.Tokens.CreateAccessToken(ctx, &tokens.TokenCreationRequest{
			Subject:   req.Subject,
			Client:    req.Client,
			Resources: resources,
			Scopes:    scopes,
			SessionID: req.SessionID,
		})
		if err != nil {
			return nil, err
		}
		raw, err := s.Tokens.CreateSecurityToken(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		response.AccessToken = raw
		response.ExpiresIn = accessToken.Lifetime
	}

	if contains(responseTypes, "id_token") {
		creationReq := &tokens.TokenCreationRequest{
			Subject:                 req.Subject,
			Client:                  req.Client,
			Resources:               resources,
			Nonce:                   req.Nonce,
			SessionID:               req.SessionID,
			AccessTokenToHash:       response.AccessToken,
			AuthorizationCodeToHash: response.Code,
		}
		if req.State != "" {
			creationReq.StateHash = tokens.HashState(req.State)
		}
		idToken, err := s.Tokens.CreateIdentityToken(ctx, creationReq)
		if err != nil {
			return nil, err
		}
		raw, err := s.Tokens.CreateSecurityToken(ctx, idToken)
		if err != nil {
			return nil, err
		}
		response.IDToken = raw
	}

	return response, nil
}

// redirectLocation builds the redirect target for query and fragment modes.
func redirectLocation(redirectURI string, params url.Values, mode oidc.ResponseMode) string {
	separator := "?"
	if mode == oidc.ResponseModeFragment {
		separator = "#"
	}
	joiner := separator
	if strings.Contains(redirectURI, separator) {
		joiner = "&"
	}
	return redirectURI + joiner + params.Encode()
}

// formPostPage renders the self-submitting form_post document.
func formPostPage(redirectURI string, params url.Values) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><meta http-equiv='X-UA-Compatible' content='IE=edge'></head>")
	b.WriteString("<body onload='document.forms[0].submit()'>")
	b.WriteString("<form method='post' action='" + html.EscapeString(redirectURI) + "'>")
	for name, values := range params {
		for _, value := range values {
			b.WriteString("<input type='hidden' name='" + html.EscapeString(name) + "' value='" + html.EscapeString(value) + "'/>")
		}
	}
	b.WriteString("</form></body></html>")
	return b.String()
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
