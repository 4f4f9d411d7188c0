package server

import (
	"context"
	"strings"
	"time"

	oidc "github.com/legit-games/oidc-core"
	errs "github.com/legit-games/oidc-core/errors"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/tokens"
	"github.com/legit-games/oidc-core/validation"
)

// TokenResponse the token endpoint success payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// CreateTokenResponse mints the tokens for a validated token request.
func (s *Server) CreateTokenResponse(ctx context.Context, req *validation.ValidatedTokenRequest) (*TokenResponse, error) {
	switch oidc.GrantType(req.GrantType) {
	case oidc.AuthorizationCode:
		return s.codeTokenResponse(ctx, req)
	case oidc.RefreshToken:
		return s.refreshTokenResponse(ctx, req)
	default:
		return s.standardTokenResponse(ctx, req)
	}
}

func (s *Server) codeTokenResponse(ctx context.Context, req *validation.ValidatedTokenRequest) (*TokenResponse, error) {
	scopes := requestScopes(req)

	response, accessToken, err := s.issueAccessToken(ctx, req, scopes, "")
	if err != nil {
		return nil, err
	}

	if contains(scopes, oidc.ScopeOfflineAccess) {
		handle, err := s.RefreshTokens.CreateRefreshToken(ctx, req.Subject, accessToken, req.Client, req.AuthorizationCode.RequestedResourceIndicators)
		if err != nil {
			return nil, err
		}
		response.RefreshToken = handle
	}

	if req.AuthorizationCode.IsOpenID {
		idToken, err := s.issueIdentityToken(ctx, req, &tokens.TokenCreationRequest{
			Nonce:             req.AuthorizationCode.Nonce,
			StateHash:         req.AuthorizationCode.StateHash,
			AccessTokenToHash: response.AccessToken,
		})
		if err != nil {
			return nil, err
		}
		response.IDToken = idToken
	}

	return response, nil
}

func (s *Server) refreshTokenResponse(ctx context.Context, req *validation.ValidatedTokenRequest) (*TokenResponse, error) {
	scopes := requestScopes(req)

	response, accessToken, err := s.issueAccessToken(ctx, req, scopes, "")
	if err != nil {
		return nil, err
	}

	handle, err := s.RefreshTokens.UpdateRefreshToken(ctx, req.RefreshTokenHandle, req.RefreshToken, req.Client, accessToken)
	if err != nil {
		return nil, err
	}
	response.RefreshToken = handle

	if req.Subject != nil && contains(scopes, oidc.ScopeOpenID) {
		idToken, err := s.issueIdentityToken(ctx, req, &tokens.TokenCreationRequest{
			AccessTokenToHash: response.AccessToken,
		})
		if err != nil {
			return nil, err
		}
		response.IDToken = idToken
	}

	return response, nil
}

// standardTokenResponse covers client credentials, password, device code,
// CIBA and extension grants; they differ only in refresh and id_token
// eligibility.
func (s *Server) standardTokenResponse(ctx context.Context, req *validation.ValidatedTokenRequest) (*TokenResponse, error) {
	scopes := requestScopes(req)

	description := ""
	if req.DeviceCode != nil {
		description = req.DeviceCode.Description
	} else if req.BackChannelRequest != nil {
		description = req.BackChannelRequest.Description
	}
	response, accessToken, err := s.issueAccessToken(ctx, req, scopes, description)
	if err != nil {
		return nil, err
	}

	offline := contains(scopes, oidc.ScopeOfflineAccess) && req.Client.AllowOfflineAccess && req.Subject != nil
	if offline {
		handle, err := s.RefreshTokens.CreateRefreshToken(ctx, req.Subject, accessToken, req.Client, resourceIndicators(req))
		if err != nil {
			return nil, err
		}
		response.RefreshToken = handle
	}

	openid := contains(scopes, oidc.ScopeOpenID) && req.Subject != nil
	if openid {
		idToken, err := s.issueIdentityToken(ctx, req, &tokens.TokenCreationRequest{
			AccessTokenToHash: response.AccessToken,
		})
		if err != nil {
			return nil, err
		}
		response.IDToken = idToken
	}

	return response, nil
}

func (s *Server) issueAccessToken(ctx context.Context, req *validation.ValidatedTokenRequest, scopes []string, description string) (*TokenResponse, *models.Token, error) {
	var resources *models.Resources
	if req.ValidatedResources != nil {
		resources = req.ValidatedResources.Resources
	}
	if resources == nil {
		return nil, nil, errs.ErrServerError
	}

	accessToken, err := s.Tokens.CreateAccessToken(ctx, &tokens.TokenCreationRequest{
		Subject:     req.Subject,
		Client:      req.Client,
		Resources:   resources,
		Scopes:      scopes,
		SessionID:   sessionID(req),
		Description: description,
	})
	if err != nil {
		return nil, nil, err
	}
	raw, err := s.Tokens.CreateSecurityToken(ctx, accessToken)
	if err != nil {
		return nil, nil, err
	}

	return &TokenResponse{
		AccessToken: raw,
		TokenType:   s.Config.TokenType,
		ExpiresIn:   int(accessToken.Lifetime / time.Second),
		Scope:       strings.Join(scopes, " "),
	}, accessToken, nil
}

func (s *Server) issueIdentityToken(ctx context.Context, req *validation.ValidatedTokenRequest, creationReq *tokens.TokenCreationRequest) (string, error) {
	var resources *models.Resources
	if req.ValidatedResources != nil {
		resources = req.ValidatedResources.Resources
	}
	creationReq.Subject = req.Subject
	creationReq.Client = req.Client
	creationReq.Resources = resources
	creationReq.SessionID = sessionID(req)

	idToken, err := s.Tokens.CreateIdentityToken(ctx, creationReq)
	if err != nil {
		return "", err
	}
	return s.Tokens.CreateSecurityToken(ctx, idToken)
}

// requestScopes prefers the resource-validated scope set over the raw one.
func requestScopes(req *validation.ValidatedTokenRequest) []string {
	if req.ValidatedResources != nil {
		if scopes := req.ValidatedResources.RawScopeValues(); len(scopes) > 0 {
			return scopes
		}
	}
	return req.RequestedScopes
}

func resourceIndicators(req *validation.ValidatedTokenRequest) []string {
	if req.ResourceIndicator != "" {
		return []string{req.ResourceIndicator}
	}
	return nil
}

func sessionID(req *validation.ValidatedTokenRequest) string {
	if req.Subject != nil {
		return req.Subject.SessionID
	}
	return ""
}

