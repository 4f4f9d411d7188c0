package server

import (
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"

	errs "github.com/legit-games/oidc-core/errors"
)

// HandleDiscovery serves the OpenID Provider Metadata document.
func (s *Server) HandleDiscovery(c *gin.Context) {
	issuer := s.Options.IssuerURI
	meta := gin.H{
		"issuer":                                issuer,
		"authorization_endpoint":                issuer + s.Config.AuthorizePath,
		"token_endpoint":                        issuer + s.Config.TokenPath,
		"device_authorization_endpoint":         issuer + s.Config.DeviceAuthorizationPath,
		"introspection_endpoint":                issuer + s.Config.IntrospectionPath,
		"revocation_endpoint":                   issuer + s.Config.RevocationPath,
		"jwks_uri":                              issuer + s.Config.JwksPath,
		"response_types_supported":              []string{"code", "token", "id_token", "id_token token", "code id_token", "code token", "code id_token token"},
		"response_modes_supported":              []string{"query", "fragment", "form_post"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"grant_types_supported": []string{
			"authorization_code", "client_credentials", "password", "refresh_token",
			"implicit", "urn:ietf:params:oauth:grant-type:device_code", "urn:openid:params:grant-type:ciba",
		},
		"code_challenge_methods_supported":      []string{"plain", "S256"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post", "private_key_jwt"},
	}
	if scopes := s.supportedScopes(c); len(scopes) > 0 {
		meta["scopes_supported"] = scopes
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) supportedScopes(c *gin.Context) []string {
	resources, err := s.Resources.GetAllResources(c.Request.Context())
	if err != nil {
		return nil
	}
	var scopes []string
	for _, identity := range resources.IdentityResources {
		if identity.ShowInDiscoveryDocument {
			scopes = append(scopes, identity.Name)
		}
	}
	for _, scope := range resources.ApiScopes {
		if scope.ShowInDiscoveryDocument {
			scopes = append(scopes, scope.Name)
		}
	}
	return scopes
}

// HandleJwks serves the signature validation keys as a JWK Set.
func (s *Server) HandleJwks(c *gin.Context) {
	keys, err := s.Keys.GetValidationKeys(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(errs.ErrServerError, ""))
		return
	}

	jwks := make([]gin.H, 0, len(keys))
	for _, key := range keys {
		pub, ok := key.Key.(*rsa.PublicKey)
		if !ok {
			continue
		}
		jwks = append(jwks, gin.H{
			"kty": "RSA",
			"use": "sig",
			"kid": key.KeyID,
			"alg": key.Algorithm,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	c.JSON(http.StatusOK, gin.H{"keys": jwks})
}
