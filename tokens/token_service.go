package tokens

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/google/uuid"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/store"
)

// TokenCreationRequest the inputs for assembling a token
type TokenCreationRequest struct {
	Subject   *models.Subject
	Client    *models.Client
	Resources *models.Resources
	Scopes    []string

	Nonce     string
	SessionID string
	// StateHash the s_hash value recorded at authorization, for hybrid flows.
	StateHash string

	// AccessTokenToHash yields an at_hash claim on the identity token.
	AccessTokenToHash string
	// AuthorizationCodeToHash yields a c_hash claim on the identity token.
	AuthorizationCodeToHash string

	// IncludeAllIdentityClaims forces user claims into the identity token.
	IncludeAllIdentityClaims bool

	// Confirmation raw cnf value for proof-of-possession tokens.
	Confirmation string

	Description string
}

// DefaultTokenService assembles Token objects and serializes them as JWTs or
// reference handles.
type DefaultTokenService struct {
	options    *oidc.Options
	claims     *DefaultClaimsService
	creation   *DefaultTokenCreationService
	references *store.ReferenceTokenStore
	now        func() time.Time
}

// NewTokenService create a token service
func NewTokenService(options *oidc.Options, claims *DefaultClaimsService, creation *DefaultTokenCreationService, references *store.ReferenceTokenStore) *DefaultTokenService {
	return &DefaultTokenService{options: options, claims: claims, creation: creation, references: references, now: time.Now}
}

// CreateIdentityToken assembles an id_token for the request.
func (s *DefaultTokenService) CreateIdentityToken(ctx context.Context, req *TokenCreationRequest) (*models.Token, error) {
	claims, err := s.claims.GetIdentityTokenClaims(ctx, req.Subject, req.Client, req.Resources, req.IncludeAllIdentityClaims)
	if err != nil {
		return nil, err
	}

	if req.Nonce != "" {
		claims = append(claims, models.Claim{Type: oidc.ClaimNonce, Value: req.Nonce})
	}
	if req.AccessTokenToHash != "" {
		claims = append(claims, models.Claim{Type: oidc.ClaimAccessTokenHash, Value: leftHalfHash(req.AccessTokenToHash)})
	}
	if req.AuthorizationCodeToHash != "" {
		claims = append(claims, models.Claim{Type: oidc.ClaimAuthorizationCodeHash, Value: leftHalfHash(req.AuthorizationCodeToHash)})
	}
	if req.StateHash != "" {
		claims = append(claims, models.Claim{Type: oidc.ClaimStateHash, Value: req.StateHash})
	}
	if req.SessionID != "" {
		claims = append(claims, models.Claim{Type: oidc.ClaimSessionID, Value: req.SessionID})
	}

	return &models.Token{
		Type:         oidc.TokenTypeIdentity,
		Issuer:       s.options.IssuerURI,
		Audiences:    []string{req.Client.ClientID},
		ClientID:     req.Client.ClientID,
		CreationTime: s.now(),
		Lifetime:     req.Client.IdentityTokenLifetime,
		Claims:       claims,
	}, nil
}

// CreateAccessToken assembles an access token for the request.
func (s *DefaultTokenService) CreateAccessToken(ctx context.Context, req *TokenCreationRequest) (*models.Token, error) {
	claims, err := s.claims.GetAccessTokenClaims(ctx, req.Subject, req.Client, req.Resources, req.Scopes)
	if err != nil {
		return nil, err
	}

	claims = append(claims, models.Claim{Type: oidc.ClaimJwtID, Value: newJti()})
	if req.SessionID != "" {
		claims = append(claims, models.Claim{Type: oidc.ClaimSessionID, Value: req.SessionID})
	}

	var audiences []string
	var signingAlgorithms []string
	if req.Resources != nil {
		for _, api := range req.Resources.ApiResources {
			audiences = append(audiences, api.Name)
			signingAlgorithms = append(signingAlgorithms, api.AllowedAccessTokenSigningAlgorithms...)
		}
	}
	if s.options.EmitStaticAudienceClaim {
		audiences = append(audiences, s.options.IssuerURI+"/resources")
	}

	return &models.Token{
		Type:                     oidc.TokenTypeAccess,
		Issuer:                   s.options.IssuerURI,
		Audiences:                audiences,
		ClientID:                 req.Client.ClientID,
		CreationTime:             s.now(),
		Lifetime:                 req.Client.AccessTokenLifetime,
		Claims:                   claims,
		AccessTokenType:          req.Client.AccessTokenType,
		Confirmation:             req.Confirmation,
		AllowedSigningAlgorithms: dedupe(signingAlgorithms),
	}, nil
}

// CreateSecurityToken serializes the token: identity tokens and JWT access
// tokens are signed, reference access tokens are stored and the opaque
// handle is returned instead.
func (s *DefaultTokenService) CreateSecurityToken(ctx context.Context, token *models.Token) (string, error) {
	if token.Type == oidc.TokenTypeAccess && token.AccessTokenType == oidc.AccessTokenReference {
		return s.references.StoreReferenceToken(ctx, token)
	}
	return s.creation.CreateToken(ctx, token)
}

// leftHalfHash implements the at_hash/c_hash construction: base64url of the
// left half of the SHA-256 digest.
func leftHalfHash(value string) string {
	digest := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(digest[:sha256.Size/2])
}

// HashState produces the s_hash value for a state parameter.
func HashState(state string) string {
	return leftHalfHash(state)
}

func newJti() string {
	return uuid.NewString()
}

func unixString(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
