package tokens

import (
	"context"
	"log"
	"time"

	oidc "github.com/legit-games/oidc-core"
	errs "github.com/legit-games/oidc-core/errors"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
	"github.com/legit-games/oidc-core/store"
)

// DefaultRefreshTokenService manages refresh token issuance, validation and
// rotation according to the client's usage and expiration settings.
type DefaultRefreshTokenService struct {
	store   *store.RefreshTokenStore
	profile services.ProfileService
	now     func() time.Time
}

// NewRefreshTokenService create a refresh token service
func NewRefreshTokenService(tokens *store.RefreshTokenStore, profile services.ProfileService) *DefaultRefreshTokenService {
	if profile == nil {
		profile = services.DefaultProfileService{}
	}
	return &DefaultRefreshTokenService{store: tokens, profile: profile, now: time.Now}
}

// Store exposes the backing store for revocation and session cleanup.
func (s *DefaultRefreshTokenService) Store() *store.RefreshTokenStore {
	return s.store
}

// ValidateRefreshToken checks the handle against the store and the client it
// was issued to. All failures surface as invalid_grant; detail goes to the log.
func (s *DefaultRefreshTokenService) ValidateRefreshToken(ctx context.Context, handle string, client *models.Client) (*models.RefreshToken, error) {
	token, err := s.store.GetRefreshToken(ctx, handle)
	if err != nil {
		return nil, err
	}
	if token == nil {
		log.Printf("refresh token not found for client %s", client.ClientID)
		return nil, errs.ErrInvalidGrant
	}
	if token.ClientID() != client.ClientID {
		log.Printf("refresh token client mismatch: issued to %s, presented by %s", token.ClientID(), client.ClientID)
		return nil, errs.ErrInvalidGrant
	}
	if s.now().After(token.Expiration()) {
		log.Printf("refresh token expired for client %s", client.ClientID)
		_ = s.store.RemoveRefreshToken(ctx, handle)
		return nil, errs.ErrInvalidGrant
	}
	if client.RefreshTokenUsage == oidc.TokenUsageOneTimeOnly && token.ConsumedTime != nil {
		// Presenting an already rotated token is the classic replay signal;
		// revoke the whole chain.
		log.Printf("consumed refresh token presented by client %s, revoking", client.ClientID)
		_ = s.store.RemoveRefreshToken(ctx, handle)
		return nil, errs.ErrInvalidGrant
	}

	if token.Subject != nil {
		active, err := s.profile.IsActive(ctx, &services.IsActiveRequest{
			Subject: token.Subject,
			Client:  client,
			Caller:  "refresh_token_validation",
		})
		if err != nil {
			return nil, err
		}
		if !active {
			log.Printf("subject %s inactive during refresh for client %s", token.SubjectID(), client.ClientID)
			return nil, errs.ErrInvalidGrant
		}
	}

	return token, nil
}

// CreateRefreshToken issues a new refresh token for the access token and
// returns its handle.
func (s *DefaultRefreshTokenService) CreateRefreshToken(ctx context.Context, subject *models.Subject, accessToken *models.Token, client *models.Client, resourceIndicators []string) (string, error) {
	lifetime := client.SlidingRefreshTokenLifetime
	if client.RefreshTokenExpiration == oidc.TokenExpirationAbsolute {
		lifetime = client.AbsoluteRefreshTokenLifetime
	}
	token := &models.RefreshToken{
		CreationTime:                 s.now(),
		Lifetime:                     lifetime,
		AccessToken:                  accessToken,
		Subject:                      subject,
		AuthorizedResourceIndicators: resourceIndicators,
		Version:                      1,
	}
	return s.store.StoreRefreshToken(ctx, token)
}

// UpdateRefreshToken applies the client's rotation policy after a successful
// refresh and returns the handle the client should use next time.
func (s *DefaultRefreshTokenService) UpdateRefreshToken(ctx context.Context, handle string, token *models.RefreshToken, client *models.Client, newAccessToken *models.Token) (string, error) {
	now := s.now()
	needsUpdate := false

	if client.UpdateAccessTokenClaimsOnRefresh && newAccessToken != nil {
		token.AccessToken = newAccessToken
		needsUpdate = true
	}

	if client.RefreshTokenExpiration == oidc.TokenExpirationSliding {
		// Slide forward from now, never past the absolute cap measured from
		// the original creation time.
		extended := now.Sub(token.CreationTime) + client.SlidingRefreshTokenLifetime
		if client.AbsoluteRefreshTokenLifetime > 0 && extended > client.AbsoluteRefreshTokenLifetime {
			extended = client.AbsoluteRefreshTokenLifetime
		}
		if extended > token.Lifetime {
			token.Lifetime = extended
			needsUpdate = true
		}
	}

	if client.RefreshTokenUsage == oidc.TokenUsageOneTimeOnly {
		consumed := *token
		consumed.ConsumedTime = &now
		if err := s.store.UpdateRefreshToken(ctx, handle, &consumed); err != nil {
			return "", err
		}
		rotated := *token
		rotated.ConsumedTime = nil
		return s.store.StoreRefreshToken(ctx, &rotated)
	}

	if needsUpdate {
		if err := s.store.UpdateRefreshToken(ctx, handle, token); err != nil {
			return "", err
		}
	}
	return handle, nil
}
