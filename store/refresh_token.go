package store

import (
	"context"

	"github.com/legit-games/oidc-core/models"
)

// RefreshTokenStore persistence of refresh tokens
type RefreshTokenStore struct {
	inner *GrantStore[models.RefreshToken]
}

// NewRefreshTokenStore create a refresh token store
func NewRefreshTokenStore(grants PersistedGrantStore) *RefreshTokenStore {
	return &RefreshTokenStore{inner: NewGrantStore[models.RefreshToken](GrantTypeRefreshToken, grants)}
}

func (s *RefreshTokenStore) metadata(token *models.RefreshToken) GrantMetadata {
	meta := GrantMetadata{
		ClientID:     token.ClientID(),
		CreationTime: token.CreationTime,
		Lifetime:     token.Lifetime,
	}
	if token.Subject != nil {
		meta.SubjectID = token.Subject.SubjectID
		meta.SessionID = token.Subject.SessionID
	}
	return meta
}

// StoreRefreshToken stores the token and returns its opaque handle.
func (s *RefreshTokenStore) StoreRefreshToken(ctx context.Context, token *models.RefreshToken) (string, error) {
	return s.inner.CreateItem(ctx, token, s.metadata(token))
}

// UpdateRefreshToken replaces the stored token under an existing handle,
// used for sliding expiration and consumed-time updates.
func (s *RefreshTokenStore) UpdateRefreshToken(ctx context.Context, handle string, token *models.RefreshToken) error {
	return s.inner.StoreItem(ctx, handle, token, s.metadata(token))
}

// GetRefreshToken returns the token for the handle, or (nil, nil).
func (s *RefreshTokenStore) GetRefreshToken(ctx context.Context, handle string) (*models.RefreshToken, error) {
	return s.inner.GetItem(ctx, handle)
}

// RemoveRefreshToken deletes the token.
func (s *RefreshTokenStore) RemoveRefreshToken(ctx context.Context, handle string) error {
	return s.inner.RemoveItem(ctx, handle)
}

// RemoveRefreshTokens deletes all refresh tokens for a subject/client pair.
func (s *RefreshTokenStore) RemoveRefreshTokens(ctx context.Context, subjectID, clientID string) error {
	return s.inner.RemoveAll(ctx, models.PersistedGrantFilter{SubjectID: subjectID, ClientID: clientID})
}
