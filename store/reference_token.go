package store

import (
	"context"

	"github.com/legit-games/oidc-core/models"
)

// ReferenceTokenStore persistence of reference access tokens
type ReferenceTokenStore struct {
	inner *GrantStore[models.Token]
}

// NewReferenceTokenStore create a reference token store
func NewReferenceTokenStore(grants PersistedGrantStore) *ReferenceTokenStore {
	return &ReferenceTokenStore{inner: NewGrantStore[models.Token](GrantTypeReferenceToken, grants)}
}

// StoreReferenceToken stores the token payload and returns the opaque handle
// handed to the client instead of a JWT.
func (s *ReferenceTokenStore) StoreReferenceToken(ctx context.Context, token *models.Token) (string, error) {
	return s.inner.CreateItem(ctx, token, GrantMetadata{
		ClientID:     token.ClientID,
		SubjectID:    token.SubjectID(),
		SessionID:    token.SessionID(),
		CreationTime: token.CreationTime,
		Lifetime:     token.Lifetime,
	})
}

// GetReferenceToken resolves a handle back to the token, or (nil, nil).
func (s *ReferenceTokenStore) GetReferenceToken(ctx context.Context, handle string) (*models.Token, error) {
	return s.inner.GetItem(ctx, handle)
}

// RemoveReferenceToken deletes the token for the handle.
func (s *ReferenceTokenStore) RemoveReferenceToken(ctx context.Context, handle string) error {
	return s.inner.RemoveItem(ctx, handle)
}

// RemoveReferenceTokens deletes all reference tokens for a subject/client pair.
func (s *ReferenceTokenStore) RemoveReferenceTokens(ctx context.Context, subjectID, clientID string) error {
	return s.inner.RemoveAll(ctx, models.PersistedGrantFilter{SubjectID: subjectID, ClientID: clientID})
}
