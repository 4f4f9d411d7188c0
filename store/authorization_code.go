package store

import (
	"context"

	"github.com/legit-games/oidc-core/models"
)

// AuthorizationCodeStore persistence of authorization codes
type AuthorizationCodeStore struct {
	inner *GrantStore[models.AuthorizationCode]
}

// NewAuthorizationCodeStore create an authorization code store
func NewAuthorizationCodeStore(grants PersistedGrantStore) *AuthorizationCodeStore {
	return &AuthorizationCodeStore{inner: NewGrantStore[models.AuthorizationCode](GrantTypeAuthorizationCode, grants)}
}

// StoreAuthorizationCode stores the code and returns its opaque handle.
func (s *AuthorizationCodeStore) StoreAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) (string, error) {
	meta := GrantMetadata{
		ClientID:     code.ClientID,
		Description:  code.Description,
		CreationTime: code.CreationTime,
		Lifetime:     code.Lifetime,
	}
	if code.Subject != nil {
		meta.SubjectID = code.Subject.SubjectID
		meta.SessionID = code.Subject.SessionID
	}
	return s.inner.CreateItem(ctx, code, meta)
}

// GetAuthorizationCode returns the code for the handle, or (nil, nil).
func (s *AuthorizationCodeStore) GetAuthorizationCode(ctx context.Context, handle string) (*models.AuthorizationCode, error) {
	return s.inner.GetItem(ctx, handle)
}

// RemoveAuthorizationCode deletes the code; codes are single-use and the
// token request validator removes them immediately after lookup.
func (s *AuthorizationCodeStore) RemoveAuthorizationCode(ctx context.Context, handle string) error {
	return s.inner.RemoveItem(ctx, handle)
}
