package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/legit-games/oidc-core/models"
)

// UserConsentStore persistence of remembered consent decisions. Unlike the
// handle-keyed stores, consent is keyed deterministically by the
// subject/client pair so a later decision replaces the earlier one.
type UserConsentStore struct {
	grants PersistedGrantStore
}

// NewUserConsentStore create a user consent store
func NewUserConsentStore(grants PersistedGrantStore) *UserConsentStore {
	return &UserConsentStore{grants: grants}
}

func consentKey(subjectID, clientID string) string {
	sum := sha256.Sum256([]byte(subjectID + "|" + clientID + ":" + GrantTypeUserConsent))
	return hex.EncodeToString(sum[:])
}

// StoreUserConsent stores or replaces the consent for its subject/client pair.
func (s *UserConsentStore) StoreUserConsent(ctx context.Context, consent *models.Consent) error {
	data, err := json.Marshal(consent)
	if err != nil {
		return err
	}
	grant := &models.PersistedGrant{
		Key:          consentKey(consent.SubjectID, consent.ClientID),
		Type:         GrantTypeUserConsent,
		SubjectID:    consent.SubjectID,
		ClientID:     consent.ClientID,
		CreationTime: consent.CreationTime,
		Expiration:   consent.Expiration,
		Data:         string(data),
	}
	return s.grants.Store(ctx, grant)
}

// GetUserConsent returns the consent for the pair, or (nil, nil).
func (s *UserConsentStore) GetUserConsent(ctx context.Context, subjectID, clientID string) (*models.Consent, error) {
	grant, err := s.grants.Get(ctx, consentKey(subjectID, clientID))
	if err != nil {
		return nil, err
	}
	if grant == nil || grant.Type != GrantTypeUserConsent {
		return nil, nil
	}
	var consent models.Consent
	if err := json.Unmarshal([]byte(grant.Data), &consent); err != nil {
		return nil, err
	}
	return &consent, nil
}

// RemoveUserConsent deletes the consent for the pair.
func (s *UserConsentStore) RemoveUserConsent(ctx context.Context, subjectID, clientID string) error {
	return s.grants.Remove(ctx, consentKey(subjectID, clientID))
}
