package store

import (
	"context"

	"github.com/legit-games/oidc-core/models"
)

// BackChannelAuthenticationRequestStore persistence of CIBA requests
type BackChannelAuthenticationRequestStore struct {
	inner *GrantStore[models.BackChannelAuthenticationRequest]
}

// NewBackChannelAuthenticationRequestStore create a backchannel request store
func NewBackChannelAuthenticationRequestStore(grants PersistedGrantStore) *BackChannelAuthenticationRequestStore {
	return &BackChannelAuthenticationRequestStore{
		inner: NewGrantStore[models.BackChannelAuthenticationRequest](GrantTypeBackChannelRequest, grants),
	}
}

func backchannelMetadata(request *models.BackChannelAuthenticationRequest) GrantMetadata {
	return GrantMetadata{
		ClientID:     request.ClientID,
		SubjectID:    request.SubjectID,
		SessionID:    request.SessionID,
		Description:  request.Description,
		CreationTime: request.CreationTime,
		Lifetime:     request.Lifetime,
	}
}

// CreateRequest stores the request and returns the auth_req_id handle.
func (s *BackChannelAuthenticationRequestStore) CreateRequest(ctx context.Context, request *models.BackChannelAuthenticationRequest) (string, error) {
	return s.inner.CreateItem(ctx, request, backchannelMetadata(request))
}

// GetByAuthenticationRequestID returns the request, or (nil, nil).
func (s *BackChannelAuthenticationRequestStore) GetByAuthenticationRequestID(ctx context.Context, id string) (*models.BackChannelAuthenticationRequest, error) {
	return s.inner.GetItem(ctx, id)
}

// Update replaces the stored request, used when the user answers.
func (s *BackChannelAuthenticationRequestStore) Update(ctx context.Context, id string, request *models.BackChannelAuthenticationRequest) error {
	return s.inner.StoreItem(ctx, id, request, backchannelMetadata(request))
}

// Remove deletes the request.
func (s *BackChannelAuthenticationRequestStore) Remove(ctx context.Context, id string) error {
	return s.inner.RemoveItem(ctx, id)
}
