package store

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/legit-games/oidc-core/models"
)

// grant type tags for persisted grants
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeReferenceToken    = "reference_token"
	GrantTypeUserConsent       = "user_consent"
	GrantTypeDeviceCode        = "device_code"
	GrantTypeUserCode          = "user_code"
	GrantTypeBackChannelRequest = "ciba"
)

// hashedKeyVersion is appended to newly created handles as "-{version}".
// Handles without a version suffix are treated as legacy and hashed with the
// old scheme, retained for the migration window.
const hashedKeyVersion = 1

// NewHandle returns a fresh opaque grant handle in the current format.
func NewHandle() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + "-1"
}

// handleVersion parses the format version tag off a handle. Legacy handles
// carry no tag and report 0.
func handleVersion(handle string) int {
	if idx := strings.LastIndex(handle, "-"); idx >= 0 {
		switch handle[idx+1:] {
		case "1":
			return 1
		}
	}
	return 0
}

// HashedKey derives the storage key for a grant handle. Current-format
// handles use hex SHA-256 over "handle:grantType" so different grant types
// can never collide on the same handle. Legacy handles use the old
// base64 SHA-256 of the bare handle.
func HashedKey(handle, grantType string) string {
	if handleVersion(handle) >= hashedKeyVersion {
		sum := sha256.Sum256([]byte(handle + ":" + grantType))
		return hex.EncodeToString(sum[:])
	}
	sum := sha256.Sum256([]byte(handle))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// GrantStore persists one grant record type against a PersistedGrantStore,
// keyed by hashed opaque handles.
type GrantStore[T any] struct {
	grantType string
	store     PersistedGrantStore
}

// NewGrantStore create a grant store for the given grant type tag
func NewGrantStore[T any](grantType string, store PersistedGrantStore) *GrantStore[T] {
	return &GrantStore[T]{grantType: grantType, store: store}
}

// GrantMetadata indexing metadata stored next to the serialized payload
type GrantMetadata struct {
	ClientID     string
	SubjectID    string
	SessionID    string
	Description  string
	CreationTime time.Time
	Lifetime     time.Duration
}

// CreateItem stores the item under a freshly generated handle and returns
// the handle.
func (s *GrantStore[T]) CreateItem(ctx context.Context, item *T, meta GrantMetadata) (string, error) {
	handle := NewHandle()
	if err := s.StoreItem(ctx, handle, item, meta); err != nil {
		return "", err
	}
	return handle, nil
}

// StoreItem serializes and stores the item under the given handle.
func (s *GrantStore[T]) StoreItem(ctx context.Context, handle string, item *T, meta GrantMetadata) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}

	grant := &models.PersistedGrant{
		Key:          HashedKey(handle, s.grantType),
		Type:         s.grantType,
		ClientID:     meta.ClientID,
		SubjectID:    meta.SubjectID,
		SessionID:    meta.SessionID,
		Description:  meta.Description,
		CreationTime: meta.CreationTime,
		Data:         string(data),
	}
	if meta.Lifetime > 0 {
		exp := meta.CreationTime.Add(meta.Lifetime)
		grant.Expiration = &exp
	}
	return s.store.Store(ctx, grant)
}

// GetItem retrieves and deserializes the item, or (nil, nil) when the handle
// does not resolve to a grant of this store's type.
func (s *GrantStore[T]) GetItem(ctx context.Context, handle string) (*T, error) {
	grant, err := s.store.Get(ctx, HashedKey(handle, s.grantType))
	if err != nil {
		return nil, err
	}
	if grant == nil || grant.Type != s.grantType {
		return nil, nil
	}

	var item T
	if err := json.Unmarshal([]byte(grant.Data), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveItem deletes the grant for the handle. Missing grants are not an error.
func (s *GrantStore[T]) RemoveItem(ctx context.Context, handle string) error {
	return s.store.Remove(ctx, HashedKey(handle, s.grantType))
}

// RemoveAll deletes all grants of this store's type matching the filter.
func (s *GrantStore[T]) RemoveAll(ctx context.Context, filter models.PersistedGrantFilter) error {
	filter.Type = s.grantType
	return s.store.RemoveAll(ctx, filter)
}
