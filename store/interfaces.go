// Package store provides grant persistence: the hashed-key grant store
// abstraction, the concrete per-grant-type stores, and in-memory, Postgres
// and Valkey backends.
package store

import (
	"context"
	"time"

	"github.com/legit-games/oidc-core/models"
)

// ClientStore retrieval of client configuration
type ClientStore interface {
	// FindClientByID returns the client or (nil, nil) when unknown.
	FindClientByID(ctx context.Context, clientID string) (*models.Client, error)
}

// ResourceStore retrieval of resource configuration
type ResourceStore interface {
	// FindResourcesByScopeName returns all identity resources, api scopes and
	// backing api resources matching any of the scope names. Disabled
	// resources are included; callers filter.
	FindResourcesByScopeName(ctx context.Context, scopeNames []string) (*models.Resources, error)
	// FindApiScopesByName returns the api scopes matching the names.
	FindApiScopesByName(ctx context.Context, scopeNames []string) ([]*models.ApiScope, error)
	// GetAllResources returns everything; used by discovery.
	GetAllResources(ctx context.Context) (*models.Resources, error)
}

// PersistedGrantStore persistence of hashed-key grants
type PersistedGrantStore interface {
	Store(ctx context.Context, grant *models.PersistedGrant) error
	// Get returns the grant or (nil, nil) when absent.
	Get(ctx context.Context, key string) (*models.PersistedGrant, error)
	GetAll(ctx context.Context, filter models.PersistedGrantFilter) ([]*models.PersistedGrant, error)
	Remove(ctx context.Context, key string) error
	RemoveAll(ctx context.Context, filter models.PersistedGrantFilter) error
}

// Cache a key-value contract with expiration, backing the throttling and
// replay services and the key material cache.
type Cache interface {
	// Get returns the value and whether it was present. Absence is not an error.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}
