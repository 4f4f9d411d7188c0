package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/legit-games/oidc-core/models"
)

// NewMemoryGrantStore create an in-memory persisted grant store backed by
// buntdb, with native TTL eviction of expired grants.
func NewMemoryGrantStore() *MemoryGrantStore {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		panic(err)
	}
	return &MemoryGrantStore{db: db}
}

// MemoryGrantStore buntdb-backed grant store
type MemoryGrantStore struct {
	db *buntdb.DB
}

// Store stores the grant, honoring its expiration as the TTL.
func (s *MemoryGrantStore) Store(ctx context.Context, grant *models.PersistedGrant) error {
	data, err := json.Marshal(grant)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		var opts *buntdb.SetOptions
		if grant.Expiration != nil {
			ttl := time.Until(*grant.Expiration)
			if ttl <= 0 {
				return nil
			}
			opts = &buntdb.SetOptions{Expires: true, TTL: ttl}
		}
		_, _, err := tx.Set(grant.Key, string(data), opts)
		return err
	})
}

// Get returns the grant or (nil, nil) when absent or expired.
func (s *MemoryGrantStore) Get(ctx context.Context, key string) (*models.PersistedGrant, error) {
	var grant *models.PersistedGrant
	err := s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(key)
		if err != nil {
			if err == buntdb.ErrNotFound {
				return nil
			}
			return err
		}
		var g models.PersistedGrant
		if err := json.Unmarshal([]byte(val), &g); err != nil {
			return err
		}
		grant = &g
		return nil
	})
	return grant, err
}

// GetAll returns all grants matching the filter.
func (s *MemoryGrantStore) GetAll(ctx context.Context, filter models.PersistedGrantFilter) ([]*models.PersistedGrant, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var out []*models.PersistedGrant
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, val string) bool {
			var g models.PersistedGrant
			if json.Unmarshal([]byte(val), &g) == nil && matchesFilter(&g, filter) {
				out = append(out, &g)
			}
			return true
		})
	})
	return out, err
}

// Remove deletes the grant; missing keys are not an error.
func (s *MemoryGrantStore) Remove(ctx context.Context, key string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

// RemoveAll deletes all grants matching the filter.
func (s *MemoryGrantStore) RemoveAll(ctx context.Context, filter models.PersistedGrantFilter) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	var keys []string
	err := s.db.Update(func(tx *buntdb.Tx) error {
		if err := tx.Ascend("", func(key, val string) bool {
			var g models.PersistedGrant
			if json.Unmarshal([]byte(val), &g) == nil && matchesFilter(&g, filter) {
				keys = append(keys, key)
			}
			return true
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if _, err := tx.Delete(k); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
	return err
}

func matchesFilter(g *models.PersistedGrant, f models.PersistedGrantFilter) bool {
	if f.SubjectID != "" && g.SubjectID != f.SubjectID {
		return false
	}
	if f.SessionID != "" && g.SessionID != f.SessionID {
		return false
	}
	if f.ClientID != "" && g.ClientID != f.ClientID {
		return false
	}
	if f.Type != "" && g.Type != f.Type {
		return false
	}
	return true
}

// NewClientStore create client store (memory)
func NewClientStore(clients ...*models.Client) *InMemoryClientStore {
	s := &InMemoryClientStore{data: make(map[string]*models.Client)}
	for _, c := range clients {
		s.data[c.ClientID] = c
	}
	return s
}

// InMemoryClientStore client information store (in-memory)
type InMemoryClientStore struct {
	sync.RWMutex
	data map[string]*models.Client
}

// FindClientByID according to the ID for the client information
func (cs *InMemoryClientStore) FindClientByID(ctx context.Context, id string) (*models.Client, error) {
	cs.RLock()
	defer cs.RUnlock()
	return cs.data[id], nil
}

// Set set client information
func (cs *InMemoryClientStore) Set(cli *models.Client) {
	cs.Lock()
	defer cs.Unlock()
	cs.data[cli.ClientID] = cli
}

// NewResourceStore create resource store (memory)
func NewResourceStore(identity []*models.IdentityResource, apis []*models.ApiResource, scopes []*models.ApiScope) *InMemoryResourceStore {
	return &InMemoryResourceStore{identity: identity, apis: apis, scopes: scopes}
}

// InMemoryResourceStore resource configuration store (in-memory)
type InMemoryResourceStore struct {
	sync.RWMutex
	identity []*models.IdentityResource
	apis     []*models.ApiResource
	scopes   []*models.ApiScope
}

// FindResourcesByScopeName resolves scope names to the matching resources.
func (rs *InMemoryResourceStore) FindResourcesByScopeName(ctx context.Context, scopeNames []string) (*models.Resources, error) {
	rs.RLock()
	defer rs.RUnlock()

	names := make(map[string]bool, len(scopeNames))
	for _, n := range scopeNames {
		names[n] = true
	}

	out := &models.Resources{}
	for _, ir := range rs.identity {
		if names[ir.Name] {
			out.IdentityResources = append(out.IdentityResources, ir)
		}
	}
	for _, s := range rs.scopes {
		if names[s.Name] {
			out.ApiScopes = append(out.ApiScopes, s)
		}
	}
	for _, api := range rs.apis {
		for _, s := range api.Scopes {
			if names[s] {
				out.ApiResources = append(out.ApiResources, api)
				break
			}
		}
	}
	return out, nil
}

// FindApiScopesByName resolves api scope names.
func (rs *InMemoryResourceStore) FindApiScopesByName(ctx context.Context, scopeNames []string) ([]*models.ApiScope, error) {
	rs.RLock()
	defer rs.RUnlock()

	names := make(map[string]bool, len(scopeNames))
	for _, n := range scopeNames {
		names[n] = true
	}
	var out []*models.ApiScope
	for _, s := range rs.scopes {
		if names[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}

// GetAllResources returns the whole resource configuration.
func (rs *InMemoryResourceStore) GetAllResources(ctx context.Context) (*models.Resources, error) {
	rs.RLock()
	defer rs.RUnlock()
	return models.NewResources(rs.identity, rs.apis, rs.scopes), nil
}

// NewMemoryCache create an in-memory Cache with per-entry expiration.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryCacheEntry)}
}

// MemoryCache mutex-guarded map cache
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	value   string
	expires time.Time
}

// Get returns the value and whether a live entry was present.
func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores the value with a TTL; ttl <= 0 means no expiration.
func (c *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryCacheEntry{value: value}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// Remove deletes the entry.
func (c *MemoryCache) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}
