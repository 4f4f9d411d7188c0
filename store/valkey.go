package store

import (
	"context"
	"encoding/json"
	"time"

	valkey "github.com/valkey-io/valkey-go"

	"github.com/legit-games/oidc-core/models"
)

// ValkeyGrantStore stores persisted grants in Valkey (Redis-compatible).
// Keys are already hashed handles; the store adds a prefix and secondary
// index sets per subject/client so filtered removal works without scans.
type ValkeyGrantStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyGrantStore creates a Valkey-backed grant store.
// addr example: "127.0.0.1:6379"; prefix helps namespace keys.
func NewValkeyGrantStore(addr string, prefix string) (*ValkeyGrantStore, error) {
	cli, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "grants:"
	}
	return &ValkeyGrantStore{client: cli, prefix: prefix}, nil
}

func (s *ValkeyGrantStore) key(k string) string { return s.prefix + "g:" + k }

func (s *ValkeyGrantStore) indexKey(subjectID, clientID string) string {
	return s.prefix + "idx:" + subjectID + ":" + clientID
}

// Store stores the grant JSON with TTL aligned to its expiration and indexes
// it under subject:client for filtered removal.
func (s *ValkeyGrantStore) Store(ctx context.Context, grant *models.PersistedGrant) error {
	data, err := json.Marshal(grant)
	if err != nil {
		return err
	}

	ttl := time.Duration(0)
	if grant.Expiration != nil {
		ttl = time.Until(*grant.Expiration)
		if ttl <= 0 {
			return nil
		}
	}

	cmd := s.client.B().Set().Key(s.key(grant.Key)).Value(string(data))
	if ttl > 0 {
		if err := s.client.Do(ctx, cmd.Ex(ttl).Build()).Error(); err != nil {
			return err
		}
	} else {
		if err := s.client.Do(ctx, cmd.Build()).Error(); err != nil {
			return err
		}
	}

	if grant.SubjectID != "" || grant.ClientID != "" {
		idx := s.indexKey(grant.SubjectID, grant.ClientID)
		if err := s.client.Do(ctx, s.client.B().Sadd().Key(idx).Member(grant.Key).Build()).Error(); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the grant or (nil, nil).
func (s *ValkeyGrantStore) Get(ctx context.Context, key string) (*models.PersistedGrant, error) {
	res := s.client.Do(ctx, s.client.B().Get().Key(s.key(key)).Build())
	if res.Error() != nil {
		if valkey.IsValkeyNil(res.Error()) {
			return nil, nil
		}
		return nil, res.Error()
	}
	val, err := res.ToString()
	if err != nil || val == "" {
		return nil, nil
	}
	var g models.PersistedGrant
	if err := json.Unmarshal([]byte(val), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetAll returns all grants matching the filter. The subject/client index is
// used when available; remaining filter fields are applied in memory.
func (s *ValkeyGrantStore) GetAll(ctx context.Context, filter models.PersistedGrantFilter) ([]*models.PersistedGrant, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	keys, err := s.memberKeys(ctx, filter)
	if err != nil {
		return nil, err
	}
	var out []*models.PersistedGrant
	for _, k := range keys {
		g, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if g != nil && matchesFilter(g, filter) {
			out = append(out, g)
		}
	}
	return out, nil
}

// Remove deletes the grant; missing is not an error.
func (s *ValkeyGrantStore) Remove(ctx context.Context, key string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(s.key(key)).Build()).Error()
}

// RemoveAll deletes all grants matching the filter.
func (s *ValkeyGrantStore) RemoveAll(ctx context.Context, filter models.PersistedGrantFilter) error {
	grants, err := s.GetAll(ctx, filter)
	if err != nil {
		return err
	}
	for _, g := range grants {
		if err := s.Remove(ctx, g.Key); err != nil {
			return err
		}
	}
	return nil
}

func (s *ValkeyGrantStore) memberKeys(ctx context.Context, filter models.PersistedGrantFilter) ([]string, error) {
	idx := s.indexKey(filter.SubjectID, filter.ClientID)
	res := s.client.Do(ctx, s.client.B().Smembers().Key(idx).Build())
	if res.Error() != nil {
		if valkey.IsValkeyNil(res.Error()) {
			return nil, nil
		}
		return nil, res.Error()
	}
	return res.AsStrSlice()
}

// ValkeyCache a Cache implementation on Valkey, shared by the throttling and
// replay services.
type ValkeyCache struct {
	client valkey.Client
	prefix string
}

// NewValkeyCache creates a Valkey-backed cache.
func NewValkeyCache(addr string, prefix string) (*ValkeyCache, error) {
	cli, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "cache:"
	}
	return &ValkeyCache{client: cli, prefix: prefix}, nil
}

// Get returns the value and whether it was present.
func (c *ValkeyCache) Get(ctx context.Context, key string) (string, bool, error) {
	res := c.client.Do(ctx, c.client.B().Get().Key(c.prefix+key).Build())
	if res.Error() != nil {
		if valkey.IsValkeyNil(res.Error()) {
			return "", false, nil
		}
		return "", false, res.Error()
	}
	val, err := res.ToString()
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores the value with a TTL.
func (c *ValkeyCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	cmd := c.client.B().Set().Key(c.prefix + key).Value(value)
	if ttl > 0 {
		return c.client.Do(ctx, cmd.Ex(ttl).Build()).Error()
	}
	return c.client.Do(ctx, cmd.Build()).Error()
}

// SetIfAbsent stores the value only when no live entry exists, atomically.
// Used by the replay cache so two concurrent uses of the same assertion id
// cannot both succeed.
func (c *ValkeyCache) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	cmd := c.client.B().Set().Key(c.prefix + key).Value(value).Nx()
	var err error
	if ttl > 0 {
		err = c.client.Do(ctx, cmd.Ex(ttl).Build()).Error()
	} else {
		err = c.client.Do(ctx, cmd.Build()).Error()
	}
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Remove deletes the entry.
func (c *ValkeyCache) Remove(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(c.prefix+key).Build()).Error()
}
