package services

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningCredentials the key material used to sign tokens
type SigningCredentials struct {
	KeyID  string
	Method jwt.SigningMethod
	Key    crypto.PrivateKey
}

// ValidationKey a public key accepted for signature validation
type ValidationKey struct {
	KeyID     string
	Algorithm string
	Key       crypto.PublicKey
}

// SigningCredentialStore provides the active signing credential.
type SigningCredentialStore interface {
	GetSigningCredentials(ctx context.Context) (*SigningCredentials, error)
}

// ValidationKeysStore provides all currently accepted validation keys.
type ValidationKeysStore interface {
	GetValidationKeys(ctx context.Context) ([]ValidationKey, error)
}

// NewRSASigningCredentialStore wraps an RSA private key as RS256 material.
// kid empty generates a random one.
func NewRSASigningCredentialStore(key *rsa.PrivateKey, kid string) *InMemoryKeyStore {
	if kid == "" {
		b := make([]byte, 8)
		_, _ = rand.Read(b)
		kid = hex.EncodeToString(b)
	}
	return &InMemoryKeyStore{
		credentials: &SigningCredentials{KeyID: kid, Method: jwt.SigningMethodRS256, Key: key},
		validation:  []ValidationKey{{KeyID: kid, Algorithm: "RS256", Key: &key.PublicKey}},
	}
}

// NewRSASigningCredentialStoreFromPEM parses an RSA private key PEM.
func NewRSASigningCredentialStoreFromPEM(pemBytes []byte, kid string) (*InMemoryKeyStore, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, err
	}
	return NewRSASigningCredentialStore(key, kid), nil
}

// NewGeneratedSigningCredentialStore generates a fresh RSA key; useful for
// tests and ephemeral dev servers.
func NewGeneratedSigningCredentialStore() (*InMemoryKeyStore, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return NewRSASigningCredentialStore(key, ""), nil
}

// InMemoryKeyStore static signing and validation key material
type InMemoryKeyStore struct {
	credentials *SigningCredentials
	validation  []ValidationKey
}

// GetSigningCredentials returns the configured signing credential.
func (s *InMemoryKeyStore) GetSigningCredentials(ctx context.Context) (*SigningCredentials, error) {
	return s.credentials, nil
}

// GetValidationKeys returns the configured validation keys.
func (s *InMemoryKeyStore) GetValidationKeys(ctx context.Context) ([]ValidationKey, error) {
	return s.validation, nil
}

// CachingValidationKeysStore a single-slot cache in front of a (typically
// remote) validation key store, with absolute expiration.
type CachingValidationKeysStore struct {
	inner ValidationKeysStore
	ttl   time.Duration

	mu      sync.Mutex
	keys    []ValidationKey
	expires time.Time
}

// NewCachingValidationKeysStore create a caching wrapper with the given TTL.
func NewCachingValidationKeysStore(inner ValidationKeysStore, ttl time.Duration) *CachingValidationKeysStore {
	return &CachingValidationKeysStore{inner: inner, ttl: ttl}
}

// GetValidationKeys returns cached keys, refreshing when the slot expired.
func (s *CachingValidationKeysStore) GetValidationKeys(ctx context.Context) ([]ValidationKey, error) {
	s.mu.Lock()
	if s.keys != nil && time.Now().Before(s.expires) {
		keys := s.keys
		s.mu.Unlock()
		return keys, nil
	}
	s.mu.Unlock()

	keys, err := s.inner.GetValidationKeys(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.keys = keys
	s.expires = time.Now().Add(s.ttl)
	s.mu.Unlock()
	return keys, nil
}
