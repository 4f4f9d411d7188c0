package models

import (
	"time"

	oidc "github.com/legit-games/oidc-core"
)

// Secret a stored credential for a client or api resource
type Secret struct {
	Value       string
	Type        string
	Description string
	// Expiration zero value means the secret never expires.
	Expiration time.Time
}

// NewSharedSecret create a shared secret; value is expected to be a digest
// produced by one of the supported hashing schemes.
func NewSharedSecret(value string) Secret {
	return Secret{Value: value, Type: oidc.SecretTypeSharedSecret}
}

// IsExpired reports whether the secret has an expiration in the past.
func (s Secret) IsExpired(now time.Time) bool {
	return !s.Expiration.IsZero() && s.Expiration.Before(now)
}

// Claim a single name/value claim
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}
