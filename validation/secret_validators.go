package validation

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
)

// SecretValidationResult outcome of validating a parsed secret
type SecretValidationResult struct {
	Success bool
	// Confirmation optional cnf value carried into issued tokens.
	Confirmation string
}

// SecretValidator validates a parsed secret against the stored secrets of a
// client or api resource.
type SecretValidator interface {
	Validate(ctx context.Context, secrets []models.Secret, parsed *ParsedSecret) (*SecretValidationResult, error)
}

// SecretValidators runs the chain; the first validator reporting success wins.
type SecretValidators struct {
	validators []SecretValidator
}

// NewSecretValidators create the aggregate validator. With no explicit
// validators the standard chain (hashed shared secret, bcrypt shared secret,
// private key jwt) is installed.
func NewSecretValidators(options *oidc.Options, replay services.ReplayCache, validators ...SecretValidator) *SecretValidators {
	if len(validators) == 0 {
		validators = []SecretValidator{
			&HashedSharedSecretValidator{},
			&BcryptSharedSecretValidator{},
			NewPrivateKeyJwtSecretValidator(options, replay),
		}
	}
	return &SecretValidators{validators: validators}
}

// Validate runs the chain against non-expired stored secrets.
func (v *SecretValidators) Validate(ctx context.Context, secrets []models.Secret, parsed *ParsedSecret) (*SecretValidationResult, error) {
	now := time.Now()
	var live []models.Secret
	for _, s := range secrets {
		if s.IsExpired(now) {
			log.Printf("stored secret (%s) is expired, skipping", s.Description)
			continue
		}
		live = append(live, s)
	}

	for _, validator := range v.validators {
		result, err := validator.Validate(ctx, live, parsed)
		if err != nil {
			return nil, err
		}
		if result.Success {
			return result, nil
		}
	}
	return &SecretValidationResult{}, nil
}

// HashedSharedSecretValidator compares the presented shared secret against
// stored SHA-256 or SHA-512 base64 digests using constant-time comparison.
type HashedSharedSecretValidator struct{}

// Validate checks the parsed secret against all stored shared secrets.
func (v *HashedSharedSecretValidator) Validate(ctx context.Context, secrets []models.Secret, parsed *ParsedSecret) (*SecretValidationResult, error) {
	fail := &SecretValidationResult{}
	if parsed.Type != oidc.ParsedSecretSharedSecret || parsed.Credential == "" {
		return fail, nil
	}

	sha256Digest := sha256.Sum256([]byte(parsed.Credential))
	sha512Digest := sha512.Sum512([]byte(parsed.Credential))

	for _, secret := range secrets {
		if secret.Type != oidc.SecretTypeSharedSecret {
			continue
		}
		stored, err := base64.StdEncoding.DecodeString(secret.Value)
		if err != nil {
			continue
		}
		var presented []byte
		switch len(stored) {
		case sha256.Size:
			presented = sha256Digest[:]
		case sha512.Size:
			presented = sha512Digest[:]
		default:
			log.Printf("stored shared secret has unexpected digest length %d", len(stored))
			continue
		}
		if subtle.ConstantTimeCompare(stored, presented) == 1 {
			return &SecretValidationResult{Success: true}, nil
		}
	}
	return fail, nil
}

// HashSharedSecret produces the stored form of a shared secret (base64 of
// SHA-256), for use when seeding client configuration.
func HashSharedSecret(plain string) string {
	digest := sha256.Sum256([]byte(plain))
	return base64.StdEncoding.EncodeToString(digest[:])
}

// BcryptSharedSecretValidator compares the presented shared secret against
// stored bcrypt hashes. Stored values are recognized by the $2 prefix.
type BcryptSharedSecretValidator struct{}

// Validate checks the parsed secret against all stored bcrypt secrets.
func (v *BcryptSharedSecretValidator) Validate(ctx context.Context, secrets []models.Secret, parsed *ParsedSecret) (*SecretValidationResult, error) {
	fail := &SecretValidationResult{}
	if parsed.Type != oidc.ParsedSecretSharedSecret || parsed.Credential == "" {
		return fail, nil
	}
	for _, secret := range secrets {
		if secret.Type != oidc.SecretTypeSharedSecret || !strings.HasPrefix(secret.Value, "$2") {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(secret.Value), []byte(parsed.Credential)) == nil {
			return &SecretValidationResult{Success: true}, nil
		}
	}
	return fail, nil
}

// jtiReplayPurpose tags replay cache entries for client assertions.
const jtiReplayPurpose = "client_assertion_jti"

// jtiReplayLeeway extends the replay window beyond the assertion's own
// expiration to absorb clock skew between parties.
const jtiReplayLeeway = 5 * time.Minute

// PrivateKeyJwtSecretValidator validates a private_key_jwt client assertion:
// signature against the client's registered keys, iss == sub == client id,
// audience bound to the token endpoint, exp and jti required, jti single-use.
type PrivateKeyJwtSecretValidator struct {
	options *oidc.Options
	replay  services.ReplayCache
	now     func() time.Time
}

// NewPrivateKeyJwtSecretValidator create the assertion validator
func NewPrivateKeyJwtSecretValidator(options *oidc.Options, replay services.ReplayCache) *PrivateKeyJwtSecretValidator {
	return &PrivateKeyJwtSecretValidator{options: options, replay: replay, now: time.Now}
}

// Validate checks the assertion. Any failure reason is logged; callers see
// only a generic failure.
func (v *PrivateKeyJwtSecretValidator) Validate(ctx context.Context, secrets []models.Secret, parsed *ParsedSecret) (*SecretValidationResult, error) {
	fail := &SecretValidationResult{}
	if parsed.Type != oidc.ParsedSecretJwtBearer || parsed.Credential == "" {
		return fail, nil
	}

	keys := trustedClientKeys(secrets)
	if len(keys) == 0 {
		log.Printf("client %s has no registered keys for private_key_jwt", parsed.ID)
		return fail, nil
	}

	issuer := strings.TrimRight(v.options.IssuerURI, "/")
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.options.JwtValidationClockSkew),
		jwt.WithIssuer(parsed.ID),
		jwt.WithSubject(parsed.ID),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(parsed.Credential, claims, func(token *jwt.Token) (interface{}, error) {
		if kid, ok := token.Header["kid"].(string); ok && kid != "" {
			for _, k := range keys {
				if k.KeyID == kid {
					return k.Key, nil
				}
			}
		}
		if len(keys) == 1 {
			return keys[0].Key, nil
		}
		return nil, jwt.ErrTokenUnverifiable
	})
	if err != nil {
		log.Printf("client assertion validation failed for %s: %v", parsed.ID, err)
		return fail, nil
	}

	if !v.audienceAccepted(claims, issuer) {
		log.Printf("client assertion for %s has invalid audience", parsed.ID)
		return fail, nil
	}

	jti, _ := claims[oidc.ClaimJwtID].(string)
	if jti == "" {
		log.Printf("client assertion for %s is missing jti", parsed.ID)
		return fail, nil
	}

	seen, err := v.replay.Exists(ctx, jtiReplayPurpose, jti)
	if err != nil {
		return nil, err
	}
	if seen {
		log.Printf("client assertion jti replay detected for %s", parsed.ID)
		return fail, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fail, nil
	}
	if err := v.replay.Add(ctx, jtiReplayPurpose, jti, exp.Time.Add(jtiReplayLeeway)); err != nil {
		return nil, err
	}

	return &SecretValidationResult{Success: true}, nil
}

func (v *PrivateKeyJwtSecretValidator) audienceAccepted(claims jwt.MapClaims, issuer string) bool {
	audiences, err := claims.GetAudience()
	if err != nil {
		return false
	}
	accepted := map[string]bool{
		issuer:                    true,
		issuer + "/":              true,
		issuer + "/connect/token": true,
	}
	for _, aud := range audiences {
		if accepted[aud] {
			return true
		}
	}
	return false
}

// trustedClientKeys resolves stored JWK and base64 certificate secrets into
// validation keys. Only RSA keys are supported; there is no JOSE library in
// the dependency set and registered client keys are RSA in practice.
func trustedClientKeys(secrets []models.Secret) []services.ValidationKey {
	var out []services.ValidationKey
	for _, secret := range secrets {
		switch secret.Type {
		case oidc.SecretTypeJSONWebKey:
			if key, kid, ok := parseRSAJwk([]byte(secret.Value)); ok {
				out = append(out, services.ValidationKey{KeyID: kid, Algorithm: "RS256", Key: key})
			}
		case oidc.SecretTypeX509CertificateB64:
			der, err := base64.StdEncoding.DecodeString(secret.Value)
			if err != nil {
				continue
			}
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				continue
			}
			if pub, ok := cert.PublicKey.(*rsa.PublicKey); ok {
				out = append(out, services.ValidationKey{Algorithm: "RS256", Key: pub})
			}
		}
	}
	return out
}

func parseRSAJwk(raw []byte) (*rsa.PublicKey, string, bool) {
	var jwk struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	}
	if err := json.Unmarshal(raw, &jwk); err != nil || jwk.Kty != "RSA" {
		return nil, "", false
	}
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, "", false
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, "", false
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() <= 0 {
		return nil, "", false
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, jwk.Kid, true
}
