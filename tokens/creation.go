package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
)

// DefaultTokenCreationService signs assembled tokens as JWTs using the
// configured signing credential.
type DefaultTokenCreationService struct {
	options     *oidc.Options
	credentials services.SigningCredentialStore
	now         func() time.Time
}

// NewTokenCreationService create a token creation service
func NewTokenCreationService(options *oidc.Options, credentials services.SigningCredentialStore) *DefaultTokenCreationService {
	return &DefaultTokenCreationService{options: options, credentials: credentials, now: time.Now}
}

// CreateToken serializes and signs the token.
func (s *DefaultTokenCreationService) CreateToken(ctx context.Context, token *models.Token) (string, error) {
	creds, err := s.credentials.GetSigningCredentials(ctx)
	if err != nil {
		return "", err
	}

	issued := token.CreationTime
	if issued.IsZero() {
		issued = s.now()
	}
	claims := jwt.MapClaims{
		oidc.ClaimIssuer:     token.Issuer,
		oidc.ClaimIssuedAt:   issued.Unix(),
		oidc.ClaimNotBefore:  issued.Unix(),
		oidc.ClaimExpiration: issued.Add(token.Lifetime).Unix(),
	}
	switch len(token.Audiences) {
	case 0:
	case 1:
		claims[oidc.ClaimAudience] = token.Audiences[0]
	default:
		claims[oidc.ClaimAudience] = token.Audiences
	}

	var scopes []string
	for _, c := range token.Claims {
		if c.Type == oidc.ClaimScope {
			scopes = append(scopes, c.Value)
			continue
		}
		setClaim(claims, c)
	}
	if len(scopes) > 0 {
		if s.options.EmitScopesAsSpaceDelimitedString {
			claims[oidc.ClaimScope] = joinScopes(scopes)
		} else {
			claims[oidc.ClaimScope] = scopes
		}
	}
	if token.Confirmation != "" {
		var cnf map[string]interface{}
		if err := json.Unmarshal([]byte(token.Confirmation), &cnf); err != nil {
			return "", fmt.Errorf("malformed confirmation claim: %w", err)
		}
		claims[oidc.ClaimConfirmation] = cnf
	}

	signed := jwt.NewWithClaims(creds.Method, claims)
	if creds.KeyID != "" {
		signed.Header["kid"] = creds.KeyID
	}
	if token.Type == oidc.TokenTypeAccess {
		signed.Header["typ"] = s.options.AccessTokenJwtType
	}

	return signed.SignedString(creds.Key)
}

// setClaim folds a claim into the map. Repeated claim types collect into a
// list; numeric protocol claims keep their numeric form.
func setClaim(claims jwt.MapClaims, c models.Claim) {
	value := claimValue(c)
	existing, ok := claims[c.Type]
	if !ok {
		claims[c.Type] = value
		return
	}
	if list, isList := existing.([]interface{}); isList {
		claims[c.Type] = append(list, value)
		return
	}
	claims[c.Type] = []interface{}{existing, value}
}

func claimValue(c models.Claim) interface{} {
	switch c.Type {
	case oidc.ClaimAuthenticationTime:
		if n, err := strconv.ParseInt(c.Value, 10, 64); err == nil {
			return n
		}
	}
	return c.Value
}

func joinScopes(scopes []string) string {
	out := ""
	for i, s := range scopes {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}
