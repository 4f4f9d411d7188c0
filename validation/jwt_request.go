package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
)

// JwtRequestValidator validates JAR request objects against the client's
// registered keys and flattens their claims.
type JwtRequestValidator struct {
	options *oidc.Options
}

// NewJwtRequestValidator create a request object validator
func NewJwtRequestValidator(options *oidc.Options) *JwtRequestValidator {
	return &JwtRequestValidator{options: options}
}

// Validate verifies the request object's signature and returns its claims as
// strings, with registered JWT claims (iss, exp, ...) filtered out. Nested
// claim values are flattened to their JSON encoding.
func (v *JwtRequestValidator) Validate(ctx context.Context, client *models.Client, rawJwt string) (map[string]string, error) {
	keys := trustedClientKeys(client.ClientSecrets)
	if len(keys) == 0 {
		return nil, fmt.Errorf("client %s has no registered keys for request objects", client.ClientID)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}),
		jwt.WithLeeway(v.options.JwtValidationClockSkew),
	)
	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(rawJwt, claims, func(token *jwt.Token) (interface{}, error) {
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
		return nil, fmt.Errorf("request object validation failed: %w", err)
	}

	filtered := make(map[string]bool, len(oidc.JwtRequestClaimTypesFilter))
	for _, t := range oidc.JwtRequestClaimTypesFilter {
		filtered[t] = true
	}

	out := make(map[string]string, len(claims))
	for name, value := range claims {
		if filtered[name] {
			continue
		}
		out[name] = stringifyClaim(value)
	}
	return out, nil
}

func stringifyClaim(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// JwtRequestURILoader fetches a request object referenced by request_uri.
type JwtRequestURILoader struct {
	client  *http.Client
	options *oidc.Options
}

// NewJwtRequestURILoader create a loader; a nil http client uses the default.
func NewJwtRequestURILoader(httpClient *http.Client, options *oidc.Options) *JwtRequestURILoader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &JwtRequestURILoader{client: httpClient, options: options}
}

// Load fetches the request object, bounding the response body by the jwt
// length restriction.
func (l *JwtRequestURILoader) Load(ctx context.Context, requestURI string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURI, nil)
	if err != nil {
		return "", err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("request_uri %s returned status %d", requestURI, resp.StatusCode)
		return "", fmt.Errorf("request_uri returned status %d", resp.StatusCode)
	}

	limit := int64(l.options.InputLengthRestrictions.Jwt)
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(body)) > limit {
		return "", fmt.Errorf("request_uri response exceeds length limit")
	}
	return string(body), nil
}
