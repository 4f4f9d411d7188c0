package validation

import (
	"encoding/base64"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	oidc "github.com/legit-games/oidc-core"
)

// ParsedSecret a credential extracted from an inbound request
type ParsedSecret struct {
	// ID the client id the credential claims to belong to.
	ID string
	// Credential the raw credential material; empty for NoSecret.
	Credential string
	// Type one of the ParsedSecret* constants.
	Type string
}

// SecretParser extracts a credential from an http request. A nil result with
// nil error means this parser found nothing to work with.
type SecretParser interface {
	Parse(r *http.Request) (*ParsedSecret, error)
}

// SecretParsers tries each parser in order, preferring the first one that
// yields an actual credential over one yielding only a bare client id.
type SecretParsers struct {
	parsers []SecretParser
	options *oidc.Options
}

// NewSecretParsers create the aggregate parser. With no explicit parsers the
// standard chain (basic auth, post body, jwt bearer assertion) is installed.
func NewSecretParsers(options *oidc.Options, parsers ...SecretParser) *SecretParsers {
	if len(parsers) == 0 {
		parsers = []SecretParser{
			&BasicAuthenticationSecretParser{Options: options},
			&PostBodySecretParser{Options: options},
			&JwtBearerClientAssertionSecretParser{Options: options},
		}
	}
	return &SecretParsers{parsers: parsers, options: options}
}

// Parse runs the chain. The first credentialed secret short-circuits.
func (p *SecretParsers) Parse(r *http.Request) (*ParsedSecret, error) {
	var bestCandidate *ParsedSecret
	for _, parser := range p.parsers {
		secret, err := parser.Parse(r)
		if err != nil {
			return nil, err
		}
		if secret == nil {
			continue
		}
		if secret.Type != oidc.ParsedSecretNoSecret {
			return secret, nil
		}
		if bestCandidate == nil {
			bestCandidate = secret
		}
	}
	return bestCandidate, nil
}

// BasicAuthenticationSecretParser parses the Authorization: Basic header
// per RFC 6749 section 2.3.1 (credentials are form-urlencoded).
type BasicAuthenticationSecretParser struct {
	Options *oidc.Options
}

// Parse extracts client id and secret from the basic auth header.
func (p *BasicAuthenticationSecretParser) Parse(r *http.Request) (*ParsedSecret, error) {
	header := r.Header.Get("Authorization")
	const scheme = "Basic "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(scheme):]))
	if err != nil {
		log.Printf("malformed basic authentication header: %v", err)
		return nil, nil
	}

	pair := string(decoded)
	idx := strings.Index(pair, ":")
	if idx < 0 {
		log.Printf("basic authentication header is missing the separator")
		return nil, nil
	}

	clientID, err := url.QueryUnescape(pair[:idx])
	if err != nil || clientID == "" {
		return nil, nil
	}
	secret, err := url.QueryUnescape(pair[idx+1:])
	if err != nil {
		return nil, nil
	}

	limits := p.Options.InputLengthRestrictions
	if len(clientID) > limits.ClientID || len(secret) > limits.ClientSecret {
		log.Printf("basic authentication credentials exceed length limits")
		return nil, nil
	}

	if secret == "" {
		return &ParsedSecret{ID: clientID, Type: oidc.ParsedSecretNoSecret}, nil
	}
	return &ParsedSecret{ID: clientID, Credential: secret, Type: oidc.ParsedSecretSharedSecret}, nil
}

// PostBodySecretParser parses client_id/client_secret from the form body.
type PostBodySecretParser struct {
	Options *oidc.Options
}

// Parse extracts client credentials from the posted form.
func (p *PostBodySecretParser) Parse(r *http.Request) (*ParsedSecret, error) {
	if err := r.ParseForm(); err != nil {
		return nil, nil
	}
	clientID := r.PostForm.Get(oidc.ParamClientID)
	if clientID == "" {
		return nil, nil
	}
	secret := r.PostForm.Get(oidc.ParamClientSecret)

	limits := p.Options.InputLengthRestrictions
	if len(clientID) > limits.ClientID || len(secret) > limits.ClientSecret {
		log.Printf("post body credentials exceed length limits")
		return nil, nil
	}

	if secret == "" {
		return &ParsedSecret{ID: clientID, Type: oidc.ParsedSecretNoSecret}, nil
	}
	return &ParsedSecret{ID: clientID, Credential: secret, Type: oidc.ParsedSecretSharedSecret}, nil
}

// JwtBearerClientAssertionSecretParser parses a private_key_jwt client
// assertion from the form body. The assertion is not validated here; the
// claimed client id is read from the unverified sub claim and the secret
// validator performs the actual signature and claims checks.
type JwtBearerClientAssertionSecretParser struct {
	Options *oidc.Options
}

// Parse extracts the client assertion.
func (p *JwtBearerClientAssertionSecretParser) Parse(r *http.Request) (*ParsedSecret, error) {
	if err := r.ParseForm(); err != nil {
		return nil, nil
	}
	if r.PostForm.Get(oidc.ParamClientAssertionType) != oidc.ParsedSecretJwtBearer {
		return nil, nil
	}
	assertion := r.PostForm.Get(oidc.ParamClientAssertion)
	if assertion == "" {
		return nil, nil
	}
	if len(assertion) > p.Options.InputLengthRestrictions.Jwt {
		log.Printf("client assertion exceeds length limit")
		return nil, nil
	}

	token, _, err := jwt.NewParser().ParseUnverified(assertion, jwt.MapClaims{})
	if err != nil {
		log.Printf("client assertion could not be parsed: %v", err)
		return nil, nil
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		log.Printf("client assertion carries no sub claim")
		return nil, nil
	}
	if len(sub) > p.Options.InputLengthRestrictions.ClientID {
		return nil, nil
	}

	return &ParsedSecret{ID: sub, Credential: assertion, Type: oidc.ParsedSecretJwtBearer}, nil
}
