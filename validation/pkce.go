package validation

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"sort"
	"strings"

	oidc "github.com/legit-games/oidc-core"
)

// HashCodeChallenge produces the stored form of a PKCE code challenge. The
// raw challenge is never stored; authorization codes carry this digest.
func HashCodeChallenge(challenge string) string {
	digest := sha256.Sum256([]byte(challenge))
	return base64.StdEncoding.EncodeToString(digest[:])
}

// VerifyCodeVerifier checks a code_verifier against the stored challenge
// digest using constant-time comparison.
//
// plain: the verifier must equal the original challenge, so its digest must
// equal the stored digest directly. S256: the verifier is first transformed
// to base64url(SHA-256(verifier)) — the value the client sent as the
// challenge — and that transform's digest must equal the stored digest.
func VerifyCodeVerifier(storedChallenge, verifier string, method oidc.CodeChallengeMethod) bool {
	if storedChallenge == "" || verifier == "" {
		return false
	}
	var transformed string
	switch method {
	case oidc.CodeChallengePlain:
		transformed = verifier
	case oidc.CodeChallengeS256:
		digest := sha256.Sum256([]byte(verifier))
		transformed = base64.RawURLEncoding.EncodeToString(digest[:])
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashCodeChallenge(transformed)), []byte(storedChallenge)) == 1
}

// matchResponseType resolves a raw response_type value to its canonical form
// using order-insensitive space-separated comparison, so "token id_token"
// and "id_token token" are the same response type.
func matchResponseType(raw string) (oidc.ResponseType, bool) {
	requested := strings.Fields(raw)
	if len(requested) == 0 {
		return "", false
	}
	sort.Strings(requested)
	for _, supported := range oidc.SupportedResponseTypes {
		canonical := strings.Fields(supported.String())
		if len(canonical) != len(requested) {
			continue
		}
		sort.Strings(canonical)
		equal := true
		for i := range canonical {
			if canonical[i] != requested[i] {
				equal = false
				break
			}
		}
		if equal {
			return supported, true
		}
	}
	return "", false
}

// responseTypeIncludes reports whether the canonical response type contains
// the given token (e.g. "token" or "id_token").
func responseTypeIncludes(rt oidc.ResponseType, part string) bool {
	for _, p := range strings.Fields(rt.String()) {
		if p == part {
			return true
		}
	}
	return false
}
