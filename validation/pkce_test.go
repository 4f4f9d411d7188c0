package validation

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	oidc "github.com/legit-games/oidc-core"
)

func TestVerifyCodeVerifierS256(t *testing.T) {
	verifier := "verifier123-padded-to-minimum-length-aaaaaaa"
	digest := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(digest[:])
	stored := HashCodeChallenge(challenge)

	require.True(t, VerifyCodeVerifier(stored, verifier, oidc.CodeChallengeS256))
	require.False(t, VerifyCodeVerifier(stored, verifier+"x", oidc.CodeChallengeS256))
	require.False(t, VerifyCodeVerifier(stored, "", oidc.CodeChallengeS256))
	// wrong transform must not verify either
	require.False(t, VerifyCodeVerifier(stored, verifier, oidc.CodeChallengePlain))
}

func TestVerifyCodeVerifierPlain(t *testing.T) {
	challenge := "plain-challenge-at-least-forty-three-chars-long"
	stored := HashCodeChallenge(challenge)

	require.True(t, VerifyCodeVerifier(stored, challenge, oidc.CodeChallengePlain))
	require.False(t, VerifyCodeVerifier(stored, "wrong-verifier-wrong-verifier-wrong-verifier", oidc.CodeChallengePlain))
}

func TestVerifyCodeVerifierUnknownMethod(t *testing.T) {
	stored := HashCodeChallenge("whatever")
	require.False(t, VerifyCodeVerifier(stored, "whatever", oidc.CodeChallengeMethod("S512")))
}

func TestMatchResponseTypeIsOrderInsensitive(t *testing.T) {
	rt1, ok := matchResponseType("id_token token")
	require.True(t, ok)
	rt2, ok := matchResponseType("token id_token")
	require.True(t, ok)
	require.Equal(t, rt1, rt2)
	require.Equal(t, oidc.ResponseTypeIDTokenToken, rt1)

	// same grant type and response mode follow from the canonical form
	require.Equal(t, oidc.ResponseTypeToGrantType[rt1], oidc.ResponseTypeToGrantType[rt2])

	rt3, ok := matchResponseType("token code id_token")
	require.True(t, ok)
	require.Equal(t, oidc.ResponseTypeCodeIDTokenToken, rt3)

	_, ok = matchResponseType("code token id_token nonsense")
	require.False(t, ok)
	_, ok = matchResponseType("")
	require.False(t, ok)
}
