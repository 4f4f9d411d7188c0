// Package tokens assembles and serializes identity and access tokens:
// claims collection, token construction, JWT signing, reference token
// persistence, and the refresh token lifecycle.
package tokens

import (
	"context"
	"log"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
)

// DefaultClaimsService builds the claims sets for identity and access tokens
// from the subject, the resolved resources, and the client.
type DefaultClaimsService struct {
	profile services.ProfileService
}

// NewClaimsService create a claims service
func NewClaimsService(profile services.ProfileService) *DefaultClaimsService {
	return &DefaultClaimsService{profile: profile}
}

// GetIdentityTokenClaims returns the claims for an id_token. Profile claims
// are only included when the caller explicitly asks for them or the client
// always wants user claims in identity tokens.
func (s *DefaultClaimsService) GetIdentityTokenClaims(ctx context.Context, subject *models.Subject, client *models.Client, resources *models.Resources, includeAllIdentityClaims bool) ([]models.Claim, error) {
	claims := subjectClaims(subject)

	if !includeAllIdentityClaims && !client.AlwaysIncludeUserClaimsInIdToken {
		log.Printf("identity token for %s defers user claims to the userinfo endpoint", client.ClientID)
		return claims, nil
	}

	var requested []string
	for _, identity := range resources.IdentityResources {
		requested = append(requested, identity.UserClaims...)
	}
	profileClaims, err := s.profile.GetProfileData(ctx, &services.ProfileDataRequest{
		Subject:             subject,
		Client:              client,
		RequestedClaimTypes: dedupe(requested),
		Caller:              services.ProfileCallerIdentityToken,
	})
	if err != nil {
		return nil, err
	}
	return append(claims, filterProtocolClaims(profileClaims)...), nil
}

// GetAccessTokenClaims returns the claims for an access token.
func (s *DefaultClaimsService) GetAccessTokenClaims(ctx context.Context, subject *models.Subject, client *models.Client, resources *models.Resources, scopes []string) ([]models.Claim, error) {
	claims := []models.Claim{{Type: oidc.ClaimClientID, Value: client.ClientID}}

	if client.AlwaysSendClientClaims || subject == nil {
		for _, c := range client.Claims {
			claimType := c.Type
			if client.ClientClaimsPrefix != "" {
				claimType = client.ClientClaimsPrefix + claimType
			}
			claims = append(claims, models.Claim{Type: claimType, Value: c.Value})
		}
	}

	for _, scope := range scopes {
		if scope == oidc.ScopeOfflineAccess {
			continue
		}
		claims = append(claims, models.Claim{Type: oidc.ClaimScope, Value: scope})
	}

	if subject != nil {
		claims = append(claims, subjectClaims(subject)...)

		var requested []string
		for _, api := range resources.ApiResources {
			requested = append(requested, api.UserClaims...)
		}
		for _, sc := range resources.ApiScopes {
			requested = append(requested, sc.UserClaims...)
		}
		if len(requested) > 0 {
			profileClaims, err := s.profile.GetProfileData(ctx, &services.ProfileDataRequest{
				Subject:             subject,
				Client:              client,
				RequestedClaimTypes: dedupe(requested),
				Caller:              services.ProfileCallerAccessToken,
			})
			if err != nil {
				return nil, err
			}
			claims = append(claims, filterProtocolClaims(profileClaims)...)
		}
	}

	return claims, nil
}

func subjectClaims(subject *models.Subject) []models.Claim {
	if subject == nil {
		return nil
	}
	claims := []models.Claim{{Type: oidc.ClaimSubject, Value: subject.SubjectID}}
	if !subject.AuthenticationTime.IsZero() {
		claims = append(claims, models.Claim{Type: oidc.ClaimAuthenticationTime, Value: unixString(subject.AuthenticationTime)})
	}
	if subject.IdentityProvider != "" {
		claims = append(claims, models.Claim{Type: oidc.ClaimIdentityProvider, Value: subject.IdentityProvider})
	}
	for _, amr := range subject.AuthenticationMethods {
		claims = append(claims, models.Claim{Type: oidc.ClaimAuthenticationMethod, Value: amr})
	}
	return claims
}

// protocolClaimTypes must never be sourced from the profile service; the
// token services own them.
var protocolClaimTypes = map[string]bool{
	oidc.ClaimSubject:              true,
	oidc.ClaimAuthenticationTime:   true,
	oidc.ClaimIdentityProvider:     true,
	oidc.ClaimAuthenticationMethod: true,
	oidc.ClaimIssuer:               true,
	oidc.ClaimAudience:             true,
	oidc.ClaimExpiration:           true,
	oidc.ClaimIssuedAt:             true,
	oidc.ClaimNotBefore:            true,
	oidc.ClaimNonce:                true,
	oidc.ClaimJwtID:                true,
	oidc.ClaimClientID:             true,
	oidc.ClaimScope:                true,
	oidc.ClaimSessionID:            true,
	oidc.ClaimAccessTokenHash:      true,
	oidc.ClaimAuthorizationCodeHash: true,
	oidc.ClaimStateHash:            true,
	oidc.ClaimConfirmation:         true,
}

func filterProtocolClaims(claims []models.Claim) []models.Claim {
	var out []models.Claim
	for _, c := range claims {
		if protocolClaimTypes[c.Type] {
			log.Printf("profile service tried to issue protocol claim %q, filtered", c.Type)
			continue
		}
		out = append(out, c)
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
