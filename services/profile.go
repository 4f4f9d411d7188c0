// Package services hosts the collaborator services around the validation
// engine: profile/identity integration, eventing, consent, polling
// throttling, assertion replay prevention, and signing key material.
package services

import (
	"context"

	"github.com/legit-games/oidc-core/models"
)

// callers identifying why profile data is requested
const (
	ProfileCallerIdentityToken = "ClaimsProviderIdentityToken"
	ProfileCallerAccessToken   = "ClaimsProviderAccessToken"
	ProfileCallerUserInfo      = "UserInfoEndpoint"
)

// ProfileDataRequest context for a profile data lookup
type ProfileDataRequest struct {
	Subject *models.Subject
	Client  *models.Client
	// RequestedClaimTypes the claim types the resolved resources ask for.
	RequestedClaimTypes []string
	Caller              string
}

// IsActiveRequest context for a user liveness check
type IsActiveRequest struct {
	Subject *models.Subject
	Client  *models.Client
	Caller  string
}

// ProfileService externalizes all user-store lookups.
type ProfileService interface {
	// GetProfileData returns the claims to issue for the subject.
	GetProfileData(ctx context.Context, req *ProfileDataRequest) ([]models.Claim, error)
	// IsActive reports whether the subject may currently receive tokens.
	IsActive(ctx context.Context, req *IsActiveRequest) (bool, error)
}

// DefaultProfileService serves claims straight off the subject and treats
// every subject as active. Deployments plug in their user store instead.
type DefaultProfileService struct{}

// GetProfileData returns the subject's claims filtered to the requested types.
func (DefaultProfileService) GetProfileData(ctx context.Context, req *ProfileDataRequest) ([]models.Claim, error) {
	if req.Subject == nil {
		return nil, nil
	}
	if len(req.RequestedClaimTypes) == 0 {
		return nil, nil
	}
	requested := make(map[string]bool, len(req.RequestedClaimTypes))
	for _, t := range req.RequestedClaimTypes {
		requested[t] = true
	}
	var out []models.Claim
	for _, c := range req.Subject.Claims {
		if requested[c.Type] {
			out = append(out, c)
		}
	}
	return out, nil
}

// IsActive always reports true.
func (DefaultProfileService) IsActive(ctx context.Context, req *IsActiveRequest) (bool, error) {
	return true, nil
}
