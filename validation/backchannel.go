package validation

import (
	"context"
	"log"
	"time"

	oidc "github.com/legit-games/oidc-core"
	errs "github.com/legit-games/oidc-core/errors"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
	"github.com/legit-games/oidc-core/store"
)

// BackChannelAuthenticationRequestIdValidator performs the CIBA grant core
// checks: binding to the client, polling throttle, expiry, and completion.
type BackChannelAuthenticationRequestIdValidator struct {
	options  *oidc.Options
	requests *store.BackChannelAuthenticationRequestStore
	throttle *services.PollingThrottleService
	profile  services.ProfileService
	now      func() time.Time
}

// NewBackChannelAuthenticationRequestIdValidator create a CIBA request id validator
func NewBackChannelAuthenticationRequestIdValidator(options *oidc.Options, requests *store.BackChannelAuthenticationRequestStore, throttle *services.PollingThrottleService, profile services.ProfileService) *BackChannelAuthenticationRequestIdValidator {
	return &BackChannelAuthenticationRequestIdValidator{options: options, requests: requests, throttle: throttle, profile: profile, now: time.Now}
}

// Validate checks the auth_req_id for the polling client. On approval the
// request is removed and returned.
func (v *BackChannelAuthenticationRequestIdValidator) Validate(ctx context.Context, client *models.Client, authReqID string) (*models.BackChannelAuthenticationRequest, error) {
	record, err := v.requests.GetByAuthenticationRequestID(ctx, authReqID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		log.Printf("backchannel request not found for client %s", client.ClientID)
		return nil, errs.ErrInvalidGrant
	}
	if record.ClientID != client.ClientID {
		log.Printf("backchannel request client mismatch: issued to %s, presented by %s", record.ClientID, client.ClientID)
		return nil, errs.ErrInvalidGrant
	}

	interval := v.options.Ciba.PollingInterval
	if client.PollingInterval > 0 {
		interval = client.PollingInterval
	}
	remaining := time.Until(record.Expiration())
	slowDown, err := v.throttle.ShouldSlowDown(ctx, "ciba:"+authReqID, interval, remaining)
	if err != nil {
		return nil, err
	}
	if slowDown {
		return nil, errs.ErrSlowDown
	}

	if v.now().After(record.Expiration()) {
		log.Printf("backchannel request expired for client %s", client.ClientID)
		return nil, errs.ErrExpiredToken
	}

	if !record.IsComplete {
		return nil, errs.ErrAuthorizationPending
	}
	if !record.IsAuthorized {
		log.Printf("backchannel authentication denied by user for client %s", client.ClientID)
		return nil, errs.ErrAccessDenied
	}
	if record.Subject == nil {
		log.Printf("authorized backchannel request has no subject for client %s", client.ClientID)
		return nil, errs.ErrInvalidGrant
	}

	active, err := v.profile.IsActive(ctx, &services.IsActiveRequest{
		Subject: record.Subject,
		Client:  client,
		Caller:  "ciba_validation",
	})
	if err != nil {
		return nil, err
	}
	if !active {
		log.Printf("subject %s no longer active, rejecting backchannel request", record.Subject.SubjectID)
		return nil, errs.ErrInvalidGrant
	}

	if err := v.requests.Remove(ctx, authReqID); err != nil {
		return nil, err
	}
	return record, nil
}
