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

// DeviceCodeValidator performs the device grant core checks: polling
// throttle, expiry, and completion state.
type DeviceCodeValidator struct {
	options  *oidc.Options
	devices  *store.DeviceFlowStore
	throttle *services.PollingThrottleService
	profile  services.ProfileService
	now      func() time.Time
}

// NewDeviceCodeValidator create a device code validator
func NewDeviceCodeValidator(options *oidc.Options, devices *store.DeviceFlowStore, throttle *services.PollingThrottleService, profile services.ProfileService) *DeviceCodeValidator {
	return &DeviceCodeValidator{options: options, devices: devices, throttle: throttle, profile: profile, now: time.Now}
}

// Validate checks the device code for the polling client. On approval the
// record is removed and returned; pending/denied/expired states map to their
// protocol errors.
func (v *DeviceCodeValidator) Validate(ctx context.Context, client *models.Client, handle string) (*models.DeviceCode, error) {
	record, err := v.devices.FindByDeviceCode(ctx, handle)
	if err != nil {
		return nil, err
	}
	if record == nil {
		log.Printf("device code not found for client %s", client.ClientID)
		return nil, errs.ErrInvalidGrant
	}
	if record.ClientID != client.ClientID {
		log.Printf("device code client mismatch: issued to %s, presented by %s", record.ClientID, client.ClientID)
		return nil, errs.ErrInvalidGrant
	}

	interval := v.options.DeviceFlow.Interval
	if client.PollingInterval > 0 {
		interval = client.PollingInterval
	}
	remaining := time.Until(record.Expiration())
	slowDown, err := v.throttle.ShouldSlowDown(ctx, "device:"+handle, interval, remaining)
	if err != nil {
		return nil, err
	}
	if slowDown {
		return nil, errs.ErrSlowDown
	}

	if v.now().After(record.Expiration()) {
		log.Printf("device code expired for client %s", client.ClientID)
		return nil, errs.ErrExpiredToken
	}

	if !record.IsAuthorized {
		return nil, errs.ErrAuthorizationPending
	}
	if len(record.AuthorizedScopes) == 0 {
		log.Printf("device authorization denied by user for client %s", client.ClientID)
		return nil, errs.ErrAccessDenied
	}
	if record.Subject == nil {
		log.Printf("authorized device code has no subject for client %s", client.ClientID)
		return nil, errs.ErrInvalidGrant
	}

	active, err := v.profile.IsActive(ctx, &services.IsActiveRequest{
		Subject: record.Subject,
		Client:  client,
		Caller:  "device_code_validation",
	})
	if err != nil {
		return nil, err
	}
	if !active {
		log.Printf("subject %s no longer active, rejecting device code", record.Subject.SubjectID)
		return nil, errs.ErrInvalidGrant
	}

	if err := v.devices.RemoveByDeviceCode(ctx, handle); err != nil {
		return nil, err
	}
	return record, nil
}
