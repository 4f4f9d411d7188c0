package validation

import (
	"context"
	"log"
	"net/http"

	errs "github.com/legit-games/oidc-core/errors"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/services"
	"github.com/legit-games/oidc-core/store"
)

// ClientSecretValidationResult outcome of client authentication
type ClientSecretValidationResult struct {
	Client *models.Client
	Secret *ParsedSecret
	// Confirmation cnf value produced by the winning secret validator.
	Confirmation string
}

// ClientSecretValidator authenticates the client on token-like endpoints:
// parse the credential, load the client, and run the secret validator chain.
type ClientSecretValidator struct {
	clients    store.ClientStore
	parsers    *SecretParsers
	validators *SecretValidators
	events     services.EventSink
}

// NewClientSecretValidator create a client secret validator
func NewClientSecretValidator(clients store.ClientStore, parsers *SecretParsers, validators *SecretValidators, events services.EventSink) *ClientSecretValidator {
	return &ClientSecretValidator{clients: clients, parsers: parsers, validators: validators, events: events}
}

// Validate authenticates the client on the request. All failures collapse to
// invalid_client; the specific reason is logged and raised as an event.
func (v *ClientSecretValidator) Validate(ctx context.Context, r *http.Request) (*ClientSecretValidationResult, error) {
	parsed, err := v.parsers.Parse(r)
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		log.Printf("no client credential found on request")
		v.raiseFailure(ctx, "", "no client credential found")
		return nil, errs.ErrInvalidClient
	}

	client, err := v.clients.FindClientByID(ctx, parsed.ID)
	if err != nil {
		return nil, err
	}
	if client == nil || !client.Enabled {
		log.Printf("unknown or disabled client %q", parsed.ID)
		v.raiseFailure(ctx, parsed.ID, "unknown or disabled client")
		return nil, errs.ErrInvalidClient
	}

	result := &ClientSecretValidationResult{Client: client, Secret: parsed}

	if !client.RequireClientSecret || client.IsImplicitOnly() {
		log.Printf("public client %s authenticated without secret", client.ClientID)
		v.raiseSuccess(ctx, client.ClientID)
		return result, nil
	}

	validation, err := v.validators.Validate(ctx, client.ClientSecrets, parsed)
	if err != nil {
		return nil, err
	}
	if !validation.Success {
		log.Printf("client secret validation failed for %s", client.ClientID)
		v.raiseFailure(ctx, client.ClientID, "secret validation failed")
		return nil, errs.ErrInvalidClient
	}
	result.Confirmation = validation.Confirmation

	v.raiseSuccess(ctx, client.ClientID)
	return result, nil
}

func (v *ClientSecretValidator) raiseSuccess(ctx context.Context, clientID string) {
	services.Raise(ctx, v.events, &services.Event{
		Name:     services.EventClientAuthenticationSuccess,
		Success:  true,
		ClientID: clientID,
	})
}

func (v *ClientSecretValidator) raiseFailure(ctx context.Context, clientID, message string) {
	services.Raise(ctx, v.events, &services.Event{
		Name:     services.EventClientAuthenticationFailure,
		ClientID: clientID,
		Message:  message,
	})
}
