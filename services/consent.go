package services

import (
	"context"
	"log"
	"time"

	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/store"
)

// ConsentService decides whether user consent is required for a request and
// persists consent decisions.
type ConsentService struct {
	consents *store.UserConsentStore
	events   EventSink
	now      func() time.Time
}

// NewConsentService create a consent service
func NewConsentService(consents *store.UserConsentStore, events EventSink) *ConsentService {
	return &ConsentService{consents: consents, events: events, now: time.Now}
}

// RequiresConsent reports whether the user must be shown the consent screen.
func (s *ConsentService) RequiresConsent(ctx context.Context, subject *models.Subject, client *models.Client, parsedScopes []models.ParsedScopeValue) (bool, error) {
	if client == nil || subject == nil {
		return false, errNilConsentInput
	}
	if !client.RequireConsent {
		return false, nil
	}
	if len(parsedScopes) == 0 {
		return false, nil
	}
	if !client.AllowRememberConsent {
		return true, nil
	}

	// parameterized scopes carry per-request detail and cannot be remembered
	for _, ps := range parsedScopes {
		if ps.ParsedParameter != "" {
			return true, nil
		}
	}

	consent, err := s.consents.GetUserConsent(ctx, subject.SubjectID, client.ClientID)
	if err != nil {
		return true, err
	}
	if consent == nil {
		return true, nil
	}
	if consent.IsExpired(s.now()) {
		log.Printf("consent for subject %s client %s expired, removing", subject.SubjectID, client.ClientID)
		if err := s.consents.RemoveUserConsent(ctx, subject.SubjectID, client.ClientID); err != nil {
			return true, err
		}
		return true, nil
	}

	granted := make(map[string]bool, len(consent.Scopes))
	for _, sc := range consent.Scopes {
		granted[sc] = true
	}
	for _, ps := range parsedScopes {
		if !granted[ps.RawValue] {
			return true, nil
		}
	}
	return false, nil
}

// UpdateConsent stores or clears the remembered consent for the pair.
func (s *ConsentService) UpdateConsent(ctx context.Context, subject *models.Subject, client *models.Client, parsedScopes []models.ParsedScopeValue) error {
	if client == nil || subject == nil {
		return errNilConsentInput
	}

	if !client.AllowRememberConsent || len(parsedScopes) == 0 {
		return s.consents.RemoveUserConsent(ctx, subject.SubjectID, client.ClientID)
	}

	scopes := make([]string, 0, len(parsedScopes))
	for _, ps := range parsedScopes {
		scopes = append(scopes, ps.RawValue)
	}

	consent := &models.Consent{
		SubjectID:    subject.SubjectID,
		ClientID:     client.ClientID,
		Scopes:       scopes,
		CreationTime: s.now(),
	}
	if client.ConsentLifetime > 0 {
		exp := consent.CreationTime.Add(client.ConsentLifetime)
		consent.Expiration = &exp
	}
	if err := s.consents.StoreUserConsent(ctx, consent); err != nil {
		return err
	}

	Raise(ctx, s.events, &Event{
		Name:      EventConsentGranted,
		Success:   true,
		ClientID:  client.ClientID,
		SubjectID: subject.SubjectID,
		Message:   "consent updated",
	})
	return nil
}

var errNilConsentInput = &consentError{"subject and client are required"}

type consentError struct{ msg string }

func (e *consentError) Error() string { return e.msg }
