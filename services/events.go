package services

import (
	"context"
	"log"
	"time"
)

// event names raised by the engine
const (
	EventClientAuthenticationSuccess = "client_authentication_success"
	EventClientAuthenticationFailure = "client_authentication_failure"
	EventTokenIssuedSuccess          = "token_issued_success"
	EventTokenIssuedFailure          = "token_issued_failure"
	EventUserLoginSuccess            = "user_login_success"
	EventUserLoginFailure            = "user_login_failure"
	EventInvalidClientConfiguration  = "invalid_client_configuration"
	EventConsentGranted              = "consent_granted"
)

// Event a domain event describing an authentication or issuance outcome
type Event struct {
	Name      string
	Success   bool
	ClientID  string
	SubjectID string
	Message   string
	Details   map[string]string
	Timestamp time.Time
}

// EventSink receives domain events. Sink failures must never fail the
// request that raised the event.
type EventSink interface {
	Persist(ctx context.Context, ev *Event) error
}

// Raise delivers the event to the sink, swallowing sink errors.
func Raise(ctx context.Context, sink EventSink, ev *Event) {
	if sink == nil || ev == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if err := sink.Persist(ctx, ev); err != nil {
		log.Printf("event sink error (ignored): %v", err)
	}
}

// LogEventSink writes events to the process log.
type LogEventSink struct{}

// Persist logs the event.
func (LogEventSink) Persist(ctx context.Context, ev *Event) error {
	outcome := "failure"
	if ev.Success {
		outcome = "success"
	}
	log.Printf("event %s [%s] client=%s subject=%s: %s", ev.Name, outcome, ev.ClientID, ev.SubjectID, ev.Message)
	return nil
}
