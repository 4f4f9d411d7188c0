// Package errors defines the protocol error surface of the engine.
package errors

import (
	"errors"
	"net/http"
)

// New returns an error that formats as the given text.
var New = errors.New

// known protocol errors, by OAuth2/OIDC/CIBA error code
var (
	ErrInvalidRequest          = errors.New("invalid_request")
	ErrInvalidClient           = errors.New("invalid_client")
	ErrInvalidGrant            = errors.New("invalid_grant")
	ErrInvalidScope            = errors.New("invalid_scope")
	ErrUnauthorizedClient      = errors.New("unauthorized_client")
	ErrUnsupportedGrantType    = errors.New("unsupported_grant_type")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrInvalidTarget           = errors.New("invalid_target")
	ErrAccessDenied            = errors.New("access_denied")
	ErrSlowDown                = errors.New("slow_down")
	ErrAuthorizationPending    = errors.New("authorization_pending")
	ErrExpiredToken            = errors.New("expired_token")
	ErrInvalidRequestObject    = errors.New("invalid_request_object")
	ErrInvalidRequestURI       = errors.New("invalid_request_uri")
	ErrRequestURINotSupported  = errors.New("request_uri_not_supported")
	ErrInteractionRequired     = errors.New("interaction_required")
	ErrLoginRequired           = errors.New("login_required")
	ErrConsentRequired         = errors.New("consent_required")
	ErrServerError             = errors.New("server_error")
)

// Descriptions error description
var Descriptions = map[error]string{
	ErrInvalidRequest:          "The request is missing a required parameter, includes an invalid parameter value, or is otherwise malformed",
	ErrInvalidClient:           "Client authentication failed",
	ErrInvalidGrant:            "The provided authorization grant or refresh token is invalid, expired or revoked",
	ErrInvalidScope:            "The requested scope is invalid, unknown, or malformed",
	ErrUnauthorizedClient:      "The client is not authorized to request a token using this method",
	ErrUnsupportedGrantType:    "The authorization grant type is not supported by the authorization server",
	ErrUnsupportedResponseType: "The authorization server does not support obtaining a token using this method",
	ErrInvalidTarget:           "The requested resource is invalid, missing, unknown, or malformed",
	ErrAccessDenied:            "The resource owner or authorization server denied the request",
	ErrSlowDown:                "Polling too quickly",
	ErrAuthorizationPending:    "The authorization request is still pending",
	ErrExpiredToken:            "The device code or authentication request has expired",
	ErrInvalidRequestObject:    "The request parameter contains an invalid request object",
	ErrInvalidRequestURI:       "The request_uri returned an error or contains invalid data",
	ErrRequestURINotSupported:  "The use of request_uri is not supported",
	ErrServerError:             "The authorization server encountered an unexpected condition",
}

// StatusCodes response error HTTP status code
var StatusCodes = map[error]int{
	ErrInvalidRequest:          http.StatusBadRequest,
	ErrInvalidClient:           http.StatusUnauthorized,
	ErrInvalidGrant:            http.StatusBadRequest,
	ErrInvalidScope:            http.StatusBadRequest,
	ErrUnauthorizedClient:      http.StatusBadRequest,
	ErrUnsupportedGrantType:    http.StatusBadRequest,
	ErrUnsupportedResponseType: http.StatusBadRequest,
	ErrInvalidTarget:           http.StatusBadRequest,
	ErrAccessDenied:            http.StatusBadRequest,
	ErrSlowDown:                http.StatusBadRequest,
	ErrAuthorizationPending:    http.StatusBadRequest,
	ErrExpiredToken:            http.StatusBadRequest,
	ErrInvalidRequestObject:    http.StatusBadRequest,
	ErrInvalidRequestURI:       http.StatusBadRequest,
	ErrRequestURINotSupported:  http.StatusBadRequest,
	ErrServerError:             http.StatusInternalServerError,
}

// Description returns the registered description for err, or "".
func Description(err error) string {
	return Descriptions[err]
}

// StatusCode returns the HTTP status for err, defaulting to 400.
func StatusCode(err error) int {
	if c, ok := StatusCodes[err]; ok {
		return c
	}
	return http.StatusBadRequest
}
