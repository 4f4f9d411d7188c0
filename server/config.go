package server

import "time"

// Config configuration parameters for the endpoint layer
type Config struct {
	TokenType string // token type returned in token responses

	// Endpoint paths, relative to the issuer.
	AuthorizePath           string
	TokenPath               string
	DeviceAuthorizationPath string
	IntrospectionPath       string
	RevocationPath          string
	DiscoveryPath           string
	JwksPath                string

	// DeviceVerificationURI where users enter device user codes, absolute or
	// issuer-relative.
	DeviceVerificationURI string
	// DefaultDeviceCodeLifetime applies when the client carries no override.
	DefaultDeviceCodeLifetime time.Duration
}

// NewConfig create to configuration instance
func NewConfig() *Config {
	return &Config{
		TokenType:                 "Bearer",
		AuthorizePath:             "/connect/authorize",
		TokenPath:                 "/connect/token",
		DeviceAuthorizationPath:   "/connect/deviceauthorization",
		IntrospectionPath:         "/connect/introspect",
		RevocationPath:            "/connect/revocation",
		DiscoveryPath:             "/.well-known/openid-configuration",
		JwksPath:                  "/.well-known/jwks.json",
		DeviceVerificationURI:     "/device",
		DefaultDeviceCodeLifetime: 5 * time.Minute,
	}
}
