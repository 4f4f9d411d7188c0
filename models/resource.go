package models

import oidc "github.com/legit-games/oidc-core"

// Resource base resource model
type Resource struct {
	Name        string
	DisplayName string
	Description string
	Enabled     bool
	// ShowInDiscoveryDocument controls discovery exposure only.
	ShowInDiscoveryDocument bool
	// UserClaims claim types requested from the profile service for this resource.
	UserClaims []string
	Properties map[string]string
}

// IdentityResource a resource representing identity data (id_token claims)
type IdentityResource struct {
	Resource
	Required  bool
	Emphasize bool
}

// ApiScope a scope that grants access to apis
type ApiScope struct {
	Resource
	Required  bool
	Emphasize bool
}

// ApiResource a protected api
type ApiResource struct {
	Resource
	// Scopes names of the api scopes this resource covers.
	Scopes     []string
	ApiSecrets []Secret
	// AllowedAccessTokenSigningAlgorithms restricts signing algs for tokens
	// destined for this resource; empty means server default.
	AllowedAccessTokenSigningAlgorithms []string
	// RequireResourceIndicator hides the resource unless the client names it
	// via an RFC 8707 resource parameter.
	RequireResourceIndicator bool
}

// NewIdentityResource create an enabled identity resource
func NewIdentityResource(name string, userClaims ...string) *IdentityResource {
	return &IdentityResource{Resource: Resource{
		Name:                    name,
		DisplayName:             name,
		Enabled:                 true,
		ShowInDiscoveryDocument: true,
		UserClaims:              userClaims,
	}}
}

// NewApiScope create an enabled api scope
func NewApiScope(name string, userClaims ...string) *ApiScope {
	return &ApiScope{Resource: Resource{
		Name:                    name,
		DisplayName:             name,
		Enabled:                 true,
		ShowInDiscoveryDocument: true,
		UserClaims:              userClaims,
	}}
}

// NewApiResource create an enabled api resource covering the given scopes
func NewApiResource(name string, scopes ...string) *ApiResource {
	return &ApiResource{
		Resource: Resource{
			Name:                    name,
			DisplayName:             name,
			Enabled:                 true,
			ShowInDiscoveryDocument: true,
		},
		Scopes: scopes,
	}
}

// standard identity resources

// OpenIDResource the mandatory openid identity resource
func OpenIDResource() *IdentityResource {
	r := NewIdentityResource(oidc.ScopeOpenID, oidc.ClaimSubject)
	r.DisplayName = "Your user identifier"
	r.Required = true
	return r
}

// ProfileResource standard profile claims
func ProfileResource() *IdentityResource {
	r := NewIdentityResource("profile",
		"name", "family_name", "given_name", "middle_name", "nickname",
		"preferred_username", "profile", "picture", "website", "gender",
		"birthdate", "zoneinfo", "locale", "updated_at")
	r.DisplayName = "User profile"
	r.Emphasize = true
	return r
}

// EmailResource standard email claims
func EmailResource() *IdentityResource {
	r := NewIdentityResource("email", "email", "email_verified")
	r.DisplayName = "Your email address"
	r.Emphasize = true
	return r
}

// PhoneResource standard phone claims
func PhoneResource() *IdentityResource {
	r := NewIdentityResource("phone", "phone_number", "phone_number_verified")
	r.DisplayName = "Your phone number"
	r.Emphasize = true
	return r
}

// AddressResource standard address claim
func AddressResource() *IdentityResource {
	r := NewIdentityResource("address", "address")
	r.DisplayName = "Your postal address"
	r.Emphasize = true
	return r
}
