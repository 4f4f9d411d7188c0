package models

// Resources the per-request aggregate of resolved resources
type Resources struct {
	IdentityResources []*IdentityResource
	ApiResources      []*ApiResource
	ApiScopes         []*ApiScope
	// OfflineAccess set when offline_access was requested and allowed.
	OfflineAccess bool
}

// NewResources create an aggregate from the given collections
func NewResources(identity []*IdentityResource, apis []*ApiResource, scopes []*ApiScope) *Resources {
	return &Resources{
		IdentityResources: identity,
		ApiResources:      apis,
		ApiScopes:         scopes,
	}
}

// IsEmpty reports whether no resources were resolved at all.
func (r *Resources) IsEmpty() bool {
	return len(r.IdentityResources) == 0 &&
		len(r.ApiResources) == 0 &&
		len(r.ApiScopes) == 0 &&
		!r.OfflineAccess
}

// FindIdentityResourceByName returns the identity resource or nil.
func (r *Resources) FindIdentityResourceByName(name string) *IdentityResource {
	for _, ir := range r.IdentityResources {
		if ir.Name == name {
			return ir
		}
	}
	return nil
}

// FindApiScope returns the api scope or nil.
func (r *Resources) FindApiScope(name string) *ApiScope {
	for _, s := range r.ApiScopes {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// FindApiResourcesByScope returns all api resources covering the scope name.
func (r *Resources) FindApiResourcesByScope(name string) []*ApiResource {
	var out []*ApiResource
	for _, api := range r.ApiResources {
		for _, s := range api.Scopes {
			if s == name {
				out = append(out, api)
				break
			}
		}
	}
	return out
}

// FindApiResourceByName returns the api resource or nil.
func (r *Resources) FindApiResourceByName(name string) *ApiResource {
	for _, api := range r.ApiResources {
		if api.Name == name {
			return api
		}
	}
	return nil
}

// FilterEnabled returns a copy holding only enabled resources.
func (r *Resources) FilterEnabled() *Resources {
	out := &Resources{OfflineAccess: r.OfflineAccess}
	for _, ir := range r.IdentityResources {
		if ir.Enabled {
			out.IdentityResources = append(out.IdentityResources, ir)
		}
	}
	for _, api := range r.ApiResources {
		if api.Enabled {
			out.ApiResources = append(out.ApiResources, api)
		}
	}
	for _, s := range r.ApiScopes {
		if s.Enabled {
			out.ApiScopes = append(out.ApiScopes, s)
		}
	}
	return out
}

// ScopeNames returns all resolved scope names including offline_access.
func (r *Resources) ScopeNames() []string {
	var out []string
	for _, ir := range r.IdentityResources {
		out = append(out, ir.Name)
	}
	for _, s := range r.ApiScopes {
		out = append(out, s.Name)
	}
	if r.OfflineAccess {
		out = append(out, "offline_access")
	}
	return out
}

// ParsedScopeValue the structured form of a raw scope value
type ParsedScopeValue struct {
	// RawValue the value as requested.
	RawValue string
	// ParsedName the scope name after decomposition.
	ParsedName string
	// ParsedParameter optional parameter carried by parameterized scopes.
	ParsedParameter string
}

// NewParsedScopeValue create a parsed scope whose name equals the raw value.
func NewParsedScopeValue(raw string) ParsedScopeValue {
	return ParsedScopeValue{RawValue: raw, ParsedName: raw}
}
