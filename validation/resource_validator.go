package validation

import (
	"context"
	"log"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/store"
)

// ResourceValidationRequest input for resource validation
type ResourceValidationRequest struct {
	Client             *models.Client
	Scopes             []string
	ResourceIndicators []string
	// IncludeNonIsolatedApiResources keeps api resources that do not require a
	// resource indicator even when indicators were supplied.
	IncludeNonIsolatedApiResources bool
}

// ResourceValidationResult outcome of resource validation
type ResourceValidationResult struct {
	Resources                 *models.Resources
	ParsedScopes              []models.ParsedScopeValue
	InvalidScopes             []string
	InvalidResourceIndicators []string
}

// Succeeded reports whether every scope and indicator resolved.
func (r *ResourceValidationResult) Succeeded() bool {
	return len(r.InvalidScopes) == 0 && len(r.InvalidResourceIndicators) == 0
}

// RawScopeValues the raw values of all parsed scopes.
func (r *ResourceValidationResult) RawScopeValues() []string {
	out := make([]string, 0, len(r.ParsedScopes))
	for _, ps := range r.ParsedScopes {
		out = append(out, ps.RawValue)
	}
	return out
}

// ResourceValidator resolves requested scopes and resource indicators against
// the resource store and the client's allowed scopes.
type ResourceValidator interface {
	ValidateRequestedResources(ctx context.Context, req *ResourceValidationRequest) (*ResourceValidationResult, error)
}

// DefaultResourceValidator the standard resource validator
type DefaultResourceValidator struct {
	resources store.ResourceStore
	parser    ScopeParser
}

// NewResourceValidator create a resource validator
func NewResourceValidator(resources store.ResourceStore, parser ScopeParser) *DefaultResourceValidator {
	if parser == nil {
		parser = &DefaultScopeParser{}
	}
	return &DefaultResourceValidator{resources: resources, parser: parser}
}

// ValidateRequestedResources resolves the requested scopes. Failure is
// all-or-nothing: any invalid scope or indicator empties the result's
// resource collections.
func (v *DefaultResourceValidator) ValidateRequestedResources(ctx context.Context, req *ResourceValidationRequest) (*ResourceValidationResult, error) {
	result := &ResourceValidationResult{Resources: &models.Resources{}}

	parsed := v.parser.ParseScopeValues(req.Scopes)
	if !parsed.Succeeded() {
		for _, e := range parsed.Errors {
			log.Printf("invalid parsed scope %q: %s", e.RawValue, e.Error)
			result.InvalidScopes = append(result.InvalidScopes, e.RawValue)
		}
		return result, nil
	}
	result.ParsedScopes = parsed.ParsedScopes

	names := make([]string, 0, len(parsed.ParsedScopes))
	for _, ps := range parsed.ParsedScopes {
		names = append(names, ps.ParsedName)
	}

	stored, err := v.resources.FindResourcesByScopeName(ctx, names)
	if err != nil {
		return nil, err
	}
	candidates := stored.FilterEnabled()

	if len(req.ResourceIndicators) > 0 {
		if failed := v.filterByResourceIndicators(req, candidates, result); failed {
			return result, nil
		}
	} else {
		// without indicators, isolated api resources are invisible
		var kept []*models.ApiResource
		for _, api := range candidates.ApiResources {
			if !api.RequireResourceIndicator {
				kept = append(kept, api)
			}
		}
		candidates.ApiResources = kept
	}

	for _, ps := range parsed.ParsedScopes {
		v.validateScope(req.Client, candidates, ps, result)
	}

	if !result.Succeeded() {
		result.Resources = &models.Resources{}
	}
	return result, nil
}

// filterByResourceIndicators narrows candidates to the named api resources.
// Returns true when an indicator matched nothing.
func (v *DefaultResourceValidator) filterByResourceIndicators(req *ResourceValidationRequest, candidates *models.Resources, result *ResourceValidationResult) bool {
	named := make(map[string]bool, len(req.ResourceIndicators))
	for _, ind := range req.ResourceIndicators {
		named[ind] = true
	}

	var kept []*models.ApiResource
	matched := make(map[string]bool)
	for _, api := range candidates.ApiResources {
		switch {
		case named[api.Name]:
			kept = append(kept, api)
			matched[api.Name] = true
		case !api.RequireResourceIndicator && req.IncludeNonIsolatedApiResources:
			kept = append(kept, api)
		}
	}
	candidates.ApiResources = kept

	if !req.IncludeNonIsolatedApiResources {
		var scopes []*models.ApiScope
		for _, s := range candidates.ApiScopes {
			for _, api := range kept {
				if containsString(api.Scopes, s.Name) {
					scopes = append(scopes, s)
					break
				}
			}
		}
		candidates.ApiScopes = scopes
	}

	for _, ind := range req.ResourceIndicators {
		if !matched[ind] {
			log.Printf("resource indicator %q did not match any api resource", ind)
			result.InvalidResourceIndicators = append(result.InvalidResourceIndicators, ind)
		}
	}
	if len(result.InvalidResourceIndicators) > 0 {
		result.Resources = &models.Resources{}
		return true
	}
	return false
}

func (v *DefaultResourceValidator) validateScope(client *models.Client, candidates *models.Resources, scope models.ParsedScopeValue, result *ResourceValidationResult) {
	if scope.ParsedName == oidc.ScopeOfflineAccess {
		if client.AllowOfflineAccess {
			result.Resources.OfflineAccess = true
		} else {
			log.Printf("client %s does not allow offline access", client.ClientID)
			result.InvalidScopes = append(result.InvalidScopes, scope.RawValue)
		}
		return
	}

	if identity := candidates.FindIdentityResourceByName(scope.ParsedName); identity != nil {
		if client.AllowsScope(scope.ParsedName) {
			result.Resources.IdentityResources = append(result.Resources.IdentityResources, identity)
		} else {
			log.Printf("identity scope %q not allowed for client %s", scope.ParsedName, client.ClientID)
			result.InvalidScopes = append(result.InvalidScopes, scope.RawValue)
		}
		return
	}

	if apiScope := candidates.FindApiScope(scope.ParsedName); apiScope != nil {
		if client.AllowsScope(scope.ParsedName) {
			result.Resources.ApiScopes = append(result.Resources.ApiScopes, apiScope)
			for _, api := range candidates.FindApiResourcesByScope(apiScope.Name) {
				if result.Resources.FindApiResourceByName(api.Name) == nil {
					result.Resources.ApiResources = append(result.Resources.ApiResources, api)
				}
			}
		} else {
			log.Printf("api scope %q not allowed for client %s", scope.ParsedName, client.ClientID)
			result.InvalidScopes = append(result.InvalidScopes, scope.RawValue)
		}
		return
	}

	log.Printf("scope %q not found", scope.ParsedName)
	result.InvalidScopes = append(result.InvalidScopes, scope.RawValue)
}

func containsString(list []string, value string) bool {
	for _, s := range list {
		if s == value {
			return true
		}
	}
	return false
}
