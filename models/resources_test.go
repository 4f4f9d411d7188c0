package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResourcesLookups(t *testing.T) {
	api1 := NewApiResource("api1", "api1.read", "api1.write")
	api2 := NewApiResource("api2", "api1.read")
	r := NewResources(
		[]*IdentityResource{OpenIDResource(), ProfileResource()},
		[]*ApiResource{api1, api2},
		[]*ApiScope{NewApiScope("api1.read"), NewApiScope("api1.write")},
	)

	require.NotNil(t, r.FindIdentityResourceByName("openid"))
	require.Nil(t, r.FindIdentityResourceByName("email"))
	require.NotNil(t, r.FindApiScope("api1.write"))
	require.Len(t, r.FindApiResourcesByScope("api1.read"), 2)
	require.Len(t, r.FindApiResourcesByScope("api1.write"), 1)
	require.Equal(t, api2, r.FindApiResourceByName("api2"))
}

func TestResourcesFilterEnabled(t *testing.T) {
	disabled := NewApiScope("internal")
	disabled.Enabled = false

	r := NewResources(nil, nil, []*ApiScope{NewApiScope("api1"), disabled})
	filtered := r.FilterEnabled()
	require.Len(t, filtered.ApiScopes, 1)
	require.Equal(t, "api1", filtered.ApiScopes[0].Name)
}

func TestResourcesScopeNames(t *testing.T) {
	r := NewResources(
		[]*IdentityResource{OpenIDResource()},
		nil,
		[]*ApiScope{NewApiScope("api1")},
	)
	r.OfflineAccess = true
	require.ElementsMatch(t, []string{"openid", "api1", "offline_access"}, r.ScopeNames())
	require.False(t, r.IsEmpty())
	require.True(t, (&Resources{}).IsEmpty())
}
