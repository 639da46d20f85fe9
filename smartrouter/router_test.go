package smartrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCapabilityMap() map[string][]string {
	return map[string][]string{
		"weather-agent": {"weather"},
		"news-agent":    {"news", "current_events"},
		"geo-agent":     {"geocoding", "mapping"},
	}
}

func TestRouteCapabilityExactMatch(t *testing.T) {
	r := NewRouter(testCapabilityMap(), nil)
	agentID, err := r.RouteCapability("weather")
	require.NoError(t, err)
	assert.Equal(t, "weather-agent", agentID)
}

func TestRouteCapabilityCachesResult(t *testing.T) {
	r := NewRouter(testCapabilityMap(), nil)
	_, err := r.RouteCapability("news")
	require.NoError(t, err)

	cached, ok := r.routingCache.GetRouting("news")
	require.True(t, ok)
	assert.Equal(t, "news-agent", cached)
}

func TestRouteCapabilityFuzzyMatchFallback(t *testing.T) {
	r := NewRouter(testCapabilityMap(), nil)
	// "geocoding_lookup" is not an exact advertised capability, but it
	// contains the advertised "geocoding" capability as a substring.
	agentID, err := r.RouteCapability("geocoding_lookup")
	require.NoError(t, err)
	assert.Equal(t, "geo-agent", agentID)
}

func TestRouteCapabilityDomainFallback(t *testing.T) {
	// "primary" advertises a capability unrelated to its own id, so a
	// query for "primary-assistant" can only resolve through the
	// agent-id domain fallback tier, never through fuzzy capability match.
	r := NewRouter(map[string][]string{"primary": {"weather"}}, nil)
	agentID, err := r.RouteCapability("primary-assistant")
	require.NoError(t, err)
	assert.Equal(t, "primary", agentID)
}

func TestRouteCapabilityNoMatchReturnsError(t *testing.T) {
	r := NewRouter(testCapabilityMap(), nil)
	_, err := r.RouteCapability("astrology")
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindNoAgentForCapability, se.Kind)
}

func TestCanRouteDoesNotMutateCache(t *testing.T) {
	r := NewRouter(testCapabilityMap(), nil)
	assert.True(t, r.CanRoute("weather"))
	_, ok := r.routingCache.GetRouting("weather")
	assert.False(t, ok, "CanRoute must not write through to the routing cache")
}

func TestCanRouteFalseForUnroutable(t *testing.T) {
	r := NewRouter(testCapabilityMap(), nil)
	assert.False(t, r.CanRoute("astrology"))
}

func TestRouteDefaultsToDelegationPattern(t *testing.T) {
	r := NewRouter(testCapabilityMap(), nil)
	agentID, pattern, err := r.Route(Subquery{ID: "sq1", CapabilityRequired: "weather"})
	require.NoError(t, err)
	assert.Equal(t, "weather-agent", agentID)
	assert.Equal(t, RoutingDelegation, pattern)
}

func TestRoutePreservesExplicitPattern(t *testing.T) {
	r := NewRouter(testCapabilityMap(), nil)
	_, pattern, err := r.Route(Subquery{ID: "sq1", CapabilityRequired: "weather", RoutingPattern: RoutingHandoff})
	require.NoError(t, err)
	assert.Equal(t, RoutingHandoff, pattern)
}

func TestTieBreakPrefersFewerCapabilitiesThenAlphabetical(t *testing.T) {
	capMap := map[string][]string{
		"generalist": {"search", "weather", "news"},
		"specialist": {"search"},
	}
	r := NewRouter(capMap, nil)
	agentID, err := r.RouteCapability("search")
	require.NoError(t, err)
	assert.Equal(t, "specialist", agentID)
}

func TestWithProcessWideCachesSharesGlobalIndex(t *testing.T) {
	ResetGlobalCaches()
	defer ResetGlobalCaches()

	NewRouter(testCapabilityMap(), nil, WithProcessWideCaches())
	agents := GlobalCapabilityIndex().FindAgentsForCapability("weather")
	assert.Equal(t, []string{"weather-agent"}, agents)
}
