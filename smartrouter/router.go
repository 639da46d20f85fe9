package smartrouter

import (
	"sort"
	"strings"

	"github.com/asdrp/smartrouter/core"
)

// Router maps a Subquery's required capability to an agent id, in
// priority order: routing cache, exact capability-index match, fuzzy
// substring match, then domain fallback. Construction builds (and,
// when caching is enabled, seeds the process-wide) CapabilityIndex.
type Router struct {
	capabilityMap map[string][]string // agent_id -> capabilities, as given at construction
	index         *CapabilityIndex
	routingCache  *RoutingCache
	logger        core.Logger
}

// RouterOption configures optional Router behavior.
type RouterOption func(*Router)

// WithProcessWideCaches seeds the Router's CapabilityIndex and
// RoutingCache from the process-wide singletons (spec.md §9 "Caches as
// process-wide state") instead of private per-Router instances.
func WithProcessWideCaches() RouterOption {
	return func(r *Router) {
		r.index = GlobalCapabilityIndex()
		r.routingCache = GlobalRoutingCache()
	}
}

// NewRouter constructs a Router from a capability map (agent_id ->
// capabilities). By default each Router owns a private CapabilityIndex
// and RoutingCache; pass WithProcessWideCaches to share the process-wide
// singletons instead.
func NewRouter(capabilityMap map[string][]string, logger core.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	r := &Router{
		capabilityMap: capabilityMap,
		index:         NewCapabilityIndex(),
		routingCache:  NewRoutingCache(500, 0),
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.index.Initialize(capabilityMap)
	return r
}

// Route resolves a Subquery to the agent id that should handle it and
// the routing pattern to use. Positive lookups (other than routing-cache
// hits, which are already cached) are written back to the RoutingCache.
func (r *Router) Route(sq Subquery) (agentID string, pattern RoutingPattern, err error) {
	pattern = sq.RoutingPattern
	if pattern == "" {
		pattern = RoutingDelegation
	}

	agentID, err = r.RouteCapability(sq.CapabilityRequired)
	if err != nil {
		return "", "", err
	}
	return agentID, pattern, nil
}

// RouteCapability resolves a bare capability string to an agent id,
// independent of any particular Subquery. Used directly by the
// Orchestrator's simple-query path, which routes by domain-derived
// capability rather than by a decomposed Subquery.
func (r *Router) RouteCapability(capability string) (string, error) {
	if cached, ok := r.routingCache.GetRouting(capability); ok {
		return cached, nil
	}

	candidates := r.index.FindAgentsForCapability(capability)

	if len(candidates) == 0 {
		candidates = r.fuzzyMatch(capability)
	}
	if len(candidates) == 0 {
		candidates = r.domainFallback(capability)
	}
	if len(candidates) == 0 {
		return "", NewError(KindNoAgentForCapability, "no agent found for capability", map[string]interface{}{"capability": capability})
	}

	agentID := r.tieBreak(candidates)
	r.routingCache.SetRouting(capability, agentID)
	return agentID, nil
}

// CanRoute reports whether capability currently resolves to at least one
// agent, without consulting or mutating the routing cache.
func (r *Router) CanRoute(capability string) bool {
	if len(r.index.FindAgentsForCapability(capability)) > 0 {
		return true
	}
	if len(r.fuzzyMatch(capability)) > 0 {
		return true
	}
	return len(r.domainFallback(capability)) > 0
}

// fuzzyMatch finds any indexed capability that contains, or is contained
// in, the requested capability string, returning every agent id advertising
// one of those capabilities.
func (r *Router) fuzzyMatch(capability string) []string {
	lower := strings.ToLower(capability)
	var matches []string
	seen := make(map[string]bool)

	for cap, agents := range r.index.AllCapabilities() {
		capLower := strings.ToLower(cap)
		if strings.Contains(capLower, lower) || strings.Contains(lower, capLower) {
			for _, a := range agents {
				if !seen[a] {
					seen[a] = true
					matches = append(matches, a)
				}
			}
		}
	}
	return matches
}

// domainFallback finds any agent id that contains, or is contained in,
// the capability string.
func (r *Router) domainFallback(capability string) []string {
	lower := strings.ToLower(capability)
	var matches []string

	agentIDs := make([]string, 0, len(r.capabilityMap))
	for agentID := range r.capabilityMap {
		agentIDs = append(agentIDs, agentID)
	}
	sort.Strings(agentIDs)

	for _, agentID := range agentIDs {
		idLower := strings.ToLower(agentID)
		if strings.Contains(idLower, lower) || strings.Contains(lower, idLower) {
			matches = append(matches, agentID)
		}
	}
	return matches
}

// tieBreak deterministically picks one agent among candidates: fewest
// total advertised capabilities wins (most specialized); ties break
// alphabetically by id.
func (r *Router) tieBreak(candidates []string) string {
	best := candidates[0]
	bestCount := len(r.capabilityMap[best])

	for _, c := range candidates[1:] {
		count := len(r.capabilityMap[c])
		if count < bestCount || (count == bestCount && c < best) {
			best = c
			bestCount = count
		}
	}
	return best
}
