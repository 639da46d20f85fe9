package smartrouter

import (
	"container/list"
	"sort"
	"sync"
	"time"
)

// cacheEntry is the value stored behind each LRUCache key, carrying its
// own optional TTL override so callers can mix default-TTL and
// permanent entries in the same cache.
type cacheEntry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration // zero means "use cache default"; negative means "never expires"
	element   *list.Element
}

// LRUCache is a generic, thread-safe cache with LRU eviction and optional
// TTL expiration, grounded in orchestration/cache.go's SimpleCache/LRUCache
// pair and the Python cache.py LRUCache it mirrors. Eviction happens on
// insert when size exceeds MaxSize; expiration is checked lazily on Get.
type LRUCache[K comparable, V any] struct {
	mu         sync.Mutex
	maxSize    int
	defaultTTL time.Duration // zero means entries never expire by default
	entries    map[K]*cacheEntry[V]
	order      *list.List // front = most recently used

	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

type lruListItem[K comparable] struct {
	key K
}

// NewLRUCache constructs a cache with the given capacity and default TTL.
// A zero defaultTTL means entries never expire unless given a per-entry
// TTL in Set.
func NewLRUCache[K comparable, V any](maxSize int, defaultTTL time.Duration) *LRUCache[K, V] {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &LRUCache[K, V]{
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		entries:    make(map[K]*cacheEntry[V]),
		order:      list.New(),
	}
}

func (c *LRUCache[K, V]) isExpired(e *cacheEntry[V]) bool {
	ttl := e.ttl
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if ttl <= 0 {
		return false
	}
	return time.Since(e.createdAt) > ttl
}

// Get returns the cached value for key, promoting it to most-recently-used.
// An expired entry is removed and counted as both an expiration and a
// miss, per spec.md §4.10.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.isExpired(e) {
		c.order.Remove(e.element)
		delete(c.entries, key)
		c.expirations++
		c.misses++
		return zero, false
	}
	c.order.MoveToFront(e.element)
	c.hits++
	return e.value, true
}

// Set inserts or replaces key's value. ttlOverride, if non-zero, replaces
// the cache's default TTL for this entry alone; pass a negative duration
// to mean "never expires" regardless of the cache default.
func (c *LRUCache[K, V]) Set(key K, value V, ttlOverride time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		c.order.Remove(existing.element)
		delete(c.entries, key)
	}

	elem := c.order.PushFront(lruListItem[K]{key: key})
	c.entries[key] = &cacheEntry[V]{
		value:     value,
		createdAt: time.Now(),
		ttl:       ttlOverride,
		element:   elem,
	}

	if len(c.entries) > c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			key := oldest.Value.(lruListItem[K]).key
			c.order.Remove(oldest)
			delete(c.entries, key)
			c.evictions++
		}
	}
}

// Clear removes every entry.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*cacheEntry[V])
	c.order = list.New()
}

// CacheMetrics is the snapshot returned by LRUCache.GetMetrics.
type CacheMetrics struct {
	Hits        int64
	Misses      int64
	HitRate     float64
	Size        int
	MaxSize     int
	Evictions   int64
	Expirations int64
}

// GetMetrics returns a point-in-time snapshot of cache counters.
func (c *LRUCache[K, V]) GetMetrics() CacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return CacheMetrics{
		Hits:        c.hits,
		Misses:      c.misses,
		HitRate:     hitRate,
		Size:        len(c.entries),
		MaxSize:     c.maxSize,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
}

// RoutingCache caches capability -> agent_id routing decisions. It is a
// thin LRUCache[string,string] with the spec.md §3 defaults: size 500,
// TTL 1 hour.
type RoutingCache struct {
	*LRUCache[string, string]
}

// NewRoutingCache constructs a RoutingCache with the given capacity and
// TTL (defaults: 500 entries, 1 hour).
func NewRoutingCache(maxSize int, ttl time.Duration) *RoutingCache {
	if maxSize <= 0 {
		maxSize = 500
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RoutingCache{LRUCache: NewLRUCache[string, string](maxSize, ttl)}
}

func (c *RoutingCache) GetRouting(capability string) (string, bool) {
	return c.Get(capability)
}

func (c *RoutingCache) SetRouting(capability, agentID string) {
	c.Set(capability, agentID, 0)
}

// CapabilityIndex is the immutable-after-initialization forward and
// reverse capability index described in spec.md §3/§4.10.
type CapabilityIndex struct {
	mu      sync.RWMutex
	forward map[string][]string // agent_id -> capabilities
	reverse map[string][]string // capability -> ordered agent_ids
}

// NewCapabilityIndex returns an empty index; Initialize fills it from an
// agent_id -> capabilities map and is idempotent when called again with
// identical input.
func NewCapabilityIndex() *CapabilityIndex {
	return &CapabilityIndex{
		forward: make(map[string][]string),
		reverse: make(map[string][]string),
	}
}

// Initialize (re)builds the index from a full capability map. Safe to
// call more than once; a second call with identical input is a no-op in
// effect (same resulting maps).
func (idx *CapabilityIndex) Initialize(capabilityMap map[string][]string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.forward = make(map[string][]string, len(capabilityMap))
	idx.reverse = make(map[string][]string)

	// Deterministic agent order for the reverse index regardless of map
	// iteration order, so routing ties resolve the same way every run.
	agentIDs := make([]string, 0, len(capabilityMap))
	for agentID := range capabilityMap {
		agentIDs = append(agentIDs, agentID)
	}
	sort.Strings(agentIDs)

	for _, agentID := range agentIDs {
		caps := capabilityMap[agentID]
		idx.forward[agentID] = append([]string(nil), caps...)
		for _, cap := range caps {
			idx.reverse[cap] = append(idx.reverse[cap], agentID)
		}
	}
}

// GetAgentCapabilities returns the capabilities advertised by agentID.
func (idx *CapabilityIndex) GetAgentCapabilities(agentID string) ([]string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	caps, ok := idx.forward[agentID]
	return caps, ok
}

// FindAgentsForCapability returns every agent_id advertising capability,
// in the index's deterministic agent order.
func (idx *CapabilityIndex) FindAgentsForCapability(capability string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.reverse[capability]...)
}

// AllCapabilities returns a snapshot of the full reverse index, used by
// the Router's fuzzy and domain-fallback matching passes.
func (idx *CapabilityIndex) AllCapabilities() map[string][]string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string][]string, len(idx.reverse))
	for k, v := range idx.reverse {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// PhaseStats is the statistics PerformanceMetrics.GetStats returns for one
// phase: count/min/max/avg/p50/p95/p99, computed over the current ring
// contents at query time.
type PhaseStats struct {
	Count int
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

const phaseRingSize = 100

// PerformanceMetrics tracks a bounded ring (last 100) of durations per
// pipeline phase, grounded in the Python cache.py PerformanceMetrics.
type PerformanceMetrics struct {
	mu      sync.Mutex
	phases  map[string][]time.Duration
}

// NewPerformanceMetrics constructs an empty metrics tracker. Phases are
// created lazily on first Record.
func NewPerformanceMetrics() *PerformanceMetrics {
	return &PerformanceMetrics{phases: make(map[string][]time.Duration)}
}

// Record appends duration to phase's ring, trimming to the last 100
// entries.
func (m *PerformanceMetrics) Record(phase string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	durations := append(m.phases[phase], duration)
	if len(durations) > phaseRingSize {
		durations = durations[len(durations)-phaseRingSize:]
	}
	m.phases[phase] = durations
}

// GetStats computes statistics over phase's current ring contents.
func (m *PerformanceMetrics) GetStats(phase string) (PhaseStats, bool) {
	m.mu.Lock()
	durations := append([]time.Duration(nil), m.phases[phase]...)
	m.mu.Unlock()

	if len(durations) == 0 {
		return PhaseStats{}, false
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	count := len(durations)
	percentile := func(p float64) time.Duration {
		idx := int(float64(count) * p)
		if idx >= count {
			idx = count - 1
		}
		return durations[idx]
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return PhaseStats{
		Count: count,
		Min:   durations[0],
		Max:   durations[count-1],
		Avg:   sum / time.Duration(count),
		P50:   percentile(0.50),
		P95:   percentile(0.95),
		P99:   percentile(0.99),
	}, true
}

// GetAllStats returns statistics for every phase recorded so far, the Go
// equivalent of the Python get_all_stats (see SPEC_FULL.md Supplemented
// Features).
func (m *PerformanceMetrics) GetAllStats() map[string]PhaseStats {
	m.mu.Lock()
	phaseNames := make([]string, 0, len(m.phases))
	for phase := range m.phases {
		phaseNames = append(phaseNames, phase)
	}
	m.mu.Unlock()

	out := make(map[string]PhaseStats, len(phaseNames))
	for _, phase := range phaseNames {
		if stats, ok := m.GetStats(phase); ok {
			out[phase] = stats
		}
	}
	return out
}

// Process-wide singletons, acquired through accessor functions and
// initialized on first use, per spec.md §9 "Caches as process-wide state".
var (
	globalCapabilityIndexOnce sync.Once
	globalCapabilityIndex     *CapabilityIndex

	globalRoutingCacheOnce sync.Once
	globalRoutingCache     *RoutingCache

	globalPerformanceMetricsOnce sync.Once
	globalPerformanceMetrics     *PerformanceMetrics
)

// GlobalCapabilityIndex returns the process-wide CapabilityIndex,
// constructing it on first call.
func GlobalCapabilityIndex() *CapabilityIndex {
	globalCapabilityIndexOnce.Do(func() {
		globalCapabilityIndex = NewCapabilityIndex()
	})
	return globalCapabilityIndex
}

// GlobalRoutingCache returns the process-wide RoutingCache, constructing
// it with spec.md defaults on first call.
func GlobalRoutingCache() *RoutingCache {
	globalRoutingCacheOnce.Do(func() {
		globalRoutingCache = NewRoutingCache(500, time.Hour)
	})
	return globalRoutingCache
}

// GlobalPerformanceMetrics returns the process-wide PerformanceMetrics,
// constructing it on first call.
func GlobalPerformanceMetrics() *PerformanceMetrics {
	globalPerformanceMetricsOnce.Do(func() {
		globalPerformanceMetrics = NewPerformanceMetrics()
	})
	return globalPerformanceMetrics
}

// ResetGlobalCaches clears every process-wide cache and metrics tracker.
// Tests must call this between cases to avoid cross-contamination — in
// the original implementation several routing tests demonstrably depend
// on a fresh index (spec.md §9).
func ResetGlobalCaches() {
	GlobalCapabilityIndex().Initialize(map[string][]string{})
	GlobalRoutingCache().Clear()
	globalPerformanceMetricsOnce = sync.Once{}
	globalPerformanceMetrics = nil
}
