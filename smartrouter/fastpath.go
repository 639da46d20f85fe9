package smartrouter

import (
	"regexp"
	"sync"

	"github.com/asdrp/smartrouter/core"
)

// fastPathPattern is one named, compiled chitchat matcher.
type fastPathPattern struct {
	name    string
	regex   *regexp.Regexp
	domains []string
}

// anchor wraps a pattern body so it matches only the whole trimmed input,
// case-insensitively, tolerating a trailing run of !.? punctuation.
func anchor(body string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^\s*` + body + `\s*[!.?]*\s*$`)
}

// defaultFastPathPatterns covers pure chitchat only: greetings,
// time-of-day greetings, farewells, gratitude, status inquiries,
// affirmations, negations. Any substantive question must miss every
// pattern here.
func defaultFastPathPatterns() []fastPathPattern {
	return []fastPathPattern{
		{"greeting", anchor(`(hi|hello|hey|yo|howdy)`), []string{"conversation", "social"}},
		{"time_of_day_greeting", anchor(`good\s+(morning|afternoon|evening|night)`), []string{"conversation", "social"}},
		{"farewell", anchor(`(bye|goodbye|see\s+you(\s+later)?|take\s+care|farewell)`), []string{"conversation", "social"}},
		{"gratitude", anchor(`((thanks|thank\s+you)(\s+(so|very)\s+much|\s+a\s+lot)?|thx|ty|much\s+appreciated)`), []string{"conversation", "social"}},
		{"status_inquiry", anchor(`how('?s|\s+is|\s+are)\s+(it\s+going|you\s+doing|you|things|everything)`), []string{"conversation", "social"}},
		{"affirmation", anchor(`(yes|yeah|yep|sure|ok|okay|alright|sounds\s+good)`), []string{"conversation", "social"}},
		{"negation", anchor(`(no|nope|nah|not\s+really)`), []string{"conversation", "social"}},
	}
}

// FastPathMetrics is the snapshot FastPathRouter.GetMetrics returns.
type FastPathMetrics struct {
	TotalAttempts int64
	TotalMatches  int64
	MatchRate     float64
	PerPattern    map[string]int64
}

// FastPathRouter is the regex-only pre-classifier for pure chitchat,
// grounded in fast_path_router.py. Pattern matching is safe under
// concurrent reads; mutation (AddPattern/RemovePattern) is expected to
// happen only during single-threaded setup, matching the Python source's
// own concurrency contract.
type FastPathRouter struct {
	mu       sync.RWMutex
	patterns []fastPathPattern

	metricsMu     sync.Mutex
	totalAttempts int64
	totalMatches  int64
	perPattern    map[string]int64

	logger core.Logger
}

// NewFastPathRouter constructs a router preloaded with the default
// chitchat patterns.
func NewFastPathRouter(logger core.Logger) *FastPathRouter {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &FastPathRouter{
		patterns:   defaultFastPathPatterns(),
		perPattern: make(map[string]int64),
		logger:     logger,
	}
}

// TryFastPath attempts to classify text as pure chitchat. Patterns are
// scanned in declared order; the first match wins. Returns (intent, true)
// on a match, (zero-value, false) on a miss.
func (f *FastPathRouter) TryFastPath(text string) (QueryIntent, bool) {
	f.metricsMu.Lock()
	f.totalAttempts++
	f.metricsMu.Unlock()

	f.mu.RLock()
	patterns := f.patterns
	f.mu.RUnlock()

	for _, p := range patterns {
		if p.regex.MatchString(text) {
			f.metricsMu.Lock()
			f.totalMatches++
			f.perPattern[p.name]++
			f.metricsMu.Unlock()

			f.logger.Debug("fast path matched", map[string]interface{}{
				"component": "smartrouter/fastpath",
				"pattern":   p.name,
			})

			return QueryIntent{
				OriginalQuery:     text,
				Complexity:        ComplexitySimple,
				Domains:           append([]string(nil), p.domains...),
				RequiresSynthesis: false,
				Metadata: map[string]interface{}{
					"fast_path":            true,
					"fast_path_pattern":    p.name,
					"fast_path_confidence": 1.0,
				},
			}, true
		}
	}
	return QueryIntent{}, false
}

// AddPattern registers a new named chitchat pattern, appended after all
// existing patterns so earlier patterns keep priority. The body is
// anchored the same way the defaults are.
func (f *FastPathRouter) AddPattern(name, body string, domains []string) error {
	regex, err := regexp.Compile(`(?i)^\s*` + body + `\s*[!.?]*\s*$`)
	if err != nil {
		return NewError(KindConfigError, "invalid fast path pattern", map[string]interface{}{"name": name, "error": err.Error()})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, fastPathPattern{name: name, regex: regex, domains: domains})
	return nil
}

// RemovePattern removes a pattern by name. Returns false if no pattern
// with that name was registered.
func (f *FastPathRouter) RemovePattern(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, p := range f.patterns {
		if p.name == name {
			f.patterns = append(f.patterns[:i], f.patterns[i+1:]...)
			return true
		}
	}
	return false
}

// ListPatterns returns the names of every registered pattern in match
// order.
func (f *FastPathRouter) ListPatterns() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.patterns))
	for _, p := range f.patterns {
		names = append(names, p.name)
	}
	return names
}

// GetMetrics returns a snapshot of match counters.
func (f *FastPathRouter) GetMetrics() FastPathMetrics {
	f.metricsMu.Lock()
	defer f.metricsMu.Unlock()

	var matchRate float64
	if f.totalAttempts > 0 {
		matchRate = float64(f.totalMatches) / float64(f.totalAttempts)
	}
	perPattern := make(map[string]int64, len(f.perPattern))
	for k, v := range f.perPattern {
		perPattern[k] = v
	}
	return FastPathMetrics{
		TotalAttempts: f.totalAttempts,
		TotalMatches:  f.totalMatches,
		MatchRate:     matchRate,
		PerPattern:    perPattern,
	}
}

// ResetMetrics zeroes all counters without touching registered patterns.
func (f *FastPathRouter) ResetMetrics() {
	f.metricsMu.Lock()
	defer f.metricsMu.Unlock()
	f.totalAttempts = 0
	f.totalMatches = 0
	f.perPattern = make(map[string]int64)
}
