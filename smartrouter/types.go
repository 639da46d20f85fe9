// Package smartrouter implements the multi-agent query orchestration
// pipeline: fast-path classification, LLM-based interpretation,
// decomposition into concurrently dispatchable subqueries, capability
// routing, concurrent dispatch with retry/backoff, response aggregation,
// synthesis, and quality-gated fallback.
package smartrouter

import "time"

// QueryComplexity classifies how much work a query needs.
type QueryComplexity string

const (
	ComplexitySimple   QueryComplexity = "SIMPLE"
	ComplexityModerate QueryComplexity = "MODERATE"
	ComplexityComplex  QueryComplexity = "COMPLEX"
)

// RoutingPattern describes how a subquery is handed to its agent.
type RoutingPattern string

const (
	RoutingDelegation RoutingPattern = "DELEGATION"
	RoutingHandoff    RoutingPattern = "HANDOFF"
)

// FinalDecision is the closed set of outcomes route_query can report.
type FinalDecision string

const (
	DecisionChitchat    FinalDecision = "chitchat"
	DecisionFastPath    FinalDecision = "fast_path"
	DecisionDirect      FinalDecision = "direct"
	DecisionSynthesized FinalDecision = "synthesized"
	DecisionFallback    FinalDecision = "fallback"
	DecisionError       FinalDecision = "error"
)

// QueryIntent is the result of interpreting a raw user query.
type QueryIntent struct {
	OriginalQuery     string
	Complexity        QueryComplexity
	Domains           []string
	RequiresSynthesis bool
	Metadata          map[string]interface{}
}

// Subquery is one atomic, independently routable unit of a decomposition.
type Subquery struct {
	ID                 string
	Text               string
	CapabilityRequired string
	Dependencies       []string
	RoutingPattern     RoutingPattern
}

// Usage mirrors the token accounting a completion provider may report.
type Usage struct {
	TotalTokens      int
	PromptTokens     int
	CompletionTokens int
}

// AgentResponse is the result of dispatching one Subquery to one agent.
// Owned by the Dispatcher until handed to the Aggregator; immutable
// thereafter.
type AgentResponse struct {
	SubqueryID string
	AgentID    string
	Content    string
	Success    bool
	Error      string
	Metadata   map[string]interface{}
}

// SynthesizedResult merges one or more AgentResponse values into a single
// coherent answer.
type SynthesizedResult struct {
	Answer            string
	Sources           []string
	Confidence        float64
	ConflictsResolved []string
	Metadata          map[string]interface{}
}

// EvaluationResult is the Judge's verdict on a synthesized answer.
type EvaluationResult struct {
	IsHighQuality    bool
	CompletenessScore float64
	AccuracyScore     float64
	ClarityScore      float64
	Issues            []string
	ShouldFallback    bool
	Metadata          map[string]interface{}
}

// PhaseTrace records one pipeline stage's timing and outcome.
type PhaseTrace struct {
	Phase    string
	Duration time.Duration
	Data     map[string]interface{}
	Success  bool
	Error    string
}

// ToMap renders a PhaseTrace the way the wire-format ExecutionResult
// expects: duration in seconds, rounded to 3 decimal places.
func (t PhaseTrace) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"phase":    t.Phase,
		"duration": roundSeconds(t.Duration),
		"data":     t.Data,
		"success":  t.Success,
		"error":    errOrNil(t.Error),
	}
}

func errOrNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func roundSeconds(d time.Duration) float64 {
	secs := d.Seconds()
	return float64(int64(secs*1000+0.5)) / 1000.0
}

// ExecutionResult is the outbound contract of route_query.
type ExecutionResult struct {
	Answer         string
	Traces         []PhaseTrace
	TotalTime      time.Duration
	FinalDecision  FinalDecision
	AgentsUsed     []string
	Success        bool
	OriginalAnswer string
	HasOriginal    bool
}

// ToMap serializes an ExecutionResult into the JSON shape spec.md §6
// requires, including the conditional original_answer field.
func (r ExecutionResult) ToMap() map[string]interface{} {
	traces := make([]map[string]interface{}, 0, len(r.Traces))
	for _, t := range r.Traces {
		traces = append(traces, t.ToMap())
	}
	out := map[string]interface{}{
		"answer":         r.Answer,
		"traces":         traces,
		"total_time":     roundSeconds(r.TotalTime),
		"final_decision": string(r.FinalDecision),
		"agents_used":    r.AgentsUsed,
		"success":        r.Success,
	}
	if r.HasOriginal {
		out["original_answer"] = r.OriginalAnswer
	}
	return out
}

// Metadata returns every ExecutionResult field except Answer, mirroring
// the Python SmartRouterExecutionResult.metadata property.
func (r ExecutionResult) Metadata() map[string]interface{} {
	m := r.ToMap()
	delete(m, "answer")
	return m
}
