package smartrouter

import (
	"context"
	"sort"
	"time"

	"github.com/asdrp/smartrouter/core"
	"github.com/google/uuid"
)

// domainPriority ranks recognized domains for handle_simple's
// capability selection (spec.md §4.9), reproduced verbatim from the
// Python reference's DOMAIN_PRIORITY table.
var domainPriority = map[string]int{
	"weather":        12,
	"news":           12,
	"current_events": 12,
	"realtime":       11,
	"local_business": 10,
	"finance":        9,
	"geography":      8,
	"geocoding":      8,
	"mapping":        7,
	"research":       6,
	"wikipedia":      5,
	"search":         4,
	"web_search":     4,
	"conversation":   3,
	"social":         3,
}

// domainToCapability maps an Interpreter-reported domain to the
// capability tag the Router understands, reproduced verbatim from the
// Python reference's DOMAIN_TO_CAPABILITY table. Preserves the
// geography/mapping distinction spec.md §9 calls out explicitly.
var domainToCapability = map[string]string{
	"geography":      "geocoding",
	"geocoding":      "geocoding",
	"mapping":        "mapping",
	"finance":        "finance",
	"local_business": "local_business",
	"research":       "research",
	"wikipedia":      "wikipedia",
	"conversation":   "conversation",
	"social":         "conversation",
	"search":         "search",
	"web_search":     "search",
	"weather":        "weather",
	"news":           "news",
	"current_events": "current_events",
	"realtime":       "realtime",
}

const conversationalAgentID = "chitchat"

// Orchestrator drives the SmartRouter pipeline end to end: fast path,
// interpretation, decomposition, routing, dispatch, aggregation,
// synthesis, and quality-gated evaluation. It holds each stage as a
// concrete stage type; tests substitute behaviour through the stages'
// own dependencies (providers, invokers, session store).
type Orchestrator struct {
	fastPath     *FastPathRouter
	interpreter  *Interpreter
	decomposer   *Decomposer
	router       *Router
	dispatcher   *Dispatcher
	aggregator   *Aggregator
	synthesizer  *Synthesizer
	judge        *Judge
	sessionStore SessionStore
	config       *Config
	logger       core.Logger
	tel          core.Telemetry
}

// OrchestratorDeps bundles every stage the Orchestrator needs. The stage
// fields are required. SessionStore defaults to a private,
// process-lifetime in-memory store; Config, Logger and Telemetry also
// fall back to defaults when nil.
type OrchestratorDeps struct {
	FastPath     *FastPathRouter
	Interpreter  *Interpreter
	Decomposer   *Decomposer
	Router       *Router
	Dispatcher   *Dispatcher
	Aggregator   *Aggregator
	Synthesizer  *Synthesizer
	Judge        *Judge
	SessionStore SessionStore
	Config       *Config
	Logger       core.Logger
	Telemetry    core.Telemetry
}

// NewOrchestrator assembles an Orchestrator from its stage dependencies.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	tel := deps.Telemetry
	if tel == nil {
		tel = &core.NoOpTelemetry{}
	}
	sessionStore := deps.SessionStore
	if sessionStore == nil {
		sessionStore = NewMemorySessionStore(nil)
	}
	config := deps.Config
	if config == nil {
		config = DefaultConfig()
	}

	return &Orchestrator{
		fastPath:     deps.FastPath,
		interpreter:  deps.Interpreter,
		decomposer:   deps.Decomposer,
		router:       deps.Router,
		dispatcher:   deps.Dispatcher,
		aggregator:   deps.Aggregator,
		synthesizer:  deps.Synthesizer,
		judge:        deps.Judge,
		sessionStore: sessionStore,
		config:       config,
		logger:       logger,
		tel:          tel,
	}
}

// RouteQuery is the core inbound contract (spec.md §6): it always
// returns a well-formed ExecutionResult, never an error — any failure
// deep in the pipeline is caught at this boundary and mapped to a
// fallback result with success=false (spec.md §7).
func (o *Orchestrator) RouteQuery(ctx context.Context, text string, sessionID string) ExecutionResult {
	overallStart := time.Now()
	trace := NewTraceCapture()

	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	history, histErr := o.sessionStore.History(ctx, sessionID)
	if histErr != nil {
		o.logger.WarnWithContext(ctx, "failed to load session history", map[string]interface{}{
			"component":  "smartrouter/orchestrator",
			"session_id": sessionID,
			"error":      histErr.Error(),
		})
	}
	ctx = WithSessionHistory(ctx, history)

	if appendErr := o.sessionStore.Append(ctx, sessionID, SessionMessage{Role: "user", Content: text, Timestamp: time.Now()}); appendErr != nil {
		o.logger.WarnWithContext(ctx, "failed to append query to session history", map[string]interface{}{
			"component":  "smartrouter/orchestrator",
			"session_id": sessionID,
			"error":      appendErr.Error(),
		})
	}

	if intent, ok := o.fastPath.TryFastPath(text); ok {
		h := trace.Begin("fast_path")
		h.RecordData("pattern", intent.Metadata["fast_path_pattern"])
		trace.End(h, nil)

		answer, agentID, err := o.handleSimple(ctx, intent, sessionID, trace)
		if err != nil {
			return o.errorResult(trace, overallStart, err)
		}
		trace.RecordAgentUsed(agentID)

		decision := DecisionFastPath
		if containsAny(intent.Domains, "conversation", "social") {
			decision = DecisionChitchat
		}
		return o.finish(trace, overallStart, answer, decision, true, "")
	}

	var intent QueryIntent
	err := trace.Phase("interpretation", func(h *phaseHandle) error {
		var interpretErr error
		intent, interpretErr = o.interpreter.Interpret(ctx, text)
		if interpretErr == nil {
			h.RecordData("complexity", string(intent.Complexity))
			h.RecordData("domains", intent.Domains)
		}
		return interpretErr
	})
	if err != nil {
		return o.errorResult(trace, overallStart, err)
	}

	var answer string
	if intent.Complexity == ComplexitySimple {
		answer, _, err = o.handleSimple(ctx, intent, sessionID, trace)
	} else {
		answer, err = o.handleComplex(ctx, intent, sessionID, trace)
	}
	if err != nil {
		return o.errorResult(trace, overallStart, err)
	}

	if containsAny(intent.Domains, "conversation", "social") {
		return o.finish(trace, overallStart, answer, DecisionChitchat, true, "")
	}

	var eval EvaluationResult
	_ = trace.Phase("evaluation", func(h *phaseHandle) error {
		eval = o.judge.Evaluate(ctx, answer, text)
		h.RecordData("completeness", eval.CompletenessScore)
		h.RecordData("accuracy", eval.AccuracyScore)
		h.RecordData("clarity", eval.ClarityScore)
		h.RecordData("should_fallback", eval.ShouldFallback)
		return nil
	})

	if eval.ShouldFallback {
		return o.finishWithOriginal(trace, overallStart, o.config.Evaluation.FallbackMessage, answer, DecisionFallback, true)
	}

	decision := DecisionDirect
	if len(trace.AgentsUsed()) > 1 {
		decision = DecisionSynthesized
	}
	return o.finish(trace, overallStart, answer, decision, true, "")
}

// handleSimple implements spec.md §4.9's handle_simple: pick the
// highest-priority routable domain, translate it to a capability, route,
// and invoke the agent directly.
func (o *Orchestrator) handleSimple(ctx context.Context, intent QueryIntent, sessionID string, trace *TraceCapture) (answer string, agentID string, err error) {
	isChitchat := containsAny(intent.Domains, "conversation", "social")

	primaryCapability := "search"
	if len(intent.Domains) > 0 {
		primaryCapability = domainToCapability[highestPriorityDomain(intent.Domains)]
		if primaryCapability == "" {
			primaryCapability = highestPriorityDomain(intent.Domains)
		}
	}

	if isChitchat {
		primaryCapability = "conversation"
	}

	if isChitchat && o.router.CanRoute(primaryCapability) {
		agentID, err = o.router.RouteCapability(primaryCapability)
		if err == nil && agentID != conversationalAgentID && o.router.CanRoute(conversationalAgentID) {
			if preferred, preferErr := o.router.RouteCapability(conversationalAgentID); preferErr == nil {
				agentID = preferred
			}
		}
	} else if o.router.CanRoute(primaryCapability) {
		agentID, err = o.router.RouteCapability(primaryCapability)
	} else {
		agentID, primaryCapability, err = o.tryAlternativeDomains(intent.Domains, primaryCapability)
	}

	if err != nil || agentID == "" {
		return "", "", NewError(KindNoAgentForCapability, "no agent available for capability", map[string]interface{}{
			"capability": primaryCapability,
		})
	}

	h := trace.Begin("routing")
	h.RecordData("pattern", "SIMPLE")
	h.RecordData("agent", agentID)
	h.RecordData("domains", intent.Domains)
	trace.End(h, nil)

	var content string
	dispatchErr := trace.Phase("execution", func(th *phaseHandle) error {
		sq := Subquery{ID: "simple", Text: intent.OriginalQuery, CapabilityRequired: primaryCapability, RoutingPattern: RoutingDelegation}
		resp := o.dispatcher.Dispatch(ctx, sq, agentID, RoutingDelegation, sessionID, 0)
		th.RecordData("success", resp.Success)
		if !resp.Success {
			return NewError(KindAgentError, resp.Error, map[string]interface{}{"agent": agentID})
		}
		content = resp.Content
		return nil
	})
	if dispatchErr != nil {
		return "", "", dispatchErr
	}

	if appendErr := o.sessionStore.Append(ctx, sessionID, SessionMessage{Role: "agent", Content: content, AgentID: agentID, Timestamp: time.Now()}); appendErr != nil {
		o.logger.WarnWithContext(ctx, "failed to append agent response to session history", map[string]interface{}{
			"component":  "smartrouter/orchestrator",
			"session_id": sessionID,
			"agent":      agentID,
			"error":      appendErr.Error(),
		})
	}

	trace.RecordAgentUsed(agentID)
	return content, agentID, nil
}

// tryAlternativeDomains retries handle_simple's capability selection
// over the remaining domains in descending priority order, falling back
// to "search" only when nothing else routes.
func (o *Orchestrator) tryAlternativeDomains(domains []string, primaryCapability string) (string, string, error) {
	sorted := append([]string(nil), domains...)
	sort.Slice(sorted, func(i, j int) bool { return domainPriority[sorted[i]] > domainPriority[sorted[j]] })

	for _, domain := range sorted {
		capability := domainToCapability[domain]
		if capability == "" {
			capability = domain
		}
		if capability == primaryCapability {
			continue
		}
		if o.router.CanRoute(capability) {
			agentID, err := o.router.RouteCapability(capability)
			if err == nil {
				return agentID, capability, nil
			}
		}
	}

	if o.router.CanRoute("search") {
		agentID, err := o.router.RouteCapability("search")
		if err == nil {
			return agentID, "search", nil
		}
	}
	return "", primaryCapability, NewError(KindNoAgentForCapability, "no routable domain", map[string]interface{}{"domains": domains})
}

// highestPriorityDomain returns the domain with the greatest
// domainPriority value, breaking ties (several domains share a
// priority) by the earliest occurrence in domains.
func highestPriorityDomain(domains []string) string {
	best := domains[0]
	bestPriority := domainPriority[best]
	for _, d := range domains[1:] {
		if p := domainPriority[d]; p > bestPriority {
			best = d
			bestPriority = p
		}
	}
	return best
}

func containsAny(domains []string, targets ...string) bool {
	set := make(map[string]bool, len(targets))
	for _, t := range targets {
		set[t] = true
	}
	for _, d := range domains {
		if set[d] {
			return true
		}
	}
	return false
}

// handleComplex implements spec.md §4.9's handle_complex: decompose,
// route every subquery, dispatch concurrently, aggregate, and either
// synthesize or fall back when nothing succeeded. A decomposition that
// yields no subqueries degrades to handleSimple.
func (o *Orchestrator) handleComplex(ctx context.Context, intent QueryIntent, sessionID string, trace *TraceCapture) (string, error) {
	var subqueries []Subquery
	err := trace.Phase("decomposition", func(h *phaseHandle) error {
		var decomposeErr error
		subqueries, decomposeErr = o.decomposer.Decompose(ctx, intent)
		h.RecordData("count", len(subqueries))
		return decomposeErr
	})
	if err != nil {
		return "", err
	}

	if len(subqueries) == 0 {
		answer, _, simpleErr := o.handleSimple(ctx, intent, sessionID, trace)
		return answer, simpleErr
	}

	jobs := make([]dispatchJob, 0, len(subqueries))
	routingMap := make(map[string]string, len(subqueries))
	err = trace.Phase("routing", func(h *phaseHandle) error {
		for _, sq := range subqueries {
			agentID, pattern, routeErr := o.router.Route(sq)
			if routeErr != nil {
				return routeErr
			}
			jobs = append(jobs, dispatchJob{Subquery: sq, AgentID: agentID, Pattern: pattern})
			routingMap[sq.ID] = agentID
		}
		h.RecordData("routing", routingMap)
		return nil
	})
	if err != nil {
		return "", err
	}

	var responses []AgentResponse
	err = trace.Phase("execution", func(h *phaseHandle) error {
		var dispatchErr error
		responses, dispatchErr = o.dispatcher.DispatchAll(ctx, jobs, sessionID, 0)
		h.RecordData("count", len(responses))
		return dispatchErr
	})
	if err != nil {
		return "", err
	}

	aggregated, err := o.aggregator.Aggregate(responses, subqueries)
	if err != nil {
		return "", err
	}
	successful := o.aggregator.ExtractSuccessful(aggregated)

	for _, r := range aggregated {
		trace.RecordAgentUsed(r.AgentID)
		if !r.Success {
			continue
		}
		if appendErr := o.sessionStore.Append(ctx, sessionID, SessionMessage{Role: "agent", Content: r.Content, AgentID: r.AgentID, Timestamp: time.Now()}); appendErr != nil {
			o.logger.WarnWithContext(ctx, "failed to append agent response to session history", map[string]interface{}{
				"component":  "smartrouter/orchestrator",
				"session_id": sessionID,
				"agent":      r.AgentID,
				"error":      appendErr.Error(),
			})
		}
	}

	if len(successful) == 0 {
		return o.config.Evaluation.FallbackMessage, nil
	}

	var result SynthesizedResult
	err = trace.Phase("synthesis", func(h *phaseHandle) error {
		var synthErr error
		result, synthErr = o.synthesizer.Synthesize(ctx, successful, intent.OriginalQuery)
		if synthErr == nil {
			h.RecordData("confidence", result.Confidence)
			h.RecordData("sources", result.Sources)
		}
		return synthErr
	})
	if err != nil {
		return "", err
	}

	return result.Answer, nil
}

func (o *Orchestrator) finish(trace *TraceCapture, start time.Time, answer string, decision FinalDecision, success bool, originalAnswer string) ExecutionResult {
	return o.finishWithOriginal(trace, start, answer, originalAnswer, decision, success)
}

func (o *Orchestrator) finishWithOriginal(trace *TraceCapture, start time.Time, answer, originalAnswer string, decision FinalDecision, success bool) ExecutionResult {
	result := ExecutionResult{
		Answer:        answer,
		Traces:        trace.Traces(),
		TotalTime:     time.Since(start),
		FinalDecision: decision,
		AgentsUsed:    trace.AgentsUsed(),
		Success:       success,
	}
	if decision == DecisionFallback {
		result.OriginalAnswer = originalAnswer
		result.HasOriginal = true
	}
	for _, tr := range result.Traces {
		GlobalPerformanceMetrics().Record(tr.Phase, tr.Duration)
		recordPhaseMetric(tr.Phase, tr.Duration, tr.Success)
	}
	return result
}

// errorResult builds the fallback ExecutionResult spec.md §7 requires
// whenever a stage error propagates to the orchestrator boundary: the
// configured fallback message, success=false, final_decision="error",
// and every trace collected up to the failure.
func (o *Orchestrator) errorResult(trace *TraceCapture, start time.Time, err error) ExecutionResult {
	o.logger.Error("route_query failed", map[string]interface{}{
		"component": "smartrouter/orchestrator",
		"error":     err.Error(),
	})
	result := ExecutionResult{
		Answer:        o.config.Evaluation.FallbackMessage,
		Traces:        trace.Traces(),
		TotalTime:     time.Since(start),
		FinalDecision: DecisionError,
		AgentsUsed:    trace.AgentsUsed(),
		Success:       false,
	}
	for _, tr := range result.Traces {
		GlobalPerformanceMetrics().Record(tr.Phase, tr.Duration)
		recordPhaseMetric(tr.Phase, tr.Duration, tr.Success)
	}
	return result
}
