package smartrouter

import (
	"time"

	"github.com/asdrp/smartrouter/telemetry"
)

// recordPhaseMetric emits the unified request histogram/counter pair for
// one pipeline phase, grounded in telemetry/unified_metrics.go's
// RecordRequest convention (ModuleOrchestration is the closest existing
// module tag to "a staged pipeline driving specialist agents").
func recordPhaseMetric(phase string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	telemetry.RecordRequest(telemetry.ModuleOrchestration, phase, float64(duration.Milliseconds()), status)
	if !success {
		telemetry.RecordRequestError(telemetry.ModuleOrchestration, phase, "pipeline_failure")
	}
}

// recordProviderMetric emits AI-request metrics for a completion
// provider call made by Interpreter/Decomposer/Synthesizer/Judge.
func recordProviderMetric(stage, provider string, duration time.Duration, success bool, usage *Usage) {
	status := "success"
	if !success {
		status = "error"
	}
	telemetry.RecordAIRequest(telemetry.ModuleOrchestration, provider, float64(duration.Milliseconds()), status)
	if usage != nil {
		telemetry.RecordAITokens(telemetry.ModuleOrchestration, provider, "input", int64(usage.PromptTokens))
		telemetry.RecordAITokens(telemetry.ModuleOrchestration, provider, "output", int64(usage.CompletionTokens))
	}
}

// DebugStats is the payload a /debug/smartrouter/stats introspection
// endpoint would return, combining every phase's PerformanceMetrics
// snapshot with the RoutingCache's hit-rate metrics (see SPEC_FULL.md
// Supplemented Features — the Go equivalent of the Python
// get_all_stats hook).
type DebugStats struct {
	Phases  map[string]PhaseStats
	Routing CacheMetrics
}

// CollectDebugStats snapshots the process-wide performance metrics and
// routing cache counters.
func CollectDebugStats() DebugStats {
	return DebugStats{
		Phases:  GlobalPerformanceMetrics().GetAllStats(),
		Routing: GlobalRoutingCache().GetMetrics(),
	}
}
