package smartrouter

import (
	"github.com/asdrp/smartrouter/core"
)

// AggregateStatistics is the summary Aggregator.GetResponseStatistics
// returns.
type AggregateStatistics struct {
	Total      int
	Successful int
	Failed     int
}

// Aggregator collects Dispatcher responses keyed by subquery id. On a
// duplicate response for the same id the first wins; the duplicate is
// counted but dropped. Responses with no matching subquery are logged
// and simply absent from the output, never an error.
type Aggregator struct {
	logger core.Logger
}

// NewAggregator constructs an Aggregator.
func NewAggregator(logger core.Logger) *Aggregator {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Aggregator{logger: logger}
}

// Aggregate builds a subquery_id -> AgentResponse map from responses,
// cross-checked against the expected subqueries list purely to log
// missing entries (it does not affect the returned map's contents).
func (a *Aggregator) Aggregate(responses []AgentResponse, subqueries []Subquery) (map[string]AgentResponse, error) {
	if responses == nil {
		return nil, NewError(KindAggregationError, "nil response list", map[string]interface{}{
			"response_count": 0,
			"subquery_count": len(subqueries),
		})
	}

	out := make(map[string]AgentResponse, len(responses))
	duplicates := 0

	for _, r := range responses {
		if _, exists := out[r.SubqueryID]; exists {
			duplicates++
			continue
		}
		out[r.SubqueryID] = r
	}

	if duplicates > 0 {
		a.logger.Warn("dropped duplicate subquery responses", map[string]interface{}{
			"component":  "smartrouter/aggregator",
			"duplicates": duplicates,
		})
	}

	for _, sq := range subqueries {
		if _, ok := out[sq.ID]; !ok {
			a.logger.Warn("missing response for subquery", map[string]interface{}{
				"component": "smartrouter/aggregator",
				"subquery":  sq.ID,
			})
		}
	}

	return out, nil
}

// ExtractSuccessful filters responses to those with Success=true.
func (a *Aggregator) ExtractSuccessful(responses map[string]AgentResponse) map[string]AgentResponse {
	out := make(map[string]AgentResponse, len(responses))
	for id, r := range responses {
		if r.Success {
			out[id] = r
		}
	}
	return out
}

// GetFailedResponses filters responses to those with Success=false.
func (a *Aggregator) GetFailedResponses(responses map[string]AgentResponse) map[string]AgentResponse {
	out := make(map[string]AgentResponse, len(responses))
	for id, r := range responses {
		if !r.Success {
			out[id] = r
		}
	}
	return out
}

// GetResponseStatistics summarizes total/successful/failed counts.
func (a *Aggregator) GetResponseStatistics(responses map[string]AgentResponse) AggregateStatistics {
	stats := AggregateStatistics{Total: len(responses)}
	for _, r := range responses {
		if r.Success {
			stats.Successful++
		} else {
			stats.Failed++
		}
	}
	return stats
}
