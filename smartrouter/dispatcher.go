package smartrouter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asdrp/smartrouter/core"
	"github.com/asdrp/smartrouter/resilience"
)

// AgentInvoker is the Dispatcher's contract with a specialist agent
// (spec.md §6 "Agent invocation contract"): subquery text plus an
// optional session handle in, final text plus optional usage counters
// out. Errors (transport, domain, or timeout) surface as a returned
// error, which the Dispatcher converts to a failed AgentResponse.
// Implementations needing the shared cross-agent message log (spec.md
// §9) read it off ctx via SessionHistoryFromContext rather than
// re-deriving it from sessionID; the Orchestrator loads it once per
// route_query call and attaches it before dispatch.
type AgentInvoker interface {
	Invoke(ctx context.Context, agentID, text, sessionID string) (content string, usage *Usage, err error)
}

// dispatchJob pairs a Subquery with its resolved agent id and routing
// pattern for one dispatch call.
type dispatchJob struct {
	Subquery Subquery
	AgentID  string
	Pattern  RoutingPattern
}

// Dispatcher concurrently executes subqueries against specialist agents
// with a deterministic per-subquery retry/backoff policy, independent of
// resilience.Retry's jittered timing (see SPEC_FULL.md Open Questions).
// A resilience.CircuitBreaker per agent id provides an orthogonal
// protection layer on top of the retry loop.
type Dispatcher struct {
	invoker AgentInvoker
	timeout time.Duration
	retries int
	logger  core.Logger
	tel     core.Telemetry

	breakersMu sync.Mutex
	breakers   map[string]*resilience.CircuitBreaker
}

// NewDispatcher constructs a Dispatcher with the given default timeout
// and retry count (overridable per Dispatch call).
func NewDispatcher(invoker AgentInvoker, timeout time.Duration, retries int, logger core.Logger, tel core.Telemetry) *Dispatcher {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if tel == nil {
		tel = &core.NoOpTelemetry{}
	}
	return &Dispatcher{
		invoker:  invoker,
		timeout:  timeout,
		retries:  retries,
		logger:   logger,
		tel:      tel,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

func (d *Dispatcher) breakerFor(agentID string) (*resilience.CircuitBreaker, error) {
	d.breakersMu.Lock()
	defer d.breakersMu.Unlock()

	if cb, ok := d.breakers[agentID]; ok {
		return cb, nil
	}
	cb, err := resilience.NewCircuitBreaker(resilience.DefaultConfig())
	if err != nil {
		return nil, err
	}
	d.breakers[agentID] = cb
	return cb, nil
}

// Dispatch invokes one subquery against one agent, retrying on timeout
// or any other error up to `retries` additional times with a
// deterministic 2^attempt second backoff between attempts. It never
// returns an error for a per-subquery failure — those are reported as
// AgentResponse{Success: false}.
func (d *Dispatcher) Dispatch(ctx context.Context, sq Subquery, agentID string, pattern RoutingPattern, sessionID string, timeoutOverride time.Duration) AgentResponse {
	timeout := d.timeout
	if timeoutOverride > 0 {
		timeout = timeoutOverride
	}

	breaker, err := d.breakerFor(agentID)
	if err != nil {
		return AgentResponse{
			SubqueryID: sq.ID,
			AgentID:    agentID,
			Success:    false,
			Error:      err.Error(),
			Metadata:   map[string]interface{}{"attempts": 0},
		}
	}

	start := time.Now()
	var lastErr error
	var content string
	var usage *Usage
	attempts := 0

	for attempt := 0; attempt <= d.retries; attempt++ {
		attempts = attempt + 1

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		var invokeErr error
		breakerErr := breaker.ExecuteWithTimeout(callCtx, timeout, func() error {
			c, u, err := d.invoker.Invoke(callCtx, agentID, sq.Text, sessionID)
			content, usage, invokeErr = c, u, err
			return err
		})
		cancel()

		if breakerErr == nil && invokeErr == nil {
			lastErr = nil
			break
		}

		if invokeErr != nil {
			lastErr = invokeErr
		} else {
			lastErr = breakerErr
		}

		timedOut := callCtx.Err() == context.DeadlineExceeded

		if attempt < d.retries {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			d.logger.WarnWithContext(ctx, "subquery dispatch failed, retrying", map[string]interface{}{
				"component": "smartrouter/dispatcher",
				"subquery":  sq.ID,
				"agent":     agentID,
				"attempt":   attempt,
				"backoff_s": backoff.Seconds(),
				"error":     lastErr.Error(),
			})
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				goto done
			}
			continue
		}

		if timedOut {
			lastErr = fmt.Errorf("Timeout after %gs (retries exhausted)", timeout.Seconds())
		}
	}

done:
	executionTime := time.Since(start)

	if lastErr != nil {
		return AgentResponse{
			SubqueryID: sq.ID,
			AgentID:    agentID,
			Success:    false,
			Error:      lastErr.Error(),
			Metadata: map[string]interface{}{
				"attempts":       attempts,
				"timeout":        timeout.Seconds(),
				"execution_time": executionTime.Seconds(),
			},
		}
	}

	metadata := map[string]interface{}{
		"execution_time":  executionTime.Seconds(),
		"attempts":        attempts,
		"timeout":         timeout.Seconds(),
		"agent_name":      agentID,
		"routing_pattern": string(pattern),
	}
	if usage != nil {
		metadata["usage"] = usage
	}

	return AgentResponse{
		SubqueryID: sq.ID,
		AgentID:    agentID,
		Content:    content,
		Success:    true,
		Metadata:   metadata,
	}
}

// DispatchAll concurrently dispatches every job and returns responses in
// input order regardless of completion order (spec.md §5 ordering
// guarantee). It raises only on a system-level fault assembling the
// batch; individual subquery failures are returned as failed
// AgentResponse values, never as an error.
func (d *Dispatcher) DispatchAll(ctx context.Context, jobs []dispatchJob, sessionID string, timeoutOverride time.Duration) ([]AgentResponse, error) {
	if jobs == nil {
		return nil, WrapError(KindDispatchSystemError, "nil job batch", nil, fmt.Errorf("jobs is nil"))
	}

	responses := make([]AgentResponse, len(jobs))
	var wg sync.WaitGroup
	wg.Add(len(jobs))

	for i, job := range jobs {
		go func(i int, job dispatchJob) {
			defer wg.Done()
			responses[i] = d.Dispatch(ctx, job.Subquery, job.AgentID, job.Pattern, sessionID, timeoutOverride)
		}(i, job)
	}

	wg.Wait()
	return responses, nil
}
