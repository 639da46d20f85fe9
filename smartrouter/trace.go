package smartrouter

import (
	"fmt"
	"sync"
	"time"
)

// TraceCapture records one PhaseTrace per pipeline stage, guaranteeing
// each phase is appended exactly once even when the phase's work panics
// or returns an error (spec.md §9 "Scoped timing").
type TraceCapture struct {
	mu         sync.Mutex
	traces     []PhaseTrace
	agentsUsed map[string]bool
}

// NewTraceCapture constructs an empty TraceCapture.
func NewTraceCapture() *TraceCapture {
	return &TraceCapture{agentsUsed: make(map[string]bool)}
}

// phaseHandle is returned by Begin and finalized by End; it exists so
// Phase (the common case) and manual Begin/End pairs (used when a phase
// spans a goroutine boundary) share one code path.
type phaseHandle struct {
	name  string
	start time.Time
	data  map[string]interface{}
}

// Begin starts timing a phase. The caller must call End exactly once,
// typically via defer, even on an error path.
func (t *TraceCapture) Begin(name string) *phaseHandle {
	return &phaseHandle{name: name, start: time.Now(), data: map[string]interface{}{}}
}

// RecordData attaches a key/value pair to the phase's data map. Safe to
// call multiple times before End.
func (h *phaseHandle) RecordData(key string, value interface{}) {
	h.data[key] = value
}

// End finalizes the phase and appends its PhaseTrace. err, if non-nil,
// marks the phase as failed and records its message.
func (t *TraceCapture) End(h *phaseHandle, err error) {
	trace := PhaseTrace{
		Phase:    h.name,
		Duration: time.Since(h.start),
		Data:     h.data,
		Success:  err == nil,
	}
	if err != nil {
		trace.Error = err.Error()
	}

	t.mu.Lock()
	t.traces = append(t.traces, trace)
	t.mu.Unlock()
}

// Phase runs fn under a scoped timer, recording start/end/duration and
// any error fn returns, then re-returns that error to the caller. This
// is the idiomatic entry point mirroring the Python reference's
// @contextmanager phase().
func (t *TraceCapture) Phase(name string, fn func(h *phaseHandle) error) (err error) {
	h := t.Begin(name)
	defer func() {
		if r := recover(); r != nil {
			t.End(h, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()
	err = fn(h)
	t.End(h, err)
	return err
}

// RecordAgentUsed marks agentID as having participated in this
// execution.
func (t *TraceCapture) RecordAgentUsed(agentID string) {
	if agentID == "" {
		return
	}
	t.mu.Lock()
	t.agentsUsed[agentID] = true
	t.mu.Unlock()
}

// RecordAgentsUsed marks every id in agentIDs as used.
func (t *TraceCapture) RecordAgentsUsed(agentIDs []string) {
	for _, id := range agentIDs {
		t.RecordAgentUsed(id)
	}
}

// Traces returns a snapshot of every recorded PhaseTrace in phase order.
func (t *TraceCapture) Traces() []PhaseTrace {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]PhaseTrace(nil), t.traces...)
}

// AgentsUsed returns the distinct agent ids recorded so far.
func (t *TraceCapture) AgentsUsed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.agentsUsed))
	for id := range t.agentsUsed {
		ids = append(ids, id)
	}
	return ids
}

// HasFailures reports whether any recorded phase failed.
func (t *TraceCapture) HasFailures() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tr := range t.traces {
		if !tr.Success {
			return true
		}
	}
	return false
}

// TotalTime sums every recorded phase's duration.
func (t *TraceCapture) TotalTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total time.Duration
	for _, tr := range t.traces {
		total += tr.Duration
	}
	return total
}
