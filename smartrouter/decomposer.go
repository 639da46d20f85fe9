package smartrouter

import (
	"context"
	"fmt"

	"github.com/asdrp/smartrouter/core"
)

// decomposerSubquery is the wire schema the provider is asked to emit;
// fields are loosely typed so malformed entries can be detected and
// skipped individually rather than failing the whole parse.
type decomposerSubquery struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	CapabilityRequired string   `json:"capability_required"`
	Dependencies       []string `json:"dependencies"`
	RoutingPattern     string   `json:"routing_pattern"`
}

// Decomposer splits a complex QueryIntent into concurrently dispatchable
// Subqueries, validating the dependency graph before handing the batch
// back to the Orchestrator.
type Decomposer struct {
	client        core.AIClient
	model         ModelConfig
	maxSubqueries int
	logger        core.Logger
	tel           core.Telemetry
}

// NewDecomposer constructs a Decomposer bounded by maxSubqueries.
func NewDecomposer(client core.AIClient, model ModelConfig, maxSubqueries int, logger core.Logger, tel core.Telemetry) *Decomposer {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if tel == nil {
		tel = &core.NoOpTelemetry{}
	}
	return &Decomposer{client: client, model: model, maxSubqueries: maxSubqueries, logger: logger, tel: tel}
}

// Decompose returns an empty slice without calling the provider for
// SIMPLE intents. Otherwise it asks the provider for a subquery array,
// skips individually malformed entries, and validates the resulting
// batch before returning it.
func (d *Decomposer) Decompose(ctx context.Context, intent QueryIntent) ([]Subquery, error) {
	if intent.Complexity == ComplexitySimple {
		return nil, nil
	}

	ctx, span := d.tel.StartSpan(ctx, "smartrouter.decompose")
	defer span.End()

	if d.client == nil {
		return nil, NewError(KindInterpretationFailure, "no completion provider configured for decomposition", nil)
	}

	resp, err := d.client.GenerateResponse(ctx, buildDecomposerUserPrompt(intent.OriginalQuery, d.maxSubqueries), &core.AIOptions{
		Model:        d.model.Name,
		Temperature:  d.model.Temperature,
		MaxTokens:    d.model.MaxTokens,
		SystemPrompt: decomposerSystemPrompt,
	})
	if err != nil {
		span.RecordError(err)
		return nil, WrapError(KindAgentError, "decomposition provider call failed", nil, err)
	}

	raw := ExtractJSONArray(resp.Content)
	var wire []decomposerSubquery
	if err := unmarshalJSONArray(raw, &wire); err != nil {
		span.RecordError(err)
		return nil, WrapError(KindInterpretationFailure, "failed to parse decomposition JSON", map[string]interface{}{"raw": TruncateForLog(raw, 200)}, err)
	}

	subqueries := make([]Subquery, 0, len(wire))
	for _, w := range wire {
		if w.ID == "" || w.Text == "" || w.CapabilityRequired == "" {
			d.logger.WarnWithContext(ctx, "skipping malformed subquery", map[string]interface{}{
				"component": "smartrouter/decomposer",
				"id":        w.ID,
			})
			continue
		}
		pattern := RoutingPattern(w.RoutingPattern)
		if pattern != RoutingDelegation && pattern != RoutingHandoff {
			pattern = RoutingDelegation
		}
		subqueries = append(subqueries, Subquery{
			ID:                 w.ID,
			Text:               w.Text,
			CapabilityRequired: w.CapabilityRequired,
			Dependencies:       w.Dependencies,
			RoutingPattern:     pattern,
		})
	}

	if err := d.ValidateDependencies(subqueries); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return subqueries, nil
}

// ValidateDependencies checks subqueries against spec.md §3's invariants:
// count bound, unique ids, all dependency ids present, and an acyclic
// dependency graph. Pure and idempotent — callers may invoke it as many
// times as they like on the same slice with no side effects.
func (d *Decomposer) ValidateDependencies(subqueries []Subquery) error {
	if len(subqueries) > d.maxSubqueries {
		return NewError(KindTooManySubqueries, fmt.Sprintf("%d subqueries exceeds max of %d", len(subqueries), d.maxSubqueries), map[string]interface{}{
			"count": len(subqueries),
			"max":   d.maxSubqueries,
		})
	}

	seen := make(map[string]bool, len(subqueries))
	for _, sq := range subqueries {
		if seen[sq.ID] {
			return NewError(KindDuplicateID, "duplicate subquery id", map[string]interface{}{"id": sq.ID})
		}
		seen[sq.ID] = true
	}

	for _, sq := range subqueries {
		for _, dep := range sq.Dependencies {
			if !seen[dep] {
				return NewError(KindDanglingDependency, "subquery dependency references unknown id", map[string]interface{}{
					"id":         sq.ID,
					"dependency": dep,
				})
			}
		}
	}

	if cycle := findCycle(subqueries); cycle != nil {
		return &Error{
			Kind:    KindCyclicDependency,
			Message: fmt.Sprintf("cyclic dependency detected: %v", cycle),
			Context: map[string]interface{}{"path": cycle},
			Cause:   &CycleError{Path: cycle},
		}
	}

	return nil
}

// color marks DFS visitation state for cycle detection.
type color int

const (
	white color = iota // unseen
	gray               // on the current DFS stack
	black              // fully explored
)

// dfsFrame is one entry on the explicit DFS stack, tracking which
// dependency index to resume from when control returns to this node.
type dfsFrame struct {
	id       string
	depIndex int
}

// findCycle runs an iterative DFS with three-color marking over the
// subquery dependency graph (spec.md §4.3's explicit requirement,
// converted from the Python reference's recursive version while
// preserving an identical cycle-path shape, e.g. [sq1, sq2, sq1]).
// Returns nil if the graph is acyclic.
func findCycle(subqueries []Subquery) []string {
	deps := make(map[string][]string, len(subqueries))
	order := make([]string, 0, len(subqueries))
	for _, sq := range subqueries {
		deps[sq.ID] = sq.Dependencies
		order = append(order, sq.ID)
	}

	colors := make(map[string]color, len(subqueries))

	for _, start := range order {
		if colors[start] != white {
			continue
		}
		if cycle := dfsFrom(start, deps, colors); cycle != nil {
			return cycle
		}
	}
	return nil
}

func dfsFrom(start string, deps map[string][]string, colors map[string]color) []string {
	stack := []dfsFrame{{id: start, depIndex: 0}}
	colors[start] = gray

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		children := deps[top.id]

		if top.depIndex >= len(children) {
			colors[top.id] = black
			stack = stack[:len(stack)-1]
			continue
		}

		child := children[top.depIndex]
		top.depIndex++

		switch colors[child] {
		case white:
			colors[child] = gray
			stack = append(stack, dfsFrame{id: child, depIndex: 0})
		case gray:
			return buildCyclePath(stack, child)
		case black:
			// already fully explored, no cycle through this edge
		}
	}
	return nil
}

// buildCyclePath renders the on-stack path from the first occurrence of
// target through the top of the stack, then back to target, matching the
// Python reference's [sq1, sq2, sq1] shape.
func buildCyclePath(stack []dfsFrame, target string) []string {
	startIdx := 0
	for i, f := range stack {
		if f.id == target {
			startIdx = i
			break
		}
	}
	path := make([]string, 0, len(stack)-startIdx+1)
	for _, f := range stack[startIdx:] {
		path = append(path, f.id)
	}
	path = append(path, target)
	return path
}
