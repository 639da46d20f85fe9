package smartrouter

import (
	"context"
	"sort"

	"github.com/asdrp/smartrouter/core"
)

// synthesisResponse is the schema Synthesizer.Synthesize expects back
// from the completion provider for the multi-response path.
type synthesisResponse struct {
	Answer            string   `json:"answer"`
	ConflictsResolved []string `json:"conflicts_resolved"`
	Confidence        float64  `json:"confidence"`
	Notes             string   `json:"notes"`
}

// Synthesizer merges one or more AgentResponse values into a single
// coherent SynthesizedResult.
type Synthesizer struct {
	client core.AIClient
	model  ModelConfig
	logger core.Logger
	tel    core.Telemetry
}

// NewSynthesizer constructs a Synthesizer.
func NewSynthesizer(client core.AIClient, model ModelConfig, logger core.Logger, tel core.Telemetry) *Synthesizer {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if tel == nil {
		tel = &core.NoOpTelemetry{}
	}
	return &Synthesizer{client: client, model: model, logger: logger, tel: tel}
}

// Synthesize merges responses into one answer. An empty map fails with
// SynthesisError. A single response bypasses the provider entirely.
func (s *Synthesizer) Synthesize(ctx context.Context, responses map[string]AgentResponse, originalQuery string) (SynthesizedResult, error) {
	if len(responses) == 0 {
		return SynthesizedResult{}, WrapError(KindSynthesisError, "cannot synthesize with zero responses", nil, ErrEmptyResponses)
	}

	if len(responses) == 1 {
		for _, r := range responses {
			return SynthesizedResult{
				Answer:     r.Content,
				Sources:    []string{r.AgentID},
				Confidence: 1.0,
				Metadata:   map[string]interface{}{"single_response": true},
			}, nil
		}
	}

	ctx, span := s.tel.StartSpan(ctx, "smartrouter.synthesize")
	defer span.End()

	sources := distinctAgentIDs(responses)

	if s.client == nil {
		return SynthesizedResult{}, NewError(KindSynthesisError, "no completion provider configured for synthesis", nil)
	}

	resp, err := s.client.GenerateResponse(ctx, buildSynthesisUserPrompt(originalQuery, responses), &core.AIOptions{
		Model:        s.model.Name,
		Temperature:  s.model.Temperature,
		MaxTokens:    s.model.MaxTokens,
		SystemPrompt: synthesisSystemPrompt,
	})
	if err != nil {
		span.RecordError(err)
		return SynthesizedResult{}, WrapError(KindSynthesisError, "synthesis provider call failed", nil, err)
	}

	var parsed synthesisResponse
	if _, parseErr := ParseJSON(resp.Content, &parsed); parseErr != nil {
		s.logger.WarnWithContext(ctx, "synthesis JSON parse failed, using raw provider text", map[string]interface{}{
			"component": "smartrouter/synthesizer",
			"error":     parseErr.Error(),
		})
		return SynthesizedResult{
			Answer:     resp.Content,
			Sources:    sources,
			Confidence: 0.7,
			Metadata:   map[string]interface{}{"parse_fallback": true},
		}, nil
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return SynthesizedResult{
		Answer:            parsed.Answer,
		Sources:           sources,
		Confidence:        confidence,
		ConflictsResolved: parsed.ConflictsResolved,
		Metadata:          map[string]interface{}{"notes": parsed.Notes},
	}, nil
}

// distinctAgentIDs returns the set of distinct agent ids across
// responses, sorted for deterministic output.
func distinctAgentIDs(responses map[string]AgentResponse) []string {
	seen := make(map[string]bool, len(responses))
	for _, r := range responses {
		seen[r.AgentID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
