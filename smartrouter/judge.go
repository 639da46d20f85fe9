package smartrouter

import (
	"context"
	"strings"

	"github.com/asdrp/smartrouter/core"
)

// judgeResponse is the schema Judge.Evaluate expects back from the
// completion provider: the three scores that drive the quality gate
// (spec.md §4.8) plus the three supplemental scores kept for
// observability only (see SPEC_FULL.md Supplemented Features).
type judgeResponse struct {
	Completeness  float64  `json:"completeness"`
	Accuracy      float64  `json:"accuracy"`
	Clarity       float64  `json:"clarity"`
	Faithfulness  float64  `json:"faithfulness"`
	Relevance     float64  `json:"relevance"`
	Actionability float64  `json:"actionability"`
	Issues        []string `json:"issues"`
	Reasoning     string   `json:"reasoning"`
}

// Judge scores a synthesized answer and decides whether it is trusted
// enough to return, or whether the orchestrator must fall back.
type Judge struct {
	client           core.AIClient
	model            ModelConfig
	qualityThreshold float64
	logger           core.Logger
	tel              core.Telemetry
}

// NewJudge constructs a Judge gated at qualityThreshold.
func NewJudge(client core.AIClient, model ModelConfig, qualityThreshold float64, logger core.Logger, tel core.Telemetry) *Judge {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if tel == nil {
		tel = &core.NoOpTelemetry{}
	}
	return &Judge{client: client, model: model, qualityThreshold: qualityThreshold, logger: logger, tel: tel}
}

// Evaluate scores answer against originalQuery. A blank answer is
// rejected immediately without a provider call. Provider or parse
// failures degrade to a conservative fallback evaluation rather than an
// error, so the orchestrator always receives a decision.
func (j *Judge) Evaluate(ctx context.Context, answer, originalQuery string) EvaluationResult {
	if strings.TrimSpace(answer) == "" {
		return EvaluationResult{
			IsHighQuality:  false,
			ShouldFallback: true,
			Issues:         []string{"answer is empty"},
			Metadata:       map[string]interface{}{"evaluated": false},
		}
	}

	ctx, span := j.tel.StartSpan(ctx, "smartrouter.evaluate")
	defer span.End()

	if j.client == nil {
		return j.conservativeFallback("no completion provider configured for evaluation")
	}

	resp, err := j.client.GenerateResponse(ctx, buildJudgeUserPrompt(answer, originalQuery), &core.AIOptions{
		Model:        j.model.Name,
		Temperature:  j.model.Temperature,
		MaxTokens:    j.model.MaxTokens,
		SystemPrompt: judgeSystemPrompt,
	})
	if err != nil {
		span.RecordError(err)
		j.logger.WarnWithContext(ctx, "evaluation provider call failed", map[string]interface{}{
			"component": "smartrouter/judge",
			"error":     err.Error(),
		})
		return j.conservativeFallback(err.Error())
	}

	var parsed judgeResponse
	if _, err := ParseJSON(resp.Content, &parsed); err != nil {
		span.RecordError(err)
		j.logger.WarnWithContext(ctx, "evaluation JSON parse failed", map[string]interface{}{
			"component": "smartrouter/judge",
			"error":     err.Error(),
		})
		return j.conservativeFallback("failed to parse evaluation JSON")
	}

	completeness := clamp01(parsed.Completeness)
	accuracy := clamp01(parsed.Accuracy)
	clarity := clamp01(parsed.Clarity)

	isHighQuality := completeness >= j.qualityThreshold && accuracy >= j.qualityThreshold && clarity >= j.qualityThreshold

	return EvaluationResult{
		IsHighQuality:     isHighQuality,
		CompletenessScore: completeness,
		AccuracyScore:     accuracy,
		ClarityScore:      clarity,
		Issues:            parsed.Issues,
		ShouldFallback:    !isHighQuality,
		Metadata: map[string]interface{}{
			"reasoning": parsed.Reasoning,
			"extended_scores": map[string]float64{
				"faithfulness":  clamp01(parsed.Faithfulness),
				"relevance":     clamp01(parsed.Relevance),
				"actionability": clamp01(parsed.Actionability),
			},
		},
	}
}

// conservativeFallback is the degraded EvaluationResult returned when
// the provider call or JSON parse fails: should_fallback=true, but never
// an exception (spec.md §4.8/§7).
func (j *Judge) conservativeFallback(reason string) EvaluationResult {
	return EvaluationResult{
		IsHighQuality:  false,
		ShouldFallback: true,
		Issues:         []string{"evaluation degraded: " + reason},
		Metadata:       map[string]interface{}{"degraded": true},
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
