package smartrouter

import (
	"context"
	"regexp"
	"strings"

	"github.com/asdrp/smartrouter/core"
)

// interpreterResponse is the schema Interpreter.Interpret expects back
// from the completion provider.
type interpreterResponse struct {
	Complexity        string   `json:"complexity"`
	Domains           []string `json:"domains"`
	RequiresSynthesis bool     `json:"requires_synthesis"`
	Reasoning         string   `json:"reasoning"`
}

// Interpreter classifies a raw query's complexity, domains, and whether
// its agent responses will need synthesis. It never raises past Interpret
// on a provider/parse failure; a deterministic heuristic steps in
// instead (spec.md §7, InterpretationFailure: swallow).
type Interpreter struct {
	client core.AIClient
	model  ModelConfig
	logger core.Logger
	tel    core.Telemetry
}

// NewInterpreter constructs an Interpreter. client may be nil only in
// tests that exercise the heuristic fallback path exclusively.
func NewInterpreter(client core.AIClient, model ModelConfig, logger core.Logger, tel core.Telemetry) *Interpreter {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if tel == nil {
		tel = &core.NoOpTelemetry{}
	}
	return &Interpreter{client: client, model: model, logger: logger, tel: tel}
}

// Interpret classifies text. Fails with a KindEmptyQuery error on blank
// input; otherwise always returns a usable QueryIntent.
func (i *Interpreter) Interpret(ctx context.Context, text string) (QueryIntent, error) {
	if strings.TrimSpace(text) == "" {
		return QueryIntent{}, NewError(KindEmptyQuery, "query text is empty", nil)
	}

	ctx, span := i.tel.StartSpan(ctx, "smartrouter.interpret")
	defer span.End()

	intent, err := i.interpretViaProvider(ctx, text)
	if err != nil {
		i.logger.WarnWithContext(ctx, "interpretation provider call failed, using heuristic fallback", map[string]interface{}{
			"component": "smartrouter/interpreter",
			"error":     err.Error(),
		})
		span.RecordError(err)
		intent = i.heuristicIntent(text)
	}

	if len(intent.Domains) == 0 {
		intent.Domains = []string{"search"}
	}
	return intent, nil
}

func (i *Interpreter) interpretViaProvider(ctx context.Context, text string) (QueryIntent, error) {
	if i.client == nil {
		return QueryIntent{}, NewError(KindInterpretationFailure, "no completion provider configured", nil)
	}

	resp, err := i.client.GenerateResponse(ctx, buildInterpreterUserPrompt(text), &core.AIOptions{
		Model:        i.model.Name,
		Temperature:  i.model.Temperature,
		MaxTokens:    i.model.MaxTokens,
		SystemPrompt: interpreterSystemPrompt,
	})
	if err != nil {
		return QueryIntent{}, WrapError(KindInterpretationFailure, "completion provider call failed", nil, err)
	}

	var parsed interpreterResponse
	if _, err := ParseJSON(resp.Content, &parsed); err != nil {
		return QueryIntent{}, WrapError(KindInterpretationFailure, "failed to parse interpretation JSON", map[string]interface{}{"raw": TruncateForLog(resp.Content, 200)}, err)
	}

	complexity := QueryComplexity(strings.ToUpper(parsed.Complexity))
	switch complexity {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
	default:
		return QueryIntent{}, NewError(KindInterpretationFailure, "unrecognized complexity value", map[string]interface{}{"complexity": parsed.Complexity})
	}

	return QueryIntent{
		OriginalQuery:     text,
		Complexity:        complexity,
		Domains:           parsed.Domains,
		RequiresSynthesis: parsed.RequiresSynthesis,
		Metadata:          map[string]interface{}{"reasoning": parsed.Reasoning},
	}, nil
}

// chitchatPhrases catches the same pure-social inputs FastPathRouter
// matches, used here only as the first heuristic tier when the provider
// call itself failed (the normal chitchat case never reaches this code
// because the Orchestrator tries fast path first).
var chitchatPhrases = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|thanks|thank you|bye|goodbye|how are you|good morning|good evening)\b`)

// domainKeywords maps a substring to the domain it implies, checked in
// this fixed order so earlier entries win on overlap.
var domainKeywords = []struct {
	keyword string
	domain  string
}{
	{"weather", "weather"},
	{"news", "news"},
	{"stock", "finance"},
	{"price", "finance"},
	{"restaurant", "local_business"},
	{"store", "local_business"},
	{"near me", "local_business"},
	{"address", "geocoding"},
	{"coordinates", "geocoding"},
	{"directions", "mapping"},
	{"route", "mapping"},
	{"distance", "mapping"},
	{"wikipedia", "wikipedia"},
	{"research", "research"},
}

// heuristicIntent implements the deterministic fallback classifier from
// spec.md §4.2/§7: chitchat-phrase table first, then domain keyword
// table, then complexity by question-mark count and sentence count. It
// never fails.
func (i *Interpreter) heuristicIntent(text string) QueryIntent {
	lower := strings.ToLower(text)

	if chitchatPhrases.MatchString(text) && !strings.Contains(lower, "?") {
		return QueryIntent{
			OriginalQuery:     text,
			Complexity:        ComplexitySimple,
			Domains:           []string{"conversation", "social"},
			RequiresSynthesis: false,
			Metadata:          map[string]interface{}{"heuristic": true, "heuristic_tier": "chitchat_phrase"},
		}
	}

	var domains []string
	for _, kw := range domainKeywords {
		if strings.Contains(lower, kw.keyword) {
			domains = append(domains, kw.domain)
		}
	}

	questionMarks := strings.Count(text, "?")
	sentences := countSentences(text)

	complexity := ComplexitySimple
	switch {
	case questionMarks >= 2 || sentences >= 3:
		complexity = ComplexityComplex
	case questionMarks == 1 && sentences >= 2:
		complexity = ComplexityModerate
	}

	if len(domains) == 0 {
		domains = []string{"search"}
	}

	return QueryIntent{
		OriginalQuery:     text,
		Complexity:        complexity,
		Domains:           domains,
		RequiresSynthesis: complexity != ComplexitySimple,
		Metadata:          map[string]interface{}{"heuristic": true, "heuristic_tier": "domain_keyword"},
	}
}

func countSentences(text string) int {
	count := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			count++
		}
	}
	if count == 0 && strings.TrimSpace(text) != "" {
		count = 1
	}
	return count
}
