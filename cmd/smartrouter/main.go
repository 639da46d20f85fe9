// Command smartrouter wires a complete SmartRouter pipeline from a YAML
// config file and runs one route_query call for each non-empty line read
// from stdin.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/asdrp/smartrouter/ai"
	_ "github.com/asdrp/smartrouter/ai/providers/anthropic"
	_ "github.com/asdrp/smartrouter/ai/providers/bedrock"
	_ "github.com/asdrp/smartrouter/ai/providers/gemini"
	_ "github.com/asdrp/smartrouter/ai/providers/mock"
	_ "github.com/asdrp/smartrouter/ai/providers/openai"
	"github.com/asdrp/smartrouter/core"
	"github.com/asdrp/smartrouter/smartrouter"
	"github.com/google/uuid"
)

// providerBackedInvoker treats every specialist agent as a call to the
// same completion provider, labeling the prompt with the agent id. This
// stands in for the real specialist agents, which spec.md scopes out as
// external collaborators; a production deployment replaces this with
// per-agent HTTP or in-process invokers behind the same AgentInvoker
// contract.
type providerBackedInvoker struct {
	client core.AIClient
}

func (p *providerBackedInvoker) Invoke(ctx context.Context, agentID, text, sessionID string) (string, *smartrouter.Usage, error) {
	systemPrompt := fmt.Sprintf("You are the %s specialist agent.", agentID)
	if history := smartrouter.SessionHistoryFromContext(ctx); len(history) > 0 {
		systemPrompt += "\n\nShared conversation so far (most recent last):\n" + formatHistory(history)
	}

	resp, err := p.client.GenerateResponse(ctx, text, &core.AIOptions{
		SystemPrompt: systemPrompt,
		Temperature:  0.3,
		MaxTokens:    1000,
	})
	if err != nil {
		return "", nil, err
	}
	return resp.Content, &smartrouter.Usage{
		TotalTokens:      resp.Usage.TotalTokens,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// formatHistory renders a session's message log as plain lines so a
// completion provider can ground a follow-up like "restaurants there" in
// what an earlier specialist agent already said (spec.md §9).
func formatHistory(history []smartrouter.SessionMessage) string {
	var b strings.Builder
	for _, msg := range history {
		speaker := msg.Role
		if msg.AgentID != "" {
			speaker = msg.AgentID
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, msg.Content)
	}
	return b.String()
}

func main() {
	logger := core.NewProductionLogger(
		core.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		core.DevelopmentConfig{},
		"smartrouter",
	)

	configPath := os.Getenv("SMARTROUTER_CONFIG")
	var config *smartrouter.Config
	var err error
	if configPath != "" {
		config, err = smartrouter.LoadConfigFile(configPath, logger)
		if err != nil {
			logger.Error("failed to load config", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	} else {
		config = smartrouter.DefaultConfig()
		config.Capabilities = map[string][]string{
			"chitchat": {"conversation"},
			"geo":      {"geocoding"},
			"maps":     {"mapping"},
			"finance":  {"finance"},
			"yelp":     {"local_business"},
			"wiki":     {"wikipedia"},
			"research": {"research"},
			"search":   {"search", "weather", "news", "current_events", "realtime"},
		}
	}

	providerName := os.Getenv("AI_PROVIDER")
	if providerName == "" {
		providerName = "mock"
	}
	factory, ok := ai.GetProvider(providerName)
	if !ok {
		logger.Error("unknown AI provider", map[string]interface{}{"provider": providerName})
		os.Exit(1)
	}
	client := factory.Create(&ai.AIConfig{
		Provider: providerName,
		APIKey:   os.Getenv("AI_API_KEY"),
		Model:    config.Models.Interpretation.Name,
		Timeout:  config.ErrorHandling.Timeout,
	})

	tel := &core.NoOpTelemetry{}

	fastPath := smartrouter.NewFastPathRouter(logger)
	interpreter := smartrouter.NewInterpreter(client, config.Models.Interpretation, logger, tel)
	decomposer := smartrouter.NewDecomposer(client, config.Models.Decomposition, config.Decomposition.MaxSubqueries, logger, tel)
	router := smartrouter.NewRouter(config.Capabilities, logger, smartrouter.WithProcessWideCaches())
	dispatcher := smartrouter.NewDispatcher(&providerBackedInvoker{client: client}, config.ErrorHandling.Timeout, config.ErrorHandling.Retries, logger, tel)
	aggregator := smartrouter.NewAggregator(logger)
	synthesizer := smartrouter.NewSynthesizer(client, config.Models.Synthesis, logger, tel)
	judge := smartrouter.NewJudge(client, config.Models.Evaluation, config.Evaluation.QualityThreshold, logger, tel)

	var sessionStore smartrouter.SessionStore
	if config.SessionPath != "" {
		sessionStore, err = smartrouter.NewRedisSessionStore(config.SessionPath, 24*time.Hour, logger)
		if err != nil {
			logger.Error("failed to connect session store", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}

	orchestrator := smartrouter.NewOrchestrator(smartrouter.OrchestratorDeps{
		FastPath:     fastPath,
		Interpreter:  interpreter,
		Decomposer:   decomposer,
		Router:       router,
		Dispatcher:   dispatcher,
		Aggregator:   aggregator,
		Synthesizer:  synthesizer,
		Judge:        judge,
		SessionStore: sessionStore,
		Config:       config,
		Logger:       logger,
		Telemetry:    tel,
	})

	sessionID := uuid.New().String()
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprintln(os.Stderr, "smartrouter ready, enter a query:")
	for scanner.Scan() {
		query := scanner.Text()
		if query == "" {
			continue
		}

		result := orchestrator.RouteQuery(context.Background(), query, sessionID)

		out, _ := json.MarshalIndent(result.ToMap(), "", "  ")
		fmt.Println(string(out))
	}
}
