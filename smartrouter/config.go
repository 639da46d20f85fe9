package smartrouter

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/asdrp/smartrouter/core"
	"gopkg.in/yaml.v3"
)

// ModelConfig configures one LLM model slot (interpretation, decomposition,
// synthesis, or evaluation).
type ModelConfig struct {
	Name        string  `yaml:"name" json:"name"`
	Temperature float32 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// ModelConfigs groups the four model slots the pipeline needs.
type ModelConfigs struct {
	Interpretation ModelConfig `yaml:"interpretation"`
	Decomposition  ModelConfig `yaml:"decomposition"`
	Synthesis      ModelConfig `yaml:"synthesis"`
	Evaluation     ModelConfig `yaml:"evaluation"`
}

// DecompositionConfig bounds the Decomposer's output.
type DecompositionConfig struct {
	MaxSubqueries     int     `yaml:"max_subqueries"`
	RecursionLimit    int     `yaml:"recursion_limit"`
	FallbackThreshold float64 `yaml:"fallback_threshold"`
}

// EvaluationConfig configures the Judge's quality gate.
type EvaluationConfig struct {
	FallbackMessage  string   `yaml:"fallback_message"`
	QualityThreshold float64  `yaml:"quality_threshold"`
	Criteria         []string `yaml:"criteria"`
}

// ErrorHandlingConfig bounds the Dispatcher's retry behavior.
type ErrorHandlingConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// Config is the complete, validated SmartRouter configuration, covering
// only the keys the core pipeline consumes (spec.md §6).
type Config struct {
	Enabled       bool                   `yaml:"enabled"`
	Models        ModelConfigs           `yaml:"models"`
	Decomposition DecompositionConfig    `yaml:"decomposition"`
	Capabilities  map[string][]string    `yaml:"capabilities"`
	Evaluation    EvaluationConfig       `yaml:"evaluation"`
	ErrorHandling ErrorHandlingConfig    `yaml:"error_handling"`

	// SessionPath, when set, names a durable location for conversation
	// session state; when empty, sessions live only for the process
	// lifetime (see SPEC_FULL.md Supplemented Features).
	SessionPath string `yaml:"session_path"`

	logger core.Logger
}

// DefaultConfig returns the spec.md §6 defaults: timeout=30s, retries=2,
// quality_threshold=0.7, max_subqueries=10.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Models: ModelConfigs{
			Interpretation: ModelConfig{Name: "gpt-4.1-mini", Temperature: 0.7, MaxTokens: 2000},
			Decomposition:  ModelConfig{Name: "gpt-4.1-mini", Temperature: 0.7, MaxTokens: 2000},
			Synthesis:      ModelConfig{Name: "gpt-4.1-mini", Temperature: 0.7, MaxTokens: 2000},
			Evaluation:     ModelConfig{Name: "gpt-4.1-mini", Temperature: 0.7, MaxTokens: 2000},
		},
		Decomposition: DecompositionConfig{
			MaxSubqueries:     10,
			RecursionLimit:    3,
			FallbackThreshold: 0.7,
		},
		Capabilities: map[string][]string{},
		Evaluation: EvaluationConfig{
			FallbackMessage:  "I don't have enough information to answer",
			QualityThreshold: 0.7,
			Criteria:         []string{"completeness", "accuracy", "clarity"},
		},
		ErrorHandling: ErrorHandlingConfig{
			Timeout: 30 * time.Second,
			Retries: 2,
		},
	}
}

// LoadConfigFile loads a SmartRouter configuration from a YAML file,
// applying spec.md §6 defaults for any key absent from the file, then
// environment overrides, then validation.
func LoadConfigFile(path string, logger core.Logger) (*Config, error) {
	cfg := DefaultConfig()
	cfg.logger = logger

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError(KindConfigError, fmt.Sprintf("reading config file %s", path), map[string]interface{}{"path": path}, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, WrapError(KindConfigError, "parsing SmartRouter YAML", map[string]interface{}{"path": path}, err)
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv overrides config fields from SMARTROUTER_* environment
// variables, mirroring core.Config.LoadFromEnv's explicit, field-by-field
// style rather than reflection.
func (c *Config) loadFromEnv() {
	if v := os.Getenv("SMARTROUTER_ENABLED"); v != "" {
		c.Enabled = parseBool(v)
	}
	if v := os.Getenv("SMARTROUTER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ErrorHandling.Timeout = d
		} else if c.logger != nil {
			c.logger.Warn("invalid SMARTROUTER_TIMEOUT", map[string]interface{}{"value": v, "error": err})
		}
	}
	if v := os.Getenv("SMARTROUTER_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ErrorHandling.Retries = n
		}
	}
	if v := os.Getenv("SMARTROUTER_QUALITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Evaluation.QualityThreshold = f
		}
	}
	if v := os.Getenv("SMARTROUTER_MAX_SUBQUERIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Decomposition.MaxSubqueries = n
		}
	}
	if v := os.Getenv("SMARTROUTER_FALLBACK_MESSAGE"); v != "" {
		c.Evaluation.FallbackMessage = v
	}
	if v := os.Getenv("SMARTROUTER_SESSION_PATH"); v != "" {
		c.SessionPath = v
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

// Validate checks configuration invariants and returns a ConfigError-kind
// Error describing the first violation found.
func (c *Config) Validate() error {
	if c.Decomposition.MaxSubqueries < 1 {
		return NewError(KindConfigError, "max_subqueries must be >= 1", map[string]interface{}{"max_subqueries": c.Decomposition.MaxSubqueries})
	}
	if c.Decomposition.RecursionLimit < 1 {
		return NewError(KindConfigError, "recursion_limit must be >= 1", map[string]interface{}{"recursion_limit": c.Decomposition.RecursionLimit})
	}
	if c.Decomposition.FallbackThreshold < 0.0 || c.Decomposition.FallbackThreshold > 1.0 {
		return NewError(KindConfigError, "fallback_threshold must be between 0.0 and 1.0", map[string]interface{}{"fallback_threshold": c.Decomposition.FallbackThreshold})
	}
	if c.Evaluation.QualityThreshold < 0.0 || c.Evaluation.QualityThreshold > 1.0 {
		return NewError(KindConfigError, "quality_threshold must be between 0.0 and 1.0", map[string]interface{}{"quality_threshold": c.Evaluation.QualityThreshold})
	}
	if c.Evaluation.FallbackMessage == "" {
		return NewError(KindConfigError, "fallback_message cannot be empty", nil)
	}
	if c.ErrorHandling.Timeout <= 0 {
		return NewError(KindConfigError, "timeout must be > 0", map[string]interface{}{"timeout": c.ErrorHandling.Timeout})
	}
	if c.ErrorHandling.Retries < 0 {
		return NewError(KindConfigError, "retries must be >= 0", map[string]interface{}{"retries": c.ErrorHandling.Retries})
	}
	for name, mc := range map[string]ModelConfig{
		"interpretation": c.Models.Interpretation,
		"decomposition":  c.Models.Decomposition,
		"synthesis":      c.Models.Synthesis,
		"evaluation":     c.Models.Evaluation,
	} {
		if mc.Temperature < 0.0 || mc.Temperature > 1.0 {
			return NewError(KindConfigError, fmt.Sprintf("%s temperature must be between 0.0 and 1.0", name), map[string]interface{}{"model": name, "temperature": mc.Temperature})
		}
	}
	return nil
}
