package smartrouter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 10, cfg.Decomposition.MaxSubqueries)
	assert.Equal(t, 3, cfg.Decomposition.RecursionLimit)
	assert.Equal(t, 0.7, cfg.Evaluation.QualityThreshold)
	assert.Equal(t, 30*time.Second, cfg.ErrorHandling.Timeout)
	assert.Equal(t, 2, cfg.ErrorHandling.Retries)
	assert.NotEmpty(t, cfg.Evaluation.FallbackMessage)
}

func TestConfigValidateRejectsBadThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Evaluation.QualityThreshold = 1.5
	err := cfg.Validate()
	require.Error(t, err)
	var se *Error
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, KindConfigError, se.Kind)
}

func TestConfigValidateRejectsZeroMaxSubqueries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Decomposition.MaxSubqueries = 0
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsEmptyFallbackMessage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Evaluation.FallbackMessage = ""
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsNonPositiveTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ErrorHandling.Timeout = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigFileAppliesOverridesOnTopOfDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smartrouter.yaml")
	yamlContent := `
enabled: true
decomposition:
  max_subqueries: 5
evaluation:
  quality_threshold: 0.9
capabilities:
  weather-agent:
    - weather
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := LoadConfigFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Decomposition.MaxSubqueries)
	assert.Equal(t, 0.9, cfg.Evaluation.QualityThreshold)
	assert.Equal(t, []string{"weather"}, cfg.Capabilities["weather-agent"])
	// untouched defaults survive
	assert.Equal(t, 2, cfg.ErrorHandling.Retries)
}

func TestLoadConfigFileMissingFileReturnsConfigError(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	var se *Error
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, KindConfigError, se.Kind)
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("SMARTROUTER_RETRIES", "5")
	t.Setenv("SMARTROUTER_QUALITY_THRESHOLD", "0.42")
	t.Setenv("SMARTROUTER_MAX_SUBQUERIES", "3")

	dir := t.TempDir()
	path := filepath.Join(dir, "smartrouter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: true\n"), 0o644))

	cfg, err := LoadConfigFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ErrorHandling.Retries)
	assert.Equal(t, 0.42, cfg.Evaluation.QualityThreshold)
	assert.Equal(t, 3, cfg.Decomposition.MaxSubqueries)
}
