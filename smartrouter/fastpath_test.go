package smartrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryFastPathMatchesGreeting(t *testing.T) {
	f := NewFastPathRouter(nil)
	intent, ok := f.TryFastPath("hello!")
	require.True(t, ok)
	assert.Equal(t, ComplexitySimple, intent.Complexity)
	assert.Equal(t, []string{"conversation", "social"}, intent.Domains)
	assert.Equal(t, "greeting", intent.Metadata["fast_path_pattern"])
}

func TestTryFastPathMatchesFarewellAndGratitude(t *testing.T) {
	f := NewFastPathRouter(nil)

	_, ok := f.TryFastPath("see you later")
	assert.True(t, ok)

	_, ok = f.TryFastPath("thanks so much")
	assert.True(t, ok)
}

func TestTryFastPathMissesSubstantiveQuestion(t *testing.T) {
	f := NewFastPathRouter(nil)
	_, ok := f.TryFastPath("what's the weather in Boston tomorrow?")
	assert.False(t, ok)
}

func TestTryFastPathMissesQuestionThatLooksLikeStatus(t *testing.T) {
	f := NewFastPathRouter(nil)
	// "how's it going with the deployment" carries real content past the
	// greeting shape and must not be swallowed by status_inquiry.
	_, ok := f.TryFastPath("how's it going with the deployment")
	assert.False(t, ok)
}

func TestFastPathAddedPatternMatchesWhenDefaultsMiss(t *testing.T) {
	f := NewFastPathRouter(nil)
	require.NoError(t, f.AddPattern("always_matches", `.*`, []string{"conversation"}))
	intent, ok := f.TryFastPath("what's the weather in Boston?")
	require.True(t, ok)
	assert.Equal(t, "always_matches", intent.Metadata["fast_path_pattern"])
}

func TestAddAndRemovePattern(t *testing.T) {
	f := NewFastPathRouter(nil)
	require.NoError(t, f.AddPattern("custom", `sup`, []string{"conversation"}))
	assert.Contains(t, f.ListPatterns(), "custom")

	assert.True(t, f.RemovePattern("custom"))
	assert.NotContains(t, f.ListPatterns(), "custom")
	assert.False(t, f.RemovePattern("custom"))
}

func TestAddPatternRejectsInvalidRegex(t *testing.T) {
	f := NewFastPathRouter(nil)
	err := f.AddPattern("bad", `(unterminated`, nil)
	require.Error(t, err)
	var se *Error
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, KindConfigError, se.Kind)
}

func TestFastPathMetrics(t *testing.T) {
	f := NewFastPathRouter(nil)
	f.TryFastPath("hi")
	f.TryFastPath("what's the weather?")

	m := f.GetMetrics()
	assert.Equal(t, int64(2), m.TotalAttempts)
	assert.Equal(t, int64(1), m.TotalMatches)
	assert.InDelta(t, 0.5, m.MatchRate, 0.001)
	assert.Equal(t, int64(1), m.PerPattern["greeting"])

	f.ResetMetrics()
	assert.Equal(t, int64(0), f.GetMetrics().TotalAttempts)
}
