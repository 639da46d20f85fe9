package smartrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONPlainObject(t *testing.T) {
	got := ExtractJSON(`{"complexity": "SIMPLE", "domains": ["weather"]}`)
	assert.Equal(t, `{"complexity": "SIMPLE", "domains": ["weather"]}`, got)
}

func TestExtractJSONStripsMarkdownFence(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"complexity\": \"SIMPLE\"}\n```\nLet me know if you need more."
	got := ExtractJSON(raw)
	assert.Equal(t, `{"complexity": "SIMPLE"}`, got)
}

func TestExtractJSONFindsObjectAmidProse(t *testing.T) {
	raw := `Sure, here's the intent: {"complexity": "MODERATE", "domains": ["finance"]} hope that helps!`
	got := ExtractJSON(raw)
	assert.Equal(t, `{"complexity": "MODERATE", "domains": ["finance"]}`, got)
}

func TestExtractJSONIgnoresBracesInsideStrings(t *testing.T) {
	raw := `{"answer": "use {curly braces} like this", "confidence": 0.9}`
	got := ExtractJSON(raw)
	assert.Equal(t, raw, got)
}

func TestExtractJSONNoObjectReturnsOriginal(t *testing.T) {
	raw := "no json here at all"
	assert.Equal(t, raw, ExtractJSON(raw))
}

func TestParseJSONRoundTrip(t *testing.T) {
	var dest struct {
		Complexity string   `json:"complexity"`
		Domains    []string `json:"domains"`
	}
	extracted, err := ParseJSON(`{"complexity": "SIMPLE", "domains": ["weather"]}`, &dest)
	require.NoError(t, err)
	assert.Equal(t, "SIMPLE", dest.Complexity)
	assert.Equal(t, []string{"weather"}, dest.Domains)
	assert.NotEmpty(t, extracted)
}

func TestExtractJSONArrayPlain(t *testing.T) {
	got := ExtractJSONArray(`[{"id": "sq1"}, {"id": "sq2"}]`)
	assert.Equal(t, `[{"id": "sq1"}, {"id": "sq2"}]`, got)
}

func TestExtractJSONArrayStripsMarkdownFence(t *testing.T) {
	raw := "```json\n[{\"id\": \"sq1\"}]\n```"
	got := ExtractJSONArray(raw)
	assert.Equal(t, `[{"id": "sq1"}]`, got)
}

func TestUnmarshalJSONArray(t *testing.T) {
	type sq struct {
		ID string `json:"id"`
	}
	var dest []sq
	err := unmarshalJSONArray(`prefix text [{"id": "sq1"}, {"id": "sq2"}] suffix`, &dest)
	require.NoError(t, err)
	require.Len(t, dest, 2)
	assert.Equal(t, "sq1", dest[0].ID)
	assert.Equal(t, "sq2", dest[1].ID)
}

func TestStripMarkdownFromJSONRemovesBoldAndItalic(t *testing.T) {
	got := stripMarkdownFromJSON(`{"answer": "**Paris** is the *capital* of France"}`)
	assert.Equal(t, `{"answer": "Paris is the capital of France"}`, got)
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "hello", TruncateForLog("hello", 10))
	assert.Equal(t, "hel...", TruncateForLog("hello world", 3))
}
