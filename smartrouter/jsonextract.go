package smartrouter

import (
	"encoding/json"
	"regexp"
	"strings"
)

// markdownCodeBlockPattern matches ```json ... ``` or bare ``` ... ``` fences,
// grounded in orchestration/orchestrator.go's markdownCodeBlockRegex.
var markdownCodeBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// markdownBoldPattern strips **bold** markers LLMs sometimes leave inside
// JSON string values despite instructions not to.
var markdownBoldPattern = regexp.MustCompile(`\*\*([^*]+)\*\*`)

// ExtractJSON locates and returns the first balanced JSON object in text,
// tolerant of markdown code fencing and leading/trailing prose, per
// spec.md §9's provider JSON fragility requirement. Returns the original
// text unchanged if no JSON object can be located.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	if matches := markdownCodeBlockPattern.FindStringSubmatch(text); len(matches) > 1 {
		text = strings.TrimSpace(matches[1])
	} else {
		start := findJSONStart(text)
		if start == -1 {
			return text
		}
		end := findJSONEnd(text, start)
		if end == -1 {
			return text
		}
		text = strings.TrimSpace(text[start:end])
	}

	return stripMarkdownFromJSON(text)
}

// ParseJSON extracts and unmarshals a JSON object from an LLM response into
// dest. Returns the extracted (pre-unmarshal) text alongside any error so
// callers can fall back to raw-text handling the way result_synthesizer.py's
// parse_fallback path does.
func ParseJSON(text string, dest interface{}) (extracted string, err error) {
	extracted = ExtractJSON(text)
	err = json.Unmarshal([]byte(extracted), dest)
	return extracted, err
}

// ExtractJSONArray is ExtractJSON's counterpart for a top-level JSON
// array, used by the Decomposer whose schema is a subquery list rather
// than a single object.
func ExtractJSONArray(text string) string {
	text = strings.TrimSpace(text)

	if matches := markdownCodeBlockPattern.FindStringSubmatch(text); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := findBalancedStart(text, '[')
	if start == -1 {
		return text
	}
	end := findBalancedEnd(text, start, '[', ']')
	if end == -1 {
		return text
	}
	return strings.TrimSpace(text[start:end])
}

// unmarshalJSONArray extracts a top-level JSON array from raw (already
// ExtractJSON'd or not) and unmarshals it into dest.
func unmarshalJSONArray(raw string, dest interface{}) error {
	return json.Unmarshal([]byte(ExtractJSONArray(raw)), dest)
}

func findJSONStart(s string) int {
	return findBalancedStart(s, '{')
}

func findBalancedStart(s string, open byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == open {
			return i
		}
	}
	return -1
}

// findJSONEnd returns the index just past the closing brace matching the
// opening brace at start, tracking quoted-string state so braces inside
// string values are never mistaken for structural braces.
func findJSONEnd(s string, start int) int {
	return findBalancedEnd(s, start, '{', '}')
}

// findBalancedEnd returns the index just past the close byte matching the
// open byte at start, tracking quoted-string state so open/close bytes
// inside string values are never mistaken for structural delimiters.
func findBalancedEnd(s string, start int, open, close byte) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// stripMarkdownFromJSON removes **bold** and *italic* markers from within
// an otherwise-valid JSON string, the same defensive cleanup
// orchestration/orchestrator.go applies before unmarshaling.
func stripMarkdownFromJSON(s string) string {
	s = markdownBoldPattern.ReplaceAllString(s, "$1")

	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for i < len(s) {
		if s[i] == '*' && i+1 < len(s) && s[i+1] != '*' {
			rest := s[i+1:]
			if endIdx := strings.Index(rest, "*"); endIdx > 0 && endIdx < 100 {
				fullEnd := i + 1 + endIdx
				if fullEnd+1 >= len(s) || s[fullEnd+1] != '*' {
					content := s[i+1 : fullEnd]
					if !strings.ContainsAny(content, "\n\t{}[]\"") && strings.TrimSpace(content) != "" {
						b.WriteString(content)
						i = fullEnd + 1
						continue
					}
				}
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// TruncateForLog shortens s to maxLen characters, appending "..." when
// truncated, for safe inclusion in log fields.
func TruncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
