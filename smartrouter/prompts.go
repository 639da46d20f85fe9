package smartrouter

import (
	"fmt"
	"strings"
)

// The prompt bodies below are grounded in the Python reference prompts
// (query_interpreter.py, subquery_decomposer.py, result_synthesizer.py,
// llm_judge.py) and carry the same schema requirements forward verbatim;
// only the surrounding Go plumbing is new.

const interpreterSystemPrompt = `You are a query interpretation engine for a multi-agent assistant.
Classify the user's query and respond with a single JSON object only:

{
  "complexity": "SIMPLE" | "MODERATE" | "COMPLEX",
  "domains": [string, ...],
  "requires_synthesis": bool,
  "reasoning": string
}

Rules:
- If the query is wrapped in chitchat (a greeting, thanks, etc.) but contains a
  substantive question, classify by the question, not the greeting.
- Real-time information requests (weather, news, current events) are SIMPLE
  with domain "search".
- Pure social content with no information request gets domains
  ["conversation", "social"] and requires_synthesis=false.
- "geography" means geocoding (address to/from coordinates); "mapping" means
  routing, directions, or distance. Keep these distinct.
- domains must never be empty; if nothing else fits, use ["search"].

Respond with the JSON object only, no surrounding prose.`

func buildInterpreterUserPrompt(query string) string {
	return fmt.Sprintf("Query: %s", query)
}

const decomposerSystemPrompt = `You are a query decomposition engine. Split the user's query into
independently routable subqueries and respond with a single JSON array only:

[
  {
    "id": string,
    "text": string,
    "capability_required": string,
    "dependencies": [string, ...],
    "routing_pattern": "DELEGATION" | "HANDOFF"
  },
  ...
]

Rules:
- Each subquery must be answerable by one specialist agent.
- "dependencies" lists ids of subqueries that must complete first, in the
  same array; omit or use an empty array when there are none.
- Keep the array as small as possible while covering the whole query.
- Respond with the JSON array only, no surrounding prose.`

func buildDecomposerUserPrompt(query string, maxSubqueries int) string {
	return fmt.Sprintf("Query: %s\n\nProduce at most %d subqueries.", query, maxSubqueries)
}

const synthesisSystemPrompt = `You are a response synthesis engine. You are given an original query and
one labeled response per contributing agent. Merge them into one coherent
answer and respond with a single JSON object only:

{
  "answer": string,
  "conflicts_resolved": [string, ...],
  "confidence": number between 0 and 1,
  "notes": string
}

Rules:
- Resolve contradictions between agent responses explicitly; note each one in
  conflicts_resolved.
- The answer must read as a single unified response, not a list of agent
  outputs.
- Respond with the JSON object only, no surrounding prose.`

func buildSynthesisUserPrompt(query string, responses map[string]AgentResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original query: %s\n\n", query)
	for id, r := range responses {
		fmt.Fprintf(&b, "Response from %s (subquery %s):\n%s\n\n", r.AgentID, id, r.Content)
	}
	return b.String()
}

const judgeSystemPrompt = `You are a quality evaluation engine. Score the candidate answer against the
original query and respond with a single JSON object only:

{
  "completeness": number between 0 and 1,
  "accuracy": number between 0 and 1,
  "clarity": number between 0 and 1,
  "faithfulness": number between 0 and 1,
  "relevance": number between 0 and 1,
  "actionability": number between 0 and 1,
  "issues": [string, ...],
  "reasoning": string
}

Rules:
- completeness: does the answer address every part of the query.
- accuracy: is the answer factually consistent with the supplied responses.
- clarity: is the answer well-organized and readable.
- Respond with the JSON object only, no surrounding prose.`

func buildJudgeUserPrompt(answer, query string) string {
	return fmt.Sprintf("Original query: %s\n\nCandidate answer: %s", query, answer)
}
