package llm

import (
	"fmt"
	"strings"
)

// Default sampling temperatures. Extraction runs cold so the model sticks to
// the JSON contract; summarization gets a little room.
const (
	ExtractionTemperature    = 0.1
	SummarizationTemperature = 0.25
)

// ExtractionPrompt builds the strict-format instruction prompt for entity
// and relationship extraction. The model must answer with a JSON object
// holding exactly the keys "nodes" and "edges" and no prose; the parser
// still assumes it will not.
func ExtractionPrompt(summary string) string {
	return fmt.Sprintf(`Extract entities and relationships from the following text. `+
		`You MUST return ONLY a valid JSON object with exactly these two keys: 'nodes' and 'edges'. `+
		`Do not include any text before or after the JSON. `+
		`Do not add explanations or comments. `+
		`Do not use trailing commas. `+
		`Format:
{
  "nodes": [
    {"id": "entity1", "type": "organization", "name": "Entity Name"}
  ],
  "edges": [
    {"source": "entity1", "target": "entity2", "type": "RELATIONSHIP_TYPE"}
  ]
}

Text: '%s'

JSON:`, summary)
}

// SummarizationPrompt builds the prompt for condensing several memory
// summaries into one paragraph of direct prose.
func SummarizationPrompt(summaries []string) string {
	return "Summarize the following points in a single, concise paragraph. " +
		"Do NOT mention that you are an AI assistant. " +
		"Do NOT include any preamble, explanation, or reference to your own role. No mention of this prompt. " +
		"Only output the direct answer:\n" +
		strings.Join(summaries, "\n")
}

// ReconcilePrompt builds the prompt for merging two conflicting summaries
// into one reconciled statement. Advisory: the conflict resolver never
// invokes this automatically.
func ReconcilePrompt(first, second string) string {
	return "Resolve any contradiction between these two insights and provide a single, reconciled summary in a professional way. " +
		"Do NOT mention that you are an AI assistant. " +
		"Do NOT include any preamble, explanation, or reference to your own role. No mention of this prompt. " +
		"Only output the direct answer:\n" +
		fmt.Sprintf("1: %s\n2: %s", first, second)
}
