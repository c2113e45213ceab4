package ingestion

import "fmt"

const summaryPromptTemplate = `You maintain entity descriptions in a knowledge graph. Merge the description
fragments below, all describing %s, into one coherent description.

Rules:
- Write in third person and name the subject explicitly.
- Keep every distinct fact; drop repetition.
- If fragments contradict each other, resolve the contradiction or note it.
- Keep the result under %d tokens.
- Output only the merged description, no preamble.

Fragments:
%s`

// buildSummaryPrompt creates the re-summarization prompt for an accumulated
// description. The subject is an entity name or a "A -> B" relation label.
func buildSummaryPrompt(subject, fragments string, maxTokens int) string {
	return fmt.Sprintf(summaryPromptTemplate, subject, maxTokens, fragments)
}
