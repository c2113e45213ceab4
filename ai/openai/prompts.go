package openai

import (
	"fmt"
	"strings"
)

// Delimiters for the structured extraction response format.
const (
	tupleDelimiter   = "<|>"
	recordDelimiter  = "##"
	completionMarker = "<|COMPLETE|>"
)

const extractionPromptTemplate = `You are a knowledge graph extraction engine. Identify all entities in the
given text and all relationships between them.

Steps:
1. Identify all entities. For each, extract:
   - entity_name: the name of the entity, capitalized as in the text
   - entity_type: exactly one of: %s
   - entity_description: a comprehensive description of the entity's
     attributes and activities, grounded only in the text
   Format each entity as:
   ("entity"%s<entity_name>%s<entity_type>%s<entity_description>)

2. Identify all pairs of entities from step 1 that are clearly related.
   For each pair, extract:
   - source_entity: name of the source entity
   - target_entity: name of the target entity
   - relationship_description: why the entities are related
   - relationship_keywords: high-level keywords summarizing the relationship
   - relationship_strength: a numeric score from 1 to 10
   Format each relationship as:
   ("relationship"%s<source_entity>%s<target_entity>%s<relationship_description>%s<relationship_keywords>%s<relationship_strength>)

3. Output every record on its own line, separated by %s.

4. When finished, output %s.

Rules:
- Extract only entities and relationships explicitly supported by the text. Do not hallucinate.
- Relationship endpoints must be entity names from step 1.
- Do not include any preamble, explanation, or text outside the records.

Example:
Input: "Marie Curie discovered radium at the Sorbonne in Paris."
Output:
("entity"%s"Marie Curie"%s"person"%s"Marie Curie is a scientist who discovered radium at the Sorbonne.")%s
("entity"%s"Radium"%s"material"%s"Radium is a chemical element discovered by Marie Curie.")%s
("entity"%s"Sorbonne"%s"organization"%s"The Sorbonne is an institution in Paris where radium was discovered.")%s
("entity"%s"Paris"%s"location"%s"Paris is the city where the Sorbonne is located.")%s
("relationship"%s"Marie Curie"%s"Radium"%s"Marie Curie discovered radium."%s"discovery, science"%s"9")%s
("relationship"%s"Sorbonne"%s"Paris"%s"The Sorbonne is located in Paris."%s"location"%s"7")%s
%s

Text:
%s`

const gleanPromptTemplate = `Some entities and relationships were missed in the last extraction. Add the
missing ones below using the same format, without repeating records already
emitted. When finished, output %s.`

// buildExtractionPrompt creates the extraction prompt for a chunk of text.
func buildExtractionPrompt(entityTypes []string, text string) string {
	td := tupleDelimiter
	rd := recordDelimiter
	return fmt.Sprintf(extractionPromptTemplate,
		strings.Join(entityTypes, ", "),
		td, td, td,
		td, td, td, td, td,
		rd,
		completionMarker,
		// example records
		td, td, td, rd,
		td, td, td, rd,
		td, td, td, rd,
		td, td, td, rd,
		td, td, td, td, td, rd,
		td, td, td, td, td, rd,
		completionMarker,
		text)
}

// buildGleanPrompt creates the follow-up prompt that asks the model for
// entities and relationships it missed on the previous pass.
func buildGleanPrompt(basePrompt, previousResponse string) string {
	return basePrompt + "\n\n" + previousResponse + "\n\n" +
		fmt.Sprintf(gleanPromptTemplate, completionMarker)
}
