package openai

import (
	"strings"
	"testing"
)

const sampleResponse = `("entity"<|>"Marie Curie"<|>"person"<|>"Scientist who discovered radium.")##
("entity"<|>"Radium"<|>"material"<|>"Chemical element discovered by Marie Curie.")##
("relationship"<|>"Marie Curie"<|>"Radium"<|>"Marie Curie discovered radium."<|>"discovery, science"<|>"9")##
<|COMPLETE|>`

func TestParseExtraction(t *testing.T) {
	extraction, ok := parseExtraction(sampleResponse)
	if !ok {
		t.Fatal("expected response to parse")
	}

	if len(extraction.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(extraction.Entities))
	}
	if extraction.Entities[0].Name != "Marie Curie" {
		t.Errorf("entity name = %q", extraction.Entities[0].Name)
	}
	if extraction.Entities[0].Type != "person" {
		t.Errorf("entity type = %q", extraction.Entities[0].Type)
	}

	if len(extraction.Relations) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(extraction.Relations))
	}
	rel := extraction.Relations[0]
	if rel.Source != "Marie Curie" || rel.Target != "Radium" {
		t.Errorf("relation endpoints = %q -> %q", rel.Source, rel.Target)
	}
	if rel.Weight != 9 {
		t.Errorf("relation weight = %v, want 9", rel.Weight)
	}
	if rel.Keywords != "discovery, science" {
		t.Errorf("relation keywords = %q", rel.Keywords)
	}
}

func TestParseExtractionDropsMalformedRecords(t *testing.T) {
	response := `("entity"<|>"Paris"<|>"location"<|>"Capital of France.")##
("entity"<|>""<|>"location"<|>"missing name")##
("relationship"<|>"Paris")##
this line is not a record at all
("entity"<|>"France"<|>"location"<|>"Country in Europe.")##
<|COMPLETE|>`

	extraction, ok := parseExtraction(response)
	if !ok {
		t.Fatal("expected response to parse")
	}
	if len(extraction.Entities) != 2 {
		t.Errorf("expected 2 entities, got %d", len(extraction.Entities))
	}
	if len(extraction.Relations) != 0 {
		t.Errorf("expected 0 relations, got %d", len(extraction.Relations))
	}
}

func TestParseExtractionEmptyWithMarker(t *testing.T) {
	extraction, ok := parseExtraction("<|COMPLETE|>")
	if !ok {
		t.Fatal("completion marker alone is a valid empty extraction")
	}
	if len(extraction.Entities)+len(extraction.Relations) != 0 {
		t.Error("expected no candidates")
	}
}

func TestParseExtractionRejectsGarbage(t *testing.T) {
	if _, ok := parseExtraction("I'm sorry, I can't help with that."); ok {
		t.Error("free-text refusal must not parse")
	}
}

func TestParseExtractionJSONFallback(t *testing.T) {
	response := "```json\n" + `{
  "entities": [
    {"name": "Tokyo", "type": "location", "description": "Capital of Japan."}
  ],
  "relations": [
    {"source": "Tokyo", "target": "Japan", "description": "Tokyo is in Japan.", "keywords": "location", "weight": 8}
  ]
}` + "\n```"

	extraction, ok := parseExtraction(response)
	if !ok {
		t.Fatal("expected JSON fallback to parse")
	}
	if len(extraction.Entities) != 1 || extraction.Entities[0].Name != "Tokyo" {
		t.Errorf("entities = %+v", extraction.Entities)
	}
	if len(extraction.Relations) != 1 || extraction.Relations[0].Weight != 8 {
		t.Errorf("relations = %+v", extraction.Relations)
	}
}

func TestParseExtractionNormalizesEntityType(t *testing.T) {
	response := `("entity"<|>"WWW"<|>"Abstract Concept"<|>"The web.")##`
	extraction, ok := parseExtraction(response)
	if !ok {
		t.Fatal("expected response to parse")
	}
	if extraction.Entities[0].Type != "abstract_concept" {
		t.Errorf("type = %q, want abstract_concept", extraction.Entities[0].Type)
	}
}

func TestRepairJSON(t *testing.T) {
	broken := `{"entities": [{name": "Tokyo", type": "location"}]}`
	repaired := repairJSON(broken)
	if !strings.Contains(repaired, `"name":`) || !strings.Contains(repaired, `"type":`) {
		t.Errorf("repairJSON did not quote keys: %s", repaired)
	}
}

func TestBuildExtractionPromptEmbedsTypesAndText(t *testing.T) {
	prompt := buildExtractionPrompt([]string{"person", "location"}, "some chunk text")
	if !strings.Contains(prompt, "person, location") {
		t.Error("prompt must list entity types")
	}
	if !strings.Contains(prompt, "some chunk text") {
		t.Error("prompt must embed the chunk text")
	}
	if !strings.Contains(prompt, completionMarker) {
		t.Error("prompt must instruct the completion marker")
	}
}
