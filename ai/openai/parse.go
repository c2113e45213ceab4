// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/poiesic/graphrag/ai"
)

// parseExtraction parses the model's structured extraction response.
// Malformed records are dropped. The second return value reports whether the
// response was recognizably in the expected format: at least one record
// parsed, or the completion marker present (a valid empty extraction).
func parseExtraction(response string) (*ai.Extraction, bool) {
	extraction := &ai.Extraction{}
	parsed := 0

	body := strings.ReplaceAll(response, completionMarker, "")
	body = strings.ReplaceAll(body, recordDelimiter, "\n")

	for _, line := range strings.Split(body, "\n") {
		record := strings.TrimSpace(line)
		record = strings.TrimPrefix(record, "(")
		record = strings.TrimSuffix(record, ")")
		if record == "" {
			continue
		}

		fields := strings.Split(record, tupleDelimiter)
		for i, f := range fields {
			fields[i] = cleanField(f)
		}

		switch strings.ToLower(fields[0]) {
		case "entity":
			if len(fields) < 4 || fields[1] == "" || fields[2] == "" {
				continue
			}
			extraction.Entities = append(extraction.Entities, ai.EntityCandidate{
				Name:        fields[1],
				Type:        strings.ToLower(strings.ReplaceAll(fields[2], " ", "_")),
				Description: fields[3],
			})
			parsed++
		case "relationship", "relation":
			if len(fields) < 4 || fields[1] == "" || fields[2] == "" {
				continue
			}
			candidate := ai.RelationCandidate{
				Source:      fields[1],
				Target:      fields[2],
				Description: fields[3],
				Weight:      1.0,
			}
			if len(fields) >= 5 {
				candidate.Keywords = fields[4]
			}
			if len(fields) >= 6 {
				if w, err := strconv.ParseFloat(fields[5], 64); err == nil {
					candidate.Weight = w
				}
			}
			extraction.Relations = append(extraction.Relations, candidate)
			parsed++
		}
	}

	if parsed > 0 {
		return extraction, true
	}

	// Some models ignore the delimiter format and answer in JSON anyway
	if jsonExtraction, ok := parseJSONExtraction(response); ok {
		return jsonExtraction, true
	}

	return extraction, strings.Contains(response, completionMarker)
}

// jsonExtractionPayload mirrors the JSON shape models tend to fall back to.
type jsonExtractionPayload struct {
	Entities []struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"entities"`
	Relations []struct {
		Source      string  `json:"source"`
		Target      string  `json:"target"`
		Description string  `json:"description"`
		Keywords    string  `json:"keywords"`
		Weight      float64 `json:"weight"`
	} `json:"relations"`
}

func parseJSONExtraction(response string) (*ai.Extraction, bool) {
	text := strings.TrimSpace(response)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = repairJSON(strings.TrimSpace(text))

	var payload jsonExtractionPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, false
	}

	extraction := &ai.Extraction{}
	for _, e := range payload.Entities {
		if e.Name == "" || e.Type == "" {
			continue
		}
		extraction.Entities = append(extraction.Entities, ai.EntityCandidate{
			Name:        e.Name,
			Type:        strings.ToLower(strings.ReplaceAll(e.Type, " ", "_")),
			Description: e.Description,
		})
	}
	for _, r := range payload.Relations {
		if r.Source == "" || r.Target == "" {
			continue
		}
		weight := r.Weight
		if weight == 0 {
			weight = 1.0
		}
		extraction.Relations = append(extraction.Relations, ai.RelationCandidate{
			Source:      r.Source,
			Target:      r.Target,
			Description: r.Description,
			Keywords:    r.Keywords,
			Weight:      weight,
		})
	}

	return extraction, len(extraction.Entities)+len(extraction.Relations) > 0
}

// cleanField trims whitespace and surrounding quotes from a record field.
func cleanField(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
