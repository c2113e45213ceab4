package ai

// EntityTypes defines the default categories the extractor asks the model
// to classify entities into. Configurable per deployment via Config.
var EntityTypes = []string{
	"organization",
	"person",
	"location",
	"event",
	"concept",
	"technology",
	"product",
	"material",
	"time",
}

// EntityCandidate is an entity mention proposed by the extractor for one
// chunk. It is not yet merged into the graph.
type EntityCandidate struct {
	// Name is the entity identifier as the model emitted it. The merge
	// engine canonicalizes it before use.
	Name string

	// Type categorizes the entity (one of the configured entity types).
	Type string

	// Description is a short model-written summary of the entity as it
	// appears in the chunk.
	Description string
}

// RelationCandidate is a relation between two entities proposed by the
// extractor for one chunk.
type RelationCandidate struct {
	Source      string
	Target      string
	Description string

	// Keywords are high-level terms summarizing the relation's nature.
	Keywords string

	// Weight is the model's strength score for the relation.
	Weight float64
}

// Extraction is the candidate set mined from a single chunk.
type Extraction struct {
	Entities  []EntityCandidate
	Relations []RelationCandidate
}
