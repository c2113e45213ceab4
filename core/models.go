package core

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain records.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocStatus is the persisted processing state of a document.
type DocStatus int

const (
	// DocStatusPending indicates the document is queued but not yet picked up.
	DocStatusPending DocStatus = iota + 1
	// DocStatusProcessing indicates the ingestion pipeline is working on the document.
	DocStatusProcessing
	// DocStatusProcessed indicates ingestion completed successfully.
	DocStatusProcessed
	// DocStatusFailed indicates ingestion failed; the error is recorded on the document.
	DocStatusFailed
)

// String returns the status name used in logs and status listings.
func (s DocStatus) String() string {
	switch s {
	case DocStatusPending:
		return "pending"
	case DocStatusProcessing:
		return "processing"
	case DocStatusProcessed:
		return "processed"
	case DocStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CanTransition reports whether a status change is allowed.
// Transitions are monotonic: pending -> processing -> processed|failed.
// Returning to pending is only allowed from a terminal state, which is how
// an explicit reprocessing request is expressed.
func (s DocStatus) CanTransition(to DocStatus) bool {
	switch s {
	case DocStatusPending:
		return to == DocStatusProcessing
	case DocStatusProcessing:
		return to == DocStatusProcessed || to == DocStatusFailed
	case DocStatusProcessed, DocStatusFailed:
		return to == DocStatusPending
	default:
		return to == DocStatusPending
	}
}

// Document represents a document tracked by the ingestion pipeline.
type Document struct {
	Id          ID
	ContentHash ID     // Hash of the raw content, used for idempotent re-ingestion
	Summary     string // Leading slice of the content, kept for status listings
	Status      DocStatus
	Error       string // Failure cause, or partial chunk failures on a processed document
	ChunkCount  int
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

// Chunk is a contiguous, token-bounded slice of a document's text.
// Chunks are immutable once created.
type Chunk struct {
	Id            ID
	DocId         ID
	Ordinal       int // Position within the document, deterministic
	Content       string
	Tokens        int // Token count of Content
	OverlapTokens int // Tokens shared with the previous chunk (0 for ordinal 0)
	Vector        []float32
}

// ChunkID generates the deterministic ID for a chunk from its content,
// owning document and position.
func ChunkID(docId ID, ordinal int, content string) ID {
	return IDFromContent(fmt.Sprintf("%s|%d|%d", content, docId, ordinal))
}

// Entity is a canonical knowledge-graph node accumulated across extractions.
type Entity struct {
	Name           string // Canonical name, see CanonicalName
	Type           string
	Description    string
	SourceChunkIds []ID
	Fragments      int // Distinct description fragments merged since the last re-summarization
	Vector         []float32
	InsertedAt     time.Time
	UpdatedAt      time.Time
}

// Key returns the canonical graph key for the entity.
func (e *Entity) Key() string {
	return CanonicalName(e.Name)
}

// Relation is a canonical knowledge-graph edge between two entities.
// Source and Target hold canonical entity names.
type Relation struct {
	Source         string
	Target         string
	Description    string
	Keywords       string
	Weight         float64
	SourceChunkIds []ID
	Fragments      int
	InsertedAt     time.Time
	UpdatedAt      time.Time
}

// Key returns the canonical graph key for the relation.
// The pair is ordered so that (a,b) and (b,a) map to the same edge.
func (r *Relation) Key() string {
	return RelationKey(r.Source, r.Target)
}

// RelationKey builds the canonical edge key for a pair of entity names.
func RelationKey(source, target string) string {
	s, t := CanonicalName(source), CanonicalName(target)
	if t < s {
		s, t = t, s
	}
	return s + "->" + t
}

// CanonicalName normalizes an entity name to its canonical key:
// case-folded with collapsed inner whitespace.
func CanonicalName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// EntityID returns the deterministic vector-store ID for an entity.
func EntityID(name string) ID {
	return IDFromContent("entity:" + CanonicalName(name))
}

// RelationID returns the deterministic vector-store ID for a relation.
func RelationID(source, target string) ID {
	return IDFromContent("relation:" + RelationKey(source, target))
}

// ScoredID is a vector similarity match.
type ScoredID struct {
	Id    ID
	Score float32
}
