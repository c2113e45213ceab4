package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "same content produces same ID",
			content: "test content",
		},
		{
			name:    "empty string",
			content: "",
		},
		{
			name:    "long content",
			content: "This is a much longer piece of content that should still hash consistently",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestChunkID_Deterministic(t *testing.T) {
	docId := IDFromContent("doc")

	id1 := ChunkID(docId, 0, "chunk text")
	id2 := ChunkID(docId, 0, "chunk text")
	if id1 != id2 {
		t.Errorf("ChunkID() produced different IDs for same inputs")
	}

	if ChunkID(docId, 0, "chunk text") == ChunkID(docId, 1, "chunk text") {
		t.Errorf("ChunkID() ignored ordinal")
	}
	if ChunkID(docId, 0, "chunk text") == ChunkID(IDFromContent("other"), 0, "chunk text") {
		t.Errorf("ChunkID() ignored document ID")
	}
}

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase passthrough",
			input: "eiffel tower",
			want:  "eiffel tower",
		},
		{
			name:  "case folded",
			input: "Eiffel Tower",
			want:  "eiffel tower",
		},
		{
			name:  "whitespace collapsed",
			input: "  Eiffel \t Tower \n",
			want:  "eiffel tower",
		},
		{
			name:  "empty",
			input: "   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalName(tt.input); got != tt.want {
				t.Errorf("CanonicalName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRelationKey_Unordered(t *testing.T) {
	k1 := RelationKey("Paris", "Eiffel Tower")
	k2 := RelationKey("eiffel tower", "paris")

	if k1 != k2 {
		t.Errorf("RelationKey() not symmetric: %q vs %q", k1, k2)
	}
}

func TestDocStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from DocStatus
		to   DocStatus
		want bool
	}{
		{name: "pending to processing", from: DocStatusPending, to: DocStatusProcessing, want: true},
		{name: "processing to processed", from: DocStatusProcessing, to: DocStatusProcessed, want: true},
		{name: "processing to failed", from: DocStatusProcessing, to: DocStatusFailed, want: true},
		{name: "processed back to pending via reprocess", from: DocStatusProcessed, to: DocStatusPending, want: true},
		{name: "failed back to pending via reprocess", from: DocStatusFailed, to: DocStatusPending, want: true},
		{name: "pending to processed skips processing", from: DocStatusPending, to: DocStatusProcessed, want: false},
		{name: "processed to processing regression", from: DocStatusProcessed, to: DocStatusProcessing, want: false},
		{name: "failed to processed regression", from: DocStatusFailed, to: DocStatusProcessed, want: false},
		{name: "processing to pending regression", from: DocStatusProcessing, to: DocStatusPending, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("%v.CanTransition(%v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
