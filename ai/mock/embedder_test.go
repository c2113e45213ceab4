package mock

import (
	"context"
	"math"
	"testing"
)

func TestEmbedderDeterministic(t *testing.T) {
	m := NewEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "the eiffel tower")
	if err != nil {
		t.Fatalf("Failed to embed: %v", err)
	}
	b, err := m.EmbedText(ctx, "the eiffel tower")
	if err != nil {
		t.Fatalf("Failed to embed: %v", err)
	}
	if len(a) != 16 {
		t.Fatalf("Expected 16 dimensions, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Expected identical vectors for identical text, differ at %d", i)
		}
	}
}

func TestEmbedderUnitLength(t *testing.T) {
	m := NewEmbedder()

	vector, err := m.EmbedText(context.Background(), "norm check")
	if err != nil {
		t.Fatalf("Failed to embed: %v", err)
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if norm := math.Sqrt(sumSquares); math.Abs(norm-1.0) > 1e-4 {
		t.Fatalf("Expected unit-length vector, got norm %f", norm)
	}
}
