package ai

import (
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestNormalizeAddsV1Suffix(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"bare host", "http://localhost:11434", "http://localhost:11434/v1"},
		{"trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"already normalized", "http://localhost:11434/v1", "http://localhost:11434/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(WithHost(tt.host))
			cfg.Normalize()
			if cfg.LLMHost != tt.want {
				t.Errorf("LLMHost = %q, want %q", cfg.LLMHost, tt.want)
			}
			if cfg.EmbeddingHost != tt.want {
				t.Errorf("EmbeddingHost = %q, want %q", cfg.EmbeddingHost, tt.want)
			}
		})
	}
}

func TestValidateRejectsIncompleteConfig(t *testing.T) {
	tests := []struct {
		name string
		opt  ConfigOption
	}{
		{"empty llm model", WithLLMModel("")},
		{"empty embedding model", WithEmbeddingModel("")},
		{"negative gleans", WithMaxGleans(-1)},
		{"empty entity types", WithEntityTypes(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(tt.opt)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
