// Package openai provides OpenAI-compatible implementations of the ai
// service interfaces.
//
// The package works with any OpenAI-compatible API endpoint, including
// Ollama, LocalAI, vLLM and the OpenAI platform itself. Clients are built on
// langchaingo and configured through ai.Config.
//
// Extraction uses a structured delimiter-format prompt. The parser tolerates
// partially malformed responses by dropping unparseable records, and falls
// back to JSON parsing (with basic repair) for models that ignore the
// delimiter format.
package openai
