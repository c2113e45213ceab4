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

// Package ingestion turns raw documents into knowledge-graph state.
//
// The Pipeline chunks each document, mines every chunk for entity and
// relation candidates, and folds the candidates into canonical graph nodes
// and edges through the Merger. Document processing state is tracked in the
// DocStatus store with monotonic transitions:
//
//	pending -> processing -> processed | failed
//
// # Concurrency
//
// Two nested bounds apply. A worker pool processes documents in parallel up
// to MaxParallelInsert; within and across documents, chunk extraction and
// summarization calls share one semaphore bounding LLM concurrency at
// MaxAsync, and embedding calls share a second semaphore. Merges for the
// same canonical key are serialized by a per-key mutex, so concurrent
// documents can safely contribute to the same entity.
//
// # Failure model
//
// A single chunk's extraction failure is recorded and its siblings proceed;
// the document fails only when no chunk yields a mergeable result or a
// mutating storage call fails mid-merge. External calls (LLM, embedding,
// idempotent storage reads) retry with exponential backoff before giving up.
package ingestion
