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


// Package storage provides the storage abstraction layer for graphrag.
//
// Four independent capability interfaces cover everything the pipeline
// persists:
//
//   - KVStore: cache entries and raw chunk/document bodies
//   - VectorStore: cosine similarity search over chunk and entity embeddings
//   - GraphStore: the knowledge graph of entities and relations
//   - DocStatusStore: document processing state
//
// Any combination of backends may be mixed; the core is agnostic to which
// driver is active as long as it satisfies the capability contract.
//
// # Constructor Return Type Pattern
//
// This package follows a strict "return interface" pattern for all public
// driver constructors to enforce abstraction and enable multiple storage
// backend implementations:
//
//	kv, err := badger.NewKVStore(backend)  // returns storage.KVStore interface
//
// This design decision prioritizes:
//   - Abstraction: Prevents accidental coupling to backend specifics
//   - Swappability: Easy to add alternative backends
//   - Testing: Consumers can use mock implementations without modification
//
// # Drivers
//
//   - badger: embedded BadgerDB; implements all four interfaces
//   - redis: Redis; implements KVStore and DocStatusStore
//   - postgres: PostgreSQL with pgvector; implements VectorStore and DocStatusStore
//
// # Error Taxonomy
//
// Backend failures map onto ErrStorageUnavailable (retryable for idempotent
// reads) and ErrConstraintViolation (never retried). Missing records are
// ErrNotFound. Callers decide retry versus abort.
//
// # Thread Safety
//
// All driver implementations must be thread-safe and support concurrent
// access from multiple pipeline workers. The abstraction does not guarantee
// cross-entity transactional atomicity; the merge engine serializes writes
// per canonical key.
package storage
