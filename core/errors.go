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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidEntity indicates an Entity failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidRelation indicates a Relation failed validation.
	ErrInvalidRelation = errors.New("invalid relation")

	// ErrInvalidStatus indicates an unknown DocStatus value.
	ErrInvalidStatus = errors.New("invalid document status")

	// ErrInvalidTransition indicates a DocStatus change that violates the
	// monotonic pending -> processing -> processed|failed lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEmptyEntityName indicates the entity Name field is empty after normalization.
	ErrEmptyEntityName = errors.New("entity name cannot be empty")

	// ErrEmptyEntityType indicates the entity Type field is empty.
	ErrEmptyEntityType = errors.New("entity type cannot be empty")

	// ErrSelfRelation indicates a relation whose source and target are the same entity.
	ErrSelfRelation = errors.New("relation source and target cannot be equal")

	// ErrEmptyChunkContent indicates the chunk Content field is empty.
	ErrEmptyChunkContent = errors.New("chunk content cannot be empty")
)
