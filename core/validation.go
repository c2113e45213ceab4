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

import "fmt"

// ValidateStatus validates that a DocStatus has a known value.
func ValidateStatus(status DocStatus) error {
	switch status {
	case DocStatusPending, DocStatusProcessing, DocStatusProcessed, DocStatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidStatus, status)
	}
}

// ValidateEntity validates an Entity according to domain rules.
//
// Validation rules:
//   - Name must not be empty after canonical normalization
//   - Type must not be empty
//
// NOT validated (populated by the pipeline):
//   - Vector (can be empty until embedded)
//   - SourceChunkIds (can be empty for manually created entities)
func ValidateEntity(entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}

	if CanonicalName(entity.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyEntityName)
	}

	if entity.Type == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyEntityType)
	}

	return nil
}

// ValidateRelation validates a Relation according to domain rules.
//
// Validation rules:
//   - Source and Target must not be empty after canonical normalization
//   - Source and Target must refer to distinct entities
func ValidateRelation(relation *Relation) error {
	if relation == nil {
		return fmt.Errorf("%w: relation is nil", ErrInvalidRelation)
	}

	src, dst := CanonicalName(relation.Source), CanonicalName(relation.Target)
	if src == "" || dst == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRelation, ErrEmptyEntityName)
	}

	if src == dst {
		return fmt.Errorf("%w: %w", ErrInvalidRelation, ErrSelfRelation)
	}

	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyChunkContent)
	}

	if chunk.Ordinal < 0 {
		return fmt.Errorf("%w: negative ordinal %d", ErrInvalidChunk, chunk.Ordinal)
	}

	return nil
}
