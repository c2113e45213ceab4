package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

// DocStatusStore implements storage.DocStatusStore on PostgreSQL.
//
// Transitions run in a transaction with the row locked, so concurrent
// writers cannot violate the monotonic lifecycle.
type DocStatusStore struct {
	backend *Backend
}

var _ storage.DocStatusStore = (*DocStatusStore)(nil)

// NewDocStatusStore creates a DocStatusStore on the shared backend.
//
// Returns storage.DocStatusStore interface to enforce abstraction.
func NewDocStatusStore(backend *Backend) (storage.DocStatusStore, error) {
	return &DocStatusStore{backend: backend}, nil
}

// SetStatus transitions a document to the given status.
func (s *DocStatusStore) SetStatus(ctx context.Context, doc *core.Document, status core.DocStatus) error {
	if err := core.ValidateStatus(status); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrConstraintViolation, err)
	}

	tx, err := s.backend.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var record []byte
	err = tx.QueryRow(ctx,
		`SELECT record FROM graphrag_documents WHERE id = $1 FOR UPDATE`,
		int64(doc.Id)).Scan(&record)

	now := time.Now().UTC()
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		doc.InsertedAt = now
	case err != nil:
		return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	default:
		existing, err := storage.UnmarshalDocument(record)
		if err != nil {
			return err
		}
		if existing.Status != status && !existing.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, existing.Status, status)
		}
		doc.InsertedAt = existing.InsertedAt
	}

	doc.Status = status
	doc.UpdatedAt = now

	_, err = tx.Exec(ctx,
		`INSERT INTO graphrag_documents (id, status, record) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, record = EXCLUDED.record`,
		int64(doc.Id), int(status), storage.MarshalDocument(doc))
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return nil
}

// GetStatus retrieves the stored document record.
func (s *DocStatusStore) GetStatus(ctx context.Context, docId core.ID) (*core.Document, error) {
	var record []byte
	err := s.backend.pool.QueryRow(ctx,
		`SELECT record FROM graphrag_documents WHERE id = $1`,
		int64(docId)).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return storage.UnmarshalDocument(record)
}

// ListByStatus returns all documents currently in the given status.
func (s *DocStatusStore) ListByStatus(ctx context.Context, status core.DocStatus) ([]*core.Document, error) {
	rows, err := s.backend.pool.Query(ctx,
		`SELECT record FROM graphrag_documents WHERE status = $1`, int(status))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var result []*core.Document
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		doc, err := storage.UnmarshalDocument(record)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return result, nil
}

// Delete removes a document record.
func (s *DocStatusStore) Delete(ctx context.Context, docId core.ID) error {
	_, err := s.backend.pool.Exec(ctx,
		`DELETE FROM graphrag_documents WHERE id = $1`, int64(docId))
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return nil
}

// Close releases resources. The shared backend is closed by its owner.
func (s *DocStatusStore) Close() error {
	return nil
}
