package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

// DocStatusStore implements storage.DocStatusStore for BadgerDB.
type DocStatusStore struct {
	backend *Backend
}

var _ storage.DocStatusStore = (*DocStatusStore)(nil)

// NewDocStatusStore creates a new DocStatusStore on the shared backend.
//
// Returns storage.DocStatusStore interface to enforce abstraction.
func NewDocStatusStore(backend *Backend) (storage.DocStatusStore, error) {
	return &DocStatusStore{backend: backend}, nil
}

// SetStatus transitions a document to the given status.
// The stored record and the status index are updated together.
func (s *DocStatusStore) SetStatus(ctx context.Context, doc *core.Document, status core.DocStatus) error {
	if err := core.ValidateStatus(status); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrConstraintViolation, err)
	}

	return s.backend.WithWriteRetry(ctx, func(tx *badger.Txn) error {
		key := makeDocStatusKey(doc.Id)

		existing, err := readDocument(tx, key)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if existing != nil {
			if existing.Status != status && !existing.Status.CanTransition(status) {
				return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, existing.Status, status)
			}
			// Drop the old index entry before writing the new one
			if existing.Status != status {
				if err := tx.Delete(makeStatusIndexKey(existing.Status, doc.Id)); err != nil {
					return err
				}
			}
			doc.InsertedAt = existing.InsertedAt
		} else {
			doc.InsertedAt = now
		}

		doc.Status = status
		doc.UpdatedAt = now

		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		if err := tx.Set(makeStatusIndexKey(status, doc.Id), nil); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// GetStatus retrieves the stored document record.
func (s *DocStatusStore) GetStatus(ctx context.Context, docId core.ID) (*core.Document, error) {
	var result *core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, makeDocStatusKey(docId))
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		result = doc
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListByStatus returns all documents currently in the given status.
func (s *DocStatusStore) ListByStatus(ctx context.Context, status core.DocStatus) ([]*core.Document, error) {
	var result []*core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeStatusIndexScanPrefix(status)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefixLen := len(opts.Prefix)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			var id core.ID
			if _, err := fmt.Sscanf(string(key[prefixLen:]), "%d", &id); err != nil {
				return fmt.Errorf("%w: malformed status index key %q", storage.ErrSerializationFailed, key)
			}
			doc, err := readDocument(tx, makeDocStatusKey(id))
			if err != nil {
				return err
			}
			if doc != nil && doc.Status == status {
				result = append(result, doc)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a document record and its index entry.
func (s *DocStatusStore) Delete(ctx context.Context, docId core.ID) error {
	return s.backend.WithWriteRetry(ctx, func(tx *badger.Txn) error {
		key := makeDocStatusKey(docId)
		existing, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if existing == nil {
			return nil
		}
		if err := tx.Delete(makeStatusIndexKey(existing.Status, docId)); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Close releases resources. The shared backend is closed by its owner.
func (s *DocStatusStore) Close() error {
	return nil
}

// readDocument reads and unmarshals a document record.
// Returns nil without error when the key is absent.
func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}
