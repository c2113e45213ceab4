package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/graphrag/storage"
)

// KVStore implements storage.KVStore for BadgerDB.
type KVStore struct {
	backend *Backend
}

var _ storage.KVStore = (*KVStore)(nil)

// NewKVStore creates a new KVStore on the shared backend.
//
// Returns storage.KVStore interface to enforce abstraction.
func NewKVStore(backend *Backend) (storage.KVStore, error) {
	return &KVStore{backend: backend}, nil
}

// Get retrieves the value for a key.
func (s *KVStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeKVKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores a value under a key.
func (s *KVStore) Set(ctx context.Context, key, value []byte) error {
	return s.backend.WithWriteRetry(ctx, func(tx *badger.Txn) error {
		if err := tx.Set(makeKVKey(key), value); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *KVStore) Delete(ctx context.Context, key []byte) error {
	return s.backend.WithWriteRetry(ctx, func(tx *badger.Txn) error {
		if err := tx.Delete(makeKVKey(key)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Scan returns all pairs whose key starts with prefix, in key order.
// The namespace prefix is stripped from returned keys.
func (s *KVStore) Scan(ctx context.Context, prefix []byte) ([]storage.KVPair, error) {
	var pairs []storage.KVPair
	nsPrefix := makeKVKey(prefix)
	nsLen := len(makeKVKey(nil))

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = nsPrefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			key := item.KeyCopy(nil)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			pairs = append(pairs, storage.KVPair{
				Key:   key[nsLen:],
				Value: value,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// Close releases resources. The shared backend is closed by its owner.
func (s *KVStore) Close() error {
	return nil
}
