package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
	"github.com/redis/go-redis/v9"
)

// DocStatusStore implements storage.DocStatusStore on Redis.
//
// Document records live under doc:<id>; one set per status indexes the IDs.
// Transitions run inside a WATCH block so concurrent writers cannot violate
// the monotonic lifecycle.
type DocStatusStore struct {
	client *redis.Client
	prefix string
}

var _ storage.DocStatusStore = (*DocStatusStore)(nil)

// NewDocStatusStore creates a DocStatusStore connected to Redis.
//
// Returns storage.DocStatusStore interface to enforce abstraction.
func NewDocStatusStore(opts Options) (storage.DocStatusStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewDocStatusStoreFromClient(client, opts.Prefix), nil
}

// NewDocStatusStoreFromClient creates a DocStatusStore on an existing client.
func NewDocStatusStoreFromClient(client *redis.Client, prefix string) storage.DocStatusStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &DocStatusStore{client: client, prefix: prefix}
}

func (s *DocStatusStore) docKey(id core.ID) string {
	return s.prefix + "doc:" + strconv.FormatUint(uint64(id), 10)
}

func (s *DocStatusStore) statusKey(status core.DocStatus) string {
	return s.prefix + "docstatus:" + status.String()
}

// SetStatus transitions a document to the given status.
func (s *DocStatusStore) SetStatus(ctx context.Context, doc *core.Document, status core.DocStatus) error {
	if err := core.ValidateStatus(status); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrConstraintViolation, err)
	}

	key := s.docKey(doc.Id)
	txn := func(tx *redis.Tx) error {
		var existing *core.Document
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			existing, err = storage.UnmarshalDocument(data)
			if err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if existing != nil {
			if existing.Status != status && !existing.Status.CanTransition(status) {
				return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, existing.Status, status)
			}
			doc.InsertedAt = existing.InsertedAt
		} else {
			doc.InsertedAt = now
		}
		doc.Status = status
		doc.UpdatedAt = now

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if existing != nil && existing.Status != status {
				pipe.SRem(ctx, s.statusKey(existing.Status), uint64(doc.Id))
			}
			pipe.Set(ctx, key, storage.MarshalDocument(doc), 0)
			pipe.SAdd(ctx, s.statusKey(status), uint64(doc.Id))
			return nil
		})
		return err
	}

	// Retry on WATCH conflicts; one writer commits per round
	const maxAttempts = 16
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, core.ErrInvalidTransition) || errors.Is(err, storage.ErrSerializationFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return nil
}

// GetStatus retrieves the stored document record.
func (s *DocStatusStore) GetStatus(ctx context.Context, docId core.ID) (*core.Document, error) {
	data, err := s.client.Get(ctx, s.docKey(docId)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return storage.UnmarshalDocument(data)
}

// ListByStatus returns all documents currently in the given status.
func (s *DocStatusStore) ListByStatus(ctx context.Context, status core.DocStatus) ([]*core.Document, error) {
	members, err := s.client.SMembers(ctx, s.statusKey(status)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}

	var result []*core.Document
	for _, member := range members {
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed status member %q", storage.ErrSerializationFailed, member)
		}
		doc, err := s.GetStatus(ctx, core.ID(id))
		if errors.Is(err, storage.ErrNotFound) {
			continue // removed between SMEMBERS and GET
		}
		if err != nil {
			return nil, err
		}
		if doc.Status == status {
			result = append(result, doc)
		}
	}
	return result, nil
}

// Delete removes a document record and its index entry.
func (s *DocStatusStore) Delete(ctx context.Context, docId core.ID) error {
	doc, err := s.GetStatus(ctx, docId)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, s.statusKey(doc.Status), uint64(docId))
		pipe.Del(ctx, s.docKey(docId))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *DocStatusStore) Close() error {
	return s.client.Close()
}
