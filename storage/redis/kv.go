package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/graphrag/storage"
	"github.com/redis/go-redis/v9"
)

// KVStore implements storage.KVStore on Redis.
type KVStore struct {
	client *redis.Client
	prefix string
}

var _ storage.KVStore = (*KVStore)(nil)

// Options configures the Redis driver.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Key prefix, default "graphrag:"
}

const defaultPrefix = "graphrag:"

// NewKVStore creates a KVStore connected to Redis.
//
// Returns storage.KVStore interface to enforce abstraction.
func NewKVStore(opts Options) (storage.KVStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewKVStoreFromClient(client, opts.Prefix), nil
}

// NewKVStoreFromClient creates a KVStore on an existing client,
// for callers that need pooling or cluster configuration.
func NewKVStoreFromClient(client *redis.Client, prefix string) storage.KVStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &KVStore{client: client, prefix: prefix + "kv:"}
}

// Get retrieves the value for a key.
func (s *KVStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+string(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return value, nil
}

// Set stores a value under a key.
func (s *KVStore) Set(ctx context.Context, key, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+string(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *KVStore) Delete(ctx context.Context, key []byte) error {
	if err := s.client.Del(ctx, s.prefix+string(key)).Err(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return nil
}

// Scan returns all pairs whose key starts with prefix, in key order.
func (s *KVStore) Scan(ctx context.Context, prefix []byte) ([]storage.KVPair, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+string(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	// SCAN order is unspecified; the contract is lexicographic
	slices.Sort(keys)

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}

	pairs := make([]storage.KVPair, 0, len(keys))
	for i, key := range keys {
		value, ok := values[i].(string)
		if !ok {
			continue // deleted between SCAN and MGET
		}
		pairs = append(pairs, storage.KVPair{
			Key:   []byte(strings.TrimPrefix(key, s.prefix)),
			Value: []byte(value),
		})
	}
	return pairs, nil
}

// Close closes the Redis client.
func (s *KVStore) Close() error {
	return s.client.Close()
}
