package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

// Backend wraps a BadgerDB instance and provides low-level operations
// shared by the driver's stores.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	opts.Logger = &badgerLoggerAdapter{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: slog.Default(),
	}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
// Raw BadgerDB errors escaping fn are classified via classifyErr.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return classifyErr(fn(tx))
}

// WithWriteRetry runs fn in a write transaction, retrying with backoff while
// BadgerDB reports a key conflict between concurrent transactions. Conflicts
// only occur for overlapping key sets, and at least one competing transaction
// commits per round, so every writer eventually gets through. Retrying stops
// when ctx is done; the last conflict is returned joined with the context
// error.
func (b *Backend) WithWriteRetry(ctx context.Context, fn func(tx *badger.Txn) error) error {
	delay := time.Millisecond
	const maxDelay = 50 * time.Millisecond
	for {
		err := b.WithTx(fn, true)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
		if delay < maxDelay {
			delay *= 2
		}
	}
}

// classifyErr maps raw BadgerDB errors onto the storage error taxonomy.
// Errors that already carry a storage or domain classification pass through
// unchanged so callers keep matching with errors.Is.
func classifyErr(err error) error {
	switch {
	case err == nil,
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrConstraintViolation),
		errors.Is(err, storage.ErrSerializationFailed),
		errors.Is(err, storage.ErrStorageUnavailable),
		errors.Is(err, core.ErrInvalidTransition):
		return err
	}
	return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
}
