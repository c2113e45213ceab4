package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Backend wraps a pgx connection pool shared by the driver's stores.
type Backend struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL and prepares the schema.
// The pgvector extension must be installed on the server; dim fixes the
// embedding dimension of the vectors table.
func Open(ctx context.Context, connString string, dim int) (*Backend, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	b := &Backend{pool: pool}
	if err := b.migrate(ctx, dim); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) migrate(ctx context.Context, dim int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS graphrag_vectors (
			id BIGINT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			payload BYTEA
		)`, dim),
		`CREATE TABLE IF NOT EXISTS graphrag_documents (
			id BIGINT PRIMARY KEY,
			status INT NOT NULL,
			record BYTEA NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS graphrag_documents_status_idx ON graphrag_documents (status)`,
	}
	for _, stmt := range statements {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}
