package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads contract documents from the relational database. Each
// lookup acquires a connection from the pool and releases it before returning.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) LookupDocument(ctx context.Context, id string) (string, string, error) {
	if s.pool == nil {
		return "", "", fmt.Errorf("postgres pool is nil")
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", "", fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var content, name string
	err = conn.QueryRow(ctx,
		`SELECT "documentContent", "documentName" FROM "ContractVersion" WHERE "contractId" = $1`,
		id,
	).Scan(&content, &name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrNotFound
		}
		return "", "", fmt.Errorf("query contract version: %w", err)
	}

	return content, name, nil
}

var _ RelationalStore = (*PostgresStore)(nil)
