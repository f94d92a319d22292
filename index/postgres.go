package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore backs the index with pgvector. Writes are durable on
// commit, so Persist is a no-op. The index_meta row plays the role of the
// file store's manifest.
type PostgresStore struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewPostgresStore verifies the recorded embedding model against the
// configured one (writing the record on first use) and returns the store.
// The schema must already exist; see database.EnsureSchema.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, model string, dimension int) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("index: postgres pool is nil")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dimension)
	}

	var storedModel string
	var storedDimension int
	err := pool.QueryRow(ctx, "SELECT embedding_model, dimension FROM index_meta WHERE id = 1").
		Scan(&storedModel, &storedDimension)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := pool.Exec(ctx,
			"INSERT INTO index_meta (id, embedding_model, dimension) VALUES (1, $1, $2)",
			model, dimension); err != nil {
			return nil, fmt.Errorf("index: record embedding model: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("index: read index metadata: %w", err)
	case storedModel != model || storedDimension != dimension:
		return nil, fmt.Errorf("%w: index built with %s/%d, configured %s/%d",
			ErrModelMismatch, storedModel, storedDimension, model, dimension)
	}

	return &PostgresStore{pool: pool, dimension: dimension}, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, entry := range entries {
		if len(entry.Vector) != s.dimension {
			return fmt.Errorf("index: vector dimension mismatch: expected %d, got %d", s.dimension, len(entry.Vector))
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO rag_chunks (id, source_path, ordinal, content, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			ON CONFLICT (source_path, ordinal) DO UPDATE
			SET content = EXCLUDED.content,
			    embedding = EXCLUDED.embedding,
			    updated_at = NOW()
		`, uuid.New(), entry.SourcePath, entry.Ordinal, entry.Text, pgvector.NewVector(entry.Vector)); err != nil {
			return fmt.Errorf("index: upsert chunk %s#%d: %w", entry.SourcePath, entry.Ordinal, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("index: commit upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("index: query dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}
	k = clampK(k)

	rows, err := s.pool.Query(ctx, `
		SELECT source_path, ordinal, content, (embedding <=> $1::vector) AS distance
		FROM rag_chunks
		ORDER BY embedding <=> $1::vector, created_at
		LIMIT $2
	`, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("index: query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, k)
	for rows.Next() {
		var item Result
		var distance float64
		if scanErr := rows.Scan(&item.Entry.SourcePath, &item.Entry.Ordinal, &item.Entry.Text, &distance); scanErr != nil {
			return nil, fmt.Errorf("index: scan similar chunk: %w", scanErr)
		}
		item.Score = 1 - distance
		results = append(results, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return results, nil
}

func (s *PostgresStore) Persist(_ context.Context) error {
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM rag_chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("index: count chunks: %w", err)
	}
	return count, nil
}

var _ Store = (*PostgresStore)(nil)
