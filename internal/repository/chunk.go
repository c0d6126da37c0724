package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/remind/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ChunkRepository is the pgvector-backed semantic index.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// AddChunks inserts chunks in one transaction. A chunk that is already stored
// under the same document id and index is overwritten, so re-adding after a
// failed id-set write does not duplicate rows.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func insertChunks(ctx context.Context, db dbtx, chunks []domain.Chunk) error {
	for _, c := range chunks {
		metadata := c.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		_, err := db.Exec(ctx,
			`INSERT INTO chunks (document_id, chunk_index, entry_date, entry_time, day, content, metadata, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (document_id, chunk_index) DO UPDATE SET
			   content = excluded.content, metadata = excluded.metadata, embedding = excluded.embedding`,
			c.DocumentID,
			c.ChunkIndex,
			c.Date,
			c.Time,
			nullableDay(c.Date),
			c.Content,
			metadata,
			pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s/%d: %w", c.DocumentID, c.ChunkIndex, err)
		}
	}
	return nil
}

// SearchByEmbedding returns the nearest chunks by cosine distance. When rng is
// active only chunks whose date parses and falls inside it are considered.
func (r *ChunkRepository) SearchByEmbedding(ctx context.Context, embedding []float32, rng domain.DateRange, limit int) ([]domain.RetrievedDocument, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT document_id, entry_date, entry_time, content, metadata,
		       (1.0 / (1.0 + (embedding <=> $1)))::real AS score
		FROM chunks`
	args := []any{pgvector.NewVector(embedding), limit}

	if !rng.IsZero() {
		query += " WHERE day BETWEEN $3 AND $4"
		args = append(args, rng.Start, rng.End)
	}

	query += " ORDER BY embedding <=> $1 LIMIT $2"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.RetrievedDocument, 0)
	for rows.Next() {
		var doc domain.RetrievedDocument
		if err := rows.Scan(&doc.DocumentID, &doc.Date, &doc.Time, &doc.Content, &doc.Metadata, &doc.Score); err != nil {
			return nil, err
		}
		results = append(results, doc)
	}

	return results, rows.Err()
}

// CountDocuments returns the number of distinct documents in the index.
func (r *ChunkRepository) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT document_id) FROM chunks`).Scan(&n)
	return n, err
}

func (r *ChunkRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// nullableDay stores NULL for dates that do not parse; such chunks never match a range.
func nullableDay(date string) *time.Time {
	day, err := domain.ParseDate(date)
	if err != nil {
		return nil
	}
	return &day
}
