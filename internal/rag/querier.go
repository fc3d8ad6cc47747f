package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Querier defines the database operations Store depends on.
// The interface lives on the consumer side so tests can substitute a fake
// without a live database.
type Querier interface {
	UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error
	SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error)
	CountDocuments(ctx context.Context, corpus string) (int64, error)
	DeleteDocument(ctx context.Context, id string) error
}

// UpsertDocumentParams carries one document and its embedding for insert-or-update.
type UpsertDocumentParams struct {
	ID        string
	Corpus    string
	Content   string
	Embedding pgvector.Vector
	Metadata  []byte
	CreatedAt time.Time
}

// SearchDocumentsParams parameterizes a vector search.
// Empty Corpus searches all corpora; nil FilterMetadata applies no JSONB filter.
type SearchDocumentsParams struct {
	QueryEmbedding pgvector.Vector
	Corpus         string
	FilterMetadata []byte
	ResultLimit    int32
}

// SearchDocumentsRow is one vector search hit.
type SearchDocumentsRow struct {
	ID         string
	Corpus     string
	Content    string
	Metadata   []byte
	CreatedAt  time.Time
	Similarity float64
}

// PGQuerier implements Querier against PostgreSQL with the pgvector extension.
// The pool must have pgvector types registered (see database.NewPool).
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier wraps a pgx pool in the Querier interface.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

const upsertDocumentSQL = `
INSERT INTO documents (id, corpus, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    corpus = EXCLUDED.corpus,
    content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata`

// UpsertDocument inserts or replaces a document by ID.
func (q *PGQuerier) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	_, err := q.pool.Exec(ctx, upsertDocumentSQL,
		arg.ID, arg.Corpus, arg.Content, arg.Embedding, arg.Metadata, arg.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}
	return nil
}

// SearchDocuments runs a cosine-distance ordered vector search.
// The metadata filter uses the JSONB containment operator with a
// json.Marshal-produced parameter, never interpolated user input.
func (q *PGQuerier) SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	query := `SELECT id, corpus, content, metadata, created_at,
    1 - (embedding <=> $1) AS similarity
FROM documents`

	args := []any{arg.QueryEmbedding}
	var where []string
	if arg.Corpus != "" {
		args = append(args, arg.Corpus)
		where = append(where, fmt.Sprintf("corpus = $%d", len(args)))
	}
	if len(arg.FilterMetadata) > 0 {
		args = append(args, arg.FilterMetadata)
		where = append(where, fmt.Sprintf("metadata @> $%d", len(args)))
	}
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	args = append(args, arg.ResultLimit)
	query += fmt.Sprintf("\nORDER BY embedding <=> $1\nLIMIT $%d", len(args))

	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var results []SearchDocumentsRow
	for rows.Next() {
		var row SearchDocumentsRow
		if err := rows.Scan(&row.ID, &row.Corpus, &row.Content, &row.Metadata, &row.CreatedAt, &row.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	return results, nil
}

// CountDocuments counts documents, optionally restricted to one corpus.
func (q *PGQuerier) CountDocuments(ctx context.Context, corpus string) (int64, error) {
	var count int64
	var err error
	if corpus != "" {
		err = q.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE corpus = $1`, corpus).Scan(&count)
	} else {
		err = q.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// DeleteDocument removes a document by ID. Deleting a missing ID is not an error.
func (q *PGQuerier) DeleteDocument(ctx context.Context, id string) error {
	if _, err := q.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}
