package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/meridianfm/meridian/internal/domain"
)

// ChunkResult is a knowledge chunk returned from a similarity search,
// paired with its cosine distance to the query embedding (lower is closer).
type ChunkResult struct {
	Chunk    domain.KnowledgeChunk
	Distance float64
}

// IndexChunk upserts a pre-embedded knowledge chunk, used by the embedder
// worker processing kb_index jobs. A chunk with the same id is fully
// replaced, matching the teacher's semantic-index upsert idiom.
func (s *Store) IndexChunk(ctx context.Context, chunk domain.KnowledgeChunk, embedding []float32) error {
	const q = `
INSERT INTO knowledge_chunks (id, source_ref, text, order_index, language, embedding)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    source_ref  = EXCLUDED.source_ref,
    text        = EXCLUDED.text,
    order_index = EXCLUDED.order_index,
    language    = EXCLUDED.language,
    embedding   = EXCLUDED.embedding`

	vec := pgvector.NewVector(embedding)
	if _, err := s.pool.Exec(ctx, q, chunk.ID, chunk.SourceRef, chunk.Text, chunk.OrderIndex, chunk.Language, vec); err != nil {
		return fmt.Errorf("store: index chunk: %w", err)
	}
	return nil
}

// SearchKnowledge finds the topK knowledge chunks whose embeddings are
// closest (cosine distance) to embedding, used by the generator's retrieval
// stage (§4.4.1 step 1). Results are ordered by ascending distance (most
// similar first).
func (s *Store) SearchKnowledge(ctx context.Context, embedding []float32, topK int) ([]ChunkResult, error) {
	queryVec := pgvector.NewVector(embedding)

	const q = `
SELECT id, source_ref, text, order_index, language, created_at, embedding <=> $1 AS distance
FROM knowledge_chunks
ORDER BY distance
LIMIT $2`

	rows, err := s.pool.Query(ctx, q, queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("store: search knowledge: %w", err)
	}
	defer rows.Close()

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ChunkResult, error) {
		var cr ChunkResult
		if err := row.Scan(&cr.Chunk.ID, &cr.Chunk.SourceRef, &cr.Chunk.Text, &cr.Chunk.OrderIndex,
			&cr.Chunk.Language, &cr.Chunk.CreatedAt, &cr.Distance); err != nil {
			return ChunkResult{}, err
		}
		return cr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: search knowledge: scan rows: %w", err)
	}
	return results, nil
}

// CanonFact loads a single canonical fact by (category, key), used by the
// consistency checker (§4.4.4).
func (s *Store) CanonFact(ctx context.Context, category, key string) (*domain.CanonFact, error) {
	const q = `SELECT category, key, value, type, min, max, allowed FROM canon_facts WHERE category = $1 AND key = $2`
	var f domain.CanonFact
	if err := s.pool.QueryRow(ctx, q, category, key).Scan(
		&f.Category, &f.Key, &f.Value, &f.Type, &f.Min, &f.Max, &f.Allowed,
	); err != nil {
		return nil, fmt.Errorf("store: canon fact: %w", err)
	}
	return &f, nil
}

// ListAllCanonFacts loads the entire canonical-facts table, used by the
// consistency checker to build its in-memory scan table once per segment
// (§4.4.4).
func (s *Store) ListAllCanonFacts(ctx context.Context) ([]domain.CanonFact, error) {
	const q = `SELECT category, key, value, type, min, max, allowed FROM canon_facts`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list all canon facts: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CanonFact, error) {
		var f domain.CanonFact
		if err := row.Scan(&f.Category, &f.Key, &f.Value, &f.Type, &f.Min, &f.Max, &f.Allowed); err != nil {
			return domain.CanonFact{}, err
		}
		return f, nil
	})
}

// ListCanonFacts loads every canonical fact for a category, used to build
// the in-memory table the consistency checker scans a script against.
func (s *Store) ListCanonFacts(ctx context.Context, category string) ([]domain.CanonFact, error) {
	const q = `SELECT category, key, value, type, min, max, allowed FROM canon_facts WHERE category = $1`
	rows, err := s.pool.Query(ctx, q, category)
	if err != nil {
		return nil, fmt.Errorf("store: list canon facts: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CanonFact, error) {
		var f domain.CanonFact
		if err := row.Scan(&f.Category, &f.Key, &f.Value, &f.Type, &f.Min, &f.Max, &f.Allowed); err != nil {
			return domain.CanonFact{}, err
		}
		return f, nil
	})
}
