// Package embedder processes kb_index jobs: it chunks a piece of
// worldbuilding content (a universe document or a time-stamped event) and
// embeds each chunk for retrieval (§4.4.1 step 1, glossary "Knowledge
// Chunk"/"Knowledge Embedding").
package embedder

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridianfm/meridian/internal/domain"
	"github.com/meridianfm/meridian/internal/provider/embeddings"
	"github.com/meridianfm/meridian/internal/store"
)

// chunkNamespace seeds the deterministic per-chunk UUID (NewSHA1), so
// re-running a kb_index job for the same source_ref replaces the same
// chunk rows instead of duplicating them — the job-completion idempotency
// §5 asks for, applied to a worker whose payload has no natural primary key
// of its own.
var chunkNamespace = uuid.MustParse("6c9f9b4a-9f2e-4b3e-8f0b-2b7b6f6c9a1e")

// Worker claims kb_index jobs and indexes their content.
type Worker struct {
	store    *store.Store
	embedder embeddings.Provider
}

// New builds a Worker.
func New(st *store.Store, embedder embeddings.Provider) *Worker {
	return &Worker{store: st, embedder: embedder}
}

// Handle implements worker.Handler. The payload carries source_ref, text,
// and an optional language (defaulting to "en").
func (w *Worker) Handle(ctx context.Context, job *domain.Job) error {
	sourceRef, ok := job.Payload["source_ref"].(string)
	if !ok || sourceRef == "" {
		return fmt.Errorf("embedder: payload missing source_ref")
	}
	text, ok := job.Payload["text"].(string)
	if !ok || text == "" {
		return fmt.Errorf("embedder: payload missing text")
	}
	language, _ := job.Payload["language"].(string)
	if language == "" {
		language = "en"
	}
	return w.Index(ctx, sourceRef, text, language)
}

// Index chunks text and embeds+persists each fragment in order.
func (w *Worker) Index(ctx context.Context, sourceRef, text, language string) error {
	chunks := Chunk(text)
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := w.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedder: embed batch: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder: embed batch returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	for i, text := range chunks {
		chunk := domain.KnowledgeChunk{
			ID:         chunkID(sourceRef, i),
			SourceRef:  sourceRef,
			Text:       text,
			OrderIndex: i,
			Language:   language,
		}
		if err := w.store.IndexChunk(ctx, chunk, vectors[i]); err != nil {
			return fmt.Errorf("embedder: index chunk %d: %w", i, err)
		}
	}
	return nil
}

func chunkID(sourceRef string, orderIndex int) domain.ID {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s:%d", sourceRef, orderIndex)))
}
