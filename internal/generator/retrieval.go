package generator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/meridianfm/meridian/internal/domain"
	"github.com/meridianfm/meridian/internal/provider/embeddings"
	"github.com/meridianfm/meridian/internal/store"
)

// RetrievedChunk is one knowledge chunk selected as source material for a
// script, ranked by FinalScore in [0,1] (§4.4.1 step 1).
type RetrievedChunk struct {
	Chunk      domain.KnowledgeChunk
	FinalScore float64
}

// slotTopics maps a slot type to the phrasing used in its query, per the
// examples in §4.4.1 step 1 ("news -> events around...", "culture ->
// cultural developments...").
var slotTopics = map[string]string{
	"news":       "events around",
	"culture":    "cultural developments around",
	"weather":    "weather patterns around",
	"music":      "notable music releases around",
	"interview":  "newsworthy figures and events around",
	"station_id": "the station's identity and mission",
}

// BuildQuery composes a time-aware retrieval query for slotType, anchored on
// broadcastTime's year/month/day — never wall-clock time (§4.4 step 2, §4.4.1
// step 1).
func BuildQuery(slotType string, broadcastTime time.Time) string {
	topic, ok := slotTopics[slotType]
	if !ok {
		topic = fmt.Sprintf("topics relevant to a %q segment around", slotType)
	}
	return fmt.Sprintf("%s %s", topic, broadcastTime.Format("January 2, 2006"))
}

// recencyBias scores a chunk's lexical proximity to broadcastTime's month
// and year, giving retrieval a lightweight time-awareness signal beyond pure
// vector similarity (§4.4.1 step 1: "lexical recency bias toward the same
// month/year").
func recencyBias(text string, broadcastTime time.Time) float64 {
	year := strconv.Itoa(broadcastTime.Year())
	month := broadcastTime.Month().String()

	score := 0.0
	if strings.Contains(text, year) {
		score += 0.7
	}
	if strings.Contains(text, month) {
		score += 0.3
	}
	return score
}

// cosineSimilarity converts a pgvector cosine distance (0 = identical, 2 =
// opposite) into a [0,1] similarity score.
func cosineSimilarity(distance float64) float64 {
	sim := 1 - distance
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// Retrieve embeds query, searches the knowledge store for the topK nearest
// chunks, and re-ranks them by blending vector similarity with the recency
// bias described above (§4.4.1 step 1).
func Retrieve(ctx context.Context, st *store.Store, embedder embeddings.Provider, query string, broadcastTime time.Time, topK int) ([]RetrievedChunk, error) {
	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, transientErr("retrieval", fmt.Errorf("embed query: %w", err))
	}

	results, err := st.SearchKnowledge(ctx, vec, topK)
	if err != nil {
		return nil, transientErr("retrieval", fmt.Errorf("search knowledge: %w", err))
	}

	ranked := make([]RetrievedChunk, len(results))
	for i, r := range results {
		similarity := cosineSimilarity(r.Distance)
		bias := recencyBias(r.Chunk.Text, broadcastTime)
		final := 0.8*similarity + 0.2*bias
		if final > 1 {
			final = 1
		}
		ranked[i] = RetrievedChunk{Chunk: r.Chunk, FinalScore: final}
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].FinalScore > ranked[j].FinalScore })
	return ranked, nil
}
