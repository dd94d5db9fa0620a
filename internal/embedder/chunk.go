package embedder

import "strings"

// maxChunkRunes bounds a single chunk's length. Long enough to keep a
// paragraph's context together, short enough that the embedding provider's
// per-call token limit is never in question.
const maxChunkRunes = 1200

// Chunk splits doc text into an ordered sequence of retrievable fragments:
// first on blank-line paragraph breaks, then any paragraph still over
// maxChunkRunes is further split on sentence boundaries. Empty fragments are
// dropped.
func Chunk(text string) []string {
	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len([]rune(para)) <= maxChunkRunes {
			chunks = append(chunks, para)
			continue
		}
		chunks = append(chunks, splitLong(para)...)
	}
	return chunks
}

// splitLong breaks a paragraph at sentence boundaries, accumulating
// sentences into chunks no longer than maxChunkRunes.
func splitLong(para string) []string {
	sentences := strings.Split(para, ". ")
	var chunks []string
	var current strings.Builder
	for i, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if i < len(sentences)-1 {
			s += "."
		}
		if current.Len() > 0 && current.Len()+len(s)+1 > maxChunkRunes {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}
