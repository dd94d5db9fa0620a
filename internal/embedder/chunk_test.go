package embedder

import (
	"strings"
	"testing"
)

func TestChunk_SplitsOnParagraphs(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."
	got := Chunk(text)
	want := []string{"First paragraph.", "Second paragraph.", "Third paragraph."}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunk_DropsBlankParagraphs(t *testing.T) {
	text := "Alpha.\n\n\n\nBeta."
	got := Chunk(text)
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want 2: %v", len(got), got)
	}
}

func TestChunk_SplitsLongParagraphOnSentences(t *testing.T) {
	sentence := strings.Repeat("a", 100) + ". "
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString(sentence)
	}
	got := Chunk(b.String())
	if len(got) < 2 {
		t.Fatalf("expected long paragraph to split into multiple chunks, got %d", len(got))
	}
	for _, c := range got {
		if len([]rune(c)) > maxChunkRunes {
			t.Errorf("chunk exceeds maxChunkRunes: %d runes", len([]rune(c)))
		}
	}
}

func TestChunk_Empty(t *testing.T) {
	if got := Chunk(""); len(got) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(got))
	}
}
