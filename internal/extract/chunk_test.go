package extract

import (
	"strings"
	"testing"
)

func TestChunkTextShortInput(t *testing.T) {
	got := ChunkText("short text", 1000, 200)
	if len(got) != 1 || got[0] != "short text" {
		t.Fatalf("got %v", got)
	}
}

func TestChunkTextEmptyInput(t *testing.T) {
	if got := ChunkText("   ", 1000, 200); len(got) != 0 {
		t.Fatalf("expected no chunks, got %v", got)
	}
}

func TestChunkTextBreaksAtWordBoundary(t *testing.T) {
	// words of 9 chars + space; a 100-rune cut lands mid-word
	word := strings.Repeat("abcdefghi ", 30)
	chunks := ChunkText(word, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:len(chunks)-1] {
		if strings.HasSuffix(c, "abcdefgh") && !strings.HasSuffix(c, "abcdefghi") {
			t.Fatalf("chunk %d cut mid-word: %q", i, c)
		}
	}
}

func TestChunkTextKeepsHardCutWhenNoLateSpace(t *testing.T) {
	// one unbroken run longer than the chunk size: no space past 70%, so the
	// cut stays at chunkSize
	text := strings.Repeat("x", 250)
	chunks := ChunkText(text, 100, 0)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	if len(chunks[0]) != 100 {
		t.Fatalf("first chunk length %d, want 100", len(chunks[0]))
	}
}

func TestChunkTextOverlap(t *testing.T) {
	text := strings.Repeat("y", 150)
	chunks := ChunkText(text, 100, 50)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[1]) != 100 {
		t.Fatalf("second chunk should cover the overlap window, got len %d", len(chunks[1]))
	}
}
