package retrieval

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func chunkFor(doc string, score float64) Chunk {
	return Chunk{DocumentName: doc, Content: doc, RelevanceScore: score}
}

func TestDiversifyEmptyInput(t *testing.T) {
	require.Nil(t, Diversify(nil, 5))
}

func TestDiversifyOneChunkPerDocumentFirst(t *testing.T) {
	chunks := []Chunk{
		chunkFor("a", 0.9),
		chunkFor("a", 0.8),
		chunkFor("a", 0.7),
		chunkFor("b", 0.6),
		chunkFor("b", 0.5),
		chunkFor("b", 0.4),
	}
	out := Diversify(chunks, 4)
	require.Len(t, out, 4)
	// round one: best of a, best of b; then leftovers by score
	require.Equal(t, "a", out[0].DocumentName)
	require.InDelta(t, 0.9, out[0].RelevanceScore, 1e-9)
	require.Equal(t, "b", out[1].DocumentName)
	require.InDelta(t, 0.6, out[1].RelevanceScore, 1e-9)
	require.InDelta(t, 0.8, out[2].RelevanceScore, 1e-9)
	require.InDelta(t, 0.7, out[3].RelevanceScore, 1e-9)
}

func TestDiversifyDocumentOrderByMeanScore(t *testing.T) {
	// document "low" has the single top chunk but a lower mean than "high"
	chunks := []Chunk{
		chunkFor("low", 0.95),
		chunkFor("low", 0.05),
		chunkFor("high", 0.8),
		chunkFor("high", 0.8),
	}
	out := Diversify(chunks, 2)
	require.Len(t, out, 2)
	require.Equal(t, "high", out[0].DocumentName)
	require.Equal(t, "low", out[1].DocumentName)
	require.InDelta(t, 0.95, out[1].RelevanceScore, 1e-9)
}

func TestDiversifyTruncatesToTarget(t *testing.T) {
	chunks := []Chunk{
		chunkFor("a", 0.9),
		chunkFor("b", 0.8),
		chunkFor("c", 0.7),
	}
	out := Diversify(chunks, 2)
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].DocumentName)
	require.Equal(t, "b", out[1].DocumentName)
}

func TestDiversifyStableOnEqualScores(t *testing.T) {
	chunks := []Chunk{
		chunkFor("a", 0.5),
		chunkFor("b", 0.5),
		chunkFor("c", 0.5),
	}
	out := Diversify(chunks, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{out[0].DocumentName, out[1].DocumentName, out[2].DocumentName})
}

func TestDiversifyZeroTarget(t *testing.T) {
	require.Nil(t, Diversify([]Chunk{chunkFor("a", 1)}, 0))
}
