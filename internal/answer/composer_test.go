package answer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"librag/internal/models"
	"librag/internal/providers"
	"librag/internal/retrieval"
)

type captureLLM struct {
	messages  []providers.ChatMessage
	maxTokens int
	reply     string
	err       error
}

func (c *captureLLM) Complete(ctx context.Context, messages []providers.ChatMessage, maxTokens int) (string, providers.ProviderInfo, error) {
	c.messages = messages
	c.maxTokens = maxTokens
	if c.err != nil {
		return "", providers.ProviderInfo{}, c.err
	}
	return c.reply, providers.ProviderInfo{Name: "test"}, nil
}

func someChunks() []retrieval.Chunk {
	return []retrieval.Chunk{
		{
			Content: "gradient descent minimizes the loss", DocumentName: "ml.pdf",
			PageNumber: 12, Metadata: models.ChunkMetadata{"toc_title": "Chapter 3 Optimization"},
		},
		{
			Content: "backpropagation computes gradients", DocumentName: "ml.pdf",
			PageNumber: 14, Metadata: models.ChunkMetadata{"toc_title": "Chapter 3 Optimization"},
		},
		{
			Content: "attention weighs token pairs", DocumentName: "transformers.pdf",
			PageNumber: 3, Metadata: models.ChunkMetadata{"toc_title": "Chapter 1 Attention"},
		},
	}
}

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 1, EstimateTokens(""))
	require.Equal(t, 1, EstimateTokens("abc"))
	require.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}

func TestComposeRefusesWithoutChunks(t *testing.T) {
	llm := &captureLLM{reply: "should not be called"}
	c := NewComposer(llm)
	ans := c.Compose(context.Background(), "anything", nil, "medium")
	require.Equal(t, OutsideScopeAnswer, ans.Text)
	require.Empty(t, ans.Sources)
	require.Nil(t, llm.messages, "llm must not be called without context")
}

func TestComposeBuildsGroupedContext(t *testing.T) {
	llm := &captureLLM{reply: "an answer"}
	c := NewComposer(llm)
	ans := c.Compose(context.Background(), "how does training work?", someChunks(), "medium")
	require.Equal(t, "an answer", ans.Text)
	require.False(t, ans.Degraded)
	require.Len(t, llm.messages, 2)
	require.Equal(t, "system", llm.messages[0].Role)
	user := llm.messages[1].Content
	require.Contains(t, user, "=== DOCUMENT: ml.pdf ===")
	require.Contains(t, user, "=== DOCUMENT: transformers.pdf ===")
	require.Contains(t, user, "[Page 12, Section: Chapter 3 Optimization]")
	require.Contains(t, user, "Question: how does training work?")
}

func TestComposeSourcesDeduplicated(t *testing.T) {
	chunks := someChunks()
	chunks = append(chunks, chunks[0])
	llm := &captureLLM{reply: "ok"}
	ans := NewComposer(llm).Compose(context.Background(), "q", chunks, "medium")
	require.Equal(t, []string{"ml.pdf (Page 12)", "ml.pdf (Page 14)", "transformers.pdf (Page 3)"}, ans.Sources)
}

func TestComposeMaxTokensPerLength(t *testing.T) {
	for _, tc := range []struct {
		length string
		want   int
	}{
		{"short", 500}, {"medium", 1000}, {"long", 2000}, {"", 1000},
	} {
		llm := &captureLLM{reply: "ok"}
		NewComposer(llm).Compose(context.Background(), "q", someChunks(), tc.length)
		require.Equal(t, tc.want, llm.maxTokens, "length %q", tc.length)
	}
}

func TestComposeDegradesOnLLMFailure(t *testing.T) {
	llm := &captureLLM{err: providers.HTTPStatusError(503, "overloaded")}
	ans := NewComposer(llm).Compose(context.Background(), "q", someChunks(), "medium")
	require.True(t, ans.Degraded)
	require.Contains(t, ans.Text, "I'm having trouble connecting to the AI service.")
	require.NotEmpty(t, ans.Sources, "sources still reported on degraded answers")
}

func TestComposeContextRespectsTokenBudget(t *testing.T) {
	big := strings.Repeat("word ", 4000) // ~5000 tokens on its own
	chunks := []retrieval.Chunk{
		{Content: big, DocumentName: "a.pdf", PageNumber: 1},
		{Content: big, DocumentName: "b.pdf", PageNumber: 1},
	}
	llm := &captureLLM{reply: "ok"}
	NewComposer(llm).Compose(context.Background(), "q", chunks, "medium")
	user := llm.messages[1].Content
	require.Less(t, EstimateTokens(user), 2*5000, "second oversized chunk must be cut")
}

func TestDiversifyByTOCTitlePrefersDistinctSections(t *testing.T) {
	out := diversifyByTOCTitle(someChunks())
	// two distinct titles picked first, then one displaced chunk fills up
	require.Len(t, out, 3)
	require.Equal(t, "Chapter 3 Optimization", out[0].Metadata.TOCTitle())
	require.Equal(t, "Chapter 1 Attention", out[1].Metadata.TOCTitle())
	require.Equal(t, "backpropagation computes gradients", out[2].Content)
}
