package providers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// EmbeddingGateway fans a batch of texts through the configured embedding
// providers in preference order, returning the first full result. Every
// vector must come back at the configured dimension.
type EmbeddingGateway struct {
	manager *Manager
	dim     int
}

func NewEmbeddingGateway(manager *Manager, dim int) *EmbeddingGateway {
	return &EmbeddingGateway{manager: manager, dim: dim}
}

func (g *EmbeddingGateway) Dimension() int { return g.dim }

func (g *EmbeddingGateway) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var lastErr error
	for _, i := range g.manager.PreferredEmbedOrder() {
		provider, ref := g.manager.EmbedProviderByIndex(i)
		vecs, _, err := provider.Embed(ctx, EmbedRequest{Inputs: texts, Dimension: g.dim})
		if err != nil {
			log.Warn().Str("provider", ref.Name).Err(err).Msg("embedding provider failed, trying next")
			lastErr = err
			continue
		}
		if err := g.validate(vecs, len(texts)); err != nil {
			log.Warn().Str("provider", ref.Name).Err(err).Msg("embedding provider returned bad batch, trying next")
			lastErr = err
			continue
		}
		return vecs, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no embedding providers configured")
	}
	return nil, fmt.Errorf("all embedding providers failed: %w", lastErr)
}

func (g *EmbeddingGateway) validate(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("embedding count mismatch: got %d want %d", len(vecs), want)
	}
	for i, v := range vecs {
		if len(v) != g.dim {
			return fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), g.dim)
		}
	}
	return nil
}

// LLMGateway runs chat completions against the configured providers in
// preference order. Failures carry the typed call error of the last provider
// tried so callers can distinguish timeouts from upstream HTTP errors.
type LLMGateway struct {
	manager *Manager
}

func NewLLMGateway(manager *Manager) *LLMGateway {
	return &LLMGateway{manager: manager}
}

func (g *LLMGateway) Complete(ctx context.Context, messages []ChatMessage, maxTokens int) (string, ProviderInfo, error) {
	var lastErr error
	var lastInfo ProviderInfo
	for _, i := range g.manager.PreferredLLMOrder() {
		provider, ref := g.manager.LLMProviderByIndex(i)
		resp, info, err := provider.Generate(ctx, GenerateRequest{Messages: messages, MaxTokens: maxTokens})
		if err != nil {
			log.Warn().Str("provider", ref.Name).Err(err).Msg("llm provider failed, trying next")
			lastErr = err
			lastInfo = info
			continue
		}
		return resp.Text, info, nil
	}
	if lastErr == nil {
		lastErr = TransportError(fmt.Errorf("no llm providers configured"))
	}
	return "", lastInfo, lastErr
}
