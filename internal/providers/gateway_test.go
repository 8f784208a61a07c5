package providers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	return nil, ProviderInfo{Name: "failing"}, TransportError(fmt.Errorf("boom"))
}

type shortEmbedder struct{}

func (shortEmbedder) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	vecs := make([][]float32, len(req.Inputs))
	for i := range vecs {
		vecs[i] = make([]float32, req.Dimension-1)
	}
	return vecs, ProviderInfo{Name: "short"}, nil
}

type failingLLM struct {
	err error
}

func (f failingLLM) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	return GenerateResponse{}, ProviderInfo{Name: "failing"}, f.err
}

func TestEmbedGatewayFallsBackToNextProvider(t *testing.T) {
	m := &Manager{embedProviders: []NamedEmbedProvider{
		{Ref: ProviderRef{Raw: "failing", Name: "failing"}, Provider: failingEmbedder{}},
		{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider()},
	}}
	g := NewEmbeddingGateway(m, 8)
	vecs, err := g.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	require.Len(t, vecs[0], 8)
}

func TestEmbedGatewayRejectsWrongDimension(t *testing.T) {
	m := &Manager{embedProviders: []NamedEmbedProvider{
		{Ref: ProviderRef{Raw: "short", Name: "short"}, Provider: shortEmbedder{}},
	}}
	g := NewEmbeddingGateway(m, 8)
	_, err := g.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
}

func TestEmbedGatewayEmptyInput(t *testing.T) {
	m := &Manager{embedProviders: []NamedEmbedProvider{
		{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider()},
	}}
	g := NewEmbeddingGateway(m, 8)
	vecs, err := g.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, vecs)
}

func TestLLMGatewayReturnsTypedErrorWhenAllFail(t *testing.T) {
	m := &Manager{llmProviders: []NamedLLMProvider{
		{Ref: ProviderRef{Raw: "failing", Name: "failing"}, Provider: failingLLM{err: TimeoutError(context.DeadlineExceeded)}},
	}}
	g := NewLLMGateway(m)
	_, _, err := g.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 100)
	require.Error(t, err)
	ce, ok := AsCallError(err)
	require.True(t, ok)
	require.Equal(t, CallTimeout, ce.Kind)
}

func TestLLMGatewayFallsBackToMock(t *testing.T) {
	m := &Manager{llmProviders: []NamedLLMProvider{
		{Ref: ProviderRef{Raw: "failing", Name: "failing"}, Provider: failingLLM{err: HTTPStatusError(502, "bad gateway")}},
		{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider()},
	}}
	g := NewLLMGateway(m)
	text, info, err := g.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 100)
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)
	require.NotEmpty(t, text)
}
