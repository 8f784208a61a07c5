package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

// MockProvider serves both interfaces with deterministic output for tests
// and offline development. Embeddings are seeded from a hash of the input
// text so equal texts always map to equal vectors.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (m *MockProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: "mock", Model: model, Key: ""}
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	last := ""
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			last = msg.Content
		}
	}
	text := fmt.Sprintf("[mock answer] %s", firstLine(last))
	return GenerateResponse{Text: text}, m.info("mock-chat"), nil
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	dim := req.Dimension
	if dim <= 0 {
		dim = 384
	}
	out := make([][]float32, len(req.Inputs))
	for i, text := range req.Inputs {
		out[i] = mockVector(text, dim)
	}
	return out, m.info("mock-embed"), nil
}

// mockVector expands a sha256 digest of the text into dim floats in [0, 1).
func mockVector(text string, dim int) []float32 {
	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)
	buf := seed[:]
	for i := 0; i < dim; i++ {
		if i > 0 && i%8 == 0 {
			next := sha256.Sum256(buf)
			buf = next[:]
		}
		off := (i % 8) * 4
		u := binary.BigEndian.Uint32(buf[off : off+4])
		vec[i] = float32(u) / float32(^uint32(0))
	}
	return vec
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
