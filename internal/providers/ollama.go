package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// OllamaProvider embeds via a local Ollama daemon.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaProvider(timeout time.Duration) *OllamaProvider {
	base := os.Getenv("LIBRAG_OLLAMA_URL")
	if base == "" {
		base = "http://localhost:11434"
	}
	model := os.Getenv("LIBRAG_OLLAMA_EMBED_MODEL")
	if model == "" {
		model = "nomic-embed-text"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaProvider{baseURL: base, model: model, client: &http.Client{Timeout: timeout}}
}

func (o *OllamaProvider) info() ProviderInfo {
	return ProviderInfo{Name: "ollama", Model: o.model, Key: ""}
}

func (o *OllamaProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	payload, _ := json.Marshal(map[string]any{
		"model": o.model,
		"input": req.Inputs,
	})
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(payload))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, o.info(), ClassifyTransport(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, o.info(), HTTPStatusError(resp.StatusCode, string(body))
	}
	var parsed struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, o.info(), TransportError(fmt.Errorf("decode embed response: %w", err))
	}
	if len(parsed.Embeddings) != len(req.Inputs) {
		return nil, o.info(), TransportError(fmt.Errorf("embed count mismatch: got %d want %d", len(parsed.Embeddings), len(req.Inputs)))
	}
	return parsed.Embeddings, o.info(), nil
}
