package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// OpenAIProvider talks to any OpenAI-compatible API. The chat completions URL
// is configurable so NVIDIA integrate, OpenRouter and friends work unchanged.
type OpenAIProvider struct {
	keyName string
	apiKey  string
	chatURL string
	model   string
	client  *http.Client
}

func NewOpenAIProvider(keyName, chatURL, model string, timeout time.Duration) *OpenAIProvider {
	if chatURL == "" {
		chatURL = "https://api.openai.com/v1/chat/completions"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		keyName: keyName,
		apiKey:  resolveOpenAIKey(keyName),
		chatURL: chatURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *OpenAIProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: "openai", Model: model, Key: o.keyName}
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	if o.apiKey == "" {
		return GenerateResponse{}, o.info(o.model), TransportError(fmt.Errorf("openai key missing for alias %q", o.keyName))
	}
	payload, _ := json.Marshal(map[string]any{
		"model":       o.model,
		"messages":    req.Messages,
		"temperature": 0.7,
		"max_tokens":  req.MaxTokens,
		"stream":      false,
	})
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.chatURL, bytes.NewReader(payload))
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, o.info(o.model), ClassifyTransport(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return GenerateResponse{}, o.info(o.model), HTTPStatusError(resp.StatusCode, string(body))
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return GenerateResponse{}, o.info(o.model), TransportError(fmt.Errorf("decode generate response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return GenerateResponse{}, o.info(o.model), TransportError(fmt.Errorf("empty choices in generate response"))
	}
	return GenerateResponse{Text: parsed.Choices[0].Message.Content}, o.info(o.model), nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	model := "text-embedding-3-small"
	if o.apiKey == "" {
		return nil, o.info(model), TransportError(fmt.Errorf("openai key missing for alias %q", o.keyName))
	}
	payload, _ := json.Marshal(map[string]any{
		"model":      model,
		"input":      req.Inputs,
		"dimensions": req.Dimension,
	})
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/embeddings", bytes.NewReader(payload))
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, o.info(model), ClassifyTransport(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, o.info(model), HTTPStatusError(resp.StatusCode, string(body))
	}
	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, o.info(model), TransportError(fmt.Errorf("decode embedding response: %w", err))
	}
	out := make([][]float32, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		out = append(out, d.Embedding)
	}
	return out, o.info(model), nil
}

func resolveOpenAIKey(alias string) string {
	if alias != "" {
		k := os.Getenv("LIBRAG_OPENAI_KEY_" + strings.ToUpper(alias))
		if k != "" {
			return k
		}
	}
	return os.Getenv("OPENAI_API_KEY")
}
