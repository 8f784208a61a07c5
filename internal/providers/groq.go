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

// GroqProvider generates chat completions through Groq's OpenAI-compatible API.
type GroqProvider struct {
	keyName string
	apiKey  string
	model   string
	client  *http.Client
}

func NewGroqProvider(keyName string, timeout time.Duration) *GroqProvider {
	model := os.Getenv("LIBRAG_GROQ_MODEL")
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GroqProvider{
		keyName: keyName,
		apiKey:  resolveGroqKey(keyName),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *GroqProvider) info() ProviderInfo {
	return ProviderInfo{Name: "groq", Model: g.model, Key: g.keyName}
}

func (g *GroqProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	if g.apiKey == "" {
		return GenerateResponse{}, g.info(), TransportError(fmt.Errorf("groq key missing for alias %q", g.keyName))
	}
	payload, _ := json.Marshal(map[string]any{
		"model":       g.model,
		"messages":    req.Messages,
		"temperature": 0.7,
		"max_tokens":  req.MaxTokens,
	})
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.groq.com/openai/v1/chat/completions", bytes.NewReader(payload))
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, g.info(), ClassifyTransport(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return GenerateResponse{}, g.info(), HTTPStatusError(resp.StatusCode, string(body))
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return GenerateResponse{}, g.info(), TransportError(fmt.Errorf("decode generate response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return GenerateResponse{}, g.info(), TransportError(fmt.Errorf("empty choices in generate response"))
	}
	return GenerateResponse{Text: parsed.Choices[0].Message.Content}, g.info(), nil
}

func resolveGroqKey(alias string) string {
	if alias != "" {
		k := os.Getenv("LIBRAG_GROQ_KEY_" + strings.ToUpper(alias))
		if k != "" {
			return k
		}
	}
	return os.Getenv("GROQ_API_KEY")
}
