package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SelfHostedProvider is the provider name used for local OpenAI-compatible
// servers. It has no entry in the rate table, so its calls are free.
const SelfHostedProvider = "self-hosted"

// HTTPBackend talks to any OpenAI-compatible /embeddings endpoint: OpenAI
// itself, or a self-hosted server (ollama, vLLM, llama.cpp) speaking the same
// protocol.
type HTTPBackend struct {
	provider string
	model    string
	baseURL  string
	apiKey   string
	client   *http.Client
}

// NewOpenAI creates a backend billed at OpenAI rates.
func NewOpenAI(model, baseURL, apiKey string) *HTTPBackend {
	return newHTTPBackend("openai", model, baseURL, apiKey)
}

// NewSelfHosted creates a zero-cost backend for a local OpenAI-compatible
// server.
func NewSelfHosted(model, baseURL string) *HTTPBackend {
	return newHTTPBackend(SelfHostedProvider, model, baseURL, "")
}

// NewHTTPBackend creates a backend for an arbitrary provider name. The
// provider decides the rate-table row used for pricing.
func NewHTTPBackend(provider, model, baseURL, apiKey string) *HTTPBackend {
	return newHTTPBackend(provider, model, baseURL, apiKey)
}

func newHTTPBackend(provider, model, baseURL, apiKey string) *HTTPBackend {
	return &HTTPBackend{
		provider: provider,
		model:    model,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (b *HTTPBackend) Provider() string { return b.provider }
func (b *HTTPBackend) Model() string    { return b.model }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// GenerateEmbeddings embeds a batch of texts in one API call.
func (b *HTTPBackend) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, Usage, error) {
	if len(texts) == 0 {
		return nil, Usage{}, nil
	}

	payload, err := json.Marshal(embeddingRequest{Model: b.model, Input: texts})
	if err != nil {
		return nil, Usage{}, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, Usage{}, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, Usage{}, fmt.Errorf("embedding request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, Usage{}, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, Usage{}, fmt.Errorf("embedding response: got %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	// The API may reorder; index says which input each vector belongs to.
	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, Usage{}, fmt.Errorf("embedding response: index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}

	usage := Usage{PromptTokens: parsed.Usage.PromptTokens, TotalTokens: parsed.Usage.TotalTokens}
	return vectors, usage, nil
}

// GenerateEmbedding embeds a single text.
func (b *HTTPBackend) GenerateEmbedding(ctx context.Context, text string) ([]float32, Usage, error) {
	vectors, usage, err := b.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, Usage{}, err
	}
	return vectors[0], usage, nil
}

var _ Backend = (*HTTPBackend)(nil)
