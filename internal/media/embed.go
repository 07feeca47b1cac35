package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"video-worker/internal/domain"
	"video-worker/internal/gateway"
)

// embedBatchSize caps the number of strings sent in a single embeddings
// request, per §4.C.
const embedBatchSize = 100

// OpenAIEmbedder implements gateway.Embedder against an OpenAI-compatible
// embeddings endpoint, batching requests and preserving input order.
type OpenAIEmbedder struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

var _ gateway.Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(baseURL, apiKey string) *OpenAIEmbedder {
	return &OpenAIEmbedder{BaseURL: baseURL, APIKey: apiKey, Model: "text-embedding-3-small", client: newHTTPClient()}
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		copy(out[start:end], batch)
	}

	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(embeddingsRequest{Model: e.Model, Input: texts})
	if err != nil {
		return nil, err
	}

	respBody, err := doJSON(ctx, e.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/embeddings", bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var parsed embeddingsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, domain.Retryable(fmt.Errorf("decode embeddings response: %w", err))
	}
	if len(parsed.Data) != len(texts) {
		return nil, domain.Retryable(fmt.Errorf("embeddings: expected %d vectors, got %d", len(texts), len(parsed.Data)))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, domain.Fatal(fmt.Errorf("embeddings: index %d out of range", d.Index))
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
