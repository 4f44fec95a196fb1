package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/backoff"
)

// OpenAIModel is an embedding client for the OpenAI API.
type OpenAIModel struct {
	client *openai.Client
	model  string
	retry  backoff.Policy
}

// NewOpenAIModel creates a new embedding client. Provider calls are retried
// with bounded backoff on transient failures only.
func NewOpenAIModel(apiKey, modelName string, retry backoff.Policy) (*OpenAIModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding client requires an API key")
	}
	config := openai.DefaultConfig(apiKey)
	return &OpenAIModel{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
		retry:  retry,
	}, nil
}

// Embed generates the embedding vector for a single text.
func (m *OpenAIModel) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embedding vectors for a batch of texts in one provider
// call.
func (m *OpenAIModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(m.model),
	}

	var resp openai.EmbeddingResponse
	err := backoff.Retry(ctx, m.retry, isTransient, func() error {
		var callErr error
		resp, callErr = m.client.CreateEmbeddings(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("provider returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// isTransient reports whether a provider error is worth retrying. Auth,
// quota and malformed-input errors are terminal; server-side errors and
// transport failures are not.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}
	// No structured API error means the request never got a response.
	return true
}
