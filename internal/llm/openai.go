package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/backoff"
)

// Message is one turn of a conversation passed to the completion model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// OpenAI is a chat-completion client for the OpenAI API.
type OpenAI struct {
	client *openai.Client
	model  string
	retry  backoff.Policy
}

// NewOpenAI creates a new completion client.
func NewOpenAI(apiKey, model string, retry backoff.Policy) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("completion client requires an API key")
	}
	config := openai.DefaultConfig(apiKey)
	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
		retry:  retry,
	}, nil
}

// Generate runs a single-prompt completion.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	return o.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

// Chat runs a completion over a full conversation.
func (o *OpenAI) Chat(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{Model: o.model}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	var resp openai.ChatCompletionResponse
	err := backoff.Retry(ctx, o.retry, isTransient, func() error {
		var callErr error
		resp, callErr = o.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// isTransient mirrors the embedding client's classification: only
// server-side and transport failures are retried.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}
	return true
}
