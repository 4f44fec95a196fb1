package speech

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/ikaraev-code/Intelligent-archive-02-22/pkg/backoff"
)

// OpenAI is a text-to-speech client for the OpenAI API, used by the audio
// export job.
type OpenAI struct {
	client *openai.Client
	model  string
	voice  string
	retry  backoff.Policy
}

// NewOpenAI creates a new speech-synthesis client.
func NewOpenAI(apiKey, model, voice string, retry backoff.Policy) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("speech client requires an API key")
	}
	config := openai.DefaultConfig(apiKey)
	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
		voice:  voice,
		retry:  retry,
	}, nil
}

// Synthesize renders text as MP3 audio bytes.
func (o *OpenAI) Synthesize(ctx context.Context, text string) ([]byte, error) {
	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.SpeechVoice(o.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}

	var audio []byte
	err := backoff.Retry(ctx, o.retry, isTransient, func() error {
		resp, callErr := o.client.CreateSpeech(ctx, req)
		if callErr != nil {
			return callErr
		}
		defer resp.Close()
		audio, callErr = io.ReadAll(resp)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}
	return audio, nil
}

func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}
	return true
}
