package sidecar

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// OpenAIClientProvider abstracts the subset of the OpenAI SDK used by
// OpenAICompatProvider, so tests can substitute a fake.
type OpenAIClientProvider interface {
	// CreateCompletion creates a chat completion.
	CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)

	// CreateStreamingCompletion creates a streaming chat completion.
	CreateStreamingCompletion(ctx context.Context, params openai.ChatCompletionNewParams) *ssestream.Stream[openai.ChatCompletionChunk]

	// ListModelIDs returns the identifiers the endpoint can serve.
	ListModelIDs(ctx context.Context) ([]string, error)
}

// OpenAIClient implements OpenAIClientProvider with the official SDK pointed
// at an OpenAI-compatible endpoint. Local inference servers (Ollama's /v1,
// llama.cpp's server) accept any API key.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
//
// Example usage:
//
//	client := sidecar.NewOpenAIClient("http://localhost:11434/v1")
func NewOpenAIClient(baseURL string, opts ...option.RequestOption) *OpenAIClient {
	opts = append(opts, option.WithBaseURL(baseURL), option.WithAPIKey("local"))
	return &OpenAIClient{
		client: openai.NewClient(opts...),
	}
}

// CreateCompletion implements OpenAIClientProvider.
func (c *OpenAIClient) CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

// CreateStreamingCompletion implements OpenAIClientProvider.
func (c *OpenAIClient) CreateStreamingCompletion(ctx context.Context, params openai.ChatCompletionNewParams) *ssestream.Stream[openai.ChatCompletionChunk] {
	return c.client.Chat.Completions.NewStreaming(ctx, params)
}

// ListModelIDs implements OpenAIClientProvider.
func (c *OpenAIClient) ListModelIDs(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	for page != nil {
		for _, model := range page.Data {
			ids = append(ids, model.ID)
		}
		page, err = page.GetNextPage()
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}
