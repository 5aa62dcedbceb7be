package sidecar

import (
	"context"
	"time"

	"github.com/openai/openai-go"
)

// OpenAICompatProvider implements InferenceProvider against any
// OpenAI-compatible endpoint. Ollama exposes one under /v1, as does
// llama.cpp's server, which makes this the portable alternative to the native
// OllamaProvider.
type OpenAICompatProvider struct {
	client OpenAIClientProvider
}

// OpenAICompatConfig holds configuration for the OpenAI-compatible provider.
type OpenAICompatConfig struct {
	// Client is the OpenAIClientProvider implementation to use.
	Client OpenAIClientProvider
}

// NewOpenAICompatProvider creates a provider backed by an OpenAI-compatible
// endpoint.
//
// Example usage:
//
//	provider := sidecar.NewOpenAICompatProvider(sidecar.OpenAICompatConfig{
//	    Client: sidecar.NewOpenAIClient("http://localhost:11434/v1"),
//	})
func NewOpenAICompatProvider(config OpenAICompatConfig) *OpenAICompatProvider {
	return &OpenAICompatProvider{
		client: config.Client,
	}
}

// convertMessages converts the internal message format to the SDK's union
// params.
func (p *OpenAICompatProvider) convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	var converted []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case AssistantRole:
			converted = append(converted, openai.AssistantMessage(msg.Text))
		case SystemRole:
			converted = append(converted, openai.SystemMessage(msg.Text))
		default:
			converted = append(converted, openai.UserMessage(msg.Text))
		}
	}
	return converted
}

func (p *OpenAICompatProvider) completionParams(messages []openai.ChatCompletionMessageParamUnion, config RequestConfig) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Messages:    openai.F(messages),
		Model:       openai.F(config.Model),
		MaxTokens:   openai.Int(config.MaxToken),
		Temperature: openai.Float(config.Temperature),
		TopP:        openai.Float(config.TopP),
	}
}

// ListModels implements InferenceProvider.
func (p *OpenAICompatProvider) ListModels(ctx context.Context) ([]string, error) {
	return p.client.ListModelIDs(ctx)
}

// GetResponse implements InferenceProvider.
func (p *OpenAICompatProvider) GetResponse(ctx context.Context, messages []Message, config RequestConfig) (Response, error) {
	startTime := time.Now()

	completion, err := p.client.CreateCompletion(ctx, p.completionParams(p.convertMessages(messages), config))
	if err != nil {
		return Response{}, err
	}

	if len(completion.Choices) == 0 {
		return Response{}, NewChatError(ErrKindInvalidResponse, "no choices in response")
	}

	return Response{
		Text:             completion.Choices[0].Message.Content,
		TotalInputToken:  int(completion.Usage.PromptTokens),
		TotalOutputToken: int(completion.Usage.CompletionTokens),
		CompletionTime:   time.Since(startTime).Seconds(),
	}, nil
}

// GetStreamingResponse implements InferenceProvider.
func (p *OpenAICompatProvider) GetStreamingResponse(ctx context.Context, messages []Message, config RequestConfig) (<-chan StreamingResponse, error) {
	stream := p.client.CreateStreamingCompletion(ctx, p.completionParams(p.convertMessages(messages), config))
	responseChan := make(chan StreamingResponse, 100)

	go func() {
		defer close(responseChan)

		for stream.Next() {
			select {
			case <-ctx.Done():
				responseChan <- StreamingResponse{Error: ctx.Err(), Done: true}
				return
			default:
				chunk := stream.Current()
				if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
					responseChan <- StreamingResponse{
						Text:       chunk.Choices[0].Delta.Content,
						TokenCount: 1,
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			responseChan <- StreamingResponse{Error: err, Done: true}
			return
		}

		responseChan <- StreamingResponse{Done: true}
	}()

	return responseChan, nil
}
