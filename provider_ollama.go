package sidecar

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaHost is where a local Ollama server listens out of the box.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaProvider implements InferenceProvider against Ollama's native HTTP
// API (/api/tags and /api/chat with NDJSON streaming).
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
}

// OllamaProviderConfig holds configuration for the native Ollama provider.
type OllamaProviderConfig struct {
	// BaseURL is the server root, e.g. "http://localhost:11434". Defaults to
	// DefaultOllamaHost.
	BaseURL string

	// HTTPClient allows injecting a custom transport. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
}

// NewOllamaProvider creates a provider talking to a local Ollama server.
//
// Example usage:
//
//	provider := sidecar.NewOllamaProvider(sidecar.OllamaProviderConfig{})
//	models, err := provider.ListModels(ctx)
func NewOllamaProvider(config OllamaProviderConfig) *OllamaProvider {
	if config.BaseURL == "" {
		config.BaseURL = DefaultOllamaHost
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &OllamaProvider{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: config.HTTPClient,
	}
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaChatMessage    `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	Done            bool              `json:"done"`
	Error           string            `json:"error,omitempty"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (p *OllamaProvider) convertMessages(messages []Message) []ollamaChatMessage {
	converted := make([]ollamaChatMessage, 0, len(messages))
	for _, msg := range messages {
		converted = append(converted, ollamaChatMessage{
			Role:    string(msg.Role),
			Content: msg.Text,
		})
	}
	return converted
}

func (p *OllamaProvider) buildChatRequest(messages []Message, config RequestConfig, stream bool) ollamaChatRequest {
	options := map[string]interface{}{
		"temperature": config.Temperature,
		"top_p":       config.TopP,
	}
	if config.MaxToken > 0 {
		options["num_predict"] = config.MaxToken
	}
	return ollamaChatRequest{
		Model:    config.Model,
		Messages: p.convertMessages(messages),
		Stream:   stream,
		Options:  options,
	}
}

func (p *OllamaProvider) postChat(ctx context.Context, reqBody ollamaChatRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// serverError extracts the server's diagnostic text from a non-200 body so it
// can be classified by the caller.
func serverError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
}

// ListModels returns the names of all locally available models.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, NewChatError(ErrKindInvalidResponse, fmt.Sprintf("failed to decode model list: %v", err))
	}

	models := make([]string, 0, len(tags.Models))
	for _, model := range tags.Models {
		models = append(models, model.Name)
	}
	return models, nil
}

// GetResponse sends the conversation and returns the completed reply.
func (p *OllamaProvider) GetResponse(ctx context.Context, messages []Message, config RequestConfig) (Response, error) {
	startTime := time.Now()

	resp, err := p.postChat(ctx, p.buildChatRequest(messages, config, false))
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, serverError(resp)
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Response{}, NewChatError(ErrKindInvalidResponse, fmt.Sprintf("failed to decode response: %v", err))
	}
	if chatResp.Error != "" {
		return Response{}, fmt.Errorf("server error: %s", chatResp.Error)
	}
	if chatResp.Message.Content == "" && !chatResp.Done {
		return Response{}, NewChatError(ErrKindInvalidResponse, "response carries no message")
	}

	return Response{
		Text:             chatResp.Message.Content,
		TotalInputToken:  chatResp.PromptEvalCount,
		TotalOutputToken: chatResp.EvalCount,
		CompletionTime:   time.Since(startTime).Seconds(),
	}, nil
}

// GetStreamingResponse streams the reply as NDJSON chunks. The consumer may
// stop early by cancelling ctx; the in-flight request is torn down when the
// reader goroutine observes the cancellation.
func (p *OllamaProvider) GetStreamingResponse(ctx context.Context, messages []Message, config RequestConfig) (<-chan StreamingResponse, error) {
	resp, err := p.postChat(ctx, p.buildChatRequest(messages, config, true))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, serverError(resp)
	}

	responseChan := make(chan StreamingResponse, 100)

	go func() {
		defer close(responseChan)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				responseChan <- StreamingResponse{Error: ctx.Err(), Done: true}
				return
			default:
			}

			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				responseChan <- StreamingResponse{
					Error: NewChatError(ErrKindInvalidResponse, fmt.Sprintf("failed to decode chunk: %v", err)),
					Done:  true,
				}
				return
			}
			if chunk.Error != "" {
				responseChan <- StreamingResponse{
					Error: fmt.Errorf("server error: %s", chunk.Error),
					Done:  true,
				}
				return
			}

			if chunk.Message.Content != "" {
				responseChan <- StreamingResponse{
					Text:       chunk.Message.Content,
					TokenCount: 1,
				}
			}
			if chunk.Done {
				responseChan <- StreamingResponse{Done: true}
				return
			}
		}

		if err := scanner.Err(); err != nil {
			responseChan <- StreamingResponse{Error: err, Done: true}
			return
		}

		// Server closed the stream without a terminal chunk.
		responseChan <- StreamingResponse{Done: true}
	}()

	return responseChan, nil
}
