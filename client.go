package sidecar

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultModel is used when the caller does not name one.
	DefaultModel = "llama3.2"

	// DefaultContextTokenBudget bounds how much page content is spent on the
	// synthesized system prompt. The character budget is approximated as
	// charsPerToken times this value.
	DefaultContextTokenBudget = 2000
)

// Client exchanges conversation turns with a locally reachable inference
// server. It layers model defaulting, page-context prompt synthesis and error
// classification over an InferenceProvider.
type Client struct {
	provider      InferenceProvider
	requestConfig RequestConfig
	defaultModel  string
	tokenBudget   int
	logger        Logger
}

// ClientConfig holds configuration for the chat client.
type ClientConfig struct {
	// Provider is the inference backend. Required.
	Provider InferenceProvider

	// DefaultModel is used for requests that don't name a model. Defaults to
	// DefaultModel.
	DefaultModel string

	// ContextTokenBudget caps page content in the system prompt, in tokens.
	// Defaults to DefaultContextTokenBudget.
	ContextTokenBudget int

	// RequestConfig carries generation parameters. Zero value gets
	// NewRequestConfig defaults.
	RequestConfig RequestConfig

	// Logger defaults to the no-op logger.
	Logger Logger
}

// NewClient creates a chat client for the given provider.
//
// Example usage:
//
//	client := sidecar.NewClient(sidecar.ClientConfig{
//	    Provider: sidecar.NewOllamaProvider(sidecar.OllamaProviderConfig{}),
//	})
func NewClient(config ClientConfig) *Client {
	if config.DefaultModel == "" {
		config.DefaultModel = DefaultModel
	}
	if config.ContextTokenBudget == 0 {
		config.ContextTokenBudget = DefaultContextTokenBudget
	}
	if config.RequestConfig == (RequestConfig{}) {
		config.RequestConfig = NewRequestConfig()
	}
	if config.Logger == nil {
		config.Logger = NewNullLogger()
	}
	return &Client{
		provider:      config.Provider,
		requestConfig: config.RequestConfig,
		defaultModel:  config.DefaultModel,
		tokenBudget:   config.ContextTokenBudget,
		logger:        config.Logger,
	}
}

// CheckConnection reports whether the inference server is reachable. All
// transport errors collapse into false.
func (c *Client) CheckConnection(ctx context.Context) bool {
	_, err := c.provider.ListModels(ctx)
	if err != nil {
		c.logger.WithErr(err).Debug("inference server unreachable")
		return false
	}
	return true
}

// ListModels returns the available model identifiers. Any failure is
// classified as the server not running.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	models, err := c.provider.ListModels(ctx)
	if err != nil {
		return nil, &ChatError{
			Kind:    ErrKindConnection,
			Message: "inference server is not running",
			Err:     err,
		}
	}
	return models, nil
}

// resolveConfig validates the model identifier and produces the per-request
// config, falling back to the client default when model is empty.
func (c *Client) resolveConfig(model string) (RequestConfig, error) {
	if model == "" {
		model = c.defaultModel
	}
	if strings.TrimSpace(model) == "" || strings.ContainsAny(model, " \t\n") {
		return RequestConfig{}, NewChatError(ErrKindInvalidModel, fmt.Sprintf("unusable model identifier %q", model))
	}
	config := c.requestConfig
	config.Model = model
	return config, nil
}

// withContext prepends the synthesized system message when the page snapshot
// carries any usable content.
func (c *Client) withContext(messages []Message, page PageContext) []Message {
	if !page.HasContent() {
		return messages
	}
	prompt := systemPromptFromContext(page, c.tokenBudget*charsPerToken)
	prefixed := make([]Message, 0, len(messages)+1)
	prefixed = append(prefixed, Message{Role: SystemRole, Text: prompt})
	return append(prefixed, messages...)
}

// Chat sends the ordered message list for the given model, prefixed with a
// system message built from page when it has content, and returns the
// assistant's reply. An empty model falls back to the client default.
func (c *Client) Chat(ctx context.Context, messages []Message, model string, page PageContext) (string, error) {
	config, err := c.resolveConfig(model)
	if err != nil {
		return "", err
	}

	response, err := c.provider.GetResponse(ctx, c.withContext(messages, page), config)
	if err != nil {
		return "", classifyChatError(err)
	}

	c.logger.WithFields(map[string]interface{}{
		"model":         config.Model,
		"input_tokens":  response.TotalInputToken,
		"output_tokens": response.TotalOutputToken,
	}).Debug("chat completed")

	return response.Text, nil
}

// ChatStream is Chat with a lazily consumed chunk sequence instead of a
// completed string. The consumer may stop early by cancelling ctx; the stream
// ends with a Done chunk on normal completion, or an Error chunk if the
// connection breaks mid-stream.
func (c *Client) ChatStream(ctx context.Context, messages []Message, model string, page PageContext) (<-chan StreamingResponse, error) {
	config, err := c.resolveConfig(model)
	if err != nil {
		return nil, err
	}

	stream, err := c.provider.GetStreamingResponse(ctx, c.withContext(messages, page), config)
	if err != nil {
		return nil, classifyChatError(err)
	}

	classified := make(chan StreamingResponse, 100)
	go func() {
		defer close(classified)
		for chunk := range stream {
			if chunk.Error != nil {
				chunk.Error = classifyChatError(chunk.Error)
			}
			classified <- chunk
		}
	}()

	return classified, nil
}

// Ask asks a single free-form question about the page.
func (c *Client) Ask(ctx context.Context, question string, page PageContext) (string, error) {
	return c.Chat(ctx, []Message{{Role: UserRole, Text: question}}, "", page)
}

// Summarize asks for a concise summary of the page content.
func (c *Client) Summarize(ctx context.Context, page PageContext) (string, error) {
	return c.Ask(ctx, "Summarize this page in a few short paragraphs.", page)
}

// Explain asks for an explanation of the selected text.
func (c *Client) Explain(ctx context.Context, page PageContext) (string, error) {
	return c.Ask(ctx, "Explain the selected text in simple terms.", page)
}
