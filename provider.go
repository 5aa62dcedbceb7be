package sidecar

import "context"

// InferenceProvider abstracts a chat inference backend. Implementations exist
// for Ollama's native API, OpenAI-compatible local endpoints, a tracing
// decorator, and a no-op provider for tests.
type InferenceProvider interface {
	// ListModels returns the identifiers of the models the server can serve.
	ListModels(ctx context.Context) ([]string, error)

	// GetResponse sends the ordered message list and returns the completed
	// assistant reply.
	GetResponse(ctx context.Context, messages []Message, config RequestConfig) (Response, error)

	// GetStreamingResponse returns a channel of incremental response chunks.
	// The channel is closed after a chunk with Done set; a chunk with a
	// non-nil Error ends the stream early. Cancelling ctx aborts the
	// in-flight request.
	GetStreamingResponse(ctx context.Context, messages []Message, config RequestConfig) (<-chan StreamingResponse, error)
}

// Response is a completed inference result.
type Response struct {
	Text             string
	TotalInputToken  int
	TotalOutputToken int
	CompletionTime   float64
}

// StreamingResponse is one chunk of a streamed inference result.
type StreamingResponse struct {
	Text       string
	Done       bool
	Error      error
	TokenCount int
}

// RequestConfig carries per-request generation parameters.
type RequestConfig struct {
	Model       string
	MaxToken    int64
	Temperature float64
	TopP        float64
}

// RequestOption configures a RequestConfig.
type RequestOption func(*RequestConfig)

// WithModel overrides the model for a single request.
func WithModel(model string) RequestOption {
	return func(c *RequestConfig) { c.Model = model }
}

// WithMaxToken caps the number of generated tokens.
func WithMaxToken(maxToken int64) RequestOption {
	return func(c *RequestConfig) { c.MaxToken = maxToken }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) RequestOption {
	return func(c *RequestConfig) { c.Temperature = temperature }
}

// WithTopP sets nucleus sampling probability mass.
func WithTopP(topP float64) RequestOption {
	return func(c *RequestConfig) { c.TopP = topP }
}

// NewRequestConfig builds a RequestConfig with sensible defaults applied
// before the options run.
func NewRequestConfig(opts ...RequestOption) RequestConfig {
	config := RequestConfig{
		MaxToken:    2048,
		Temperature: 0.7,
		TopP:        0.9,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return config
}
