package sidecar

import "context"

// NoOpsProvider implements InferenceProvider for testing purposes. It returns
// canned responses without touching the network.
type NoOpsProvider struct {
	models         []string
	response       Response
	streamResponse StreamingResponse
	err            error
}

// NoOpsOption defines the function signature for option pattern.
type NoOpsOption func(*NoOpsProvider)

// WithResponse sets a custom Response for the NoOpsProvider.
func WithResponse(response Response) NoOpsOption {
	return func(n *NoOpsProvider) {
		n.response = response
	}
}

// WithStreamingResponse sets a custom StreamingResponse for the NoOpsProvider.
func WithStreamingResponse(response StreamingResponse) NoOpsOption {
	return func(n *NoOpsProvider) {
		n.streamResponse = response
	}
}

// WithModels sets the model identifiers returned by ListModels.
func WithModels(models ...string) NoOpsOption {
	return func(n *NoOpsProvider) {
		n.models = models
	}
}

// WithError makes every call fail with err.
func WithError(err error) NoOpsOption {
	return func(n *NoOpsProvider) {
		n.err = err
	}
}

// NewNoOpsProvider creates a NoOpsProvider with optional configurations.
func NewNoOpsProvider(opts ...NoOpsOption) *NoOpsProvider {
	provider := &NoOpsProvider{
		models: []string{"llama3.2"},
		response: Response{
			Text:             "Default NoOps response",
			TotalInputToken:  10,
			TotalOutputToken: 3,
			CompletionTime:   0.1,
		},
		streamResponse: StreamingResponse{
			Text:       "Default NoOps streaming response",
			Done:       true,
			TokenCount: 4,
		},
	}

	for _, opt := range opts {
		opt(provider)
	}

	return provider
}

// ListModels implements the InferenceProvider interface.
func (n *NoOpsProvider) ListModels(_ context.Context) ([]string, error) {
	if n.err != nil {
		return nil, n.err
	}
	return n.models, nil
}

// GetResponse implements the InferenceProvider interface.
func (n *NoOpsProvider) GetResponse(_ context.Context, _ []Message, _ RequestConfig) (Response, error) {
	if n.err != nil {
		return Response{}, n.err
	}
	return n.response, nil
}

// GetStreamingResponse implements the InferenceProvider interface.
func (n *NoOpsProvider) GetStreamingResponse(ctx context.Context, _ []Message, _ RequestConfig) (<-chan StreamingResponse, error) {
	if n.err != nil {
		return nil, n.err
	}

	responseChan := make(chan StreamingResponse)

	go func() {
		defer close(responseChan)

		select {
		case <-ctx.Done():
			responseChan <- StreamingResponse{Error: ctx.Err(), Done: true}
		default:
			responseChan <- n.streamResponse
		}
	}()

	return responseChan, nil
}
