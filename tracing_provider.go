package sidecar

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// TracingInferenceProvider implements the decorator pattern for tracing.
type TracingInferenceProvider struct {
	provider InferenceProvider
}

// NewTracingInferenceProvider creates a tracing decorator for any
// InferenceProvider.
func NewTracingInferenceProvider(provider InferenceProvider) *TracingInferenceProvider {
	return &TracingInferenceProvider{
		provider: provider,
	}
}

// ListModels implements InferenceProvider with added tracing.
func (t *TracingInferenceProvider) ListModels(ctx context.Context) ([]string, error) {
	ctx, span := StartSpan(ctx, "InferenceProvider.ListModels")
	defer span.End()

	models, err := t.provider.ListModels(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("model_count", len(models)))
	return models, nil
}

// GetResponse implements InferenceProvider with added tracing.
func (t *TracingInferenceProvider) GetResponse(ctx context.Context, messages []Message, config RequestConfig) (Response, error) {
	ctx, span := StartSpan(ctx, "InferenceProvider.GetResponse")
	defer span.End()

	startTime := time.Now()

	response, err := t.provider.GetResponse(ctx, messages, config)
	if err != nil {
		span.RecordError(err)
		return Response{}, err
	}

	span.SetAttributes(
		attribute.String("model", config.Model),
		attribute.Int("total_input_token", response.TotalInputToken),
		attribute.Int("total_output_token", response.TotalOutputToken),
		attribute.Int("message_count", len(messages)),
		attribute.Float64("completion_time", time.Since(startTime).Seconds()),
		attribute.Int64("max_token", config.MaxToken),
		attribute.Float64("temperature", config.Temperature),
		attribute.Float64("top_p", config.TopP),
	)

	return response, nil
}

// GetStreamingResponse implements InferenceProvider with added tracing.
func (t *TracingInferenceProvider) GetStreamingResponse(ctx context.Context, messages []Message, config RequestConfig) (<-chan StreamingResponse, error) {
	ctx, span := StartSpan(ctx, "InferenceProvider.GetStreamingResponse")

	startTime := time.Now()

	originalStream, err := t.provider.GetStreamingResponse(ctx, messages, config)
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, err
	}

	tracedStream := make(chan StreamingResponse)

	go func() {
		defer span.End()
		defer close(tracedStream)

		var totalChunks int

		for response := range originalStream {
			if response.Error != nil {
				span.RecordError(response.Error)
				tracedStream <- response
				return
			}

			totalChunks++
			tracedStream <- response

			if response.Done {
				span.SetAttributes(
					attribute.String("model", config.Model),
					attribute.Int("total_chunks", totalChunks),
					attribute.Float64("total_streaming_time", time.Since(startTime).Seconds()),
					attribute.Int("message_count", len(messages)),
				)
				return
			}
		}
	}()

	return tracedStream, nil
}
