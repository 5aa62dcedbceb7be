package sidecar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTagsHandler(models ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type tag struct {
			Name string `json:"name"`
		}
		payload := struct {
			Models []tag `json:"models"`
		}{}
		for _, m := range models {
			payload.Models = append(payload.Models, tag{Name: m})
		}
		json.NewEncoder(w).Encode(payload)
	}
}

func TestOllamaProvider_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		newTagsHandler("llama3.2:latest", "mistral:7b")(w, r)
	}))
	defer server.Close()

	provider := NewOllamaProvider(OllamaProviderConfig{BaseURL: server.URL})

	models, err := provider.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2:latest", "mistral:7b"}, models)
}

func TestOllamaProvider_ListModels_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	}))
	defer server.Close()

	provider := NewOllamaProvider(OllamaProviderConfig{BaseURL: server.URL})

	_, err := provider.ListModels(context.Background())
	assert.ErrorIs(t, err, &ChatError{Kind: ErrKindInvalidResponse})
}

func TestOllamaProvider_GetResponse(t *testing.T) {
	var gotRequest ollamaChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message":           map[string]string{"role": "assistant", "content": "Paris."},
			"done":              true,
			"prompt_eval_count": 12,
			"eval_count":        3,
		})
	}))
	defer server.Close()

	provider := NewOllamaProvider(OllamaProviderConfig{BaseURL: server.URL})
	config := NewRequestConfig(WithModel("llama3.2"), WithTemperature(0.2))

	response, err := provider.GetResponse(context.Background(), []Message{
		{Role: SystemRole, Text: "Be brief."},
		{Role: UserRole, Text: "Capital of France?"},
	}, config)

	require.NoError(t, err)
	assert.Equal(t, "Paris.", response.Text)
	assert.Equal(t, 12, response.TotalInputToken)
	assert.Equal(t, 3, response.TotalOutputToken)

	assert.Equal(t, "llama3.2", gotRequest.Model)
	assert.False(t, gotRequest.Stream)
	require.Len(t, gotRequest.Messages, 2)
	assert.Equal(t, "system", gotRequest.Messages[0].Role)
	assert.Equal(t, "Capital of France?", gotRequest.Messages[1].Content)
	assert.Equal(t, 0.2, gotRequest.Options["temperature"])
}

func TestOllamaProvider_GetResponse_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": `model "llama9" not found`})
	}))
	defer server.Close()

	provider := NewOllamaProvider(OllamaProviderConfig{BaseURL: server.URL})

	_, err := provider.GetResponse(context.Background(), []Message{{Role: UserRole, Text: "hi"}},
		NewRequestConfig(WithModel("llama9")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestOllamaProvider_GetResponse_ConnectionRefused(t *testing.T) {
	// Grab a port that nothing listens on.
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	provider := NewOllamaProvider(OllamaProviderConfig{BaseURL: server.URL})

	_, err := provider.GetResponse(context.Background(), []Message{{Role: UserRole, Text: "hi"}},
		NewRequestConfig(WithModel("llama3.2")))
	assert.Error(t, err)
}

func TestOllamaProvider_GetStreamingResponse(t *testing.T) {
	chunks := []string{"The ", "quick ", "answer."}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		enc := json.NewEncoder(w)

		// Pace chunks like a real model would emit tokens.
		limiter := rate.NewLimiter(rate.Every(5*time.Millisecond), 1)
		for _, text := range chunks {
			require.NoError(t, limiter.Wait(r.Context()))
			enc.Encode(map[string]interface{}{
				"message": map[string]string{"role": "assistant", "content": text},
				"done":    false,
			})
			flusher.Flush()
		}
		enc.Encode(map[string]interface{}{"message": map[string]string{}, "done": true})
	}))
	defer server.Close()

	provider := NewOllamaProvider(OllamaProviderConfig{BaseURL: server.URL})

	stream, err := provider.GetStreamingResponse(context.Background(),
		[]Message{{Role: UserRole, Text: "go"}}, NewRequestConfig(WithModel("llama3.2")))
	require.NoError(t, err)

	var got string
	var done bool
	for chunk := range stream {
		require.NoError(t, chunk.Error)
		got += chunk.Text
		done = chunk.Done
	}

	assert.Equal(t, "The quick answer.", got)
	assert.True(t, done)
}

func TestOllamaProvider_GetStreamingResponse_MidStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": "partial"},
			"done":    false,
		})
		enc.Encode(map[string]interface{}{"error": "model crashed"})
	}))
	defer server.Close()

	provider := NewOllamaProvider(OllamaProviderConfig{BaseURL: server.URL})

	stream, err := provider.GetStreamingResponse(context.Background(),
		[]Message{{Role: UserRole, Text: "go"}}, NewRequestConfig(WithModel("llama3.2")))
	require.NoError(t, err)

	var sawText bool
	var streamErr error
	for chunk := range stream {
		if chunk.Text != "" {
			sawText = true
		}
		if chunk.Error != nil {
			streamErr = chunk.Error
		}
	}

	assert.True(t, sawText)
	require.Error(t, streamErr)
	assert.Contains(t, streamErr.Error(), "model crashed")
}

func TestOllamaProvider_GetStreamingResponse_CallerCancels(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		enc := json.NewEncoder(w)
		enc.Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": "first"},
			"done":    false,
		})
		flusher.Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	provider := NewOllamaProvider(OllamaProviderConfig{BaseURL: server.URL})

	stream, err := provider.GetStreamingResponse(ctx,
		[]Message{{Role: UserRole, Text: "go"}}, NewRequestConfig(WithModel("llama3.2")))
	require.NoError(t, err)

	first := <-stream
	require.NoError(t, first.Error)
	assert.Equal(t, "first", first.Text)

	cancel()

	var last StreamingResponse
	for chunk := range stream {
		last = chunk
	}
	assert.True(t, last.Done)
	if last.Error != nil {
		assert.ErrorIs(t, last.Error, context.Canceled)
	}
}
