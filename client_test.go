package sidecar

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingProvider captures the messages and config of the last request.
type recordingProvider struct {
	*NoOpsProvider
	lastMessages []Message
	lastConfig   RequestConfig
}

func newRecordingProvider(opts ...NoOpsOption) *recordingProvider {
	return &recordingProvider{NoOpsProvider: NewNoOpsProvider(opts...)}
}

func (r *recordingProvider) GetResponse(ctx context.Context, messages []Message, config RequestConfig) (Response, error) {
	r.lastMessages = messages
	r.lastConfig = config
	return r.NoOpsProvider.GetResponse(ctx, messages, config)
}

func (r *recordingProvider) GetStreamingResponse(ctx context.Context, messages []Message, config RequestConfig) (<-chan StreamingResponse, error) {
	r.lastMessages = messages
	r.lastConfig = config
	return r.NoOpsProvider.GetStreamingResponse(ctx, messages, config)
}

func TestClient_CheckConnection(t *testing.T) {
	up := NewClient(ClientConfig{Provider: NewNoOpsProvider()})
	assert.True(t, up.CheckConnection(context.Background()))

	down := NewClient(ClientConfig{Provider: NewNoOpsProvider(WithError(errors.New("refused")))})
	assert.False(t, down.CheckConnection(context.Background()))
}

func TestClient_ListModels_FailureIsConnectionUnavailable(t *testing.T) {
	client := NewClient(ClientConfig{Provider: NewNoOpsProvider(WithError(errors.New("refused")))})

	_, err := client.ListModels(context.Background())
	assert.ErrorIs(t, err, &ChatError{Kind: ErrKindConnection})
}

func TestClient_Chat_DefaultsModel(t *testing.T) {
	provider := newRecordingProvider(WithResponse(Response{Text: "hi there"}))
	client := NewClient(ClientConfig{Provider: provider})

	reply, err := client.Chat(context.Background(),
		[]Message{{Role: UserRole, Text: "hello"}}, "", PageContext{})

	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
	assert.Equal(t, DefaultModel, provider.lastConfig.Model)
}

func TestClient_Chat_InvalidModelIdentifier(t *testing.T) {
	client := NewClient(ClientConfig{Provider: NewNoOpsProvider()})

	_, err := client.Chat(context.Background(),
		[]Message{{Role: UserRole, Text: "hello"}}, "llama 3.2", PageContext{})

	assert.ErrorIs(t, err, &ChatError{Kind: ErrKindInvalidModel})
}

func TestClient_Chat_PrependsSystemMessageWhenContextHasContent(t *testing.T) {
	provider := newRecordingProvider()
	client := NewClient(ClientConfig{Provider: provider})

	page := PageContext{
		URL:         "https://example.com",
		PageContent: "article body",
	}

	_, err := client.Chat(context.Background(),
		[]Message{{Role: UserRole, Text: "what is this?"}}, "", page)
	require.NoError(t, err)

	require.Len(t, provider.lastMessages, 2)
	assert.Equal(t, SystemRole, provider.lastMessages[0].Role)
	assert.Contains(t, provider.lastMessages[0].Text, "article body")
	assert.NotContains(t, provider.lastMessages[0].Text, "selected the following text")
	assert.Equal(t, UserRole, provider.lastMessages[1].Role)
}

func TestClient_Chat_NoSystemMessageWithoutContent(t *testing.T) {
	provider := newRecordingProvider()
	client := NewClient(ClientConfig{Provider: provider})

	// URL and title alone don't count as content.
	page := PageContext{URL: "https://example.com", Title: "Example"}

	_, err := client.Chat(context.Background(),
		[]Message{{Role: UserRole, Text: "hi"}}, "", page)
	require.NoError(t, err)

	require.Len(t, provider.lastMessages, 1)
	assert.Equal(t, UserRole, provider.lastMessages[0].Role)
}

func TestClient_Chat_TruncatesPageContent(t *testing.T) {
	provider := newRecordingProvider()
	client := NewClient(ClientConfig{Provider: provider, ContextTokenBudget: 10})

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	page := PageContext{PageContent: string(long)}

	_, err := client.Chat(context.Background(),
		[]Message{{Role: UserRole, Text: "hi"}}, "", page)
	require.NoError(t, err)

	require.Len(t, provider.lastMessages, 2)
	assert.Contains(t, provider.lastMessages[0].Text, truncationMarker)
}

func TestClient_Chat_ClassifiesProviderFailure(t *testing.T) {
	provider := NewNoOpsProvider(WithError(errors.New(`model "llama9" not found`)))
	client := NewClient(ClientConfig{Provider: provider})

	_, err := client.Chat(context.Background(),
		[]Message{{Role: UserRole, Text: "hi"}}, "", PageContext{})

	assert.ErrorIs(t, err, &ChatError{Kind: ErrKindModelNotFound})
}

func TestClient_ChatStream(t *testing.T) {
	provider := newRecordingProvider(WithStreamingResponse(StreamingResponse{
		Text: "streamed", Done: true,
	}))
	client := NewClient(ClientConfig{Provider: provider})

	stream, err := client.ChatStream(context.Background(),
		[]Message{{Role: UserRole, Text: "go"}}, "", PageContext{SelectedText: "sel"})
	require.NoError(t, err)

	var got string
	for chunk := range stream {
		require.NoError(t, chunk.Error)
		got += chunk.Text
	}
	assert.Equal(t, "streamed", got)

	// Context was synthesized for the stream as well.
	require.NotEmpty(t, provider.lastMessages)
	assert.Equal(t, SystemRole, provider.lastMessages[0].Role)
}

func TestClient_ConvenienceWrappers(t *testing.T) {
	provider := newRecordingProvider(WithResponse(Response{Text: "done"}))
	client := NewClient(ClientConfig{Provider: provider})
	page := PageContext{PageContent: "body"}

	_, err := client.Summarize(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "Summarize this page in a few short paragraphs.",
		provider.lastMessages[len(provider.lastMessages)-1].Text)

	_, err = client.Explain(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "Explain the selected text in simple terms.",
		provider.lastMessages[len(provider.lastMessages)-1].Text)

	_, err = client.Ask(context.Background(), "why?", page)
	require.NoError(t, err)
	assert.Equal(t, "why?", provider.lastMessages[len(provider.lastMessages)-1].Text)
}
