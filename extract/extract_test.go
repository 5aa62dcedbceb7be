package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage implements Page with scripted results.
type fakePage struct {
	url       string
	title     string
	scriptErr error
	result    interface{}
	html      string
	htmlErr   error
	evaluated []string
}

func (f *fakePage) URL() string   { return f.url }
func (f *fakePage) Title() string { return f.title }

func (f *fakePage) EvaluateJavaScript(_ context.Context, script string) (json.RawMessage, error) {
	f.evaluated = append(f.evaluated, script)
	if f.scriptErr != nil {
		return nil, f.scriptErr
	}
	return json.Marshal(f.result)
}

// htmlPage additionally exposes raw HTML.
type htmlPage struct {
	fakePage
}

func (h *htmlPage) HTML(_ context.Context) (string, error) {
	return h.html, h.htmlErr
}

func TestExtractor_Extract(t *testing.T) {
	page := &fakePage{
		url:   "https://example.com/post",
		title: "platform title",
		result: map[string]string{
			"title":        "script title",
			"selectedText": "  picked  ",
			"pageContent":  " body text ",
		},
	}

	snapshot := NewExtractor(nil).Extract(context.Background(), page)

	assert.Equal(t, "https://example.com/post", snapshot.URL)
	assert.Equal(t, "script title", snapshot.Title)
	assert.Equal(t, "picked", snapshot.SelectedText)
	assert.Equal(t, "body text", snapshot.PageContent)
	assert.True(t, snapshot.HasContent())
}

func TestExtractor_Extract_TitleFallsBackToPlatform(t *testing.T) {
	page := &fakePage{
		url:    "https://example.com",
		title:  "platform title",
		result: map[string]string{"pageContent": "text"},
	}

	snapshot := NewExtractor(nil).Extract(context.Background(), page)
	assert.Equal(t, "platform title", snapshot.Title)
}

func TestExtractor_Extract_ScriptFailureDegradesToMetadata(t *testing.T) {
	page := &fakePage{
		url:       "https://example.com",
		title:     "Example",
		scriptErr: errors.New("evaluation blocked"),
	}

	snapshot := NewExtractor(nil).Extract(context.Background(), page)

	assert.Equal(t, "https://example.com", snapshot.URL)
	assert.Equal(t, "Example", snapshot.Title)
	assert.Empty(t, snapshot.SelectedText)
	assert.Empty(t, snapshot.PageContent)
	assert.False(t, snapshot.HasContent())
}

func TestExtractor_Extract_ScriptFailureFallsBackToHTML(t *testing.T) {
	page := &htmlPage{fakePage: fakePage{
		url:       "https://example.com",
		title:     "Example",
		scriptErr: errors.New("evaluation blocked"),
		html:      `<html><body><article><p>real   content</p><script>x()</script></article></body></html>`,
	}}

	snapshot := NewExtractor(nil).Extract(context.Background(), page)

	assert.Equal(t, "real content", snapshot.PageContent)
	assert.Equal(t, "Example", snapshot.Title)
}

func TestExtractor_ExtractSelection(t *testing.T) {
	page := &fakePage{result: "  some words  "}

	selection, err := NewExtractor(nil).ExtractSelection(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "some words", selection)
}

func TestExtractor_ExtractSelection_Error(t *testing.T) {
	page := &fakePage{scriptErr: errors.New("blocked")}

	_, err := NewExtractor(nil).ExtractSelection(context.Background(), page)
	assert.Error(t, err)
}

func TestExtractor_Metadata(t *testing.T) {
	page := &fakePage{url: "https://example.com", title: "Example"}

	snapshot := NewExtractor(nil).Metadata(page)
	assert.Equal(t, "https://example.com", snapshot.URL)
	assert.Equal(t, "Example", snapshot.Title)
	assert.False(t, snapshot.HasContent())
	assert.Empty(t, page.evaluated)
}

func TestExtractor_InstallSelectionListener(t *testing.T) {
	page := &fakePage{result: true}

	err := NewExtractor(nil).InstallSelectionListener(context.Background(), page, "")
	require.NoError(t, err)

	require.Len(t, page.evaluated, 1)
	script := page.evaluated[0]
	assert.Contains(t, script, "OrbitSelectionChange")
	assert.NotContains(t, script, "__CHANNEL__")
	// The page-side guard flag keeps reinstallation a no-op.
	assert.Contains(t, script, "__orbitSelectionListenerInstalled")
	assert.True(t, strings.Contains(script, "150"))
}
