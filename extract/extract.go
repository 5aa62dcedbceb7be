// Package extract produces PageContext snapshots from a rendered browser
// page, either by running extraction script inside the page or by cleaning
// raw HTML on the host side.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orbitshell/sidecar"
	"github.com/orbitshell/sidecar/bridge"
)

// Page is the extractor's view of a rendered surface. Implementations wrap
// whatever webview control the shell embeds.
type Page interface {
	// URL returns the current page address, empty if unknown.
	URL() string

	// Title returns the current page title, empty if unknown.
	Title() string

	// EvaluateJavaScript runs script in the page and returns the
	// JSON-encoded completion value.
	EvaluateJavaScript(ctx context.Context, script string) (json.RawMessage, error)
}

// HTMLSource is implemented by pages that can hand over their raw HTML. The
// extractor uses it as a fallback when script evaluation fails.
type HTMLSource interface {
	HTML(ctx context.Context) (string, error)
}

// Extractor builds PageContext snapshots.
type Extractor struct {
	logger sidecar.Logger
}

// NewExtractor creates an Extractor. A nil logger defaults to the no-op
// logger.
func NewExtractor(logger sidecar.Logger) *Extractor {
	if logger == nil {
		logger = sidecar.NewNullLogger()
	}
	return &Extractor{logger: logger}
}

// scriptResult is the shape of the object the content script completes with.
type scriptResult struct {
	Title        string `json:"title"`
	SelectedText string `json:"selectedText"`
	PageContent  string `json:"pageContent"`
}

// Extract produces a full snapshot of the page. It never fails the caller:
// when script evaluation errors it degrades to host-side HTML cleaning if the
// page exposes its HTML, and ultimately to a reduced context holding only the
// URL and title known to the platform.
func (e *Extractor) Extract(ctx context.Context, page Page) sidecar.PageContext {
	raw, err := page.EvaluateJavaScript(ctx, contentScript)
	if err == nil {
		var result scriptResult
		if jsonErr := json.Unmarshal(raw, &result); jsonErr == nil {
			snapshot := sidecar.PageContext{
				URL:          page.URL(),
				Title:        strings.TrimSpace(result.Title),
				SelectedText: strings.TrimSpace(result.SelectedText),
				PageContent:  strings.TrimSpace(result.PageContent),
			}
			if snapshot.Title == "" {
				snapshot.Title = page.Title()
			}
			return snapshot
		}
		err = fmt.Errorf("unexpected script result: %s", raw)
	}

	e.logger.WithErr(err).Debug("content script failed, degrading")

	if source, ok := page.(HTMLSource); ok {
		if html, htmlErr := source.HTML(ctx); htmlErr == nil {
			if snapshot, fromErr := FromHTML(page.URL(), page.Title(), html); fromErr == nil {
				return snapshot
			}
		}
	}

	return e.Metadata(page)
}

// ExtractSelection reads only the current selection, trimmed. An empty result
// means nothing is selected.
func (e *Extractor) ExtractSelection(ctx context.Context, page Page) (string, error) {
	raw, err := page.EvaluateJavaScript(ctx, selectionScript)
	if err != nil {
		return "", fmt.Errorf("failed to read selection: %w", err)
	}

	var selection string
	if err := json.Unmarshal(raw, &selection); err != nil {
		return "", fmt.Errorf("unexpected selection result: %w", err)
	}
	return strings.TrimSpace(selection), nil
}

// Metadata returns a reduced context holding only the URL and title the
// platform already knows, for callers that don't need page text.
func (e *Extractor) Metadata(page Page) sidecar.PageContext {
	return sidecar.PageContext{
		URL:   page.URL(),
		Title: page.Title(),
	}
}

// InstallSelectionListener injects the debounced selection listener into the
// page, posting to the given script-message channel. The page-side guard flag
// makes repeated installation a no-op, so at most one listener is ever
// active.
func (e *Extractor) InstallSelectionListener(ctx context.Context, page Page, channel string) error {
	if channel == "" {
		channel = bridge.ChannelSelectionChange
	}
	script := strings.ReplaceAll(selectionListenerScript, "__CHANNEL__", channel)
	if _, err := page.EvaluateJavaScript(ctx, script); err != nil {
		return fmt.Errorf("failed to install selection listener: %w", err)
	}
	return nil
}
