// Package sidecar implements the AI assistant pipeline of the Orbit browser
// shell: page-context extraction, a chat client for a locally reachable
// inference server, and the session logic backing the assistant sidebar.
package sidecar

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author of a conversation turn.
type MessageRole string

const (
	// UserRole represents messages written by the user.
	UserRole MessageRole = "user"

	// AssistantRole represents messages produced by the model.
	AssistantRole MessageRole = "assistant"

	// SystemRole represents instructions prepended to the conversation.
	SystemRole MessageRole = "system"
)

// Message is a single conversation turn in the wire format understood by
// inference providers.
type Message struct {
	Role MessageRole `json:"role"`
	Text string      `json:"content"`
}

// ChatMessage is one entry of a session's conversation log. It is immutable
// once created; the log only ever appends, or is cleared wholesale.
type ChatMessage struct {
	ID        uuid.UUID   `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewChatMessage creates a log entry with a fresh identifier and the current
// time.
func NewChatMessage(role MessageRole, content string) ChatMessage {
	return ChatMessage{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// PageContext is a snapshot of the textual content of a rendered page that is
// relevant to the assistant. It is a value recreated on every refresh; empty
// fields mean the corresponding piece could not be read.
type PageContext struct {
	URL          string `json:"url,omitempty"`
	Title        string `json:"title,omitempty"`
	SelectedText string `json:"selectedText,omitempty"`
	PageContent  string `json:"pageContent,omitempty"`
}

// HasContent reports whether the snapshot carries any usable page text. It is
// true iff the selection or the page content is non-empty.
func (p PageContext) HasContent() bool {
	return p.SelectedText != "" || p.PageContent != ""
}
