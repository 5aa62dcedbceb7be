// Package session holds the conversation state and control logic backing one
// assistant sidebar instance.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/orbitshell/sidecar"
	"github.com/orbitshell/sidecar/bridge"
	"github.com/orbitshell/sidecar/extract"
)

var (
	// ErrEmptyMessage rejects whitespace-only input. The conversation log and
	// loading flag are untouched.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrBusy rejects a send while a previous one is still in flight. The
	// session holds at most one in-flight request.
	ErrBusy = errors.New("a request is already in flight")

	// ErrNoContent means the page has no extractable content to summarize.
	ErrNoContent = errors.New("page has no readable content")

	// ErrNoSelection means nothing is selected on the page.
	ErrNoSelection = errors.New("nothing is selected")
)

const (
	summarizePrompt = "Summarize this page in a few short paragraphs."
	explainPrompt   = "Explain the selected text in simple terms."
)

// Config holds the collaborators of a Session.
type Config struct {
	// Client is the chat client. Required.
	Client *sidecar.Client

	// Extractor produces page snapshots. Defaults to a fresh Extractor.
	Extractor *extract.Extractor

	// Page is a capability accessor for the rendering surface. It may return
	// nil once the surface is gone; the session then degrades to an empty
	// context and never extends the surface's lifetime.
	Page func() extract.Page

	// Dispatcher, when set, feeds live selection-changed notifications into
	// the session's cached context.
	Dispatcher *bridge.Dispatcher

	// Model overrides the client's default model when non-empty.
	Model string

	// Store, when set, archives every appended message. Nil keeps the
	// conversation process-lifetime only.
	Store sidecar.TranscriptStore

	// Logger defaults to the no-op logger.
	Logger sidecar.Logger
}

// Session sequences the user-visible chat actions of one sidebar. All state
// transitions go through its mutex; the chat exchange itself runs without the
// lock held so accessors stay responsive while a request is in flight.
type Session struct {
	id         uuid.UUID
	client     *sidecar.Client
	extractor  *extract.Extractor
	page       func() extract.Page
	dispatcher *bridge.Dispatcher
	store      sidecar.TranscriptStore
	model      string
	logger     sidecar.Logger

	mu           sync.Mutex
	messages     []sidecar.ChatMessage
	pageCtx      sidecar.PageContext
	loading      bool
	lastError    string
	transcriptID uuid.UUID
	unsubscribe  func()
}

// New creates a Session. When a dispatcher is supplied the session subscribes
// to selection-changed notifications; when a store is supplied an empty
// transcript is created for archiving.
func New(config Config) (*Session, error) {
	if config.Client == nil {
		return nil, errors.New("session requires a chat client")
	}
	if config.Extractor == nil {
		config.Extractor = extract.NewExtractor(config.Logger)
	}
	if config.Page == nil {
		config.Page = func() extract.Page { return nil }
	}
	if config.Logger == nil {
		config.Logger = sidecar.NewNullLogger()
	}

	s := &Session{
		id:         uuid.New(),
		client:     config.Client,
		extractor:  config.Extractor,
		page:       config.Page,
		dispatcher: config.Dispatcher,
		store:      config.Store,
		model:      config.Model,
		logger:     config.Logger,
	}

	if s.store != nil {
		transcript, err := s.store.CreateTranscript(context.Background())
		if err != nil {
			return nil, err
		}
		s.transcriptID = transcript.SessionID
	}

	if s.dispatcher != nil {
		s.unsubscribe = s.dispatcher.Subscribe(bridge.NotificationSelectionChanged, s.onSelectionChanged)
	}

	return s, nil
}

// ID identifies this session.
func (s *Session) ID() uuid.UUID { return s.id }

// onSelectionChanged runs on the dispatcher goroutine.
func (s *Session) onSelectionChanged(n bridge.Notification) {
	s.mu.Lock()
	s.pageCtx.SelectedText = n.SelectedText
	s.mu.Unlock()
}

// SendMessage appends a user turn, refreshes the page context, sends the full
// conversation to the model and appends the reply. Empty input is rejected
// with ErrEmptyMessage; a send while another is in flight is rejected with
// ErrBusy. The loading flag is cleared on every path.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrBusy
	}
	s.loading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	s.append(ctx, sidecar.NewChatMessage(sidecar.UserRole, trimmed))
	pageCtx := s.RefreshContext(ctx)

	reply, err := s.client.Chat(ctx, s.wireMessages(), s.model, pageCtx)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		s.logger.WithErr(err).Error("chat request failed")
		return err
	}

	s.append(ctx, sidecar.NewChatMessage(sidecar.AssistantRole, reply))
	return nil
}

// SummarizePage sends a canned summary prompt. It fails with ErrNoContent
// when the freshly extracted context carries no page text.
func (s *Session) SummarizePage(ctx context.Context) error {
	if s.RefreshContext(ctx).PageContent == "" {
		return ErrNoContent
	}
	return s.SendMessage(ctx, summarizePrompt)
}

// ExplainSelection sends a canned explanation prompt. It fails with
// ErrNoSelection when nothing is selected.
func (s *Session) ExplainSelection(ctx context.Context) error {
	if s.RefreshContext(ctx).SelectedText == "" {
		return ErrNoSelection
	}
	return s.SendMessage(ctx, explainPrompt)
}

// RefreshContext re-extracts the page snapshot and caches it. When the
// surface is gone the cached context collapses to empty.
func (s *Session) RefreshContext(ctx context.Context) sidecar.PageContext {
	var pageCtx sidecar.PageContext
	if page := s.page(); page != nil {
		pageCtx = s.extractor.Extract(ctx, page)
	}

	s.mu.Lock()
	s.pageCtx = pageCtx
	s.mu.Unlock()
	return pageCtx
}

// ClearChat empties the conversation log and any pending error state.
// Irreversible.
func (s *Session) ClearChat() {
	s.mu.Lock()
	s.messages = nil
	s.lastError = ""
	s.mu.Unlock()
}

// Messages returns a copy of the conversation log, oldest first.
func (s *Session) Messages() []sidecar.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sidecar.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Loading reports whether a request is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the user-visible error string from the last failed action,
// empty when there is none.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// DismissError clears the pending error string.
func (s *Session) DismissError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

// Context returns the cached page snapshot.
func (s *Session) Context() sidecar.PageContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCtx
}

// Close detaches the session from its dispatcher.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// append adds a message to the log and archives it when a store is present.
// Archive failures are logged, never surfaced.
func (s *Session) append(ctx context.Context, message sidecar.ChatMessage) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	if err := s.store.AppendMessage(ctx, s.transcriptID, message); err != nil {
		s.logger.WithErr(err).Warn("failed to archive message")
	}
}

// wireMessages converts the log into the chat request format.
func (s *Session) wireMessages() []sidecar.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	wire := make([]sidecar.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		wire = append(wire, sidecar.Message{Role: msg.Role, Text: msg.Content})
	}
	return wire
}
