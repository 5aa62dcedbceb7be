package bridge

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/orbitshell/sidecar"
)

// SelectionDebounce is the quiet period applied to selection-change bursts,
// matching the page-side listener.
const SelectionDebounce = 150 * time.Millisecond

// selectionPayload is the wire shape posted on the selection channel.
type selectionPayload struct {
	SelectedText string `json:"selectedText"`
}

// SelectionRelay turns raw selection script messages into selection-changed
// notifications. It normalizes the text, debounces bursts, and suppresses
// repeats of the previously emitted value, enforcing the same contract the
// injected listener implements for webviews that cannot run it.
type SelectionRelay struct {
	dispatcher *Dispatcher
	debouncer  *Debouncer
	logger     sidecar.Logger

	mu          sync.Mutex
	lastEmitted string
	emitted     bool
}

// NewSelectionRelay creates a relay and registers it on the selection
// channel of the dispatcher. Creating a second relay on the same dispatcher
// replaces the first, so there is never duplicate delivery.
func NewSelectionRelay(dispatcher *Dispatcher, logger sidecar.Logger) *SelectionRelay {
	if logger == nil {
		logger = sidecar.NewNullLogger()
	}
	r := &SelectionRelay{
		dispatcher: dispatcher,
		logger:     logger,
	}
	r.debouncer = NewDebouncer(SelectionDebounce, r.emit)
	dispatcher.RegisterScriptChannel(ChannelSelectionChange, r.handleMessage)
	return r
}

func (r *SelectionRelay) handleMessage(body []byte) {
	var payload selectionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		r.logger.WithErr(err).Warn("malformed selection payload")
		return
	}
	r.debouncer.Trigger(strings.TrimSpace(payload.SelectedText))
}

// emit runs on the debounce timer goroutine after a quiet period.
func (r *SelectionRelay) emit(value string) {
	r.mu.Lock()
	if r.emitted && value == r.lastEmitted {
		r.mu.Unlock()
		return
	}
	r.lastEmitted = value
	r.emitted = true
	r.mu.Unlock()

	r.dispatcher.Post(Notification{
		Name:         NotificationSelectionChanged,
		SelectedText: value,
	})
}

// Close detaches the relay from its dispatcher and cancels any pending
// debounce.
func (r *SelectionRelay) Close() {
	r.dispatcher.UnregisterScriptChannel(ChannelSelectionChange)
	r.debouncer.Stop()
}
