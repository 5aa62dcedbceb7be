// Package bridge delivers in-page events to the host application as
// decoupled notifications, marshaled onto a single dispatch goroutine.
package bridge

import (
	"sync"

	"github.com/orbitshell/sidecar"
)

// ChannelSelectionChange is the script-message channel carrying selection
// updates from the page.
const ChannelSelectionChange = "OrbitSelectionChange"

// Notification names observable through a Dispatcher.
const (
	NotificationSelectionChanged   = "selection-changed"
	NotificationNavigationStarted  = "navigation-started"
	NotificationNavigationFinished = "navigation-finished"
)

// Notification is the structured payload delivered to subscribers. Only
// selection notifications populate SelectedText.
type Notification struct {
	Name         string
	SelectedText string
}

// ScriptMessageHandler consumes the raw body of one script message.
type ScriptMessageHandler func(body []byte)

type subscription struct {
	name    string
	handler func(Notification)
}

// Dispatcher routes script messages to registered channel handlers and fans
// notifications out to subscribers. It is explicitly constructed, one per
// application session, rather than process-global. All subscriber handlers
// run on the dispatcher's own goroutine regardless of which goroutine posted,
// mirroring main-queue delivery in the shell.
type Dispatcher struct {
	logger sidecar.Logger

	mu          sync.Mutex
	channels    map[string]ScriptMessageHandler
	subscribers []*subscription
	queue       chan Notification
	stop        chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
}

// NewDispatcher creates a Dispatcher and starts its delivery goroutine. Call
// Close when the owning session ends.
func NewDispatcher(logger sidecar.Logger) *Dispatcher {
	if logger == nil {
		logger = sidecar.NewNullLogger()
	}
	d := &Dispatcher{
		logger:   logger,
		channels: make(map[string]ScriptMessageHandler),
		queue:    make(chan Notification, 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer close(d.done)
	for {
		select {
		case notification := <-d.queue:
			d.dispatch(notification)
		case <-d.stop:
			// Drain whatever was queued before the close.
			for {
				select {
				case notification := <-d.queue:
					d.dispatch(notification)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) dispatch(notification Notification) {
	d.mu.Lock()
	subscribers := make([]*subscription, len(d.subscribers))
	copy(subscribers, d.subscribers)
	d.mu.Unlock()

	for _, sub := range subscribers {
		if sub.handler == nil || sub.name != notification.Name {
			continue
		}
		sub.handler(notification)
	}
}

// RegisterScriptChannel installs a handler for a script-message channel.
// Registration is idempotent: registering the same channel name again
// replaces the previous handler, so an event is never delivered twice.
func (d *Dispatcher) RegisterScriptChannel(name string, handler ScriptMessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, replaced := d.channels[name]; replaced {
		d.logger.WithFields(map[string]interface{}{"channel": name}).Debug("replacing script channel handler")
	}
	d.channels[name] = handler
}

// UnregisterScriptChannel removes a channel handler.
func (d *Dispatcher) UnregisterScriptChannel(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.channels, name)
}

// HandleScriptMessage is called by the webview glue when a script message
// arrives. Messages for unregistered channels are dropped.
func (d *Dispatcher) HandleScriptMessage(name string, body []byte) {
	d.mu.Lock()
	handler := d.channels[name]
	d.mu.Unlock()

	if handler == nil {
		return
	}
	handler(body)
}

// Subscribe registers a handler for notifications with the given name. It
// returns an unsubscribe function. The emitter does not know its subscribers;
// any component may observe any notification name.
func (d *Dispatcher) Subscribe(name string, handler func(Notification)) func() {
	sub := &subscription{name: name, handler: handler}

	d.mu.Lock()
	d.subscribers = append(d.subscribers, sub)
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, candidate := range d.subscribers {
			if candidate == sub {
				d.subscribers = append(d.subscribers[:i], d.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Post enqueues a notification for delivery. Safe to call from any goroutine;
// posts after Close are dropped.
func (d *Dispatcher) Post(notification Notification) {
	select {
	case <-d.stop:
	case d.queue <- notification:
	}
}

// Close stops the delivery goroutine after draining queued notifications.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.stop)
	})
	<-d.done
}
