package bridge

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid value bursts into a single callback carrying the
// last value. The timer is single-shot and rearmed on every Trigger, so the
// callback fires only after a full quiet period.
type Debouncer struct {
	quiet time.Duration
	fire  func(value string)

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a Debouncer that calls fire after quiet elapses
// without another Trigger.
func NewDebouncer(quiet time.Duration, fire func(value string)) *Debouncer {
	return &Debouncer{
		quiet: quiet,
		fire:  fire,
	}
}

// Trigger records value and rearms the quiet-period timer.
func (d *Debouncer) Trigger(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, func() {
		d.fire(value)
	})
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
