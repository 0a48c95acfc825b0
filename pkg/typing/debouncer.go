// Package typing implements the sending side of typing indicators.
package typing

import (
	"sync"
	"time"
)

// DefaultDelay is how long after the last keystroke a stop is emitted.
const DefaultDelay = time.Second

// Debouncer emits start on every keystroke and a single stop once no
// keystroke arrived for delay. Each keystroke cancels and reschedules the
// pending stop.
type Debouncer struct {
	delay   time.Duration
	onStart func()
	onStop  func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func NewDebouncer(delay time.Duration, onStart, onStop func()) *Debouncer {
	return &Debouncer{delay: delay, onStart: onStart, onStop: onStop}
}

func (d *Debouncer) Keystroke() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
	d.mu.Unlock()

	d.onStart()
}

// Flush emits the pending stop right away, e.g. when the message is sent.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	d.mu.Unlock()

	d.onStop()
}

// Cancel drops the pending stop without emitting it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// fire ignores timers that were superseded after they had already started.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.onStop()
}
