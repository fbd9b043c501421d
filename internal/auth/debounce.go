package auth

import (
	"sync"
	"time"
)

// pendingCallback pairs a field's timer with its callback so Flush can
// run the callback ahead of the timer.
type pendingCallback struct {
	timer *time.Timer
	fn    func()
}

// Debouncer schedules per-field validation callbacks. Each field owns an
// independent timer: a new keystroke cancels and restarts only its own
// field's timer, so typing in one field never delays another's feedback.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*pendingCallback
}

// NewDebouncer creates a Debouncer with the given delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]*pendingCallback),
	}
}

// Schedule arranges for fn to run after the delay, cancelling any pending
// callback for the same field first.
func (d *Debouncer) Schedule(field string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[field]; ok {
		p.timer.Stop()
	}

	timer := time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.pending, field)
		d.mu.Unlock()
		fn()
	})
	d.pending[field] = &pendingCallback{timer: timer, fn: fn}
}

// Flush runs the field's pending callback immediately, if any. Used when
// a field blurs or the form submits before the delay elapses.
func (d *Debouncer) Flush(field string) {
	d.mu.Lock()
	p, ok := d.pending[field]
	if ok {
		p.timer.Stop()
		delete(d.pending, field)
	}
	d.mu.Unlock()

	if ok {
		p.fn()
	}
}

// Cancel drops any pending callback for the field.
func (d *Debouncer) Cancel(field string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[field]; ok {
		p.timer.Stop()
		delete(d.pending, field)
	}
}

// Stop cancels all pending callbacks. The Debouncer remains usable.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for field, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, field)
	}
}
