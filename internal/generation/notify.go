package generation

import (
	"sync"
	"time"
)

// notifier coalesces high-frequency change signals into at most one
// callback per interval, with an immediate path for lifecycle transitions.
// A generation can emit tens of content deltas per second; observers only
// need to repaint at the batched rate, but a start, completion, error, or
// stop must never wait behind the batch window.
type notifier struct {
	interval time.Duration
	fn       func()

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

func newNotifier(interval time.Duration, fn func()) *notifier {
	if fn == nil {
		fn = func() {}
	}
	return &notifier{interval: interval, fn: fn}
}

// signal schedules a callback if none is already scheduled. Called on every
// content delta; only the first call per window arms the timer.
func (n *notifier) signal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || n.timer != nil {
		return
	}
	n.timer = time.AfterFunc(n.interval, func() {
		n.mu.Lock()
		n.timer = nil
		closed := n.closed
		n.mu.Unlock()
		if !closed {
			n.fn()
		}
	})
}

// flush fires the callback immediately and drops any scheduled one. Used
// for lifecycle transitions.
func (n *notifier) flush() {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	closed := n.closed
	n.mu.Unlock()
	if !closed {
		n.fn()
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
