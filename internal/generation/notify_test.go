package generation

import (
	"sync"
	"testing"
	"time"
)

type countingSink struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSink) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestSignalsAreCoalesced(t *testing.T) {
	sink := &countingSink{}
	n := newNotifier(20*time.Millisecond, sink.fire)
	defer n.close()

	// A burst of deltas within one window yields a single callback.
	for i := 0; i < 50; i++ {
		n.signal()
	}

	deadline := time.Now().Add(time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// Let any stray extra callback land before asserting.
	time.Sleep(40 * time.Millisecond)

	if got := sink.count(); got != 1 {
		t.Errorf("callbacks = %d, want 1 for a single burst", got)
	}
}

func TestFlushIsImmediateAndDropsScheduled(t *testing.T) {
	sink := &countingSink{}
	n := newNotifier(time.Hour, sink.fire) // window long enough to never fire on its own
	defer n.close()

	n.signal()
	n.flush()

	if got := sink.count(); got != 1 {
		t.Fatalf("callbacks = %d, want 1 immediately after flush", got)
	}

	// The scheduled callback was absorbed by the flush; nothing trails it.
	time.Sleep(30 * time.Millisecond)
	if got := sink.count(); got != 1 {
		t.Errorf("callbacks = %d after waiting, want still 1", got)
	}
}

func TestClosedNotifierIsSilent(t *testing.T) {
	sink := &countingSink{}
	n := newNotifier(50*time.Millisecond, sink.fire)

	n.signal()
	n.close()

	time.Sleep(80 * time.Millisecond)
	if got := sink.count(); got != 0 {
		t.Errorf("callbacks = %d after close, want 0", got)
	}

	n.signal()
	n.flush()
	if got := sink.count(); got != 0 {
		t.Errorf("closed notifier still fired: %d", got)
	}
}

func TestNilCallbackIsSafe(t *testing.T) {
	n := newNotifier(time.Millisecond, nil)
	defer n.close()
	n.signal()
	n.flush()
}
