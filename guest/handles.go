package guest

import (
	"sync"

	harness "github.com/wippyai/canvas-harness"
)

// handleTable maps the i32 handles a guest holds to host senders.
// Handle 0 is never issued, so guests can use it as "unset".
type handleTable struct {
	mu      sync.Mutex
	entries []harness.Sender
	free    []uint32
}

func (t *handleTable) insert(s harness.Sender) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.free); n > 0 {
		h := t.free[n-1]
		t.free = t.free[:n-1]
		t.entries[h-1] = s
		return h
	}
	t.entries = append(t.entries, s)
	return uint32(len(t.entries))
}

func (t *handleTable) get(h uint32) (harness.Sender, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h == 0 || int(h) > len(t.entries) {
		return nil, false
	}
	s := t.entries[h-1]
	return s, s != nil
}

func (t *handleTable) remove(h uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h == 0 || int(h) > len(t.entries) || t.entries[h-1] == nil {
		return false
	}
	t.entries[h-1] = nil
	t.free = append(t.free, h)
	return true
}

func (t *handleTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries) - len(t.free)
}
