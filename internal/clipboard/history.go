package clipboard

import (
	"container/ring"
	"sync"
)

// DefaultHistorySize bounds the in-memory clipboard history.
const DefaultHistorySize = 50

// History keeps the most recent accepted clipboard texts. It lives only as
// long as the process.
type History struct {
	mu    sync.Mutex
	ring  *ring.Ring
	size  int
	count int
	last  string
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		ring: ring.New(size),
		size: size,
	}
}

// Add appends text unless it equals the newest entry. It reports whether
// the text was stored.
func (h *History) Add(text string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count > 0 && h.last == text {
		return false
	}
	h.ring.Value = text
	h.ring = h.ring.Next()
	h.last = text
	if h.count < h.size {
		h.count++
	}
	return true
}

// GetLast returns up to n entries, oldest first and newest last. n <= 0
// returns everything.
func (h *History) GetLast(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || n > h.count {
		n = h.count
	}
	items := make([]string, n)
	// h.ring points at the slot after the newest entry.
	r := h.ring.Prev()
	for i := n - 1; i >= 0; i-- {
		items[i] = r.Value.(string)
		r = r.Prev()
	}
	return items
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
