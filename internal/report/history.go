package report

import "sync"

// History keeps the most recent results in a fixed-size ring
type History struct {
	mu      sync.RWMutex
	results []*Result
	maxSize int
}

// NewHistory creates a history holding at most maxSize results
func NewHistory(maxSize int) *History {
	if maxSize < 1 {
		maxSize = 1
	}
	return &History{
		results: make([]*Result, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record appends r, dropping the oldest result when full
func (h *History) Record(r *Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.results) >= h.maxSize {
		copy(h.results, h.results[1:])
		h.results = h.results[:len(h.results)-1]
	}
	h.results = append(h.results, r)
}

// Recent returns up to n results, newest first. n <= 0 returns all.
func (h *History) Recent(n int) []*Result {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.results) {
		n = len(h.results)
	}
	out := make([]*Result, n)
	for i := 0; i < n; i++ {
		out[i] = h.results[len(h.results)-1-i]
	}
	return out
}

// Latest returns the newest successful result, or nil
func (h *History) Latest() *Result {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.results) - 1; i >= 0; i-- {
		if h.results[i].OK() {
			return h.results[i]
		}
	}
	return nil
}

// Len returns the number of results held
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.results)
}
