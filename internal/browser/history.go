package browser

import "sync"

// History is a back-navigation stack. It is safe for concurrent use.
type History[T any] struct {
	mu      sync.Mutex
	entries []T
}

// NewHistory creates an empty history.
func NewHistory[T any]() *History[T] {
	return &History[T]{}
}

// Push records v as the most recent entry.
func (h *History[T]) Push(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, v)
}

// Pop removes and returns the most recent entry.
func (h *History[T]) Pop() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero T
	if len(h.entries) == 0 {
		return zero, false
	}
	last := len(h.entries) - 1
	v := h.entries[last]
	h.entries[last] = zero
	h.entries = h.entries[:last]
	return v, true
}

// Len returns the number of entries.
func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Clear drops every entry.
func (h *History[T]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}
