// Package dedupe defines the interface for at-most-once attribution tracking.
//
// The aggregator uses it to guarantee each issue number is credited to a
// single closer exactly once, even when the provider returns duplicate
// timeline entries across pages.
package dedupe

import (
	"sync"
)

// Tracker records seen keys to ensure at-most-once counting.
type Tracker interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(key string) bool

	// Size returns the current number of recorded keys.
	Size() int
}

// inMemoryTracker implements Tracker with a bounded map. When the bound is
// reached the oldest keys are evicted in insertion order.
type inMemoryTracker struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSize int // 0 or negative = unbounded
}

// Option applies a configuration option to the tracker.
type Option func(*inMemoryTracker)

// WithMaxSize bounds the number of keys kept in memory.
func WithMaxSize(size int) Option {
	return func(t *inMemoryTracker) {
		t.maxSize = size
	}
}

// NewTracker creates a new in-memory tracker.
func NewTracker(opts ...Option) Tracker {
	t := &inMemoryTracker{
		seen: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *inMemoryTracker) SeenAndRecord(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[key]; ok {
		return true
	}

	if t.maxSize > 0 && len(t.seen) >= t.maxSize {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.seen, oldest)
	}

	t.seen[key] = struct{}{}
	if t.maxSize > 0 {
		t.order = append(t.order, key)
	}
	return false
}

func (t *inMemoryTracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
