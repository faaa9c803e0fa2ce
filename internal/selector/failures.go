// internal/selector/failures.go
package selector

import "sync"

// DefaultEscalationThreshold is the miss count at which escalation starts.
const DefaultEscalationThreshold = 2

// FailureTracker counts consecutive resolution misses per (page type, target).
// Counters live only as long as the tracker.
type FailureTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewFailureTracker creates a tracker with all counters at zero.
func NewFailureTracker() *FailureTracker {
	return &FailureTracker{counts: make(map[string]int)}
}

// Increment bumps the counter for the key and returns the new value.
func (f *FailureTracker) Increment(pageType PageType, target Target) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := CacheKey(pageType, target)
	f.counts[key]++
	return f.counts[key]
}

// Reset sets the counter for the key back to zero.
func (f *FailureTracker) Reset(pageType PageType, target Target) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counts, CacheKey(pageType, target))
}

// Count returns the current counter for the key.
func (f *FailureTracker) Count(pageType PageType, target Target) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[CacheKey(pageType, target)]
}

// Snapshot returns a copy of all non-zero counters keyed by cache key.
func (f *FailureTracker) Snapshot() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.counts))
	for k, v := range f.counts {
		out[k] = v
	}
	return out
}
