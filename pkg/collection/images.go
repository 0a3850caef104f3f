package collection

import "sync"

// ImageFailures tracks thumbnail load failures for one screen. Each id
// counts its failed loads. Once the count exceeds the retry budget the
// screen shows a placeholder instead of retrying.
type ImageFailures struct {
	mu         sync.Mutex
	maxRetries int
	failures   map[string]int
}

// NewImageFailures creates a tracker. maxRetries of zero falls back after
// the first failure.
func NewImageFailures(maxRetries int) *ImageFailures {
	return &ImageFailures{
		maxRetries: max(0, maxRetries),
		failures:   make(map[string]int),
	}
}

// MarkFailed records a failed load of id and returns its failure count.
func (f *ImageFailures) MarkFailed(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[id]++
	return f.failures[id]
}

// Retries returns how many loads of id have failed.
func (f *ImageFailures) Retries(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[id]
}

// ShouldFallback reports whether id exhausted its retry budget.
func (f *ImageFailures) ShouldFallback(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.failures[id]
	return ok && n > f.maxRetries
}

// Reset forgets id, e.g. after its image was replaced.
func (f *ImageFailures) Reset(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, id)
}

// Len returns the number of ids with at least one failure.
func (f *ImageFailures) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.failures)
}
