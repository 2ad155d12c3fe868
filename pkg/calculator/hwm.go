package calculator

import "sync"

// HighWaterTracker maintains the maximum observed price per symbol.
// State is scoped to one tracker instance; mutations are serialized so a
// calculator may be shared across goroutines.
type HighWaterTracker struct {
	mu    sync.Mutex
	marks map[string]float64
}

// NewHighWaterTracker creates an empty tracker.
func NewHighWaterTracker() *HighWaterTracker {
	return &HighWaterTracker{marks: make(map[string]float64)}
}

// Observe records a price observation and returns the running maximum for
// the symbol. The first observation seeds the mark; equal prices leave the
// mark unchanged.
func (t *HighWaterTracker) Observe(symbol string, price float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	mark, ok := t.marks[symbol]
	if !ok || price > mark {
		mark = price
		t.marks[symbol] = mark
	}
	return mark
}

// Get returns the tracked mark for a symbol, if any.
func (t *HighWaterTracker) Get(symbol string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	mark, ok := t.marks[symbol]
	return mark, ok
}

// Reset clears the marks for the given symbols, or all marks when none
// are given. A cleared symbol reseeds from its next observation.
func (t *HighWaterTracker) Reset(symbols ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(symbols) == 0 {
		t.marks = make(map[string]float64)
		return
	}
	for _, symbol := range symbols {
		delete(t.marks, symbol)
	}
}
