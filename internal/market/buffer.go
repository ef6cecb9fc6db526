package market

import "sync"

// BarBuffer holds a bounded, append-only window of bars for one instrument.
// Oldest bars are trimmed once capacity is exceeded. A bar carrying the same
// timestamp as the latest entry replaces it, which is how live kline updates
// for a still-open interval arrive.
type BarBuffer struct {
	mu       sync.RWMutex
	bars     []Bar
	capacity int
}

// NewBarBuffer creates a buffer retaining at most capacity bars.
func NewBarBuffer(capacity int) *BarBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &BarBuffer{
		bars:     make([]Bar, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a bar, replacing the newest entry when timestamps match.
func (b *BarBuffer) Push(bar Bar) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.bars); n > 0 && b.bars[n-1].Time.Equal(bar.Time) {
		b.bars[n-1] = bar
		return
	}
	b.bars = append(b.bars, bar)
	if len(b.bars) > b.capacity {
		copy(b.bars, b.bars[len(b.bars)-b.capacity:])
		b.bars = b.bars[:b.capacity]
	}
}

// Bars returns a copy of the current window, oldest first.
func (b *BarBuffer) Bars() []Bar {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Bar, len(b.bars))
	copy(out, b.bars)
	return out
}

// Len reports how many bars are currently buffered.
func (b *BarBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bars)
}

// Last returns the newest bar and whether the buffer is non-empty.
func (b *BarBuffer) Last() (Bar, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bars) == 0 {
		return Bar{}, false
	}
	return b.bars[len(b.bars)-1], true
}
