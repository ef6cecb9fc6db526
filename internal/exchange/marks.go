package exchange

import "sync"

// markTable is a concurrency-safe last-price map shared between the feed
// consumer and the monitor loop.
type markTable struct {
	mu   sync.RWMutex
	last map[string]float64
}

func newMarkTable() *markTable {
	return &markTable{last: make(map[string]float64)}
}

func (t *markTable) set(symbol string, price float64) {
	t.mu.Lock()
	t.last[symbol] = price
	t.mu.Unlock()
}

func (t *markTable) get(symbol string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	price, ok := t.last[symbol]
	return price, ok
}
