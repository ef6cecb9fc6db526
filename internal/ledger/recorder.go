package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType distinguishes trade lifecycle events.
type EventType string

const (
	// EventEntry marks a position being opened.
	EventEntry EventType = "entry"
	// EventExit marks a position being closed with realized P&L.
	EventExit EventType = "exit"
)

// TradeEvent is one structured trade-lifecycle record suitable for an
// external ledger or log sink.
type TradeEvent struct {
	Type    EventType `json:"type"`
	Symbol  string    `json:"symbol"`
	Side    Side      `json:"side"`
	Price   float64   `json:"price"`
	Size    float64   `json:"size"`
	PnL     float64   `json:"pnl,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	OrderID string    `json:"order_id,omitempty"`
	Ts      time.Time `json:"ts"`
}

// TradeRecorder captures trade lifecycle events for later inspection.
type TradeRecorder interface {
	Record(TradeEvent)
}

// NopRecorder discards every event.
type NopRecorder struct{}

// Record implements TradeRecorder.
func (NopRecorder) Record(TradeEvent) {}

// JSONLRecorder appends trade events as JSON lines for later analysis.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder creates/opens the target file and returns a recorder.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single event to the underlying JSONL file.
func (r *JSONLRecorder) Record(event TradeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(event)
}

// Close flushes and closes the file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
