package market

import (
	"testing"
	"time"
)

func barAt(step int, close float64) Bar {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return Bar{Time: start.Add(time.Duration(step) * time.Minute), Close: close}
}

func TestBufferTrimsOldest(t *testing.T) {
	buf := NewBarBuffer(3)
	for i := 0; i < 5; i++ {
		buf.Push(barAt(i, float64(i)))
	}
	if buf.Len() != 3 {
		t.Fatalf("len = %d, want 3", buf.Len())
	}
	bars := buf.Bars()
	if bars[0].Close != 2 || bars[2].Close != 4 {
		t.Fatalf("window = [%v..%v], want [2..4]", bars[0].Close, bars[2].Close)
	}
}

func TestBufferReplacesSameTimestamp(t *testing.T) {
	buf := NewBarBuffer(10)
	buf.Push(barAt(0, 100))
	buf.Push(barAt(0, 101))
	if buf.Len() != 1 {
		t.Fatalf("len = %d, want 1 after same-timestamp push", buf.Len())
	}
	last, ok := buf.Last()
	if !ok || last.Close != 101 {
		t.Fatalf("last = %v ok=%v, want updated close 101", last.Close, ok)
	}
}

func TestBufferLastEmpty(t *testing.T) {
	buf := NewBarBuffer(4)
	if _, ok := buf.Last(); ok {
		t.Fatalf("expected no last bar on empty buffer")
	}
}
