package retrybuf

import (
	"sync"
	"time"
)

// ForwardFunc attempts to deliver one buffered payload downstream. It returns
// false when the downstream refused the payload or the attempt faulted.
type ForwardFunc func(payload []byte) bool

// Buffer holds payloads whose delivery failed, in arrival order, and re-drives
// them from the head on a periodic drain tick. Draining halts at the first
// payload that still fails, so order is never violated.
type Buffer struct {
	mu        sync.Mutex
	entries   [][]byte
	capacity  int
	interval  time.Duration
	lastDrain time.Time
	dropped   int64
}

// New creates a buffer that drains at most once per interval. A capacity of 0
// leaves the buffer unbounded; otherwise the oldest entry is dropped on
// overflow so the freshest readings keep flowing.
func New(interval time.Duration, capacity int) *Buffer {
	return &Buffer{
		capacity: capacity,
		interval: interval,
	}
}

// Enqueue appends a payload at the tail, evicting the head first when the
// buffer is at capacity.
func (b *Buffer) Enqueue(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capacity > 0 && len(b.entries) >= b.capacity {
		b.entries = b.entries[1:]
		b.dropped++
	}
	b.entries = append(b.entries, payload)
}

// DrainTick re-attempts delivery of buffered payloads in FIFO order. It is a
// no-op until interval has elapsed since the previous drain. The first payload
// forward rejects stays at the head for the next tick; nothing behind it is
// attempted. Returns the number of payloads delivered.
func (b *Buffer) DrainTick(now time.Time, forward ForwardFunc) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastDrain) < b.interval {
		return 0
	}
	b.lastDrain = now

	delivered := 0
	for len(b.entries) > 0 {
		if !forward(b.entries[0]) {
			break
		}
		b.entries = b.entries[1:]
		delivered++
	}
	return delivered
}

// Len returns the number of buffered payloads.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Dropped returns how many payloads were evicted by the overflow policy.
func (b *Buffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
