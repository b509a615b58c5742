// Package buffer implements the bounded in-memory queue that decouples
// request latency from sink latency.
package buffer

import (
	"errors"
	"sync"

	"github.com/flowsentinel/intake/internal/metrics"
	"github.com/flowsentinel/intake/internal/models"
)

// ErrBufferFull is the backpressure signal surfaced to callers as a
// retryable rejection.
var ErrBufferFull = errors.New("write buffer full")

// Buffer is a mutex-guarded FIFO with a fixed capacity. Many request
// handlers enqueue concurrently; a single dispatcher drains. Sequence
// numbers are assigned under the lock, so they are unique and strictly
// increasing in enqueue order.
type Buffer struct {
	mu       sync.Mutex
	events   []*models.Event
	capacity int
	nextSeq  uint64

	batchSize int
	wakeup    chan struct{}
}

func New(capacity, batchSize int) *Buffer {
	metrics.BufferCapacity.Set(float64(capacity))
	return &Buffer{
		events:    make([]*models.Event, 0, capacity),
		capacity:  capacity,
		batchSize: batchSize,
		wakeup:    make(chan struct{}, 1),
	}
}

// Enqueue appends the event, assigning its sequence number and moving it to
// buffered. Returns ErrBufferFull at capacity. Never blocks on sink I/O.
func (b *Buffer) Enqueue(ev *models.Event) error {
	b.mu.Lock()
	if len(b.events) >= b.capacity {
		b.mu.Unlock()
		metrics.BufferRejections.Inc()
		return ErrBufferFull
	}

	b.nextSeq++
	ev.Seq = b.nextSeq
	if err := ev.Advance(models.StatusBuffered); err != nil {
		b.mu.Unlock()
		return err
	}
	b.events = append(b.events, ev)
	depth := len(b.events)
	b.mu.Unlock()

	metrics.BufferDepth.Set(float64(depth))

	if depth >= b.batchSize {
		select {
		case b.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

// Drain removes and returns up to max events in enqueue order. The removal
// is atomic with respect to other Drain and Enqueue calls, so no event can
// appear in two batches.
func (b *Buffer) Drain(max int) []*models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.events)
	if n == 0 {
		return nil
	}
	if max > 0 && n > max {
		n = max
	}

	batch := make([]*models.Event, n)
	copy(batch, b.events[:n])
	remaining := copy(b.events, b.events[n:])
	for i := remaining; i < len(b.events); i++ {
		b.events[i] = nil
	}
	b.events = b.events[:remaining]

	metrics.BufferDepth.Set(float64(remaining))
	return batch
}

// Len returns the current occupancy.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Wakeup signals when occupancy crosses the batch-size threshold. The
// dispatcher selects on it alongside its interval ticker.
func (b *Buffer) Wakeup() <-chan struct{} {
	return b.wakeup
}
