package buffer

import (
	"errors"
	"sync"
	"testing"

	"github.com/flowsentinel/intake/internal/models"
)

func pendingEvent(payload string) *models.Event {
	return &models.Event{
		ID:         payload,
		RawPayload: payload,
		Status:     models.StatusPending,
	}
}

func TestEnqueueDrain_Single(t *testing.T) {
	b := New(10, 5)

	ev := pendingEvent("one")
	if err := b.Enqueue(ev); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if ev.Status != models.StatusBuffered {
		t.Errorf("status after enqueue = %s, want buffered", ev.Status)
	}

	if ev.Seq != 1 {
		t.Errorf("Seq = %d, want 1", ev.Seq)
	}

	batch := b.Drain(1)
	if len(batch) != 1 || batch[0] != ev {
		t.Fatalf("Drain(1) = %v, want the enqueued event", batch)
	}

	if b.Len() != 0 {
		t.Errorf("Len() = %d after drain, want 0", b.Len())
	}
}

func TestEnqueue_BufferFull(t *testing.T) {
	const capacity = 5
	b := New(capacity, capacity)

	for i := 0; i < capacity; i++ {
		if err := b.Enqueue(pendingEvent("ev")); err != nil {
			t.Fatalf("Enqueue() %d error = %v", i, err)
		}
	}

	err := b.Enqueue(pendingEvent("overflow"))
	if !errors.Is(err, ErrBufferFull) {
		t.Fatalf("Enqueue() at capacity error = %v, want ErrBufferFull", err)
	}

	if b.Len() != capacity {
		t.Errorf("Len() = %d, want %d", b.Len(), capacity)
	}
}

func TestDrain_PreservesOrder(t *testing.T) {
	b := New(100, 100)

	for i := 0; i < 20; i++ {
		if err := b.Enqueue(pendingEvent("ev")); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	var last uint64
	seen := make(map[uint64]bool)
	for {
		batch := b.Drain(7)
		if len(batch) == 0 {
			break
		}
		for _, ev := range batch {
			if ev.Seq <= last {
				t.Fatalf("sequence %d drained after %d", ev.Seq, last)
			}
			if seen[ev.Seq] {
				t.Fatalf("sequence %d appeared in two batches", ev.Seq)
			}
			seen[ev.Seq] = true
			last = ev.Seq
		}
	}

	if len(seen) != 20 {
		t.Errorf("drained %d events, want 20", len(seen))
	}
}

func TestDrain_Empty(t *testing.T) {
	b := New(10, 5)
	if batch := b.Drain(5); batch != nil {
		t.Errorf("Drain() on empty buffer = %v, want nil", batch)
	}
}

func TestEnqueue_ConcurrentUniqueSequences(t *testing.T) {
	const (
		workers  = 8
		perWorker = 50
	)
	b := New(workers*perWorker, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := b.Enqueue(pendingEvent("ev")); err != nil {
					t.Errorf("Enqueue() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	batch := b.Drain(0)
	if len(batch) != workers*perWorker {
		t.Fatalf("drained %d events, want %d", len(batch), workers*perWorker)
	}

	seen := make(map[uint64]bool, len(batch))
	for _, ev := range batch {
		if ev.Seq == 0 {
			t.Fatal("event drained with unassigned sequence")
		}
		if seen[ev.Seq] {
			t.Fatalf("duplicate sequence %d", ev.Seq)
		}
		seen[ev.Seq] = true
	}
}

func TestWakeup_AtBatchSize(t *testing.T) {
	b := New(10, 3)

	for i := 0; i < 2; i++ {
		if err := b.Enqueue(pendingEvent("ev")); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	select {
	case <-b.Wakeup():
		t.Fatal("wakeup fired below batch size")
	default:
	}

	if err := b.Enqueue(pendingEvent("ev")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	select {
	case <-b.Wakeup():
	default:
		t.Fatal("wakeup did not fire at batch size")
	}
}
