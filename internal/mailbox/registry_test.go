package mailbox

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"psprelay/internal/relay"
)

func TestRegistry_LazyCreationAndFIFO(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil)
	defer r.Close()

	// Draining an untouched recipient creates the mailbox and returns empty.
	if got := r.DrainAll("NEW"); len(got) != 0 {
		t.Fatalf("expected empty drain for fresh recipient, got %d", len(got))
	}

	for i := 0; i < 3; i++ {
		r.Enqueue("ABC123", msg(fmt.Sprintf("m%d", i)))
	}
	if r.Len("ABC123") != 3 {
		t.Fatalf("expected depth 3, got %d", r.Len("ABC123"))
	}

	msgs := r.DrainAll("ABC123")
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if want := fmt.Sprintf("m%d", i); m.ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, m.ID)
		}
	}
	if r.Len("ABC123") != 0 {
		t.Errorf("expected empty mailbox after drain, got %d", r.Len("ABC123"))
	}
}

func TestRegistry_RecipientIsolation(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil)
	defer r.Close()

	r.Enqueue("A", msg("a0"))
	r.Enqueue("B", msg("b0"))
	r.Enqueue("B", msg("b1"))

	if got := r.DrainAll("A"); len(got) != 1 || got[0].ID != "a0" {
		t.Errorf("unexpected drain for A: %v", got)
	}
	if r.Len("B") != 2 {
		t.Errorf("draining A must not touch B, depth %d", r.Len("B"))
	}
}

func TestRegistry_ClearThenDrain(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil)
	defer r.Close()

	for i := 0; i < 3; i++ {
		r.Enqueue("X", msg(fmt.Sprintf("m%d", i)))
	}
	r.Clear("X")

	if got := r.DrainAll("X"); len(got) != 0 {
		t.Fatalf("expected drain after clear to return 0 messages, got %d", len(got))
	}
}

func TestRegistry_Stats(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil)
	defer r.Close()

	r.Enqueue("X", msg("m0"))
	r.Enqueue("X", msg("m1"))
	r.Enqueue("Y", msg("m2"))
	r.DrainAll("X")
	r.Clear("Y")

	stats := r.Stats()
	if stats.Enqueued != 3 {
		t.Errorf("expected 3 enqueued, got %d", stats.Enqueued)
	}
	if stats.Drained != 2 {
		t.Errorf("expected 2 drained, got %d", stats.Drained)
	}
	if stats.Cleared != 1 {
		t.Errorf("expected 1 cleared, got %d", stats.Cleared)
	}
	if stats.Depth != 0 {
		t.Errorf("expected depth 0, got %d", stats.Depth)
	}
}

func TestRegistry_RequeueFrontRollsBackDrained(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil)
	defer r.Close()

	r.Enqueue("X", msg("m0"))
	r.Enqueue("X", msg("m1"))
	drained := r.DrainAll("X")
	r.RequeueFront("X", drained)

	stats := r.Stats()
	if stats.Drained != 0 {
		t.Errorf("expected drained counter rolled back to 0, got %d", stats.Drained)
	}
	if r.Len("X") != 2 {
		t.Errorf("expected both messages back, got depth %d", r.Len("X"))
	}
}

// countingMetrics verifies the MetricsRecorder hooks fire.
type countingMetrics struct {
	enqueued atomic.Int64
	drained  atomic.Int64
	cleared  atomic.Int64
}

func (c *countingMetrics) RecordEnqueued(ctx context.Context, option relay.DeliveryOption) {
	c.enqueued.Add(1)
}

func (c *countingMetrics) RecordDrained(ctx context.Context, count int) {
	c.drained.Add(int64(count))
}

func (c *countingMetrics) RecordCleared(ctx context.Context, count int) {
	c.cleared.Add(int64(count))
}

func (c *countingMetrics) RecordMailboxDepth(ctx context.Context, depth int64) {}

func TestRegistry_MetricsHooks(t *testing.T) {
	t.Parallel()
	m := &countingMetrics{}
	r := NewRegistry(m)
	defer r.Close()

	r.Enqueue("X", msg("m0"))
	r.Enqueue("X", msg("m1"))
	r.DrainAll("X")
	r.Enqueue("X", msg("m2"))
	r.Clear("X")

	if m.enqueued.Load() != 3 {
		t.Errorf("expected 3 enqueued recordings, got %d", m.enqueued.Load())
	}
	if m.drained.Load() != 2 {
		t.Errorf("expected 2 drained recordings, got %d", m.drained.Load())
	}
	if m.cleared.Load() != 1 {
		t.Errorf("expected 1 cleared recording, got %d", m.cleared.Load())
	}
}
