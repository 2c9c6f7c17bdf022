package mailbox

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"psprelay/internal/relay"
)

// MetricsRecorder is an optional interface for recording mailbox metrics.
type MetricsRecorder interface {
	RecordEnqueued(ctx context.Context, option relay.DeliveryOption)
	RecordDrained(ctx context.Context, count int)
	RecordCleared(ctx context.Context, count int)
	RecordMailboxDepth(ctx context.Context, depth int64)
}

// Registry is the process-wide map from recipient id to Mailbox.
// Mailboxes are created lazily on first reference and never removed for the
// life of the process; Clear empties contents, not the entry.
type Registry struct {
	mu    sync.RWMutex
	boxes map[string]*Mailbox

	logger  *slog.Logger
	metrics MetricsRecorder

	enqueued atomic.Int64
	drained  atomic.Int64
	cleared  atomic.Int64

	shutdown chan struct{}
	closed   atomic.Bool
}

// Stats holds registry counters since process start.
type Stats struct {
	Enqueued int64 // messages accepted into mailboxes
	Drained  int64 // messages handed to consumers
	Cleared  int64 // messages discarded by clear requests
	Depth    int64 // messages currently queued across all mailboxes
}

// NewRegistry creates a mailbox registry. metrics may be nil.
func NewRegistry(metrics MetricsRecorder) *Registry {
	r := &Registry{
		boxes:    make(map[string]*Mailbox),
		logger:   slog.With("component", "mailbox"),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}
	if metrics != nil {
		go r.reportDepth()
	}
	return r
}

// reportDepth periodically reports the total queue depth metric.
func (r *Registry) reportDepth() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.shutdown:
			return
		case <-ticker.C:
			r.metrics.RecordMailboxDepth(context.Background(), r.Depth())
		}
	}
}

// box returns the mailbox for id, creating it if absent.
func (r *Registry) box(id string) *Mailbox {
	r.mu.RLock()
	b, ok := r.boxes[id]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.boxes[id]; ok {
		return b
	}
	b = &Mailbox{}
	r.boxes[id] = b
	r.logger.Debug("Mailbox created", "telematikId", id)
	return b
}

// Enqueue appends a message to the recipient's mailbox.
func (r *Registry) Enqueue(id string, m relay.Message) {
	r.box(id).Enqueue(m)
	r.enqueued.Add(1)
	if r.metrics != nil {
		r.metrics.RecordEnqueued(context.Background(), m.Option)
	}
}

// DrainAll atomically removes and returns all messages queued for id,
// oldest first. Returns an empty slice if none are queued.
func (r *Registry) DrainAll(id string) []relay.Message {
	msgs := r.box(id).DrainAll()
	if len(msgs) > 0 {
		r.drained.Add(int64(len(msgs)))
		if r.metrics != nil {
			r.metrics.RecordDrained(context.Background(), len(msgs))
		}
	}
	return msgs
}

// RequeueFront restores undelivered messages at the head of the recipient's
// queue. The drained counter is rolled back so Stats only counts messages
// that actually reached a consumer.
func (r *Registry) RequeueFront(id string, msgs []relay.Message) {
	if len(msgs) == 0 {
		return
	}
	r.box(id).RequeueFront(msgs)
	r.drained.Add(-int64(len(msgs)))
}

// Clear discards all messages queued for id without returning them.
func (r *Registry) Clear(id string) {
	n := r.box(id).Clear()
	if n > 0 {
		r.cleared.Add(int64(n))
		if r.metrics != nil {
			r.metrics.RecordCleared(context.Background(), n)
		}
		r.logger.Info("Mailbox cleared", "telematikId", id, "discarded", n)
	}
}

// Len returns the current queue depth for id.
func (r *Registry) Len(id string) int {
	return r.box(id).Len()
}

// Depth returns the total number of queued messages across all mailboxes.
func (r *Registry) Depth() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, b := range r.boxes {
		total += int64(b.Len())
	}
	return total
}

// Stats returns current registry statistics.
func (r *Registry) Stats() Stats {
	return Stats{
		Enqueued: r.enqueued.Load(),
		Drained:  r.drained.Load(),
		Cleared:  r.cleared.Load(),
		Depth:    r.Depth(),
	}
}

// Close stops the depth reporter. Queued messages are in-memory only and are
// discarded with the process.
func (r *Registry) Close() {
	if r.closed.Swap(true) {
		return
	}
	close(r.shutdown)
}
