// Package mailbox provides per-recipient FIFO queues for delivery
// notifications awaiting a consumer.
package mailbox

import (
	"sync"

	"psprelay/internal/relay"
)

// Mailbox is an ordered queue of messages for one recipient.
// Insertion order equals arrival order; a drain never reorders,
// drops or duplicates a message.
type Mailbox struct {
	mu   sync.Mutex
	msgs []relay.Message
}

// Enqueue appends a message. Never blocks, never drops.
func (b *Mailbox) Enqueue(m relay.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, m)
}

// DrainAll removes and returns all queued messages, oldest first.
// A concurrent enqueue is either included in this drain or left for the
// next one, never lost.
func (b *Mailbox) DrainAll() []relay.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.msgs
	b.msgs = nil
	return out
}

// RequeueFront restores messages at the head of the queue, preserving their
// relative order. Used after a live push failed mid-stream so that the
// undelivered remainder stays ahead of anything enqueued since the drain.
func (b *Mailbox) RequeueFront(msgs []relay.Message) {
	if len(msgs) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(msgs[:len(msgs):len(msgs)], b.msgs...)
}

// Clear discards all queued messages and returns how many were dropped.
func (b *Mailbox) Clear() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.msgs)
	b.msgs = nil
	return n
}

// Len returns the current queue depth.
func (b *Mailbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}
