package conn

import (
	"sync"

	"github.com/rkvclient/pipeline/message"
)

// unsentQueue holds Messages enqueued before the writer has consumed them
// (spec §3 "Pending Queues"). Guarded by a plain mutex: callers append,
// the writer drains the whole thing at once.
type unsentQueue struct {
	mu    sync.Mutex
	items []*message.Message
}

func (q *unsentQueue) push(m *message.Message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
}

func (q *unsentQueue) len() int {
	q.mu.Lock()
	n := len(q.items)
	q.mu.Unlock()
	return n
}

// drain returns everything queued and empties the queue, for the writer to
// serialize onto the wire.
func (q *unsentQueue) drain() []*message.Message {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil
	}
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// drainCancel empties the queue, completing every Message with Cancelled —
// used on abort and on explicit cancel-unsent (spec §5 "Cancellation").
func (q *unsentQueue) drainCancel() {
	for _, m := range q.drain() {
		m.CompleteCancelled()
	}
}

// drainWritable pulls the messages eligible to be written right now. While
// held is true only DuringInit/QueueJump messages come out; everything
// else stays queued, in order, for pumpUnsent to release once the held
// gate drops (spec §4.D "Held gate").
func (q *unsentQueue) drainWritable(held bool) []*message.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !held {
		if len(q.items) == 0 {
			return nil
		}
		items := q.items
		q.items = nil
		return items
	}
	var writable, kept []*message.Message
	for _, m := range q.items {
		if m.HasFlag(message.DuringInit) || m.HasFlag(message.QueueJump) {
			writable = append(writable, m)
		} else {
			kept = append(kept, m)
		}
	}
	q.items = kept
	return writable
}

// sentQueue is the strict FIFO of Messages written to the wire and
// awaiting reply (spec §3 "Pending Queues"). Its mutex doubles as a
// condition variable for "drain-first" writers (spec §9) — a writer that
// needs the queue empty before proceeding (e.g. QUIT) calls waitEmpty.
type sentQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []*message.Message
}

func newSentQueue() *sentQueue {
	q := &sentQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *sentQueue) push(m *message.Message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
}

// pop removes and returns the oldest entry, or nil if the queue is empty.
// Signals the drain condition exactly when the queue becomes empty, per
// spec §4.C "After each dequeue from sent, if it becomes empty, signal the
// drain condition."
func (q *sentQueue) pop() *message.Message {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil
	}
	m := q.items[0]
	q.items = q.items[1:]
	empty := len(q.items) == 0
	q.mu.Unlock()
	if empty {
		q.cond.Broadcast()
	}
	return m
}

func (q *sentQueue) len() int {
	q.mu.Lock()
	n := len(q.items)
	q.mu.Unlock()
	return n
}

// waitEmpty blocks until the queue is empty.
func (q *sentQueue) waitEmpty() {
	q.mu.Lock()
	for len(q.items) != 0 {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// peekOldest returns the oldest in-flight message without removing it, for
// timeout-detail error messages (spec §6 "include-detail-in-timeouts").
func (q *sentQueue) peekOldest() *message.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// drainTerminate empties the queue, completing every Message with a
// synthetic termination error — used on shutdown (spec §4.D "Shutdown
// path").
func (q *sentQueue) drainTerminate(reply message.Reply) {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	for _, m := range items {
		m.Complete(reply)
	}
	q.cond.Broadcast()
}
