package message

import "sync/atomic"

// State is a Message's lifecycle stage: NotSent→Sent→Complete,
// NotSent→Cancelled. The two transitions out of NotSent (MarkSent,
// MarkCancelled) are atomic compare-and-swaps; Complete and
// CompleteCancelled store their final state with a plain atomic store and
// do not check the state they replace.
type State uint32

const (
	NotSent State = iota
	Sent
	Complete
	Cancelled
)

// NoDB is the sentinel db index for commands that don't depend on the
// currently selected database (e.g. AUTH, PING, SELECT itself).
const NoDB = -1

// Flags bitmask for the per-Message behavior toggles in spec §3.
type Flags uint8

const (
	// MustSucceed: a failing reply for this message is a fatal protocol
	// error, tearing down the connection.
	MustSucceed Flags = 1 << iota
	// DuringInit: allowed onto the wire while the connection is held
	// (pre-handshake).
	DuringInit
	// QueueJump: bypasses the held gate even outside of init, without
	// reordering against an in-progress writer.
	QueueJump
)

// Message is one caller request: its wire payload, target db, optional
// expected-literal success criterion, behavior flags, lifecycle state, and
// the Sink that will receive its reply.
type Message struct {
	Cmd      string
	Args     []interface{}
	DB       int
	Expected []byte
	Flags    Flags

	state uint32
	Sink  Sink
}

// NewMessage constructs a Message in state NotSent.
func NewMessage(cmd string, args []interface{}, db int, sink Sink) *Message {
	return &Message{Cmd: cmd, Args: args, DB: db, Sink: sink}
}

// DBAgnostic reports whether this message should be exempt from the
// current-db reconciliation the writer performs before sending it.
func (m *Message) DBAgnostic() bool { return m.DB == NoDB }

// State returns the current lifecycle stage.
func (m *Message) State() State { return State(atomic.LoadUint32(&m.state)) }

// MarkSent attempts the NotSent→Sent transition. Returns false if the
// message was concurrently cancelled (the writer must skip it).
func (m *Message) MarkSent() bool {
	return atomic.CompareAndSwapUint32(&m.state, uint32(NotSent), uint32(Sent))
}

// MarkCancelled attempts the NotSent→Cancelled transition. Returns false
// if the message was already sent (sent messages can't be cancelled: the
// reply still consumes a slot in the sent queue).
func (m *Message) MarkCancelled() bool {
	return atomic.CompareAndSwapUint32(&m.state, uint32(NotSent), uint32(Cancelled))
}

// Complete sets the state to Complete and dispatches the reply to the
// Message's Sink. It does not check the prior state; it is meant to be
// called at most once per message, after MarkSent, which the pending
// matcher (package conn) guarantees by construction.
func (m *Message) Complete(r Reply) {
	atomic.StoreUint32(&m.state, uint32(Complete))
	if m.Sink != nil {
		m.Sink.Complete(r)
	}
}

// CompleteCancelled marks a never-sent or never-answered message
// Cancelled and completes its sink with the synthetic Cancelled reply.
func (m *Message) CompleteCancelled() {
	atomic.StoreUint32(&m.state, uint32(Cancelled))
	if m.Sink != nil {
		m.Sink.Complete(CancelledReply)
	}
}

// HasFlag reports whether f is set.
func (m *Message) HasFlag(f Flags) bool { return m.Flags&f != 0 }
