// Package message carries one request's wire payload, the typed sink that
// converts its reply into a caller-visible value, and its lifecycle state.
// It sits between the wire codec (package resp) and the connection engine
// (package conn): resp decodes bytes into a Reply, conn's pending matcher
// pairs that Reply with the oldest unmatched Message and hands it to the
// Message's Sink.
package message

// Kind tags the variant carried by a Reply.
type Kind uint8

const (
	// KindStatus is a RESP "+" simple status line.
	KindStatus Kind = iota
	// KindError is a RESP "-" error line; Err holds the server's text.
	KindError
	// KindInteger is a RESP ":" value.
	KindInteger
	// KindBulk is a RESP "$" value; Null distinguishes a -1 length.
	KindBulk
	// KindArray is a RESP "*" value; Null distinguishes a -1 count.
	KindArray
	// KindPass is synthetic: the matcher compared a Status reply against
	// a Message's expected literal and it matched.
	KindPass
	// KindCancelled is synthetic: the Message never made it to the wire,
	// or it was queued in a transaction that was discarded or aborted.
	KindCancelled
	// KindShutdown is synthetic: the Message was written and awaiting a
	// reply when the connection tore down — spec §4.D "Shutdown path".
	KindShutdown
)

// Reply is the tagged variant decoded off the wire (or synthesized by the
// pending matcher). Exactly one of the Kind-appropriate fields is
// meaningful for a given Kind.
type Reply struct {
	Kind    Kind
	Status  []byte
	Err     string
	Integer int64
	Bulk    []byte
	Null    bool
	Array   []Reply
}

// Pass is the synthetic reply used when a Message's expected literal
// matched the server's status line.
var Pass = Reply{Kind: KindPass}

// CancelledReply is the synthetic reply used to complete a Message that
// never made it to the wire, or a transaction's queued command whose
// transaction was discarded or aborted.
var CancelledReply = Reply{Kind: KindCancelled}

// Shutdown builds the synthetic reply used to drain sent Messages whose
// reply will never arrive because the connection tore down, carrying the
// cause as free text (spec §4.D "server terminated before reply" / "error
// processing data: …").
func Shutdown(reason string) Reply { return Reply{Kind: KindShutdown, Err: reason} }

// StatusReply builds a decoded "+" line.
func StatusReply(b []byte) Reply { return Reply{Kind: KindStatus, Status: b} }

// ErrorReply builds a decoded "-" line.
func ErrorReply(text string) Reply { return Reply{Kind: KindError, Err: text} }

// IntegerReply builds a decoded ":" line.
func IntegerReply(v int64) Reply { return Reply{Kind: KindInteger, Integer: v} }

// BulkReply builds a decoded "$" value; pass nil, true for a -1 length.
func BulkReply(b []byte, null bool) Reply { return Reply{Kind: KindBulk, Bulk: b, Null: null} }

// ArrayReply builds a decoded "*" value; pass nil, true for a -1 count.
func ArrayReply(items []Reply, null bool) Reply { return Reply{Kind: KindArray, Array: items, Null: null} }

// IsError reports whether the reply is a server error line.
func (r Reply) IsError() bool { return r.Kind == KindError }
