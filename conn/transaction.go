package conn

import (
	"github.com/rkvclient/pipeline/message"
	"github.com/rkvclient/pipeline/rediserror"
)

// Tx accumulates a transaction's preconditions and commands purely in
// memory; nothing reaches the wire until Exec (or Discard, which in that
// case needs no wire traffic at all) — this is what makes the eventual
// WATCH...MULTI...queued-commands...EXEC sequence a single buffered
// composite instead of a chain of independent round trips (spec §4.F
// "Transaction layer").
type Tx struct {
	parent    *Connection
	watchKeys []string
	queued    []queuedCmd
	finished  bool
}

type queuedCmd struct {
	cmd  string
	args []interface{}
	sink message.Sink
}

// Begin opens a transaction on c. Nesting is rejected: a second Begin
// before the first Tx finishes fails outright (spec §4.F "Nested
// transactions rejected").
func (c *Connection) Begin() (*Tx, error) {
	if !c.txMu.TryLock() {
		return nil, rediserror.Lifecycle.New("a transaction is already open on this connection")
	}
	return &Tx{parent: c}, nil
}

// Watch records a precondition key for the transaction: WATCH is written
// as part of the same composite as MULTI, immediately ahead of it, so a
// key change detected by the server always lands inside the one write
// Exec performs (spec §4.F "preconditions").
func (t *Tx) Watch(keys ...string) error {
	if t.finished {
		return rediserror.Lifecycle.New("transaction already finished")
	}
	t.watchKeys = append(t.watchKeys, keys...)
	return nil
}

// Queue adds one command to the transaction. sink receives the command's
// real result once Exec runs; nothing is written to the connection until
// then.
func (t *Tx) Queue(cmd string, args []interface{}, sink message.Sink) error {
	if t.finished {
		return rediserror.Lifecycle.New("transaction already finished")
	}
	t.queued = append(t.queued, queuedCmd{cmd: cmd, args: args, sink: sink})
	return nil
}

// Exec writes the whole transaction — WATCH (if any keys were recorded),
// MULTI, every queued command, and finally EXEC or DISCARD — as one
// buffered composite under a single writeMu acquisition (spec §4.F
// "composite execute under parent's write-lock"), so no ordinary Send on
// the same connection can land a command inside the MULTI block.
//
// The WATCH/MULTI/queue-ack leg is written and awaited first; if any of
// those replies comes back wrong, the precondition check has failed and
// the composite's closing command becomes DISCARD instead of EXEC (spec
// §4.F steps 1 & 5). Otherwise EXEC is sent: a nil reply means a WATCHed
// key changed underneath the transaction and it aborts (return false,
// nil); a matching array commits every queued sink from its own element
// (return true, nil).
func (t *Tx) Exec() (bool, error) {
	if t.finished {
		return false, rediserror.Lifecycle.New("transaction already finished")
	}
	t.finished = true
	defer t.parent.txMu.Unlock()

	c := t.parent
	switch c.State() {
	case stateClosing, stateClosed:
		t.abortQueued()
		if err := c.ClosedErr(); err != nil {
			return false, err
		}
		return false, rediserror.Lifecycle.New("connection is closing")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var watchFut *message.ChanFuture
	var leg []*message.Message

	if len(t.watchKeys) > 0 {
		watchFut = message.NewChanFuture()
		args := make([]interface{}, len(t.watchKeys))
		for i, k := range t.watchKeys {
			args[i] = k
		}
		wm := message.NewMessage("WATCH", args, noDB, message.StatusSink{F: watchFut})
		wm.Expected = []byte("OK")
		leg = append(leg, wm)
	}

	multiFut := message.NewChanFuture()
	mm := message.NewMessage("MULTI", nil, noDB, message.StatusSink{F: multiFut})
	mm.Expected = []byte("OK")
	leg = append(leg, mm)

	ackFuts := make([]*message.ChanFuture, len(t.queued))
	for i, q := range t.queued {
		fut := message.NewChanFuture()
		ackFuts[i] = fut
		am := message.NewMessage(q.cmd, q.args, noDB, message.StatusSink{F: fut})
		am.Expected = []byte("QUEUED")
		leg = append(leg, am)
	}

	if err := c.writeComposite(leg); err != nil {
		t.abortQueued()
		return false, err
	}

	var failed error
	if watchFut != nil {
		if _, err := watchFut.Wait(); err != nil && failed == nil {
			failed = err
		}
	}
	if _, err := multiFut.Wait(); err != nil && failed == nil {
		failed = err
	}
	for _, fut := range ackFuts {
		if _, err := fut.Wait(); err != nil && failed == nil {
			failed = err
		}
	}

	if failed != nil {
		t.sendClosing("DISCARD")
		t.abortQueued()
		return false, failed
	}

	execFut := message.NewChanFuture()
	em := message.NewMessage("EXEC", nil, noDB, message.RawSink{F: execFut})
	if err := c.writeComposite([]*message.Message{em}); err != nil {
		t.abortQueued()
		return false, err
	}
	v, err := execFut.Wait()
	if err != nil {
		t.abortQueued()
		return false, err
	}
	reply, ok := v.(message.Reply)
	if !ok || reply.Kind != message.KindArray || reply.Null {
		t.abortQueued()
		return false, nil
	}
	if len(reply.Array) != len(t.queued) {
		t.abortQueued()
		return false, rediserror.Protocol.New("EXEC reply has %d elements, expected %d", len(reply.Array), len(t.queued))
	}
	for i, q := range t.queued {
		q.sink.Complete(reply.Array[i])
	}
	return true, nil
}

// Discard abandons a transaction without executing it, cancelling every
// queued command's sink. Since Begin/Watch/Queue never touch the wire,
// an Exec-less Discard costs nothing beyond releasing the lock that
// rejects nesting.
func (t *Tx) Discard() error {
	if t.finished {
		return rediserror.Lifecycle.New("transaction already finished")
	}
	t.finished = true
	defer t.parent.txMu.Unlock()
	t.abortQueued()
	return nil
}

// sendClosing writes cmd (DISCARD) as the composite's closing command
// while writeMu is still held by the caller, best-effort: a failure here
// doesn't change the already-decided outcome, just leaves the server's
// own MULTI block to time out or get cleaned up on the next command.
func (t *Tx) sendClosing(cmd string) {
	fut := message.NewChanFuture()
	m := message.NewMessage(cmd, nil, noDB, message.StatusSink{F: fut})
	m.Expected = []byte("OK")
	if err := t.parent.writeComposite([]*message.Message{m}); err != nil {
		return
	}
	fut.Wait()
}

func (t *Tx) abortQueued() {
	for _, q := range t.queued {
		if q.sink != nil {
			q.sink.Complete(message.CancelledReply)
		}
	}
}
