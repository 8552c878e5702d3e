package conn

import (
	"strings"
	"time"

	"github.com/rkvclient/pipeline/message"
	"github.com/rkvclient/pipeline/rediserror"
	"github.com/rkvclient/pipeline/resp"
)

// armWriteDeadline bounds the upcoming socket write the same way
// armReadDeadline bounds the next read (spec §4.D: IOTimeout covers both
// directions of the socket, not just recv).
func (c *Connection) armWriteDeadline() {
	if c.opts.IOTimeout <= 0 {
		return
	}
	c.netMu.Lock()
	if c.c != nil {
		c.c.SetWriteDeadline(time.Now().Add(c.opts.IOTimeout))
	}
	c.netMu.Unlock()
}

// composite commands invalidate the writer's idea of the current db: the
// server may have changed it out from under us (EXEC/DISCARD un-wind a
// MULTI that could contain a SELECT; EVAL/EVALSHA can call SELECT from
// script), so the next db-scoped message always gets a fresh SELECT
// (spec §3 "Current DB").
var compositeCmd = map[string]bool{
	"EXEC":    true,
	"DISCARD": true,
	"EVAL":    true,
	"EVALSHA": true,
}

// enqueue is the single entry point handing a Message to the engine: it
// rejects work after Closing/Closed, rejects SUBSCRIBE-family commands,
// enforces the advisory MaxUnsent bound, and otherwise queues the message
// and kicks the writer.
func (c *Connection) enqueue(m *message.Message) error {
	switch c.State() {
	case stateClosing, stateClosed:
		m.CompleteCancelled()
		if err := c.ClosedErr(); err != nil {
			return err
		}
		return rediserror.Lifecycle.New("connection is closing")
	}
	if strings.EqualFold(m.Cmd, "SUBSCRIBE") || strings.EqualFold(m.Cmd, "PSUBSCRIBE") || strings.EqualFold(m.Cmd, "SSUBSCRIBE") {
		m.CompleteCancelled()
		return rediserror.Lifecycle.New("%s is not supported: pub/sub replies cannot be matched to requests", m.Cmd)
	}
	if c.opts.MaxUnsent > 0 && c.unsent.len() >= c.opts.MaxUnsent {
		m.CompleteCancelled()
		c.stats.messagesCancelled.Add(1)
		return rediserror.Lifecycle.New("unsent queue full (max %d)", c.opts.MaxUnsent)
	}
	if m.HasFlag(message.QueueJump) {
		c.stats.queueJumpers.Add(1)
	}
	c.unsent.push(m)
	c.kickWriter()
	return nil
}

// pumpUnsent releases the held gate's backlog once the handshake has put
// the connection in Open (spec §4.D, §9).
func (c *Connection) pumpUnsent() { c.kickWriter() }

// kickWriter schedules exactly one writer goroutine to drain unsent, and
// coalesces concurrent pushes into that same pass instead of spawning a
// writer per push (spec §5 "pending-writer counter").
func (c *Connection) kickWriter() {
	if c.pendingWriters.Add(1) != 1 {
		return
	}
	go c.runWriter()
}

func (c *Connection) runWriter() {
	for {
		c.writeMu.Lock()
		c.drainUnsentLocked()
		c.writeMu.Unlock()
		if c.pendingWriters.Add(-1) == 0 {
			return
		}
	}
}

// drainUnsentLocked serializes every writable queued Message onto the
// wire in one flush, inserting a synthetic SELECT whenever a message's db
// differs from currentDB (spec §3/§4.D "Send path"). Called with writeMu
// held.
func (c *Connection) drainUnsentLocked() {
	items := c.unsent.drainWritable(c.held.Load())
	if len(items) == 0 {
		return
	}
	var buf []byte
	sentAny := false
	for _, m := range items {
		if !m.MarkSent() {
			continue // cancelled concurrently before the writer reached it
		}
		if !m.DBAgnostic() && m.DB != c.currentDB {
			sel := c.newSelect(m.DB)
			var err error
			buf, err = resp.AppendCommand(buf, sel.Cmd, sel.Args)
			if err != nil {
				sel.Complete(message.ErrorReply(err.Error()))
			} else {
				c.sent.push(sel)
				sentAny = true
			}
			c.currentDB = m.DB
		}
		var err error
		buf, err = resp.AppendCommand(buf, m.Cmd, m.Args)
		if err != nil {
			m.Complete(message.ErrorReply(err.Error()))
			continue
		}
		c.sent.push(m)
		sentAny = true
		c.stats.messagesSent.Add(1)
		c.touchDBUsage(m.DB)
		if compositeCmd[m.Cmd] {
			c.currentDB = dbInvalid
		}
	}
	if !sentAny || len(buf) == 0 {
		return
	}
	c.netMu.Lock()
	w := c.w
	c.netMu.Unlock()
	if w == nil {
		return
	}
	c.armWriteDeadline()
	if _, err := w.Write(buf); err != nil {
		c.shutdown(rediserror.IO.Wrap(err, "writing request"))
		return
	}
	if err := w.Flush(); err != nil {
		c.shutdown(rediserror.IO.Wrap(err, "flushing request"))
	}
}

// writeComposite serializes every message in msgs into a single buffer
// and writes it in one Write+Flush, pushing each onto sent in arrival
// order so the reader matches their replies back in the same sequence.
// The caller must already hold writeMu for the whole operation it's
// building — the transaction layer uses this to put a WATCH/MULTI/queued-
// commands or EXEC/DISCARD sequence on the wire without ever releasing
// the write-lock in between, so an ordinary Send can't get a write pass
// interleaved inside the sequence (spec §4.F "composite execute under
// parent's write-lock").
func (c *Connection) writeComposite(msgs []*message.Message) error {
	var buf []byte
	for _, m := range msgs {
		var err error
		buf, err = resp.AppendCommand(buf, m.Cmd, m.Args)
		if err != nil {
			return err
		}
	}
	for _, m := range msgs {
		m.MarkSent()
		c.sent.push(m)
		c.stats.messagesSent.Add(1)
		c.touchDBUsage(m.DB)
		if compositeCmd[m.Cmd] {
			c.currentDB = dbInvalid
		}
	}
	c.netMu.Lock()
	w := c.w
	c.netMu.Unlock()
	if w == nil {
		return rediserror.Connection.New("connection not open")
	}
	c.armWriteDeadline()
	if _, err := w.Write(buf); err != nil {
		c.shutdown(rediserror.IO.Wrap(err, "writing request"))
		return err
	}
	if err := w.Flush(); err != nil {
		c.shutdown(rediserror.IO.Wrap(err, "flushing request"))
		return err
	}
	return nil
}

// newSelect builds the synthetic SELECT the writer inserts ahead of a
// message whose db differs from currentDB. Its own reply is discarded by
// a no-op sink unless it fails, in which case the matcher's must-succeed
// escalation (spec §4.C) tears the connection down: a failed SELECT means
// every subsequent db-scoped message would silently run against the wrong
// database.
func (c *Connection) newSelect(db int) *message.Message {
	m := message.NewMessage("SELECT", []interface{}{db}, message.NoDB, discardSink{})
	m.Expected = []byte("OK")
	m.Flags = message.DuringInit | message.MustSucceed
	m.MarkSent()
	return m
}

type discardSink struct{}

func (discardSink) Complete(message.Reply) {}

func (c *Connection) touchDBUsage(db int) {
	if db < 0 {
		return
	}
	c.dbUsageMu.Lock()
	c.dbUsage[db]++
	c.dbUsageMu.Unlock()
}

// waitWithTimeout blocks on fut but gives up after d, used for the
// best-effort QUIT handshake during Close.
func waitWithTimeout(fut *message.ChanFuture, d time.Duration) {
	select {
	case <-fut.Done():
	case <-time.After(d):
	}
}
