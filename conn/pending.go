package conn

import (
	"bytes"

	"github.com/rkvclient/pipeline/message"
	"github.com/rkvclient/pipeline/rediserror"
)

// matchReply applies expected-literal substitution (spec §4.C): if the
// Message named an expected status line, a byte-for-byte match hands the
// sink a synthetic Pass instead of the raw status, so sinks don't need to
// know the exact literal each command happens to reply with. A status
// reply that doesn't match is substituted with an Error carrying the
// server's actual status line, so a must-succeed message that gets back
// an unexpected status (not the OK/PONG/QUEUED it demanded) escalates
// through the same fatal path a real -ERR would.
func matchReply(m *message.Message, r message.Reply) message.Reply {
	if len(m.Expected) == 0 || r.Kind != message.KindStatus {
		return r
	}
	if bytes.Equal(r.Status, m.Expected) {
		return message.Pass
	}
	return message.ErrorReply(string(r.Status))
}

// dispatchComplete is the one place a reply off the wire turns into a
// Message completion: it applies expected-literal matching, escalates a
// failing MustSucceed message into a fatal shutdown instead of a quiet
// sink error, and dispatches the sink callback through the worker pool so
// a slow caller can never stall the reader goroutine (spec §4.D
// "Completion dispatch", §4.C "must-succeed fatal escalation").
func (c *Connection) dispatchComplete(m *message.Message, r message.Reply) {
	matched := matchReply(m, r)
	fatal := m.HasFlag(message.MustSucceed) && matched.Kind == message.KindError
	c.stats.messagesReceived.Add(1)
	if matched.Kind == message.KindError {
		c.stats.errorMessages.Add(1)
		c.report(LogServerError, m.Cmd, matched.Err)
	}
	c.pool.Go(func() { m.Complete(matched) })
	if fatal {
		c.shutdown(rediserror.Protocol.New("must-succeed command %q failed: %s", m.Cmd, matched.Err))
	}
}
