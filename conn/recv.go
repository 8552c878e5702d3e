package conn

import (
	"time"

	"github.com/joomcode/errorx"
	"github.com/rkvclient/pipeline/rediserror"
)

// readerLoop is the single reader goroutine a Connection ever runs (spec
// §4.D "Receive path"): it blocks decoding one reply at a time, pairs it
// with the oldest entry in sent, and hands it to dispatchComplete. A
// decode error, or a reply with nothing pending to match it against, is
// fatal and tears the connection down.
func (c *Connection) readerLoop() {
	for {
		c.armReadDeadline()
		r, err := c.rd.ReadReply()
		if err != nil {
			if errorx.IsOfType(err, rediserror.Timeout) && c.sent.len() == 0 {
				// nothing in flight: an idle read timeout isn't a failure.
				continue
			}
			c.shutdown(c.classifyReadErr(err))
			return
		}
		m := c.sent.pop()
		if m == nil {
			c.shutdown(rediserror.Protocol.New("reply received with no pending message"))
			return
		}
		c.dispatchComplete(m, r)
	}
}

func (c *Connection) armReadDeadline() {
	if c.opts.IOTimeout <= 0 {
		return
	}
	c.netMu.Lock()
	if c.c != nil {
		c.c.SetReadDeadline(time.Now().Add(c.opts.IOTimeout))
	}
	c.netMu.Unlock()
}

func (c *Connection) classifyReadErr(err error) *errorx.Error {
	e, ok := err.(*errorx.Error)
	if !ok {
		e = rediserror.IO.Wrap(err, "reading reply")
	}
	if errorx.IsOfType(e, rediserror.Timeout) {
		c.report(LogTimeout)
		c.stats.timeouts.Add(1)
		if c.opts.IncludeDetailInTimeouts {
			if m := c.sent.peekOldest(); m != nil {
				return e.WithProperty(rediserror.PropCommand, m.Cmd)
			}
		}
	}
	return e
}
