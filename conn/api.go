package conn

import "github.com/rkvclient/pipeline/message"

// Send queues one command against db for delivery on c's socket and
// returns once it's queued, not once it's replied to — the caller reads
// the result off sink's Future. db may be message.NoDB for db-agnostic
// commands (spec §4.D "Send path").
func (c *Connection) Send(cmd string, args []interface{}, db int, sink message.Sink) error {
	return c.enqueue(message.NewMessage(cmd, args, db, sink))
}

// SendMany queues a batch of independent commands in one call, a
// convenience for a caller that already has every message built instead
// of calling Send in a loop; each message still goes through its own
// enqueue and may interleave with messages queued concurrently by other
// callers.
func (c *Connection) SendMany(msgs ...*message.Message) error {
	for _, m := range msgs {
		if err := c.enqueue(m); err != nil {
			return err
		}
	}
	return nil
}
