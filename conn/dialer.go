package conn

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Dialer retries Connect against a fixed Opts, wrapped in a circuit
// breaker so a persistently-down server fails fast instead of paying a
// full dial timeout on every attempt — the teacher's redisconn.Connection
// reconnects itself after a failure; this module keeps that operational
// intent one layer up instead, because spec §3 makes Closed terminal for
// any one Connection value. Every successful Open returns a brand new
// *Connection; Dialer never resurrects one that already reached Closed.
type Dialer struct {
	opts    Opts
	breaker *gobreaker.CircuitBreaker[*Connection]
}

// NewDialer builds a Dialer that opens fresh Connections against opts.
func NewDialer(opts Opts) *Dialer {
	var settings gobreaker.Settings
	settings.Name = "rkvclient-dial"
	return &Dialer{opts: opts, breaker: gobreaker.NewCircuitBreaker[*Connection](settings)}
}

// Open dials and hands back a fresh, Open *Connection, or the breaker's
// own error if recent attempts have tripped it open.
func (d *Dialer) Open(ctx context.Context) (*Connection, error) {
	return d.breaker.Execute(func() (*Connection, error) {
		return Connect(ctx, d.opts)
	})
}

// OpenRetry loops Open, pausing Opts.ReconnectPause between attempts,
// until it succeeds or ctx is done — the caller-driven equivalent of the
// teacher's in-place reconnect loop, without ever resurrecting a Closed
// Connection in place. A negative ReconnectPause disables the retry:
// OpenRetry then makes a single Open attempt.
func (d *Dialer) OpenRetry(ctx context.Context) (*Connection, error) {
	pause := d.opts.ReconnectPause
	if pause < 0 {
		return d.Open(ctx)
	}
	if pause == 0 {
		pause = defaultReconnect
	}
	for {
		c, err := d.Open(ctx)
		if err == nil {
			return c, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pause):
		}
	}
}
