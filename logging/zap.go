// Package logging adapts the connection engine's Logger hook to
// structured logging backends. Grounded on SyncdevWu-gokv's use of
// go.uber.org/zap for its store/config layers — this repo has no
// file-watching or config-reload surface to borrow from that example, but
// its choice of zap as the logging library is carried here as the
// structured-logging default for a program that already runs zap.
package logging

import (
	"go.uber.org/zap"

	"github.com/rkvclient/pipeline/conn"
)

// Zap adapts a *zap.Logger to conn.Logger.
type Zap struct {
	L *zap.Logger
}

// Report implements conn.Logger.
func (z Zap) Report(event conn.LogKind, c *conn.Connection, v ...interface{}) {
	fields := []zap.Field{zap.String("addr", c.Addr())}
	for i, val := range v {
		fields = append(fields, zap.Any(fieldName(i), val))
	}
	switch event {
	case conn.LogConnecting:
		z.L.Info("connecting", fields...)
	case conn.LogConnected:
		z.L.Info("connected", fields...)
	case conn.LogConnectFailed:
		z.L.Warn("connect failed", fields...)
	case conn.LogDisconnected:
		z.L.Warn("disconnected", fields...)
	case conn.LogClosed:
		z.L.Info("closed", fields...)
	case conn.LogServerError:
		z.L.Debug("server error", fields...)
	case conn.LogTimeout:
		z.L.Warn("wait timed out", fields...)
	default:
		z.L.Warn("unrecognized event", append(fields, zap.Int("kind", int(event)))...)
	}
}

func fieldName(i int) string {
	if i == 0 {
		return "detail"
	}
	return "detail2"
}
