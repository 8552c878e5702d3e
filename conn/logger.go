package conn

import "log"

// LogKind tags the event passed to Logger.Report. Grounded on the
// teacher's redisconn/logger.go LogKind, extended with the protocol/server
// error and timeout events spec §7 requires observability for.
type LogKind int

const (
	LogConnecting LogKind = iota
	LogConnected
	LogConnectFailed
	LogDisconnected
	LogClosed
	LogServerError
	LogTimeout
	LogMAX
)

// Logger receives a Report call for every lifecycle and protocol event on
// a Connection. The default implementation logs through the standard
// library; see logging.Zap for a structured adapter.
type Logger interface {
	Report(event LogKind, conn *Connection, v ...interface{})
}

type defaultLogger struct{}

func (defaultLogger) Report(event LogKind, c *Connection, v ...interface{}) {
	switch event {
	case LogConnecting:
		log.Printf("rkvclient: connecting to %s", c.Addr())
	case LogConnected:
		log.Printf("rkvclient: connected to %s", c.Addr())
	case LogConnectFailed:
		log.Printf("rkvclient: connect to %s failed: %v", c.Addr(), v[0])
	case LogDisconnected:
		log.Printf("rkvclient: %s disconnected: %v", c.Addr(), v[0])
	case LogClosed:
		log.Printf("rkvclient: %s closed", c.Addr())
	case LogServerError:
		log.Printf("rkvclient: %s server error on %v: %v", c.Addr(), v[0], v[1])
	case LogTimeout:
		log.Printf("rkvclient: %s wait timed out", c.Addr())
	default:
		args := []interface{}{"rkvclient: unexpected event", event, c}
		args = append(args, v...)
		log.Println(args...)
	}
}
