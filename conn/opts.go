package conn

import (
	"time"

	"github.com/joomcode/errorx"
	"github.com/rkvclient/pipeline/rediserror"
)

const (
	defaultIOTimeout   = 1 * time.Second
	defaultSyncTimeout = 10 * time.Second
	defaultReconnect   = 500 * time.Millisecond
)

// Opts configures a Connection, per spec §6.
type Opts struct {
	// Host and Port are the TCP endpoint. Port defaults to 6379.
	Host string
	Port int

	// IOTimeout bounds every socket send/recv. -1 disables the timeout;
	// 0 takes the default (1s).
	IOTimeout time.Duration

	// SyncTimeout bounds each of the two waits a graceful Close makes: for
	// in-flight replies to drain before QUIT is written, and for QUIT's own
	// reply. A value <= 0 takes the default (10s). Spec's Open Question #2:
	// kept as one knob — see DESIGN.md.
	SyncTimeout time.Duration

	// Password, if set, is sent via AUTH during the handshake.
	Password string

	// Name, if set, is registered with CLIENT SETNAME during the handshake,
	// unless INFO reports a server version older than 2.6.9. Must be
	// printable ASCII '!'..'~'.
	Name string

	// MaxUnsent bounds the unsent queue length. 0 means unbounded. Spec's
	// Open Question #3: enforced here as an advisory reject — enqueue
	// fails synchronously with a Lifecycle error once exceeded.
	MaxUnsent int

	// IncludeDetailInTimeouts controls whether a timeout error names the
	// oldest in-flight command.
	IncludeDetailInTimeouts bool

	// ReconnectPause is the pause between failed connection attempts.
	// Negative disables reconnection entirely.
	ReconnectPause time.Duration

	// Logger receives lifecycle/protocol events. Defaults to a stdlib
	// log-backed logger (see logger.go) if nil; plug in logging.Zap for a
	// structured adapter.
	Logger Logger

	// DispatchInline, when true, runs completion callbacks synchronously
	// on the reader goroutine instead of a worker pool — spec §4.D, for
	// test harnesses that need deterministic ordering.
	DispatchInline bool
}

func (o *Opts) setDefaults() *errorx.Error {
	if o.Host == "" {
		return rediserror.Opts.New("host is required")
	}
	if o.Port == 0 {
		o.Port = 6379
	}
	if o.IOTimeout == 0 {
		o.IOTimeout = defaultIOTimeout
	} else if o.IOTimeout < 0 {
		o.IOTimeout = 0
	}
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = defaultSyncTimeout
	}
	if o.ReconnectPause == 0 {
		o.ReconnectPause = defaultReconnect
	}
	if o.Name != "" {
		for i := 0; i < len(o.Name); i++ {
			c := o.Name[i]
			if c < '!' || c > '~' {
				return rediserror.Opts.New("name must be printable ASCII '!'..'~', got %q", o.Name)
			}
		}
	}
	if o.Logger == nil {
		o.Logger = defaultLogger{}
	}
	return nil
}
