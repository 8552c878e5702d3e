package conn

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/rkvclient/pipeline/message"
)

// ServerInfo is what the handshake's INFO probe discovered about the
// server on the other end of the socket (spec §4.E step 3, "INFO-based
// detection").
type ServerInfo struct {
	// Version is the redis_version field's numeric prefix, e.g. "7.2.3".
	Version string
	// Mode is the redis_mode field ("standalone", "sentinel", "cluster"),
	// or the role field's value ("master"/"slave") when redis_mode is
	// absent.
	Mode string
}

// handshake runs AUTH (if a password is configured), an INFO probe to
// discover the server's version and topology, CLIENT SETNAME (if a name
// is configured and the detected version supports it), and a final PING,
// each written onto the still-held connection and awaited before it's
// released into Open (spec §4.E "Init/handshake"). AUTH and PING are
// MustSucceed: a server that rejects either is not usable and the
// connection is torn down rather than opened.
func (c *Connection) handshake() error {
	var waits []*message.ChanFuture

	if c.opts.Password != "" {
		fut := message.NewChanFuture()
		m := message.NewMessage("AUTH", []interface{}{c.opts.Password}, message.NoDB, message.StatusSink{F: fut})
		m.Expected = []byte("OK")
		m.Flags = message.DuringInit | message.MustSucceed
		if err := c.enqueue(m); err != nil {
			return err
		}
		if _, err := fut.Wait(); err != nil {
			return err
		}
	}

	info := c.probeServerInfo()
	c.info.Store(&info)

	if c.opts.Name != "" && supportsSetName(info.Version) {
		fut := message.NewChanFuture()
		m := message.NewMessage("CLIENT", []interface{}{"SETNAME", c.opts.Name}, message.NoDB, message.StatusSink{F: fut})
		m.Expected = []byte("OK")
		m.Flags = message.DuringInit
		if err := c.enqueue(m); err != nil {
			return err
		}
		waits = append(waits, fut)
	}

	pingFut := message.NewChanFuture()
	ping := message.NewMessage("PING", nil, message.NoDB, message.StatusSink{F: pingFut})
	ping.Expected = []byte("PONG")
	ping.Flags = message.DuringInit | message.MustSucceed
	if err := c.enqueue(ping); err != nil {
		return err
	}
	waits = append(waits, pingFut)

	for _, w := range waits {
		if _, err := w.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// probeServerInfo sends INFO and parses its key:value body. INFO isn't
// essential to reach Open: a server that refuses it (ACL-restricted,
// minimal mode) still opens, just without version-gated handshake
// behavior — so a failed or malformed reply yields the zero ServerInfo
// rather than failing the handshake.
func (c *Connection) probeServerInfo() ServerInfo {
	fut := message.NewChanFuture()
	m := message.NewMessage("INFO", nil, message.NoDB, message.BytesSink{F: fut})
	m.Flags = message.DuringInit
	if err := c.enqueue(m); err != nil {
		return ServerInfo{}
	}
	v, err := fut.Wait()
	if err != nil {
		return ServerInfo{}
	}
	raw, _ := v.([]byte)
	return parseServerInfo(raw)
}

// parseServerInfo walks an INFO reply's "key:value" lines, skipping the
// "#"-prefixed section headers, and pulls out redis_version (trimmed to
// its leading [0-9.]+ run, since some servers append build metadata after
// it) and the server's topology from redis_mode, falling back to role
// when redis_mode is absent (older standalone servers predating
// redis_mode).
func parseServerInfo(raw []byte) ServerInfo {
	var info ServerInfo
	var role string
	for _, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		idx := bytes.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key, val := string(line[:idx]), string(line[idx+1:])
		switch key {
		case "redis_version":
			info.Version = versionPrefix(val)
		case "redis_mode":
			info.Mode = val
		case "role":
			role = val
		}
	}
	if info.Mode == "" {
		info.Mode = role
	}
	return info
}

func versionPrefix(s string) string {
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	return s[:end]
}

// clientSetnameMinVersion is the first release that accepts CLIENT
// SETNAME; a server reporting an older version doesn't get the command
// sent.
const clientSetnameMinVersion = "2.6.9"

// supportsSetName reports whether a detected version is new enough for
// CLIENT SETNAME. An empty version (INFO didn't answer) is treated as
// supported, preserving the handshake's behavior from before the probe
// existed.
func supportsSetName(version string) bool {
	if version == "" {
		return true
	}
	return compareVersions(version, clientSetnameMinVersion) >= 0
}

func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
