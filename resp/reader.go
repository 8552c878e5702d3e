// Package resp implements the wire codec: decoding RESP reply frames off a
// socket into message.Reply values, and encoding outbound commands into
// RESP multi-bulk arrays. Grounded on the teacher's resp/reader.go and
// resp/request_writer.go, reworked so that reading a field which fits in
// the inline read window never allocates (spec §4.A): the teacher's
// bufio.Reader.ReadLine()-based version allocates a fresh []byte for every
// bulk string regardless of size; here, the field reads themselves only
// allocate for fields that don't fit the inline window (or span a fill
// boundary). ReadReply still copies each status and bulk payload out of
// the window into its own slice, since the window is reused by the next
// read.
package resp

import (
	"io"
	"net"

	"github.com/rkvclient/pipeline/message"
	"github.com/rkvclient/pipeline/rediserror"
)

// inlineSize is the primary read surface. Any CRLF-terminated line, or any
// bulk payload, that fits within one fill of this window is read as a
// slice of it with zero extra allocation.
const inlineSize = 4096

// Reader decodes RESP frames from a single underlying socket. Not safe for
// concurrent use — the connection engine guarantees there is exactly one
// reader goroutine per connection (spec §4.D).
type Reader struct {
	src      io.Reader
	buf      []byte
	r, w     int
	overflow []byte
}

// NewReader wraps src with the inline decode buffer.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src, buf: make([]byte, inlineSize)}
}

// Buffered reports how many undecoded bytes are already sitting in the
// inline window, i.e. how much can still be decoded without another
// socket read.
func (rd *Reader) Buffered() int { return rd.w - rd.r }

func (rd *Reader) fill() error {
	rd.r, rd.w = 0, 0
	n, err := rd.src.Read(rd.buf)
	rd.w = n
	if n > 0 {
		return nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return err
}

// readLine returns the bytes before the next CRLF, without allocating
// unless the line spans more than one fill of the inline window.
func (rd *Reader) readLine() ([]byte, error) {
	for {
		if idx := indexByte(rd.buf[rd.r:rd.w], '\n'); idx >= 0 {
			end := rd.r + idx
			line := rd.buf[rd.r:end]
			rd.r = end + 1
			if rd.overflow != nil {
				line = append(rd.overflow, line...)
				rd.overflow = nil
			}
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			return line, nil
		}
		if rd.w > rd.r {
			rd.overflow = append(rd.overflow, rd.buf[rd.r:rd.w]...)
		}
		if err := rd.fill(); err != nil {
			return nil, err
		}
	}
}

// readExact returns exactly n bytes. If they're already buffered it slices
// the inline window directly (no allocation); otherwise it heap-allocates
// once and streams the remainder straight from the socket, bypassing the
// inline buffer (spec §4.A: this is the only allocating read path,
// reserved for fields too large to fit the window).
func (rd *Reader) readExact(n int) ([]byte, error) {
	if avail := rd.w - rd.r; avail >= n {
		b := rd.buf[rd.r : rd.r+n]
		rd.r += n
		return b, nil
	}
	out := make([]byte, n)
	got := copy(out, rd.buf[rd.r:rd.w])
	rd.r = rd.w
	for got < n {
		m, err := rd.src.Read(out[got:])
		got += m
		if got == n {
			break
		}
		if err != nil {
			return nil, err
		}
		if m == 0 {
			return nil, io.ErrNoProgress
		}
	}
	return out, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func parseInt(buf []byte) (int64, error) {
	if len(buf) == 0 {
		return 0, rediserror.Protocol.New("empty integer field")
	}
	neg := buf[0] == '-'
	digits := buf
	if neg {
		digits = buf[1:]
	}
	if len(digits) == 0 {
		return 0, rediserror.Protocol.New("malformed integer field %q", buf)
	}
	var v int64
	for _, b := range digits {
		if b < '0' || b > '9' {
			return 0, rediserror.Protocol.New("malformed integer field %q", buf)
		}
		v = v*10 + int64(b-'0')
	}
	if neg {
		v = -v
	}
	return v, nil
}

// wrapReadErr classifies a raw read error from the underlying socket: a
// deadline-exceeded net.Error becomes rediserror.Timeout (temporary, not a
// sign the connection is broken) rather than rediserror.IO, so a caller can
// tell an idle read timeout apart from an actual socket failure without
// reaching past this package's error type (spec §4.D/§7).
func wrapReadErr(err error, msg string) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return rediserror.Timeout.Wrap(err, msg)
	}
	return rediserror.IO.Wrap(err, msg)
}

// ReadReply decodes exactly one RESP frame, recursing for nested arrays.
func (rd *Reader) ReadReply() (message.Reply, error) {
	line, err := rd.readLine()
	if err != nil {
		return message.Reply{}, wrapReadErr(err, "reading reply header")
	}
	if len(line) == 0 {
		return message.Reply{}, rediserror.Protocol.New("empty reply header line")
	}
	switch line[0] {
	case '+':
		status := make([]byte, len(line)-1)
		copy(status, line[1:])
		return message.StatusReply(status), nil
	case '-':
		return message.ErrorReply(string(line[1:])), nil
	case ':':
		v, err := parseInt(line[1:])
		if err != nil {
			return message.Reply{}, err
		}
		return message.IntegerReply(v), nil
	case '$':
		n, err := parseInt(line[1:])
		if err != nil {
			return message.Reply{}, err
		}
		if n < 0 {
			return message.BulkReply(nil, true), nil
		}
		data, err := rd.readExact(int(n) + 2)
		if err != nil {
			return message.Reply{}, wrapReadErr(err, "reading bulk body")
		}
		if data[n] != '\r' || data[n+1] != '\n' {
			return message.Reply{}, rediserror.Protocol.New("bulk string missing trailing CRLF")
		}
		body := make([]byte, n)
		copy(body, data[:n])
		return message.BulkReply(body, false), nil
	case '*':
		n, err := parseInt(line[1:])
		if err != nil {
			return message.Reply{}, err
		}
		if n < 0 {
			return message.ArrayReply(nil, true), nil
		}
		items := make([]message.Reply, n)
		for i := range items {
			items[i], err = rd.ReadReply()
			if err != nil {
				return message.Reply{}, err
			}
		}
		return message.ArrayReply(items, false), nil
	default:
		return message.Reply{}, rediserror.Protocol.New("unknown reply prefix %q", line[0])
	}
}
