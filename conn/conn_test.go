package conn_test

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rkvclient/pipeline/conn"
	"github.com/rkvclient/pipeline/message"
	"github.com/rkvclient/pipeline/resp"
)

// step is one exchange in a fake server script: read one request frame
// (ignored beyond framing) and write back the given canned RESP bytes.
type step struct {
	reply string
}

func runFakeServer(ln net.Listener, script []step) {
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		rd := resp.NewReader(c)
		for _, st := range script {
			if _, err := rd.ReadReply(); err != nil {
				return
			}
			if _, err := c.Write([]byte(st.reply)); err != nil {
				return
			}
		}
	}()
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func optsFor(t *testing.T, ln net.Listener) conn.Opts {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return conn.Opts{
		Host:           host,
		Port:           port,
		DispatchInline: true,
		SyncTimeout:    2 * time.Second,
	}
}

func TestConnectPlainHandshake(t *testing.T) {
	ln := listen(t)
	defer ln.Close()
	runFakeServer(ln, []step{
		{"$-1\r\n"},   // INFO probe (no info available)
		{"+PONG\r\n"}, // handshake PING
	})

	c, err := conn.Connect(context.Background(), optsFor(t, ln))
	require.NoError(t, err)
	defer c.Close(true)
	require.EqualValues(t, 2, c.Stats().MessagesSent) // INFO probe + handshake PING
}

func TestSendGetWithDBSwitch(t *testing.T) {
	ln := listen(t)
	defer ln.Close()
	runFakeServer(ln, []step{
		{"$-1\r\n"},   // INFO probe (no info available)
		{"+PONG\r\n"}, // handshake PING
		{"+OK\r\n"},   // synthetic SELECT 1
		{"$5\r\nhello\r\n"}, // GET reply
	})

	c, err := conn.Connect(context.Background(), optsFor(t, ln))
	require.NoError(t, err)
	defer c.Close(true)

	fut := message.NewChanFuture()
	require.NoError(t, c.Send("GET", []interface{}{"k"}, 1, message.BytesSink{F: fut}))
	v, err := fut.Wait()
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)

	st := c.Stats()
	require.EqualValues(t, 1, st.DBUsage[1])
}

func TestAuthFailureIsFatal(t *testing.T) {
	ln := listen(t)
	defer ln.Close()
	runFakeServer(ln, []step{
		{"-ERR invalid password\r\n"}, // AUTH
		{"+PONG\r\n"},                 // PING (never observed by the client)
	})

	opts := optsFor(t, ln)
	opts.Password = "wrong"
	_, err := conn.Connect(context.Background(), opts)
	require.Error(t, err)
}

func TestTransactionCommit(t *testing.T) {
	ln := listen(t)
	defer ln.Close()
	runFakeServer(ln, []step{
		{"$-1\r\n"},       // INFO probe (no info available)
		{"+PONG\r\n"},     // handshake PING
		{"+OK\r\n"},       // MULTI
		{"+QUEUED\r\n"},   // SET ack
		{"*1\r\n+OK\r\n"}, // EXEC
	})

	c, err := conn.Connect(context.Background(), optsFor(t, ln))
	require.NoError(t, err)
	defer c.Close(true)

	tx, err := c.Begin()
	require.NoError(t, err)

	fut := message.NewChanFuture()
	require.NoError(t, tx.Queue("SET", []interface{}{"k", "v"}, message.StatusSink{F: fut}))
	committed, err := tx.Exec()
	require.NoError(t, err)
	require.True(t, committed)

	v, err := fut.Wait()
	require.NoError(t, err)
	require.Equal(t, "OK", v)
}

func TestTransactionAbortedByWatch(t *testing.T) {
	ln := listen(t)
	defer ln.Close()
	runFakeServer(ln, []step{
		{"$-1\r\n"},     // INFO probe (no info available)
		{"+PONG\r\n"},   // handshake PING
		{"+OK\r\n"},     // WATCH
		{"+OK\r\n"},     // MULTI
		{"+QUEUED\r\n"}, // SET ack
		{"*-1\r\n"},     // EXEC aborted
	})

	c, err := conn.Connect(context.Background(), optsFor(t, ln))
	require.NoError(t, err)
	defer c.Close(true)

	tx, err := c.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Watch("k"))

	fut := message.NewChanFuture()
	require.NoError(t, tx.Queue("SET", []interface{}{"k", "v"}, message.StatusSink{F: fut}))
	committed, err := tx.Exec()
	require.NoError(t, err)
	require.False(t, committed)

	_, err = fut.Wait()
	require.Error(t, err)
}

// TestServerErrorReplyReportsAndCounts verifies the error observable event
// actually fires for an ordinary -ERR reply: ErrorMessages is incremented
// and the caller's future surfaces the server's message.
func TestServerErrorReplyReportsAndCounts(t *testing.T) {
	ln := listen(t)
	defer ln.Close()
	runFakeServer(ln, []step{
		{"$-1\r\n"},              // INFO probe (no info available)
		{"+PONG\r\n"},            // handshake PING
		{"-ERR no such key\r\n"}, // GET reply
	})

	c, err := conn.Connect(context.Background(), optsFor(t, ln))
	require.NoError(t, err)
	defer c.Close(true)

	fut := message.NewChanFuture()
	require.NoError(t, c.Send("GET", []interface{}{"k"}, message.NoDB, message.BytesSink{F: fut}))
	_, err = fut.Wait()
	require.Error(t, err)

	require.EqualValues(t, 1, c.Stats().ErrorMessages)
}

// TestStatusMismatchSubstitutesError checks that a status reply which
// doesn't match a message's Expected literal surfaces as an Error to the
// sink, rather than being handed through as if it were success.
func TestStatusMismatchSubstitutesError(t *testing.T) {
	ln := listen(t)
	defer ln.Close()
	runFakeServer(ln, []step{
		{"$-1\r\n"},    // INFO probe (no info available)
		{"+PONG\r\n"},  // handshake PING
		{"+NOTOK\r\n"}, // SET reply: doesn't match Expected "OK"
	})

	c, err := conn.Connect(context.Background(), optsFor(t, ln))
	require.NoError(t, err)
	defer c.Close(true)

	fut := message.NewChanFuture()
	m := message.NewMessage("SET", []interface{}{"k", "v"}, message.NoDB, message.StatusSink{F: fut})
	m.Expected = []byte("OK")
	require.NoError(t, c.SendMany(m))

	_, err = fut.Wait()
	require.Error(t, err)
	require.Contains(t, err.Error(), "NOTOK")
}

// TestMustSucceedMismatchIsFatal checks that a MustSucceed message whose
// reply fails the Expected-literal match escalates through the same fatal
// path a real -ERR would, tearing the connection down.
func TestMustSucceedMismatchIsFatal(t *testing.T) {
	ln := listen(t)
	defer ln.Close()
	runFakeServer(ln, []step{
		{"$-1\r\n"},    // INFO probe (no info available)
		{"+PONG\r\n"},  // handshake PING
		{"+NOTOK\r\n"}, // reply doesn't match Expected "OK"
	})

	c, err := conn.Connect(context.Background(), optsFor(t, ln))
	require.NoError(t, err)
	defer c.Close(true)

	fut := message.NewChanFuture()
	m := message.NewMessage("SET", []interface{}{"k", "v"}, message.NoDB, message.StatusSink{F: fut})
	m.Expected = []byte("OK")
	m.Flags = message.MustSucceed
	require.NoError(t, c.SendMany(m))

	_, err = fut.Wait()
	require.Error(t, err)
	require.Eventually(t, func() bool { return c.ClosedErr() != nil }, time.Second, time.Millisecond)
}

// TestCloseGracefulSendsQuit checks that a non-abort Close actually puts
// QUIT on the wire instead of degrading to an abortive close.
func TestCloseGracefulSendsQuit(t *testing.T) {
	ln := listen(t)
	defer ln.Close()
	runFakeServer(ln, []step{
		{"$-1\r\n"},   // INFO probe (no info available)
		{"+PONG\r\n"}, // handshake PING
		{"+OK\r\n"},   // QUIT
	})

	c, err := conn.Connect(context.Background(), optsFor(t, ln))
	require.NoError(t, err)

	c.Close()

	require.Eventually(t, func() bool { return c.ClosedErr() != nil }, time.Second, time.Millisecond)
}

func TestBeginRejectsNesting(t *testing.T) {
	ln := listen(t)
	defer ln.Close()
	runFakeServer(ln, []step{
		{"$-1\r\n"},   // INFO probe (no info available)
		{"+PONG\r\n"}, // handshake PING
	})

	c, err := conn.Connect(context.Background(), optsFor(t, ln))
	require.NoError(t, err)
	defer c.Close(true)

	_, err = c.Begin()
	require.NoError(t, err)

	_, err = c.Begin()
	require.Error(t, err)
}
