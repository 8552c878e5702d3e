package conn_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rkvclient/pipeline/conn"
)

func TestDialerOpenSucceeds(t *testing.T) {
	ln := listen(t)
	defer ln.Close()
	runFakeServer(ln, []step{{"$-1\r\n"}, {"+PONG\r\n"}})

	d := conn.NewDialer(optsFor(t, ln))
	c, err := d.Open(context.Background())
	require.NoError(t, err)
	defer c.Close(true)
}

func TestDialerOpenFailsOnRefusedConnection(t *testing.T) {
	ln := listen(t)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close() // nothing listening anymore: dial must fail

	opts := conn.Opts{Host: addr.IP.String(), Port: addr.Port}
	d := conn.NewDialer(opts)
	_, err := d.Open(context.Background())
	require.Error(t, err)
}
