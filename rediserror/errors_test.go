package rediserror

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsServerError(t *testing.T) {
	require.True(t, IsServerError(Result.New("ERR boom")))
	require.False(t, IsServerError(Protocol.New("bad frame")))
}

func TestIsFatal(t *testing.T) {
	require.True(t, IsFatal(Protocol.New("bad frame")))
	require.True(t, IsFatal(IO.New("broken pipe")))
	require.True(t, IsFatal(Connection.New("dial failed")))
	require.False(t, IsFatal(Result.New("ERR boom")))
	require.False(t, IsFatal(Timeout.New("i/o timeout")))
	require.False(t, IsFatal(nil))
}

func TestWithConnSkipsIfAlreadySet(t *testing.T) {
	err := Protocol.New("bad frame")
	err = WithConn(err, "conn-1")
	err = WithConn(err, "conn-2")
	v, ok := err.Property(PropConn)
	require.True(t, ok)
	require.Equal(t, "conn-1", v)
}
