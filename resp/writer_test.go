package resp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendCommandSimple(t *testing.T) {
	buf, err := AppendCommand(nil, "GET", []interface{}{"key"})
	require.NoError(t, err)
	require.Equal(t, "*2\r\n$3\r\nGET\r\n$3\r\nkey\r\n", string(buf))
}

func TestAppendCommandMixedArgs(t *testing.T) {
	buf, err := AppendCommand(nil, "SET", []interface{}{"key", 42, 3.5, true, []byte("raw")})
	require.NoError(t, err)
	require.Equal(t,
		"*6\r\n$3\r\nSET\r\n$3\r\nkey\r\n$2\r\n42\r\n$3\r\n3.5\r\n$1\r\n1\r\n$3\r\nraw\r\n",
		string(buf))
}

func TestAppendCommandNilArg(t *testing.T) {
	buf, err := AppendCommand(nil, "ECHO", []interface{}{nil})
	require.NoError(t, err)
	require.Equal(t, "*2\r\n$4\r\nECHO\r\n$0\r\n\r\n", string(buf))
}

func TestAppendCommandUnsupportedType(t *testing.T) {
	_, err := AppendCommand(nil, "SET", []interface{}{struct{}{}})
	require.Error(t, err)
}

func TestAppendCommandReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 256)
	buf, err := AppendCommand(buf, "PING", nil)
	require.NoError(t, err)
	require.Equal(t, PingReq, string(buf))
}

// TestAppendCommandLiteralFastPath checks that every zero-argument command
// the engine issues on every connection takes the pre-encoded literal path
// and still matches what the general encoder would have produced.
func TestAppendCommandLiteralFastPath(t *testing.T) {
	cases := []struct {
		cmd, want string
	}{
		{"PING", PingReq},
		{"MULTI", MultiReq},
		{"EXEC", ExecReq},
		{"DISCARD", DiscardReq},
		{"QUIT", QuitReq},
	}
	for _, tc := range cases {
		buf, err := AppendCommand(nil, tc.cmd, nil)
		require.NoError(t, err)
		require.Equal(t, tc.want, string(buf))
	}
}

// TestAppendCommandLiteralOnlyWhenNoArgs checks a command that happens to
// share a name with a literal (here PING, called with a message argument)
// still falls through to the general encoder instead of returning a stale
// literal.
func TestAppendCommandLiteralOnlyWhenNoArgs(t *testing.T) {
	buf, err := AppendCommand(nil, "PING", []interface{}{"hello"})
	require.NoError(t, err)
	require.Equal(t, "*2\r\n$4\r\nPING\r\n$5\r\nhello\r\n", string(buf))
}
