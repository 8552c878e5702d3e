package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageLifecycleSentThenComplete(t *testing.T) {
	fut := NewChanFuture()
	m := NewMessage("GET", []interface{}{"k"}, 0, BytesSink{F: fut})
	require.Equal(t, NotSent, m.State())

	require.True(t, m.MarkSent())
	require.Equal(t, Sent, m.State())

	m.Complete(BulkReply([]byte("v"), false))
	require.Equal(t, Complete, m.State())

	v, err := fut.Wait()
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}

func TestMessageCancelBeforeSend(t *testing.T) {
	fut := NewChanFuture()
	m := NewMessage("GET", nil, 0, BytesSink{F: fut})
	require.True(t, m.MarkCancelled())
	require.Equal(t, Cancelled, m.State())

	// a second cancel attempt is a no-op CAS failure, not a panic.
	require.False(t, m.MarkCancelled())
}

func TestMessageCannotCancelOnceSent(t *testing.T) {
	m := NewMessage("GET", nil, 0, nil)
	require.True(t, m.MarkSent())
	require.False(t, m.MarkCancelled())
}

func TestMessageCompleteCancelledResolvesSinkAsCancelled(t *testing.T) {
	fut := NewChanFuture()
	m := NewMessage("GET", nil, 0, BytesSink{F: fut})
	m.CompleteCancelled()
	_, err := fut.Wait()
	require.Error(t, err)
}

func TestDBAgnostic(t *testing.T) {
	require.True(t, NewMessage("PING", nil, NoDB, nil).DBAgnostic())
	require.False(t, NewMessage("GET", nil, 0, nil).DBAgnostic())
}

func TestHasFlag(t *testing.T) {
	m := NewMessage("AUTH", nil, NoDB, nil)
	m.Flags = MustSucceed | DuringInit
	require.True(t, m.HasFlag(MustSucceed))
	require.True(t, m.HasFlag(DuringInit))
	require.False(t, m.HasFlag(QueueJump))
}
