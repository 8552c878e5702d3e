package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoolSinkDecodesIntegers(t *testing.T) {
	fut := NewChanFuture()
	BoolSink{F: fut}.Complete(IntegerReply(1))
	v, err := fut.Wait()
	require.NoError(t, err)
	require.Equal(t, true, v)

	fut2 := NewChanFuture()
	BoolSink{F: fut2}.Complete(IntegerReply(0))
	v2, err := fut2.Wait()
	require.NoError(t, err)
	require.Equal(t, false, v2)
}

func TestBoolSinkRejectsOutOfRangeInteger(t *testing.T) {
	fut := NewChanFuture()
	BoolSink{F: fut}.Complete(IntegerReply(5))
	_, err := fut.Wait()
	require.Error(t, err)
}

func TestIntSinkPassResolvesToOne(t *testing.T) {
	fut := NewChanFuture()
	IntSink{F: fut}.Complete(Pass)
	v, err := fut.Wait()
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
}

func TestBytesSinkNilBulk(t *testing.T) {
	fut := NewChanFuture()
	BytesSink{F: fut}.Complete(BulkReply(nil, true))
	v, err := fut.Wait()
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestStringSinkDecodesStatusAndBulk(t *testing.T) {
	fut := NewChanFuture()
	StringSink{F: fut}.Complete(StatusReply([]byte("OK")))
	v, err := fut.Wait()
	require.NoError(t, err)
	require.Equal(t, "OK", v)
}

func TestResolveCommonHandlesServerError(t *testing.T) {
	fut := NewChanFuture()
	BytesSink{F: fut}.Complete(ErrorReply("ERR boom"))
	_, err := fut.Wait()
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestResolveCommonHandlesShutdown(t *testing.T) {
	fut := NewChanFuture()
	StatusSink{F: fut}.Complete(Shutdown("socket closed"))
	_, err := fut.Wait()
	require.Error(t, err)
}

func TestKVPairsSinkDecodesFlatArray(t *testing.T) {
	fut := NewChanFuture()
	arr := ArrayReply([]Reply{
		BulkReply([]byte("field1"), false),
		BulkReply([]byte("value1"), false),
	}, false)
	KVPairsSink{F: fut}.Complete(arr)
	v, err := fut.Wait()
	require.NoError(t, err)
	pairs := v.([]Pair)
	require.Len(t, pairs, 1)
	require.Equal(t, []byte("field1"), pairs[0].Key)
	require.Equal(t, []byte("value1"), pairs[0].Value)
}

func TestKVPairsSinkRejectsOddLength(t *testing.T) {
	fut := NewChanFuture()
	arr := ArrayReply([]Reply{BulkReply([]byte("onlyone"), false)}, false)
	KVPairsSink{F: fut}.Complete(arr)
	_, err := fut.Wait()
	require.Error(t, err)
}

func TestScorePairsSinkDecodesFloats(t *testing.T) {
	fut := NewChanFuture()
	arr := ArrayReply([]Reply{
		BulkReply([]byte("alice"), false),
		BulkReply([]byte("3.5"), false),
	}, false)
	ScorePairsSink{F: fut}.Complete(arr)
	v, err := fut.Wait()
	require.NoError(t, err)
	pairs := v.([]ScorePair)
	require.Equal(t, 3.5, pairs[0].Score)
}

func TestRawSinkPassesThroughShape(t *testing.T) {
	fut := NewChanFuture()
	RawSink{F: fut}.Complete(IntegerReply(7))
	v, err := fut.Wait()
	require.NoError(t, err)
	require.Equal(t, IntegerReply(7), v)
}
