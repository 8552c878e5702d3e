package message

import (
	"strconv"

	"github.com/joomcode/errorx"
	"github.com/rkvclient/pipeline/rediserror"
)

// Future is the caller-visible completion target a Sink fulfills exactly
// once. Callers normally don't implement this directly; see ChanFuture,
// CtxFuture, BatchFuture and FuncFuture in this package.
type Future interface {
	Resolve(value interface{}, err error)
}

// FuncFuture adapts a plain function to Future.
type FuncFuture func(value interface{}, err error)

// Resolve implements Future.
func (f FuncFuture) Resolve(value interface{}, err error) { f(value, err) }

// Sink converts one decoded Reply into a typed value on its Future. There
// is one Sink variant per expected reply shape (spec §4.B); the matcher
// picks the decoder by the Message's chosen Sink, not by inheritance.
type Sink interface {
	Complete(r Reply)
}

func serverErr(r Reply) *errorx.Error {
	return rediserror.Result.New("%s", r.Err).WithProperty(rediserror.PropReply, r)
}

func cancelledErr() *errorx.Error {
	return rediserror.Lifecycle.New("request was cancelled")
}

func shutdownErr(r Reply) *errorx.Error {
	return rediserror.Shutdown.New("%s", r.Err)
}

func unexpectedKind(r Reply, want string) *errorx.Error {
	return rediserror.Protocol.New("unexpected reply for %s sink: kind=%d", want, r.Kind)
}

// resolveCommon handles the three completions every sink shares: a server
// -ERR line, the synthetic Cancelled reply, and the synthetic Shutdown
// reply. Returns true if it consumed the reply (caller should not decode
// further).
func resolveCommon(f Future, r Reply) bool {
	switch r.Kind {
	case KindError:
		f.Resolve(nil, serverErr(r))
		return true
	case KindCancelled:
		f.Resolve(nil, cancelledErr())
		return true
	case KindShutdown:
		f.Resolve(nil, shutdownErr(r))
		return true
	}
	return false
}

// BoolSink decodes Integer(0)/Integer(1) to false/true, and treats a
// matched expected-literal (Pass) as true.
type BoolSink struct{ F Future }

func (s BoolSink) Complete(r Reply) {
	if resolveCommon(s.F, r) {
		return
	}
	switch r.Kind {
	case KindPass:
		s.F.Resolve(true, nil)
	case KindInteger:
		switch r.Integer {
		case 0:
			s.F.Resolve(false, nil)
		case 1:
			s.F.Resolve(true, nil)
		default:
			s.F.Resolve(nil, rediserror.Protocol.New("integer %d out of bool range", r.Integer))
		}
	default:
		s.F.Resolve(nil, unexpectedKind(r, "bool"))
	}
}

// IntSink decodes any Integer reply through unchanged; Pass resolves to 1.
type IntSink struct{ F Future }

func (s IntSink) Complete(r Reply) {
	if resolveCommon(s.F, r) {
		return
	}
	switch r.Kind {
	case KindPass:
		s.F.Resolve(int64(1), nil)
	case KindInteger:
		s.F.Resolve(r.Integer, nil)
	default:
		s.F.Resolve(nil, unexpectedKind(r, "int"))
	}
}

// BytesSink decodes a non-nil Bulk reply to its raw bytes.
type BytesSink struct{ F Future }

func (s BytesSink) Complete(r Reply) {
	if resolveCommon(s.F, r) {
		return
	}
	switch r.Kind {
	case KindBulk:
		if r.Null {
			s.F.Resolve(nil, nil)
			return
		}
		s.F.Resolve(r.Bulk, nil)
	case KindStatus:
		s.F.Resolve(r.Status, nil)
	default:
		s.F.Resolve(nil, unexpectedKind(r, "bytes"))
	}
}

// StringSink decodes a non-nil Bulk or Status reply to a UTF-8 string.
type StringSink struct{ F Future }

func (s StringSink) Complete(r Reply) {
	if resolveCommon(s.F, r) {
		return
	}
	switch r.Kind {
	case KindBulk:
		if r.Null {
			s.F.Resolve(nil, nil)
			return
		}
		s.F.Resolve(string(r.Bulk), nil)
	case KindStatus:
		s.F.Resolve(string(r.Status), nil)
	case KindPass:
		s.F.Resolve("OK", nil)
	default:
		s.F.Resolve(nil, unexpectedKind(r, "string"))
	}
}

// NullableIntSink decodes a Bulk reply as a base-10 integer, nil→absent.
type NullableIntSink struct{ F Future }

func (s NullableIntSink) Complete(r Reply) {
	if resolveCommon(s.F, r) {
		return
	}
	switch r.Kind {
	case KindBulk:
		if r.Null {
			s.F.Resolve(nil, nil)
			return
		}
		v, err := strconv.ParseInt(string(r.Bulk), 10, 64)
		if err != nil {
			s.F.Resolve(nil, rediserror.Protocol.Wrap(err, "malformed nullable integer"))
			return
		}
		s.F.Resolve(v, nil)
	case KindInteger:
		s.F.Resolve(r.Integer, nil)
	default:
		s.F.Resolve(nil, unexpectedKind(r, "nullable int"))
	}
}

// NullableFloatSink decodes a Bulk reply as a float64, nil→absent.
type NullableFloatSink struct{ F Future }

func (s NullableFloatSink) Complete(r Reply) {
	if resolveCommon(s.F, r) {
		return
	}
	if r.Kind != KindBulk {
		s.F.Resolve(nil, unexpectedKind(r, "nullable float"))
		return
	}
	if r.Null {
		s.F.Resolve(nil, nil)
		return
	}
	v, err := strconv.ParseFloat(string(r.Bulk), 64)
	if err != nil {
		s.F.Resolve(nil, rediserror.Protocol.Wrap(err, "malformed float"))
		return
	}
	s.F.Resolve(v, nil)
}

// BytesArraySink decodes a non-nil Array of Bulk replies into [][]byte.
type BytesArraySink struct{ F Future }

func (s BytesArraySink) Complete(r Reply) {
	if resolveCommon(s.F, r) {
		return
	}
	if r.Kind != KindArray {
		s.F.Resolve(nil, unexpectedKind(r, "bytes array"))
		return
	}
	if r.Null {
		s.F.Resolve(nil, nil)
		return
	}
	out := make([][]byte, len(r.Array))
	for i, el := range r.Array {
		if el.Kind != KindBulk || el.Null {
			s.F.Resolve(nil, rediserror.Protocol.New("array element %d is not a bulk string", i))
			return
		}
		out[i] = el.Bulk
	}
	s.F.Resolve(out, nil)
}

// StringArraySink decodes a non-nil Array of Bulk replies into []string.
type StringArraySink struct{ F Future }

func (s StringArraySink) Complete(r Reply) {
	if resolveCommon(s.F, r) {
		return
	}
	if r.Kind != KindArray {
		s.F.Resolve(nil, unexpectedKind(r, "string array"))
		return
	}
	if r.Null {
		s.F.Resolve(nil, nil)
		return
	}
	out := make([]string, len(r.Array))
	for i, el := range r.Array {
		if el.Kind != KindBulk || el.Null {
			s.F.Resolve(nil, rediserror.Protocol.New("array element %d is not a bulk string", i))
			return
		}
		out[i] = string(el.Bulk)
	}
	s.F.Resolve(out, nil)
}

// Pair is one (key, value) entry decoded from a flat array reply, used by
// hash-field/value and sorted-set member/score commands.
type Pair struct {
	Key   []byte
	Value []byte
}

// KVPairsSink decodes a flat Array of Bulk replies into Pair entries,
// failing with a protocol error on odd length.
type KVPairsSink struct{ F Future }

func (s KVPairsSink) Complete(r Reply) {
	if resolveCommon(s.F, r) {
		return
	}
	if r.Kind != KindArray {
		s.F.Resolve(nil, unexpectedKind(r, "kv pairs"))
		return
	}
	if r.Null {
		s.F.Resolve(nil, nil)
		return
	}
	if len(r.Array)%2 != 0 {
		s.F.Resolve(nil, rediserror.Protocol.New("odd-length array for pair decode: %d elements", len(r.Array)))
		return
	}
	out := make([]Pair, len(r.Array)/2)
	for i := range out {
		k, v := r.Array[2*i], r.Array[2*i+1]
		if k.Kind != KindBulk || v.Kind != KindBulk {
			s.F.Resolve(nil, rediserror.Protocol.New("pair element %d is not a bulk string", i))
			return
		}
		out[i] = Pair{Key: k.Bulk, Value: v.Bulk}
	}
	s.F.Resolve(out, nil)
}

// ScorePair is one (member, score) entry decoded from a sorted-set reply.
type ScorePair struct {
	Member []byte
	Score  float64
}

// ScorePairsSink decodes a flat Array of (member, score-as-bulk) replies,
// failing with a protocol error on odd length or a malformed score.
type ScorePairsSink struct{ F Future }

func (s ScorePairsSink) Complete(r Reply) {
	if resolveCommon(s.F, r) {
		return
	}
	if r.Kind != KindArray {
		s.F.Resolve(nil, unexpectedKind(r, "score pairs"))
		return
	}
	if r.Null {
		s.F.Resolve(nil, nil)
		return
	}
	if len(r.Array)%2 != 0 {
		s.F.Resolve(nil, rediserror.Protocol.New("odd-length array for score-pair decode: %d elements", len(r.Array)))
		return
	}
	out := make([]ScorePair, len(r.Array)/2)
	for i := range out {
		m, sc := r.Array[2*i], r.Array[2*i+1]
		if m.Kind != KindBulk || sc.Kind != KindBulk {
			s.F.Resolve(nil, rediserror.Protocol.New("score-pair element %d is not a bulk string", i))
			return
		}
		score, err := strconv.ParseFloat(string(sc.Bulk), 64)
		if err != nil {
			s.F.Resolve(nil, rediserror.Protocol.Wrap(err, "malformed score"))
			return
		}
		out[i] = ScorePair{Member: m.Bulk, Score: score}
	}
	s.F.Resolve(out, nil)
}

// RawSink completes with the decoded Reply itself, untyped. Used by
// callers (and the transaction layer) that need to inspect the shape
// before deciding how to interpret it.
type RawSink struct{ F Future }

func (s RawSink) Complete(r Reply) {
	switch r.Kind {
	case KindCancelled:
		s.F.Resolve(nil, cancelledErr())
		return
	case KindShutdown:
		s.F.Resolve(nil, shutdownErr(r))
		return
	}
	s.F.Resolve(r, nil)
}

// StatusSink decodes a Status reply (or a matched Pass) to its string.
type StatusSink struct{ F Future }

func (s StatusSink) Complete(r Reply) {
	if resolveCommon(s.F, r) {
		return
	}
	switch r.Kind {
	case KindStatus:
		s.F.Resolve(string(r.Status), nil)
	case KindPass:
		s.F.Resolve("OK", nil)
	default:
		s.F.Resolve(nil, unexpectedKind(r, "status"))
	}
}
