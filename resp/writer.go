package resp

import (
	"strconv"

	"github.com/rkvclient/pipeline/rediserror"
)

// literalReq maps the handful of zero-argument commands the engine issues
// on every connection (handshake PING, transaction framing, graceful QUIT)
// to their pre-encoded wire bytes, skipping AppendCommand's formatting work
// for them the way the teacher's resp/const.go literal constants do.
var literalReq = map[string]string{
	"PING":    PingReq,
	"MULTI":   MultiReq,
	"EXEC":    ExecReq,
	"DISCARD": DiscardReq,
	"QUIT":    QuitReq,
}

// AppendCommand appends one command as a RESP multi-bulk array: an array
// header counting the command name plus its arguments, then one bulk item
// per argument. Grounded on the teacher's resp.AppendRequest, extended with
// the numeric/bool argument coercions spec.md's doc.go promises callers
// ("nil, []byte, string, int..., float64, float32, bool").
func AppendCommand(buf []byte, cmd string, args []interface{}) ([]byte, error) {
	if len(args) == 0 {
		if lit, ok := literalReq[cmd]; ok {
			return append(buf, lit...), nil
		}
	}
	buf = appendHead(buf, '*', int64(len(args)+1))
	buf = appendBulkString(buf, cmd)
	for _, arg := range args {
		var err error
		buf, err = appendArg(buf, arg)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendArg(buf []byte, arg interface{}) ([]byte, error) {
	switch v := arg.(type) {
	case nil:
		buf = appendBulkString(buf, "")
	case []byte:
		buf = appendHead(buf, '$', int64(len(v)))
		buf = append(buf, v...)
		buf = append(buf, '\r', '\n')
	case string:
		buf = appendBulkString(buf, v)
	case bool:
		if v {
			buf = appendBulkString(buf, "1")
		} else {
			buf = appendBulkString(buf, "0")
		}
	case int:
		buf = appendBulkString(buf, strconv.FormatInt(int64(v), 10))
	case int8:
		buf = appendBulkString(buf, strconv.FormatInt(int64(v), 10))
	case int16:
		buf = appendBulkString(buf, strconv.FormatInt(int64(v), 10))
	case int32:
		buf = appendBulkString(buf, strconv.FormatInt(int64(v), 10))
	case int64:
		buf = appendBulkString(buf, strconv.FormatInt(v, 10))
	case uint:
		buf = appendBulkString(buf, strconv.FormatUint(uint64(v), 10))
	case uint8:
		buf = appendBulkString(buf, strconv.FormatUint(uint64(v), 10))
	case uint16:
		buf = appendBulkString(buf, strconv.FormatUint(uint64(v), 10))
	case uint32:
		buf = appendBulkString(buf, strconv.FormatUint(uint64(v), 10))
	case uint64:
		buf = appendBulkString(buf, strconv.FormatUint(v, 10))
	case float32:
		buf = appendBulkString(buf, strconv.FormatFloat(float64(v), 'f', -1, 32))
	case float64:
		buf = appendBulkString(buf, strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return nil, rediserror.Lifecycle.New("argument type %T not supported", arg)
	}
	return buf, nil
}

func appendBulkString(buf []byte, s string) []byte {
	buf = appendHead(buf, '$', int64(len(s)))
	buf = append(buf, s...)
	return append(buf, '\r', '\n')
}

func appendHead(buf []byte, tag byte, n int64) []byte {
	buf = append(buf, tag)
	buf = appendDecimal(buf, n)
	return append(buf, '\r', '\n')
}

func appendDecimal(buf []byte, n int64) []byte {
	if n == 0 {
		return append(buf, '0')
	}
	var tmp [20]byte
	neg := n < 0
	u := uint64(n)
	if neg {
		u = uint64(-n)
	}
	i := len(tmp)
	for u > 0 {
		i--
		tmp[i] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		buf = append(buf, '-')
	}
	return append(buf, tmp[i:]...)
}
