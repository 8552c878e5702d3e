// Package rediserror defines the single error type used throughout the
// engine. Every failure path — configuration, lifecycle, protocol, server
// replies, timeouts, shutdown — produces an *errorx.Error from this
// package's namespace, carrying the context (connection, command, db) that
// a caller needs to decide whether to retry at a higher level.
package rediserror

import "github.com/joomcode/errorx"

// Traits classify errors for callers that want to react generically
// (e.g. "is it worth reconnecting") without switching on Type.
var (
	// Connectivity marks errors coming from dial/io failures: the socket
	// is gone, reconnection may help.
	Connectivity = errorx.RegisterTrait("connectivity")
	// Temporary marks errors that are not a sign of a bug: server error
	// replies, timeouts.
	Temporary = errorx.RegisterTrait("temporary")
)

// Namespace roots every error Type this engine produces.
var Namespace = errorx.NewNamespace("rediskv")

var (
	// Opts: invalid configuration at construction or property set.
	// Raised synchronously, never crosses a Future.
	Opts = Namespace.NewType("opts")

	// Lifecycle: operation attempted in the wrong connection state or not
	// supported by the engine — enqueue after Closing/Closed, a nested or
	// already-finished transaction, a SUBSCRIBE-family command, an
	// unsupported argument type.
	Lifecycle = Namespace.NewType("lifecycle")

	// Connection: dial failed, or a write found no open socket.
	// Connectivity-trait: callers may treat this as worth a reconnect.
	Connection = Namespace.NewType("connection", Connectivity)

	// IO: read/write failure on an established socket. A read deadline
	// expiry is reported as Timeout instead.
	IO = Namespace.NewType("io", Connectivity)

	// Protocol: the decoder found an unexpected prefix byte, a malformed
	// integer, EOF mid-frame, an unmatched reply, or a must-succeed
	// command failed. Fatal when encountered on the read side.
	Protocol = Namespace.NewType("protocol")

	// Result: a -ERR reply from the server. Non-fatal: completes only the
	// one message's sink.
	Result = Namespace.NewType("result", Temporary)

	// Timeout: a socket read hit its IOTimeout deadline.
	Timeout = Namespace.NewType("timeout", Temporary)

	// Shutdown: the connection closed (gracefully or abortively) while
	// the message was still outstanding.
	Shutdown = Namespace.NewType("shutdown")
)

// Property keys used to attach request-scoped context to an error via
// (*errorx.Error).WithProperty. Mirrors the teacher's
// redisconn/error.go RegisterProperty convention.
var (
	PropConn    = errorx.RegisterProperty("conn")
	PropDB      = errorx.RegisterProperty("db")
	PropCommand = errorx.RegisterProperty("command")
	PropOldest  = errorx.RegisterProperty("oldest_in_flight")
	PropReply   = errorx.RegisterProperty("reply")
)

// WithConn attaches the connection's identity, skipping the property if
// it's already set (copy-safe, matches the teacher's withNewProperty guard).
func WithConn(err *errorx.Error, conn interface{}) *errorx.Error {
	if _, ok := err.Property(PropConn); ok {
		return err
	}
	return err.WithProperty(PropConn, conn)
}

// IsServerError reports whether err is a non-fatal -ERR reply from the
// server, as opposed to a protocol or connectivity failure.
func IsServerError(err error) bool {
	return errorx.IsOfType(err, Result)
}

// IsFatal reports whether err should tear down the connection if seen on
// the read side, per spec §7: protocol violations and IO failures are
// fatal, server error replies and timeouts are not.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errorx.IsOfType(err, Protocol) || errorx.IsOfType(err, IO) || errorx.IsOfType(err, Connection)
}
