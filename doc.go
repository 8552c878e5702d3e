/*
Package pipeline provides the core of an implicitly pipelined client for a
line-oriented request/reply key-value server speaking a RESP-family
protocol.

https://redis.io/topics/protocol

A single full-duplex TCP connection carries every request a caller sends
it: one goroutine writes requests as they're queued, a second reads
replies in the order they were sent, and each reply is routed back to the
caller that issued the matching request. Callers never block the
connection waiting for a round trip; they hand off a request and a Sink
and get a Future back.

Capabilities

- thread-safe: any number of goroutines may call Send concurrently without
coordinating among themselves,

- pipelining is implicit: the writer coalesces whatever is queued at flush
time rather than requiring callers to batch explicitly,

- transactions are supported via Begin/Queue/Exec, including WATCH,

- a Dialer wraps reconnect-on-failure in a circuit breaker without ever
resurrecting a Connection that has reached Closed.

Limitations

- no typed command surface: callers build Message values (package
message) naming the command, its arguments, and the Sink that decodes the
reply,

- no cluster routing: this module talks to exactly one server,

- no pub/sub: SUBSCRIBE-family commands switch a connection's wire
protocol to something this matcher does not understand, and are rejected.
*/
package pipeline
