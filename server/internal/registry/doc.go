// Package registry tracks the live WebSocket connections of clickhub-server.
//
// Registry maps a connection ID to the Sink that feeds the connection's
// outbound queue. An entry is added once when the connection is established
// and removed once when it is torn down. All operations share one RWMutex and
// none of them performs network I/O: Sink.Enqueue must not block.
//
// RegisterFirst queues a connection's first message inside the same critical
// section that publishes it, so broadcasts can only land behind it.
package registry
