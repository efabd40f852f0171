// Package outbox provides the per-connection outbound message queue.
//
// A Queue is an unbounded FIFO of encoded messages. Enqueue never blocks: a
// slow WebSocket reader makes its own queue grow in memory instead of stalling
// the click handler or the broadcast loop. Next blocks the connection's writer
// until an item, a close, or context cancellation arrives.
//
// After Close, Enqueue returns ErrClosed and Next keeps returning the items
// already queued before reporting ErrClosed.
package outbox
