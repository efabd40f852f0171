// Package ws implements the WebSocket click hub for clickhub-server.
//
// New(counters, registry, opts) creates a Hub over the shared counter state and
// connection registry. Hub.ServeHTTP upgrades a request to WebSocket and runs
// the connection's session until it ends. Hub.Run(ctx) blocks until ctx is
// cancelled, then closes every outbound queue so connected clients receive a
// close frame.
//
// Each session:
//   - registers an outbox under a fresh UUID and queues init with the current total
//   - reads frames, decodes them with package protocol and applies click/ping
//   - drains its outbox onto the socket in FIFO order
//   - sends WebSocket ping frames every PingInterval, when enabled
//   - on the first failure of any duty, closes the socket, deregisters and
//     forgets its per-client count
//
// A click is acknowledged to the sender with click_response and broadcast to
// everyone else as global_update. Enqueueing never blocks, so a slow client
// only grows its own queue.
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level.
package ws
