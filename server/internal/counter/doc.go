// Package counter holds the shared click counters: the server-lifetime total
// and the per-connection counts of currently connected clients.
package counter
