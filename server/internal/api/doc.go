// Package api implements the HTTP REST API for clickhub-server.
//
// New(stats, clock) returns an http.Handler that serves:
//
//	GET /api/v1/health   - state "ok", connection count, total clicks, uptime
//	GET /api/v1/counter  - total clicks, active clients, connections, generated_at
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//   - Read live values through the Stats interface (the ws.Hub satisfies it)
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
