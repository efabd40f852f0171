// Package clicker is a load and smoke-test client for clickhub-server.
//
// New(cfg) builds a Clicker; Run(ctx) opens cfg.Connections WebSocket
// connections and on each one:
//   - waits for init and records the starting total
//   - sends a click every ClickInterval until Clicks have been sent
//     (forever when Clicks is 0), plus a protocol ping every PingInterval
//   - tallies click_response, global_update and pong messages
//   - reconnects with truncated exponential backoff (500ms to 30s, ±25%
//     jitter) when the connection is lost; clicks in flight are not resent
//
// Run returns a Report once every connection has finished its quota or ctx
// is cancelled. With MetricsURL set it then scrapes the server's Prometheus
// endpoint and reports clickhub_clicks_total for comparison.
package clicker
