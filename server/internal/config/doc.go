// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `clicker:` key is ignored by the server binary).
//
// Config fields:
//   - Host, Port            : listen address (default 0.0.0.0:8765)
//   - WSPath                : WebSocket endpoint path (default "/")
//   - Log.Level, Log.Format : slog level (reloadable) and handler (json|text)
//   - WebSocket.WriteTimeout: per-frame write deadline (default 10s)
//   - WebSocket.PingInterval: keepalive ping period, 0 disables (default 54s)
//   - WebSocket.PongWait    : read deadline extended on every frame (default 60s)
//   - WebSocket.ReadLimit   : max inbound frame size (default 64 KiB)
//   - Metrics.Enabled, .Path: Prometheus endpoint (default on, /metrics)
//
// Load(path) applies defaults before unmarshalling, then validates.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It watches the parent directory so
// editors that save by renaming a temp file over the config are still seen.
package config
