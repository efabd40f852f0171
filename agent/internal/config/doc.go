// Package config loads the clicker configuration file (config.yaml).
//
// Top-level types:
//   - Config{Clicker}: the `clicker:` section parsed from YAML
//   - ClickerConfig: server_url, connections, click_interval, clicks,
//     ping_interval, metrics_url
//
// Load(path) reads the YAML file, applies defaults (1 connection, 1s click
// interval, unlimited clicks, no pings), then validates required fields and
// URL schemes.
package config
