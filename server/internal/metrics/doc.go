// Package metrics defines the Prometheus collectors exported by
// clickhub-server and the HTTP handler that serves them.
//
// Collectors are registered on the Registerer passed to New rather than the
// global default registry, so tests can build isolated instances.
package metrics
