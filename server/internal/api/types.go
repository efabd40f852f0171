package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State         string  `json:"state"`
	Connections   int     `json:"connections"`
	TotalClicks   uint64  `json:"total_clicks"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// CounterResponse is the payload for GET /api/v1/counter.
type CounterResponse struct {
	TotalClicks   uint64 `json:"total_clicks"`
	ActiveClients int    `json:"active_clients"`
	Connections   int    `json:"connections"`
	GeneratedAt   string `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
