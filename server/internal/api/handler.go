package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/clickhub/clickhub/pkg/protocol"
)

// Stats is the read-only view of the hub the API reports on.
type Stats interface {
	Count() int
	TotalClicks() uint64
	ActiveClients() int
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads live counters from the hub and returns JSON responses.
type Handler struct {
	stats   Stats
	clock   clockwork.Clock
	started time.Time
	mux     *http.ServeMux
}

// New creates a Handler over stats and registers all routes. Uptime is
// measured from the moment New is called, on clock.
func New(stats Stats, clock clockwork.Clock) http.Handler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	h := &Handler{stats: stats, clock: clock, started: clock.Now(), mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/counter", h.counter)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: liveness plus headline numbers.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jsonResp(w, http.StatusOK, HealthResponse{
		State:         "ok",
		Connections:   h.stats.Count(),
		TotalClicks:   h.stats.TotalClicks(),
		UptimeSeconds: h.clock.Since(h.started).Seconds(),
	})
}

// counter returns GET /api/v1/counter: the current click counters.
func (h *Handler) counter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jsonResp(w, http.StatusOK, CounterResponse{
		TotalClicks:   h.stats.TotalClicks(),
		ActiveClients: h.stats.ActiveClients(),
		Connections:   h.stats.Count(),
		GeneratedAt:   protocol.FormatTimestamp(h.clock.Now()),
	})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
