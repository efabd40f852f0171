package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clickhub/clickhub/server/internal/counter"
	"github.com/clickhub/clickhub/server/internal/metrics"
	"github.com/clickhub/clickhub/server/internal/registry"
)

const (
	// defaultWriteTimeout is the deadline for a single write to a client.
	defaultWriteTimeout = 10 * time.Second

	// defaultReadLimit caps inbound frame size. Oversized frames end the
	// session with close 1009, so the cap sits far above any real message.
	defaultReadLimit = 64 << 10
)

// Options tunes a Hub. Zero values select the defaults noted per field.
type Options struct {
	// WriteTimeout bounds each frame write (default 10s).
	WriteTimeout time.Duration

	// PingInterval is the WebSocket ping period. Zero disables keepalive
	// and read deadlines.
	PingInterval time.Duration

	// PongWait is how long a connection may stay silent before it is
	// considered dead. Only used when PingInterval > 0.
	PongWait time.Duration

	// ReadLimit is the maximum inbound frame size (default 64 KiB).
	ReadLimit int64

	// Clock stamps click responses and drives keepalive (default real clock).
	Clock clockwork.Clock

	// Metrics receives hub instrumentation (default: an unexported registry).
	Metrics *metrics.Metrics

	// Logger is the base logger (default slog.Default()).
	Logger *slog.Logger
}

// Hub accepts WebSocket clients, runs one session per connection and fans
// click updates out to every registered connection.
type Hub struct {
	counters *counter.State
	conns    *registry.Registry
	opts     Options
	clock    clockwork.Clock
	metrics  *metrics.Metrics
	log      *slog.Logger
	upgrader websocket.Upgrader

	closing atomic.Bool
}

// New creates a Hub over the shared counter state and connection registry.
func New(counters *counter.State, conns *registry.Registry, opts Options) *Hub {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	if opts.PingInterval > 0 && opts.PongWait <= opts.PingInterval {
		opts.PongWait = opts.PingInterval * 10 / 9
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Hub{
		counters: counters,
		conns:    conns,
		opts:     opts,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Any origin may connect; CORS belongs to the reverse proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run blocks until ctx is cancelled, then refuses new connections and closes
// every registered outbound queue so sessions send a close frame and end.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closing.Store(true)
	n := h.closeAll()
	h.log.Info("ws: hub stopped", "closed_sessions", n)
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client
// until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closing.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		h.metrics.HandshakeFailures.Inc()
		h.log.Debug("ws: handshake failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	h.serve(r.Context(), conn, r.RemoteAddr)
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	return h.conns.Len()
}

// TotalClicks returns the server-lifetime click total.
func (h *Hub) TotalClicks() uint64 {
	return h.counters.Total()
}

// ActiveClients returns the number of connected clients that have clicked.
func (h *Hub) ActiveClients() int {
	return h.counters.Active()
}

// --- internal ---------------------------------------------------------------

type closer interface{ Close() }

func (h *Hub) closeAll() int {
	n := 0
	h.conns.ForEach(func(_ uuid.UUID, s registry.Sink) {
		if c, ok := s.(closer); ok {
			c.Close()
			n++
		}
	})
	return n
}

func (h *Hub) keepalive() bool {
	return h.opts.PingInterval > 0
}
