package clicker

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clickhub/clickhub/agent/internal/config"
	"github.com/clickhub/clickhub/pkg/protocol"
)

// --- test helpers -----------------------------------------------------------

// fakeHub speaks the clickhub protocol: init on connect, a global_update and
// click_response for every click, pong for every ping.
type fakeHub struct {
	mu       sync.Mutex
	total    uint64
	sessions int

	// dropFirst closes the first connection straight after init.
	dropFirst bool

	upgrader websocket.Upgrader
}

func (s *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.sessions++
	n, total := s.sessions, s.total
	s.mu.Unlock()

	send := func(m protocol.Message) error {
		return conn.WriteMessage(websocket.TextMessage, protocol.MustEncode(m))
	}
	if err := send(protocol.Init{TotalClicks: total}); err != nil {
		return
	}
	if s.dropFirst && n == 1 {
		return
	}

	var own uint64
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		switch msg.(type) {
		case protocol.Click:
			s.mu.Lock()
			s.total++
			t := s.total
			s.mu.Unlock()
			own++
			// The update goes first so a client that stops at its last
			// click_response has already seen every update.
			send(protocol.GlobalUpdate{TotalClicks: t}) //nolint:errcheck
			send(protocol.ClickResponse{ //nolint:errcheck
				ClientClicks: own,
				TotalClicks:  t,
				Timestamp:    protocol.FormatTimestamp(time.Now()),
			})
		case protocol.Ping:
			send(protocol.Pong{}) //nolint:errcheck
		}
	}
}

func (s *fakeHub) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func startFakeHub(t *testing.T, h *fakeHub) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestClicker(cfg config.ClickerConfig) *Clicker {
	c := New(cfg)
	c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	c.backoffInitial = time.Millisecond
	return c
}

func run(t *testing.T, c *Clicker, timeout time.Duration) Report {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	rep, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return rep
}

// --- Run ----------------------------------------------------------------------

func TestClicker_SendsQuotaOnEveryConnection(t *testing.T) {
	hub := &fakeHub{}
	url := startFakeHub(t, hub)

	rep := run(t, newTestClicker(config.ClickerConfig{
		ServerURL:     url,
		Connections:   3,
		ClickInterval: time.Millisecond,
		Clicks:        5,
	}), 10*time.Second)

	if rep.Sessions != 3 {
		t.Errorf("Sessions: got %d, want 3", rep.Sessions)
	}
	if rep.ClicksSent != 15 {
		t.Errorf("ClicksSent: got %d, want 15", rep.ClicksSent)
	}
	if rep.ClickResponses != 15 {
		t.Errorf("ClickResponses: got %d, want 15", rep.ClickResponses)
	}
	if rep.GlobalUpdates != 15 {
		t.Errorf("GlobalUpdates: got %d, want 15", rep.GlobalUpdates)
	}
	if rep.LastTotal != 15 {
		t.Errorf("LastTotal: got %d, want 15", rep.LastTotal)
	}
	if rep.Lost() != 0 {
		t.Errorf("Lost: got %d, want 0", rep.Lost())
	}
	if hub.Total() != 15 {
		t.Errorf("server total: got %d, want 15", hub.Total())
	}
}

func TestClicker_Pings(t *testing.T) {
	url := startFakeHub(t, &fakeHub{})

	rep := run(t, newTestClicker(config.ClickerConfig{
		ServerURL:     url,
		Connections:   1,
		ClickInterval: 20 * time.Millisecond,
		Clicks:        5,
		PingInterval:  2 * time.Millisecond,
	}), 10*time.Second)

	if rep.Pongs == 0 {
		t.Error("Pongs: got 0, want > 0")
	}
	if rep.ClickResponses != 5 {
		t.Errorf("ClickResponses: got %d, want 5", rep.ClickResponses)
	}
}

func TestClicker_InitSeedsLastTotal(t *testing.T) {
	hub := &fakeHub{total: 41}
	url := startFakeHub(t, hub)

	rep := run(t, newTestClicker(config.ClickerConfig{
		ServerURL:     url,
		Connections:   1,
		ClickInterval: time.Millisecond,
		Clicks:        1,
	}), 10*time.Second)

	if rep.LastTotal != 42 {
		t.Errorf("LastTotal: got %d, want 42", rep.LastTotal)
	}
}

func TestClicker_ReconnectsAfterDrop(t *testing.T) {
	hub := &fakeHub{dropFirst: true}
	url := startFakeHub(t, hub)

	rep := run(t, newTestClicker(config.ClickerConfig{
		ServerURL:     url,
		Connections:   1,
		ClickInterval: 5 * time.Millisecond,
		Clicks:        4,
	}), 10*time.Second)

	if rep.Sessions < 2 {
		t.Errorf("Sessions: got %d, want >= 2", rep.Sessions)
	}
	if rep.ClicksSent != 4 {
		t.Errorf("ClicksSent: got %d, want 4", rep.ClicksSent)
	}
	if rep.ClickResponses+rep.Lost() != rep.ClicksSent {
		t.Errorf("responses %d + lost %d != sent %d", rep.ClickResponses, rep.Lost(), rep.ClicksSent)
	}
}

func TestClicker_UnlimitedStopsOnCancel(t *testing.T) {
	url := startFakeHub(t, &fakeHub{})
	c := newTestClicker(config.ClickerConfig{
		ServerURL:     url,
		Connections:   2,
		ClickInterval: time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	var (
		rep Report
		err error
	)
	go func() {
		rep, err = c.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if err != nil {
		t.Errorf("Run: %v", err)
	}
	if rep.ClicksSent == 0 {
		t.Error("ClicksSent: got 0, want > 0")
	}
}

func TestClicker_DialFailure_RetriesUntilCancel(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	rep := run(t, newTestClicker(config.ClickerConfig{
		ServerURL:     url,
		Connections:   1,
		ClickInterval: time.Millisecond,
		Clicks:        1,
	}), 50*time.Millisecond)

	if rep.Sessions != 0 || rep.ClicksSent != 0 {
		t.Errorf("expected no sessions, got %+v", rep)
	}
}

// --- metrics scrape -----------------------------------------------------------

const exposition = `# HELP clickhub_clicks_total Clicks received since the server started.
# TYPE clickhub_clicks_total counter
clickhub_clicks_total 7
# HELP clickhub_connections_current Connected WebSocket clients.
# TYPE clickhub_connections_current gauge
clickhub_connections_current 0
`

func TestClicker_ScrapesServerClicks(t *testing.T) {
	url := startFakeHub(t, &fakeHub{})
	metricsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		io.WriteString(w, exposition) //nolint:errcheck
	}))
	defer metricsSrv.Close()

	rep := run(t, newTestClicker(config.ClickerConfig{
		ServerURL:     url,
		Connections:   1,
		ClickInterval: time.Millisecond,
		Clicks:        2,
		MetricsURL:    metricsSrv.URL,
	}), 10*time.Second)

	if !rep.Scraped {
		t.Fatal("Scraped: got false")
	}
	if rep.ServerClicks != 7 {
		t.Errorf("ServerClicks: got %v, want 7", rep.ServerClicks)
	}
}

func TestClicker_ScrapeFailureReturnsReport(t *testing.T) {
	url := startFakeHub(t, &fakeHub{})
	metricsSrv := httptest.NewServer(http.NotFoundHandler())
	defer metricsSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rep, err := newTestClicker(config.ClickerConfig{
		ServerURL:     url,
		Connections:   1,
		ClickInterval: time.Millisecond,
		Clicks:        2,
		MetricsURL:    metricsSrv.URL,
	}).Run(ctx)

	if err == nil {
		t.Fatal("expected scrape error")
	}
	if rep.ClicksSent != 2 {
		t.Errorf("ClicksSent: got %d, want 2", rep.ClicksSent)
	}
	if rep.Scraped {
		t.Error("Scraped: got true")
	}
}

func TestParseMetrics_MissingFamily(t *testing.T) {
	mfs, err := parseMetrics(strings.NewReader("# TYPE other_total counter\nother_total 3\n"))
	if err != nil {
		t.Fatalf("parseMetrics: %v", err)
	}
	if _, ok := mfs[clicksMetric]; ok {
		t.Errorf("unexpected %s family", clicksMetric)
	}
	if got := sumFamily(mfs["other_total"]); got != 3 {
		t.Errorf("sumFamily: got %v, want 3", got)
	}
}

// --- backoff ------------------------------------------------------------------

func TestBackoff_Resets(t *testing.T) {
	b := newBackoff(time.Second)
	first := b.next()
	if first > 2*time.Second {
		t.Errorf("first backoff too large: %v", first)
	}
	for i := 0; i < 10; i++ {
		b.next()
	}
	b.reset()
	if after := b.next(); after > 2*time.Second {
		t.Errorf("backoff after reset too large: %v", after)
	}
}

func TestBackoff_NeverExceedsMax(t *testing.T) {
	b := newBackoff(0)
	for i := 0; i < 50; i++ {
		// With jitter, max is backoffMax * 1.25
		if d := b.next(); d > backoffMax*2 {
			t.Errorf("backoff[%d] = %v, exceeds 2×max", i, d)
		}
	}
}
