package clicker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/clickhub/clickhub/agent/internal/config"
	"github.com/clickhub/clickhub/pkg/protocol"
)

const (
	// initTimeout bounds the wait for the server's init after connecting.
	initTimeout = 10 * time.Second

	writeTimeout = 10 * time.Second
)

// errFinished ends a session once its click quota is sent and acknowledged.
var errFinished = errors.New("clicker: quota reached")

// Clicker drives one or more WebSocket connections against clickhub-server,
// sending clicks (and optionally protocol pings) on a fixed interval.
// Lost connections are re-established with exponential backoff; each new
// session starts from the server's fresh init.
type Clicker struct {
	cfg    config.ClickerConfig
	dialer *websocket.Dialer
	http   *http.Client
	clock  clockwork.Clock
	log    *slog.Logger
	tally  tally

	backoffInitial time.Duration // injectable for tests
}

// New creates a Clicker for cfg. It does not connect until Run is called.
func New(cfg config.ClickerConfig) *Clicker {
	return &Clicker{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		http:           &http.Client{Timeout: scrapeTimeout},
		clock:          clockwork.NewRealClock(),
		log:            slog.Default(),
		backoffInitial: backoffInitial,
	}
}

// Run starts cfg.Connections connections and blocks until each has sent its
// click quota and seen every click acknowledged, or until ctx is cancelled.
// Cancellation is a normal way to stop and is not reported as an error.
//
// When MetricsURL is configured the server's click counter is scraped once
// all connections have finished; a failed scrape is returned alongside the
// otherwise complete Report.
func (c *Clicker) Run(ctx context.Context) (Report, error) {
	var g errgroup.Group
	for i := 0; i < c.cfg.Connections; i++ {
		n := i
		g.Go(func() error { return c.worker(ctx, n) })
	}
	err := g.Wait()

	rep := c.tally.report()
	if err != nil || c.cfg.MetricsURL == "" {
		return rep, err
	}

	// ctx may already be cancelled; the scrape gets its own deadline.
	scrapeCtx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()
	v, err := scrapeServerClicks(scrapeCtx, c.http, c.cfg.MetricsURL)
	if err != nil {
		return rep, fmt.Errorf("clicker: scrape %s: %w", c.cfg.MetricsURL, err)
	}
	rep.ServerClicks, rep.Scraped = v, true
	return rep, nil
}

// worker keeps one logical connection alive until its quota is done or ctx
// is cancelled.
func (c *Clicker) worker(ctx context.Context, n int) error {
	log := c.log.With("worker", n)
	bo := newBackoff(c.backoffInitial)
	var sent uint64 // clicks sent by this worker across all sessions

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.ServerURL, nil)
		if err != nil {
			wait := bo.next()
			log.Error("clicker: dial failed, will retry",
				"url", c.cfg.ServerURL,
				"err", err,
				"retry_in", wait)
			if !c.sleep(ctx, wait) {
				return nil
			}
			continue
		}

		bo.reset()
		c.tally.sessions.Add(1)
		log.Info("clicker: connected", "url", c.cfg.ServerURL)

		err = c.session(ctx, conn, &sent)
		conn.Close()

		if errors.Is(err, errFinished) {
			log.Info("clicker: done", "clicks", sent)
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		wait := bo.next()
		log.Warn("clicker: connection lost, will reconnect",
			"url", c.cfg.ServerURL,
			"err", err,
			"retry_in", wait)
		if !c.sleep(ctx, wait) {
			return nil
		}
	}
}

// session runs one connection: it waits for init, then reads and writes
// until the connection fails, ctx is cancelled or the quota is finished.
func (c *Clicker) session(ctx context.Context, conn *websocket.Conn, sent *uint64) error {
	conn.SetReadDeadline(time.Now().Add(initTimeout)) //nolint:errcheck
	msg, err := readMessage(conn)
	if err != nil {
		return fmt.Errorf("read init: %w", err)
	}
	init, ok := msg.(protocol.Init)
	if !ok {
		return fmt.Errorf("first message was %s, want %s", msg.Type(), protocol.TypeInit)
	}
	conn.SetReadDeadline(time.Time{}) //nolint:errcheck
	c.tally.observe(init.TotalClicks)

	var acked atomic.Uint64
	acks := make(chan struct{}, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(conn, &acked, acks) })
	g.Go(func() error { return c.writeLoop(gctx, conn, sent, &acked, acks) })
	g.Go(func() error {
		<-gctx.Done()
		conn.Close()
		return nil
	})
	return g.Wait()
}

// readLoop tallies server messages until the connection fails.
func (c *Clicker) readLoop(conn *websocket.Conn, acked *atomic.Uint64, acks chan<- struct{}) error {
	for {
		msg, err := readMessage(conn)
		if errors.Is(err, protocol.ErrMalformed) || errors.Is(err, protocol.ErrUnknownType) {
			c.log.Debug("clicker: dropped server message", "err", err)
			continue
		}
		if err != nil {
			return err
		}

		switch m := msg.(type) {
		case protocol.ClickResponse:
			c.tally.responses.Add(1)
			c.tally.observe(m.TotalClicks)
			acked.Add(1)
			select {
			case acks <- struct{}{}:
			default:
			}
		case protocol.GlobalUpdate:
			c.tally.updates.Add(1)
			c.tally.observe(m.TotalClicks)
		case protocol.Pong:
			c.tally.pongs.Add(1)
		case protocol.Init:
			c.tally.observe(m.TotalClicks)
		case protocol.Click, protocol.Ping:
			// Client-to-server only.
		}
	}
}

// writeLoop sends clicks and pings. It is the only writer on conn. Once the
// worker's quota is sent and every click of this session is acknowledged, it
// closes the connection cleanly and returns errFinished.
func (c *Clicker) writeLoop(ctx context.Context, conn *websocket.Conn, sent *uint64, acked *atomic.Uint64, acks <-chan struct{}) error {
	clicks := c.clock.NewTicker(c.cfg.ClickInterval)
	defer clicks.Stop()

	var pings <-chan time.Time
	if c.cfg.PingInterval > 0 {
		t := c.clock.NewTicker(c.cfg.PingInterval)
		defer t.Stop()
		pings = t.Chan()
	}

	var sessionSent uint64
	for {
		quotaDone := c.cfg.Clicks > 0 && *sent >= c.cfg.Clicks
		if quotaDone && acked.Load() >= sessionSent {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return errFinished
		}

		var tick <-chan time.Time
		if !quotaDone {
			tick = clicks.Chan()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			if err := writeMessage(conn, protocol.Click{}); err != nil {
				return err
			}
			*sent++
			sessionSent++
			c.tally.clicks.Add(1)
		case <-pings:
			if err := writeMessage(conn, protocol.Ping{}); err != nil {
				return err
			}
		case <-acks:
		}
	}
}

// sleep waits for d or until ctx is cancelled. It reports whether the full
// duration elapsed.
func (c *Clicker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(d):
		return true
	}
}

func readMessage(conn *websocket.Conn) (protocol.Message, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return protocol.Decode(data)
}

func writeMessage(conn *websocket.Conn, m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
