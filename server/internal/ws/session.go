package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/clickhub/clickhub/pkg/protocol"
	"github.com/clickhub/clickhub/server/internal/metrics"
	"github.com/clickhub/clickhub/server/internal/outbox"
)

// session is the lifecycle of one WebSocket connection.
type session struct {
	hub    *Hub
	id     uuid.UUID
	conn   *websocket.Conn
	queue  *outbox.Queue
	log    *slog.Logger
	opened time.Time
}

// serve runs a freshly upgraded connection to completion. It registers the
// connection, sends init, runs the inbound and outbound duties until either
// ends, then deregisters and forgets the connection.
func (h *Hub) serve(ctx context.Context, conn *websocket.Conn, remote string) {
	s := &session{
		hub:    h,
		id:     uuid.New(),
		conn:   conn,
		queue:  outbox.New(),
		opened: h.clock.Now(),
	}
	s.log = h.log.With("conn", s.id.String(), "remote", remote)

	// init is read and queued under the registry write lock: any click
	// recorded before it is counted in init, any click after it is broadcast
	// behind it. Lock order is registry then counter; clicks never hold both.
	err := h.conns.RegisterFirst(s.id, s.queue, func() ([]byte, error) {
		return protocol.Encode(protocol.Init{TotalClicks: h.counters.Total()})
	})
	if err != nil {
		s.log.Error("ws: register failed", "err", err)
		conn.Close()
		return
	}
	h.metrics.ConnectionsTotal.Inc()
	h.metrics.ConnectionsCurrent.Inc()
	h.metrics.MessagesSent.WithLabelValues(string(protocol.TypeInit)).Inc()
	s.log.Info("ws: client connected")

	if h.closing.Load() {
		// Registered after Run swept the registry.
		s.queue.Close()
	}

	err = s.run(ctx)

	h.conns.Deregister(s.id)
	h.counters.Forget(s.id)
	s.queue.Close()
	h.metrics.ConnectionsCurrent.Dec()
	h.metrics.SessionDuration.Observe(h.clock.Since(s.opened).Seconds())
	s.log.Info("ws: client disconnected", "reason", err)
}

// run executes the session's duties under one errgroup. The first duty to
// return cancels the group; the closer then closes the socket, which unblocks
// a reader parked in ReadMessage. Every duty returns a non-nil error so the
// group is always cancelled.
func (s *session) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(s.readLoop)
	g.Go(func() error { return s.writeLoop(gctx) })
	if s.hub.keepalive() {
		g.Go(func() error { return s.pingLoop(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		s.conn.Close()
		return gctx.Err()
	})

	return g.Wait()
}

// readLoop decodes inbound frames until the connection fails.
func (s *session) readLoop() error {
	h := s.hub
	s.conn.SetReadLimit(h.opts.ReadLimit)
	if h.keepalive() {
		s.extendDeadline()
		s.conn.SetPongHandler(func(string) error {
			s.extendDeadline()
			return nil
		})
	}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if h.keepalive() {
			s.extendDeadline()
		}
		s.handle(data)
	}
}

// handle applies one inbound payload. Undecodable payloads are dropped.
func (s *session) handle(data []byte) {
	h := s.hub
	msg, err := protocol.Decode(data)
	if err != nil {
		h.metrics.MessagesReceived.WithLabelValues(metrics.KindInvalid).Inc()
		s.log.Debug("ws: dropped inbound message", "err", err)
		return
	}

	switch msg.(type) {
	case protocol.Click:
		h.metrics.MessagesReceived.WithLabelValues(metrics.KindClick).Inc()
		h.click(s.id)
	case protocol.Ping:
		h.metrics.MessagesReceived.WithLabelValues(metrics.KindPing).Inc()
		h.SendTo(s.id, protocol.Pong{})
	case protocol.Init, protocol.ClickResponse, protocol.GlobalUpdate, protocol.Pong:
		// Server-to-client only.
		h.metrics.MessagesReceived.WithLabelValues(metrics.KindIgnored).Inc()
	}
}

// writeLoop drains the outbound queue onto the socket. A closed queue means
// the hub is shutting down: the client gets a close frame.
func (s *session) writeLoop(ctx context.Context) error {
	for {
		msg, err := s.queue.Next(ctx)
		if errors.Is(err, outbox.ErrClosed) {
			s.conn.SetWriteDeadline(time.Now().Add(s.hub.opts.WriteTimeout))
			s.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return err
		}
		if err != nil {
			return err
		}

		s.conn.SetWriteDeadline(time.Now().Add(s.hub.opts.WriteTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
}

// pingLoop sends WebSocket ping frames. WriteControl is safe to call
// concurrently with writeLoop.
func (s *session) pingLoop(ctx context.Context) error {
	t := s.hub.clock.NewTicker(s.hub.opts.PingInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Chan():
			deadline := time.Now().Add(s.hub.opts.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (s *session) extendDeadline() {
	s.conn.SetReadDeadline(time.Now().Add(s.hub.opts.PongWait)) //nolint:errcheck
}
