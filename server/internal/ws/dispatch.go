package ws

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/clickhub/clickhub/pkg/protocol"
	"github.com/clickhub/clickhub/server/internal/registry"
)

// click records one click from id, acknowledges it to id and tells everyone
// else the new total. The counter lock is released before the registry lock
// is taken; the two are never held together.
func (h *Hub) click(id uuid.UUID) {
	client, total := h.counters.RecordClick(id)
	h.metrics.Clicks.Inc()

	h.SendTo(id, protocol.ClickResponse{
		ClientClicks: client,
		TotalClicks:  total,
		Timestamp:    protocol.FormatTimestamp(h.clock.Now()),
	})
	h.BroadcastExcept(id, protocol.GlobalUpdate{TotalClicks: total})
}

// BroadcastExcept encodes msg once and enqueues it for every registered
// connection other than excluded. Recipients whose queue is already closed are
// skipped; their own teardown removes them. It returns the number of
// connections the message was queued for.
func (h *Hub) BroadcastExcept(excluded uuid.UUID, msg protocol.Message) int {
	data, err := protocol.Encode(msg)
	if err != nil {
		h.log.Error("ws: encode broadcast failed", "msg", fmt.Sprintf("%T", msg), "err", err)
		return 0
	}

	delivered, failed := 0, 0
	h.conns.ForEach(func(id uuid.UUID, sink registry.Sink) {
		if id == excluded {
			return
		}
		if err := sink.Enqueue(data); err != nil {
			failed++
			return
		}
		delivered++
	})

	h.metrics.MessagesSent.WithLabelValues(string(msg.Type())).Add(float64(delivered))
	if failed > 0 {
		h.metrics.DeliveryFailures.Add(float64(failed))
		h.log.Debug("ws: broadcast skipped closing connections", "type", msg.Type(), "skipped", failed)
	}
	return delivered
}

// SendTo enqueues msg for one connection. It reports false if id is not
// registered or its queue is closed.
func (h *Hub) SendTo(id uuid.UUID, msg protocol.Message) bool {
	sink, ok := h.conns.Lookup(id)
	if !ok {
		return false
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		h.log.Error("ws: encode message failed", "msg", fmt.Sprintf("%T", msg), "err", err)
		return false
	}
	if err := sink.Enqueue(data); err != nil {
		h.metrics.DeliveryFailures.Inc()
		return false
	}
	h.metrics.MessagesSent.WithLabelValues(string(msg.Type())).Inc()
	return true
}
