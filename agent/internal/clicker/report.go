package clicker

import "sync/atomic"

// Report summarises one Run across all connections.
type Report struct {
	// Sessions counts established WebSocket sessions, reconnects included.
	Sessions uint64

	ClicksSent     uint64
	ClickResponses uint64
	GlobalUpdates  uint64
	Pongs          uint64

	// LastTotal is the highest total_clicks seen in any server message.
	LastTotal uint64

	// ServerClicks is the server's click counter scraped after the run.
	// Only meaningful when Scraped is true.
	ServerClicks float64
	Scraped      bool
}

// Lost is the number of clicks sent without a click_response, typically
// because the connection dropped while they were in flight.
func (r Report) Lost() uint64 {
	if r.ClickResponses >= r.ClicksSent {
		return 0
	}
	return r.ClicksSent - r.ClickResponses
}

// tally is the live, concurrently updated form of a Report.
type tally struct {
	sessions  atomic.Uint64
	clicks    atomic.Uint64
	responses atomic.Uint64
	updates   atomic.Uint64
	pongs     atomic.Uint64
	lastTotal atomic.Uint64
}

// observe raises lastTotal to total if it is higher.
func (t *tally) observe(total uint64) {
	for {
		cur := t.lastTotal.Load()
		if total <= cur || t.lastTotal.CompareAndSwap(cur, total) {
			return
		}
	}
}

func (t *tally) report() Report {
	return Report{
		Sessions:       t.sessions.Load(),
		ClicksSent:     t.clicks.Load(),
		ClickResponses: t.responses.Load(),
		GlobalUpdates:  t.updates.Load(),
		Pongs:          t.pongs.Load(),
		LastTotal:      t.lastTotal.Load(),
	}
}
