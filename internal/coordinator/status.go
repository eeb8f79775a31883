package coordinator

import (
	"fmt"
	"strings"
	"time"

	"crossarb/internal/model"
	"crossarb/internal/model/enum"

	"github.com/shopspring/decimal"
)

// Status is a point-in-time view for the monitor line.
type Status struct {
	At           time.Time
	HomeVenue    enum.Venue
	CounterVenue enum.Venue
	Home         model.Quote
	Counter      model.Quote
	HomeReady    bool
	CounterReady bool
	Long         decimal.Decimal
	Short        decimal.Decimal
	State        State
	Net          decimal.Decimal
}

// Status reads both quotes and the coordinator state. Safe for concurrent use.
func (c *Coordinator) Status() Status {
	s := Status{
		At:           c.now(),
		HomeVenue:    c.policy.Home,
		CounterVenue: c.policy.Counter,
		State:        c.State(),
		Net:          c.positions.Net(),
	}
	s.Home, s.HomeReady = c.book.Read(c.policy.Home)
	s.Counter, s.CounterReady = c.book.Read(c.policy.Counter)
	if s.HomeReady && s.CounterReady {
		s.Long = s.Counter.Bid.Sub(s.Home.Bid)
		s.Short = s.Home.Ask.Sub(s.Counter.Ask)
	}
	return s
}

func venueLabel(v enum.Venue) string {
	switch v {
	case enum.VenueExtended:
		return "EX"
	case enum.VenueLighter:
		return "LI"
	case enum.VenueEdgeX:
		return "EG"
	default:
		return strings.ToUpper(v.String())
	}
}

func quoteText(q model.Quote, ok bool) string {
	if !ok {
		return "-"
	}
	return q.Bid.String() + "/" + q.Ask.String()
}

// Line renders the monitor line:
// [monitor] HH:MM:SS | EX: bid/ask | LI: bid/ask | spread: long / short | state | net
func (s Status) Line() string {
	ts := s.At.Format(time.TimeOnly)
	home := venueLabel(s.HomeVenue)
	counter := venueLabel(s.CounterVenue)
	if !s.HomeReady || !s.CounterReady {
		return fmt.Sprintf("[monitor] %s | waiting for data... %s: %s | %s: %s",
			ts, home, quoteText(s.Home, s.HomeReady), counter, quoteText(s.Counter, s.CounterReady))
	}
	return fmt.Sprintf("[monitor] %s | %s: %s | %s: %s | spread: %s / %s | %s | net: %s",
		ts, home, quoteText(s.Home, true), counter, quoteText(s.Counter, true),
		s.Long.StringFixed(1), s.Short.StringFixed(1), s.State, s.Net)
}
