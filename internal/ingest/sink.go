package ingest

import (
	"crossarb/internal/book"
	"crossarb/internal/bus"
	"crossarb/internal/model"
	"crossarb/internal/model/enum"
	"crossarb/internal/obs"

	"github.com/yanun0323/logs"
)

// BookSink routes quotes into the shared book and order events into the
// coordinator queue.
type BookSink struct {
	Book    *book.QuoteBook
	Events  *bus.Queue
	Metrics *obs.Metrics
}

func (s BookSink) OnQuote(venue enum.Venue, bid, ask string) {
	if err := s.Book.UpdateString(venue, bid, ask); err != nil {
		s.Metrics.IncQuoteReject(venue)
		return
	}
	s.Metrics.IncQuote(venue)
}

func (s BookSink) OnOrderEvent(ev model.OrderEvent) {
	s.Metrics.IncOrderEvent(ev.Venue, ev.Status)
	if s.Events == nil {
		return
	}
	if err := s.Events.TryPublish(ev); err != nil {
		s.Metrics.IncQueueDrop()
		logs.Errorf("publish %s order event %s, err: %+v", ev.Venue, ev.OrderID, err)
	}
}
