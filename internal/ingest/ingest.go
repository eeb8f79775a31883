// Package ingest keeps one venue stream connected and turns its frames into
// quote updates and order events.
package ingest

import (
	"crossarb/internal/model"
	"crossarb/internal/model/enum"
)

// RawQuote is a top of book as text, validated later by the book.
type RawQuote struct {
	Bid string
	Ask string
}

// Update is the normalized content of one frame. Both fields may be empty
// for heartbeats and acknowledgements.
type Update struct {
	Quote  *RawQuote
	Events []model.OrderEvent
}

// Codec knows one venue stream: where it lives, what to subscribe to and
// how to read its frames.
type Codec interface {
	Venue() enum.Venue
	URL() string
	Subscriptions() []any
	Decode(msg []byte) (Update, error)
}

// Sink receives normalized callbacks.
type Sink interface {
	OnQuote(venue enum.Venue, bid, ask string)
	OnOrderEvent(ev model.OrderEvent)
}
