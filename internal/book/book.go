package book

import (
	"context"
	"strings"
	"sync"
	"time"

	"crossarb/internal/model"
	"crossarb/internal/model/enum"
	"crossarb/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// QuoteBook stores the latest BBO per venue. Every read and write goes
// through one mutex so bid and ask are always observed as a pair.
type QuoteBook struct {
	mu     sync.Mutex
	quotes map[enum.Venue]model.Quote
	ready  map[enum.Venue]chan struct{}
	now    func() time.Time
}

// New creates an empty book.
func New() *QuoteBook {
	return &QuoteBook{
		quotes: make(map[enum.Venue]model.Quote),
		ready:  make(map[enum.Venue]chan struct{}),
		now:    time.Now,
	}
}

// Update validates and stores a quote. Invalid input leaves the book untouched.
func (b *QuoteBook) Update(venue enum.Venue, bid, ask decimal.Decimal) error {
	if !venue.IsAvailable() {
		return exception.ErrUnknownVenue
	}
	if !bid.IsPositive() || !ask.IsPositive() {
		return errors.Wrapf(exception.ErrQuoteNonPositive, "venue: %s, bid: %s, ask: %s", venue, bid, ask)
	}
	if bid.GreaterThan(ask) {
		return errors.Wrapf(exception.ErrQuoteCrossed, "venue: %s, bid: %s, ask: %s", venue, bid, ask)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.quotes[venue] = model.Quote{
		Venue:      venue,
		Bid:        bid,
		Ask:        ask,
		ObservedAt: b.now(),
	}
	ch := b.readyLocked(venue)
	select {
	case <-ch:
	default:
		close(ch)
	}
	return nil
}

// UpdateString parses a raw bid/ask pair from a feed. A missing side is a
// partial update and is discarded.
func (b *QuoteBook) UpdateString(venue enum.Venue, bid, ask string) error {
	bid, ask = strings.TrimSpace(bid), strings.TrimSpace(ask)
	if bid == "" || ask == "" {
		return exception.ErrQuotePartial
	}
	bidDec, err := decimal.NewFromString(bid)
	if err != nil {
		return errors.Wrapf(exception.ErrQuoteInvalid, "bid: %q", bid)
	}
	askDec, err := decimal.NewFromString(ask)
	if err != nil {
		return errors.Wrapf(exception.ErrQuoteInvalid, "ask: %q", ask)
	}
	return b.Update(venue, bidDec, askDec)
}

// Read returns the latest quote of a venue.
func (b *QuoteBook) Read(venue enum.Venue) (model.Quote, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.quotes[venue]
	return q, ok
}

// IsReady reports whether both sides of the venue have been observed.
func (b *QuoteBook) IsReady(venue enum.Venue) bool {
	_, ok := b.Read(venue)
	return ok
}

// Ready returns a channel closed once the venue has its first valid quote.
func (b *QuoteBook) Ready(venue enum.Venue) <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readyLocked(venue)
}

// WaitReady blocks until every venue is ready or ctx is done.
func (b *QuoteBook) WaitReady(ctx context.Context, venues ...enum.Venue) error {
	for _, v := range venues {
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "wait %s book", v)
		case <-b.Ready(v):
		}
	}
	return nil
}

func (b *QuoteBook) readyLocked(venue enum.Venue) chan struct{} {
	ch, ok := b.ready[venue]
	if !ok {
		ch = make(chan struct{})
		b.ready[venue] = ch
	}
	return ch
}
