package paper

import (
	"context"
	"sync"
	"time"

	"crossarb/internal/model"
	"crossarb/internal/model/enum"
	"crossarb/internal/order"
	"crossarb/pkg/exception"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const defaultMatchInterval = 100 * time.Millisecond

// QuoteReader is the read side of the quote book.
type QuoteReader interface {
	Read(venue enum.Venue) (model.Quote, bool)
}

// EventSink receives the simulated execution reports.
type EventSink interface {
	OnOrderEvent(ev model.OrderEvent)
}

// Delegator simulates a venue against live quotes. Post-only orders rest
// until the book trades through their limit; taker orders fill at once.
type Delegator struct {
	venue  enum.Venue
	quotes QuoteReader
	sink   EventSink

	mu       sync.Mutex
	resting  map[string]model.MakerOrder
	position decimal.Decimal
	now      func() time.Time
}

func NewDelegator(venue enum.Venue, quotes QuoteReader, sink EventSink) (*Delegator, error) {
	if !venue.IsAvailable() {
		return nil, exception.ErrGatewayUnknownVenue
	}
	if quotes == nil || sink == nil {
		return nil, exception.ErrNilInstance
	}
	return &Delegator{
		venue:   venue,
		quotes:  quotes,
		sink:    sink,
		resting: make(map[string]model.MakerOrder),
		now:     time.Now,
	}, nil
}

func (d *Delegator) Venue() enum.Venue {
	return d.venue
}

func (d *Delegator) PlaceOrder(_ context.Context, req model.OrderRequest) model.OrderResult {
	if err := order.ValidateRequest(req); err != nil {
		return model.Rejected(err)
	}
	q, ok := d.quotes.Read(d.venue)
	if !ok {
		return model.Rejected(errors.Wrapf(exception.ErrQuoteNotReady, "paper %s", d.venue))
	}

	id := uuid.NewString()
	o := model.MakerOrder{
		ID:         id,
		Venue:      d.venue,
		Side:       req.Side,
		Quantity:   req.Quantity,
		LimitPrice: req.Price,
		CreatedAt:  d.now(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	crosses := crossed(o, q)
	if req.PostOnly {
		if crosses {
			return model.Rejected(errors.Wrapf(exception.ErrOrderRejected, "post-only %s %s would cross %s/%s", req.Side, req.Price, q.Bid, q.Ask))
		}
		d.resting[id] = o
		d.sink.OnOrderEvent(d.event(o, enum.OrderStatusOpen, decimal.Zero))
		return model.Accepted(id)
	}

	if !crosses {
		d.sink.OnOrderEvent(d.event(o, enum.OrderStatusCancelled, decimal.Zero))
		return model.Accepted(id)
	}
	d.fillLocked(o)
	return model.Accepted(id)
}

// CancelOrder removes a resting order. Unknown ids are already gone.
func (d *Delegator) CancelOrder(_ context.Context, orderID string) model.OrderResult {
	if orderID == "" {
		return model.Rejected(exception.ErrOrderInvalidRequest)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if o, ok := d.resting[orderID]; ok {
		delete(d.resting, orderID)
		d.sink.OnOrderEvent(d.event(o, enum.OrderStatusCancelled, decimal.Zero))
	}
	return model.Accepted(orderID)
}

func (d *Delegator) GetPosition(context.Context) (decimal.Decimal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position, nil
}

// Resting returns the number of live simulated orders.
func (d *Delegator) Resting() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.resting)
}

// Match fills every resting order the current quote trades through.
func (d *Delegator) Match() int {
	q, ok := d.quotes.Read(d.venue)
	if !ok {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	filled := 0
	for id, o := range d.resting {
		if !crossed(o, q) {
			continue
		}
		delete(d.resting, id)
		d.fillLocked(o)
		filled++
	}
	return filled
}

// Run matches resting orders until ctx is done.
func (d *Delegator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultMatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logs.Infof("paper %s venue started", d.venue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Match()
		}
	}
}

func (d *Delegator) fillLocked(o model.MakerOrder) {
	if o.Side == enum.SideBuy {
		d.position = d.position.Add(o.Quantity)
	} else {
		d.position = d.position.Sub(o.Quantity)
	}
	d.sink.OnOrderEvent(d.event(o, enum.OrderStatusFilled, o.Quantity))
}

func (d *Delegator) event(o model.MakerOrder, status enum.OrderStatus, filled decimal.Decimal) model.OrderEvent {
	return model.OrderEvent{
		Venue:          d.venue,
		OrderID:        o.ID,
		Status:         status,
		Side:           o.Side,
		FilledQuantity: filled,
		ReceivedAt:     d.now(),
	}
}

// crossed reports whether the opposite touch reached the limit.
func crossed(o model.MakerOrder, q model.Quote) bool {
	if o.Side == enum.SideBuy {
		return q.Ask.LessThanOrEqual(o.LimitPrice)
	}
	return q.Bid.GreaterThanOrEqual(o.LimitPrice)
}
