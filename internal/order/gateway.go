package order

import (
	"context"
	"sync"

	"crossarb/internal/model"
	"crossarb/internal/model/enum"
	"crossarb/pkg/exception"

	"github.com/shopspring/decimal"
)

// Gateway is one venue's execution capability set.
type Gateway interface {
	Venue() enum.Venue
	// PlaceOrder returns once the venue acknowledged receipt, not on fill.
	PlaceOrder(ctx context.Context, req model.OrderRequest) model.OrderResult
	// CancelOrder must treat unknown and already terminal orders as success.
	CancelOrder(ctx context.Context, orderID string) model.OrderResult
	GetPosition(ctx context.Context) (decimal.Decimal, error)
}

// Execution is the venue-keyed form used by the coordinator and tracker.
type Execution interface {
	PlaceOrder(ctx context.Context, venue enum.Venue, req model.OrderRequest) model.OrderResult
	CancelOrder(ctx context.Context, venue enum.Venue, orderID string) model.OrderResult
	GetPosition(ctx context.Context, venue enum.Venue) (decimal.Decimal, error)
}

// Router dispatches calls to the gateway registered for a venue.
type Router struct {
	mu       sync.RWMutex
	gateways map[enum.Venue]Gateway
}

// NewRouter registers the given gateways by their venue.
func NewRouter(gateways ...Gateway) *Router {
	r := &Router{gateways: make(map[enum.Venue]Gateway, len(gateways))}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

// Register adds or replaces the gateway of g.Venue().
func (r *Router) Register(g Gateway) {
	if g == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Venue()] = g
}

func (r *Router) gateway(venue enum.Venue) (Gateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[venue]
	return g, ok
}

func (r *Router) PlaceOrder(ctx context.Context, venue enum.Venue, req model.OrderRequest) model.OrderResult {
	g, ok := r.gateway(venue)
	if !ok {
		return model.Rejected(exception.ErrGatewayUnknownVenue)
	}
	if req.Venue == 0 {
		req.Venue = venue
	}
	if req.Venue != venue {
		return model.Rejected(exception.ErrOrderMismatchVenue)
	}
	return g.PlaceOrder(ctx, req)
}

func (r *Router) CancelOrder(ctx context.Context, venue enum.Venue, orderID string) model.OrderResult {
	g, ok := r.gateway(venue)
	if !ok {
		return model.Rejected(exception.ErrGatewayUnknownVenue)
	}
	return g.CancelOrder(ctx, orderID)
}

func (r *Router) GetPosition(ctx context.Context, venue enum.Venue) (decimal.Decimal, error) {
	g, ok := r.gateway(venue)
	if !ok {
		return decimal.Zero, exception.ErrGatewayUnknownVenue
	}
	return g.GetPosition(ctx)
}
