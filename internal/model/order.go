package model

import (
	"time"

	"crossarb/internal/model/enum"

	"github.com/shopspring/decimal"
)

// OrderRequest is what the coordinator hands to a gateway.
type OrderRequest struct {
	Venue         enum.Venue
	Market        string
	Side          enum.Side
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	PostOnly      bool
	ClientOrderID string
}

// OrderResult is returned by every gateway for place and cancel.
type OrderResult struct {
	Success bool
	OrderID string
	Err     error
}

// Accepted builds a successful result.
func Accepted(orderID string) OrderResult {
	return OrderResult{Success: true, OrderID: orderID}
}

// Rejected builds a failed result.
func Rejected(err error) OrderResult {
	return OrderResult{Err: err}
}

// OrderEvent is a normalized execution report from a venue stream.
type OrderEvent struct {
	Venue          enum.Venue
	OrderID        string
	Status         enum.OrderStatus
	Side           enum.Side
	FilledQuantity decimal.Decimal
	ReceivedAt     time.Time
}

// MakerOrder is the single resting order owned by the coordinator.
type MakerOrder struct {
	ID             string
	Venue          enum.Venue
	Side           enum.Side
	Quantity       decimal.Decimal
	LimitPrice     decimal.Decimal
	CreatedAt      time.Time
	FilledQuantity decimal.Decimal
}

// HedgeOrder is the taker order sent to the counter venue after a maker fill.
type HedgeOrder struct {
	Venue    enum.Venue
	Side     enum.Side
	Quantity decimal.Decimal
	Price    decimal.Decimal
}
