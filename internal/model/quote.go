package model

import (
	"time"

	"crossarb/internal/model/enum"

	"github.com/shopspring/decimal"
)

// Quote is the best bid and offer of one venue.
type Quote struct {
	Venue      enum.Venue
	Bid        decimal.Decimal
	Ask        decimal.Decimal
	ObservedAt time.Time
}

// Mid returns (bid+ask)/2.
func (q Quote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}
