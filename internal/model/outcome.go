package model

import (
	"time"

	"crossarb/internal/model/enum"

	"github.com/shopspring/decimal"
)

// CycleOutcome is the record of one maker cycle, from placement to hedge or
// cancel.
type CycleOutcome struct {
	CycleID      uint64
	Kind         enum.Outcome
	Maker        MakerOrder
	Hedge        HedgeOrder
	HedgeOrderID string
	LongSpread   decimal.Decimal
	ShortSpread  decimal.Decimal
	Reason       string
	At           time.Time
}
