package coordinator

import (
	"crossarb/internal/model"

	"github.com/yanun0323/logs"
)

// Alerter is notified when a maker fill could not be hedged. The position is
// unhedged until an operator acts.
type Alerter interface {
	HedgeFailed(maker model.MakerOrder, hedge model.HedgeOrder, err error)
}

// LogAlerter writes the alert as an error log.
type LogAlerter struct{}

func (LogAlerter) HedgeFailed(maker model.MakerOrder, hedge model.HedgeOrder, err error) {
	logs.Errorf("!!! HEDGE FAILED !!! maker: %s %s %s @ %s on %s, hedge: %s %s @ %s on %s, err: %+v",
		maker.ID, maker.Side, maker.FilledQuantity, maker.LimitPrice, maker.Venue,
		hedge.Side, hedge.Quantity, hedge.Price, hedge.Venue, err)
}
