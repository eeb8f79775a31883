package coordinator

import (
	"context"
	"sync"
	"time"

	"crossarb/internal/model"
	"crossarb/internal/model/enum"
	"crossarb/internal/obs"
	"crossarb/internal/order"
	"crossarb/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	DefaultFillTimeout = 5 * time.Second
	DefaultCancelGrace = 2 * time.Second

	cancelTimeout = 10 * time.Second
	recordTimeout = 5 * time.Second
	trackTTL      = 10 * time.Minute
)

// DefaultSlippage is the taker price cushion applied to hedges.
var DefaultSlippage = decimal.RequireFromString("0.05")

// Policy is fixed for the lifetime of a coordinator.
type Policy struct {
	Home          enum.Venue
	Counter       enum.Venue
	HomeMarket    string
	CounterMarket string

	Quantity       decimal.Decimal
	MaxPosition    decimal.Decimal
	LongThreshold  decimal.Decimal
	ShortThreshold decimal.Decimal
	Slippage       decimal.Decimal
	HomeTick       decimal.Decimal
	CounterTick    decimal.Decimal

	FillTimeout time.Duration
	CancelGrace time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.FillTimeout <= 0 {
		p.FillTimeout = DefaultFillTimeout
	}
	if p.CancelGrace <= 0 {
		p.CancelGrace = DefaultCancelGrace
	}
	if p.Slippage.IsZero() {
		p.Slippage = DefaultSlippage
	}
	if !p.MaxPosition.IsPositive() {
		p.MaxPosition = p.Quantity
	}
	return p
}

// Validate checks the policy after defaults are applied.
func (p Policy) Validate() error {
	if !p.Home.IsAvailable() || !p.Counter.IsAvailable() {
		return errors.Wrapf(exception.ErrUnknownVenue, "home: %s, counter: %s", p.Home, p.Counter)
	}
	if p.Home == p.Counter {
		return errors.Wrapf(exception.ErrInvalidArgument, "home and counter are both %s", p.Home)
	}
	if !p.Quantity.IsPositive() {
		return errors.Wrapf(exception.ErrInvalidArgument, "quantity must be > 0, got %s", p.Quantity)
	}
	if p.Slippage.IsNegative() || p.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.Wrapf(exception.ErrInvalidArgument, "slippage must be in [0, 1), got %s", p.Slippage)
	}
	return nil
}

// QuoteReader is the read side of the quote book.
type QuoteReader interface {
	Read(venue enum.Venue) (model.Quote, bool)
}

// Positions is the tracker surface the coordinator needs.
type Positions interface {
	ApplyFill(venue enum.Venue, side enum.Side, qty decimal.Decimal) decimal.Decimal
	Net() decimal.Decimal
	Allows(side enum.Side, max decimal.Decimal) bool
}

// Recorder persists cycle outcomes.
type Recorder interface {
	Record(ctx context.Context, outcome model.CycleOutcome) error
}

// Config wires the coordinator dependencies. Recorder, Alerter and Metrics
// are optional.
type Config struct {
	Policy    Policy
	Book      QuoteReader
	Exec      order.Execution
	Events    <-chan model.OrderEvent
	Positions Positions
	Recorder  Recorder
	Alerter   Alerter
	Metrics   *obs.Metrics
	CycleIDs  *obs.CycleIDs
}

type pendingHedge struct {
	order model.HedgeOrder
	at    time.Time
}

// unsettledMaker is a maker order whose cancel has no terminal event yet.
// order.FilledQuantity is the quantity already hedged. acked is false while
// the cancel request itself keeps failing and the order may still rest.
type unsettledMaker struct {
	order   model.MakerOrder
	cycleID uint64
	acked   bool
	at      time.Time
}

// Coordinator owns at most one live maker order on the home venue and hedges
// its fill on the counter venue. All methods except Status must be called
// from one goroutine.
type Coordinator struct {
	policy    Policy
	book      QuoteReader
	exec      order.Execution
	events    <-chan model.OrderEvent
	positions Positions
	recorder  Recorder
	alerter   Alerter
	metrics   *obs.Metrics
	ids       *obs.CycleIDs
	now       func() time.Time

	mu        sync.Mutex
	state     State
	live      *model.MakerOrder
	longSpr   decimal.Decimal
	shortSpr  decimal.Decimal
	cycleID   uint64
	filledAt  time.Time
	hedges    map[string]pendingHedge
	unsettled map[string]*unsettledMaker
	lateErr   error
	stale     uint64
	violation uint64
}

// New validates cfg and returns an idle coordinator.
func New(cfg Config) (*Coordinator, error) {
	policy := cfg.Policy.withDefaults()
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.Book == nil || cfg.Exec == nil || cfg.Events == nil || cfg.Positions == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "coordinator needs book, exec, events and positions")
	}
	alerter := cfg.Alerter
	if alerter == nil {
		alerter = LogAlerter{}
	}
	ids := cfg.CycleIDs
	if ids == nil {
		ids = obs.NewCycleIDs(0)
	}
	return &Coordinator{
		policy:    policy,
		book:      cfg.Book,
		exec:      cfg.Exec,
		events:    cfg.Events,
		positions: cfg.Positions,
		recorder:  cfg.Recorder,
		alerter:   alerter,
		metrics:   cfg.Metrics,
		ids:       ids,
		now:       time.Now,
		hedges:    make(map[string]pendingHedge),
		unsettled: make(map[string]*unsettledMaker),
	}, nil
}

// Policy returns the resolved policy.
func (c *Coordinator) Policy() Policy {
	return c.policy
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Live returns a copy of the live maker order.
func (c *Coordinator) Live() (model.MakerOrder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live == nil {
		return model.MakerOrder{}, false
	}
	return *c.live, true
}

// StaleEvents returns how many order events matched no tracked order.
func (c *Coordinator) StaleEvents() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// Violations returns how many placements were skipped by the live order
// guard plus illegal state transitions.
func (c *Coordinator) Violations() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.violation
}

// Unsettled returns how many cancelled maker orders still wait for a
// terminal event, and how many of them may still rest on the venue.
func (c *Coordinator) Unsettled() (total, open int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range c.unsettled {
		if !u.acked {
			open++
		}
	}
	return len(c.unsettled), open
}

// Step evaluates the spreads once and, when one crosses its threshold, runs
// a full maker cycle: place, wait for fill or timeout, cancel or hedge. It
// returns to Idle before returning. A hedge failure of a late fill seen since
// the last step is returned before anything else. Placement is skipped while
// a maker order whose cancel failed may still rest.
func (c *Coordinator) Step(ctx context.Context) error {
	if err := c.drain(ctx); err != nil {
		return err
	}

	if st := c.State(); st != StateIdle {
		return errors.Wrapf(ErrInvalidTransition, "step in %s", st)
	}

	if err := c.settle(ctx); err != nil {
		return err
	}

	home, okHome := c.book.Read(c.policy.Home)
	counter, okCounter := c.book.Read(c.policy.Counter)
	if !okHome || !okCounter {
		return exception.ErrQuoteNotReady
	}

	long := counter.Bid.Sub(home.Bid)
	short := home.Ask.Sub(counter.Ask)
	c.mu.Lock()
	c.longSpr, c.shortSpr = long, short
	c.mu.Unlock()
	c.metrics.SetSpread(long, short)

	if long.GreaterThan(c.policy.LongThreshold) {
		if c.positions.Allows(enum.SideBuy, c.policy.MaxPosition) {
			logs.Infof("long opportunity, spread: %s > %s", long, c.policy.LongThreshold)
			return c.cycle(ctx, enum.SideBuy, home.Bid)
		}
		c.metrics.IncPlacement(enum.SideBuy, obs.ResultBlocked)
		logs.Infof("long opportunity blocked by position cap, net: %s, max: %s", c.positions.Net(), c.policy.MaxPosition)
	}

	if short.GreaterThan(c.policy.ShortThreshold) {
		if c.positions.Allows(enum.SideSell, c.policy.MaxPosition) {
			logs.Infof("short opportunity, spread: %s > %s", short, c.policy.ShortThreshold)
			return c.cycle(ctx, enum.SideSell, home.Ask)
		}
		c.metrics.IncPlacement(enum.SideSell, obs.ResultBlocked)
		logs.Infof("short opportunity blocked by position cap, net: %s, max: %s", c.positions.Net(), c.policy.MaxPosition)
	}
	return nil
}

// Shutdown cancels a live maker order best-effort with a detached context,
// then retries the cancels that are still unconfirmed.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	var err error
	if _, ok := c.Live(); ok {
		logs.Info("shutdown with live maker order, cancelling")
		err = c.cancel(ctx)
	}
	if serr := c.settle(ctx); serr != nil && err == nil {
		err = serr
	}
	return err
}

func (c *Coordinator) cycle(ctx context.Context, side enum.Side, touch decimal.Decimal) error {
	c.mu.Lock()
	if c.live != nil {
		c.violation++
		id := c.live.ID
		c.mu.Unlock()
		c.metrics.IncInvariantBreak()
		logs.Errorf("skip %s placement, maker order %s is still live, err: %+v", side, id, exception.ErrInvariantBreak)
		return exception.ErrInvariantBreak
	}
	c.cycleID = c.ids.Next()
	c.filledAt = time.Time{}
	c.mu.Unlock()

	c.enter(StatePlacing)

	mode := model.RoundDown
	if side == enum.SideSell {
		mode = model.RoundUp
	}
	req := model.OrderRequest{
		Venue:         c.policy.Home,
		Market:        c.policy.HomeMarket,
		Side:          side,
		Quantity:      c.policy.Quantity,
		Price:         model.RoundToTick(touch, c.policy.HomeTick, mode),
		PostOnly:      true,
		ClientOrderID: order.NewClientOrderID(),
	}

	start := c.now()
	res := c.exec.PlaceOrder(ctx, c.policy.Home, req)
	c.metrics.ObservePlace(c.now().Sub(start))
	if !res.Success {
		err := res.Err
		if err == nil {
			err = exception.ErrOrderRejected
		}
		c.metrics.IncPlacement(side, obs.ResultRejected)
		logs.Errorf("place %s maker %s @ %s on %s, err: %+v", side, req.Quantity, req.Price, c.policy.Home, err)
		c.record(ctx, model.CycleOutcome{
			Kind:   enum.OutcomeRejected,
			Maker:  model.MakerOrder{Venue: c.policy.Home, Side: side, Quantity: req.Quantity, LimitPrice: req.Price, CreatedAt: start},
			Reason: err.Error(),
		})
		c.enter(StateIdle)
		return errors.Wrap(err, "place maker order")
	}

	c.metrics.IncPlacement(side, obs.ResultAccepted)
	logs.Infof("maker %s %s @ %s rests on %s, id: %s", side, req.Quantity, req.Price, c.policy.Home, res.OrderID)

	c.mu.Lock()
	c.live = &model.MakerOrder{
		ID:         res.OrderID,
		Venue:      c.policy.Home,
		Side:       side,
		Quantity:   req.Quantity,
		LimitPrice: req.Price,
		CreatedAt:  start,
	}
	c.mu.Unlock()
	c.enter(StateResting)

	return c.rest(ctx)
}

// rest waits for the live order to fill, time out or be cancelled.
func (c *Coordinator) rest(ctx context.Context) error {
	timer := time.NewTimer(c.policy.FillTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return c.cancel(ctx)
			}
			if !c.isLive(ev) {
				c.other(ctx, ev)
				continue
			}
			switch ev.Status {
			case enum.OrderStatusFilled:
				c.recordFill(ev.FilledQuantity)
				c.enter(StateFilled)
				return c.hedge(ctx)
			case enum.OrderStatusCancelled:
				c.recordFill(ev.FilledQuantity)
				if c.liveFilled().IsPositive() {
					logs.Infof("maker order %s cancelled by venue after partial fill %s", ev.OrderID, c.liveFilled())
					c.enter(StateFilled)
					return c.hedge(ctx)
				}
				logs.Infof("maker order %s cancelled by venue", ev.OrderID)
				c.closeCycle(ctx, enum.OutcomeCancelled, "cancelled by venue")
				return nil
			default:
				c.recordFill(ev.FilledQuantity)
			}
		case <-timer.C:
			c.enter(StateTimedOut)
			if live, ok := c.Live(); ok {
				logs.Infof("maker order %s not filled within %s, cancelling", live.ID, c.policy.FillTimeout)
			}
			return c.cancel(ctx)
		case <-ctx.Done():
			return c.cancel(context.WithoutCancel(ctx))
		}
	}
}

// cancel cancels the live order and waits CancelGrace for its terminal
// event. A fill seen in that window is hedged; only one of fill and cancel
// confirmation is acted upon. Without a terminal event the order is kept as
// unsettled so a late fill is still hedged.
func (c *Coordinator) cancel(ctx context.Context) error {
	live, ok := c.Live()
	if !ok {
		c.enter(StateIdle)
		return nil
	}
	c.enter(StateCancelling)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()

	res := c.requestCancel(cctx, live)

	grace := time.NewTimer(c.policy.CancelGrace)
	defer grace.Stop()

	confirmed := false
wait:
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				break wait
			}
			if !c.isLive(ev) {
				c.other(cctx, ev)
				continue
			}
			c.recordFill(ev.FilledQuantity)
			switch ev.Status {
			case enum.OrderStatusFilled:
				logs.Infof("maker order %s filled while cancelling", live.ID)
				c.enter(StateFilled)
				return c.hedge(cctx)
			case enum.OrderStatusCancelled:
				confirmed = true
				break wait
			}
		case <-grace.C:
			break wait
		}
	}

	maker, filledAt := c.takeLive()
	reason := "fill timeout"
	if !confirmed {
		c.unsettle(maker, res.Success)
		reason = "fill timeout, cancel unconfirmed"
	}
	if maker.FilledQuantity.IsPositive() {
		logs.Infof("maker order %s cancelled with partial fill %s", maker.ID, maker.FilledQuantity)
		c.enter(StateFilled)
		return c.hedgeMaker(cctx, maker, filledAt)
	}
	c.finish(cctx, model.CycleOutcome{Kind: enum.OutcomeCancelled, Maker: maker, Reason: reason})
	if !res.Success {
		return errors.Wrapf(res.Err, "cancel maker order %s", live.ID)
	}
	return nil
}

// requestCancel sends one cancel. A failed result always carries an error.
func (c *Coordinator) requestCancel(ctx context.Context, maker model.MakerOrder) model.OrderResult {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()

	res := c.exec.CancelOrder(cctx, maker.Venue, maker.ID)
	if res.Success {
		c.metrics.IncCancel(obs.ResultOK)
		return res
	}
	if res.Err == nil {
		res.Err = exception.ErrOrderRejected
	}
	c.metrics.IncCancel(obs.ResultFailed)
	logs.Errorf("cancel maker order %s on %s, err: %+v", maker.ID, maker.Venue, res.Err)
	return res
}

func (c *Coordinator) unsettle(maker model.MakerOrder, acked bool) {
	c.mu.Lock()
	c.unsettled[maker.ID] = &unsettledMaker{order: maker, cycleID: c.cycleID, acked: acked, at: c.now()}
	c.mu.Unlock()

	if acked {
		logs.Infof("maker order %s cancel accepted without terminal event, watching for a late fill", maker.ID)
		return
	}
	logs.Errorf("maker order %s may still rest on %s, placement blocked until its cancel succeeds", maker.ID, maker.Venue)
}

// settle retries the cancel of every unsettled maker order whose cancel
// failed. It returns ErrMakerUnsettled while one of them may still rest.
func (c *Coordinator) settle(ctx context.Context) error {
	c.mu.Lock()
	var open []model.MakerOrder
	for _, u := range c.unsettled {
		if !u.acked {
			open = append(open, u.order)
		}
	}
	c.mu.Unlock()

	var blocked error
	for _, maker := range open {
		if res := c.requestCancel(ctx, maker); !res.Success {
			blocked = errors.Wrapf(exception.ErrMakerUnsettled, "maker order %s on %s: %+v", maker.ID, maker.Venue, res.Err)
			continue
		}
		c.mu.Lock()
		if u, ok := c.unsettled[maker.ID]; ok {
			u.acked = true
			u.at = c.now()
		}
		c.mu.Unlock()
		logs.Infof("maker order %s cancel accepted on retry", maker.ID)
	}
	return blocked
}

// takeLive clears the live order and returns it with its last fill time.
func (c *Coordinator) takeLive() (model.MakerOrder, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var maker model.MakerOrder
	if c.live != nil {
		maker = *c.live
	}
	c.live = nil
	filledAt := c.filledAt
	if filledAt.IsZero() {
		filledAt = c.now()
	}
	return maker, filledAt
}

// hedge hedges the filled live order and closes the cycle. The live order is
// cleared first so later events for it are stale.
func (c *Coordinator) hedge(ctx context.Context) error {
	maker, filledAt := c.takeLive()
	return c.hedgeMaker(ctx, maker, filledAt)
}

func (c *Coordinator) hedgeMaker(ctx context.Context, maker model.MakerOrder, filledAt time.Time) error {
	qty := maker.FilledQuantity
	if !qty.IsPositive() {
		qty = maker.Quantity
	}
	maker.FilledQuantity = qty
	c.metrics.ObserveFill(filledAt.Sub(maker.CreatedAt))

	outcome, err := c.placeHedge(ctx, maker, qty, filledAt)
	c.finish(ctx, outcome)
	return err
}

// placeHedge books the maker fill of qty and sends the opposite taker order.
// A failure raises the alert and the unhedged gauge.
func (c *Coordinator) placeHedge(ctx context.Context, maker model.MakerOrder, qty decimal.Decimal, filledAt time.Time) (model.CycleOutcome, error) {
	c.positions.ApplyFill(maker.Venue, maker.Side, qty)

	h, err := c.hedgeOrder(maker.Side, qty)
	var res model.OrderResult
	if err == nil {
		res = c.exec.PlaceOrder(ctx, c.policy.Counter, model.OrderRequest{
			Venue:         h.Venue,
			Market:        c.policy.CounterMarket,
			Side:          h.Side,
			Quantity:      h.Quantity,
			Price:         h.Price,
			PostOnly:      false,
			ClientOrderID: order.NewClientOrderID(),
		})
		if !res.Success {
			err = res.Err
			if err == nil {
				err = exception.ErrOrderRejected
			}
		}
	}
	c.metrics.ObserveHedge(c.now().Sub(filledAt))

	if err != nil {
		err = errors.Wrapf(exception.ErrHedgeFailed, "maker %s %s %s on %s: %+v", maker.ID, maker.Side, qty, maker.Venue, err)
		c.metrics.IncHedge(obs.ResultFailed)
		c.metrics.AddUnhedged(maker.Venue, qty)
		c.alerter.HedgeFailed(maker, h, err)
		return model.CycleOutcome{Kind: enum.OutcomeHedgeFailed, Maker: maker, Hedge: h, Reason: err.Error()}, err
	}

	c.metrics.IncHedge(obs.ResultOK)
	logs.Infof("hedged maker %s with %s %s @ %s on %s, id: %s", maker.ID, h.Side, h.Quantity, h.Price, h.Venue, res.OrderID)
	c.mu.Lock()
	c.hedges[res.OrderID] = pendingHedge{order: h, at: c.now()}
	c.mu.Unlock()
	return model.CycleOutcome{Kind: enum.OutcomeHedged, Maker: maker, Hedge: h, HedgeOrderID: res.OrderID}, nil
}

// hedgeOrder prices the taker hedge against the counter touch with slippage.
func (c *Coordinator) hedgeOrder(makerSide enum.Side, qty decimal.Decimal) (model.HedgeOrder, error) {
	h := model.HedgeOrder{
		Venue:    c.policy.Counter,
		Side:     makerSide.Opposite(),
		Quantity: qty,
	}
	if !qty.IsPositive() {
		return h, exception.ErrHedgeZeroQty
	}
	q, ok := c.book.Read(c.policy.Counter)
	if !ok {
		return h, exception.ErrHedgeNoQuote
	}
	h.Price = HedgePrice(h.Side, q, c.policy.Slippage, c.policy.CounterTick)
	return h, nil
}

// HedgePrice is the taker limit for side: a sell crosses down from the bid,
// a buy crosses up from the ask, rounded away from the touch to tick.
func HedgePrice(side enum.Side, q model.Quote, slippage, tick decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == enum.SideSell {
		return model.RoundToTick(q.Bid.Mul(one.Sub(slippage)), tick, model.RoundDown)
	}
	return model.RoundToTick(q.Ask.Mul(one.Add(slippage)), tick, model.RoundUp)
}

// drain handles events that arrived while idle and returns the first hedge
// failure seen since the last call.
func (c *Coordinator) drain(ctx context.Context) error {
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return c.takeLateErr()
			}
			c.other(ctx, ev)
		default:
			c.prune()
			return c.takeLateErr()
		}
	}
}

// other handles an event that does not belong to the live maker order.
// Unsettled maker fills are hedged, hedge fills update the counter position
// once, the rest is stale.
func (c *Coordinator) other(ctx context.Context, ev model.OrderEvent) {
	if c.late(ctx, ev) {
		return
	}

	c.mu.Lock()
	pending, ok := c.hedges[ev.OrderID]
	ok = ok && venueMatches(ev.Venue, pending.order.Venue)
	if ok && ev.Status.IsTerminal() {
		delete(c.hedges, ev.OrderID)
	}
	c.mu.Unlock()

	if !ok {
		c.mu.Lock()
		c.stale++
		c.mu.Unlock()
		c.metrics.IncStaleEvent()
		return
	}

	switch ev.Status {
	case enum.OrderStatusFilled:
		qty := ev.FilledQuantity
		if !qty.IsPositive() {
			qty = pending.order.Quantity
		}
		c.positions.ApplyFill(pending.order.Venue, pending.order.Side, qty)
		logs.Infof("hedge order %s filled %s", ev.OrderID, qty)
	case enum.OrderStatusCancelled:
		if ev.FilledQuantity.IsPositive() {
			c.positions.ApplyFill(pending.order.Venue, pending.order.Side, ev.FilledQuantity)
		}
		if ev.FilledQuantity.LessThan(pending.order.Quantity) {
			unfilled := pending.order
			unfilled.Quantity = pending.order.Quantity.Sub(ev.FilledQuantity)
			err := errors.Wrapf(exception.ErrHedgeFailed, "hedge order %s cancelled with %s unfilled", ev.OrderID, unfilled.Quantity)
			c.metrics.IncHedge(obs.ResultFailed)
			c.metrics.AddUnhedged(c.policy.Home, unfilled.Quantity)
			c.alerter.HedgeFailed(model.MakerOrder{}, unfilled, err)
			c.keepLateErr(err)
		}
	}
}

// late applies an event of an unsettled maker order. Only the fill beyond the
// quantity already hedged is hedged, so a repeated event hedges nothing.
func (c *Coordinator) late(ctx context.Context, ev model.OrderEvent) bool {
	c.mu.Lock()
	u, ok := c.unsettled[ev.OrderID]
	if !ok || !venueMatches(ev.Venue, u.order.Venue) {
		c.mu.Unlock()
		return false
	}
	filled := ev.FilledQuantity
	if ev.Status == enum.OrderStatusFilled && !filled.IsPositive() {
		filled = u.order.Quantity
	}
	delta := filled.Sub(u.order.FilledQuantity)
	if delta.IsPositive() {
		u.order.FilledQuantity = filled
	}
	if ev.Status.IsTerminal() {
		delete(c.unsettled, ev.OrderID)
	}
	maker, cycleID := u.order, u.cycleID
	c.mu.Unlock()

	if ev.Status.IsTerminal() {
		logs.Infof("maker order %s settled as %s after cancel", ev.OrderID, ev.Status)
	}
	if !delta.IsPositive() {
		return true
	}

	logs.Infof("late fill %s on maker order %s, hedging", delta, ev.OrderID)
	maker.FilledQuantity = delta
	outcome, err := c.placeHedge(ctx, maker, delta, c.now())
	outcome.CycleID = cycleID
	c.record(ctx, outcome)
	c.keepLateErr(err)
	return true
}

func (c *Coordinator) keepLateErr(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lateErr == nil {
		c.lateErr = err
	}
}

func (c *Coordinator) takeLateErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.lateErr
	c.lateErr = nil
	return err
}

// prune forgets hedges and acknowledged cancels older than trackTTL. Orders
// that may still rest are kept.
func (c *Coordinator) prune() {
	cutoff := c.now().Add(-trackTTL)
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, h := range c.hedges {
		if h.at.Before(cutoff) {
			delete(c.hedges, id)
		}
	}
	for id, u := range c.unsettled {
		if u.acked && u.at.Before(cutoff) {
			delete(c.unsettled, id)
		}
	}
}

// venueMatches accepts events that carry no venue.
func venueMatches(got, want enum.Venue) bool {
	return !got.IsAvailable() || got == want
}

func (c *Coordinator) isLive(ev model.OrderEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live != nil && ev.OrderID == c.live.ID && venueMatches(ev.Venue, c.live.Venue)
}

// recordFill keeps the largest cumulative filled quantity seen.
func (c *Coordinator) recordFill(filled decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live == nil || !filled.GreaterThan(c.live.FilledQuantity) {
		return
	}
	c.live.FilledQuantity = filled
	c.filledAt = c.now()
}

func (c *Coordinator) liveFilled() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live == nil {
		return decimal.Zero
	}
	return c.live.FilledQuantity
}

// closeCycle ends a cycle without a hedge.
func (c *Coordinator) closeCycle(ctx context.Context, kind enum.Outcome, reason string) {
	c.mu.Lock()
	var maker model.MakerOrder
	if c.live != nil {
		maker = *c.live
	}
	c.live = nil
	c.mu.Unlock()
	c.finish(ctx, model.CycleOutcome{Kind: kind, Maker: maker, Reason: reason})
}

func (c *Coordinator) finish(ctx context.Context, outcome model.CycleOutcome) {
	c.record(ctx, outcome)
	c.enter(StateIdle)
}

func (c *Coordinator) record(ctx context.Context, outcome model.CycleOutcome) {
	c.mu.Lock()
	if outcome.CycleID == 0 {
		outcome.CycleID = c.cycleID
	}
	outcome.LongSpread, outcome.ShortSpread = c.longSpr, c.shortSpr
	c.mu.Unlock()
	if outcome.At.IsZero() {
		outcome.At = c.now()
	}
	if c.recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := c.recorder.Record(rctx, outcome); err != nil {
		logs.Errorf("record cycle %d outcome %s, err: %+v", outcome.CycleID, outcome.Kind, err)
	}
}

// enter moves to the next state. An illegal transition is logged and
// counted but still applied so the cycle can reach Idle.
func (c *Coordinator) enter(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	if !from.CanTransition(to) {
		c.violation++
	}
	c.mu.Unlock()

	if !from.CanTransition(to) {
		c.metrics.IncInvariantBreak()
		logs.Errorf("coordinator state %s -> %s, err: %+v", from, to, ErrInvalidTransition)
	}
	c.metrics.SetState(int(to))
}
