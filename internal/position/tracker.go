package position

import (
	"context"
	"sort"
	"sync"
	"time"

	"crossarb/internal/model/enum"
	"crossarb/internal/obs"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

const DefaultReconcileInterval = 30 * time.Second

// Reader reads the authoritative position of a venue.
type Reader interface {
	GetPosition(ctx context.Context, venue enum.Venue) (decimal.Decimal, error)
}

// Config defines the tracked venues and the reconcile policy.
type Config struct {
	Venues         []enum.Venue
	Interval       time.Duration
	DriftTolerance decimal.Decimal
	Metrics        *obs.Metrics
}

// Tracker keeps a signed position per venue. Fills move it, reconcile reads
// beyond the drift tolerance overwrite it.
type Tracker struct {
	mu        sync.Mutex
	positions map[enum.Venue]decimal.Decimal

	reader    Reader
	interval  time.Duration
	tolerance decimal.Decimal
	metrics   *obs.Metrics
}

// New creates a flat tracker. reader may be nil when reconcile is disabled.
func New(reader Reader, cfg Config) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultReconcileInterval
	}
	t := &Tracker{
		positions: make(map[enum.Venue]decimal.Decimal, len(cfg.Venues)),
		reader:    reader,
		interval:  cfg.Interval,
		tolerance: cfg.DriftTolerance.Abs(),
		metrics:   cfg.Metrics,
	}
	for _, v := range cfg.Venues {
		t.positions[v] = decimal.Zero
	}
	return t
}

func applySide(current decimal.Decimal, side enum.Side, qty decimal.Decimal) decimal.Decimal {
	switch side {
	case enum.SideBuy:
		return current.Add(qty.Abs())
	case enum.SideSell:
		return current.Sub(qty.Abs())
	default:
		return current
	}
}

// ApplyFill moves the venue position by a confirmed fill and returns it.
func (t *Tracker) ApplyFill(venue enum.Venue, side enum.Side, qty decimal.Decimal) decimal.Decimal {
	t.mu.Lock()
	next := applySide(t.positions[venue], side, qty)
	t.positions[venue] = next
	net := t.netLocked()
	t.mu.Unlock()

	t.metrics.SetPosition(venue, next)
	t.metrics.SetNetPosition(net)
	return next
}

// Position returns the venue position, zero when unknown.
func (t *Tracker) Position(venue enum.Venue) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positions[venue]
}

// Net returns the sum across venues.
func (t *Tracker) Net() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.netLocked()
}

func (t *Tracker) netLocked() decimal.Decimal {
	net := decimal.Zero
	for _, p := range t.positions {
		net = net.Add(p)
	}
	return net
}

// Snapshot returns a copy of all positions.
func (t *Tracker) Snapshot() map[enum.Venue]decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[enum.Venue]decimal.Decimal, len(t.positions))
	for v, p := range t.positions {
		out[v] = p
	}
	return out
}

// Allows reports whether a new order on side may be placed under the cap.
// At the cap only the side that reduces |net| is allowed. A non-positive
// max disables the cap.
func (t *Tracker) Allows(side enum.Side, max decimal.Decimal) bool {
	if !max.IsPositive() {
		return true
	}
	net := t.Net()
	if net.Abs().LessThan(max) {
		return true
	}
	switch side {
	case enum.SideBuy:
		return net.IsNegative()
	case enum.SideSell:
		return net.IsPositive()
	default:
		return false
	}
}

// Reconcile reads every tracked venue. A remote value within the drift
// tolerance keeps the local one, which may already hold fills the venue has
// not reported yet. Beyond the tolerance the remote value is adopted. A read
// error keeps the local value; the last one is returned. A clean pass with a
// flat net clears the unhedged alert.
func (t *Tracker) Reconcile(ctx context.Context) error {
	if t.reader == nil {
		return nil
	}

	var lastErr error
	for _, venue := range t.sortedVenues() {
		remote, err := t.reader.GetPosition(ctx, venue)
		if err != nil {
			lastErr = errors.Wrapf(err, "reconcile %s position", venue)
			logs.Errorf("reconcile %s position, keep local, err: %+v", venue, err)
			continue
		}

		t.mu.Lock()
		local := t.positions[venue]
		drift := local.Sub(remote).Abs().GreaterThan(t.tolerance)
		if drift {
			t.positions[venue] = remote
		}
		current := t.positions[venue]
		net := t.netLocked()
		t.mu.Unlock()

		if drift {
			t.metrics.IncDrift(venue)
			logs.Errorf("position drift on %s, local: %s, remote: %s, adopt remote", venue, local, remote)
		}
		t.metrics.SetPosition(venue, current)
		t.metrics.SetNetPosition(net)
	}

	if lastErr == nil && !t.Net().Abs().GreaterThan(t.tolerance) {
		t.metrics.ClearUnhedged()
	}
	return lastErr
}

// Run reconciles once at start and then every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	if t.reader == nil {
		<-ctx.Done()
		return nil
	}
	_ = t.Reconcile(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sys.Shutdown():
			return nil
		case <-ticker.C:
			_ = t.Reconcile(ctx)
		}
	}
}

func (t *Tracker) sortedVenues() []enum.Venue {
	t.mu.Lock()
	defer t.mu.Unlock()
	venues := make([]enum.Venue, 0, len(t.positions))
	for v := range t.positions {
		venues = append(venues, v)
	}
	sort.Slice(venues, func(i, j int) bool { return venues[i] < venues[j] })
	return venues
}
