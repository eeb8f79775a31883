package obs

import (
	"net/http"
	"time"

	"crossarb/internal/model/enum"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "crossarb"

// Results used as label values.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultBlocked  = "blocked"
	ResultOK       = "ok"
	ResultFailed   = "failed"
)

// Metrics owns a private prometheus registry plus the in-process latency
// aggregates shown on the status line. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	quotes          *prometheus.CounterVec
	quoteRejects    *prometheus.CounterVec
	feedDrops       *prometheus.CounterVec
	reconnects      *prometheus.CounterVec
	orderEvents     *prometheus.CounterVec
	staleEvents     prometheus.Counter
	queueDrops      prometheus.Counter
	placements      *prometheus.CounterVec
	cancels         *prometheus.CounterVec
	hedges          *prometheus.CounterVec
	invariantBreaks prometheus.Counter
	drift           *prometheus.CounterVec
	spread          *prometheus.GaugeVec
	position        *prometheus.GaugeVec
	netPosition     prometheus.Gauge
	unhedged        *prometheus.GaugeVec
	state           prometheus.Gauge
	placeLatency    prometheus.Histogram

	fillLatency  LatencyStats
	hedgeLatency LatencyStats
}

// Snapshot is a point-in-time view of the in-process aggregates.
type Snapshot struct {
	FillLatency  LatencySnapshot
	HedgeLatency LatencySnapshot
}

// NewMetrics allocates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "quotes_total",
			Help: "Accepted BBO updates per venue.",
		}, []string{"venue"}),
		quoteRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "quote_rejects_total",
			Help: "Discarded BBO updates per venue.",
		}, []string{"venue"}),
		feedDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "feed_malformed_total",
			Help: "Malformed stream frames dropped per venue.",
		}, []string{"venue"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "feed_disconnects_total",
			Help: "Stream disconnects and dial failures per venue.",
		}, []string{"venue"}),
		orderEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_events_total",
			Help: "Order events received per venue and status.",
		}, []string{"venue", "status"}),
		staleEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stale_order_events_total",
			Help: "Order events dropped because their id is not tracked.",
		}),
		queueDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_event_queue_drops_total",
			Help: "Order events rejected by a full or closed queue.",
		}),
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "maker_placements_total",
			Help: "Maker placement attempts by result.",
		}, []string{"side", "result"}),
		cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "maker_cancels_total",
			Help: "Maker cancel attempts by result.",
		}, []string{"result"}),
		hedges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "hedges_total",
			Help: "Hedge orders by result. Any failed hedge is an unhedged position.",
		}, []string{"result"}),
		invariantBreaks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "invariant_violations_total",
			Help: "Placement attempts while a maker order was live.",
		}),
		drift: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "position_drift_total",
			Help: "Reconciliations whose drift exceeded tolerance.",
		}, []string{"venue"}),
		spread: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "spread",
			Help: "Last evaluated spread by direction.",
		}, []string{"direction"}),
		position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "position",
			Help: "Tracked position per venue.",
		}, []string{"venue"}),
		netPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "net_position",
			Help: "Net position across venues.",
		}),
		unhedged: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "unhedged_quantity",
			Help: "Maker fill quantity left unhedged per maker venue. Stays set until a reconcile finds the net flat.",
		}, []string{"venue"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "coordinator_state",
			Help: "Current coordinator state code.",
		}),
		placeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "place_order_seconds",
			Help:    "Gateway place order round trip.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	m.registry.MustRegister(
		m.quotes, m.quoteRejects, m.feedDrops, m.reconnects, m.orderEvents,
		m.staleEvents, m.queueDrops, m.placements, m.cancels, m.hedges,
		m.invariantBreaks, m.drift, m.spread, m.position, m.netPosition,
		m.unhedged, m.state, m.placeLatency,
	)
	return m
}

// Registry exposes the registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncQuote(venue enum.Venue) {
	if m == nil {
		return
	}
	m.quotes.WithLabelValues(venue.String()).Inc()
}

func (m *Metrics) IncQuoteReject(venue enum.Venue) {
	if m == nil {
		return
	}
	m.quoteRejects.WithLabelValues(venue.String()).Inc()
}

func (m *Metrics) IncFeedMalformed(venue enum.Venue) {
	if m == nil {
		return
	}
	m.feedDrops.WithLabelValues(venue.String()).Inc()
}

func (m *Metrics) IncDisconnect(venue enum.Venue) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(venue.String()).Inc()
}

func (m *Metrics) IncOrderEvent(venue enum.Venue, status enum.OrderStatus) {
	if m == nil {
		return
	}
	m.orderEvents.WithLabelValues(venue.String(), status.String()).Inc()
}

func (m *Metrics) IncStaleEvent() {
	if m == nil {
		return
	}
	m.staleEvents.Inc()
}

func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	m.queueDrops.Inc()
}

func (m *Metrics) IncPlacement(side enum.Side, result string) {
	if m == nil {
		return
	}
	m.placements.WithLabelValues(side.String(), result).Inc()
}

func (m *Metrics) IncCancel(result string) {
	if m == nil {
		return
	}
	m.cancels.WithLabelValues(result).Inc()
}

func (m *Metrics) IncHedge(result string) {
	if m == nil {
		return
	}
	m.hedges.WithLabelValues(result).Inc()
}

func (m *Metrics) IncInvariantBreak() {
	if m == nil {
		return
	}
	m.invariantBreaks.Inc()
}

func (m *Metrics) IncDrift(venue enum.Venue) {
	if m == nil {
		return
	}
	m.drift.WithLabelValues(venue.String()).Inc()
}

// SetSpread records the long and short spreads of the last tick.
func (m *Metrics) SetSpread(long, short decimal.Decimal) {
	if m == nil {
		return
	}
	m.spread.WithLabelValues("long").Set(long.InexactFloat64())
	m.spread.WithLabelValues("short").Set(short.InexactFloat64())
}

func (m *Metrics) SetPosition(venue enum.Venue, qty decimal.Decimal) {
	if m == nil {
		return
	}
	m.position.WithLabelValues(venue.String()).Set(qty.InexactFloat64())
}

func (m *Metrics) SetNetPosition(qty decimal.Decimal) {
	if m == nil {
		return
	}
	m.netPosition.Set(qty.InexactFloat64())
}

// AddUnhedged raises the unhedged alert for a maker venue by qty.
func (m *Metrics) AddUnhedged(venue enum.Venue, qty decimal.Decimal) {
	if m == nil {
		return
	}
	m.unhedged.WithLabelValues(venue.String()).Add(qty.Abs().InexactFloat64())
}

// ClearUnhedged drops every unhedged alert.
func (m *Metrics) ClearUnhedged() {
	if m == nil {
		return
	}
	m.unhedged.Reset()
}

// WatchGauge registers a gauge read from fn at every scrape.
func (m *Metrics) WatchGauge(name, help string, fn func() float64) error {
	if m == nil || fn == nil {
		return nil
	}
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: name, Help: help,
	}, fn))
}

func (m *Metrics) SetState(code int) {
	if m == nil {
		return
	}
	m.state.Set(float64(code))
}

// ObservePlace measures one gateway place round trip.
func (m *Metrics) ObservePlace(d time.Duration) {
	if m == nil {
		return
	}
	m.placeLatency.Observe(d.Seconds())
}

// ObserveFill measures maker placement to fill.
func (m *Metrics) ObserveFill(d time.Duration) {
	if m == nil {
		return
	}
	m.fillLatency.Observe(d)
}

// ObserveHedge measures maker fill to hedge acknowledgement.
func (m *Metrics) ObserveHedge(d time.Duration) {
	if m == nil {
		return
	}
	m.hedgeLatency.Observe(d)
}

// Snapshot returns a copy of the in-process aggregates.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		FillLatency:  m.fillLatency.Snapshot(),
		HedgeLatency: m.hedgeLatency.Snapshot(),
	}
}

// Value returns the current value of a counter or gauge sample matching the
// given label name/value pairs, zero when absent.
func (m *Metrics) Value(name string, labels ...string) float64 {
	if m == nil {
		return 0
	}
	families, err := m.registry.Gather()
	if err != nil {
		return 0
	}
	for _, f := range families {
		if f.GetName() != namespace+"_"+name {
			continue
		}
	next:
		for _, metric := range f.GetMetric() {
			for i := 0; i+1 < len(labels); i += 2 {
				found := false
				for _, lp := range metric.GetLabel() {
					if lp.GetName() == labels[i] && lp.GetValue() == labels[i+1] {
						found = true
						break
					}
				}
				if !found {
					continue next
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}
