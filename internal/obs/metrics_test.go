package obs

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crossarb/internal/model/enum"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncQuote(enum.VenueExtended)
	m.IncHedge(ResultFailed)
	m.SetSpread(decimal.NewFromInt(1), decimal.NewFromInt(2))
	m.ObserveFill(time.Second)
	if snap := m.Snapshot(); snap.FillLatency.Count != 0 {
		t.Fatalf("nil metrics snapshot mismatch: got %+v", snap)
	}
}

func TestCountersAndGauges(t *testing.T) {
	m := NewMetrics()
	m.IncQuote(enum.VenueLighter)
	m.IncQuote(enum.VenueLighter)
	m.IncHedge(ResultFailed)
	m.IncPlacement(enum.SideBuy, ResultAccepted)
	m.SetNetPosition(decimal.RequireFromString("-0.5"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.quotes.WithLabelValues("lighter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hedges.WithLabelValues(ResultFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.placements.WithLabelValues("buy", ResultAccepted)))
	assert.Equal(t, -0.5, testutil.ToFloat64(m.netPosition))
}

func TestLatencySnapshot(t *testing.T) {
	var l LatencyStats
	l.Observe(10 * time.Millisecond)
	l.Observe(30 * time.Millisecond)
	l.Observe(-time.Millisecond)

	snap := l.Snapshot()
	want := LatencySnapshot{Count: 2, Min: 10 * time.Millisecond, Max: 30 * time.Millisecond, Avg: 20 * time.Millisecond}
	if snap != want {
		t.Fatalf("latency snapshot mismatch: got %+v want %+v", snap, want)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.IncStaleEvent()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "crossarb_stale_order_events_total 1"), "body: %s", body)
}

func TestCycleIDsIncrease(t *testing.T) {
	g := NewCycleIDs(41)
	if got := g.Next(); got != 42 {
		t.Fatalf("cycle id mismatch: got %d want 42", got)
	}
	var nilGen *CycleIDs
	if got := nilGen.Next(); got != 0 {
		t.Fatalf("nil generator mismatch: got %d want 0", got)
	}
}

func TestMetricsValue(t *testing.T) {
	m := NewMetrics()
	m.IncDrift(enum.VenueLighter)
	m.IncDrift(enum.VenueLighter)
	m.IncStaleEvent()

	assert.Equal(t, 2.0, m.Value("position_drift_total", "venue", "lighter"))
	assert.Equal(t, 0.0, m.Value("position_drift_total", "venue", "extended"))
	assert.Equal(t, 1.0, m.Value("stale_order_events_total"))

	var nilMetrics *Metrics
	assert.Equal(t, 0.0, nilMetrics.Value("stale_order_events_total"))
}

func TestUnhedgedStaysUntilCleared(t *testing.T) {
	m := NewMetrics()
	m.AddUnhedged(enum.VenueExtended, decimal.RequireFromString("-0.5"))
	m.AddUnhedged(enum.VenueExtended, decimal.RequireFromString("1"))
	assert.Equal(t, 1.5, m.Value("unhedged_quantity", "venue", "extended"))

	m.ClearUnhedged()
	assert.Equal(t, 0.0, m.Value("unhedged_quantity", "venue", "extended"))
}

func TestWatchGauge(t *testing.T) {
	m := NewMetrics()
	depth := 3.0
	require.NoError(t, m.WatchGauge("event_queue_depth", "Queued order events.", func() float64 { return depth }))
	assert.Equal(t, 3.0, m.Value("event_queue_depth"))

	depth = 7
	assert.Equal(t, 7.0, m.Value("event_queue_depth"))
	assert.Error(t, m.WatchGauge("event_queue_depth", "dup", func() float64 { return 0 }))
}
