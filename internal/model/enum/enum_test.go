package enum

import "testing"

func TestParseVenue(t *testing.T) {
	cases := []struct {
		in   string
		want Venue
		ok   bool
	}{
		{"extended", VenueExtended, true},
		{" Lighter ", VenueLighter, true},
		{"EDGEX", VenueEdgeX, true},
		{"binance", _venue_beg, false},
		{"", _venue_beg, false},
	}
	for _, tc := range cases {
		got, ok := ParseVenue(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseVenue(%q) mismatch: got %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
	if _venue_end.IsAvailable() || !VenueEdgeX.IsAvailable() {
		t.Fatalf("venue availability mismatch")
	}
}

func TestSideOpposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell || SideSell.Opposite() != SideBuy {
		t.Fatalf("opposite mismatch: buy->%v sell->%v", SideBuy.Opposite(), SideSell.Opposite())
	}
	if got := _side_beg.Opposite(); got.IsAvailable() {
		t.Fatalf("unknown side opposite mismatch: got %v", got)
	}

	for in, want := range map[string]Side{"BUY": SideBuy, "long": SideBuy, "ask": SideSell, "Sell": SideSell} {
		got, ok := ParseSide(in)
		if !ok || got != want {
			t.Fatalf("ParseSide(%q) mismatch: got %v want %v", in, got, want)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	cases := map[string]OrderStatus{
		"new":              OrderStatusOpen,
		"PARTIALLY_FILLED": OrderStatusOpen,
		"filled":           OrderStatusFilled,
		"CANCELED":         OrderStatusCancelled,
		"expired":          OrderStatusCancelled,
		"rejected":         OrderStatusCancelled,
	}
	for in, want := range cases {
		got, ok := ParseOrderStatus(in)
		if !ok || got != want {
			t.Fatalf("ParseOrderStatus(%q) mismatch: got %v want %v", in, got, want)
		}
	}
	if _, ok := ParseOrderStatus("pending_cancel"); ok {
		t.Fatalf("unknown status should not parse")
	}
	if OrderStatusOpen.IsTerminal() || !OrderStatusFilled.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Fatalf("terminal mismatch")
	}
}

func TestOutcomeString(t *testing.T) {
	want := map[Outcome]string{
		OutcomeHedged:      "hedged",
		OutcomeHedgeFailed: "hedge_failed",
		OutcomeCancelled:   "cancelled",
		OutcomeRejected:    "rejected",
		_outcome_end:       "unknown",
	}
	for o, s := range want {
		if o.String() != s {
			t.Fatalf("outcome string mismatch: got %s want %s", o.String(), s)
		}
	}
}
