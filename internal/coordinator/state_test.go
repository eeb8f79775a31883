package coordinator

import "testing"

func TestStateTransitions(t *testing.T) {
	testCases := []struct {
		from State
		to   State
		want bool
	}{
		{from: StateIdle, to: StatePlacing, want: true},
		{from: StateIdle, to: StateResting, want: false},
		{from: StatePlacing, to: StateResting, want: true},
		{from: StatePlacing, to: StateIdle, want: true},
		{from: StateResting, to: StateFilled, want: true},
		{from: StateResting, to: StateTimedOut, want: true},
		{from: StateResting, to: StatePlacing, want: false},
		{from: StateTimedOut, to: StateCancelling, want: true},
		{from: StateTimedOut, to: StateIdle, want: false},
		{from: StateCancelling, to: StateFilled, want: true},
		{from: StateCancelling, to: StateIdle, want: true},
		{from: StateFilled, to: StateIdle, want: true},
		{from: StateFilled, to: StateCancelling, want: false},
	}

	for _, tc := range testCases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%s -> %s mismatch: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
