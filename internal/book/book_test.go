package book

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crossarb/internal/model/enum"
	"crossarb/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestUpdateAndRead(t *testing.T) {
	b := New()
	if b.IsReady(enum.VenueExtended) {
		t.Fatalf("empty book reported ready")
	}
	if err := b.UpdateString(enum.VenueExtended, "100.1", "100.2"); err != nil {
		t.Fatalf("update: %v", err)
	}
	q, ok := b.Read(enum.VenueExtended)
	if !ok {
		t.Fatalf("quote missing after update")
	}
	if !q.Bid.Equal(decimal.RequireFromString("100.1")) || !q.Ask.Equal(decimal.RequireFromString("100.2")) {
		t.Fatalf("quote mismatch: got %s/%s want 100.1/100.2", q.Bid, q.Ask)
	}
	if q.Venue != enum.VenueExtended {
		t.Fatalf("venue mismatch: got %v want %v", q.Venue, enum.VenueExtended)
	}
	if !b.IsReady(enum.VenueExtended) {
		t.Fatalf("book not ready after a full quote")
	}
	if b.IsReady(enum.VenueLighter) {
		t.Fatalf("untouched venue reported ready")
	}
}

func TestPartialAndInvalidUpdatesAreDiscarded(t *testing.T) {
	b := New()
	require.NoError(t, b.UpdateString(enum.VenueLighter, "50", "51"))

	cases := []struct {
		bid, ask string
		want     error
	}{
		{"", "52", exception.ErrQuotePartial},
		{"49", "", exception.ErrQuotePartial},
		{"abc", "52", exception.ErrQuoteInvalid},
		{"0", "52", exception.ErrQuoteNonPositive},
		{"-1", "52", exception.ErrQuoteNonPositive},
		{"53", "52", exception.ErrQuoteCrossed},
	}
	for _, c := range cases {
		err := b.UpdateString(enum.VenueLighter, c.bid, c.ask)
		if !errors.Is(err, c.want) {
			t.Fatalf("update %q/%q error mismatch: got %v want %v", c.bid, c.ask, err, c.want)
		}
		q, _ := b.Read(enum.VenueLighter)
		if !q.Bid.Equal(decimal.NewFromInt(50)) || !q.Ask.Equal(decimal.NewFromInt(51)) {
			t.Fatalf("book mutated by rejected update %q/%q: got %s/%s", c.bid, c.ask, q.Bid, q.Ask)
		}
	}
}

func TestUnknownVenueRejected(t *testing.T) {
	b := New()
	err := b.Update(enum.Venue(0), decimal.NewFromInt(1), decimal.NewFromInt(2))
	if !errors.Is(err, exception.ErrUnknownVenue) {
		t.Fatalf("error mismatch: got %v want %v", err, exception.ErrUnknownVenue)
	}
}

func TestWaitReady(t *testing.T) {
	b := New()
	done := make(chan error, 1)
	go func() {
		done <- b.WaitReady(t.Context(), enum.VenueExtended, enum.VenueLighter)
	}()

	require.NoError(t, b.UpdateString(enum.VenueExtended, "1", "2"))
	select {
	case err := <-done:
		t.Fatalf("wait returned before both venues were ready: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, b.UpdateString(enum.VenueLighter, "1", "2"))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}

	// a second update must not close the ready channel again
	require.NoError(t, b.UpdateString(enum.VenueLighter, "1.5", "2"))
}

func TestWaitReadyCancelled(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := b.WaitReady(ctx, enum.VenueExtended)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentReadsNeverTear(t *testing.T) {
	b := New()
	require.NoError(t, b.UpdateString(enum.VenueExtended, "1", "2"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 2000; i++ {
			p := decimal.NewFromInt(int64(i))
			_ = b.Update(enum.VenueExtended, p, p.Add(decimal.NewFromInt(1)))
		}
	}()

	for i := 0; i < 2000; i++ {
		q, ok := b.Read(enum.VenueExtended)
		if !ok {
			t.Fatalf("quote vanished")
		}
		if !q.Ask.Sub(q.Bid).Equal(decimal.NewFromInt(1)) {
			t.Fatalf("torn read: bid %s ask %s", q.Bid, q.Ask)
		}
	}
	wg.Wait()
}
