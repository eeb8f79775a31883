package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"crossarb/internal/model/enum"
	"crossarb/pkg/exception"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

const DefaultTickInterval = time.Second

// ReadyWaiter signals when a venue book has its first quote.
type ReadyWaiter interface {
	Ready(venue enum.Venue) <-chan struct{}
}

// Loop drives a coordinator on a fixed tick and prints the monitor line.
type Loop struct {
	coord    *Coordinator
	books    ReadyWaiter
	interval time.Duration
	out      io.Writer
}

// NewLoop creates a loop. A nil out prints to stdout.
func NewLoop(coord *Coordinator, books ReadyWaiter, interval time.Duration, out io.Writer) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if out == nil {
		out = os.Stdout
	}
	return &Loop{coord: coord, books: books, interval: interval, out: out}
}

// Run waits for both books, then steps the coordinator every tick until ctx
// is done. A live maker order is cancelled before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	policy := l.coord.Policy()
	logs.Info("waiting for order books...")
	for _, venue := range []enum.Venue{policy.Home, policy.Counter} {
		select {
		case <-ctx.Done():
			return nil
		case <-sys.Shutdown():
			return nil
		case <-l.books.Ready(venue):
			logs.Infof("%s book ready", venue)
		}
	}
	logs.Info("trading loop started")

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return l.coord.Shutdown(ctx)
		case <-sys.Shutdown():
			return l.coord.Shutdown(ctx)
		case <-ticker.C:
			l.step(ctx)
			fmt.Fprintln(l.out, l.coord.Status().Line())
		}
	}
}

func (l *Loop) step(ctx context.Context) {
	err := l.coord.Step(ctx)
	switch {
	case err == nil, errors.Is(err, exception.ErrQuoteNotReady):
	case errors.Is(err, exception.ErrHedgeFailed):
		net := l.coord.Status().Net
		logs.Errorf("!!! UNHEDGED POSITION !!! net: %s, manual action required, err: %+v", net, err)
		fmt.Fprintf(l.out, "[ALERT] unhedged position, net: %s | %v\n", net, err)
	case errors.Is(err, exception.ErrMakerUnsettled):
		logs.Errorf("placement paused until the maker cancel is confirmed, err: %+v", err)
	default:
		logs.Errorf("coordinator step, err: %+v", err)
	}
}
