package ingest

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"crossarb/internal/obs"
	"crossarb/pkg/exception"
	"crossarb/pkg/websocket"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

const (
	defaultPingInterval = 15 * time.Second
	defaultReadTimeout  = 60 * time.Second
)

// Option tunes the underlying connection.
type Option struct {
	Header       http.Header
	PingInterval time.Duration
	ReadTimeout  time.Duration
	Backoff      websocket.Backoff
	Metrics      *obs.Metrics
}

// Ingestor runs one reconnecting stream for one venue.
type Ingestor struct {
	codec   Codec
	sink    Sink
	metrics *obs.Metrics
	manager *websocket.Manager
	now     func() time.Time

	stopOnce sync.Once
}

// New wires a codec and a sink onto a websocket manager.
func New(codec Codec, sink Sink, opt Option) (*Ingestor, error) {
	if codec == nil {
		return nil, exception.ErrFeedNilCodec
	}
	if sink == nil {
		return nil, exception.ErrFeedNilSink
	}
	if opt.PingInterval == 0 {
		opt.PingInterval = defaultPingInterval
	}
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = defaultReadTimeout
	}

	in := &Ingestor{
		codec:   codec,
		sink:    sink,
		metrics: opt.Metrics,
		now:     time.Now,
	}
	manager, err := websocket.NewManager(websocket.Config{
		URL:          codec.URL(),
		Header:       opt.Header,
		PingInterval: opt.PingInterval,
		ReadTimeout:  opt.ReadTimeout,
		Backoff:      opt.Backoff,
		OnConnect:    in.onConnect,
		OnMessage:    in.handle,
		OnDisconnect: in.onDisconnect,
	})
	if err != nil {
		return nil, err
	}
	in.manager = manager
	return in, nil
}

// Run blocks until ctx is done or Shutdown is called. Connection failures
// are retried forever and never surface here.
func (in *Ingestor) Run(ctx context.Context) error {
	venue := in.codec.Venue()
	logs.Infof("%s feed starting, url: %s", venue, in.codec.URL())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sys.Shutdown():
			in.Shutdown()
		case <-runCtx.Done():
		}
	}()

	err := in.manager.Run(runCtx)
	logs.Infof("%s feed stopped", venue)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, websocket.ErrClosed) {
		return nil
	}
	return err
}

// Shutdown closes the live connection and stops Run. Idempotent.
func (in *Ingestor) Shutdown() {
	in.stopOnce.Do(func() {
		in.manager.Close()
	})
}

// Connected reports whether the stream currently has a live session.
func (in *Ingestor) Connected() bool {
	return in.manager.Connected()
}

func (in *Ingestor) onConnect(ctx context.Context, w *websocket.Writer) error {
	venue := in.codec.Venue()
	logs.Infof("%s feed connected", venue)
	for _, sub := range in.codec.Subscriptions() {
		if err := w.WriteJSON(sub); err != nil {
			return err
		}
	}
	return nil
}

func (in *Ingestor) onDisconnect(err error) {
	venue := in.codec.Venue()
	in.metrics.IncDisconnect(venue)
	logs.Errorf("%s feed disconnected, err: %+v", venue, err)
}

func (in *Ingestor) handle(msg []byte) {
	venue := in.codec.Venue()
	up, err := in.codec.Decode(msg)
	if err != nil {
		in.metrics.IncFeedMalformed(venue)
		logs.Errorf("decode %s frame, err: %+v", venue, err)
		return
	}

	if up.Quote != nil {
		in.sink.OnQuote(venue, up.Quote.Bid, up.Quote.Ask)
	}
	for _, ev := range up.Events {
		if !ev.Venue.IsAvailable() {
			ev.Venue = venue
		}
		if ev.ReceivedAt.IsZero() {
			ev.ReceivedAt = in.now()
		}
		in.sink.OnOrderEvent(ev)
	}
}
