package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crossarb/internal/book"
	"crossarb/internal/bus"
	"crossarb/internal/coordinator"
	"crossarb/internal/ingest"
	"crossarb/internal/ingest/extended"
	"crossarb/internal/ingest/lighter"
	"crossarb/internal/journal"
	"crossarb/internal/model/enum"
	"crossarb/internal/obs"
	"crossarb/internal/ops"
	"crossarb/internal/order"
	extendedorder "crossarb/internal/order/delegator/extended"
	lighterorder "crossarb/internal/order/delegator/lighter"
	"crossarb/internal/order/delegator/paper"
	"crossarb/internal/position"
	"crossarb/pkg/conn"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

const (
	appName        = "crossarb"
	eventCapacity  = 1024
	summaryTimeout = 5 * time.Second
	summaryRecords = 5
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		logs.Errorf("%s: %+v", appName, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := newFlags(appName)
	if err := flags.parse(args); err != nil {
		return err
	}
	if err := ops.LoadDotEnv(flags.envFile); err != nil {
		return err
	}
	fileCfg, err := ops.Load(flags.configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if err := fileCfg.ApplyEnv(nil); err != nil {
		return err
	}
	flags.apply(&fileCfg)
	cfg, err := ops.Resolve(fileCfg)
	if err != nil {
		return errors.Wrap(err, "resolve config")
	}

	if cfg.PyroscopeAddr != "" {
		profiler, err := startProfiler(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = profiler.Stop() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runEngine(ctx, cfg)
}

func runEngine(ctx context.Context, cfg ops.Loaded) error {
	metrics := obs.NewMetrics()
	quotes := book.New()
	events := bus.NewQueue(eventCapacity)
	defer events.Close()
	watch(metrics, "event_queue_depth", "Order events waiting for the coordinator.", func() float64 {
		return float64(events.Len())
	})
	sink := ingest.BookSink{Book: quotes, Events: events, Metrics: metrics}

	var (
		gateways []order.Gateway
		papers   []*paper.Delegator
	)
	if cfg.Features.Paper {
		for _, venue := range []enum.Venue{cfg.Policy.Home, cfg.Policy.Counter} {
			p, err := paper.NewDelegator(venue, quotes, sink)
			if err != nil {
				return err
			}
			papers = append(papers, p)
			gateways = append(gateways, p)
		}
		logs.Info("paper mode, no order reaches a venue")
	} else {
		ex, err := extendedorder.NewDelegator(extendedorder.Config{
			BaseURL: cfg.Extended.RESTURL,
			Market:  cfg.Extended.Market,
			Vault:   cfg.Extended.Vault,
			Signer:  order.APIKeySigner{Key: cfg.Extended.APIKey},
		})
		if err != nil {
			return errors.Wrap(err, "extended gateway")
		}
		li, err := lighterorder.NewDelegator(lighterorder.Config{
			BaseURL:      cfg.Lighter.RESTURL,
			MarketIndex:  cfg.Lighter.MarketIndex,
			AccountIndex: cfg.Lighter.AccountIndex,
			Signer:       order.APIKeySigner{Key: cfg.Lighter.APIKey},
		})
		if err != nil {
			return errors.Wrap(err, "lighter gateway")
		}
		gateways = append(gateways, ex, li)
	}
	router := order.NewRouter(gateways...)

	var reader position.Reader
	if cfg.Features.Reconcile {
		reader = router
	}
	tracker := position.New(reader, position.Config{
		Venues:         []enum.Venue{cfg.Policy.Home, cfg.Policy.Counter},
		Interval:       cfg.ReconcileEvery,
		DriftTolerance: cfg.DriftTolerance,
		Metrics:        metrics,
	})

	var (
		recorder coordinator.Recorder
		trades   *journal.Journal
	)
	if cfg.Features.Journal {
		j, closeDB, err := openJournal(cfg.JournalDSN)
		if err != nil {
			return err
		}
		defer closeDB()
		recorder, trades = j, j
	}

	coord, err := coordinator.New(coordinator.Config{
		Policy:    cfg.Policy,
		Book:      quotes,
		Exec:      router,
		Events:    events.C(),
		Positions: tracker,
		Recorder:  recorder,
		Metrics:   metrics,
	})
	if err != nil {
		return errors.Wrap(err, "coordinator")
	}

	ingestors, err := buildIngestors(cfg, sink, metrics)
	if err != nil {
		return err
	}
	watch(metrics, "feeds_connected", "Venue streams with a live session.", func() float64 {
		n := 0
		for _, in := range ingestors {
			if in.Connected() {
				n++
			}
		}
		return float64(n)
	})

	logs.Infof("starting %s %s maker on %s, hedge on %s, size: %s",
		appName, cfg.Ticker, cfg.Policy.Home, cfg.Policy.Counter, cfg.Policy.Quantity)

	g, gctx := errgroup.WithContext(ctx)
	for _, in := range ingestors {
		g.Go(func() error { return in.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		for _, in := range ingestors {
			in.Shutdown()
		}
		return nil
	})
	for _, p := range papers {
		g.Go(func() error { return p.Run(gctx, 0) })
	}
	g.Go(func() error { return tracker.Run(gctx) })
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			if err := obs.Serve(gctx, cfg.MetricsAddr, metrics); err != nil {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
	}
	g.Go(func() error {
		return coordinator.NewLoop(coord, quotes, cfg.TickInterval, os.Stdout).Run(gctx)
	})

	err = g.Wait()
	snap := metrics.Snapshot()
	logs.Infof("stopped, net position: %s, fills: %d (avg %s), hedges: %d (avg %s), dropped events: %d",
		tracker.Net(), snap.FillLatency.Count, snap.FillLatency.Avg, snap.HedgeLatency.Count, snap.HedgeLatency.Avg, events.Drops())
	if total, open := coord.Unsettled(); total > 0 {
		logs.Errorf("%d maker orders without a terminal event, %d may still rest", total, open)
	}
	if trades != nil {
		summarize(ctx, trades)
	}
	return err
}

func watch(metrics *obs.Metrics, name, help string, fn func() float64) {
	if err := metrics.WatchGauge(name, help, fn); err != nil {
		logs.Errorf("register gauge %s, err: %+v", name, err)
	}
}

// summarize logs the journal totals and the last few cycles on exit.
func summarize(ctx context.Context, trades *journal.Journal) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryTimeout)
	defer cancel()

	counts, err := trades.CountByOutcome(ctx)
	if err != nil {
		logs.Errorf("journal summary, err: %+v", err)
		return
	}
	logs.Infof("journal outcomes: %v", counts)

	records, err := trades.Recent(ctx, summaryRecords)
	if err != nil {
		logs.Errorf("journal recent cycles, err: %+v", err)
		return
	}
	for _, r := range records {
		logs.Infof("cycle %d %s: maker %s %s @ %s filled %s, hedge %s %s @ %s",
			r.CycleID, r.Outcome, r.MakerSide, r.MakerQty, r.MakerPrice, r.FilledQty, r.HedgeSide, r.HedgeQty, r.HedgePrice)
	}
}

type stream struct {
	codec  ingest.Codec
	header http.Header
}

func buildIngestors(cfg ops.Loaded, sink ingest.Sink, metrics *obs.Metrics) ([]*ingest.Ingestor, error) {
	streams := []stream{
		{codec: extended.NewMarketCodec(cfg.Extended.StreamURL, cfg.Extended.Market)},
	}

	lighterCfg := lighter.Config{
		URL:          cfg.Lighter.StreamURL,
		MarketIndex:  cfg.Lighter.MarketIndex,
		AccountIndex: cfg.Lighter.AccountIndex,
	}
	if !cfg.Features.Paper {
		header := http.Header{}
		header.Set("X-Api-Key", cfg.Extended.APIKey)
		streams = append(streams, stream{
			codec:  extended.NewAccountCodec(cfg.Extended.StreamURL, cfg.Extended.Vault),
			header: header,
		})
		lighterCfg.AuthToken = cfg.Lighter.AuthToken
	}
	streams = append(streams, stream{codec: lighter.NewCodec(lighterCfg)})

	out := make([]*ingest.Ingestor, 0, len(streams))
	for _, s := range streams {
		in, err := ingest.New(s.codec, sink, ingest.Option{Header: s.header, Metrics: metrics})
		if err != nil {
			return nil, errors.Wrapf(err, "%s ingestor", s.codec.Venue())
		}
		out = append(out, in)
	}
	return out, nil
}

func openJournal(dsn string) (*journal.Journal, func(), error) {
	opt, err := conn.ParseDSN(dsn)
	if err != nil {
		return nil, nil, err
	}
	client, err := conn.New(opt)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open journal")
	}
	j, err := journal.New(client.DB())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logs.Infof("trade journal on %s", client.Driver())
	return j, func() { _ = client.Close() }, nil
}

type pyroscopeLogger struct{}

func (pyroscopeLogger) Infof(format string, args ...interface{}) {
	logs.Infof("pyroscope: "+format, args...)
}

func (pyroscopeLogger) Debugf(string, ...interface{}) {}

func (pyroscopeLogger) Errorf(format string, args ...interface{}) {
	logs.Errorf("pyroscope: "+format, args...)
}

func startProfiler(cfg ops.Loaded) (*pyroscope.Profiler, error) {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   cfg.PyroscopeAddr,
		Logger:          pyroscopeLogger{},
		Tags: map[string]string{
			"ticker": cfg.Ticker,
			"home":   cfg.Policy.Home.String(),
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "start pyroscope")
	}
	return profiler, nil
}
