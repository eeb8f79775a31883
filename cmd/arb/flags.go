package main

import (
	"flag"
	"time"

	"crossarb/internal/ops"
)

type cliFlags struct {
	fs *flag.FlagSet

	configPath     string
	envFile        string
	exchange       string
	ticker         string
	size           string
	fillTimeout    time.Duration
	maxPosition    string
	longThreshold  string
	shortThreshold string
	metricsAddr    string
	pyroscopeAddr  string
	journalDSN     string
	paper          bool
}

func newFlags(name string) *cliFlags {
	f := &cliFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.fs.StringVar(&f.configPath, "config", "", "Path to YAML config")
	f.fs.StringVar(&f.envFile, "env", ".env", "Path to .env credentials file")
	f.fs.StringVar(&f.exchange, "exchange", "extended", "Maker venue: extended, edgex or paper")
	f.fs.StringVar(&f.ticker, "ticker", "BTC", "Ticker symbol")
	f.fs.StringVar(&f.size, "size", "", "Maker order size (required)")
	f.fs.DurationVar(&f.fillTimeout, "fill-timeout", 5*time.Second, "Maker fill wait before cancel")
	f.fs.StringVar(&f.maxPosition, "max-position", "0", "Max net position (0=one clip)")
	f.fs.StringVar(&f.longThreshold, "long-threshold", "10", "Long spread threshold")
	f.fs.StringVar(&f.shortThreshold, "short-threshold", "10", "Short spread threshold")
	f.fs.StringVar(&f.metricsAddr, "metrics-addr", ":9108", "Prometheus listen address (empty=disable)")
	f.fs.StringVar(&f.pyroscopeAddr, "pyroscope", "", "Pyroscope server address (empty=disable)")
	f.fs.StringVar(&f.journalDSN, "journal", "", "Trade journal DSN: postgres://..., sqlite://path or a file path")
	f.fs.BoolVar(&f.paper, "paper", false, "Simulate both venues against live quotes")
	return f
}

func (f *cliFlags) parse(args []string) error {
	return f.fs.Parse(args)
}

// apply copies the flags given on the command line over cfg. Unset flags
// keep the file values.
func (f *cliFlags) apply(cfg *ops.FileConfig) {
	on := true
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "exchange":
			cfg.Exchange = f.exchange
		case "ticker":
			cfg.Ticker = f.ticker
		case "size":
			cfg.Order.Size = f.size
		case "fill-timeout":
			cfg.Order.FillTimeout = f.fillTimeout
		case "max-position":
			cfg.Order.MaxPosition = f.maxPosition
		case "long-threshold":
			cfg.Order.LongThreshold = f.longThreshold
		case "short-threshold":
			cfg.Order.ShortThreshold = f.shortThreshold
		case "metrics-addr":
			cfg.Metrics.Addr = f.metricsAddr
			enabled := f.metricsAddr != ""
			cfg.Features.Metrics = &enabled
		case "pyroscope":
			cfg.Pyroscope.Addr = f.pyroscopeAddr
		case "journal":
			cfg.Journal.DSN = f.journalDSN
			cfg.Features.Journal = &on
		case "paper":
			paper := f.paper
			cfg.Features.Paper = &paper
		}
	})
}
