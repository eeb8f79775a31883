package ops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"crossarb/internal/coordinator"
	"crossarb/internal/ingest/extended"
	"crossarb/internal/ingest/lighter"
	"crossarb/internal/model/enum"
	extendedorder "crossarb/internal/order/delegator/extended"
	lighterorder "crossarb/internal/order/delegator/lighter"
	"crossarb/internal/position"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	ExchangePaper = "paper"

	defaultMetricsAddr = ":9108"
)

// FileConfig mirrors the YAML config layout. Decimals are strings so that
// validation can name the offending field.
type FileConfig struct {
	Exchange  string             `yaml:"exchange"`
	Counter   string             `yaml:"counter"`
	Ticker    string             `yaml:"ticker"`
	Order     OrderConfig        `yaml:"order"`
	Extended  ExtendedConfig     `yaml:"extended"`
	Lighter   LighterConfig      `yaml:"lighter"`
	Reconcile ReconcileConfig    `yaml:"reconcile"`
	Loop      LoopConfig         `yaml:"loop"`
	Metrics   MetricsConfig      `yaml:"metrics"`
	Pyroscope PyroscopeConfig    `yaml:"pyroscope"`
	Journal   JournalConfig      `yaml:"journal"`
	Features  FeatureFlagsConfig `yaml:"features"`
}

// OrderConfig describes the maker clip and the entry thresholds.
type OrderConfig struct {
	Size           string        `yaml:"size"`
	FillTimeout    time.Duration `yaml:"fillTimeout"`
	CancelGrace    time.Duration `yaml:"cancelGrace"`
	MaxPosition    string        `yaml:"maxPosition"`
	LongThreshold  string        `yaml:"longThreshold"`
	ShortThreshold string        `yaml:"shortThreshold"`
	Slippage       string        `yaml:"slippage"`
}

// ExtendedConfig describes the Extended endpoints and account.
type ExtendedConfig struct {
	RESTURL   string `yaml:"restURL"`
	StreamURL string `yaml:"streamURL"`
	TickSize  string `yaml:"tickSize"`
	Vault     string `yaml:"vault"`
	APIKey    string `yaml:"-"`
	StarkKey  string `yaml:"-"`
}

// LighterConfig describes the Lighter endpoints and account.
type LighterConfig struct {
	RESTURL      string `yaml:"restURL"`
	StreamURL    string `yaml:"streamURL"`
	TickSize     string `yaml:"tickSize"`
	MarketIndex  int    `yaml:"marketIndex"`
	AccountIndex int    `yaml:"accountIndex"`
	APIKeyIndex  int    `yaml:"apiKeyIndex"`
	APIKey       string `yaml:"-"`
	PrivateKey   string `yaml:"-"`
	AuthToken    string `yaml:"-"`
}

// ReconcileConfig defines how often positions are read back.
type ReconcileConfig struct {
	Interval       time.Duration `yaml:"interval"`
	DriftTolerance string        `yaml:"driftTolerance"`
}

// LoopConfig defines the coordination tick.
type LoopConfig struct {
	TickInterval time.Duration `yaml:"tickInterval"`
}

// MetricsConfig defines the prometheus endpoint. Empty disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// PyroscopeConfig defines the profiling server. Empty disables it.
type PyroscopeConfig struct {
	Addr string `yaml:"addr"`
}

// JournalConfig defines the trade journal database.
type JournalConfig struct {
	DSN string `yaml:"dsn"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	Journal   *bool `yaml:"journal"`
	Metrics   *bool `yaml:"metrics"`
	Reconcile *bool `yaml:"reconcile"`
	Paper     *bool `yaml:"paper"`
}

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	Journal   bool
	Metrics   bool
	Reconcile bool
	Paper     bool
}

// ExtendedSpec is the resolved Extended wiring.
type ExtendedSpec struct {
	RESTURL   string
	StreamURL string
	Market    string
	Vault     string
	APIKey    string
	StarkKey  string
}

// LighterSpec is the resolved Lighter wiring.
type LighterSpec struct {
	RESTURL      string
	StreamURL    string
	MarketIndex  int
	AccountIndex int
	APIKeyIndex  int
	APIKey       string
	PrivateKey   string
	AuthToken    string
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Ticker         string
	Policy         coordinator.Policy
	Extended       ExtendedSpec
	Lighter        LighterSpec
	ReconcileEvery time.Duration
	DriftTolerance decimal.Decimal
	TickInterval   time.Duration
	MetricsAddr    string
	PyroscopeAddr  string
	JournalDSN     string
	Features       FeatureFlags
}

// Default returns the built-in configuration.
func Default() FileConfig {
	return FileConfig{
		Exchange: enum.VenueExtended.String(),
		Counter:  enum.VenueLighter.String(),
		Ticker:   "BTC",
		Order: OrderConfig{
			FillTimeout:    coordinator.DefaultFillTimeout,
			CancelGrace:    coordinator.DefaultCancelGrace,
			MaxPosition:    "0",
			LongThreshold:  "10",
			ShortThreshold: "10",
			Slippage:       coordinator.DefaultSlippage.String(),
		},
		Extended: ExtendedConfig{
			RESTURL:   extendedorder.BaseURL,
			StreamURL: extended.BaseStreamURL,
			TickSize:  extendedorder.DefaultTickSize,
		},
		Lighter: LighterConfig{
			RESTURL:     lighterorder.BaseURL,
			StreamURL:   lighter.BaseStreamURL,
			TickSize:    lighterorder.DefaultTickSize,
			MarketIndex: lighter.DefaultMarketIndex,
		},
		Reconcile: ReconcileConfig{
			Interval:       position.DefaultReconcileInterval,
			DriftTolerance: "0",
		},
		Loop:    LoopConfig{TickInterval: coordinator.DefaultTickInterval},
		Metrics: MetricsConfig{Addr: defaultMetricsAddr},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults.
func Load(path string) (FileConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv copies credentials and account ids from the environment.
func (c *FileConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("EXTENDED_API_KEY", &c.Extended.APIKey)
	str("EXTENDED_VAULT", &c.Extended.Vault)
	str("EXTENDED_STARK_KEY_PRIVATE", &c.Extended.StarkKey)
	str("LIGHTER_API_KEY", &c.Lighter.APIKey)
	str("LIGHTER_PRIVATE_KEY", &c.Lighter.PrivateKey)
	str("LIGHTER_AUTH_TOKEN", &c.Lighter.AuthToken)
	str("JOURNAL_DSN", &c.Journal.DSN)
	if err := num("LIGHTER_API_KEY_INDEX", &c.Lighter.APIKeyIndex); err != nil {
		return err
	}
	if err := num("LIGHTER_ACCOUNT_INDEX", &c.Lighter.AccountIndex); err != nil {
		return err
	}
	return nil
}

// Resolve validates the config and builds the runtime view.
func Resolve(cfg FileConfig) (Loaded, error) {
	features := resolveFeatures(cfg.Features)

	exchange := strings.ToLower(strings.TrimSpace(cfg.Exchange))
	if exchange == ExchangePaper {
		features.Paper = true
		exchange = enum.VenueExtended.String()
	}
	home, err := resolveVenue("exchange", exchange)
	if err != nil {
		return Loaded{}, err
	}
	counter, err := resolveVenue("counter", cfg.Counter)
	if err != nil {
		return Loaded{}, err
	}
	if home == counter {
		return Loaded{}, fmt.Errorf("exchange and counter must differ, both are %s", home)
	}

	ticker := strings.ToUpper(strings.TrimSpace(cfg.Ticker))
	if ticker == "" {
		return Loaded{}, fmt.Errorf("ticker is empty")
	}

	policy, err := resolvePolicy(cfg.Order)
	if err != nil {
		return Loaded{}, err
	}
	markets, err := resolveMarkets(cfg, ticker)
	if err != nil {
		return Loaded{}, err
	}
	policy.Home, policy.Counter = home, counter
	policy.HomeMarket, policy.HomeTick = markets[home].market, markets[home].tick
	policy.CounterMarket, policy.CounterTick = markets[counter].market, markets[counter].tick

	tolerance, err := parseDecimal("reconcile driftTolerance", cfg.Reconcile.DriftTolerance, true)
	if err != nil {
		return Loaded{}, err
	}

	if !features.Paper {
		if cfg.Extended.APIKey == "" {
			return Loaded{}, fmt.Errorf("EXTENDED_API_KEY is required for live trading")
		}
		if cfg.Extended.Vault == "" {
			return Loaded{}, fmt.Errorf("EXTENDED_VAULT is required for live trading")
		}
		if cfg.Lighter.APIKey == "" {
			return Loaded{}, fmt.Errorf("LIGHTER_API_KEY is required for live trading")
		}
	}
	if features.Journal && cfg.Journal.DSN == "" {
		return Loaded{}, fmt.Errorf("journal dsn is empty")
	}

	metricsAddr := cfg.Metrics.Addr
	if !features.Metrics {
		metricsAddr = ""
	}

	return Loaded{
		Ticker: ticker,
		Policy: policy,
		Extended: ExtendedSpec{
			RESTURL:   cfg.Extended.RESTURL,
			StreamURL: cfg.Extended.StreamURL,
			Market:    markets[enum.VenueExtended].market,
			Vault:     cfg.Extended.Vault,
			APIKey:    cfg.Extended.APIKey,
			StarkKey:  cfg.Extended.StarkKey,
		},
		Lighter: LighterSpec{
			RESTURL:      cfg.Lighter.RESTURL,
			StreamURL:    cfg.Lighter.StreamURL,
			MarketIndex:  cfg.Lighter.MarketIndex,
			AccountIndex: cfg.Lighter.AccountIndex,
			APIKeyIndex:  cfg.Lighter.APIKeyIndex,
			APIKey:       cfg.Lighter.APIKey,
			PrivateKey:   cfg.Lighter.PrivateKey,
			AuthToken:    cfg.Lighter.AuthToken,
		},
		ReconcileEvery: cfg.Reconcile.Interval,
		DriftTolerance: tolerance,
		TickInterval:   cfg.Loop.TickInterval,
		MetricsAddr:    metricsAddr,
		PyroscopeAddr:  cfg.Pyroscope.Addr,
		JournalDSN:     cfg.Journal.DSN,
		Features:       features,
	}, nil
}

// venueMarket is the market id and price tick one adapter trades.
type venueMarket struct {
	market string
	tick   decimal.Decimal
}

// resolveMarkets keys market and tick by venue so either adapter can take
// either role.
func resolveMarkets(cfg FileConfig, ticker string) (map[enum.Venue]venueMarket, error) {
	if cfg.Lighter.MarketIndex < 0 {
		return nil, fmt.Errorf("lighter marketIndex must be >= 0")
	}
	exTick, err := parseDecimal("extended tickSize", cfg.Extended.TickSize, false)
	if err != nil {
		return nil, err
	}
	liTick, err := parseDecimal("lighter tickSize", cfg.Lighter.TickSize, false)
	if err != nil {
		return nil, err
	}
	return map[enum.Venue]venueMarket{
		enum.VenueExtended: {market: extended.Market(ticker), tick: exTick},
		enum.VenueLighter:  {market: strconv.Itoa(cfg.Lighter.MarketIndex), tick: liTick},
	}, nil
}

func resolveVenue(field, name string) (enum.Venue, error) {
	venue, ok := enum.ParseVenue(name)
	if !ok {
		return 0, fmt.Errorf("%s venue not found: %s", field, name)
	}
	switch venue {
	case enum.VenueExtended, enum.VenueLighter:
		return venue, nil
	default:
		return 0, fmt.Errorf("%s venue %s has no execution adapter", field, venue)
	}
}

func resolvePolicy(cfg OrderConfig) (coordinator.Policy, error) {
	size, err := parseDecimal("order size", cfg.Size, false)
	if err != nil {
		return coordinator.Policy{}, err
	}
	if !size.IsPositive() {
		return coordinator.Policy{}, fmt.Errorf("order size must be > 0")
	}
	maxPos, err := parseDecimal("order maxPosition", cfg.MaxPosition, true)
	if err != nil {
		return coordinator.Policy{}, err
	}
	if maxPos.IsNegative() {
		return coordinator.Policy{}, fmt.Errorf("order maxPosition must be >= 0")
	}
	if maxPos.IsZero() {
		maxPos = size
	}
	long, err := parseDecimal("order longThreshold", cfg.LongThreshold, true)
	if err != nil {
		return coordinator.Policy{}, err
	}
	short, err := parseDecimal("order shortThreshold", cfg.ShortThreshold, true)
	if err != nil {
		return coordinator.Policy{}, err
	}
	slippage, err := parseDecimal("order slippage", cfg.Slippage, true)
	if err != nil {
		return coordinator.Policy{}, err
	}
	if slippage.IsNegative() || slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return coordinator.Policy{}, fmt.Errorf("order slippage must be in [0, 1)")
	}
	if cfg.FillTimeout < 0 || cfg.CancelGrace < 0 {
		return coordinator.Policy{}, fmt.Errorf("order fillTimeout and cancelGrace must be >= 0")
	}
	return coordinator.Policy{
		Quantity:       size,
		MaxPosition:    maxPos,
		LongThreshold:  long,
		ShortThreshold: short,
		Slippage:       slippage,
		FillTimeout:    cfg.FillTimeout,
		CancelGrace:    cfg.CancelGrace,
	}, nil
}

func parseDecimal(field, raw string, allowEmpty bool) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if allowEmpty {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("%s is empty", field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s is not a decimal: %q", field, raw)
	}
	return d, nil
}

func resolveFeatures(cfg FeatureFlagsConfig) FeatureFlags {
	flags := FeatureFlags{
		Journal:   false,
		Metrics:   true,
		Reconcile: true,
		Paper:     false,
	}
	if cfg.Journal != nil {
		flags.Journal = *cfg.Journal
	}
	if cfg.Metrics != nil {
		flags.Metrics = *cfg.Metrics
	}
	if cfg.Reconcile != nil {
		flags.Reconcile = *cfg.Reconcile
	}
	if cfg.Paper != nil {
		flags.Paper = *cfg.Paper
	}
	return flags
}
