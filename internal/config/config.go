package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for tradingcase.
type Config struct {
	Server     Server     `yaml:"server"`
	Storage    Storage    `yaml:"storage"`
	Alpaca     Alpaca     `yaml:"alpaca"`
	Logging    Logging    `yaml:"logging"`
	Tracing    Tracing    `yaml:"tracing"`
	MarketData MarketData `yaml:"market_data"`
	Backtest   Backtest   `yaml:"backtest"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Storage holds paths for data persistence. An empty SQLitePath disables
// run history.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// HasCredentials reports whether both key and secret are set.
func (a Alpaca) HasCredentials() bool {
	return a.APIKey != "" && a.APISecret != ""
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Tracing configures OpenTelemetry.
type Tracing struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// MarketData selects and tunes the price series source.
type MarketData struct {
	// Source is "auto" (Alpaca with synthetic fallback), "alpaca" or
	// "synthetic".
	Source          string `yaml:"source"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxRetries      int    `yaml:"max_retries"`
	// Cache stores fetched bars as parquet under Storage.DataDir.
	Cache bool `yaml:"cache"`
}

// Backtest holds the defaults applied to every run.
type Backtest struct {
	Strategy          string  `yaml:"strategy"`
	InitialCash       float64 `yaml:"initial_cash"`
	FastPeriod        int     `yaml:"fast_period"`
	SlowPeriod        int     `yaml:"slow_period"`
	CommissionRate    float64 `yaml:"commission_rate"`
	Sizing            string  `yaml:"sizing"`
	Stake             float64 `yaml:"stake"`
	EndOfSeries       string  `yaml:"end_of_series"`
	MaxConcurrentRuns int     `yaml:"max_concurrent_runs"`
	Verbose           bool    `yaml:"verbose"`
	Risk              Risk    `yaml:"risk"`
}

// Risk configures the engine's pre-trade checks. Zero disables a rule.
type Risk struct {
	HaltDrawdownPct float64 `yaml:"halt_drawdown_pct"`
	MinTradeCash    float64 `yaml:"min_trade_cash"`
}

// ---------------------------------------------------------------------------
// Defaults and loading
// ---------------------------------------------------------------------------

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{Host: "0.0.0.0", Port: 8000, GRPCPort: 9090},
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/tradingcase.db",
		},
		Alpaca: Alpaca{
			DataURL: "https://data.alpaca.markets",
			Feed:    "iex",
		},
		Logging: Logging{Level: "info", Format: "json"},
		Tracing: Tracing{ServiceName: "tradingcase"},
		MarketData: MarketData{
			Source:          "auto",
			RateLimitPerMin: 200,
			MaxRetries:      3,
			Cache:           true,
		},
		Backtest: Backtest{
			Strategy:          "sma-cross",
			InitialCash:       100000,
			FastPeriod:        10,
			SlowPeriod:        30,
			CommissionRate:    0.001,
			Sizing:            "all-in",
			Stake:             1,
			EndOfSeries:       "mark-to-market",
			MaxConcurrentRuns: 4,
		},
	}
}

// Load reads the YAML configuration file at the given path on top of
// Default(), and then applies environment variable overrides. An empty path
// skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADINGCASE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.Enabled = b
		}
	}

	if v := os.Getenv("MARKET_DATA_SOURCE"); v != "" {
		cfg.MarketData.Source = strings.ToLower(v)
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	// Standard Alpaca env vars take priority: they are the names the SDK reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		add("server.port %d out of range", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		add("server.grpc_port %d out of range", c.Server.GRPCPort)
	}

	switch c.MarketData.Source {
	case "auto", "synthetic":
	case "alpaca":
		if !c.Alpaca.HasCredentials() {
			add("market_data.source alpaca needs alpaca.api_key and alpaca.api_secret")
		}
	default:
		add("market_data.source %q must be auto, alpaca or synthetic", c.MarketData.Source)
	}
	if c.MarketData.Cache && c.Storage.DataDir == "" {
		add("market_data.cache needs storage.data_dir")
	}

	b := c.Backtest
	if b.InitialCash <= 0 {
		add("backtest.initial_cash must be positive")
	}
	if b.FastPeriod <= 0 || b.SlowPeriod <= 0 {
		add("backtest periods must be positive")
	} else if b.FastPeriod >= b.SlowPeriod {
		add("backtest.fast_period must be less than backtest.slow_period")
	}
	if b.CommissionRate < 0 || b.CommissionRate >= 1 {
		add("backtest.commission_rate must be in [0, 1)")
	}
	switch b.Sizing {
	case "all-in":
	case "fixed":
		if b.Stake <= 0 {
			add("backtest.stake must be positive for fixed sizing")
		}
	default:
		add("backtest.sizing %q must be all-in or fixed", b.Sizing)
	}
	switch b.EndOfSeries {
	case "mark-to-market", "close":
	default:
		add("backtest.end_of_series %q must be mark-to-market or close", b.EndOfSeries)
	}
	if b.MaxConcurrentRuns < 1 {
		add("backtest.max_concurrent_runs must be at least 1")
	}
	if b.Risk.HaltDrawdownPct < 0 || b.Risk.HaltDrawdownPct > 100 {
		add("backtest.risk.halt_drawdown_pct must be in [0, 100]")
	}
	if b.Risk.MinTradeCash < 0 {
		add("backtest.risk.min_trade_cash must not be negative")
	}

	return errors.Join(errs...)
}
