package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/quant-backtest/internal/backtest"
	"github.com/ducminhle1904/quant-backtest/internal/risk"
	"github.com/ducminhle1904/quant-backtest/internal/sizing"
	"github.com/ducminhle1904/quant-backtest/internal/strategy"
)

// Config is the whole application configuration, loadable from a JSON or
// YAML file. Exchange credentials never live in the file; they come from
// the environment.
type Config struct {
	Environment string `json:"environment" yaml:"environment"`
	LogLevel    string `json:"log_level" yaml:"log_level"`

	Backtest    backtest.Config            `json:"backtest" yaml:"backtest"`
	Risk        risk.Limits                `json:"risk" yaml:"risk"`
	Strategy    StrategySettings           `json:"strategy" yaml:"strategy"`
	Sizing      SizingSettings             `json:"sizing" yaml:"sizing"`
	WalkForward backtest.WalkForwardConfig `json:"walk_forward" yaml:"walk_forward"`
	MonteCarlo  MonteCarloSettings         `json:"monte_carlo" yaml:"monte_carlo"`
	Exchange    ExchangeSettings           `json:"exchange" yaml:"exchange"`
	Monitoring  MonitoringSettings         `json:"monitoring" yaml:"monitoring"`
}

// StrategySettings selects and parameterizes a signal generator.
type StrategySettings struct {
	Generator    string  `json:"generator" yaml:"generator"` // "sma_cross" or "momentum"
	FastPeriod   int     `json:"fast_period" yaml:"fast_period"`
	SlowPeriod   int     `json:"slow_period" yaml:"slow_period"`
	Lookback     int     `json:"lookback" yaml:"lookback"`
	FullStrength float64 `json:"full_strength" yaml:"full_strength"`
	AllowShort   bool    `json:"allow_short" yaml:"allow_short"`
}

// SizingSettings selects and parameterizes a position sizer.
type SizingSettings struct {
	Method string `json:"method" yaml:"method"` // "fixed_fractional", "kelly", "volatility_target", "atr"

	RiskFraction float64 `json:"risk_fraction" yaml:"risk_fraction"`
	StopLossPct  float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	MaxPosition  float64 `json:"max_position" yaml:"max_position"`

	KellyFraction   float64 `json:"kelly_fraction" yaml:"kelly_fraction"`
	KellyMinTrades  int     `json:"kelly_min_trades" yaml:"kelly_min_trades"`
	DefaultFraction float64 `json:"default_fraction" yaml:"default_fraction"`

	TargetVolatility float64 `json:"target_volatility" yaml:"target_volatility"`
	VolatilityWindow int     `json:"volatility_window" yaml:"volatility_window"`
	MaxLeverage      float64 `json:"max_leverage" yaml:"max_leverage"`

	ATRMultiplier float64 `json:"atr_multiplier" yaml:"atr_multiplier"`
}

// MonteCarloSettings parameterizes the resampling run.
type MonteCarloSettings struct {
	Trials int   `json:"trials" yaml:"trials"`
	Seed   int64 `json:"seed" yaml:"seed"`
}

// ExchangeSettings selects the live trading venue. Credentials come from
// BYBIT_API_KEY and BYBIT_API_SECRET.
type ExchangeSettings struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	Testnet  bool   `json:"testnet" yaml:"testnet"`
	Demo     bool   `json:"demo" yaml:"demo"`

	APIKey    string `json:"-" yaml:"-"`
	APISecret string `json:"-" yaml:"-"`
}

// MonitoringSettings holds the HTTP endpoint ports.
type MonitoringSettings struct {
	PrometheusPort int `json:"prometheus_port" yaml:"prometheus_port"`
	HealthPort     int `json:"health_port" yaml:"health_port"`
}

// Default returns a runnable baseline configuration.
func Default() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Backtest: backtest.Config{
			Symbol:           "BTCUSDT",
			InitialCapital:   100000,
			CommissionRate:   0.0005,
			SlippageRate:     0.0002,
			FractionalShares: true,
		},
		Risk: risk.DefaultLimits(),
		Strategy: StrategySettings{
			Generator:  "sma_cross",
			FastPeriod: 10,
			SlowPeriod: 30,
		},
		Sizing: SizingSettings{
			Method:           "fixed_fractional",
			RiskFraction:     0.02,
			StopLossPct:      0.05,
			MaxPosition:      0.20,
			KellyFraction:    sizing.DefaultKellyFraction,
			KellyMinTrades:   30,
			DefaultFraction:  0.02,
			TargetVolatility: 0.15,
			VolatilityWindow: 20,
			MaxLeverage:      2.0,
			ATRMultiplier:    2.0,
		},
		MonteCarlo: MonteCarloSettings{
			Trials: 1000,
			Seed:   backtest.DefaultMonteCarloSeed,
		},
		Exchange: ExchangeSettings{
			Name:     "paper",
			Category: "spot",
			Demo:     true,
		},
		Monitoring: MonitoringSettings{
			PrometheusPort: 8080,
			HealthPort:     8081,
		},
	}
}

// Load reads a config file on top of the defaults. The format follows the
// file extension: .json, .yaml or .yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}

	cfg.loadEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnv pulls exchange credentials from the environment.
func (c *Config) loadEnv() {
	if key := os.Getenv("BYBIT_API_KEY"); key != "" {
		c.Exchange.APIKey = key
	}
	if secret := os.Getenv("BYBIT_API_SECRET"); secret != "" {
		c.Exchange.APISecret = secret
	}
}

// Validate fails fast on any malformed section.
func (c *Config) Validate() error {
	if err := c.Backtest.Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	switch c.Strategy.Generator {
	case "sma_cross", "momentum":
	default:
		return fmt.Errorf("strategy: unknown generator %q", c.Strategy.Generator)
	}
	switch c.Sizing.Method {
	case "fixed_fractional", "kelly", "volatility_target", "atr":
	default:
		return fmt.Errorf("sizing: unknown method %q", c.Sizing.Method)
	}
	if c.MonteCarlo.Trials < 0 {
		return fmt.Errorf("monte_carlo: trials must not be negative, got %d", c.MonteCarlo.Trials)
	}
	return nil
}

// NewGenerator builds the configured signal generator.
func (c *Config) NewGenerator() (strategy.SignalGenerator, error) {
	switch c.Strategy.Generator {
	case "sma_cross":
		return strategy.NewSMACrossGenerator(c.Strategy.FastPeriod, c.Strategy.SlowPeriod, c.Strategy.AllowShort)
	case "momentum":
		return strategy.NewMomentumGenerator(c.Strategy.Lookback, c.Strategy.FullStrength, c.Strategy.AllowShort)
	default:
		return nil, fmt.Errorf("unknown generator %q", c.Strategy.Generator)
	}
}

// NewSizer builds a fresh instance of the configured position sizer. Each
// call returns independent state so walk-forward folds stay isolated.
func (c *Config) NewSizer() (sizing.Sizer, error) {
	s := c.Sizing
	switch s.Method {
	case "fixed_fractional":
		return sizing.NewFixedFractionalSizer(s.RiskFraction, s.StopLossPct, s.MaxPosition), nil
	case "kelly":
		return sizing.NewKellySizer(s.KellyFraction, s.MaxPosition, s.KellyMinTrades, s.DefaultFraction), nil
	case "volatility_target":
		return sizing.NewVolatilityTargetSizer(s.TargetVolatility, s.VolatilityWindow, s.MaxLeverage), nil
	case "atr":
		return sizing.NewATRSizer(s.ATRMultiplier, s.RiskFraction, s.MaxPosition), nil
	default:
		return nil, fmt.Errorf("unknown sizing method %q", s.Method)
	}
}
