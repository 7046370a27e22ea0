package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ducminhle1904/quant-backtest/internal/broker"
	"github.com/ducminhle1904/quant-backtest/internal/live"
	"github.com/ducminhle1904/quant-backtest/internal/monitoring"
	"github.com/ducminhle1904/quant-backtest/internal/risk"
	"github.com/ducminhle1904/quant-backtest/pkg/config"
)

const (
	AppName    = "Live Simulator"
	AppVersion = "1.0.0"

	defaultPollInterval = 60 * time.Second
	defaultLookback     = 200
)

func main() {
	configFile := flag.String("config", "", "Path to JSON or YAML configuration file")
	envFile := flag.String("env", ".env", "Path to environment file")
	symbol := flag.String("symbol", "", "Trading symbol override")
	interval := flag.Duration("interval", defaultPollInterval, "Polling interval")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", AppName, AppVersion)
		return
	}

	printHeader()
	loadEnvironment(*envFile)

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Fatalf("❌ Failed to load config: %v", err)
		}
		cfg = loaded
		fmt.Printf("⚙️  Configuration loaded from %s\n", *configFile)
	}
	if *symbol != "" {
		cfg.Backtest.Symbol = *symbol
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	b, err := buildBroker(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to build broker: %v", err)
	}
	fmt.Printf("🏦 Broker: %s\n", b.GetName())

	generator, err := cfg.NewGenerator()
	if err != nil {
		log.Fatalf("❌ Failed to build strategy: %v", err)
	}
	sizer, err := cfg.NewSizer()
	if err != nil {
		log.Fatalf("❌ Failed to build position sizer: %v", err)
	}
	riskManager, err := risk.NewManager(cfg.Risk, cfg.Backtest.InitialCapital)
	if err != nil {
		log.Fatalf("❌ Failed to build risk manager: %v", err)
	}

	health := monitoring.NewHealthChecker()
	startMonitoring(cfg, health, logger)

	runner, err := live.NewRunner(live.Config{
		Symbol:       cfg.Backtest.Symbol,
		PollInterval: *interval,
		Lookback:     defaultLookback,
		MaxRetries:   3,
		RetryBackoff: 2 * time.Second,
	}, b, generator, sizer, riskManager, health, logger)
	if err != nil {
		log.Fatalf("❌ Failed to build runner: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("📈 Strategy: %s | Symbol: %s | Interval: %s\n",
		generator.GetName(), cfg.Backtest.Symbol, *interval)
	fmt.Println("🟢 Running. Ctrl+C to stop.")

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("❌ Runner stopped: %v", err)
	}
	fmt.Println("👋 Shutdown complete")
}

func printHeader() {
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("🚀 %s v%s\n", AppName, AppVersion)
	fmt.Println(strings.Repeat("=", 50))
}

func loadEnvironment(envFile string) {
	if err := godotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("⚠️  Failed to load %s: %v", envFile, err)
		}
		return
	}
	fmt.Printf("📁 Environment loaded from %s\n", envFile)
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

// buildBroker wires the configured venue. Paper mode still quotes off the
// exchange so simulated fills track real prices.
func buildBroker(cfg *config.Config) (broker.Broker, error) {
	bybit := broker.NewBybitBroker(broker.BybitConfig{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Category:  cfg.Exchange.Category,
		Testnet:   cfg.Exchange.Testnet,
		Demo:      cfg.Exchange.Demo,
	})

	switch cfg.Exchange.Name {
	case "bybit":
		if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" {
			return nil, fmt.Errorf("bybit broker needs BYBIT_API_KEY and BYBIT_API_SECRET")
		}
		return bybit, nil
	case "paper", "":
		paper, err := broker.NewPaperBroker(cfg.Backtest.InitialCapital,
			cfg.Backtest.CommissionRate, cfg.Backtest.SlippageRate)
		if err != nil {
			return nil, err
		}
		return &quotedPaperBroker{paper: paper, quotes: bybit}, nil
	default:
		return nil, fmt.Errorf("unknown exchange %q", cfg.Exchange.Name)
	}
}

// quotedPaperBroker fills orders on the paper book at prices pulled from the
// real exchange ticker.
type quotedPaperBroker struct {
	paper  *broker.PaperBroker
	quotes broker.Broker
}

func (b *quotedPaperBroker) GetName() string {
	return fmt.Sprintf("paper (%s quotes)", b.quotes.GetName())
}

func (b *quotedPaperBroker) GetPrice(ctx context.Context, symbol string) (float64, error) {
	price, err := b.quotes.GetPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	b.paper.UpdatePrice(symbol, price)
	return price, nil
}

func (b *quotedPaperBroker) PlaceMarketOrder(ctx context.Context, symbol string, side broker.OrderSide, quantity float64) (*broker.Order, error) {
	return b.paper.PlaceMarketOrder(ctx, symbol, side, quantity)
}

func (b *quotedPaperBroker) PlaceLimitOrder(ctx context.Context, symbol string, side broker.OrderSide, quantity, limitPrice float64) (*broker.Order, error) {
	return b.paper.PlaceLimitOrder(ctx, symbol, side, quantity, limitPrice)
}

func (b *quotedPaperBroker) PlaceStopOrder(ctx context.Context, symbol string, side broker.OrderSide, quantity, stopPrice float64) (*broker.Order, error) {
	return b.paper.PlaceStopOrder(ctx, symbol, side, quantity, stopPrice)
}

func (b *quotedPaperBroker) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return b.paper.CancelOrder(ctx, symbol, orderID)
}

func (b *quotedPaperBroker) GetPositions(ctx context.Context) (map[string]float64, error) {
	return b.paper.GetPositions(ctx)
}

func (b *quotedPaperBroker) GetBalance(ctx context.Context) (float64, error) {
	return b.paper.GetBalance(ctx)
}

func (b *quotedPaperBroker) GetAccount(ctx context.Context) (*broker.Account, error) {
	return b.paper.GetAccount(ctx)
}

func startMonitoring(cfg *config.Config, health *monitoring.HealthChecker, logger *logrus.Logger) {
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", monitoring.NewMetricsHandler())
		logger.WithField("addr", addr).Info("Metrics endpoint listening")
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.WithError(err).Error("Metrics server stopped")
		}
	}()
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.HealthPort)
		mux := http.NewServeMux()
		mux.Handle("/health", health)
		logger.WithField("addr", addr).Info("Health endpoint listening")
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.WithError(err).Error("Health server stopped")
		}
	}()
}
