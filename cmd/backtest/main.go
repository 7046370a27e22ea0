package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ducminhle1904/quant-backtest/internal/backtest"
	"github.com/ducminhle1904/quant-backtest/internal/sizing"
	"github.com/ducminhle1904/quant-backtest/pkg/config"
	"github.com/ducminhle1904/quant-backtest/pkg/data"
	"github.com/ducminhle1904/quant-backtest/pkg/reporting"
	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

const (
	AppName    = "Quant Backtest"
	AppVersion = "1.0.0"
)

func main() {
	flags := NewBacktestFlags()
	flag.Parse()

	if *flags.ShowVersion {
		fmt.Printf("%s v%s\n", AppName, AppVersion)
		return
	}

	if err := ValidateBacktestFlags(flags); err != nil {
		log.Fatalf("❌ Flag validation error: %v", err)
	}

	printHeader()
	loadEnvironment(*flags.EnvFile)

	cfg := loadConfig(flags)

	switch *flags.Mode {
	case "single":
		runSingle(cfg, flags)
	case "walkforward":
		runWalkForward(cfg, flags)
	case "montecarlo":
		runMonteCarlo(cfg, flags)
	case "multi":
		runMultiAsset(cfg, flags)
	}
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

func loadConfig(flags *BacktestFlags) *config.Config {
	cfg := config.Default()
	if *flags.ConfigFile != "" {
		loaded, err := config.Load(*flags.ConfigFile)
		if err != nil {
			log.Fatalf("❌ Failed to load config: %v", err)
		}
		cfg = loaded
		fmt.Printf("⚙️  Configuration loaded from %s\n", *flags.ConfigFile)
	}

	// Flag overrides win over the file.
	if *flags.Symbol != "" {
		cfg.Backtest.Symbol = *flags.Symbol
	}
	if *flags.WFTrainBars > 0 {
		cfg.WalkForward.TrainBars = *flags.WFTrainBars
	}
	if *flags.WFTestBars > 0 {
		cfg.WalkForward.TestBars = *flags.WFTestBars
	}
	if *flags.WFRollBars > 0 {
		cfg.WalkForward.RollBars = *flags.WFRollBars
	}
	if *flags.MCTrials > 0 {
		cfg.MonteCarlo.Trials = *flags.MCTrials
	}
	if *flags.MCSeed != 0 {
		cfg.MonteCarlo.Seed = *flags.MCSeed
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	return cfg
}

// loadSeries loads one CSV file and turns it into bars plus signals.
func loadSeries(cfg *config.Config, path string, periodDays int) ([]types.OHLCV, []float64) {
	provider := data.NewCSVProvider(0)
	bars, err := provider.Load(path)
	if err != nil {
		log.Fatalf("❌ Failed to load data: %v", err)
	}
	if periodDays > 0 {
		bars = data.FilterTrailingPeriod(bars, periodDays)
	}
	fmt.Printf("📊 Loaded %d bars from %s\n", len(bars), path)

	generator, err := cfg.NewGenerator()
	if err != nil {
		log.Fatalf("❌ Failed to build strategy: %v", err)
	}
	signals, err := generator.Generate(bars)
	if err != nil {
		log.Fatalf("❌ Signal generation failed: %v", err)
	}
	fmt.Printf("📈 Strategy: %s\n", generator.GetName())
	return bars, signals
}

func sizerFactory(cfg *config.Config) func() sizing.Sizer {
	if _, err := cfg.NewSizer(); err != nil {
		log.Fatalf("❌ Failed to build position sizer: %v", err)
	}
	return func() sizing.Sizer {
		sizer, err := cfg.NewSizer()
		if err != nil {
			log.Fatalf("❌ Failed to build position sizer: %v", err)
		}
		return sizer
	}
}

func newReporter(flags *BacktestFlags) reporting.Reporter {
	switch *flags.OutputFormat {
	case "json":
		return reporting.NewJSONReporter(*flags.OutputFile)
	case "csv":
		return reporting.NewCSVReporter(*flags.OutputFile)
	case "xlsx":
		return reporting.NewExcelReporter(*flags.OutputFile)
	default:
		return reporting.NewConsoleReporter(os.Stdout, *flags.Verbose)
	}
}

func runSingle(cfg *config.Config, flags *BacktestFlags) *backtest.Result {
	bars, signals := loadSeries(cfg, *flags.DataFile, *flags.Period)

	engine := backtest.NewEngine(cfg.Backtest, sizerFactory(cfg)())
	result, err := engine.Run(bars, signals)
	if err != nil {
		log.Fatalf("❌ Backtest failed: %v", err)
	}

	if err := newReporter(flags).Report(result); err != nil {
		log.Fatalf("❌ Failed to write report: %v", err)
	}
	if *flags.OutputFormat != "console" {
		fmt.Printf("💾 Report written to %s\n", *flags.OutputFile)
	}
	return result
}

func runWalkForward(cfg *config.Config, flags *BacktestFlags) {
	bars, signals := loadSeries(cfg, *flags.DataFile, *flags.Period)

	windows, err := backtest.RunWalkForward(cfg.Backtest, sizerFactory(cfg), bars, signals, cfg.WalkForward)
	if err != nil {
		log.Fatalf("❌ Walk-forward analysis failed: %v", err)
	}
	if len(windows) == 0 {
		log.Fatalf("❌ Data too short for a single walk-forward fold (train %d + test %d bars)",
			cfg.WalkForward.TrainBars, cfg.WalkForward.TestBars)
	}

	reporting.NewConsoleReporter(os.Stdout, *flags.Verbose).ReportWalkForward(windows)
}

func runMonteCarlo(cfg *config.Config, flags *BacktestFlags) {
	result := runSingle(cfg, flags)

	summary := backtest.RunMonteCarlo(result, cfg.MonteCarlo.Trials, cfg.MonteCarlo.Seed)
	reporting.NewConsoleReporter(os.Stdout, *flags.Verbose).ReportMonteCarlo(summary)
}

func runMultiAsset(cfg *config.Config, flags *BacktestFlags) {
	symbols, files, err := parsePairs(*flags.DataFiles)
	if err != nil {
		log.Fatalf("❌ Bad -data-files value: %v", err)
	}

	weights := map[string]float64{}
	if *flags.Weights != "" {
		_, raw, err := parsePairs(*flags.Weights)
		if err != nil {
			log.Fatalf("❌ Bad -weights value: %v", err)
		}
		for symbol, value := range raw {
			weight, err := strconv.ParseFloat(value, 64)
			if err != nil {
				log.Fatalf("❌ Bad weight for %s: %v", symbol, err)
			}
			weights[symbol] = weight
		}
	}

	assets := make([]backtest.AssetSeries, 0, len(symbols))
	for _, symbol := range symbols {
		assetCfg := *cfg
		assetCfg.Backtest.Symbol = symbol
		bars, signals := loadSeries(&assetCfg, files[symbol], *flags.Period)
		assets = append(assets, backtest.AssetSeries{
			Symbol:  symbol,
			Bars:    bars,
			Signals: signals,
			Weight:  weights[symbol],
		})
	}

	combined, err := backtest.RunMultiAsset(cfg.Backtest, sizerFactory(cfg), assets, *flags.Workers)
	if err != nil {
		log.Fatalf("❌ Multi-asset backtest failed: %v", err)
	}

	if err := newReporter(flags).Report(portfolioResult(cfg, combined)); err != nil {
		log.Fatalf("❌ Failed to write report: %v", err)
	}
	if *flags.OutputFormat != "console" {
		fmt.Printf("💾 Report written to %s\n", *flags.OutputFile)
	}
}

// portfolioResult reshapes a combined multi-asset run into the single-run
// form the reporters consume.
func portfolioResult(cfg *config.Config, combined *backtest.MultiAssetResult) *backtest.Result {
	endBalance := cfg.Backtest.InitialCapital
	if len(combined.EquityCurve) > 0 {
		endBalance = combined.EquityCurve[len(combined.EquityCurve)-1].Equity
	}
	return &backtest.Result{
		Symbol:       "PORTFOLIO",
		StartBalance: cfg.Backtest.InitialCapital,
		EndBalance:   endBalance,
		EquityCurve:  combined.EquityCurve,
		Trades:       combined.Trades,
		Metrics:      combined.Metrics,
	}
}
