package main

import (
	"flag"
	"fmt"
	"strings"
)

// BacktestFlags holds all command line flags for the backtest command
type BacktestFlags struct {
	// Configuration
	ConfigFile *string
	EnvFile    *string

	// Data selection
	DataFile  *string
	DataFiles *string // comma-separated symbol=path pairs for multi-asset runs
	Symbol    *string
	Period    *int // trailing window in days, 0 keeps everything

	// Run mode
	Mode    *string // single, walkforward, montecarlo, multi
	Workers *int

	// Walk-forward overrides
	WFTrainBars *int
	WFTestBars  *int
	WFRollBars  *int

	// Monte Carlo overrides
	MCTrials *int
	MCSeed   *int64

	// Multi-asset weights
	Weights *string // comma-separated symbol=weight pairs

	// Output options
	OutputFormat *string // console, json, csv, xlsx
	OutputFile   *string
	Verbose      *bool

	ShowVersion *bool
}

// NewBacktestFlags creates and registers all command line flags
func NewBacktestFlags() *BacktestFlags {
	return &BacktestFlags{
		ConfigFile: flag.String("config", "", "Path to JSON or YAML configuration file"),
		EnvFile:    flag.String("env", ".env", "Path to environment file"),

		DataFile:  flag.String("data", "", "Path to OHLCV CSV file"),
		DataFiles: flag.String("data-files", "", "Comma-separated SYMBOL=path pairs (multi mode)"),
		Symbol:    flag.String("symbol", "", "Trading symbol override"),
		Period:    flag.Int("period", 0, "Trailing window in days (0 = full history)"),

		Mode:    flag.String("mode", "single", "Run mode: single, walkforward, montecarlo, multi"),
		Workers: flag.Int("workers", 4, "Parallel workers for multi-asset runs"),

		WFTrainBars: flag.Int("wf-train", 0, "Walk-forward training window in bars"),
		WFTestBars:  flag.Int("wf-test", 0, "Walk-forward test window in bars"),
		WFRollBars:  flag.Int("wf-roll", 0, "Walk-forward roll step in bars (default: test window)"),

		MCTrials: flag.Int("mc-trials", 0, "Monte Carlo trials override"),
		MCSeed:   flag.Int64("mc-seed", 0, "Monte Carlo seed override"),

		Weights: flag.String("weights", "", "Comma-separated SYMBOL=weight pairs (multi mode)"),

		OutputFormat: flag.String("output", "console", "Output format: console, json, csv, xlsx"),
		OutputFile:   flag.String("output-file", "", "Output file path (json, csv, xlsx)"),
		Verbose:      flag.Bool("verbose", false, "Print the full trade history"),

		ShowVersion: flag.Bool("version", false, "Show version and exit"),
	}
}

// ValidateBacktestFlags checks flag combinations before any work starts
func ValidateBacktestFlags(f *BacktestFlags) error {
	switch *f.Mode {
	case "single", "walkforward", "montecarlo":
		if *f.DataFile == "" {
			return fmt.Errorf("-data is required in %s mode", *f.Mode)
		}
	case "multi":
		if *f.DataFiles == "" {
			return fmt.Errorf("-data-files is required in multi mode")
		}
	default:
		return fmt.Errorf("unknown mode %q (want single, walkforward, montecarlo or multi)", *f.Mode)
	}

	switch *f.OutputFormat {
	case "console":
	case "json", "csv", "xlsx":
		if *f.OutputFile == "" {
			return fmt.Errorf("-output-file is required for %s output", *f.OutputFormat)
		}
	default:
		return fmt.Errorf("unknown output format %q", *f.OutputFormat)
	}

	if *f.Mode == "walkforward" && (*f.WFTrainBars <= 0 || *f.WFTestBars <= 0) {
		return fmt.Errorf("walkforward mode needs -wf-train and -wf-test")
	}
	if *f.Period < 0 {
		return fmt.Errorf("-period must not be negative")
	}
	return nil
}

// parsePairs splits "KEY=value,KEY=value" into an ordered key list and map.
func parsePairs(raw string) ([]string, map[string]string, error) {
	keys := make([]string, 0)
	pairs := make(map[string]string)
	for _, chunk := range strings.Split(raw, ",") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		key, value, found := strings.Cut(chunk, "=")
		if !found || key == "" || value == "" {
			return nil, nil, fmt.Errorf("malformed pair %q (want KEY=value)", chunk)
		}
		if _, dup := pairs[key]; dup {
			return nil, nil, fmt.Errorf("duplicate key %q", key)
		}
		keys = append(keys, key)
		pairs[key] = value
	}
	if len(pairs) == 0 {
		return nil, nil, fmt.Errorf("no pairs in %q", raw)
	}
	return keys, pairs, nil
}
