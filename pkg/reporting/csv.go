package reporting

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/ducminhle1904/quant-backtest/internal/backtest"
)

// tradeRow is the flat CSV projection of one trade.
type tradeRow struct {
	Symbol        string  `csv:"symbol"`
	Side          string  `csv:"side"`
	EntryTime     string  `csv:"entry_time"`
	ExitTime      string  `csv:"exit_time"`
	EntryPrice    float64 `csv:"entry_price"`
	ExitPrice     float64 `csv:"exit_price"`
	Quantity      float64 `csv:"quantity"`
	PnL           float64 `csv:"pnl"`
	PnLPct        float64 `csv:"pnl_pct"`
	Commission    float64 `csv:"commission"`
	HoldingPeriod int     `csv:"holding_period"`
}

const csvTimeFormat = "2006-01-02 15:04:05"

// CSVReporter writes the trade ledger as a CSV file.
type CSVReporter struct {
	path string
}

func NewCSVReporter(path string) *CSVReporter {
	return &CSVReporter{path: path}
}

func (r *CSVReporter) Report(result *backtest.Result) error {
	if err := ensureDir(r.path); err != nil {
		return err
	}

	rows := make([]tradeRow, len(result.Trades))
	for i, trade := range result.Trades {
		rows[i] = tradeRow{
			Symbol:        trade.Symbol,
			Side:          trade.Side,
			EntryTime:     trade.EntryTime.Format(csvTimeFormat),
			ExitTime:      trade.ExitTime.Format(csvTimeFormat),
			EntryPrice:    trade.EntryPrice,
			ExitPrice:     trade.ExitPrice,
			Quantity:      trade.Quantity,
			PnL:           trade.PnL,
			PnLPct:        trade.PnLPct,
			Commission:    trade.Commission,
			HoldingPeriod: trade.HoldingPeriod,
		}
	}

	file, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", r.path, err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write trades CSV: %w", err)
	}
	return nil
}
