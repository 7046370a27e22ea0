package reporting

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/quant-backtest/internal/backtest"
)

func sampleResult() *backtest.Result {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	equity := []backtest.EquityPoint{
		{Timestamp: start, Equity: 100000},
		{Timestamp: start.AddDate(0, 0, 1), Equity: 101000},
		{Timestamp: start.AddDate(0, 0, 2), Equity: 102500},
	}
	trades := []backtest.Trade{
		{
			Symbol:     "BTCUSDT",
			Side:       "long",
			EntryTime:  start,
			ExitTime:   start.AddDate(0, 0, 2),
			EntryPrice: 100, ExitPrice: 102.5,
			Quantity: 1000, PnL: 2500, PnLPct: 0.025,
			Commission: 50, HoldingPeriod: 2,
		},
	}
	result := &backtest.Result{
		Symbol:       "BTCUSDT",
		StartBalance: 100000,
		EndBalance:   102500,
		EquityCurve:  equity,
		Trades:       trades,
	}
	result.Metrics = backtest.CalculateMetrics(result.Returns(), equity, trades, nil, 0)
	return result
}

func TestConsoleReporter_RendersSummary(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewConsoleReporter(&buf, true)

	require.NoError(t, reporter.Report(sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "BACKTEST RESULTS: BTCUSDT")
	assert.Contains(t, out, "Final Balance")
	assert.Contains(t, out, "$102500.00")
	assert.Contains(t, out, "TRADE HISTORY")
}

func TestConsoleReporter_MonteCarloWarning(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewConsoleReporter(&buf, false)

	reporter.ReportMonteCarlo(&backtest.MonteCarloSummary{Warning: "insufficient trades"})
	assert.Contains(t, buf.String(), "insufficient trades")
}

func TestJSONReporter_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.json")
	reporter := NewJSONReporter(path)

	require.NoError(t, reporter.Report(sampleResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded backtest.Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "BTCUSDT", decoded.Symbol)
	assert.InDelta(t, 102500.0, decoded.EndBalance, 1e-9)
	assert.Len(t, decoded.Trades, 1)
}

func TestCSVReporter_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	reporter := NewCSVReporter(path)

	require.NoError(t, reporter.Report(sampleResult()))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var rows []tradeRow
	require.NoError(t, gocsv.UnmarshalFile(file, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "BTCUSDT", rows[0].Symbol)
	assert.InDelta(t, 2500.0, rows[0].PnL, 1e-9)
	assert.Equal(t, "2024-01-02 00:00:00", rows[0].EntryTime)
}

func TestExcelReporter_WritesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.xlsx")
	reporter := NewExcelReporter(path)

	require.NoError(t, reporter.Report(sampleResult()))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.ElementsMatch(t, []string{"Trades", "Equity Curve", "Metrics"}, fx.GetSheetList())

	symbol, err := fx.GetCellValue("Trades", "A2")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", symbol)

	metric, err := fx.GetCellValue("Metrics", "A4")
	require.NoError(t, err)
	assert.Equal(t, "Total Return", metric)
}
