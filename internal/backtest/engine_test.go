package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/quant-backtest/internal/sizing"
	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

var barStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// makeBars builds a daily bar series from close prices.
func makeBars(closes ...float64) []types.OHLCV {
	bars := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = types.OHLCV{
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
			Timestamp: barStart.AddDate(0, 0, i),
		}
	}
	return bars
}

// testConfig is a frictionless baseline the cost tests override.
func testConfig() Config {
	return Config{
		Symbol:           "TEST",
		InitialCapital:   100000,
		CommissionRate:   0,
		SlippageRate:     0,
		AllowShorting:    true,
		FractionalShares: true,
	}
}

// allInSizer invests the whole available capital, scaled by conviction.
func allInSizer() sizing.Sizer {
	return sizing.NewFixedFractionalSizer(0.05, 0.05, 1.0)
}

func TestEngine_FirstBarEqualsInitialCapital(t *testing.T) {
	engine := NewEngine(testConfig(), allInSizer())

	result, err := engine.Run(makeBars(100, 101, 102), []float64{1, 1, 1})
	require.NoError(t, err)

	assert.InDelta(t, 100000.0, result.EquityCurve[0].Equity, 1e-9)
	// signal never changes, so no trade ever executes
	assert.Empty(t, result.Trades)
	assert.InDelta(t, 100000.0, result.EndBalance, 1e-9)
}

func TestEngine_LongRoundTrip(t *testing.T) {
	engine := NewEngine(testConfig(), allInSizer())

	bars := makeBars(100, 100, 110, 110, 110)
	signals := []float64{0, 1, 1, 0, 0}

	result, err := engine.Run(bars, signals)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, "long", trade.Side)
	assert.InDelta(t, 100.0, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 110.0, trade.ExitPrice, 1e-9)
	assert.InDelta(t, 1000.0, trade.Quantity, 1e-9)
	assert.InDelta(t, 10000.0, trade.PnL, 1e-9)
	assert.InDelta(t, 0.10, trade.PnLPct, 1e-9)
	assert.Equal(t, 2, trade.HoldingPeriod)

	assert.InDelta(t, 110000.0, result.EndBalance, 1e-9)
}

func TestEngine_ShortRoundTrip(t *testing.T) {
	engine := NewEngine(testConfig(), allInSizer())

	bars := makeBars(100, 100, 90, 90)
	signals := []float64{0, -1, -1, 0}

	result, err := engine.Run(bars, signals)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, "short", trade.Side)
	assert.InDelta(t, 10000.0, trade.PnL, 1e-9)
	assert.InDelta(t, 110000.0, result.EndBalance, 1e-9)
}

func TestEngine_ShortingDisallowedSkipsEntry(t *testing.T) {
	config := testConfig()
	config.AllowShorting = false
	engine := NewEngine(config, allInSizer())

	result, err := engine.Run(makeBars(100, 100, 90, 90), []float64{0, -1, -1, 0})
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	assert.InDelta(t, 100000.0, result.EndBalance, 1e-9)
}

func TestEngine_WholeSharesTruncated(t *testing.T) {
	config := testConfig()
	config.FractionalShares = false
	engine := NewEngine(config, allInSizer())

	// 100000 / 333 = 300.3 shares, truncated to 300
	result, err := engine.Run(makeBars(333, 333, 333), []float64{0, 1, 1})
	require.NoError(t, err)

	require.Len(t, result.Positions, 3)
	assert.InDelta(t, 300.0, result.Positions[1].Shares, 1e-9)
}

func TestEngine_CommissionChargedOnBothLegs(t *testing.T) {
	config := testConfig()
	config.CommissionRate = 0.001
	engine := NewEngine(config, allInSizer())

	bars := makeBars(100, 100, 100, 100)
	signals := []float64{0, 1, 1, 0}

	result, err := engine.Run(bars, signals)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	// flat price: the only P&L is the commission on entry and exit
	assert.InDelta(t, -trade.Commission, trade.PnL, 1e-9)
	assert.Greater(t, trade.Commission, 0.0)
	assert.InDelta(t, 100000.0-trade.Commission, result.EndBalance, 1e-9)
}

func TestEngine_SlippageIsDirectional(t *testing.T) {
	config := testConfig()
	config.SlippageRate = 0.001
	engine := NewEngine(config, allInSizer())

	bars := makeBars(100, 100, 100, 100)
	signals := []float64{0, 1, 1, 0}

	result, err := engine.Run(bars, signals)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	// buying pays up, selling pays down
	assert.InDelta(t, 100.1, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 99.9, trade.ExitPrice, 1e-9)
	assert.Less(t, trade.PnL, 0.0)
}

func TestEngine_AccountingIdentityEveryBar(t *testing.T) {
	engine := NewEngine(testConfig(), allInSizer())

	bars := makeBars(100, 102, 99, 104, 101, 97, 103, 100)
	signals := []float64{0, 1, 1, -1, -1, 0, 1, 0}

	result, err := engine.Run(bars, signals)
	require.NoError(t, err)

	for i, state := range result.Positions {
		expected := state.Cash + state.Shares*bars[i].Close
		assert.InDelta(t, expected, state.Equity, 1e-9, "bar %d", i)
	}
}

func TestEngine_NoTradeRunIsNeutral(t *testing.T) {
	engine := NewEngine(testConfig(), allInSizer())

	bars := makeBars(100, 105, 95, 110, 90)
	signals := make([]float64, len(bars))

	result, err := engine.Run(bars, signals)
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	assert.Zero(t, result.Metrics.WinRate)
	assert.Zero(t, result.Metrics.TotalReturn)
	assert.InDelta(t, 100000.0, result.EndBalance, 1e-9)
}

func TestEngine_RejectsMalformedInput(t *testing.T) {
	engine := NewEngine(testConfig(), allInSizer())

	// misaligned signal series
	_, err := engine.Run(makeBars(100, 101), []float64{1})
	assert.Error(t, err)

	// non-monotonic timestamps
	bars := makeBars(100, 101)
	bars[1].Timestamp = bars[0].Timestamp
	_, err = engine.Run(bars, []float64{0, 0})
	assert.Error(t, err)

	// bad config fails before any simulation work
	config := testConfig()
	config.InitialCapital = -1
	_, err = NewEngine(config, allInSizer()).Run(makeBars(100, 101), []float64{0, 0})
	assert.Error(t, err)
}

func TestEngine_KellySizerLearnsFromClosedTrades(t *testing.T) {
	kelly := sizing.NewKellySizer(sizing.DefaultKellyFraction, 0.25, 3, 0.02)
	engine := NewEngine(testConfig(), kelly)

	bars := makeBars(100, 100, 110, 110, 120, 120, 130, 130)
	signals := []float64{0, 1, 0, 1, 0, 1, 0, 0}

	_, err := engine.Run(bars, signals)
	require.NoError(t, err)

	// three profitable round trips were fed back into the sizer
	assert.Equal(t, 3, kelly.TradeCount())
}

func TestEngine_SignalFlipReversesInOneBar(t *testing.T) {
	engine := NewEngine(testConfig(), allInSizer())

	bars := makeBars(100, 100, 110, 105, 105)
	signals := []float64{0, 1, -1, -1, 0}

	result, err := engine.Run(bars, signals)
	require.NoError(t, err)

	// long closed at the flip bar, short opened the same bar
	require.Len(t, result.Trades, 2)
	assert.Equal(t, "long", result.Trades[0].Side)
	assert.Equal(t, "short", result.Trades[1].Side)
	assert.Equal(t, 1, result.Trades[0].HoldingPeriod)
}
