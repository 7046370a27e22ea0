package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

func barsFromCloses(closes ...float64) []types.OHLCV {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = types.OHLCV{
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
			Timestamp: start.AddDate(0, 0, i),
		}
	}
	return bars
}

func TestNewSMACrossGenerator_RejectsMalformedPeriods(t *testing.T) {
	_, err := NewSMACrossGenerator(0, 5, false)
	assert.Error(t, err)

	_, err = NewSMACrossGenerator(5, 5, false)
	assert.Error(t, err)

	_, err = NewSMACrossGenerator(10, 5, false)
	assert.Error(t, err)
}

func TestSMACross_WarmupIsFlat(t *testing.T) {
	gen, err := NewSMACrossGenerator(2, 4, true)
	require.NoError(t, err)

	signals, err := gen.Generate(barsFromCloses(100, 101, 102, 103, 104, 105))
	require.NoError(t, err)
	require.Len(t, signals, 6)

	for i := 0; i < 3; i++ {
		assert.Zero(t, signals[i], "bar %d is inside warmup", i)
	}
}

func TestSMACross_RisingSeriesGoesLong(t *testing.T) {
	gen, err := NewSMACrossGenerator(2, 4, true)
	require.NoError(t, err)

	signals, err := gen.Generate(barsFromCloses(100, 102, 104, 106, 108, 110))
	require.NoError(t, err)

	// monotone rise: fast average leads the slow one once warmed up
	for i := 3; i < len(signals); i++ {
		assert.Equal(t, 1.0, signals[i], "bar %d", i)
	}
}

func TestSMACross_FallingSeriesRespectsShortFlag(t *testing.T) {
	closes := []float64{110, 108, 106, 104, 102, 100}

	long, err := NewSMACrossGenerator(2, 4, false)
	require.NoError(t, err)
	signals, err := long.Generate(barsFromCloses(closes...))
	require.NoError(t, err)
	for i := 3; i < len(signals); i++ {
		assert.Zero(t, signals[i], "long-only bar %d", i)
	}

	short, err := NewSMACrossGenerator(2, 4, true)
	require.NoError(t, err)
	signals, err = short.Generate(barsFromCloses(closes...))
	require.NoError(t, err)
	for i := 3; i < len(signals); i++ {
		assert.Equal(t, -1.0, signals[i], "shortable bar %d", i)
	}
}

func TestSMACross_EmptyInput(t *testing.T) {
	gen, err := NewSMACrossGenerator(2, 4, false)
	require.NoError(t, err)

	_, err = gen.Generate(nil)
	assert.Error(t, err)
}

func TestMomentum_ConvictionScalesWithRateOfChange(t *testing.T) {
	gen, err := NewMomentumGenerator(1, 0.10, true)
	require.NoError(t, err)

	signals, err := gen.Generate(barsFromCloses(100, 105, 105, 115.5))
	require.NoError(t, err)
	require.Len(t, signals, 4)

	assert.Zero(t, signals[0])
	assert.InDelta(t, 0.5, signals[1], 1e-9)  // +5% against a 10% saturation
	assert.Zero(t, signals[2])                // flat bar
	assert.InDelta(t, 1.0, signals[3], 1e-9)  // +10%, saturated
}

func TestMomentum_ShortFlagGatesNegativeSignals(t *testing.T) {
	closes := []float64{100, 95, 90}

	longOnly, err := NewMomentumGenerator(1, 0.10, false)
	require.NoError(t, err)
	signals, err := longOnly.Generate(barsFromCloses(closes...))
	require.NoError(t, err)
	assert.Zero(t, signals[1])
	assert.Zero(t, signals[2])

	shortable, err := NewMomentumGenerator(1, 0.10, true)
	require.NoError(t, err)
	signals, err = shortable.Generate(barsFromCloses(closes...))
	require.NoError(t, err)
	assert.InDelta(t, -0.5, signals[1], 1e-9)
}
