package sizing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

func TestFixedFractional_FullPosition(t *testing.T) {
	sizer := NewFixedFractionalSizer(0.01, 0.05, 0.50)

	size := sizer.CalculateSize(100000, 50, 1.0)

	// 1% risk with a 5% stop = 20% of capital
	assert.Equal(t, PositionFull, size.Type)
	assert.InDelta(t, 20000.0, size.Value, 1e-9)
	assert.InDelta(t, 400.0, size.Shares, 1e-9)
	assert.InDelta(t, 0.20, size.Weight, 1e-9)
	assert.Empty(t, size.Reason)
}

func TestFixedFractional_CappedAtMaxPosition(t *testing.T) {
	sizer := NewFixedFractionalSizer(0.02, 0.02, 0.10)

	size := sizer.CalculateSize(100000, 100, 1.0)

	// uncapped value would be 100% of capital; cap binds at 10%
	assert.Equal(t, PositionReduced, size.Type)
	assert.InDelta(t, 10000.0, size.Value, 1e-9)
	assert.NotEmpty(t, size.Reason)
}

func TestFixedFractional_SignalStrengthScalesSize(t *testing.T) {
	sizer := NewFixedFractionalSizer(0.01, 0.05, 1.0)

	full := sizer.CalculateSize(100000, 50, 1.0)
	half := sizer.CalculateSize(100000, 50, 0.5)

	assert.InDelta(t, full.Value/2, half.Value, 1e-9)
}

func TestFixedFractional_InvalidInputs(t *testing.T) {
	sizer := NewFixedFractionalSizer(0.01, 0.05, 0.50)

	assert.Equal(t, PositionRejected, sizer.CalculateSize(0, 50, 1.0).Type)
	assert.Equal(t, PositionRejected, sizer.CalculateSize(100000, 0, 1.0).Type)
	assert.Equal(t, PositionRejected, sizer.CalculateSize(100000, 50, 0).Type)
}

func TestKelly_RejectsAfterAllLosses(t *testing.T) {
	sizer := NewKellySizer(DefaultKellyFraction, 0.25, 10, 0.02)

	for i := 0; i < 10; i++ {
		sizer.UpdateStats(-100)
	}

	size := sizer.CalculateSize(100000, 50, 1.0)

	assert.Equal(t, PositionRejected, size.Type)
	assert.Zero(t, size.Shares)
	assert.NotEmpty(t, size.Reason)
}

func TestKelly_DefaultFractionBeforeMinTrades(t *testing.T) {
	sizer := NewKellySizer(DefaultKellyFraction, 0.25, 20, 0.02)

	sizer.UpdateStats(100)
	sizer.UpdateStats(-50)

	size := sizer.CalculateSize(100000, 50, 1.0)

	assert.Equal(t, PositionReduced, size.Type)
	assert.InDelta(t, 2000.0, size.Value, 1e-9)
	assert.Contains(t, size.Reason, "insufficient history")
}

func TestKelly_PositiveEdgeProducesPosition(t *testing.T) {
	sizer := NewKellySizer(0.5, 0.25, 10, 0.02)

	// 60% win rate, 2:1 win/loss ratio: kelly = 0.6 - 0.4/2 = 0.4
	for i := 0; i < 6; i++ {
		sizer.UpdateStats(200)
	}
	for i := 0; i < 4; i++ {
		sizer.UpdateStats(-100)
	}

	size := sizer.CalculateSize(100000, 50, 1.0)

	// half-Kelly 0.20 is below the 0.25 cap
	require.Equal(t, PositionFull, size.Type)
	assert.InDelta(t, 20000.0, size.Value, 1e-6)
}

func TestKelly_CapBinds(t *testing.T) {
	sizer := NewKellySizer(1.0, 0.10, 10, 0.02)

	for i := 0; i < 8; i++ {
		sizer.UpdateStats(300)
	}
	for i := 0; i < 2; i++ {
		sizer.UpdateStats(-100)
	}

	size := sizer.CalculateSize(100000, 50, 1.0)

	assert.Equal(t, PositionReduced, size.Type)
	assert.InDelta(t, 10000.0, size.Value, 1e-6)
}

func TestVolatilityTarget_ScalesInverselyWithVol(t *testing.T) {
	calm := NewVolatilityTargetSizer(0.15, 20, 3.0)
	wild := NewVolatilityTargetSizer(0.15, 20, 3.0)

	for i := 0; i < 20; i++ {
		sign := 1.0
		if i%2 == 0 {
			sign = -1.0
		}
		calm.AddReturn(sign * 0.002)
		wild.AddReturn(sign * 0.03)
	}

	calmSize := calm.CalculateSize(100000, 50, 1.0)
	wildSize := wild.CalculateSize(100000, 50, 1.0)

	assert.Greater(t, calmSize.Value, wildSize.Value)
}

func TestVolatilityTarget_LeverageCap(t *testing.T) {
	sizer := NewVolatilityTargetSizer(0.50, 20, 2.0)

	// near-zero volatility would imply enormous leverage
	for i := 0; i < 20; i++ {
		sizer.AddReturn(0.00001)
	}

	size := sizer.CalculateSize(100000, 50, 1.0)

	assert.Equal(t, PositionReduced, size.Type)
	assert.InDelta(t, 200000.0, size.Value, 1e-6)
}

func TestVolatilityTarget_FloorsZeroVolatility(t *testing.T) {
	sizer := NewVolatilityTargetSizer(0.15, 20, 10.0)

	for i := 0; i < 20; i++ {
		sizer.AddReturn(0)
	}

	// must not divide by zero; the leverage cap bounds the result
	size := sizer.CalculateSize(100000, 50, 1.0)
	assert.LessOrEqual(t, size.Value, 100000.0*10.0+1e-6)
}

func TestATRSizer_SizesFromStopDistance(t *testing.T) {
	sizer := NewATRSizer(2.0, 0.01, 1.0)
	sizer.SetATR(2.5)

	size := sizer.CalculateSize(100000, 100, 1.0)

	// risk 1000 over a 5.0 stop distance = 200 shares
	assert.Equal(t, PositionFull, size.Type)
	assert.InDelta(t, 200.0, size.Shares, 1e-9)
	assert.InDelta(t, 20000.0, size.Value, 1e-9)
}

func TestATRSizer_RejectsWithoutATR(t *testing.T) {
	sizer := NewATRSizer(2.0, 0.01, 1.0)

	size := sizer.CalculateSize(100000, 100, 1.0)

	assert.Equal(t, PositionRejected, size.Type)
}

func TestATRSizer_Cap(t *testing.T) {
	sizer := NewATRSizer(1.0, 0.05, 0.10)
	sizer.SetATR(0.5)

	size := sizer.CalculateSize(100000, 100, 1.0)

	assert.Equal(t, PositionReduced, size.Type)
	assert.InDelta(t, 10000.0, size.Value, 1e-9)
}

func TestComputeATR(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, 0, 15)
	for i := 0; i < 15; i++ {
		bars = append(bars, types.OHLCV{
			Open:      100,
			High:      102,
			Low:       98,
			Close:     100,
			Volume:    1000,
			Timestamp: base.AddDate(0, 0, i),
		})
	}

	atr := ComputeATR(bars, 14)
	assert.InDelta(t, 4.0, atr, 1e-9)

	assert.Zero(t, ComputeATR(bars[:5], 14))
}

func TestRiskParity_WeightsFavorLowVolAsset(t *testing.T) {
	sizer := NewRiskParitySizer(0.10, 3.0)

	returns := map[string][]float64{
		"CALM": alternating(0.005, 30),
		"WILD": alternating(0.03, 30),
	}

	weights, err := sizer.ComputeWeights(returns)
	require.NoError(t, err)

	assert.Greater(t, weights["CALM"], weights["WILD"])
	assert.InDelta(t, 1.0, weights["CALM"]+weights["WILD"], 1e-9)

	size := sizer.CalculateSizeFor("CALM", 100000, 50, 1.0)
	assert.Equal(t, PositionFull, size.Type)
	assert.Greater(t, size.Value, 0.0)
}

func TestRiskParity_UnknownSymbolRejected(t *testing.T) {
	sizer := NewRiskParitySizer(0.10, 3.0)

	_, err := sizer.ComputeWeights(map[string][]float64{"AAA": alternating(0.01, 30)})
	require.NoError(t, err)

	size := sizer.CalculateSizeFor("BBB", 100000, 50, 1.0)
	assert.Equal(t, PositionRejected, size.Type)
}

func TestRiskParity_NoHistory(t *testing.T) {
	sizer := NewRiskParitySizer(0.10, 3.0)

	_, err := sizer.ComputeWeights(map[string][]float64{"AAA": {0.01}})
	assert.Error(t, err)
}

// alternating builds a +x/-x return series of length n.
func alternating(x float64, n int) []float64 {
	rets := make([]float64, n)
	for i := range rets {
		rets[i] = x
		if i%2 == 0 {
			rets[i] = -x
		}
	}
	return rets
}
