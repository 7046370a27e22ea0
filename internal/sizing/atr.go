package sizing

import (
	"fmt"
	"math"

	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

// ATRSizer sizes positions so a stop placed atrMultiplier ATRs away risks a
// fixed fraction of capital. The current ATR is fed in by the caller, either
// directly or from a bar window through ComputeATR.
type ATRSizer struct {
	atrMultiplier float64
	riskPerTrade  float64 // fraction of capital risked if the stop is hit
	maxPosition   float64 // cap on position value as a fraction of capital

	atr float64
}

// NewATRSizer creates an ATR-based sizer.
func NewATRSizer(atrMultiplier, riskPerTrade, maxPosition float64) *ATRSizer {
	return &ATRSizer{
		atrMultiplier: atrMultiplier,
		riskPerTrade:  riskPerTrade,
		maxPosition:   maxPosition,
	}
}

// SetATR updates the current ATR estimate used for the next sizing call.
func (s *ATRSizer) SetATR(atr float64) {
	s.atr = atr
}

// CalculateSize implements the Sizer interface.
func (s *ATRSizer) CalculateSize(capital, price, signalStrength float64) PositionSize {
	if result, ok := validateInputs(capital, price); !ok {
		return result
	}
	if s.atr <= 0 {
		return rejected("ATR not set or non-positive")
	}

	stopDistance := s.atr * s.atrMultiplier
	riskAmount := capital * s.riskPerTrade * signalStrength
	shares := riskAmount / stopDistance
	positionValue := shares * price

	positionType := PositionFull
	reason := ""
	maxValue := capital * s.maxPosition
	if positionValue > maxValue {
		positionValue = maxValue
		shares = positionValue / price
		riskAmount = shares * stopDistance
		positionType = PositionReduced
		reason = fmt.Sprintf("position capped at %.1f%% of capital", s.maxPosition*100)
	}

	return PositionSize{
		Shares:     shares,
		Value:      positionValue,
		Weight:     positionValue / capital,
		RiskAmount: riskAmount,
		Type:       positionType,
		Reason:     reason,
	}
}

// ComputeATR calculates the Average True Range over the trailing period of a
// bar series using a simple average of true ranges. Returns 0 when the
// series is too short.
func ComputeATR(bars []types.OHLCV, period int) float64 {
	if len(bars) < period+1 {
		return 0
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		current := bars[i]
		previous := bars[i-1]

		tr1 := current.High - current.Low
		tr2 := math.Abs(current.High - previous.Close)
		tr3 := math.Abs(current.Low - previous.Close)

		sum += math.Max(tr1, math.Max(tr2, tr3))
	}
	return sum / float64(period)
}
