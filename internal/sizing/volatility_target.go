package sizing

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// annualization factor for daily bars
const tradingDaysPerYear = 252

// minVolatility floors realized volatility so the scalar cannot blow up on a
// flat return window.
const minVolatility = 1e-4

// VolatilityTargetSizer scales exposure so realized portfolio volatility
// tracks a target. Callers feed bar returns through AddReturn; the sizer
// keeps a rolling window and annualizes with the standard sqrt(252) factor.
type VolatilityTargetSizer struct {
	targetVol   float64
	window      int
	maxLeverage float64

	returns []float64
}

// NewVolatilityTargetSizer creates a volatility-targeting sizer.
func NewVolatilityTargetSizer(targetVol float64, window int, maxLeverage float64) *VolatilityTargetSizer {
	return &VolatilityTargetSizer{
		targetVol:   targetVol,
		window:      window,
		maxLeverage: maxLeverage,
	}
}

// AddReturn appends one bar return to the rolling window.
func (s *VolatilityTargetSizer) AddReturn(ret float64) {
	s.returns = append(s.returns, ret)
	if len(s.returns) > s.window {
		s.returns = s.returns[len(s.returns)-s.window:]
	}
}

// RealizedVolatility returns the annualized standard deviation of the rolling
// return window, floored at a small epsilon.
func (s *VolatilityTargetSizer) RealizedVolatility() float64 {
	if len(s.returns) < 2 {
		return minVolatility
	}
	sd, err := stats.StandardDeviationSample(s.returns)
	if err != nil {
		return minVolatility
	}
	vol := sd * math.Sqrt(tradingDaysPerYear)
	if vol < minVolatility {
		return minVolatility
	}
	return vol
}

// CalculateSize implements the Sizer interface.
func (s *VolatilityTargetSizer) CalculateSize(capital, price, signalStrength float64) PositionSize {
	if result, ok := validateInputs(capital, price); !ok {
		return result
	}

	positionType := PositionFull
	reason := ""
	if len(s.returns) < 2 {
		positionType = PositionReduced
		reason = "insufficient return history for volatility estimate"
	}

	scalar := s.targetVol / s.RealizedVolatility()
	if scalar > s.maxLeverage {
		scalar = s.maxLeverage
		positionType = PositionReduced
		reason = fmt.Sprintf("volatility scalar capped at %.1fx leverage", s.maxLeverage)
	}

	positionValue := capital * scalar * signalStrength
	return PositionSize{
		Shares:     positionValue / price,
		Value:      positionValue,
		Weight:     positionValue / capital,
		RiskAmount: positionValue * s.targetVol,
		Type:       positionType,
		Reason:     reason,
	}
}
