package sizing

import "fmt"

// FixedFractionalSizer risks a fixed fraction of capital per trade. The
// position value is derived from the stop distance: risking 2% of capital
// with a 2% stop means a position worth 100% of capital, so the max-position
// cap usually binds.
type FixedFractionalSizer struct {
	fraction    float64 // fraction of capital risked per trade
	stopLossPct float64 // stop distance as a fraction of entry price
	maxPosition float64 // cap on position value as a fraction of capital
}

// NewFixedFractionalSizer creates a fixed-fractional sizer.
func NewFixedFractionalSizer(fraction, stopLossPct, maxPosition float64) *FixedFractionalSizer {
	return &FixedFractionalSizer{
		fraction:    fraction,
		stopLossPct: stopLossPct,
		maxPosition: maxPosition,
	}
}

// CalculateSize implements the Sizer interface.
func (s *FixedFractionalSizer) CalculateSize(capital, price, signalStrength float64) PositionSize {
	if result, ok := validateInputs(capital, price); !ok {
		return result
	}
	if s.stopLossPct <= 0 {
		return rejected("stop loss percent must be positive")
	}

	riskAmount := capital * s.fraction * signalStrength
	if riskAmount <= 0 {
		return rejected("zero risk amount: signal strength or fraction is zero")
	}

	positionValue := riskAmount / s.stopLossPct

	positionType := PositionFull
	reason := ""
	maxValue := capital * s.maxPosition
	if positionValue > maxValue {
		positionValue = maxValue
		riskAmount = positionValue * s.stopLossPct
		positionType = PositionReduced
		reason = fmt.Sprintf("position capped at %.1f%% of capital", s.maxPosition*100)
	}

	return PositionSize{
		Shares:     positionValue / price,
		Value:      positionValue,
		Weight:     positionValue / capital,
		RiskAmount: riskAmount,
		Type:       positionType,
		Reason:     reason,
	}
}
