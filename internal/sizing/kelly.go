package sizing

import (
	"fmt"
	"math"
)

// KellySizer sizes positions with the Kelly criterion computed from its own
// running trade statistics. Callers feed realized trade P&L through
// UpdateStats after every close; until minTrades have been recorded the sizer
// falls back to a small default fraction.
type KellySizer struct {
	kellyFraction float64 // fractional Kelly multiplier (0.25 or 0.5 commonly)
	maxPosition   float64 // cap on position value as a fraction of capital
	minTrades     int
	defaultFrac   float64

	wins      int
	losses    int
	grossWin  float64
	grossLoss float64
}

// DefaultKellyFraction is the quarter-Kelly commonly used to dampen variance.
const DefaultKellyFraction = 0.25

// NewKellySizer creates a Kelly sizer. minTrades gates the formula until
// enough history exists; defaultFrac is used before that.
func NewKellySizer(kellyFraction, maxPosition float64, minTrades int, defaultFrac float64) *KellySizer {
	return &KellySizer{
		kellyFraction: kellyFraction,
		maxPosition:   maxPosition,
		minTrades:     minTrades,
		defaultFrac:   defaultFrac,
	}
}

// UpdateStats records one realized trade P&L into the running counters.
func (s *KellySizer) UpdateStats(pnl float64) {
	if pnl > 0 {
		s.wins++
		s.grossWin += pnl
	} else if pnl < 0 {
		s.losses++
		s.grossLoss += math.Abs(pnl)
	}
}

// TradeCount returns the number of recorded trades with non-zero P&L.
func (s *KellySizer) TradeCount() int {
	return s.wins + s.losses
}

// kellyPercent computes winRate - (1-winRate)/winLossRatio from the counters.
func (s *KellySizer) kellyPercent() float64 {
	total := s.TradeCount()
	if total == 0 {
		return 0
	}
	winRate := float64(s.wins) / float64(total)
	if s.wins == 0 {
		return winRate - 1 // every trade lost
	}
	if s.losses == 0 || s.grossLoss == 0 {
		return winRate // no observed losses, ratio term vanishes
	}
	avgWin := s.grossWin / float64(s.wins)
	avgLoss := s.grossLoss / float64(s.losses)
	winLossRatio := avgWin / avgLoss
	return winRate - (1-winRate)/winLossRatio
}

// CalculateSize implements the Sizer interface.
func (s *KellySizer) CalculateSize(capital, price, signalStrength float64) PositionSize {
	if result, ok := validateInputs(capital, price); !ok {
		return result
	}

	if s.TradeCount() < s.minTrades {
		positionValue := capital * s.defaultFrac * signalStrength
		return PositionSize{
			Shares:     positionValue / price,
			Value:      positionValue,
			Weight:     positionValue / capital,
			RiskAmount: positionValue,
			Type:       PositionReduced,
			Reason:     fmt.Sprintf("insufficient history: %d of %d trades, using default fraction", s.TradeCount(), s.minTrades),
		}
	}

	kelly := s.kellyPercent()
	if kelly <= 0 {
		return rejected(fmt.Sprintf("non-positive Kelly fraction %.4f", kelly))
	}

	fraction := kelly * s.kellyFraction
	positionType := PositionFull
	reason := ""
	if fraction > s.maxPosition {
		fraction = s.maxPosition
		positionType = PositionReduced
		reason = fmt.Sprintf("Kelly fraction capped at %.1f%% of capital", s.maxPosition*100)
	}

	positionValue := capital * fraction * signalStrength
	return PositionSize{
		Shares:     positionValue / price,
		Value:      positionValue,
		Weight:     positionValue / capital,
		RiskAmount: positionValue,
		Type:       positionType,
		Reason:     reason,
	}
}
