package risk

import "fmt"

// StopPolicy selects how stop-loss prices are computed.
type StopPolicy string

const (
	StopFixed    StopPolicy = "fixed"
	StopATR      StopPolicy = "atr"
	StopTrailing StopPolicy = "trailing"
)

// Limits holds the configured risk thresholds for a session. Constructed
// once, immutable while a run is in flight.
type Limits struct {
	MaxPositionSize   float64    `json:"max_position_size" yaml:"max_position_size"`     // fraction of capital per position
	MaxSectorExposure float64    `json:"max_sector_exposure" yaml:"max_sector_exposure"` // fraction of capital per sector
	MaxCorrelation    float64    `json:"max_correlation" yaml:"max_correlation"`
	MaxPositions      int        `json:"max_positions" yaml:"max_positions"`
	MaxDrawdown       float64    `json:"max_drawdown" yaml:"max_drawdown"`
	MaxDailyLoss      float64    `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxLeverage       float64    `json:"max_leverage" yaml:"max_leverage"`
	StopPolicy        StopPolicy `json:"stop_policy" yaml:"stop_policy"`
	StopLossPct       float64    `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	StopATRMultiplier float64    `json:"stop_atr_multiplier" yaml:"stop_atr_multiplier"`
	TrailingPct       float64    `json:"trailing_pct" yaml:"trailing_pct"`
	MaxTradesPerDay   int        `json:"max_trades_per_day" yaml:"max_trades_per_day"`
	CooldownDays      int        `json:"cooldown_days" yaml:"cooldown_days"`
}

// DefaultLimits returns a conservative limit set suitable for backtests.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:   0.20,
		MaxSectorExposure: 0.40,
		MaxCorrelation:    0.80,
		MaxPositions:      10,
		MaxDrawdown:       0.20,
		MaxDailyLoss:      0.05,
		MaxLeverage:       2.0,
		StopPolicy:        StopFixed,
		StopLossPct:       0.05,
		StopATRMultiplier: 2.0,
		TrailingPct:       0.08,
		MaxTradesPerDay:   20,
		CooldownDays:      5,
	}
}

// Validate rejects malformed thresholds before a session starts.
func (l Limits) Validate() error {
	fractional := map[string]float64{
		"max_position_size":   l.MaxPositionSize,
		"max_sector_exposure": l.MaxSectorExposure,
		"max_correlation":     l.MaxCorrelation,
		"max_drawdown":        l.MaxDrawdown,
		"max_daily_loss":      l.MaxDailyLoss,
	}
	for name, v := range fractional {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0,1], got %.4f", name, v)
		}
	}
	if l.MaxPositions <= 0 {
		return fmt.Errorf("max_positions must be positive, got %d", l.MaxPositions)
	}
	if l.MaxLeverage <= 0 {
		return fmt.Errorf("max_leverage must be positive, got %.2f", l.MaxLeverage)
	}
	if l.MaxTradesPerDay <= 0 {
		return fmt.Errorf("max_trades_per_day must be positive, got %d", l.MaxTradesPerDay)
	}
	if l.CooldownDays < 0 {
		return fmt.Errorf("cooldown_days must not be negative, got %d", l.CooldownDays)
	}
	switch l.StopPolicy {
	case StopFixed, StopATR, StopTrailing:
	default:
		return fmt.Errorf("unknown stop policy %q", l.StopPolicy)
	}
	return nil
}
