package strategy

import (
	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

// SignalGenerator converts a bar series into an aligned signal series.
// Signals are in [-1, 1]: sign is direction, magnitude is conviction.
type SignalGenerator interface {
	// Generate produces one signal per bar. Bars inside the generator's
	// warmup window get a zero signal.
	Generate(bars []types.OHLCV) ([]float64, error)

	// GetName returns the name of the generator
	GetName() string

	// Reset clears all internal state so the generator can be reused
	// across walk-forward validation periods without contamination
	Reset()
}
